package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/accessgate/access-gate/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAccessRequestSubmitted EventType = "access_request.submitted"
	EventAccessRequestDecided   EventType = "access_request.decided"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type domain.SubjectType `json:"type,omitempty"`
	ID   *string            `json:"id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	RequestID string      `json:"request_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// AccessRequestSubmittedPayload payload.
type AccessRequestSubmittedPayload struct {
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	VerificationCode string `json:"verification_code"`
}

// AccessRequestDecidedPayload payload.
type AccessRequestDecidedPayload struct {
	OldStatus        domain.RequestStatus `json:"old_status"`
	NewStatus        domain.RequestStatus `json:"new_status"`
	VerificationCode string               `json:"verification_code"`
}

// UnmarshalJSON restores the typed payload for known event types so events
// relayed across processes look the same as locally published ones.
func (e *Event) UnmarshalJSON(data []byte) error {
	type alias Event
	raw := struct {
		*alias
		Payload json.RawMessage `json:"payload"`
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch e.Type {
	case EventAccessRequestSubmitted:
		var p AccessRequestSubmittedPayload
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", e.Type, err)
		}
		e.Payload = p
	case EventAccessRequestDecided:
		var p AccessRequestDecidedPayload
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", e.Type, err)
		}
		e.Payload = p
	default:
		e.Payload = raw.Payload
	}
	return nil
}
