package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/accessgate/access-gate/internal/api/dto"
	"github.com/accessgate/access-gate/internal/auth"
	"github.com/accessgate/access-gate/internal/domain"
	"github.com/accessgate/access-gate/internal/service"
	apperrors "github.com/accessgate/access-gate/pkg/util/errorutil"
)

const defaultWait = 30 * time.Second

// AccessRequestsHandler exposes submission, status and decision endpoints.
type AccessRequestsHandler struct {
	admission *service.AdmissionService
	approval  *service.ApprovalService
	notifier  *service.StatusNotifier
	queue     *service.PendingQueue
	maxWait   time.Duration
	serving   context.Context
}

// AccessRequestsDependencies bundles the services behind the handler.
type AccessRequestsDependencies struct {
	Admission *service.AdmissionService
	Approval  *service.ApprovalService
	Notifier  *service.StatusNotifier
	Queue     *service.PendingQueue
	MaxWait   time.Duration
	// Serving bounds long waits; cancel it before shutting the server down.
	Serving context.Context
}

// NewAccessRequestsHandler constructs handler.
func NewAccessRequestsHandler(deps AccessRequestsDependencies) *AccessRequestsHandler {
	maxWait := deps.MaxWait
	if maxWait <= 0 {
		maxWait = time.Minute
	}
	serving := deps.Serving
	if serving == nil {
		serving = context.Background()
	}
	return &AccessRequestsHandler{
		admission: deps.Admission,
		approval:  deps.Approval,
		notifier:  deps.Notifier,
		queue:     deps.Queue,
		maxWait:   maxWait,
		serving:   serving,
	}
}

// Submit POST /access-requests.
func (h *AccessRequestsHandler) Submit(c *fiber.Ctx) error {
	var req dto.SubmitAccessRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}

	res, err := h.admission.Submit(c.UserContext(), req.FirstName, req.LastName)
	if err != nil {
		return mapServiceError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.SubmitAccessResponse{
		ID:               res.ID,
		VerificationCode: res.VerificationCode,
		Status:           string(domain.RequestStatusPending),
		SubmittedAt:      res.SubmittedAt,
	}})
}

// Status GET /access-requests/:id/status.
func (h *AccessRequestsHandler) Status(c *fiber.Ctx) error {
	id := c.Params("id")
	status, err := h.notifier.CheckStatus(c.UserContext(), id)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewStatusResponse(id, status)})
}

// StatusByCode GET /access-requests/by-code/:code/status.
func (h *AccessRequestsHandler) StatusByCode(c *fiber.Ctx) error {
	req, err := h.notifier.CheckStatusByCode(c.UserContext(), c.Params("code"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewStatusResponse(req.ID, req.Status)})
}

// Wait GET /access-requests/:id/status/wait?mode=poll|push&timeout=seconds.
// It holds the request until the status is terminal or the wait elapses.
func (h *AccessRequestsHandler) Wait(c *fiber.Ctx) error {
	id := c.Params("id")
	mode, err := service.ParseWatchMode(c.Query("mode"))
	if err != nil {
		return apperrors.NewValidationError("mode must be poll or push", nil)
	}
	wait, err := h.parseWait(c.Query("timeout"))
	if err != nil {
		return err
	}

	// The wait has its own deadline; the global request timeout does not apply.
	ctx, cancel := context.WithTimeout(h.serving, wait)
	defer cancel()

	status, err := h.notifier.Watch(ctx, id, mode)
	if err != nil {
		if h.serving.Err() != nil {
			return apperrors.NewUnavailable("server is shutting down")
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return apperrors.NewTimeout("request still pending", map[string]any{
				"id":     id,
				"status": string(domain.RequestStatusPending),
			})
		}
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewStatusResponse(id, status)})
}

// ListPending GET /access-requests/pending.
func (h *AccessRequestsHandler) ListPending(c *fiber.Ctx) error {
	items, err := h.queue.ListPending(c.UserContext())
	if err != nil {
		return mapServiceError(err)
	}
	resp := make([]dto.AccessRequestResponse, 0, len(items))
	for i := range items {
		resp = append(resp, dto.NewAccessRequestResponse(&items[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Decide POST /access-requests/:id/decision.
func (h *AccessRequestsHandler) Decide(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Operator == nil {
		return apperrors.NewUnauthorized("operator required")
	}
	var req dto.DecisionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	action, err := domain.ParseDecisionAction(req.Action)
	if err != nil {
		return mapServiceError(service.ErrInvalidAction)
	}

	updated, err := h.approval.Decide(c.UserContext(), c.Params("id"), action, principal.Username())
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewAccessRequestResponse(updated)})
}

func (h *AccessRequestsHandler) parseWait(raw string) (time.Duration, error) {
	wait := defaultWait
	if raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return 0, apperrors.NewValidationError("timeout must be a positive number of seconds", nil)
		}
		wait = time.Duration(seconds) * time.Second
	}
	if wait > h.maxWait {
		wait = h.maxWait
	}
	return wait, nil
}
