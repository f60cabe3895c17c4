package dto

import "time"

// OperatorLoginRequest payload for login.
type OperatorLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OperatorResponse describes the logged in operator.
type OperatorResponse struct {
	Username string `json:"username"`
}
