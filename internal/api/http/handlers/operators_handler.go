package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/accessgate/access-gate/internal/api/dto"
	"github.com/accessgate/access-gate/internal/service"
	apperrors "github.com/accessgate/access-gate/pkg/util/errorutil"
)

// OperatorsHandler exposes operator auth endpoints.
type OperatorsHandler struct {
	authService *service.AuthService
}

// NewOperatorsHandler constructs handler.
func NewOperatorsHandler(authService *service.AuthService) *OperatorsHandler {
	return &OperatorsHandler{authService: authService}
}

// Login handles POST /auth/operators/login.
func (h *OperatorsHandler) Login(c *fiber.Ctx) error {
	var req dto.OperatorLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return apperrors.NewValidationError("username and password required", nil)
	}

	op, token, exp, err := h.authService.LoginOperator(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"operator": dto.OperatorResponse{Username: op.Username},
			"auth":     dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}
