package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/accessgate/access-gate/internal/domain"
	apperrors "github.com/accessgate/access-gate/pkg/util/errorutil"
)

// RequireOperator ensures an operator principal is attached.
func RequireOperator() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if principal.SubjectType != domain.SubjectTypeOperator || principal.Operator == nil {
			return apperrors.NewForbidden("operator required")
		}
		return c.Next()
	}
}
