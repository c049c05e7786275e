package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/identity-service/internal/domain"
	apperrors "github.com/spec-kit/identity-service/pkg/util"
)

// RequireRole ensures the principal has one of the allowed roles.
// Admin-only operations invoked without sufficient privilege fail with
// AUTHORIZATION_DENIED.
func RequireRole(allowed ...domain.ClientRole) fiber.Handler {
	allowedSet := make(map[domain.ClientRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return apperrors.NewAuthorizationDenied("insufficient role")
		}
		return c.Next()
	}
}

// RequireAdmin ensures the caller holds the admin role.
func RequireAdmin() fiber.Handler {
	return RequireRole(domain.ClientRoleAdmin)
}
