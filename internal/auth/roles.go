package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/bookwell/penalty-service/internal/domain"
)

// RequireAccountHolder ensures a customer or provider is authenticated.
func RequireAccountHolder() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if _, ok := principal.AccountRef(); !ok {
			return fiber.NewError(http.StatusForbidden, "customer or provider required")
		}
		return c.Next()
	}
}

// RequireSubject ensures the principal is one of the allowed subject types.
func RequireSubject(allowed ...domain.SubjectType) fiber.Handler {
	allowedSet := make(map[domain.SubjectType]struct{}, len(allowed))
	for _, subject := range allowed {
		allowedSet[subject] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if _, exists := allowedSet[principal.SubjectType]; !exists {
			return fiber.NewError(http.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}

// RequireAdmin ensures an administrator is authenticated.
func RequireAdmin() fiber.Handler {
	return RequireSubject(domain.SubjectTypeAdmin)
}

// RequireService ensures the caller is an internal service or an administrator.
func RequireService() fiber.Handler {
	return RequireSubject(domain.SubjectTypeService, domain.SubjectTypeAdmin)
}
