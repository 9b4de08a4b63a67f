package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Scope names a permission carried by a service token.
type Scope string

const (
	// ScopeTriage allows running the triage pipeline.
	ScopeTriage Scope = "triage"
	// ScopeReports allows reading stored triage reports.
	ScopeReports Scope = "reports"
	// ScopeAdmin satisfies every scope check.
	ScopeAdmin Scope = "admin"
)

// Has reports whether the principal carries scope or admin.
func (p *Principal) Has(scope Scope) bool {
	for _, s := range p.Scopes {
		if s == scope || s == ScopeAdmin {
			return true
		}
	}
	return false
}

// RequireScope ensures the principal carries at least one of the scopes.
func RequireScope(scopes ...Scope) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if len(scopes) == 0 {
			return c.Next()
		}
		for _, scope := range scopes {
			if principal.Has(scope) {
				return c.Next()
			}
		}
		return fiber.NewError(http.StatusForbidden, "insufficient scope")
	}
}
