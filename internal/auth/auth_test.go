package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/opsguardian/ticket-triage/pkg/util/errorutil"
)

func TestGenerateAndParseToken(t *testing.T) {
	tm := NewTokenManager("secret", 5)

	token, expiresAt, err := tm.GenerateToken("batch-runner", ScopeTriage, " ", ScopeReports)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), expiresAt, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "batch-runner", claims.Subject)
	assert.Equal(t, "triage reports", claims.Scope)
	assert.Equal(t, []Scope{ScopeTriage, ScopeReports}, claims.Scopes())
}

func TestGenerateTokenRequiresSubject(t *testing.T) {
	_, _, err := NewTokenManager("secret", 0).GenerateToken("  ")
	assert.Error(t, err)
}

func TestParseTokenRejects(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	other, _, err := NewTokenManager("other", 5).GenerateToken("x", ScopeTriage)
	require.NoError(t, err)

	expired := NewTokenManager("secret", 1)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.GenerateToken("x", ScopeTriage)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "x"}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{"wrong secret": other, "expired": old, "alg none": unsigned, "garbage": "abc"} {
		t.Run(name, func(t *testing.T) {
			_, err := tm.ParseToken(token)
			assert.Error(t, err)
		})
	}
}

func newProtectedApp(tm *TokenManager, scopes ...Scope) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).SendString(fe.Message)
		}
		de := apperrors.ToDomainError(err)
		return c.Status(de.HTTPStatus).SendString(de.Code)
	}})
	app.Get("/secure", NewAuthMiddleware(tm).Handle, RequireScope(scopes...), func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.ErrInternalServerError
		}
		return c.SendString(principal.Subject)
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	triage, _, err := tm.GenerateToken("runner", ScopeTriage)
	require.NoError(t, err)
	admin, _, err := tm.GenerateToken("ops", ScopeAdmin)
	require.NoError(t, err)
	reader, _, err := tm.GenerateToken("viewer", ScopeReports)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"triage scope", "Bearer " + triage, http.StatusOK},
		{"lowercase scheme", "bearer " + triage, http.StatusOK},
		{"admin scope", "Bearer " + admin, http.StatusOK},
		{"missing scope", "Bearer " + reader, http.StatusForbidden},
	}

	app := newProtectedApp(tm, ScopeTriage)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/secure", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestRequireScopeWithoutPrincipal(t *testing.T) {
	app := fiber.New()
	app.Get("/open", RequireScope(), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/open", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
