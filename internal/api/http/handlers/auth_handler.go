package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/opsguardian/ticket-triage/internal/api/dto"
	"github.com/opsguardian/ticket-triage/internal/auth"
	apperrors "github.com/opsguardian/ticket-triage/pkg/util/errorutil"
)

// AuthHandler mints service tokens for admin callers.
type AuthHandler struct {
	tokens *auth.TokenManager
}

// NewAuthHandler constructs handler.
func NewAuthHandler(tokens *auth.TokenManager) *AuthHandler {
	return &AuthHandler{tokens: tokens}
}

// IssueToken POST /auth/tokens.
func (h *AuthHandler) IssueToken(c *fiber.Ctx) error {
	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Subject == "" {
		return apperrors.NewValidationError("subject required", map[string]any{"field": "subject"})
	}
	scopes := make([]auth.Scope, 0, len(req.Scopes))
	for _, s := range req.Scopes {
		scopes = append(scopes, auth.Scope(s))
	}
	if len(scopes) == 0 {
		scopes = append(scopes, auth.ScopeTriage)
	}

	token, exp, err := h.tokens.GenerateToken(req.Subject, scopes...)
	if err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.AuthResponse{Token: token, ExpiresAt: exp},
	})
}
