package dto

import "time"

// TokenRequest payload for minting a service token.
type TokenRequest struct {
	Subject string   `json:"subject"`
	Scopes  []string `json:"scopes"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
