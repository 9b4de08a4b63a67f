package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsguardian/ticket-triage/internal/api/dto"
	"github.com/opsguardian/ticket-triage/internal/auth"
)

var tokenFlags struct {
	subject string
	scopes  []string
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a service token for the triage API",
	RunE:  runToken,
}

func init() {
	f := tokenCmd.Flags()
	f.StringVar(&tokenFlags.subject, "subject", "", "Token subject (required)")
	f.StringSliceVar(&tokenFlags.scopes, "scope", []string{string(auth.ScopeTriage)}, "Granted scopes: triage, reports, admin")

	_ = tokenCmd.MarkFlagRequired("subject")
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	scopes := make([]auth.Scope, 0, len(tokenFlags.scopes))
	for _, s := range tokenFlags.scopes {
		scopes = append(scopes, auth.Scope(s))
	}
	token, exp, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTLMinutes).GenerateToken(tokenFlags.subject, scopes...)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), dto.AuthResponse{Token: token, ExpiresAt: exp})
}
