package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/opsguardian/ticket-triage/internal/domain"
)

var fallbackSuggestions = []string{
	"Check service logs for exceptions and stack traces.",
	"Verify recent deployments and config changes.",
	"Check upstream/downstream dependency availability (DB, third-party APIs).",
}

// FallbackSuggestions returns a fresh copy of the static suggestion list.
func FallbackSuggestions() []string {
	return append([]string{}, fallbackSuggestions...)
}

const suggestPrompt = `Generate 3-6 short, actionable troubleshooting suggestions for this operations ticket.
Title: %s
Description: %s
Return ONLY a JSON array of strings: ["..."]`

// Suggester proposes troubleshooting steps, preferring the model and falling
// back to a static list.
type Suggester struct {
	modelTask
}

// NewSuggester builds a Suggester.
func NewSuggester(deps TaskDependencies) *Suggester {
	return &Suggester{modelTask: newModelTask("suggest", deps)}
}

// Suggest never fails and never returns an empty list.
func (s *Suggester) Suggest(ctx context.Context, t domain.NormalizedTicket) domain.SuggestionResult {
	result := s.suggest(ctx, t)
	s.metrics.RecordTask(s.name, result.UsedModel)
	return result
}

func (s *Suggester) suggest(ctx context.Context, t domain.NormalizedTicket) domain.SuggestionResult {
	text, err := s.ask(ctx, fmt.Sprintf(suggestPrompt, t.Title, t.Description))
	if err != nil {
		s.logModelFailure(err)
		return domain.SuggestionResult{Suggestions: FallbackSuggestions(), UsedModel: false}
	}

	suggestions := s.extractor.ExtractSuggestions(text)
	if len(suggestions) == 0 {
		s.logger.Warn("model reply had no suggestions, using static list")
		return domain.SuggestionResult{Suggestions: FallbackSuggestions(), UsedModel: false}
	}

	s.logger.Info("suggestions from model", zap.Int("count", len(suggestions)))
	return domain.SuggestionResult{Suggestions: suggestions, UsedModel: true}
}
