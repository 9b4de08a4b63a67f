package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsguardian/ticket-triage/internal/domain"
	"github.com/opsguardian/ticket-triage/internal/repository"
	"github.com/opsguardian/ticket-triage/internal/service"
	apperrors "github.com/opsguardian/ticket-triage/pkg/util/errorutil"
)

func newStore(t *testing.T, titles ...string) *StoreBackend {
	t.Helper()
	tickets := service.NewTicketService(service.TicketDependencies{TicketRepo: repository.NewMemoryTicketRepository()})
	for _, title := range titles {
		_, err := tickets.CreateTicket(context.Background(), service.TicketCreateInput{Title: title})
		require.NoError(t, err)
	}
	return NewStoreBackend(tickets, nil)
}

func TestStoreGetTicketIsReadable(t *testing.T) {
	store := newStore(t, "Payment gateway timeout")

	raw, err := store.GetTicket(context.Background(), 1)
	require.NoError(t, err)

	ticket, err := service.ReadTicket(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(1), *ticket.ID)
	assert.Equal(t, "Payment gateway timeout", ticket.Title)
	assert.Equal(t, "OPEN", ticket.Status)

	_, err = store.GetTicket(context.Background(), 2)
	assert.Equal(t, "NOT_FOUND", apperrors.ToDomainError(err).Code)
}

func TestStoreListAndUpdate(t *testing.T) {
	store := newStore(t, "a", "b")
	status := "RESOLVED"

	updated, err := store.UpdateTicket(context.Background(), 2, domain.TicketUpdate{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "RESOLVED", updated["status"])

	open, err := store.ListTickets(context.Background(), "open")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "a", open[0]["title"])

	all, err := store.ListTickets(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = store.UpdateTicket(context.Background(), 9, domain.TicketUpdate{Status: &status})
	assert.Equal(t, "NOT_FOUND", apperrors.ToDomainError(err).Code)
}

func TestStoreAddSuggestions(t *testing.T) {
	store := newStore(t, "API errors")

	resp, err := store.AddSuggestions(context.Background(), 1, domain.SuggestionsPayload{ID: 1, Suggestions: []string{"Check logs"}})
	require.NoError(t, err)

	assert.Equal(t, "ok", resp["status"])
	ticket := resp["ticket"].(map[string]any)
	assert.Equal(t, []any{"Check logs"}, ticket["suggestions"])

	_, err = store.AddSuggestions(context.Background(), 1, domain.SuggestionsPayload{ID: 1})
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func TestStorePostRoutes(t *testing.T) {
	store := newStore(t, "API errors")

	resp, err := store.Post(context.Background(), "tickets/1/suggestions", domain.SuggestionsPayload{ID: 1, Suggestions: []string{"Roll back"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp["status"])

	resp, err = store.Post(context.Background(), "/tickets/1/suggestions/", []string{"Roll back", "Page on-call"})
	require.NoError(t, err)
	ticket := resp["ticket"].(map[string]any)
	assert.Equal(t, []any{"Roll back", "Page on-call"}, ticket["suggestions"])

	_, err = store.Post(context.Background(), "tickets/1/assign", map[string]any{"team": "sre"})
	assert.Equal(t, "NOT_FOUND", apperrors.ToDomainError(err).Code)

	_, err = store.Post(context.Background(), "tickets/5/suggestions", []string{"x"})
	assert.Equal(t, "NOT_FOUND", apperrors.ToDomainError(err).Code)
}

func TestStoreBackendDrivesTriage(t *testing.T) {
	store := newStore(t, "Payment gateway timeout")
	triage := service.NewTriageService(service.TriageDependencies{Backend: store})

	report, err := triage.ProcessID(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, "ok", report.BackendResponse["status"])
	raw, err := store.GetTicket(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "ASSIGNED", raw["status"])
	assert.Equal(t, "P0", raw["priority"])
	assert.Equal(t, "Payments", raw["category"])
	assert.Len(t, raw["suggestions"], 3)
}
