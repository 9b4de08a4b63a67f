package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/opsguardian/ticket-triage/internal/domain"
	"github.com/opsguardian/ticket-triage/internal/llm"
	apperrors "github.com/opsguardian/ticket-triage/pkg/util/errorutil"
)

// fakeBackend records every call and serves tickets from memory.
type fakeBackend struct {
	mu       sync.Mutex
	tickets  map[int64]map[string]any
	updates  []domain.TicketUpdate
	posts    []string
	postErr  error
	getErr   error
	updErr   error
	listErr  error
	postResp map[string]any
}

func newFakeBackend(tickets ...map[string]any) *fakeBackend {
	b := &fakeBackend{tickets: map[int64]map[string]any{}}
	for _, t := range tickets {
		b.tickets[toInt64(t["id"])] = t
	}
	return b
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int64:
		return t
	case float64:
		return int64(t)
	}
	return 0
}

func (b *fakeBackend) GetTicket(_ context.Context, id int64) (map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.getErr != nil {
		return nil, b.getErr
	}
	t, ok := b.tickets[id]
	if !ok {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	return t, nil
}

func (b *fakeBackend) ListTickets(_ context.Context, status string) ([]map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	ids := make([]int64, 0, len(b.tickets))
	for id := range b.tickets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []map[string]any
	for _, id := range ids {
		t := b.tickets[id]
		if status != "" && t["status"] != status {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (b *fakeBackend) UpdateTicket(_ context.Context, id int64, update domain.TicketUpdate) (map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.updErr != nil {
		return nil, b.updErr
	}
	b.updates = append(b.updates, update)
	resp := map[string]any{"id": id}
	if update.Status != nil {
		resp["status"] = *update.Status
	}
	if update.Priority != nil {
		resp["priority"] = *update.Priority
	}
	if update.Category != nil {
		resp["category"] = *update.Category
	}
	return resp, nil
}

func (b *fakeBackend) Post(_ context.Context, path string, payload any) (map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.posts = append(b.posts, path)
	if b.postErr != nil {
		return nil, b.postErr
	}
	if b.postResp != nil {
		return b.postResp, nil
	}
	return map[string]any{"status": "ok", "via": "post"}, nil
}

func (b *fakeBackend) lastUpdate() domain.TicketUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.updates[len(b.updates)-1]
}

// senderBackend adds the dedicated suggestions endpoint.
type senderBackend struct {
	*fakeBackend
	sendErr  error
	payloads []domain.SuggestionsPayload
}

func (b *senderBackend) AddSuggestions(_ context.Context, id int64, payload domain.SuggestionsPayload) (map[string]any, error) {
	b.payloads = append(b.payloads, payload)
	if b.sendErr != nil {
		return nil, b.sendErr
	}
	return map[string]any{"status": "ok", "via": "endpoint", "id": id}, nil
}

func failingModel(msg string) llm.Model {
	return llm.ModelFunc(func(context.Context, string) (string, error) {
		return "", errors.New(msg)
	})
}

func replyModel(reply string) llm.Model {
	return llm.ModelFunc(func(context.Context, string) (string, error) {
		return reply, nil
	})
}

// countingModel answers from replies in order and counts calls.
type countingModel struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	replies []string
	err     error
}

func (m *countingModel) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return "", fmt.Errorf("no reply scripted")
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return reply, nil
}

func instantInvoker() *llm.Invoker {
	return llm.NewInvoker(llm.DefaultRetryPolicy(), nil,
		llm.WithSleep(func(context.Context, time.Duration) error { return nil }),
		llm.WithJitter(func() time.Duration { return 0 }))
}
