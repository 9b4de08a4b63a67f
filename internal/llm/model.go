package llm

import (
	"context"
	"errors"
	"sync"
)

// ErrModelDisabled is returned when no model provider is configured. The
// triage tasks treat it like any other unreachable model.
var ErrModelDisabled = errors.New("model provider disabled")

// Model is a single-shot text generator. Implementations are stateless per
// call and may fail with rate-limit errors whose message the Invoker inspects.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f ModelFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// LazyModel builds the underlying Model on first use, exactly once, and
// shares it for the life of the process. A factory error is kept and
// returned by every later call.
type LazyModel struct {
	once    sync.Once
	factory func() (Model, error)
	model   Model
	err     error
}

// NewLazyModel wraps factory.
func NewLazyModel(factory func() (Model, error)) *LazyModel {
	return &LazyModel{factory: factory}
}

// Get returns the shared Model, creating it if needed.
func (l *LazyModel) Get() (Model, error) {
	l.once.Do(func() {
		if l.factory == nil {
			l.err = ErrModelDisabled
			return
		}
		l.model, l.err = l.factory()
		if l.err == nil && l.model == nil {
			l.err = ErrModelDisabled
		}
	})
	return l.model, l.err
}

// Generate resolves the model and forwards the call.
func (l *LazyModel) Generate(ctx context.Context, prompt string) (string, error) {
	m, err := l.Get()
	if err != nil {
		return "", err
	}
	return m.Generate(ctx, prompt)
}
