package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/opsguardian/ticket-triage/internal/llm"
	"github.com/opsguardian/ticket-triage/internal/observability"
)

// TaskDependencies bundles what the classification and suggestion tasks need.
// A nil Model behaves like an unreachable model.
type TaskDependencies struct {
	Model   llm.Model
	Invoker *llm.Invoker
	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// modelTask holds the shared model plumbing of both tasks.
type modelTask struct {
	name       string
	model      llm.Model
	invoker    *llm.Invoker
	normalizer *llm.Normalizer
	extractor  *llm.Extractor
	metrics    *observability.Metrics
	logger     *zap.Logger
}

func newModelTask(name string, deps TaskDependencies) modelTask {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("task", name))
	invoker := deps.Invoker
	if invoker == nil {
		invoker = llm.NewInvoker(llm.DefaultRetryPolicy(), logger)
	}
	return modelTask{
		name:       name,
		model:      deps.Model,
		invoker:    invoker,
		normalizer: llm.NewNormalizer(logger),
		extractor:  llm.NewExtractor(logger),
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// ask sends prompt through the retry invoker and returns the normalized
// reply. Panics raised by the model are turned into errors.
func (t modelTask) ask(ctx context.Context, prompt string) (string, error) {
	if t.model == nil {
		return "", llm.ErrModelDisabled
	}
	raw, err := t.invoker.Invoke(ctx, func(ctx context.Context) (out string, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("model panic: %v", r)
			}
		}()
		return t.model.Generate(ctx, prompt)
	})
	if err != nil {
		return "", err
	}
	return t.normalizer.Normalize(raw), nil
}

func (t modelTask) logModelFailure(err error) {
	if errors.Is(err, llm.ErrModelDisabled) {
		t.logger.Info("model not configured, using fallback")
		return
	}
	t.logger.Warn("model call failed, using fallback", zap.Error(err))
}
