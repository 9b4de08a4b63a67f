package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsguardian/ticket-triage/internal/domain"
	"github.com/opsguardian/ticket-triage/internal/events"
	"github.com/opsguardian/ticket-triage/internal/observability"
	"github.com/opsguardian/ticket-triage/internal/repository"
	apperrors "github.com/opsguardian/ticket-triage/pkg/util/errorutil"
)

// Delivery outcomes recorded in metrics.
const (
	DeliveryEndpoint = "endpoint"
	DeliveryPost     = "post"
	DeliveryFailed   = "failed"
)

// TriageService runs the triage pipeline for one ticket at a time:
// resolve, normalize, classify, derive status, persist the classification,
// suggest, deliver suggestions.
type TriageService struct {
	backend    TicketBackend
	classifier *Classifier
	suggester  *Suggester
	reports    repository.ReportRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// TriageDependencies bundles collaborators for the triage service. Reports
// and Dispatcher are optional.
type TriageDependencies struct {
	Backend    TicketBackend
	Classifier *Classifier
	Suggester  *Suggester
	Reports    repository.ReportRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewTriageService constructs the service. Missing tasks are built without a
// model, so they always use their fallbacks.
func NewTriageService(deps TriageDependencies) *TriageService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	classifier := deps.Classifier
	if classifier == nil {
		classifier = NewClassifier(TaskDependencies{Metrics: deps.Metrics, Logger: logger})
	}
	suggester := deps.Suggester
	if suggester == nil {
		suggester = NewSuggester(TaskDependencies{Metrics: deps.Metrics, Logger: logger})
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &TriageService{
		backend:    deps.Backend,
		classifier: classifier,
		suggester:  suggester,
		reports:    deps.Reports,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        clock,
	}
}

// DeriveStatus keeps RESOLVED and CLOSED as they are, assigns P0/P1 tickets
// and marks everything else TRIAGED.
func DeriveStatus(current string, priority *domain.Priority) string {
	if domain.TicketStatus(current).IsTerminal() {
		return current
	}
	if priority != nil && priority.IsUrgent() {
		return string(domain.TicketStatusAssigned)
	}
	return string(domain.TicketStatusTriaged)
}

// ProcessID triages the ticket stored under id.
func (s *TriageService) ProcessID(ctx context.Context, id int64) (*domain.ProcessingReport, error) {
	return s.Process(ctx, id)
}

// Process triages a ticket given either its identifier (any integer kind) or
// a ticket value. Invalid input and a failed classification write are
// returned as errors; model and suggestion-delivery failures are not.
func (s *TriageService) Process(ctx context.Context, input any) (*domain.ProcessingReport, error) {
	raw, err := s.resolveInput(ctx, input)
	if err != nil {
		return nil, err
	}

	ticket, err := ReadTicket(raw)
	if err != nil {
		return nil, err
	}
	if ticket.ID == nil {
		return nil, apperrors.NewInvalidInput("ticket has no id", nil)
	}
	id := *ticket.ID
	logger := s.logger.With(zap.Int64("ticket_id", id))
	logger.Info("triage started", zap.String("title", ticket.Title), zap.String("status", ticket.Status))

	classification := s.classifier.Classify(ctx, ticket)
	status := DeriveStatus(ticket.Status, classification.Priority)

	update := domain.TicketUpdate{Category: classification.Category, Status: &status}
	if classification.Priority != nil {
		p := string(*classification.Priority)
		update.Priority = &p
	}
	resolverUpdate, err := s.backend.UpdateTicket(ctx, id, update)
	if err != nil {
		logger.Error("classification update rejected", zap.Error(err))
		return nil, fmt.Errorf("update ticket %d: %w", id, err)
	}

	suggestions := s.suggester.Suggest(ctx, ticket)
	payload := domain.SuggestionsPayload{ID: id, Suggestions: suggestions.Suggestions}
	backendResponse := s.deliverSuggestions(ctx, logger, payload)

	report := &domain.ProcessingReport{
		RunID:              uuid.NewString(),
		Normalized:         ticket,
		Classification:     classification,
		ResolverUpdate:     resolverUpdate,
		Suggestions:        suggestions,
		SuggestionsPayload: payload,
		BackendResponse:    backendResponse,
		ProcessedAt:        s.now(),
	}

	s.saveReport(ctx, logger, report)
	s.publishEvents(ctx, logger, report, status)

	logger.Info("triage finished",
		zap.String("run_id", report.RunID),
		zap.String("priority", string(classification.PriorityValue())),
		zap.String("category", classification.CategoryValue()),
		zap.String("derived_status", status),
		zap.Bool("classified_by_model", classification.UsedModel),
		zap.Bool("suggestions_from_model", suggestions.UsedModel),
		zap.Bool("delivery_failed", report.DeliveryFailed()))
	return report, nil
}

// Report returns the latest stored report for a ticket.
func (s *TriageService) Report(ctx context.Context, ticketID int64) (*domain.ProcessingReport, error) {
	if s.reports == nil {
		return nil, apperrors.NewNotFound("report", map[string]any{"ticket_id": ticketID})
	}
	report, err := s.reports.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (s *TriageService) resolveInput(ctx context.Context, input any) (any, error) {
	if id, ok, err := integerID(input); ok || err != nil {
		if err != nil {
			return nil, err
		}
		raw, err := s.backend.GetTicket(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("fetch ticket %d: %w", id, err)
		}
		return raw, nil
	}

	switch input.(type) {
	case map[string]any, []byte, json.RawMessage, domain.Ticket, *domain.Ticket, *http.Response, JSONSource:
		return input, nil
	}
	return nil, apperrors.NewInvalidInput("ticket input must be an id or a ticket", map[string]any{"type": fmt.Sprintf("%T", input)})
}

func integerID(input any) (int64, bool, error) {
	switch v := input.(type) {
	case int:
		return int64(v), true, nil
	case int8:
		return int64(v), true, nil
	case int16:
		return int64(v), true, nil
	case int32:
		return int64(v), true, nil
	case int64:
		return v, true, nil
	case uint:
		return uintID(uint64(v))
	case uint8:
		return int64(v), true, nil
	case uint16:
		return int64(v), true, nil
	case uint32:
		return int64(v), true, nil
	case uint64:
		return uintID(v)
	}
	return 0, false, nil
}

func uintID(v uint64) (int64, bool, error) {
	if v > math.MaxInt64 {
		return 0, false, apperrors.NewInvalidInput("ticket id out of range", map[string]any{"id": v})
	}
	return int64(v), true, nil
}

func (s *TriageService) deliverSuggestions(ctx context.Context, logger *zap.Logger, payload domain.SuggestionsPayload) map[string]any {
	if sender, ok := s.backend.(SuggestionsSender); ok {
		resp, err := guard(func() (map[string]any, error) { return sender.AddSuggestions(ctx, payload.ID, payload) })
		if err == nil {
			s.metrics.RecordDelivery(DeliveryEndpoint)
			return resp
		}
		logger.Warn("suggestions endpoint failed, falling back to generic post", zap.Error(err))
	}

	path := fmt.Sprintf("tickets/%d/suggestions", payload.ID)
	resp, err := guard(func() (map[string]any, error) { return s.backend.Post(ctx, path, payload) })
	if err == nil {
		s.metrics.RecordDelivery(DeliveryPost)
		return resp
	}

	logger.Error("suggestion delivery failed", zap.String("path", path), zap.Error(err))
	s.metrics.RecordDelivery(DeliveryFailed)
	return map[string]any{"status": domain.DeliveryStatusFailed, "error": err.Error()}
}

// guard turns a panic in a backend call into an error.
func guard(call func() (map[string]any, error)) (resp map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()
	return call()
}

func (s *TriageService) saveReport(ctx context.Context, logger *zap.Logger, report *domain.ProcessingReport) {
	if s.reports == nil {
		return
	}
	if err := s.reports.Save(ctx, report); err != nil {
		logger.Warn("unable to store triage report", zap.Error(err))
	}
}

func (s *TriageService) publishEvents(ctx context.Context, logger *zap.Logger, report *domain.ProcessingReport, status string) {
	if s.dispatcher == nil {
		return
	}
	id := *report.Normalized.ID
	triaged := events.NewEvent(events.EventTicketTriaged, id, report.RunID, events.TicketTriagedPayload{
		Priority:             report.Classification.PriorityValue(),
		Category:             report.Classification.CategoryValue(),
		Status:               status,
		PreviousStatus:       strings.ToUpper(report.Normalized.Status),
		ClassifiedByModel:    report.Classification.UsedModel,
		SuggestionsFromModel: report.Suggestions.UsedModel,
		SuggestionCount:      len(report.Suggestions.Suggestions),
	})
	s.publish(ctx, logger, triaged)

	if !report.DeliveryFailed() {
		return
	}
	msg, _ := report.BackendResponse["error"].(string)
	failed := events.NewEvent(events.EventSuggestionsDeliveryFailed, id, report.RunID, events.SuggestionsDeliveryFailedPayload{
		Error:           msg,
		SuggestionCount: len(report.Suggestions.Suggestions),
	})
	s.publish(ctx, logger, failed)
}

// publish hands event to the dispatcher. Handler errors and panics are
// logged; the ticket has already been written when events go out.
func (s *TriageService) publish(ctx context.Context, logger *zap.Logger, event events.Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event handler panicked", zap.String("event", string(event.Type)), zap.Any("panic", r))
		}
	}()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}
