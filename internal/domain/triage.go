package domain

import "time"

// NormalizedTicket is the canonical ticket view consumed by the
// classification and suggestion tasks. Every string field carries a default,
// so consumers never see a missing value.
type NormalizedTicket struct {
	ID          *int64         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Reporter    string         `json:"reporter"`
	Priority    *Priority      `json:"priority"`
	Category    *string        `json:"category"`
	Status      string         `json:"status"`
	Raw         map[string]any `json:"raw"`
}

// ClassificationResult is the outcome of the classification task.
// UsedModel is true only when the model answered and the answer parsed.
type ClassificationResult struct {
	Priority  *Priority `json:"priority"`
	Category  *string   `json:"category"`
	UsedModel bool      `json:"used_model"`
}

// PriorityValue returns the priority or "" when absent.
func (c ClassificationResult) PriorityValue() Priority {
	if c.Priority == nil {
		return ""
	}
	return *c.Priority
}

// CategoryValue returns the category or "" when absent.
func (c ClassificationResult) CategoryValue() string {
	if c.Category == nil {
		return ""
	}
	return *c.Category
}

// SuggestionResult is the outcome of the suggestion task.
type SuggestionResult struct {
	Suggestions []string `json:"suggestions"`
	UsedModel   bool     `json:"used_model"`
}

// SuggestionsPayload is what gets delivered to the backend.
type SuggestionsPayload struct {
	ID          int64    `json:"id"`
	Suggestions []string `json:"suggestions"`
}

// ProcessingReport aggregates one run of the triage pipeline.
type ProcessingReport struct {
	RunID              string               `json:"run_id"`
	Normalized         NormalizedTicket     `json:"normalized"`
	Classification     ClassificationResult `json:"classification"`
	ResolverUpdate     map[string]any       `json:"resolver_update"`
	Suggestions        SuggestionResult     `json:"suggestions"`
	SuggestionsPayload SuggestionsPayload   `json:"suggestions_payload"`
	BackendResponse    map[string]any       `json:"backend_response"`
	ProcessedAt        time.Time            `json:"processed_at"`
}

// DeliveryFailed reports whether suggestion delivery ended in the failed
// response shape.
func (r *ProcessingReport) DeliveryFailed() bool {
	if r == nil || r.BackendResponse == nil {
		return false
	}
	status, _ := r.BackendResponse["status"].(string)
	return status == DeliveryStatusFailed
}

// DeliveryStatusFailed marks a suggestion delivery that could not be sent.
const DeliveryStatusFailed = "failed"
