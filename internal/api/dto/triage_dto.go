package dto

import "github.com/opsguardian/ticket-triage/internal/domain"

// BatchRequest payload for a batch run.
type BatchRequest struct {
	Status string `json:"status"`
}

// TriageSummary is the short form of a processing report.
type TriageSummary struct {
	RunID                string   `json:"run_id"`
	TicketID             int64    `json:"ticket_id"`
	Priority             string   `json:"priority,omitempty"`
	Category             string   `json:"category,omitempty"`
	Status               string   `json:"status,omitempty"`
	ClassifiedByModel    bool     `json:"classified_by_model"`
	SuggestionsFromModel bool     `json:"suggestions_from_model"`
	Suggestions          []string `json:"suggestions"`
	DeliveryFailed       bool     `json:"delivery_failed"`
}

// NewTriageSummary condenses a report.
func NewTriageSummary(report *domain.ProcessingReport) TriageSummary {
	summary := TriageSummary{
		RunID:                report.RunID,
		Priority:             string(report.Classification.PriorityValue()),
		Category:             report.Classification.CategoryValue(),
		ClassifiedByModel:    report.Classification.UsedModel,
		SuggestionsFromModel: report.Suggestions.UsedModel,
		Suggestions:          report.Suggestions.Suggestions,
		DeliveryFailed:       report.DeliveryFailed(),
	}
	if report.Normalized.ID != nil {
		summary.TicketID = *report.Normalized.ID
	}
	if status, ok := report.ResolverUpdate["status"].(string); ok {
		summary.Status = status
	}
	return summary
}
