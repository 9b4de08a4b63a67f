package dto

import "github.com/opsguardian/ticket-triage/internal/domain"

// CreateTicketRequest payload. A client supplied id is ignored.
type CreateTicketRequest struct {
	ID          *int64 `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Reporter    string `json:"reporter"`
	Priority    string `json:"priority"`
	Category    string `json:"category"`
	Status      string `json:"status"`
}

// UpdateTicketRequest payload. Absent or null fields are left unchanged.
type UpdateTicketRequest struct {
	Priority *string `json:"priority"`
	Category *string `json:"category"`
	Status   *string `json:"status"`
}

// ToUpdate converts the request to a domain update.
func (r UpdateTicketRequest) ToUpdate() domain.TicketUpdate {
	return domain.TicketUpdate{Priority: r.Priority, Category: r.Category, Status: r.Status}
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	Team string `json:"team"`
}

// SuggestionsResponse is returned once suggestions are stored.
type SuggestionsResponse struct {
	Status string         `json:"status"`
	Ticket *domain.Ticket `json:"ticket"`
}

// StatusResponse is a bare acknowledgement.
type StatusResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}
