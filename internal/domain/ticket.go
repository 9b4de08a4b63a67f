package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusTriaged    TicketStatus = "TRIAGED"
	TicketStatusAssigned   TicketStatus = "ASSIGNED"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// IsTerminal reports whether the status must never be re-triaged.
func (s TicketStatus) IsTerminal() bool {
	switch TicketStatus(strings.ToUpper(strings.TrimSpace(string(s)))) {
	case TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// Priority enumerates triage urgency, P0 being the most urgent.
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// ParsePriority accepts P0..P3 in any case.
func ParsePriority(s string) (Priority, bool) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case PriorityP0, PriorityP1, PriorityP2, PriorityP3:
		return p, true
	}
	return "", false
}

// IsUrgent is true for priorities that get a ticket assigned right away.
func (p Priority) IsUrgent() bool {
	return p == PriorityP0 || p == PriorityP1
}

// Ticket is the record kept by the ticket backend.
type Ticket struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Reporter    string       `json:"reporter"`
	Priority    string       `json:"priority,omitempty"`
	Category    string       `json:"category,omitempty"`
	Status      TicketStatus `json:"status"`
	CreatedAt   time.Time    `json:"createdAt"`
	Suggestions []string     `json:"suggestions"`
}

// TicketUpdate carries the fields written back after classification.
// Nil fields are left untouched.
type TicketUpdate struct {
	Priority *string `json:"priority"`
	Category *string `json:"category"`
	Status   *string `json:"status"`
}
