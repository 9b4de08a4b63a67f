package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/opsguardian/ticket-triage/internal/api/dto"
	"github.com/opsguardian/ticket-triage/internal/repository"
	"github.com/opsguardian/ticket-triage/internal/service"
	apperrors "github.com/opsguardian/ticket-triage/pkg/util/errorutil"
)

// TicketsHandler serves the ticket backend API. Responses are bare ticket
// objects so REST clients can read them without unwrapping.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	tickets, err := h.service.ListTickets(c.UserContext(), service.TicketListFilter{
		Query:  c.Query("query"),
		Status: c.Query("status"),
		Limit:  parseInt(c.Query("limit"), 0),
		Offset: parseInt(c.Query("offset"), 0),
	})
	if err != nil {
		return err
	}
	return c.JSON(tickets)
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Reporter:    req.Reporter,
		Priority:    req.Priority,
		Category:    req.Category,
		Status:      req.Status,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(ticket)
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), id)
	if err != nil {
		return ticketError(err, id)
	}
	return c.JSON(ticket)
}

// UpdateTicket PUT /api/tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.UpdateTicket(c.UserContext(), id, req.ToUpdate())
	if err != nil {
		return ticketError(err, id)
	}
	return c.JSON(ticket)
}

// AddSuggestions POST /api/tickets/:id/suggestions.
func (h *TicketsHandler) AddSuggestions(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	suggestions, err := service.ExtractSuggestions(c.Body())
	if err == nil {
		ticket, addErr := h.service.AddSuggestions(c.UserContext(), id, suggestions)
		if addErr == nil {
			return c.JSON(dto.SuggestionsResponse{Status: "ok", Ticket: ticket})
		}
		err = addErr
	}
	if errors.Is(err, service.ErrNoSuggestions) {
		return c.Status(http.StatusBadRequest).JSON(dto.StatusResponse{Status: "error", Reason: err.Error()})
	}
	return ticketError(err, id)
}

// AssignTicket POST /api/tickets/:id/assign.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	if _, err := h.service.AssignTicket(c.UserContext(), id, req.Team); err != nil {
		return ticketError(err, id)
	}
	return c.JSON(dto.StatusResponse{Status: "assigned"})
}

// ApplySuggestion POST /api/tickets/:id/apply-suggestion.
func (h *TicketsHandler) ApplySuggestion(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	request := map[string]any{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&request); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	if err := h.service.ApplySuggestion(c.UserContext(), id, request); err != nil {
		return ticketError(err, id)
	}
	return c.JSON(dto.StatusResponse{Status: "applied"})
}

func ticketID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, apperrors.NewValidationError("ticket id must be an integer", map[string]any{"id": c.Params("id")})
	}
	return id, nil
}

func ticketError(err error, id int64) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	return err
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}
