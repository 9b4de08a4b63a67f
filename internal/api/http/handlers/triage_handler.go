package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/opsguardian/ticket-triage/internal/api/dto"
	"github.com/opsguardian/ticket-triage/internal/service"
	"github.com/opsguardian/ticket-triage/internal/worker"
	apperrors "github.com/opsguardian/ticket-triage/pkg/util/errorutil"
)

// TriageHandler exposes the triage pipeline over HTTP.
type TriageHandler struct {
	triage *service.TriageService
	batch  *worker.BatchRunner
}

// NewTriageHandler constructs handler. batch may be nil, which disables the
// batch endpoint.
func NewTriageHandler(triage *service.TriageService, batch *worker.BatchRunner) *TriageHandler {
	return &TriageHandler{triage: triage, batch: batch}
}

// ProcessTicket POST /triage/tickets/:id.
func (h *TriageHandler) ProcessTicket(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	report, err := h.triage.ProcessID(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report, "summary": dto.NewTriageSummary(report)})
}

// ProcessRaw POST /triage with a ticket JSON body.
func (h *TriageHandler) ProcessRaw(c *fiber.Ctx) error {
	body := append([]byte(nil), c.Body()...)
	report, err := h.triage.Process(c.UserContext(), json.RawMessage(body))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report, "summary": dto.NewTriageSummary(report)})
}

// GetReport GET /triage/reports/:id.
func (h *TriageHandler) GetReport(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	report, err := h.triage.Report(c.UserContext(), id)
	if err != nil {
		return ticketReportError(err, id)
	}
	return c.JSON(fiber.Map{"data": report})
}

// RunBatch POST /triage/batch.
func (h *TriageHandler) RunBatch(c *fiber.Ctx) error {
	if h.batch == nil {
		return fiber.NewError(http.StatusNotImplemented, "batch runs are not enabled")
	}
	var req dto.BatchRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	summary, err := h.batch.Run(c.UserContext(), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}

func ticketReportError(err error, id int64) error {
	de := apperrors.ToDomainError(err)
	if de.Code == "NOT_FOUND" {
		return apperrors.NewNotFound("report", map[string]any{"ticket_id": id})
	}
	return err
}
