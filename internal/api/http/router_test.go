package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsguardian/ticket-triage/internal/api/http/handlers"
	"github.com/opsguardian/ticket-triage/internal/auth"
	"github.com/opsguardian/ticket-triage/internal/backend"
	"github.com/opsguardian/ticket-triage/internal/observability"
	"github.com/opsguardian/ticket-triage/internal/persistence"
	"github.com/opsguardian/ticket-triage/internal/repository"
	"github.com/opsguardian/ticket-triage/internal/service"
	"github.com/opsguardian/ticket-triage/internal/worker"
)

type testServer struct {
	app     *fiber.App
	tokens  *auth.TokenManager
	metrics *observability.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	metrics := observability.NewMetrics()
	tickets := service.NewTicketService(service.TicketDependencies{TicketRepo: repository.NewMemoryTicketRepository()})
	store := backend.NewStoreBackend(tickets, nil)
	triage := service.NewTriageService(service.TriageDependencies{
		Backend: store,
		Reports: repository.NewMemoryReportRepository(),
		Metrics: metrics,
	})
	batch := worker.NewBatchRunner(worker.BatchDependencies{Lister: store, Processor: triage})
	tokens := auth.NewTokenManager("test-secret", 5)

	app := fiber.New()
	RegisterMiddlewares(app, nil, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("ticket-triage", "test", (*persistence.Postgres)(nil), &persistence.Redis{}),
		Metrics:        handlers.NewMetricsHandler(metrics),
		Tickets:        handlers.NewTicketsHandler(tickets),
		Triage:         handlers.NewTriageHandler(triage, batch),
		Auth:           handlers.NewAuthHandler(tokens),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})
	return &testServer{app: app, tokens: tokens, metrics: metrics}
}

func (s *testServer) token(t *testing.T, scopes ...auth.Scope) string {
	t.Helper()
	token, _, err := s.tokens.GenerateToken("test", scopes...)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, body, token string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	} else if len(raw) > 0 {
		var list []any
		require.NoError(t, json.Unmarshal(raw, &list))
		out["list"] = list
	}
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHealthReportsDisabledDependencies(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"postgres": "disabled", "redis": "disabled"}, body["dependencies"])

	status, body = s.do(t, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])
}

func TestTicketLifecycle(t *testing.T) {
	s := newTestServer(t)

	status, created := s.do(t, http.MethodPost, "/api/tickets", `{"id": 99, "title": "Payment gateway timeout", "reporter": "a@example.com"}`, "")
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, float64(1), created["id"])
	assert.Equal(t, "OPEN", created["status"])

	status, got := s.do(t, http.MethodGet, "/api/tickets/1", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Payment gateway timeout", got["title"])

	status, updated := s.do(t, http.MethodPut, "/api/tickets/1", `{"priority": "P1", "status": null}`, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "P1", updated["priority"])
	assert.Equal(t, "OPEN", updated["status"])

	status, listed := s.do(t, http.MethodGet, "/api/tickets?query=gateway", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, listed["list"], 1)

	status, listed = s.do(t, http.MethodGet, "/api/tickets?status=CLOSED", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, listed["list"], 0)

	status, assigned := s.do(t, http.MethodPost, "/api/tickets/1/assign", `{"team": "payments"}`, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "assigned", assigned["status"])

	status, applied := s.do(t, http.MethodPost, "/api/tickets/1/apply-suggestion", `{"suggestion": "restart"}`, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "applied", applied["status"])
}

func TestTicketErrors(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/api/tickets/5", "", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	status, body = s.do(t, http.MethodGet, "/api/tickets/abc", "", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = s.do(t, http.MethodPost, "/api/tickets", `{"title": ""}`, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = s.do(t, http.MethodGet, "/nowhere", "", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestAddSuggestionsPayloadShapes(t *testing.T) {
	s := newTestServer(t)
	status, _ := s.do(t, http.MethodPost, "/api/tickets", `{"title": "API errors"}`, "")
	require.Equal(t, http.StatusCreated, status)

	status, body := s.do(t, http.MethodPost, "/api/tickets/1/suggestions", `["Check logs"]`, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, _ = s.do(t, http.MethodPost, "/api/tickets/1/suggestions", `{"suggestions": ["Check logs", "Roll back"]}`, "")
	require.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodPost, "/api/tickets/1/suggestions", `{"suggestion": "Page on-call"}`, "")
	require.Equal(t, http.StatusOK, status)
	ticket := body["ticket"].(map[string]any)
	assert.Equal(t, []any{"Check logs", "Roll back", "Page on-call"}, ticket["suggestions"])
	assert.Equal(t, "OPEN", ticket["status"])

	status, body = s.do(t, http.MethodPost, "/api/tickets/1/suggestions", `{"suggestions": []}`, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, map[string]any{"status": "error", "reason": "no suggestions found in payload"}, body)

	status, body = s.do(t, http.MethodPost, "/api/tickets/9/suggestions", `["x"]`, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestTriageRequiresToken(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/triage/tickets/1", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, body = s.do(t, http.MethodPost, "/triage/tickets/1", "", s.token(t, auth.ScopeReports))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))
}

func TestTriageTicketAndReport(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, auth.ScopeTriage)
	status, _ := s.do(t, http.MethodPost, "/api/tickets", `{"title": "Payment gateway timeout", "description": "checkout fails"}`, "")
	require.Equal(t, http.StatusCreated, status)

	status, body := s.do(t, http.MethodPost, "/triage/tickets/1", "", token)
	require.Equal(t, http.StatusOK, status)
	summary := body["summary"].(map[string]any)
	assert.Equal(t, "P0", summary["priority"])
	assert.Equal(t, "Payments", summary["category"])
	assert.Equal(t, "ASSIGNED", summary["status"])
	assert.Equal(t, false, summary["classified_by_model"])
	assert.Len(t, summary["suggestions"], 3)

	status, ticket := s.do(t, http.MethodGet, "/api/tickets/1", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ASSIGNED", ticket["status"])
	assert.Len(t, ticket["suggestions"], 3)

	status, report := s.do(t, http.MethodGet, "/triage/reports/1", "", s.token(t, auth.ScopeReports))
	require.Equal(t, http.StatusOK, status)
	data := report["data"].(map[string]any)
	assert.Equal(t, summary["run_id"], data["run_id"])

	status, body = s.do(t, http.MethodGet, "/triage/reports/2", "", token)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	snapshot := s.metrics.Snapshot()
	assert.Equal(t, int64(1), snapshot.Tasks["classify|heuristic"])
	assert.Equal(t, int64(1), snapshot.Deliveries[service.DeliveryEndpoint])
}

func TestTriageRawTicket(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, auth.ScopeTriage)
	status, _ := s.do(t, http.MethodPost, "/api/tickets", `{"title": "VPN down"}`, "")
	require.Equal(t, http.StatusCreated, status)

	status, body := s.do(t, http.MethodPost, "/triage", `{"ticket": {"ticketId": 1, "subject": "VPN down", "status": "OPEN"}}`, token)
	require.Equal(t, http.StatusOK, status)
	summary := body["summary"].(map[string]any)
	assert.Equal(t, "Network", summary["category"])
	assert.Equal(t, float64(1), summary["ticket_id"])

	status, body = s.do(t, http.MethodPost, "/triage", `{"title": "no id"}`, token)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_INPUT", errorCode(body))

	status, body = s.do(t, http.MethodPost, "/triage", `not json`, token)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_INPUT", errorCode(body))
}

func TestBatchAndTokenEndpointsNeedAdmin(t *testing.T) {
	s := newTestServer(t)
	for _, title := range []string{"Disk full", "Printer jammed"} {
		status, _ := s.do(t, http.MethodPost, "/api/tickets", `{"title": "`+title+`"}`, "")
		require.Equal(t, http.StatusCreated, status)
	}

	status, _ := s.do(t, http.MethodPost, "/triage/batch", `{}`, s.token(t, auth.ScopeTriage))
	assert.Equal(t, http.StatusForbidden, status)

	admin := s.token(t, auth.ScopeAdmin)
	status, body := s.do(t, http.MethodPost, "/triage/batch", `{"status": "OPEN"}`, admin)
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(2), data["processed"])
	assert.Equal(t, float64(2), data["classified_by_heuristic"])

	status, body = s.do(t, http.MethodPost, "/auth/tokens", `{"subject": "runner", "scopes": ["triage"]}`, admin)
	require.Equal(t, http.StatusCreated, status)
	issued := body["data"].(map[string]any)["token"].(string)
	claims, err := s.tokens.ParseToken(issued)
	require.NoError(t, err)
	assert.Equal(t, "runner", claims.Subject)
	assert.Equal(t, []auth.Scope{auth.ScopeTriage}, claims.Scopes())

	status, _ = s.do(t, http.MethodPost, "/auth/tokens", `{"subject": "runner"}`, s.token(t, auth.ScopeTriage))
	assert.Equal(t, http.StatusForbidden, status)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/health/live", "", "")

	status, body := s.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "requests")
}
