package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/opsguardian/ticket-triage/internal/domain"
	apperrors "github.com/opsguardian/ticket-triage/pkg/util/errorutil"
)

// DefaultBaseURL is used when no backend URL is configured.
const DefaultBaseURL = "http://localhost:8080/api"

// RESTConfig configures the REST ticket backend client.
type RESTConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// RESTClient talks to a ticket backend exposing the /api/tickets contract.
type RESTClient struct {
	base   string
	http   *http.Client
	logger *zap.Logger
}

// NewRESTClient builds a client. The base URL always ends with a slash.
func NewRESTClient(cfg RESTConfig, logger *zap.Logger) *RESTClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &RESTClient{
		base:   strings.TrimRight(base, "/") + "/",
		http:   client,
		logger: logger,
	}
}

// BaseURL returns the normalized base URL.
func (c *RESTClient) BaseURL() string {
	return c.base
}

// GetTicket fetches one ticket. A 404 becomes a NOT_FOUND error.
func (c *RESTClient) GetTicket(ctx context.Context, id int64) (map[string]any, error) {
	var out map[string]any
	status, err := c.do(ctx, http.MethodGet, fmt.Sprintf("tickets/%d", id), nil, &out)
	if status == http.StatusNotFound {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListTickets lists tickets, optionally filtered by status.
func (c *RESTClient) ListTickets(ctx context.Context, status string) ([]map[string]any, error) {
	path := "tickets"
	if status = strings.TrimSpace(status); status != "" {
		path += "?" + url.Values{"status": {status}}.Encode()
	}
	var out []map[string]any
	if _, err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateTicket writes the classification fields back.
func (c *RESTClient) UpdateTicket(ctx context.Context, id int64, update domain.TicketUpdate) (map[string]any, error) {
	var out map[string]any
	status, err := c.do(ctx, http.MethodPut, fmt.Sprintf("tickets/%d", id), update, &out)
	if status == http.StatusNotFound {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddSuggestions posts to the dedicated suggestions endpoint.
func (c *RESTClient) AddSuggestions(ctx context.Context, id int64, payload domain.SuggestionsPayload) (map[string]any, error) {
	return c.Post(ctx, fmt.Sprintf("tickets/%d/suggestions", id), payload)
}

// Post sends payload to a path relative to the base URL. A non-object
// response body is returned under "data".
func (c *RESTClient) Post(ctx context.Context, path string, payload any) (map[string]any, error) {
	var out any
	if _, err := c.do(ctx, http.MethodPost, strings.TrimLeft(path, "/"), payload, &out); err != nil {
		return nil, err
	}
	switch v := out.(type) {
	case map[string]any:
		return v, nil
	case nil:
		return map[string]any{}, nil
	default:
		return map[string]any{"data": v}, nil
	}
}

func (c *RESTClient) do(ctx context.Context, method, path string, body, result any) (int, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, apperrors.NewUpstreamError(http.StatusBadGateway, "ticket backend unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, apperrors.NewUpstreamError(http.StatusBadGateway, "read ticket backend response", err)
	}
	c.logger.Debug("ticket backend call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, apperrors.NewUpstreamError(resp.StatusCode,
			fmt.Sprintf("%s %s returned %d", method, path, resp.StatusCode),
			errors.New(snippet(data)))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return resp.StatusCode, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(result); err != nil {
		return resp.StatusCode, apperrors.NewUpstreamError(http.StatusBadGateway, "decode ticket backend response", err)
	}
	return resp.StatusCode, nil
}

func snippet(data []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(data))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
