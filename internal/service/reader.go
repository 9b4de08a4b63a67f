package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/opsguardian/ticket-triage/internal/domain"
	apperrors "github.com/opsguardian/ticket-triage/pkg/util/errorutil"
)

// JSONSource is any value that can produce a decoded JSON object, such as a
// wrapped HTTP response.
type JSONSource interface {
	JSON() (map[string]any, error)
}

var (
	idKeys          = []string{"id", "ticketId", "ticket_id"}
	titleKeys       = []string{"title", "subject"}
	descriptionKeys = []string{"description", "body"}
	reporterKeys    = []string{"reporter", "createdBy", "reporterEmail"}
)

// ReadTicket builds the canonical ticket view from a raw ticket value. A
// nested "ticket" object is unwrapped. Each field takes the first non-empty
// alias.
func ReadTicket(raw any) (domain.NormalizedTicket, error) {
	m, err := ticketMapping(raw)
	if err != nil {
		return domain.NormalizedTicket{}, err
	}
	if inner, ok := m["ticket"].(map[string]any); ok {
		m = inner
	}

	t := domain.NormalizedTicket{
		ID:          parseID(firstPresent(m, idKeys)),
		Title:       stringField(firstPresent(m, titleKeys)),
		Description: stringField(firstPresent(m, descriptionKeys)),
		Reporter:    stringField(firstPresent(m, reporterKeys)),
		Status:      stringField(m["status"]),
		Raw:         m,
	}
	if t.Status == "" {
		t.Status = string(domain.TicketStatusOpen)
	}
	if p, ok := domain.ParsePriority(stringField(m["priority"])); ok {
		t.Priority = &p
	}
	if category := strings.TrimSpace(stringField(m["category"])); category != "" {
		t.Category = &category
	}
	return t, nil
}

func ticketMapping(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, apperrors.NewInvalidInput("ticket input is empty", nil)
	case map[string]any:
		if v == nil {
			return nil, apperrors.NewInvalidInput("ticket input is empty", nil)
		}
		return v, nil
	case domain.Ticket:
		return ticketToMap(&v)
	case *domain.Ticket:
		if v == nil {
			return nil, apperrors.NewInvalidInput("ticket input is empty", nil)
		}
		return ticketToMap(v)
	case json.RawMessage:
		return decodeObject(v)
	case []byte:
		return decodeObject(v)
	case string:
		return decodeObject([]byte(v))
	case *http.Response:
		if v == nil || v.Body == nil {
			return nil, apperrors.NewInvalidInput("ticket response has no body", nil)
		}
		defer v.Body.Close()
		body, err := io.ReadAll(v.Body)
		if err != nil {
			return nil, apperrors.NewInvalidInput("read ticket response", map[string]any{"error": err.Error()})
		}
		return decodeObject(body)
	case JSONSource:
		m, err := v.JSON()
		if err != nil {
			return nil, apperrors.NewInvalidInput("decode ticket source", map[string]any{"error": err.Error()})
		}
		if m == nil {
			return nil, apperrors.NewInvalidInput("ticket input is empty", nil)
		}
		return m, nil
	default:
		return nil, apperrors.NewInvalidInput("unsupported ticket input", map[string]any{"type": fmt.Sprintf("%T", raw)})
	}
}

func decodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil || m == nil {
		details := map[string]any{}
		if err != nil {
			details["error"] = err.Error()
		}
		return nil, apperrors.NewInvalidInput("ticket input is not a JSON object", details)
	}
	return m, nil
}

func ticketToMap(t *domain.Ticket) (map[string]any, error) {
	encoded, err := json.Marshal(t)
	if err != nil {
		return nil, apperrors.NewInvalidInput("encode ticket", map[string]any{"error": err.Error()})
	}
	return decodeObject(encoded)
}

func firstPresent(m map[string]any, keys []string) any {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || isEmptyValue(v) {
			continue
		}
		return v
	}
	return nil
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	case float64:
		return t == 0
	case int:
		return t == 0
	case int64:
		return t == 0
	case bool:
		return !t
	}
	return false
}

func parseID(v any) *int64 {
	var id int64
	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return nil
		}
		id = n
	case float64:
		if t != math.Trunc(t) {
			return nil
		}
		id = int64(t)
	case int:
		id = int64(t)
	case int64:
		id = t
	case int32:
		id = int64(t)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return nil
		}
		id = n
	default:
		return nil
	}
	return &id
}

func stringField(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
