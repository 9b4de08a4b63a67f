package llm

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var (
	codeFenceRe     = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	assignWrapperRe = regexp.MustCompile(`(?s)^\s*[A-Za-z_]\w*\s*=\s*(?:"""|''')(.*?)(?:"""|''')?\s*$`)
	leadingTripleRe = regexp.MustCompile(`^(?:"""|''')`)
	trailingTriple  = regexp.MustCompile(`(?:"""|''')$`)
)

// textKeys are probed in order when a reply arrives as a mapping.
var textKeys = []string{"text", "content", "output", "message", "result"}

// listKeys hold nested reply parts.
var listKeys = []string{"candidates", "items"}

// Normalizer turns any model reply shape into plain text.
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer builds a Normalizer. A nil logger is replaced by a nop logger.
func NewNormalizer(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

var defaultNormalizer = NewNormalizer(nil)

// Normalize coerces raw into text and strips code fences and quoting
// wrappers. It never panics.
func Normalize(raw any) string {
	return defaultNormalizer.Normalize(raw)
}

// Normalize coerces raw into text and strips code fences and quoting
// wrappers. It never panics.
func (n *Normalizer) Normalize(raw any) (text string) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Debug("normalize recovered", zap.Any("panic", r))
			text = strings.TrimSpace(fmt.Sprintf("%#v", raw))
		}
	}()
	return n.StripWrappers(Coerce(raw))
}

// Coerce flattens a reply of arbitrary shape into a string.
func Coerce(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(v, &decoded); err != nil {
			return string(v)
		}
		return Coerce(decoded)
	case map[string]any:
		return coerceMap(v)
	case []any:
		return joinParts(len(v), func(i int) any { return v[i] })
	case []string:
		return joinParts(len(v), func(i int) any { return v[i] })
	}

	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return ""
		}
		if s, ok := raw.(fmt.Stringer); ok {
			return s.String()
		}
		return Coerce(rv.Elem().Interface())
	case reflect.Map:
		if m, ok := toStringMap(rv); ok {
			return coerceMap(m)
		}
	case reflect.Slice, reflect.Array:
		return joinParts(rv.Len(), func(i int) any { return rv.Index(i).Interface() })
	case reflect.Struct:
		if s, ok := raw.(fmt.Stringer); ok {
			return s.String()
		}
		if m, ok := structToMap(raw); ok {
			return coerceMap(m)
		}
	}
	return fmt.Sprint(raw)
}

func coerceMap(m map[string]any) string {
	for _, key := range textKeys {
		if s, ok := m[key].(string); ok {
			return s
		}
	}
	for _, key := range listKeys {
		if list, ok := m[key]; ok && isList(list) {
			return Coerce(list)
		}
	}
	encoded, err := json.Marshal(m)
	if err != nil {
		return fmt.Sprint(m)
	}
	return string(encoded)
}

func joinParts(n int, at func(int) any) string {
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if part := Coerce(at(i)); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "\n")
}

func isList(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.([]byte); ok {
		return false
	}
	kind := reflect.ValueOf(v).Kind()
	return kind == reflect.Slice || kind == reflect.Array
}

func toStringMap(rv reflect.Value) (map[string]any, bool) {
	if rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func structToMap(v any) (map[string]any, bool) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(encoded, &m); err != nil {
		return nil, false
	}
	return m, true
}

// StripWrappers removes a surrounding code fence, a name = """...""" style
// assignment and stray triple quotes.
func (n *Normalizer) StripWrappers(text string) string {
	if text == "" {
		return ""
	}
	original := text
	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	if m := assignWrapperRe.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	text = leadingTripleRe.ReplaceAllString(text, "")
	text = trailingTriple.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if text != original {
		n.logger.Debug("stripped reply wrapper",
			zap.String("before", preview(original, 200)),
			zap.String("after", preview(text, 200)))
	}
	return text
}

// StripWrappers applies the wrapper rules without logging.
func StripWrappers(text string) string {
	return defaultNormalizer.StripWrappers(text)
}

func preview(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", `\n`)
	if len(s) <= max {
		return s
	}
	return s[:max]
}
