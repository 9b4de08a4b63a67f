package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/opsguardian/ticket-triage/internal/domain"
)

// MaxSuggestions caps every suggestion list returned by the extractor.
const MaxSuggestions = 6

// minSuggestionLineLen drops headings and stray tokens in line mode.
const minSuggestionLineLen = 6

var (
	jsonArrayRe  = regexp.MustCompile(`(?s)\[.*?\]`)
	jsonObjectRe = regexp.MustCompile(`(?s)\{.*?\}`)

	priorityTokenRe = regexp.MustCompile(`(?i)\b(P0|P1|P2|P3)\b`)
	categoryTokenRe = regexp.MustCompile(`(?i)\b(Database|Network|Application|Access|Security|Payments|Performance|Other|General)\b`)

	lineSplitRe    = regexp.MustCompile(`\r?\n`)
	bulletPrefixRe = regexp.MustCompile(`^\s*[-*\d.):]+\s*`)
	promptEchoRe   = regexp.MustCompile(`(?i)^(suggestions|return only)`)
)

// Categories is the vocabulary recognised by the regex fallback, in its
// canonical spelling.
var Categories = []string{
	"Database", "Network", "Application", "Access", "Security",
	"Payments", "Performance", "Other", "General",
}

// Classification is what the extractor could recover from a reply. Either
// field may be nil.
type Classification struct {
	Priority *domain.Priority
	Category *string
}

// Usable reports whether at least one field was recovered.
func (c *Classification) Usable() bool {
	return c != nil && (c.Priority != nil || c.Category != nil)
}

// Extractor recovers typed results from normalized reply text.
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor builds an Extractor. A nil logger is replaced by a nop logger.
func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

var defaultExtractor = NewExtractor(nil)

// ExtractClassification is the package-level form of Extractor.ExtractClassification.
func ExtractClassification(text string) *Classification {
	return defaultExtractor.ExtractClassification(text)
}

// ExtractSuggestions is the package-level form of Extractor.ExtractSuggestions.
func ExtractSuggestions(text string) []string {
	return defaultExtractor.ExtractSuggestions(text)
}

// ExtractClassification looks for priority and category in text: first as a
// whole JSON object, then as an embedded JSON object, then as loose tokens.
// It returns nil when nothing was found.
func (e *Extractor) ExtractClassification(text string) (result *Classification) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Debug("classification extraction recovered", zap.Any("panic", r))
			result = nil
		}
	}()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if c, ok := classificationFromJSON(text); ok {
		e.logger.Debug("classification parsed from whole reply")
		return c
	}

	for _, candidate := range embeddedJSON(text) {
		if c, ok := classificationFromJSON(candidate); ok {
			e.logger.Debug("classification parsed from embedded json", zap.String("candidate", preview(candidate, 200)))
			return c
		}
	}

	priorityMatch := priorityTokenRe.FindStringSubmatch(text)
	categoryMatch := categoryTokenRe.FindStringSubmatch(text)
	if priorityMatch == nil && categoryMatch == nil {
		return nil
	}

	c := &Classification{}
	if priorityMatch != nil {
		if p, ok := domain.ParsePriority(priorityMatch[1]); ok {
			c.Priority = &p
		}
	}
	if categoryMatch != nil {
		category := canonicalCategory(categoryMatch[1])
		c.Category = &category
	}
	e.logger.Debug("classification recovered from tokens")
	return c
}

// ExtractSuggestions recovers at most MaxSuggestions distinct suggestions
// from text. It never returns nil.
func (e *Extractor) ExtractSuggestions(text string) (out []string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Debug("suggestion extraction recovered", zap.Any("panic", r))
			out = []string{}
		}
	}()

	text = strings.TrimSpace(text)
	if text == "" {
		return []string{}
	}

	if items, ok := suggestionsFromJSON(text); ok {
		e.logger.Debug("suggestions parsed from whole reply", zap.Int("count", len(items)))
		return dedupAndCap(items)
	}

	for _, candidate := range embeddedJSON(text) {
		if items, ok := suggestionsFromJSON(candidate); ok {
			e.logger.Debug("suggestions parsed from embedded json", zap.Int("count", len(items)))
			return dedupAndCap(items)
		}
	}

	var candidates []string
	for _, line := range lineSplitRe.Split(text, -1) {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) < minSuggestionLineLen {
			continue
		}
		line = strings.TrimSpace(bulletPrefixRe.ReplaceAllString(line, ""))
		if line == "" || promptEchoRe.MatchString(line) {
			continue
		}
		candidates = append(candidates, line)
	}
	if len(candidates) == 0 {
		e.logger.Warn("could not extract suggestions from reply")
	}
	return dedupAndCap(candidates)
}

// embeddedJSON returns the JSON-looking spans of text, array first. Array
// shaped output is expected for suggestions and object shaped output for
// classification, so each caller keeps the first candidate of its shape.
func embeddedJSON(text string) []string {
	var out []string
	if m := jsonArrayRe.FindString(text); m != "" {
		out = append(out, m)
	}
	if m := jsonObjectRe.FindString(text); m != "" {
		out = append(out, m)
	}
	return out
}

func classificationFromJSON(text string) (*Classification, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil || obj == nil {
		return nil, false
	}
	rawPriority, hasPriority := obj["priority"]
	rawCategory, hasCategory := obj["category"]
	if !hasPriority && !hasCategory {
		return nil, false
	}

	c := &Classification{}
	if s := scalarString(rawPriority); s != "" {
		if p, ok := domain.ParsePriority(s); ok {
			c.Priority = &p
		}
	}
	if s := scalarString(rawCategory); s != "" {
		c.Category = &s
	}
	return c, true
}

func suggestionsFromJSON(text string) ([]string, bool) {
	var arr []any
	if err := json.Unmarshal([]byte(text), &arr); err != nil {
		return nil, false
	}
	items := make([]string, 0, len(arr))
	for _, el := range arr {
		if s := strings.TrimSpace(elementString(el)); s != "" {
			items = append(items, s)
		}
	}
	return items, true
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func elementString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64, bool:
		return fmt.Sprint(t)
	default:
		encoded, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(encoded)
	}
}

func canonicalCategory(token string) string {
	for _, c := range Categories {
		if strings.EqualFold(c, token) {
			return c
		}
	}
	return token
}

func dedupAndCap(items []string) []string {
	out := make([]string, 0, min(len(items), MaxSuggestions))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
		if len(out) == MaxSuggestions {
			break
		}
	}
	return out
}
