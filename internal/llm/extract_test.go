package llm

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func priorityOf(c *Classification) string {
	if c == nil || c.Priority == nil {
		return ""
	}
	return string(*c.Priority)
}

func categoryOf(c *Classification) string {
	if c == nil || c.Category == nil {
		return ""
	}
	return *c.Category
}

func TestExtractClassificationEmbedded(t *testing.T) {
	payload := `{"priority":"P1","category":"Network"}`
	inputs := map[string]string{
		"bare":            payload,
		"prose around":    "Sure! Here is the result: " + payload + " Let me know.",
		"fenced":          "```json\n" + payload + "\n```",
		"fenced in prose": "Classification below\n```json\n" + payload + "\n```\nDone.",
		"bracket noise":   "Notes [see runbook] then " + payload,
	}

	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			c := ExtractClassification(Normalize(raw))
			require.NotNil(t, c)
			assert.Equal(t, "P1", priorityOf(c))
			assert.Equal(t, "Network", categoryOf(c))
		})
	}
}

func TestExtractClassificationFencedReply(t *testing.T) {
	c := ExtractClassification(Normalize("```json\n{\"priority\":\"P2\",\"category\":\"General\"}\n```"))

	require.NotNil(t, c)
	assert.True(t, c.Usable())
	assert.Equal(t, "P2", priorityOf(c))
	assert.Equal(t, "General", categoryOf(c))
}

func TestExtractClassificationPartialFields(t *testing.T) {
	c := ExtractClassification(`{"priority":"urgent","category":"  Database "}`)
	require.NotNil(t, c)
	assert.Nil(t, c.Priority)
	assert.Equal(t, "Database", categoryOf(c))

	c = ExtractClassification(`{"priority":"p3"}`)
	require.NotNil(t, c)
	assert.Equal(t, "P3", priorityOf(c))
	assert.Nil(t, c.Category)
}

func TestExtractClassificationTokens(t *testing.T) {
	c := ExtractClassification("I would rate this p0, likely a SECURITY issue, maybe p1")
	require.NotNil(t, c)
	assert.Equal(t, "P0", priorityOf(c))
	assert.Equal(t, "Security", categoryOf(c))

	c = ExtractClassification("category is performance")
	require.NotNil(t, c)
	assert.Nil(t, c.Priority)
	assert.Equal(t, "Performance", categoryOf(c))
}

func TestExtractClassificationNothingFound(t *testing.T) {
	assert.Nil(t, ExtractClassification(""))
	assert.Nil(t, ExtractClassification("   "))
	assert.Nil(t, ExtractClassification("no idea what this is"))
	assert.Nil(t, ExtractClassification(`{"severity":"high"}`))
}

func TestExtractSuggestionsNumberedLines(t *testing.T) {
	got := ExtractSuggestions(Normalize("1) Check logs\n2) Check logs\n3) Restart service"))

	if diff := cmp.Diff([]string{"Check logs", "Restart service"}, got); diff != "" {
		t.Fatalf("suggestions mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractSuggestionsDedupAndCap(t *testing.T) {
	raw := `["a1 step","a1 step","b2 step","c3 step","b2 step","d4 step","e5 step","f6 step","g7 step","h8 step"]`

	got := ExtractSuggestions(raw)

	want := []string{"a1 step", "b2 step", "c3 step", "d4 step", "e5 step", "f6 step"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("suggestions mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractSuggestionsCapOnEveryPath(t *testing.T) {
	var lines string
	for i := 0; i < 10; i++ {
		lines += fmt.Sprintf("- suggestion number %d\n", i)
	}
	assert.Len(t, ExtractSuggestions(lines), MaxSuggestions)

	embedded := `Here you go: ["one","two","three","four","five","six","seven","eight"] hope it helps`
	got := ExtractSuggestions(embedded)
	assert.Len(t, got, MaxSuggestions)
	assert.Equal(t, "one", got[0])
}

func TestExtractSuggestionsArrayElements(t *testing.T) {
	got := ExtractSuggestions(`["  Check disk  ", "", 3, {"step":"rotate"}]`)

	want := []string{"Check disk", "3", `{"step":"rotate"}`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("suggestions mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractSuggestionsLineFilters(t *testing.T) {
	text := "Suggestions:\nok\n* Restart the worker pool\nReturn only JSON please\n\n- Rotate credentials"

	got := ExtractSuggestions(text)

	want := []string{"Restart the worker pool", "Rotate credentials"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("suggestions mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractSuggestionsEmpty(t *testing.T) {
	got := ExtractSuggestions("")
	require.NotNil(t, got)
	assert.Empty(t, got)

	got = ExtractSuggestions("short")
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCanonicalCategory(t *testing.T) {
	assert.Equal(t, "Payments", canonicalCategory("PAYMENTS"))
	assert.Equal(t, "custom", canonicalCategory("custom"))
}
