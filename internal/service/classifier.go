package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/opsguardian/ticket-triage/internal/domain"
)

// KeywordRule maps a keyword found in a ticket to a classification.
type KeywordRule struct {
	Keyword  string
	Category string
	Priority domain.Priority
}

// KeywordRules is scanned in order; the first rule whose keyword occurs in
// the lower-cased title and description wins.
var KeywordRules = []KeywordRule{
	{Keyword: "payment", Category: "Payments", Priority: domain.PriorityP0},
	{Keyword: "pay", Category: "Payments", Priority: domain.PriorityP0},
	{Keyword: "db", Category: "Database", Priority: domain.PriorityP0},
	{Keyword: "database", Category: "Database", Priority: domain.PriorityP0},
	{Keyword: "sql", Category: "Database", Priority: domain.PriorityP1},
	{Keyword: "timeout", Category: "Network", Priority: domain.PriorityP1},
	{Keyword: "latency", Category: "Network", Priority: domain.PriorityP1},
	{Keyword: "login", Category: "Application", Priority: domain.PriorityP1},
	{Keyword: "auth", Category: "Access", Priority: domain.PriorityP1},
	{Keyword: "password", Category: "Access", Priority: domain.PriorityP2},
	{Keyword: "disk", Category: "Database", Priority: domain.PriorityP0},
	{Keyword: "vpn", Category: "Network", Priority: domain.PriorityP1},
	{Keyword: "security", Category: "Security", Priority: domain.PriorityP0},
}

// Heuristic result when no keyword matches.
const (
	DefaultCategory = "Other"
	DefaultPriority = domain.PriorityP2
)

// HeuristicClassify applies KeywordRules to a ticket's text.
func HeuristicClassify(title, description string) domain.ClassificationResult {
	text := strings.ToLower(title + " " + description)
	for _, rule := range KeywordRules {
		if strings.Contains(text, rule.Keyword) {
			return classification(rule.Priority, rule.Category, false)
		}
	}
	return classification(DefaultPriority, DefaultCategory, false)
}

func classification(p domain.Priority, category string, usedModel bool) domain.ClassificationResult {
	return domain.ClassificationResult{Priority: &p, Category: &category, UsedModel: usedModel}
}

const classifyPrompt = `You are triaging an operations ticket. Classify it by priority and category.
Title: %s
Description: %s
Respond with strict JSON only, no prose: {"priority":"P0|P1|P2|P3","category":"..."}`

// Classifier assigns priority and category, preferring the model and falling
// back to the keyword heuristic.
type Classifier struct {
	modelTask
}

// NewClassifier builds a Classifier.
func NewClassifier(deps TaskDependencies) *Classifier {
	return &Classifier{modelTask: newModelTask("classify", deps)}
}

// Classify never fails: any model or parse problem yields the heuristic
// result with UsedModel=false.
func (c *Classifier) Classify(ctx context.Context, t domain.NormalizedTicket) domain.ClassificationResult {
	result := c.classify(ctx, t)
	c.metrics.RecordTask(c.name, result.UsedModel)
	return result
}

func (c *Classifier) classify(ctx context.Context, t domain.NormalizedTicket) domain.ClassificationResult {
	text, err := c.ask(ctx, fmt.Sprintf(classifyPrompt, t.Title, t.Description))
	if err != nil {
		c.logModelFailure(err)
		return c.fallback(t)
	}

	extracted := c.extractor.ExtractClassification(text)
	if !extracted.Usable() {
		c.logger.Warn("model reply had no usable classification, using keyword heuristic")
		return c.fallback(t)
	}

	result := domain.ClassificationResult{
		Priority:  extracted.Priority,
		Category:  extracted.Category,
		UsedModel: true,
	}
	c.logger.Info("classified by model",
		zap.String("priority", string(result.PriorityValue())),
		zap.String("category", result.CategoryValue()))
	return result
}

func (c *Classifier) fallback(t domain.NormalizedTicket) domain.ClassificationResult {
	result := HeuristicClassify(t.Title, t.Description)
	c.logger.Info("classified by keyword heuristic",
		zap.String("priority", string(result.PriorityValue())),
		zap.String("category", result.CategoryValue()))
	return result
}
