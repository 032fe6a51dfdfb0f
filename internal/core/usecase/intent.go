package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/woonylab/bookchat/internal/core/domain"
	"github.com/woonylab/bookchat/internal/core/ports"
	"github.com/woonylab/bookchat/internal/prompts"
)

const defaultHistoryTurns = 3

// IntentClassifier decides what a query wants through one model call.
// Classify never returns an error; every failure path degrades to a
// general_chat result with reduced confidence.
type IntentClassifier struct {
	completer    ports.Completer
	model        string
	catalog      *prompts.Catalog
	historyTurns int
	logger       *slog.Logger
}

func NewIntentClassifier(completer ports.Completer, model string, catalog *prompts.Catalog, historyTurns int, logger *slog.Logger) *IntentClassifier {
	if historyTurns <= 0 {
		historyTurns = defaultHistoryTurns
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IntentClassifier{
		completer:    completer,
		model:        model,
		catalog:      catalog,
		historyTurns: historyTurns,
		logger:       logger,
	}
}

func (c *IntentClassifier) Classify(ctx context.Context, query, lang string, history []domain.ConversationTurn) domain.IntentResult {
	prompt := c.buildPrompt(query, lang, history)

	raw, err := c.completer.Complete(ctx, prompt, c.model)
	if err != nil {
		c.logger.Warn("intent_classify_failed", "error", err)
		return domain.IntentResult{
			PrimaryIntent: domain.IntentGeneralChat,
			Confidence:    0.5,
			Reasoning:     "classification call failed, defaulting to general chat",
		}
	}

	result, ok := parseIntentResponse(raw)
	if !ok {
		result = scanIntentKeywords(raw)
	}
	return normalizeIntentResult(result)
}

func (c *IntentClassifier) buildPrompt(query, lang string, history []domain.ConversationTurn) string {
	var sb strings.Builder
	sb.WriteString(c.catalog.Template(lang, "classify_header"))
	sb.WriteString("\n\nCategories:\n")
	for _, cat := range c.catalog.IntentCategories(lang) {
		fmt.Fprintf(&sb, "- %s: %s\n", cat.Name, cat.Description)
		for _, ex := range cat.Examples {
			fmt.Fprintf(&sb, "  e.g. %q\n", ex)
		}
	}

	if n := len(history); n > 0 {
		start := n - c.historyTurns
		if start < 0 {
			start = 0
		}
		sb.WriteString("\nRecent conversation:\n")
		for _, turn := range history[start:] {
			fmt.Fprintf(&sb, "User: %s\nAssistant: %s\n", turn.Query, turn.Response)
		}
	}

	fmt.Fprintf(&sb, "\nQuery: %s\n", query)
	sb.WriteString("\nRespond with JSON only: " +
		`{"intent": "...", "confidence": 0.0, "reasoning": "...", "reference_index": null, "reference_type": null}`)
	return sb.String()
}

// intentResponse tolerates the shapes models actually emit: numeric or
// string confidence, integer or string reference_index.
type intentResponse struct {
	Intent         string          `json:"intent"`
	Confidence     json.Number     `json:"confidence"`
	Reasoning      string          `json:"reasoning"`
	ReferenceIndex json.RawMessage `json:"reference_index"`
	ReferenceType  string          `json:"reference_type"`
}

func parseIntentResponse(raw string) (domain.IntentResult, bool) {
	body, ok := extractJSONObject(raw)
	if !ok {
		return domain.IntentResult{}, false
	}

	var resp intentResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return domain.IntentResult{}, false
	}
	if strings.TrimSpace(resp.Intent) == "" {
		return domain.IntentResult{}, false
	}

	conf, err := resp.Confidence.Float64()
	if err != nil {
		conf = 0.5
	}

	result := domain.IntentResult{
		PrimaryIntent: domain.Intent(strings.ToLower(strings.TrimSpace(resp.Intent))),
		Confidence:    conf,
		Reasoning:     resp.Reasoning,
		ReferenceType: resp.ReferenceType,
	}
	if idx, ok := parseReferenceIndex(resp.ReferenceIndex); ok {
		result.ReferenceIndex = &idx
	}
	return result, true
}

func parseReferenceIndex(raw json.RawMessage) (int, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return 0, false
	}
	if n, err := strconv.Atoi(trimmed); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n, true
		}
	}
	return 0, false
}

// extractJSONObject cuts the outermost {...} span from free-form model
// output, which often wraps JSON in prose or code fences.
func extractJSONObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// scanIntentKeywords is the parse-failure fallback: any known intent
// name appearing in the raw text wins, otherwise general_chat.
func scanIntentKeywords(raw string) domain.IntentResult {
	lowered := strings.ToLower(raw)
	for _, intent := range []domain.Intent{
		domain.IntentFollowUpSummary,
		domain.IntentDocumentList,
		domain.IntentDetailed,
		domain.IntentGeneralChat,
	} {
		if strings.Contains(lowered, string(intent)) {
			return domain.IntentResult{
				PrimaryIntent: intent,
				Confidence:    0.6,
				Reasoning:     "structured parse failed, matched intent keyword in raw response",
			}
		}
	}
	return domain.IntentResult{
		PrimaryIntent: domain.IntentGeneralChat,
		Confidence:    0.6,
		Reasoning:     "structured parse failed, defaulting to general chat",
	}
}

func normalizeIntentResult(result domain.IntentResult) domain.IntentResult {
	if !domain.KnownIntent(string(result.PrimaryIntent)) {
		penalized := result.Confidence * 0.5
		if penalized < 0.3 {
			penalized = 0.3
		}
		result.Reasoning = fmt.Sprintf("unknown intent %q coerced to general chat; %s", result.PrimaryIntent, result.Reasoning)
		result.PrimaryIntent = domain.IntentGeneralChat
		result.Confidence = penalized
	}
	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}
	return result
}
