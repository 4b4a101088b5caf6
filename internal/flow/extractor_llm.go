package flow

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/carsonraft/yenta/internal/models"
	"github.com/carsonraft/yenta/internal/scoring"
	"github.com/openai/openai-go"
)

// llmExtractionPrompt instructs the model to extract qualification fields.
const llmExtractionPrompt = `You are a B2B qualification data extractor. Given a prospect's message, extract any of these fields you can identify: problemType, jobFunction, industry, solutionType, teamSize, timeline, urgencyReason, budgetStatus, authority. Respond with ONLY a JSON object containing the fields you found. Omit fields with no clear signal. Never invent values.`

// LLMExtractor extracts fields with an LLM call, falling back to the keyword
// rules when the model is unavailable or returns garbage. The stepper only
// sees the Extractor interface, so the two are interchangeable.
type LLMExtractor struct {
	client   scoring.ClientInterface
	fallback *RuleExtractor
}

// NewLLMExtractor creates an LLM-backed extractor with a rule-based fallback.
func NewLLMExtractor(client scoring.ClientInterface, fallback *RuleExtractor) *LLMExtractor {
	if fallback == nil {
		fallback = NewRuleExtractor(nil)
	}
	return &LLMExtractor{client: client, fallback: fallback}
}

// Extract asks the model for field updates. Any failure degrades to keyword
// matching rather than dropping the turn.
func (e *LLMExtractor) Extract(utterance string) models.ExtractedData {
	if e.client == nil {
		return e.fallback.Extract(utterance)
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(llmExtractionPrompt),
		openai.UserMessage(utterance),
	}
	raw, err := e.client.GenerateWithMessages(context.Background(), messages)
	if err != nil {
		slog.Warn("LLMExtractor.Extract: generation failed, falling back to rules", "error", err)
		return e.fallback.Extract(utterance)
	}

	fields, err := parseExtractionResponse(raw)
	if err != nil {
		slog.Warn("LLMExtractor.Extract: unparseable response, falling back to rules", "error", err)
		return e.fallback.Extract(utterance)
	}
	slog.Debug("LLMExtractor.Extract: extraction complete", "matched", len(fields))
	return fields
}

// parseExtractionResponse parses the model's JSON field payload, tolerating
// markdown code fences and dropping fields outside the known vocabulary.
func parseExtractionResponse(raw string) (models.ExtractedData, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var parsed map[string]string
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, err
	}

	known := make(map[models.FieldName]bool)
	for _, f := range models.AllFields() {
		known[f] = true
	}

	out := make(models.ExtractedData)
	for k, v := range parsed {
		field := models.FieldName(k)
		if !known[field] || strings.TrimSpace(v) == "" {
			continue
		}
		out[field] = v
	}
	return out, nil
}
