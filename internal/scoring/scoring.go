// Package scoring provides LLM-backed scoring of completed qualification
// rounds using the OpenAI API.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/carsonraft/yenta/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// scoringSystemPrompt instructs the model to grade a qualification transcript.
const scoringSystemPrompt = `You are a B2B sales qualification analyst. Given an intake conversation transcript, grade how qualified the prospect is on a 0-100 scale considering problem clarity, urgency, budget readiness, and decision authority. Respond with ONLY a JSON object: {"total_score": <0-100 integer>, "category": "<hot|qualified|nurture|unqualified>"}.`

// Opts holds configuration options for the scoring client.
type Opts struct {
	// APIKey is the OpenAI API key. Falls back to OPENAI_API_KEY.
	APIKey string
	// Model is the chat model to use. Defaults to gpt-4o-mini.
	Model string
}

// Option defines a configuration option for the scoring client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// ClientInterface defines the scoring operations the rest of the application
// depends on, so tests can substitute a mock.
type ClientInterface interface {
	// GenerateWithMessages runs a chat completion and returns the raw text.
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
	// Score grades a completed round's transcript.
	Score(ctx context.Context, transcript []models.TranscriptMessage) (*models.RoundScore, error)
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	client openai.Client
	model  string
}

// NewClient initializes a scoring client from options, falling back to the
// OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	slog.Debug("Scoring client initialized", "model", cfg.Model)
	return &Client{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
	}, nil
}

// GenerateWithMessages runs a chat completion with the given messages and
// returns the first choice's content.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		slog.Error("Scoring GenerateWithMessages failed", "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Error("Scoring GenerateWithMessages returned no choices")
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Score grades the transcript of a completed round. The round itself is not
// mutated here; persisting the score is the caller's responsibility, and only
// on success.
func (c *Client) Score(ctx context.Context, transcript []models.TranscriptMessage) (*models.RoundScore, error) {
	slog.Debug("Scoring.Score: scoring transcript", "messages", len(transcript))
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(scoringSystemPrompt),
		openai.UserMessage(RenderTranscript(transcript)),
	}
	raw, err := c.GenerateWithMessages(ctx, messages)
	if err != nil {
		return nil, err
	}
	score, err := ParseScoreResponse(raw)
	if err != nil {
		slog.Error("Scoring.Score: failed to parse model response", "error", err, "raw", raw)
		return nil, err
	}
	slog.Debug("Scoring.Score: transcript scored", "totalScore", score.TotalScore, "category", score.Category)
	return score, nil
}

// RenderTranscript flattens a transcript into role-prefixed lines for the
// scoring prompt.
func RenderTranscript(transcript []models.TranscriptMessage) string {
	var b strings.Builder
	for _, m := range transcript {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// ParseScoreResponse parses the model's JSON score payload, tolerating
// markdown code fences and clamping the score to 0-100.
func ParseScoreResponse(raw string) (*models.RoundScore, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var score models.RoundScore
	if err := json.Unmarshal([]byte(cleaned), &score); err != nil {
		return nil, fmt.Errorf("failed to parse score response: %w", err)
	}
	if score.TotalScore < 0 {
		score.TotalScore = 0
	}
	if score.TotalScore > 100 {
		score.TotalScore = 100
	}
	return &score, nil
}
