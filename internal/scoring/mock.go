package scoring

import (
	"context"
	"fmt"

	"github.com/carsonraft/yenta/internal/models"
	"github.com/openai/openai-go"
)

// MockClient is a test double for ClientInterface with canned responses.
type MockClient struct {
	// GenerateResponse is returned from GenerateWithMessages when GenerateErr is nil.
	GenerateResponse string
	GenerateErr      error

	// ScoreResult is returned from Score when ScoreErr is nil.
	ScoreResult *models.RoundScore
	ScoreErr    error

	// ScoreCalls counts invocations of Score.
	ScoreCalls int
}

// NewMockClient creates a mock that reports a passing score by default.
func NewMockClient() *MockClient {
	return &MockClient{
		ScoreResult: &models.RoundScore{TotalScore: 75, Category: "qualified"},
	}
}

// GenerateWithMessages returns the canned generation response.
func (m *MockClient) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	if m.GenerateErr != nil {
		return "", m.GenerateErr
	}
	return m.GenerateResponse, nil
}

// Score returns the canned score result.
func (m *MockClient) Score(ctx context.Context, transcript []models.TranscriptMessage) (*models.RoundScore, error) {
	m.ScoreCalls++
	if m.ScoreErr != nil {
		return nil, m.ScoreErr
	}
	if m.ScoreResult == nil {
		return nil, fmt.Errorf("no score configured")
	}
	return m.ScoreResult, nil
}
