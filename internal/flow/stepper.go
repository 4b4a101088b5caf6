package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carsonraft/yenta/internal/models"
	"github.com/carsonraft/yenta/internal/store"
	"github.com/carsonraft/yenta/internal/util"
)

// openingQuestions maps each intake step to its opening question.
var openingQuestions = map[int]string{
	1: "Tell me about your business. What problem are you trying to solve, and what's your role?",
	2: "What kind of solution are you looking for, and how big is the team that would use it?",
	3: "What's your timeline, and what's driving the urgency?",
	4: "Where does budget stand, and who makes the final call on a purchase like this?",
}

// followUpQuestions maps each required field to the clarifying question asked
// when the field is still missing after a turn.
var followUpQuestions = map[models.FieldName]string{
	models.FieldProblemType:   "Could you say more about the specific problem? For example, is it scheduling, hiring, billing, or a manual process?",
	models.FieldJobFunction:   "What's your role at the company?",
	models.FieldIndustry:      "What industry is your company in?",
	models.FieldSolutionType:  "Are you looking for automation, an integration, a full platform, or consulting services?",
	models.FieldTeamSize:      "How many people would be using this?",
	models.FieldTimeline:      "When are you hoping to have something in place?",
	models.FieldUrgencyReason: "What's making this urgent right now?",
	models.FieldBudgetStatus:  "Has budget been approved for this, or is that still in progress?",
	models.FieldAuthority:     "Are you the decision maker, or will someone else sign off?",
}

// completionMessage is returned once the final step's fields are satisfied.
const completionMessage = "That's everything I need. Thanks! We'll review your answers and follow up with matched vendors shortly."

// AdvanceResult describes the outcome of one prospect turn.
type AdvanceResult struct {
	Question        string
	IsFollowUp      bool
	SectionComplete bool
	CurrentStep     int
	IsComplete      bool
}

// QualificationFlow runs the staged intake conversation: it owns round
// creation, per-turn field extraction and merging, step advancement, and
// transcript persistence.
type QualificationFlow struct {
	store     store.Store
	extractor Extractor
}

// NewQualificationFlow creates a flow over the given store and extractor.
func NewQualificationFlow(st store.Store, extractor Extractor) *QualificationFlow {
	slog.Debug("QualificationFlow.NewQualificationFlow: creating flow", "hasStore", st != nil, "hasExtractor", extractor != nil)
	return &QualificationFlow{store: st, extractor: extractor}
}

// Start begins the next qualification round for a prospect. If the prospect
// already has a round in progress, that round is returned instead of creating
// a new one.
func (f *QualificationFlow) Start(ctx context.Context, prospectID string) (*models.ConversationRound, error) {
	rounds, err := f.store.ListRounds(prospectID)
	if err != nil {
		slog.Error("QualificationFlow.Start: failed to list rounds", "error", err, "prospectID", prospectID)
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}

	for i := range rounds {
		if rounds[i].Status == models.RoundStatusInProgress || rounds[i].Status == models.RoundStatusNotStarted {
			slog.Debug("QualificationFlow.Start: returning existing open round", "prospectID", prospectID, "conversationID", rounds[i].ID)
			return &rounds[i], nil
		}
	}

	nextNumber := len(rounds) + 1
	if nextNumber > models.MaxRounds {
		slog.Warn("QualificationFlow.Start: round limit reached", "prospectID", prospectID, "rounds", len(rounds))
		return nil, models.ErrInvalidRoundNumber
	}

	now := time.Now()
	round := models.ConversationRound{
		ID:            util.GenerateConversationID(),
		ProspectID:    prospectID,
		RoundNumber:   nextNumber,
		Status:        models.RoundStatusInProgress,
		CurrentStep:   1,
		ExtractedData: make(models.ExtractedData),
		StartedAt:     now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := f.store.SaveRound(round); err != nil {
		slog.Error("QualificationFlow.Start: failed to save round", "error", err, "prospectID", prospectID)
		return nil, fmt.Errorf("failed to save round: %w", err)
	}

	opening := openingQuestions[1]
	if err := f.store.AppendTranscript(round.ID, models.TranscriptMessage{Role: "assistant", Content: opening, Timestamp: now}); err != nil {
		slog.Error("QualificationFlow.Start: failed to append opening question", "error", err, "conversationID", round.ID)
		return nil, fmt.Errorf("failed to append transcript: %w", err)
	}

	slog.Info("QualificationFlow.Start: round started", "prospectID", prospectID, "conversationID", round.ID, "roundNumber", nextNumber)
	return &round, nil
}

// OpeningQuestion returns the opening question for a step.
func OpeningQuestion(step int) string {
	return openingQuestions[step]
}

// Advance processes one prospect utterance: extract fields, merge them,
// decide the next question, and persist the updated round and transcript.
// Resubmitting a message that adds nothing must not regress the step or drop
// captured fields.
func (f *QualificationFlow) Advance(ctx context.Context, conversationID, utterance string) (*AdvanceResult, error) {
	round, err := f.store.GetRound(conversationID)
	if err != nil {
		slog.Error("QualificationFlow.Advance: failed to load round", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to load round: %w", err)
	}
	if round == nil {
		slog.Debug("QualificationFlow.Advance: round not found", "conversationID", conversationID)
		return nil, models.ErrConversationNotFound
	}

	state, err := models.RoundStateFrom(round.Status, round.CurrentStep)
	if err != nil {
		slog.Error("QualificationFlow.Advance: corrupt round state", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("corrupt round state: %w", err)
	}

	if state.Kind() == models.RoundCompletedKind {
		slog.Debug("QualificationFlow.Advance: round already completed", "conversationID", conversationID)
		return &AdvanceResult{
			Question:    completionMessage,
			CurrentStep: models.TotalSteps,
			IsComplete:  true,
		}, nil
	}

	now := time.Now()
	if err := f.store.AppendTranscript(conversationID, models.TranscriptMessage{Role: "user", Content: utterance, Timestamp: now}); err != nil {
		slog.Error("QualificationFlow.Advance: failed to append user message", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to append transcript: %w", err)
	}

	// Merge extracted updates. Entries are added or overwritten, never
	// deleted; empty values never clobber captured ones.
	updates := f.extractor.Extract(utterance)
	if round.ExtractedData == nil {
		round.ExtractedData = make(models.ExtractedData)
	}
	for field, value := range updates {
		if value == "" {
			continue
		}
		round.ExtractedData[field] = value
	}

	step := state.Step()
	result := &AdvanceResult{CurrentStep: step}
	round.Status = models.RoundStatusInProgress

	missing := round.ExtractedData.MissingRequired(step)
	if len(missing) > 0 {
		result.Question = followUpQuestions[missing[0]]
		result.IsFollowUp = true
	} else {
		result.SectionComplete = true
		if step >= models.TotalSteps {
			round.Status = models.RoundStatusCompleted
			round.CompletedAt = &now
			result.IsComplete = true
			result.Question = completionMessage
		} else {
			step++
			round.CurrentStep = step
			result.CurrentStep = step
			result.Question = openingQuestions[step]
		}
	}

	round.UpdatedAt = now

	if err := f.store.SaveRound(*round); err != nil {
		slog.Error("QualificationFlow.Advance: failed to save round", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to save round: %w", err)
	}

	if err := f.store.AppendTranscript(conversationID, models.TranscriptMessage{Role: "assistant", Content: result.Question, Timestamp: now}); err != nil {
		slog.Error("QualificationFlow.Advance: failed to append assistant message", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to append transcript: %w", err)
	}

	slog.Debug("QualificationFlow.Advance: turn processed", "conversationID", conversationID,
		"step", result.CurrentStep, "isFollowUp", result.IsFollowUp, "sectionComplete", result.SectionComplete, "isComplete", result.IsComplete)
	return result, nil
}
