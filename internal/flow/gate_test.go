package flow

import (
	"context"
	"testing"
	"time"

	"github.com/carsonraft/yenta/internal/models"
	"github.com/carsonraft/yenta/internal/store"
)

func completedRound(prospectID string, number int, score *int, completedAt time.Time) models.ConversationRound {
	return models.ConversationRound{
		ID:            "conv_r" + string(rune('0'+number)),
		ProspectID:    prospectID,
		RoundNumber:   number,
		Status:        models.RoundStatusCompleted,
		CurrentStep:   models.TotalSteps,
		Score:         score,
		StartedAt:     completedAt.Add(-time.Hour),
		CompletedAt:   &completedAt,
		CreatedAt:     completedAt.Add(-time.Hour),
		UpdatedAt:     completedAt,
		ExtractedData: models.ExtractedData{},
	}
}

func TestGateRoundOneAlwaysEligible(t *testing.T) {
	g := NewRoundGate(store.NewInMemoryStore(), DefaultGateConfig())
	res, err := g.CheckEligibility(context.Background(), "pros_1", 1)
	if err != nil {
		t.Fatalf("CheckEligibility failed: %v", err)
	}
	if !res.Eligible || res.Reason != models.GateReasonRequirementsMet {
		t.Errorf("round 1 gate = %+v, want eligible with requirements_met", res)
	}
}

func TestGateRejectsWithoutPreviousRound(t *testing.T) {
	g := NewRoundGate(store.NewInMemoryStore(), DefaultGateConfig())
	res, err := g.CheckEligibility(context.Background(), "pros_1", 2)
	if err != nil {
		t.Fatalf("CheckEligibility failed: %v", err)
	}
	if res.Eligible || res.Reason != models.GateReasonConversationNotFound {
		t.Errorf("gate = %+v, want ineligible with conversation_not_found", res)
	}
}

func TestGateScoreBelowMinimum(t *testing.T) {
	st := store.NewInMemoryStore()
	score := 50
	completed := time.Now().Add(-72 * time.Hour)
	if err := st.SaveRound(completedRound("pros_1", 1, &score, completed)); err != nil {
		t.Fatalf("SaveRound failed: %v", err)
	}

	g := NewRoundGate(st, DefaultGateConfig())
	res, err := g.CheckEligibility(context.Background(), "pros_1", 2)
	if err != nil {
		t.Fatalf("CheckEligibility failed: %v", err)
	}
	if res.Eligible || res.Reason != models.GateReasonScoreBelowMinimum {
		t.Errorf("gate = %+v, want ineligible with score_below_minimum for score 50", res)
	}
}

func TestGateTooSoon(t *testing.T) {
	st := store.NewInMemoryStore()
	score := 80
	completed := time.Now().Add(-24 * time.Hour)
	if err := st.SaveRound(completedRound("pros_1", 1, &score, completed)); err != nil {
		t.Fatalf("SaveRound failed: %v", err)
	}

	g := NewRoundGate(st, DefaultGateConfig())
	res, err := g.CheckEligibility(context.Background(), "pros_1", 2)
	if err != nil {
		t.Fatalf("CheckEligibility failed: %v", err)
	}
	if res.Eligible || res.Reason != models.GateReasonTooSoon {
		t.Errorf("gate = %+v, want ineligible with too_soon at 24h", res)
	}
}

func TestGateAcceptsAtExactBoundary(t *testing.T) {
	st := store.NewInMemoryStore()
	score := 60
	completedAt := time.Now().Add(-49 * time.Hour)
	if err := st.SaveRound(completedRound("pros_1", 1, &score, completedAt)); err != nil {
		t.Fatalf("SaveRound failed: %v", err)
	}

	g := NewRoundGate(st, DefaultGateConfig())
	res, err := g.CheckEligibility(context.Background(), "pros_1", 2)
	if err != nil {
		t.Fatalf("CheckEligibility failed: %v", err)
	}
	if !res.Eligible || res.Reason != models.GateReasonRequirementsMet {
		t.Errorf("gate = %+v, want eligible for score 60 at 49h", res)
	}
}

func TestGateRoundThreePolicy(t *testing.T) {
	st := store.NewInMemoryStore()
	score := 55
	completedAt := time.Now().Add(-80 * time.Hour)
	if err := st.SaveRound(completedRound("pros_1", 2, &score, completedAt)); err != nil {
		t.Fatalf("SaveRound failed: %v", err)
	}

	g := NewRoundGate(st, DefaultGateConfig())
	res, err := g.CheckEligibility(context.Background(), "pros_1", 3)
	if err != nil {
		t.Fatalf("CheckEligibility failed: %v", err)
	}
	if !res.Eligible {
		t.Errorf("gate = %+v, want eligible for round 3 with score 55 at 80h", res)
	}
}

func TestGateUnscoredRoundRejected(t *testing.T) {
	st := store.NewInMemoryStore()
	completedAt := time.Now().Add(-72 * time.Hour)
	if err := st.SaveRound(completedRound("pros_1", 1, nil, completedAt)); err != nil {
		t.Fatalf("SaveRound failed: %v", err)
	}

	g := NewRoundGate(st, DefaultGateConfig())
	res, err := g.CheckEligibility(context.Background(), "pros_1", 2)
	if err != nil {
		t.Fatalf("CheckEligibility failed: %v", err)
	}
	if res.Eligible || res.Reason != models.GateReasonScoreBelowMinimum {
		t.Errorf("gate = %+v, want ineligible with score_below_minimum for unscored round", res)
	}
}

func TestGateInvalidRoundNumber(t *testing.T) {
	g := NewRoundGate(store.NewInMemoryStore(), DefaultGateConfig())
	for _, n := range []int{0, 4, -1} {
		if _, err := g.CheckEligibility(context.Background(), "pros_1", n); err != models.ErrInvalidRoundNumber {
			t.Errorf("round %d: err = %v, want ErrInvalidRoundNumber", n, err)
		}
	}
}

func TestGateIsReadOnly(t *testing.T) {
	st := store.NewInMemoryStore()
	score := 90
	completedAt := time.Now().Add(-100 * time.Hour)
	r := completedRound("pros_1", 1, &score, completedAt)
	if err := st.SaveRound(r); err != nil {
		t.Fatalf("SaveRound failed: %v", err)
	}

	g := NewRoundGate(st, DefaultGateConfig())
	if _, err := g.CheckEligibility(context.Background(), "pros_1", 2); err != nil {
		t.Fatalf("CheckEligibility failed: %v", err)
	}

	after, _ := st.GetRound(r.ID)
	if after.UpdatedAt != r.UpdatedAt || after.Status != r.Status {
		t.Error("gate check mutated stored round")
	}
}
