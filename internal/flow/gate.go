package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carsonraft/yenta/internal/models"
	"github.com/carsonraft/yenta/internal/store"
)

// RoundRequirement is the gate policy for entering one round: the previous
// round's minimum score and the minimum elapsed time since its completion.
type RoundRequirement struct {
	MinScore   int
	MinElapsed time.Duration
}

// GateConfig maps round numbers to their entry requirements. Rounds without
// an entry have no gate.
type GateConfig struct {
	Requirements map[int]RoundRequirement
}

// DefaultGateConfig returns the standard gate policy: round 2 requires a
// round-1 score of at least 60 and 48 hours elapsed; round 3 requires a
// round-2 score of at least 55 and 72 hours elapsed. Round 1 has no gate.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		Requirements: map[int]RoundRequirement{
			2: {MinScore: 60, MinElapsed: 48 * time.Hour},
			3: {MinScore: 55, MinElapsed: 72 * time.Hour},
		},
	}
}

// RoundGate decides whether a prospect may begin a requested round. The check
// is read-only: it never mutates state.
type RoundGate struct {
	store store.Store
	cfg   GateConfig
	now   func() time.Time
}

// NewRoundGate creates a gate over the given store and configuration.
func NewRoundGate(st store.Store, cfg GateConfig) *RoundGate {
	return &RoundGate{store: st, cfg: cfg, now: time.Now}
}

// CheckEligibility reports whether the prospect may begin the requested round.
func (g *RoundGate) CheckEligibility(ctx context.Context, prospectID string, requestedRound int) (*models.EligibilityResult, error) {
	slog.Debug("RoundGate.CheckEligibility: checking", "prospectID", prospectID, "requestedRound", requestedRound)

	if requestedRound < 1 || requestedRound > models.MaxRounds {
		return nil, models.ErrInvalidRoundNumber
	}

	req, gated := g.cfg.Requirements[requestedRound]
	if !gated {
		slog.Debug("RoundGate.CheckEligibility: round has no gate", "requestedRound", requestedRound)
		return &models.EligibilityResult{Eligible: true, Reason: models.GateReasonRequirementsMet}, nil
	}

	prev, err := g.store.GetRoundByNumber(prospectID, requestedRound-1)
	if err != nil {
		slog.Error("RoundGate.CheckEligibility: failed to load previous round", "error", err, "prospectID", prospectID)
		return nil, fmt.Errorf("failed to load previous round: %w", err)
	}
	if prev == nil || prev.Status != models.RoundStatusCompleted || prev.CompletedAt == nil {
		slog.Debug("RoundGate.CheckEligibility: previous round missing or incomplete", "prospectID", prospectID, "requestedRound", requestedRound)
		return &models.EligibilityResult{Eligible: false, Reason: models.GateReasonConversationNotFound}, nil
	}

	if prev.Score == nil || *prev.Score < req.MinScore {
		slog.Debug("RoundGate.CheckEligibility: score below minimum", "prospectID", prospectID, "score", prev.Score, "minScore", req.MinScore)
		return &models.EligibilityResult{Eligible: false, Reason: models.GateReasonScoreBelowMinimum}, nil
	}

	if g.now().Sub(*prev.CompletedAt) < req.MinElapsed {
		slog.Debug("RoundGate.CheckEligibility: too soon since previous round", "prospectID", prospectID, "completedAt", prev.CompletedAt, "minElapsed", req.MinElapsed)
		return &models.EligibilityResult{Eligible: false, Reason: models.GateReasonTooSoon}, nil
	}

	slog.Debug("RoundGate.CheckEligibility: requirements met", "prospectID", prospectID, "requestedRound", requestedRound)
	return &models.EligibilityResult{Eligible: true, Reason: models.GateReasonRequirementsMet}, nil
}
