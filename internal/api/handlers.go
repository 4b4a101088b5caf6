// Package api provides qualification and prospect management handlers for Yenta endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/carsonraft/yenta/internal/flow"
	"github.com/carsonraft/yenta/internal/models"
	"github.com/carsonraft/yenta/internal/util"
)

// healthHandler handles GET /health
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"status": "healthy"}))
}

// startQualificationHandler handles POST /api/v1/qualification/start
func (s *Server) startQualificationHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("startQualificationHandler invoked", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	var req models.StartQualificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("startQualificationHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("startQualificationHandler validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	ctx := r.Context()

	// Create the prospect on first contact.
	prospect, err := s.st.GetProspect(req.ProspectID)
	if err != nil {
		slog.Error("startQualificationHandler prospect lookup failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to look up prospect"))
		return
	}
	now := time.Now()
	if prospect == nil {
		prospect = &models.Prospect{ID: req.ProspectID, CompanyName: req.CompanyName, CreatedAt: now, UpdatedAt: now}
		if err := s.st.SaveProspect(*prospect); err != nil {
			slog.Error("startQualificationHandler prospect save failed", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save prospect"))
			return
		}
	} else if req.CompanyName != "" && prospect.CompanyName != req.CompanyName {
		prospect.CompanyName = req.CompanyName
		prospect.UpdatedAt = now
		if err := s.st.SaveProspect(*prospect); err != nil {
			slog.Error("startQualificationHandler prospect update failed", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to update prospect"))
			return
		}
	}

	// Gate the round the prospect is about to enter. A round already in
	// progress passed its gate when it started.
	nextRound, open, err := s.nextRoundNumber(req.ProspectID)
	if err != nil {
		slog.Error("startQualificationHandler round lookup failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to look up rounds"))
		return
	}
	if !open {
		if nextRound > models.MaxRounds {
			writeJSONResponse(w, http.StatusConflict, models.Error("All qualification rounds are completed"))
			return
		}
		eligibility, err := s.gate.CheckEligibility(ctx, req.ProspectID, nextRound)
		if err != nil {
			slog.Error("startQualificationHandler gate check failed", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to check eligibility"))
			return
		}
		if !eligibility.Eligible {
			slog.Info("startQualificationHandler round not eligible", "prospectID", req.ProspectID, "round", nextRound, "reason", eligibility.Reason)
			writeJSONResponse(w, http.StatusForbidden, models.ErrorWithResult("Not eligible for this round", eligibility))
			return
		}
	}

	round, err := s.qualFlow.Start(ctx, req.ProspectID)
	if err != nil {
		slog.Error("startQualificationHandler start failed", "error", err, "prospectID", req.ProspectID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to start qualification"))
		return
	}

	result := models.StartQualificationResult{
		ConversationID: round.ID,
		Question:       openingQuestionForRound(round),
		CurrentStep:    round.CurrentStep,
		TotalSteps:     models.TotalSteps,
	}
	writeJSONResponse(w, http.StatusCreated, models.Success(result))
}

// nextRoundNumber reports the round number the prospect would enter next and
// whether a round is already open.
func (s *Server) nextRoundNumber(prospectID string) (int, bool, error) {
	rounds, err := s.st.ListRounds(prospectID)
	if err != nil {
		return 0, false, err
	}
	for _, r := range rounds {
		if r.Status != models.RoundStatusCompleted {
			return r.RoundNumber, true, nil
		}
	}
	return len(rounds) + 1, false, nil
}

func openingQuestionForRound(round *models.ConversationRound) string {
	step := round.CurrentStep
	if step < 1 {
		step = 1
	}
	return flow.OpeningQuestion(step)
}

// respondHandler handles POST /api/v1/qualification/respond
func (s *Server) respondHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("respondHandler invoked", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	var req models.SubmitResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("respondHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("respondHandler validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	res, err := s.qualFlow.Advance(r.Context(), req.ConversationID, req.ResponseText)
	if err != nil {
		if errors.Is(err, models.ErrConversationNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
			return
		}
		slog.Error("respondHandler advance failed", "error", err, "conversationID", req.ConversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process response"))
		return
	}

	round, err := s.st.GetRound(req.ConversationID)
	if err != nil || round == nil {
		slog.Error("respondHandler reload failed", "error", err, "conversationID", req.ConversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load round"))
		return
	}

	result := models.SubmitResponseResult{
		Question:        res.Question,
		IsFollowUp:      res.IsFollowUp,
		SectionComplete: res.SectionComplete,
		CurrentStep:     res.CurrentStep,
		Progress:        round.Progress(),
		IsComplete:      res.IsComplete,
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// qualificationSubHandler routes /api/v1/qualification/{conversationID}/{action}
func (s *Server) qualificationSubHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/qualification/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Not found"))
		return
	}
	conversationID, action := parts[0], parts[1]

	switch action {
	case "status":
		s.statusHandler(w, r, conversationID)
	case "results":
		s.resultsHandler(w, r, conversationID)
	case "score":
		s.scoreHandler(w, r, conversationID)
	case "transcript":
		s.transcriptHandler(w, r, conversationID)
	default:
		writeJSONResponse(w, http.StatusNotFound, models.Error("Not found"))
	}
}

// statusHandler handles GET /api/v1/qualification/{conversationID}/status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request, conversationID string) {
	slog.Debug("statusHandler invoked", "conversationID", conversationID)
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	round, err := s.st.GetRound(conversationID)
	if err != nil {
		slog.Error("statusHandler load failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversation"))
		return
	}
	if round == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
		return
	}

	status := models.QualificationStatus{
		CurrentStep:   round.CurrentStep,
		TotalSteps:    models.TotalSteps,
		Status:        round.Status,
		ExtractedData: round.ExtractedData,
		Progress:      round.Progress(),
	}
	writeJSONResponse(w, http.StatusOK, models.Success(status))
}

// resultsHandler handles GET /api/v1/qualification/{conversationID}/results
func (s *Server) resultsHandler(w http.ResponseWriter, r *http.Request, conversationID string) {
	slog.Debug("resultsHandler invoked", "conversationID", conversationID)
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	round, err := s.st.GetRound(conversationID)
	if err != nil {
		slog.Error("resultsHandler load failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversation"))
		return
	}
	if round == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
		return
	}
	if round.Status != models.RoundStatusCompleted {
		// Surface current progress so the caller can poll.
		writeJSONResponse(w, http.StatusConflict, models.ErrorWithResult(
			models.ErrRoundNotCompleted.Error(),
			map[string]interface{}{"progress": round.Progress(), "current_step": round.CurrentStep},
		))
		return
	}

	results := models.QualificationResults{
		ExtractedData: round.ExtractedData,
		DataQuality:   s.quality.Analyze(round.ExtractedData),
	}
	writeJSONResponse(w, http.StatusOK, models.Success(results))
}

// scoreHandler handles POST /api/v1/qualification/{conversationID}/score.
// The score is persisted only when the provider succeeds; a failure leaves
// the round untouched so the caller can retry.
func (s *Server) scoreHandler(w http.ResponseWriter, r *http.Request, conversationID string) {
	slog.Debug("scoreHandler invoked", "conversationID", conversationID)
	if r.Method != http.MethodPost {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	round, err := s.st.GetRound(conversationID)
	if err != nil {
		slog.Error("scoreHandler load failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversation"))
		return
	}
	if round == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
		return
	}
	if round.Status != models.RoundStatusCompleted {
		writeJSONResponse(w, http.StatusConflict, models.Error(models.ErrRoundNotCompleted.Error()))
		return
	}
	if s.scorer == nil {
		writeJSONResponse(w, http.StatusBadGateway, models.Error("Scoring provider not configured"))
		return
	}

	transcript, err := s.st.GetTranscript(conversationID)
	if err != nil {
		slog.Error("scoreHandler transcript load failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load transcript"))
		return
	}

	score, err := s.scorer.Score(r.Context(), transcript)
	if err != nil {
		slog.Error("scoreHandler scoring failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusBadGateway, models.Error("Scoring provider failed"))
		return
	}

	round.Score = &score.TotalScore
	round.ScoreCategory = score.Category
	round.UpdatedAt = time.Now()
	if err := s.st.SaveRound(*round); err != nil {
		slog.Error("scoreHandler save failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save score"))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Success(score))
}

// transcriptHandler handles GET /api/v1/qualification/{conversationID}/transcript
func (s *Server) transcriptHandler(w http.ResponseWriter, r *http.Request, conversationID string) {
	slog.Debug("transcriptHandler invoked", "conversationID", conversationID)
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	round, err := s.st.GetRound(conversationID)
	if err != nil {
		slog.Error("transcriptHandler load failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversation"))
		return
	}
	if round == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
		return
	}

	transcript, err := s.st.GetTranscript(conversationID)
	if err != nil {
		slog.Error("transcriptHandler transcript load failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load transcript"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(transcript))
}

// prospectsHandler handles POST and GET /api/v1/prospects
func (s *Server) prospectsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("prospectsHandler invoked", "method", r.Method, "path", r.URL.Path)
	switch r.Method {
	case http.MethodPost:
		s.createProspectHandler(w, r)
	case http.MethodGet:
		s.listProspectsHandler(w, r)
	default:
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
	}
}

func (s *Server) createProspectHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProspectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("createProspectHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("createProspectHandler validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	now := time.Now()
	prospect := models.Prospect{
		ID:          util.GenerateProspectID(),
		CompanyName: req.CompanyName,
		ContactName: req.ContactName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.st.SaveProspect(prospect); err != nil {
		slog.Error("createProspectHandler save failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save prospect"))
		return
	}

	slog.Info("createProspectHandler prospect created", "prospectID", prospect.ID, "company", prospect.CompanyName)
	writeJSONResponse(w, http.StatusCreated, models.Success(prospect))
}

func (s *Server) listProspectsHandler(w http.ResponseWriter, r *http.Request) {
	prospects, err := s.st.ListProspects()
	if err != nil {
		slog.Error("listProspectsHandler failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list prospects"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(prospects))
}

// prospectSubHandler routes /api/v1/prospects/{prospectID} and
// /api/v1/prospects/{prospectID}/eligibility
func (s *Server) prospectSubHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/prospects/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Not found"))
		return
	}
	prospectID := parts[0]

	switch {
	case len(parts) == 1:
		s.prospectHandler(w, r, prospectID)
	case len(parts) == 2 && parts[1] == "eligibility":
		s.eligibilityHandler(w, r, prospectID)
	case len(parts) == 2 && parts[1] == "rounds":
		s.roundsHandler(w, r, prospectID)
	default:
		writeJSONResponse(w, http.StatusNotFound, models.Error("Not found"))
	}
}

// prospectHandler handles GET and DELETE /api/v1/prospects/{prospectID}
func (s *Server) prospectHandler(w http.ResponseWriter, r *http.Request, prospectID string) {
	switch r.Method {
	case http.MethodGet:
		prospect, err := s.st.GetProspect(prospectID)
		if err != nil {
			slog.Error("prospectHandler load failed", "error", err, "prospectID", prospectID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load prospect"))
			return
		}
		if prospect == nil {
			writeJSONResponse(w, http.StatusNotFound, models.Error(models.ErrProspectNotFound.Error()))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(prospect))
	case http.MethodDelete:
		if err := s.st.DeleteProspect(prospectID); err != nil {
			slog.Error("prospectHandler delete failed", "error", err, "prospectID", prospectID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to delete prospect"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Prospect deleted", nil))
	default:
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
	}
}

// roundsHandler handles GET /api/v1/prospects/{prospectID}/rounds
func (s *Server) roundsHandler(w http.ResponseWriter, r *http.Request, prospectID string) {
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	rounds, err := s.st.ListRounds(prospectID)
	if err != nil {
		slog.Error("roundsHandler failed", "error", err, "prospectID", prospectID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list rounds"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(rounds))
}

// eligibilityHandler handles GET /api/v1/prospects/{prospectID}/eligibility?round=N.
// When the prospect is eligible and has a phone number on file, a
// notification SMS is sent; a send failure is logged, never surfaced.
func (s *Server) eligibilityHandler(w http.ResponseWriter, r *http.Request, prospectID string) {
	slog.Debug("eligibilityHandler invoked", "prospectID", prospectID)
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	requestedRound, err := strconv.Atoi(r.URL.Query().Get("round"))
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("round query parameter must be an integer"))
		return
	}

	result, err := s.gate.CheckEligibility(r.Context(), prospectID, requestedRound)
	if err != nil {
		if errors.Is(err, models.ErrInvalidRoundNumber) {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("eligibilityHandler gate check failed", "error", err, "prospectID", prospectID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to check eligibility"))
		return
	}

	if result.Eligible && s.notifier != nil {
		s.notifyEligibility(r.Context(), prospectID, requestedRound)
	}

	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

func (s *Server) notifyEligibility(ctx context.Context, prospectID string, round int) {
	prospect, err := s.st.GetProspect(prospectID)
	if err != nil || prospect == nil || prospect.PhoneNumber == "" {
		slog.Debug("notifyEligibility skipped", "prospectID", prospectID, "hasProspect", prospect != nil)
		return
	}
	body := fmt.Sprintf("Good news! You're eligible for qualification round %d. Reply or visit your Yenta portal to continue.", round)
	if err := s.notifier.SendSMS(ctx, prospect.PhoneNumber, body); err != nil {
		slog.Error("notifyEligibility send failed", "error", err, "prospectID", prospectID)
		return
	}
	slog.Info("notifyEligibility SMS sent", "prospectID", prospectID, "round", round)
}
