package api_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/carsonraft/yenta/internal/models"
	"github.com/carsonraft/yenta/internal/testutil"
)

// stepAnswers completes each intake step with a single utterance.
var stepAnswers = map[int]string{
	1: "Scheduling is a mess. I'm the VP of Operations at a healthcare company.",
	2: "We want automation for a small team.",
	3: "We need it asap because compliance deadlines are looming.",
	4: "Budget approved, and I decide on purchases like this.",
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := testutil.NewTestServer()
	rr := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodGet, "/health", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "health check")
	testutil.AssertJSONResponse(t, rr, "ok")
}

func TestStartQualification(t *testing.T) {
	srv, deps := testutil.NewTestServer()
	handler := srv.Routes()

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/api/v1/qualification/start",
		models.StartQualificationRequest{ProspectID: "pros_1", CompanyName: "Acme Clinics"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusCreated, rr.Code, "start qualification")
	resp := testutil.AssertJSONResponse(t, rr, "ok")

	result, ok := resp["result"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing result payload: %v", resp)
	}
	if result["conversation_id"] == "" {
		t.Error("missing conversation_id")
	}
	if result["current_step"].(float64) != 1 {
		t.Errorf("current_step = %v, want 1", result["current_step"])
	}
	if result["total_steps"].(float64) != 4 {
		t.Errorf("total_steps = %v, want 4", result["total_steps"])
	}
	if result["question"] == "" {
		t.Error("missing opening question")
	}

	// Prospect created on first contact.
	p, _ := deps.Store.GetProspect("pros_1")
	if p == nil || p.CompanyName != "Acme Clinics" {
		t.Errorf("prospect not created: %+v", p)
	}
}

func TestStartQualificationValidation(t *testing.T) {
	srv, _ := testutil.NewTestServer()
	handler := srv.Routes()

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/api/v1/qualification/start",
		models.StartQualificationRequest{ProspectID: "  "})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "empty prospect id")
	testutil.AssertJSONResponse(t, rr, "error")
}

// startConversation starts a round and returns its conversation ID.
func startConversation(t *testing.T, handler http.Handler, prospectID string) string {
	t.Helper()
	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/api/v1/qualification/start",
		models.StartQualificationRequest{ProspectID: prospectID})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("start failed with status %d: %s", rr.Code, rr.Body.String())
	}
	resp := testutil.AssertJSONResponse(t, rr, "ok")
	result := resp["result"].(map[string]interface{})
	return result["conversation_id"].(string)
}

// respond submits one utterance and returns the result payload.
func respond(t *testing.T, handler http.Handler, conversationID, text string) map[string]interface{} {
	t.Helper()
	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/api/v1/qualification/respond",
		models.SubmitResponseRequest{ConversationID: conversationID, ResponseText: text})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("respond failed with status %d: %s", rr.Code, rr.Body.String())
	}
	resp := testutil.AssertJSONResponse(t, rr, "ok")
	return resp["result"].(map[string]interface{})
}

func TestFullQualificationFlow(t *testing.T) {
	srv, _ := testutil.NewTestServer()
	handler := srv.Routes()
	convID := startConversation(t, handler, "pros_flow")

	var last map[string]interface{}
	for step := 1; step <= models.TotalSteps; step++ {
		last = respond(t, handler, convID, stepAnswers[step])
	}

	if last["is_complete"] != true {
		t.Errorf("is_complete = %v, want true", last["is_complete"])
	}
	if last["progress"].(float64) != 100 {
		t.Errorf("progress = %v, want 100", last["progress"])
	}

	// Results now available.
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodGet, "/api/v1/qualification/"+convID+"/results", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "results after completion")
	resp := testutil.AssertJSONResponse(t, rr, "ok")
	result := resp["result"].(map[string]interface{})
	if result["extracted_data"] == nil {
		t.Error("results missing extracted_data")
	}
	quality := result["data_quality"].(map[string]interface{})
	if quality["quality"] != "High" {
		t.Errorf("quality = %v, want High for full data", quality["quality"])
	}
}

func TestRespondFollowUp(t *testing.T) {
	srv, _ := testutil.NewTestServer()
	handler := srv.Routes()
	convID := startConversation(t, handler, "pros_fu")

	result := respond(t, handler, convID, "We're in healthcare")
	if result["is_follow_up"] != true {
		t.Errorf("is_follow_up = %v, want true", result["is_follow_up"])
	}
	if result["current_step"].(float64) != 1 {
		t.Errorf("current_step = %v, want unchanged 1", result["current_step"])
	}
}

func TestRespondUnknownConversation(t *testing.T) {
	srv, _ := testutil.NewTestServer()
	handler := srv.Routes()

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/api/v1/qualification/respond",
		models.SubmitResponseRequest{ConversationID: "conv_missing", ResponseText: "hello"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "unknown conversation")
	testutil.AssertJSONResponse(t, rr, "error")
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := testutil.NewTestServer()
	handler := srv.Routes()
	convID := startConversation(t, handler, "pros_status")
	respond(t, handler, convID, stepAnswers[1])

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodGet, "/api/v1/qualification/"+convID+"/status", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "status")
	resp := testutil.AssertJSONResponse(t, rr, "ok")
	result := resp["result"].(map[string]interface{})
	if result["current_step"].(float64) != 2 {
		t.Errorf("current_step = %v, want 2 after completing step 1", result["current_step"])
	}
	if result["status"] != string(models.RoundStatusInProgress) {
		t.Errorf("status = %v, want in_progress", result["status"])
	}
}

func TestResultsBeforeCompletionConflict(t *testing.T) {
	srv, _ := testutil.NewTestServer()
	handler := srv.Routes()
	convID := startConversation(t, handler, "pros_conflict")
	respond(t, handler, convID, stepAnswers[1])

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodGet, "/api/v1/qualification/"+convID+"/results", nil))
	testutil.AssertHTTPStatus(t, http.StatusConflict, rr.Code, "results before completion")
	resp := testutil.AssertJSONResponse(t, rr, "error")

	// The conflict response carries current progress for polling.
	result, ok := resp["result"].(map[string]interface{})
	if !ok {
		t.Fatalf("conflict response missing result payload: %v", resp)
	}
	if _, ok := result["progress"]; !ok {
		t.Error("conflict response missing progress")
	}
}

func TestScoreEndpoint(t *testing.T) {
	srv, deps := testutil.NewTestServer()
	handler := srv.Routes()
	convID := startConversation(t, handler, "pros_score")
	for step := 1; step <= models.TotalSteps; step++ {
		respond(t, handler, convID, stepAnswers[step])
	}

	deps.Scorer.ScoreResult = &models.RoundScore{TotalScore: 81, Category: "hot"}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodPost, "/api/v1/qualification/"+convID+"/score", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "score completed round")
	testutil.AssertJSONResponse(t, rr, "ok")

	round, _ := deps.Store.GetRound(convID)
	if round.Score == nil || *round.Score != 81 {
		t.Errorf("persisted score = %v, want 81", round.Score)
	}
	if round.ScoreCategory != "hot" {
		t.Errorf("persisted category = %q, want hot", round.ScoreCategory)
	}
}

func TestScoreIncompleteRoundConflict(t *testing.T) {
	srv, _ := testutil.NewTestServer()
	handler := srv.Routes()
	convID := startConversation(t, handler, "pros_early")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodPost, "/api/v1/qualification/"+convID+"/score", nil))
	testutil.AssertHTTPStatus(t, http.StatusConflict, rr.Code, "score incomplete round")
}

func TestScoreUpstreamFailureLeavesRoundUntouched(t *testing.T) {
	srv, deps := testutil.NewTestServer()
	handler := srv.Routes()
	convID := startConversation(t, handler, "pros_fail")
	for step := 1; step <= models.TotalSteps; step++ {
		respond(t, handler, convID, stepAnswers[step])
	}

	deps.Scorer.ScoreErr = errors.New("provider down")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodPost, "/api/v1/qualification/"+convID+"/score", nil))
	testutil.AssertHTTPStatus(t, http.StatusBadGateway, rr.Code, "score provider failure")
	testutil.AssertJSONResponse(t, rr, "error")

	round, _ := deps.Store.GetRound(convID)
	if round.Score != nil {
		t.Errorf("score persisted despite provider failure: %v", *round.Score)
	}
	if round.Status != models.RoundStatusCompleted {
		t.Errorf("round status corrupted by failed scoring: %q", round.Status)
	}
}

func TestEligibilityEndpointSendsNotification(t *testing.T) {
	srv, deps := testutil.NewTestServer()
	handler := srv.Routes()

	now := time.Now()
	score := 70
	completedAt := now.Add(-72 * time.Hour)
	deps.Store.SaveProspect(models.Prospect{ID: "pros_elig", PhoneNumber: "+15550001111", CreatedAt: now, UpdatedAt: now})
	deps.Store.SaveRound(models.ConversationRound{
		ID: "conv_done", ProspectID: "pros_elig", RoundNumber: 1,
		Status: models.RoundStatusCompleted, CurrentStep: models.TotalSteps,
		Score: &score, StartedAt: completedAt.Add(-time.Hour), CompletedAt: &completedAt,
		CreatedAt: completedAt, UpdatedAt: completedAt,
	})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodGet, "/api/v1/prospects/pros_elig/eligibility?round=2", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "eligibility check")
	resp := testutil.AssertJSONResponse(t, rr, "ok")
	result := resp["result"].(map[string]interface{})
	if result["eligible"] != true {
		t.Errorf("eligible = %v, want true", result["eligible"])
	}

	if len(deps.Notifier.SentMessages) != 1 {
		t.Fatalf("expected 1 notification SMS, got %d", len(deps.Notifier.SentMessages))
	}
	if deps.Notifier.SentMessages[0].To != "+15550001111" {
		t.Errorf("SMS sent to %q, want +15550001111", deps.Notifier.SentMessages[0].To)
	}
}

func TestEligibilityIneligibleNoNotification(t *testing.T) {
	srv, deps := testutil.NewTestServer()
	handler := srv.Routes()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodGet, "/api/v1/prospects/pros_none/eligibility?round=2", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "eligibility check")
	resp := testutil.AssertJSONResponse(t, rr, "ok")
	result := resp["result"].(map[string]interface{})
	if result["eligible"] != false {
		t.Errorf("eligible = %v, want false", result["eligible"])
	}
	if result["reason"] != string(models.GateReasonConversationNotFound) {
		t.Errorf("reason = %v, want conversation_not_found", result["reason"])
	}
	if len(deps.Notifier.SentMessages) != 0 {
		t.Errorf("notification sent for ineligible prospect: %v", deps.Notifier.SentMessages)
	}
}

func TestEligibilityBadRoundParam(t *testing.T) {
	srv, _ := testutil.NewTestServer()
	handler := srv.Routes()

	for _, q := range []string{"round=abc", "round=9", ""} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodGet, "/api/v1/prospects/p/eligibility?"+q, nil))
		testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "eligibility with "+q)
	}
}

func TestProspectCRUD(t *testing.T) {
	srv, _ := testutil.NewTestServer()
	handler := srv.Routes()

	// Create
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodPost, "/api/v1/prospects",
		models.CreateProspectRequest{CompanyName: "Acme", ContactName: "Jo", Email: "jo@acme.test"}))
	testutil.AssertHTTPStatus(t, http.StatusCreated, rr.Code, "create prospect")
	resp := testutil.AssertJSONResponse(t, rr, "ok")
	created := resp["result"].(map[string]interface{})
	id := created["id"].(string)
	if id == "" {
		t.Fatal("created prospect has no ID")
	}

	// Get
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodGet, "/api/v1/prospects/"+id, nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "get prospect")

	// List
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodGet, "/api/v1/prospects", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "list prospects")

	// Delete
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodDelete, "/api/v1/prospects/"+id, nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "delete prospect")

	// Gone
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodGet, "/api/v1/prospects/"+id, nil))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "get deleted prospect")
}

func TestCreateProspectValidation(t *testing.T) {
	srv, _ := testutil.NewTestServer()
	handler := srv.Routes()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodPost, "/api/v1/prospects",
		models.CreateProspectRequest{CompanyName: "Acme", Email: "not-an-email"}))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "invalid email")

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodPost, "/api/v1/prospects",
		models.CreateProspectRequest{}))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "missing company name")
}

func TestStartSecondRoundGated(t *testing.T) {
	srv, deps := testutil.NewTestServer()
	handler := srv.Routes()

	// Complete round 1 with a low score.
	convID := startConversation(t, handler, "pros_gated")
	for step := 1; step <= models.TotalSteps; step++ {
		respond(t, handler, convID, stepAnswers[step])
	}
	round, _ := deps.Store.GetRound(convID)
	score := 40
	round.Score = &score
	completedAt := time.Now().Add(-100 * time.Hour)
	round.CompletedAt = &completedAt
	deps.Store.SaveRound(*round)

	// Round 2 start must be rejected by the gate.
	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/api/v1/qualification/start",
		models.StartQualificationRequest{ProspectID: "pros_gated"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, http.StatusForbidden, rr.Code, "gated round start")
	resp := testutil.AssertJSONResponse(t, rr, "error")
	result := resp["result"].(map[string]interface{})
	if result["reason"] != string(models.GateReasonScoreBelowMinimum) {
		t.Errorf("reason = %v, want score_below_minimum", result["reason"])
	}
}

func TestRoundsEndpoint(t *testing.T) {
	srv, _ := testutil.NewTestServer()
	handler := srv.Routes()
	startConversation(t, handler, "pros_rounds")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodGet, "/api/v1/prospects/pros_rounds/rounds", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "list rounds")
	resp := testutil.AssertJSONResponse(t, rr, "ok")
	rounds := resp["result"].([]interface{})
	if len(rounds) != 1 {
		t.Errorf("expected 1 round, got %d", len(rounds))
	}
}

func TestTranscriptEndpoint(t *testing.T) {
	srv, _ := testutil.NewTestServer()
	handler := srv.Routes()
	convID := startConversation(t, handler, "pros_tx")
	respond(t, handler, convID, "We're in healthcare")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodGet, "/api/v1/qualification/"+convID+"/transcript", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "get transcript")
	resp := testutil.AssertJSONResponse(t, rr, "ok")
	// Opening question, user turn, follow-up.
	msgs := resp["result"].([]interface{})
	if len(msgs) != 3 {
		t.Errorf("expected 3 transcript messages, got %d", len(msgs))
	}
}
