// Package models defines the core data structures for Yenta.
//
// It includes prospects, conversation rounds, transcripts, and the
// request/response payloads shared across modules.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TotalSteps is the number of intake steps within a single qualification round.
const TotalSteps = 4

// MaxRounds is the maximum number of qualification rounds per prospect.
const MaxRounds = 3

// Validation constants for input validation
const (
	// MaxResponseTextLength defines the maximum allowed length for a prospect utterance
	MaxResponseTextLength = 4096
	// MaxCompanyNameLength defines the maximum allowed length for a company name
	MaxCompanyNameLength = 200
)

// Error variables for better error handling and testability
var (
	ErrEmptyProspectID      = errors.New("prospect_id cannot be empty")
	ErrEmptyConversationID  = errors.New("conversation_id cannot be empty")
	ErrEmptyResponseText    = errors.New("response_text cannot be empty")
	ErrResponseTextTooLong  = errors.New("response_text exceeds maximum length")
	ErrCompanyNameTooLong   = errors.New("company_name exceeds maximum length")
	ErrInvalidRoundNumber   = errors.New("round number must be between 1 and 3")
	ErrProspectNotFound     = errors.New("prospect not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrRoundNotCompleted    = errors.New("conversation round is not completed")
)

// RoundStatus represents the lifecycle status of a conversation round.
type RoundStatus string

const (
	// RoundStatusNotStarted indicates the round exists but intake has not begun.
	RoundStatusNotStarted RoundStatus = "not_started"
	// RoundStatusInProgress indicates the round is mid-intake.
	RoundStatusInProgress RoundStatus = "in_progress"
	// RoundStatusCompleted indicates all required fields for every step are satisfied.
	RoundStatusCompleted RoundStatus = "completed"
)

// IsValidRoundStatus checks if the given round status is supported.
func IsValidRoundStatus(st RoundStatus) bool {
	switch st {
	case RoundStatusNotStarted, RoundStatusInProgress, RoundStatusCompleted:
		return true
	default:
		return false
	}
}

// FieldName identifies a structured qualification field extracted from free text.
type FieldName string

// Qualification field vocabulary.
const (
	FieldProblemType   FieldName = "problemType"
	FieldJobFunction   FieldName = "jobFunction"
	FieldIndustry      FieldName = "industry"
	FieldSolutionType  FieldName = "solutionType"
	FieldTeamSize      FieldName = "teamSize"
	FieldTimeline      FieldName = "timeline"
	FieldUrgencyReason FieldName = "urgencyReason"
	FieldBudgetStatus  FieldName = "budgetStatus"
	FieldAuthority     FieldName = "authority"
)

// requiredFieldsByStep maps each intake step to the fields that must be
// satisfied before the step is complete. Step order: problem, solution,
// urgency, budget.
var requiredFieldsByStep = map[int][]FieldName{
	1: {FieldProblemType, FieldJobFunction, FieldIndustry},
	2: {FieldSolutionType, FieldTeamSize},
	3: {FieldTimeline, FieldUrgencyReason},
	4: {FieldBudgetStatus, FieldAuthority},
}

// RequiredFields returns the fields a step needs before it can complete.
// Unknown steps return nil.
func RequiredFields(step int) []FieldName {
	return requiredFieldsByStep[step]
}

// AllFields returns every field in the qualification vocabulary in step order.
func AllFields() []FieldName {
	var fields []FieldName
	for step := 1; step <= TotalSteps; step++ {
		fields = append(fields, requiredFieldsByStep[step]...)
	}
	return fields
}

// ExtractedData holds the accumulated structured fields for a round.
// Entries are only ever added or overwritten, never deleted.
type ExtractedData map[FieldName]string

// Clone returns a copy of the map so callers can merge without aliasing.
func (d ExtractedData) Clone() ExtractedData {
	out := make(ExtractedData, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// MissingRequired returns the unsatisfied required fields for a step, in
// declaration order.
func (d ExtractedData) MissingRequired(step int) []FieldName {
	var missing []FieldName
	for _, f := range RequiredFields(step) {
		if d[f] == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// Progress returns the percentage of required fields satisfied across all
// steps, rounded down.
func (d ExtractedData) Progress() int {
	all := AllFields()
	if len(all) == 0 {
		return 0
	}
	filled := 0
	for _, f := range all {
		if d[f] != "" {
			filled++
		}
	}
	return filled * 100 / len(all)
}

// TranscriptMessage represents a single role-tagged message in a round's transcript.
type TranscriptMessage struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Prospect represents a company contact going through qualification.
type Prospect struct {
	ID          string    `json:"id"`
	CompanyName string    `json:"company_name,omitempty"`
	ContactName string    `json:"contact_name,omitempty"`
	Email       string    `json:"email,omitempty"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ConversationRound represents one qualification conversation for a prospect.
type ConversationRound struct {
	ID            string        `json:"id"`
	ProspectID    string        `json:"prospect_id"`
	RoundNumber   int           `json:"round_number"`
	Status        RoundStatus   `json:"status"`
	CurrentStep   int           `json:"current_step"`
	ExtractedData ExtractedData `json:"extracted_data,omitempty"`
	Score         *int          `json:"score,omitempty"`
	ScoreCategory string        `json:"score_category,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Progress reports overall intake progress for the round as a percentage.
func (r *ConversationRound) Progress() int {
	if r.Status == RoundStatusCompleted {
		return 100
	}
	return r.ExtractedData.Progress()
}

// RoundScore is the result of scoring a completed round's transcript.
type RoundScore struct {
	TotalScore int    `json:"total_score"` // 0-100
	Category   string `json:"category"`
}

// QualityLevel grades extracted data completeness.
type QualityLevel string

const (
	QualityLow    QualityLevel = "Low"
	QualityMedium QualityLevel = "Medium"
	QualityHigh   QualityLevel = "High"
)

// DataQuality summarizes completeness of a round's extracted data.
type DataQuality struct {
	Completeness    int          `json:"completeness"` // percent
	Quality         QualityLevel `json:"quality"`
	FilledFields    int          `json:"filled_fields"`
	TotalFields     int          `json:"total_fields"`
	MissingCritical []FieldName  `json:"missing_critical,omitempty"`
}

// GateReason enumerates the outcomes of a round eligibility check.
type GateReason string

const (
	GateReasonConversationNotFound GateReason = "conversation_not_found"
	GateReasonScoreBelowMinimum    GateReason = "score_below_minimum"
	GateReasonTooSoon              GateReason = "too_soon"
	GateReasonRequirementsMet      GateReason = "requirements_met"
)

// EligibilityResult reports whether a prospect may begin a requested round.
type EligibilityResult struct {
	Eligible bool       `json:"eligible"`
	Reason   GateReason `json:"reason"`
}

// StartQualificationRequest is the payload for starting a qualification round.
type StartQualificationRequest struct {
	ProspectID  string `json:"prospect_id"`
	CompanyName string `json:"company_name,omitempty"`
}

// Validate checks the start request for required fields.
func (r *StartQualificationRequest) Validate() error {
	if strings.TrimSpace(r.ProspectID) == "" {
		return ErrEmptyProspectID
	}
	if len(r.CompanyName) > MaxCompanyNameLength {
		return ErrCompanyNameTooLong
	}
	return nil
}

// SubmitResponseRequest is the payload for submitting a prospect utterance.
type SubmitResponseRequest struct {
	ConversationID string `json:"conversation_id"`
	ResponseText   string `json:"response_text"`
}

// Validate checks the submit request for required fields.
func (r *SubmitResponseRequest) Validate() error {
	if strings.TrimSpace(r.ConversationID) == "" {
		return ErrEmptyConversationID
	}
	if strings.TrimSpace(r.ResponseText) == "" {
		return ErrEmptyResponseText
	}
	if len(r.ResponseText) > MaxResponseTextLength {
		return ErrResponseTextTooLong
	}
	return nil
}

// CreateProspectRequest is the payload for registering a prospect.
type CreateProspectRequest struct {
	CompanyName string `json:"company_name"`
	ContactName string `json:"contact_name,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// Validate checks the prospect creation request.
func (r *CreateProspectRequest) Validate() error {
	if strings.TrimSpace(r.CompanyName) == "" {
		return errors.New("company_name is required")
	}
	if len(r.CompanyName) > MaxCompanyNameLength {
		return ErrCompanyNameTooLong
	}
	if r.Email != "" && !strings.Contains(r.Email, "@") {
		return fmt.Errorf("invalid email address: %s", r.Email)
	}
	return nil
}

// StartQualificationResult is returned when a round is started.
type StartQualificationResult struct {
	ConversationID string `json:"conversation_id"`
	Question       string `json:"question"`
	CurrentStep    int    `json:"current_step"`
	TotalSteps     int    `json:"total_steps"`
}

// SubmitResponseResult is returned after each prospect turn.
type SubmitResponseResult struct {
	Question        string `json:"question"`
	IsFollowUp      bool   `json:"is_follow_up"`
	SectionComplete bool   `json:"section_complete"`
	CurrentStep     int    `json:"current_step"`
	Progress        int    `json:"progress"`
	IsComplete      bool   `json:"is_complete"`
}

// QualificationStatus reports round progress for polling clients.
type QualificationStatus struct {
	CurrentStep   int           `json:"current_step"`
	TotalSteps    int           `json:"total_steps"`
	Status        RoundStatus   `json:"status"`
	ExtractedData ExtractedData `json:"extracted_data,omitempty"`
	Progress      int           `json:"progress"`
}

// QualificationResults carries the final extracted data for a completed round.
type QualificationResults struct {
	ExtractedData ExtractedData `json:"extracted_data"`
	DataQuality   DataQuality   `json:"data_quality"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}

// ErrorWithResult creates an error API response carrying result data, used for
// state-conflict responses that include current progress.
func ErrorWithResult(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message, Result: result}
}
