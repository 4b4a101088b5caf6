package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/carsonraft/yenta/internal/models"
)

// roundSelect is the shared column list for conversation round queries.
const roundSelect = `SELECT id, prospect_id, round_number, status, current_step, extracted_data,
	score, score_category, started_at, completed_at, created_at, updated_at FROM conversation_rounds`

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanProspect scans a Prospect from sql.Rows.
func scanProspect(rows *sql.Rows) (models.Prospect, error) {
	var p models.Prospect
	var companyName, contactName, email, phoneNumber sql.NullString
	err := rows.Scan(&p.ID, &companyName, &contactName, &email, &phoneNumber, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, fmt.Errorf("scan prospect failed: %w", err)
	}
	p.CompanyName = companyName.String
	p.ContactName = contactName.String
	p.Email = email.String
	p.PhoneNumber = phoneNumber.String
	return p, nil
}

// scanProspectRow scans a Prospect from a single sql.Row.
func scanProspectRow(row *sql.Row) (models.Prospect, error) {
	var p models.Prospect
	var companyName, contactName, email, phoneNumber sql.NullString
	err := row.Scan(&p.ID, &companyName, &contactName, &email, &phoneNumber, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	p.CompanyName = companyName.String
	p.ContactName = contactName.String
	p.Email = email.String
	p.PhoneNumber = phoneNumber.String
	return p, nil
}

// scanRound scans a ConversationRound from sql.Rows.
func scanRound(rows *sql.Rows) (models.ConversationRound, error) {
	var r models.ConversationRound
	var status string
	var dataJSON, scoreCategory sql.NullString
	var score sql.NullInt64
	var completedAt sql.NullTime
	err := rows.Scan(&r.ID, &r.ProspectID, &r.RoundNumber, &status, &r.CurrentStep,
		&dataJSON, &score, &scoreCategory, &r.StartedAt, &completedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return r, fmt.Errorf("scan round failed: %w", err)
	}
	if err := fillRound(&r, status, dataJSON, score, scoreCategory, completedAt); err != nil {
		return r, err
	}
	return r, nil
}

// scanRoundRow scans a ConversationRound from a single sql.Row.
func scanRoundRow(row *sql.Row) (models.ConversationRound, error) {
	var r models.ConversationRound
	var status string
	var dataJSON, scoreCategory sql.NullString
	var score sql.NullInt64
	var completedAt sql.NullTime
	err := row.Scan(&r.ID, &r.ProspectID, &r.RoundNumber, &status, &r.CurrentStep,
		&dataJSON, &score, &scoreCategory, &r.StartedAt, &completedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return r, err
	}
	if err := fillRound(&r, status, dataJSON, score, scoreCategory, completedAt); err != nil {
		return r, err
	}
	return r, nil
}

func fillRound(r *models.ConversationRound, status string, dataJSON sql.NullString, score sql.NullInt64, scoreCategory sql.NullString, completedAt sql.NullTime) error {
	st := models.RoundStatus(status)
	if !models.IsValidRoundStatus(st) {
		return fmt.Errorf("invalid round status %q for conversation %s", status, r.ID)
	}
	r.Status = st
	r.ScoreCategory = scoreCategory.String
	if score.Valid {
		v := int(score.Int64)
		r.Score = &v
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	if dataJSON.String != "" {
		r.ExtractedData = make(models.ExtractedData)
		if err := json.Unmarshal([]byte(dataJSON.String), &r.ExtractedData); err != nil {
			slog.Error("Failed to unmarshal extracted data", "error", err, "conversationID", r.ID)
			// Continue with empty map rather than failing
			r.ExtractedData = make(models.ExtractedData)
		}
	}
	return nil
}
