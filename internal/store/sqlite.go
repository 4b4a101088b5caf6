// Package store provides storage backends for Yenta.
//
// This file implements an SQLite-backed store for prospects, rounds, and transcripts.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/carsonraft/yenta/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	// Determine DSN (required)
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	slog.Debug("SQLite database directory verified/created", "dir", dir)

	slog.Debug("Opening SQLite database connection")
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	slog.Debug("SQLite database opened")

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}
	slog.Debug("SQLite ping successful")

	// Run migrations to ensure tables exist
	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// SaveProspect stores or updates a prospect.
func (s *SQLiteStore) SaveProspect(p models.Prospect) error {
	query := `
		INSERT OR REPLACE INTO prospects (id, company_name, contact_name, email, phone_number, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.Exec(query, p.ID, nilIfEmpty(p.CompanyName), nilIfEmpty(p.ContactName),
		nilIfEmpty(p.Email), nilIfEmpty(p.PhoneNumber), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveProspect failed", "error", err, "prospectID", p.ID)
		return fmt.Errorf("failed to save prospect %s: %w", p.ID, err)
	}
	slog.Debug("SQLiteStore SaveProspect succeeded", "prospectID", p.ID)
	return nil
}

// GetProspect retrieves a prospect by ID. Returns (nil, nil) if not found.
func (s *SQLiteStore) GetProspect(id string) (*models.Prospect, error) {
	query := `SELECT id, company_name, contact_name, email, phone_number, created_at, updated_at FROM prospects WHERE id = ?`
	p, err := scanProspectRow(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetProspect not found", "prospectID", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetProspect failed", "error", err, "prospectID", id)
		return nil, err
	}
	slog.Debug("SQLiteStore GetProspect found", "prospectID", id)
	return &p, nil
}

// ListProspects retrieves all prospects ordered by creation time.
func (s *SQLiteStore) ListProspects() ([]models.Prospect, error) {
	rows, err := s.db.Query(`SELECT id, company_name, contact_name, email, phone_number, created_at, updated_at FROM prospects ORDER BY created_at`)
	if err != nil {
		slog.Error("SQLiteStore ListProspects query failed", "error", err)
		return nil, fmt.Errorf("failed to query prospects: %w", err)
	}
	defer rows.Close()

	var prospects []models.Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			slog.Error("SQLiteStore ListProspects scan failed", "error", err)
			return nil, err
		}
		prospects = append(prospects, p)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListProspects rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate prospect rows: %w", err)
	}
	slog.Debug("SQLiteStore ListProspects succeeded", "count", len(prospects))
	return prospects, nil
}

// DeleteProspect removes a prospect and all associated rounds and transcripts.
func (s *SQLiteStore) DeleteProspect(id string) error {
	if _, err := s.db.Exec(`DELETE FROM transcript_messages WHERE conversation_id IN (SELECT id FROM conversation_rounds WHERE prospect_id = ?)`, id); err != nil {
		slog.Error("SQLiteStore DeleteProspect transcript cleanup failed", "error", err, "prospectID", id)
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM conversation_rounds WHERE prospect_id = ?`, id); err != nil {
		slog.Error("SQLiteStore DeleteProspect round cleanup failed", "error", err, "prospectID", id)
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM prospects WHERE id = ?`, id); err != nil {
		slog.Error("SQLiteStore DeleteProspect failed", "error", err, "prospectID", id)
		return err
	}
	slog.Debug("SQLiteStore DeleteProspect succeeded", "prospectID", id)
	return nil
}

// SaveRound stores or updates a conversation round.
func (s *SQLiteStore) SaveRound(r models.ConversationRound) error {
	query := `
		INSERT OR REPLACE INTO conversation_rounds (id, prospect_id, round_number, status, current_step,
			extracted_data, score, score_category, started_at, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	dataJSON, err := marshalExtractedData(r.ExtractedData)
	if err != nil {
		slog.Error("SQLiteStore SaveRound JSON marshal failed", "error", err, "conversationID", r.ID)
		return err
	}

	_, err = s.db.Exec(query, r.ID, r.ProspectID, r.RoundNumber, string(r.Status), r.CurrentStep,
		nilIfEmpty(dataJSON), r.Score, nilIfEmpty(r.ScoreCategory), r.StartedAt, r.CompletedAt,
		r.CreatedAt, r.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveRound failed", "error", err, "conversationID", r.ID, "prospectID", r.ProspectID)
		return fmt.Errorf("failed to save round %s: %w", r.ID, err)
	}
	slog.Debug("SQLiteStore SaveRound succeeded", "conversationID", r.ID, "status", r.Status, "step", r.CurrentStep)
	return nil
}

// GetRound retrieves a round by conversation ID. Returns (nil, nil) if not found.
func (s *SQLiteStore) GetRound(conversationID string) (*models.ConversationRound, error) {
	query := roundSelect + ` WHERE id = ?`
	r, err := scanRoundRow(s.db.QueryRow(query, conversationID))
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetRound not found", "conversationID", conversationID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetRound failed", "error", err, "conversationID", conversationID)
		return nil, err
	}
	slog.Debug("SQLiteStore GetRound found", "conversationID", conversationID, "status", r.Status)
	return &r, nil
}

// GetRoundByNumber retrieves a prospect's round by number. Returns (nil, nil) if not found.
func (s *SQLiteStore) GetRoundByNumber(prospectID string, roundNumber int) (*models.ConversationRound, error) {
	query := roundSelect + ` WHERE prospect_id = ? AND round_number = ?`
	r, err := scanRoundRow(s.db.QueryRow(query, prospectID, roundNumber))
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetRoundByNumber not found", "prospectID", prospectID, "roundNumber", roundNumber)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetRoundByNumber failed", "error", err, "prospectID", prospectID, "roundNumber", roundNumber)
		return nil, err
	}
	return &r, nil
}

// ListRounds retrieves all rounds for a prospect ordered by round number.
func (s *SQLiteStore) ListRounds(prospectID string) ([]models.ConversationRound, error) {
	query := roundSelect + ` WHERE prospect_id = ? ORDER BY round_number`
	rows, err := s.db.Query(query, prospectID)
	if err != nil {
		slog.Error("SQLiteStore ListRounds query failed", "error", err, "prospectID", prospectID)
		return nil, fmt.Errorf("failed to query rounds: %w", err)
	}
	defer rows.Close()

	var rounds []models.ConversationRound
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			slog.Error("SQLiteStore ListRounds scan failed", "error", err)
			return nil, err
		}
		rounds = append(rounds, r)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListRounds rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate round rows: %w", err)
	}
	slog.Debug("SQLiteStore ListRounds succeeded", "prospectID", prospectID, "count", len(rounds))
	return rounds, nil
}

// AppendTranscript appends a message to a conversation's transcript.
func (s *SQLiteStore) AppendTranscript(conversationID string, msg models.TranscriptMessage) error {
	_, err := s.db.Exec(`INSERT INTO transcript_messages (conversation_id, role, content, timestamp) VALUES (?, ?, ?, ?)`,
		conversationID, msg.Role, msg.Content, msg.Timestamp)
	if err != nil {
		slog.Error("SQLiteStore AppendTranscript failed", "error", err, "conversationID", conversationID)
		return fmt.Errorf("failed to append transcript for %s: %w", conversationID, err)
	}
	slog.Debug("SQLiteStore AppendTranscript succeeded", "conversationID", conversationID, "role", msg.Role)
	return nil
}

// GetTranscript retrieves a conversation's transcript in append order.
func (s *SQLiteStore) GetTranscript(conversationID string) ([]models.TranscriptMessage, error) {
	rows, err := s.db.Query(`SELECT role, content, timestamp FROM transcript_messages WHERE conversation_id = ? ORDER BY id`, conversationID)
	if err != nil {
		slog.Error("SQLiteStore GetTranscript query failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to query transcript: %w", err)
	}
	defer rows.Close()

	var msgs []models.TranscriptMessage
	for rows.Next() {
		var m models.TranscriptMessage
		if err := rows.Scan(&m.Role, &m.Content, &m.Timestamp); err != nil {
			slog.Error("SQLiteStore GetTranscript scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan transcript row: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore GetTranscript rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate transcript rows: %w", err)
	}
	slog.Debug("SQLiteStore GetTranscript succeeded", "conversationID", conversationID, "count", len(msgs))
	return msgs, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	} else {
		slog.Debug("SQLite database connection closed successfully")
	}
	return err
}

// marshalExtractedData serializes extracted data to JSON for a TEXT column.
// Empty maps serialize to the empty string so the column stays NULL.
func marshalExtractedData(d models.ExtractedData) (string, error) {
	if len(d) == 0 {
		return "", nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
