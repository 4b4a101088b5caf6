// Package store provides storage backends for Yenta.
//
// This file implements a PostgreSQL-backed store for prospects, rounds, and transcripts.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/carsonraft/yenta/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	// Determine DSN (required)
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	slog.Debug("Opening Postgres database connection")
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	slog.Debug("Postgres database opened")

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	slog.Debug("Postgres ping successful")
	// Run migrations to ensure tables exist
	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// SaveProspect stores or updates a prospect.
func (s *PostgresStore) SaveProspect(p models.Prospect) error {
	query := `
		INSERT INTO prospects (id, company_name, contact_name, email, phone_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET company_name = EXCLUDED.company_name,
			contact_name = EXCLUDED.contact_name, email = EXCLUDED.email,
			phone_number = EXCLUDED.phone_number, updated_at = EXCLUDED.updated_at`
	_, err := s.db.Exec(query, p.ID, nilIfEmpty(p.CompanyName), nilIfEmpty(p.ContactName),
		nilIfEmpty(p.Email), nilIfEmpty(p.PhoneNumber), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveProspect failed", "error", err, "prospectID", p.ID)
		return fmt.Errorf("failed to save prospect %s: %w", p.ID, err)
	}
	slog.Debug("PostgresStore SaveProspect succeeded", "prospectID", p.ID)
	return nil
}

// GetProspect retrieves a prospect by ID. Returns (nil, nil) if not found.
func (s *PostgresStore) GetProspect(id string) (*models.Prospect, error) {
	query := `SELECT id, company_name, contact_name, email, phone_number, created_at, updated_at FROM prospects WHERE id = $1`
	p, err := scanProspectRow(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetProspect not found", "prospectID", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetProspect failed", "error", err, "prospectID", id)
		return nil, err
	}
	slog.Debug("PostgresStore GetProspect found", "prospectID", id)
	return &p, nil
}

// ListProspects retrieves all prospects ordered by creation time.
func (s *PostgresStore) ListProspects() ([]models.Prospect, error) {
	rows, err := s.db.Query(`SELECT id, company_name, contact_name, email, phone_number, created_at, updated_at FROM prospects ORDER BY created_at`)
	if err != nil {
		slog.Error("PostgresStore ListProspects query failed", "error", err)
		return nil, fmt.Errorf("failed to query prospects: %w", err)
	}
	defer rows.Close()

	var prospects []models.Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			slog.Error("PostgresStore ListProspects scan failed", "error", err)
			return nil, err
		}
		prospects = append(prospects, p)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListProspects rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate prospect rows: %w", err)
	}
	slog.Debug("PostgresStore ListProspects succeeded", "count", len(prospects))
	return prospects, nil
}

// DeleteProspect removes a prospect and all associated rounds and transcripts.
func (s *PostgresStore) DeleteProspect(id string) error {
	if _, err := s.db.Exec(`DELETE FROM transcript_messages WHERE conversation_id IN (SELECT id FROM conversation_rounds WHERE prospect_id = $1)`, id); err != nil {
		slog.Error("PostgresStore DeleteProspect transcript cleanup failed", "error", err, "prospectID", id)
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM conversation_rounds WHERE prospect_id = $1`, id); err != nil {
		slog.Error("PostgresStore DeleteProspect round cleanup failed", "error", err, "prospectID", id)
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM prospects WHERE id = $1`, id); err != nil {
		slog.Error("PostgresStore DeleteProspect failed", "error", err, "prospectID", id)
		return err
	}
	slog.Debug("PostgresStore DeleteProspect succeeded", "prospectID", id)
	return nil
}

// SaveRound stores or updates a conversation round.
func (s *PostgresStore) SaveRound(r models.ConversationRound) error {
	query := `
		INSERT INTO conversation_rounds (id, prospect_id, round_number, status, current_step,
			extracted_data, score, score_category, started_at, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, current_step = EXCLUDED.current_step,
			extracted_data = EXCLUDED.extracted_data, score = EXCLUDED.score,
			score_category = EXCLUDED.score_category, completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at`

	dataJSON, err := marshalExtractedData(r.ExtractedData)
	if err != nil {
		slog.Error("PostgresStore SaveRound JSON marshal failed", "error", err, "conversationID", r.ID)
		return err
	}

	_, err = s.db.Exec(query, r.ID, r.ProspectID, r.RoundNumber, string(r.Status), r.CurrentStep,
		nilIfEmpty(dataJSON), r.Score, nilIfEmpty(r.ScoreCategory), r.StartedAt, r.CompletedAt,
		r.CreatedAt, r.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveRound failed", "error", err, "conversationID", r.ID, "prospectID", r.ProspectID)
		return fmt.Errorf("failed to save round %s: %w", r.ID, err)
	}
	slog.Debug("PostgresStore SaveRound succeeded", "conversationID", r.ID, "status", r.Status, "step", r.CurrentStep)
	return nil
}

// GetRound retrieves a round by conversation ID. Returns (nil, nil) if not found.
func (s *PostgresStore) GetRound(conversationID string) (*models.ConversationRound, error) {
	query := roundSelect + ` WHERE id = $1`
	r, err := scanRoundRow(s.db.QueryRow(query, conversationID))
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetRound not found", "conversationID", conversationID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetRound failed", "error", err, "conversationID", conversationID)
		return nil, err
	}
	slog.Debug("PostgresStore GetRound found", "conversationID", conversationID, "status", r.Status)
	return &r, nil
}

// GetRoundByNumber retrieves a prospect's round by number. Returns (nil, nil) if not found.
func (s *PostgresStore) GetRoundByNumber(prospectID string, roundNumber int) (*models.ConversationRound, error) {
	query := roundSelect + ` WHERE prospect_id = $1 AND round_number = $2`
	r, err := scanRoundRow(s.db.QueryRow(query, prospectID, roundNumber))
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetRoundByNumber not found", "prospectID", prospectID, "roundNumber", roundNumber)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetRoundByNumber failed", "error", err, "prospectID", prospectID, "roundNumber", roundNumber)
		return nil, err
	}
	return &r, nil
}

// ListRounds retrieves all rounds for a prospect ordered by round number.
func (s *PostgresStore) ListRounds(prospectID string) ([]models.ConversationRound, error) {
	query := roundSelect + ` WHERE prospect_id = $1 ORDER BY round_number`
	rows, err := s.db.Query(query, prospectID)
	if err != nil {
		slog.Error("PostgresStore ListRounds query failed", "error", err, "prospectID", prospectID)
		return nil, fmt.Errorf("failed to query rounds: %w", err)
	}
	defer rows.Close()

	var rounds []models.ConversationRound
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			slog.Error("PostgresStore ListRounds scan failed", "error", err)
			return nil, err
		}
		rounds = append(rounds, r)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListRounds rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate round rows: %w", err)
	}
	slog.Debug("PostgresStore ListRounds succeeded", "prospectID", prospectID, "count", len(rounds))
	return rounds, nil
}

// AppendTranscript appends a message to a conversation's transcript.
func (s *PostgresStore) AppendTranscript(conversationID string, msg models.TranscriptMessage) error {
	_, err := s.db.Exec(`INSERT INTO transcript_messages (conversation_id, role, content, timestamp) VALUES ($1, $2, $3, $4)`,
		conversationID, msg.Role, msg.Content, msg.Timestamp)
	if err != nil {
		slog.Error("PostgresStore AppendTranscript failed", "error", err, "conversationID", conversationID)
		return fmt.Errorf("failed to append transcript for %s: %w", conversationID, err)
	}
	slog.Debug("PostgresStore AppendTranscript succeeded", "conversationID", conversationID, "role", msg.Role)
	return nil
}

// GetTranscript retrieves a conversation's transcript in append order.
func (s *PostgresStore) GetTranscript(conversationID string) ([]models.TranscriptMessage, error) {
	rows, err := s.db.Query(`SELECT role, content, timestamp FROM transcript_messages WHERE conversation_id = $1 ORDER BY id`, conversationID)
	if err != nil {
		slog.Error("PostgresStore GetTranscript query failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to query transcript: %w", err)
	}
	defer rows.Close()

	var msgs []models.TranscriptMessage
	for rows.Next() {
		var m models.TranscriptMessage
		if err := rows.Scan(&m.Role, &m.Content, &m.Timestamp); err != nil {
			slog.Error("PostgresStore GetTranscript scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan transcript row: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore GetTranscript rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate transcript rows: %w", err)
	}
	slog.Debug("PostgresStore GetTranscript succeeded", "conversationID", conversationID, "count", len(msgs))
	return msgs, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	} else {
		slog.Debug("Postgres database connection closed successfully")
	}
	return err
}
