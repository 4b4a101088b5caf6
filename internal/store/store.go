// Package store provides storage backends for Yenta.
//
// It includes an in-memory store for tests and development, plus SQLite and
// PostgreSQL backed stores for persistent deployments.
package store

import (
	"sort"
	"sync"

	"github.com/carsonraft/yenta/internal/models"
)

// Store defines the persistence operations the qualification flow depends on.
// Lookups return (nil, nil) when the record does not exist. Each call is
// assumed atomic; the store's transaction semantics are the only protection
// against concurrent turns on the same conversation.
type Store interface {
	SaveProspect(p models.Prospect) error
	GetProspect(id string) (*models.Prospect, error)
	ListProspects() ([]models.Prospect, error)
	DeleteProspect(id string) error

	SaveRound(r models.ConversationRound) error
	GetRound(conversationID string) (*models.ConversationRound, error)
	GetRoundByNumber(prospectID string, roundNumber int) (*models.ConversationRound, error)
	ListRounds(prospectID string) ([]models.ConversationRound, error)

	AppendTranscript(conversationID string, msg models.TranscriptMessage) error
	GetTranscript(conversationID string) ([]models.TranscriptMessage, error)

	Close() error
}

// InMemoryStore is a simple in-memory store for prospects, rounds, and transcripts.
type InMemoryStore struct {
	mu          sync.RWMutex
	prospects   map[string]models.Prospect
	rounds      map[string]models.ConversationRound
	transcripts map[string][]models.TranscriptMessage
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		prospects:   make(map[string]models.Prospect),
		rounds:      make(map[string]models.ConversationRound),
		transcripts: make(map[string][]models.TranscriptMessage),
	}
}

// SaveProspect stores or updates a prospect.
func (s *InMemoryStore) SaveProspect(p models.Prospect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prospects[p.ID] = p
	return nil
}

// GetProspect retrieves a prospect by ID.
func (s *InMemoryStore) GetProspect(id string) (*models.Prospect, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prospects[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// ListProspects retrieves all prospects.
func (s *InMemoryStore) ListProspects() ([]models.Prospect, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Prospect, 0, len(s.prospects))
	for _, p := range s.prospects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// DeleteProspect removes a prospect and its rounds and transcripts.
func (s *InMemoryStore) DeleteProspect(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prospects, id)
	for convID, r := range s.rounds {
		if r.ProspectID == id {
			delete(s.rounds, convID)
			delete(s.transcripts, convID)
		}
	}
	return nil
}

// SaveRound stores or updates a conversation round.
func (s *InMemoryStore) SaveRound(r models.ConversationRound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Copy the extracted data so callers can't mutate stored state through the map.
	r.ExtractedData = r.ExtractedData.Clone()
	s.rounds[r.ID] = r
	return nil
}

// GetRound retrieves a round by conversation ID.
func (s *InMemoryStore) GetRound(conversationID string) (*models.ConversationRound, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rounds[conversationID]
	if !ok {
		return nil, nil
	}
	r.ExtractedData = r.ExtractedData.Clone()
	return &r, nil
}

// GetRoundByNumber retrieves a prospect's round by round number.
func (s *InMemoryStore) GetRoundByNumber(prospectID string, roundNumber int) (*models.ConversationRound, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rounds {
		if r.ProspectID == prospectID && r.RoundNumber == roundNumber {
			r.ExtractedData = r.ExtractedData.Clone()
			return &r, nil
		}
	}
	return nil, nil
}

// ListRounds retrieves all rounds for a prospect ordered by round number.
func (s *InMemoryStore) ListRounds(prospectID string) ([]models.ConversationRound, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ConversationRound
	for _, r := range s.rounds {
		if r.ProspectID == prospectID {
			r.ExtractedData = r.ExtractedData.Clone()
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber < out[j].RoundNumber })
	return out, nil
}

// AppendTranscript appends a message to a conversation's transcript.
func (s *InMemoryStore) AppendTranscript(conversationID string, msg models.TranscriptMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts[conversationID] = append(s.transcripts[conversationID], msg)
	return nil
}

// GetTranscript retrieves a conversation's transcript in append order.
func (s *InMemoryStore) GetTranscript(conversationID string) ([]models.TranscriptMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.transcripts[conversationID]
	out := make([]models.TranscriptMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
