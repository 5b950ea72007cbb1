// Package memory provides an in-memory settlement.Store for tests and dev
// mode. Guarded writes behave exactly like the SQLite implementation:
// the check-and-set happens under one lock, so lost races are observable.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kinen-app/challenge-engine/challenge"
	"github.com/kinen-app/challenge-engine/settlement"
)

type Store struct {
	mu         sync.RWMutex
	profiles   map[challenge.UserID]challenge.Profile
	challenges map[challenge.ChallengeID]challenge.Challenge
	records    map[challenge.ChallengeID]map[string]challenge.DailyRecord // keyed by date string
}

var _ settlement.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		profiles:   make(map[challenge.UserID]challenge.Profile),
		challenges: make(map[challenge.ChallengeID]challenge.Challenge),
		records:    make(map[challenge.ChallengeID]map[string]challenge.DailyRecord),
	}
}

// =============================================================================
// PROFILES
// =============================================================================

func (s *Store) SaveProfile(_ context.Context, p *challenge.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = *p
	return nil
}

func (s *Store) GetProfile(_ context.Context, userID challenge.UserID) (*challenge.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, challenge.ErrProfileNotFound
	}
	return &p, nil
}

// =============================================================================
// CHALLENGES
// =============================================================================

func (s *Store) CreateChallenge(_ context.Context, c *challenge.Challenge) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[c.ID] = *c
	return nil
}

func (s *Store) GetChallenge(_ context.Context, id challenge.ChallengeID) (*challenge.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.challenges[id]
	if !ok {
		return nil, challenge.ErrChallengeNotFound
	}
	return &c, nil
}

func (s *Store) CurrentChallenge(_ context.Context, userID challenge.UserID) (*challenge.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *challenge.Challenge
	for id := range s.challenges {
		c := s.challenges[id]
		if c.UserID != userID || c.Status == challenge.StatusAbandoned {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			cc := c
			latest = &cc
		}
	}
	if latest == nil {
		return nil, challenge.ErrChallengeNotFound
	}
	return latest, nil
}

func (s *Store) HasActiveChallenge(_ context.Context, userID challenge.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.challenges {
		if c.UserID == userID && c.Status == challenge.StatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListElapsedActive(_ context.Context, today challenge.Date) ([]challenge.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []challenge.Challenge
	for _, c := range s.challenges {
		if c.Status == challenge.StatusActive && c.EndDate.Before(today) {
			out = append(out, c)
		}
	}
	return out, nil
}

// =============================================================================
// DAILY RECORDS
// =============================================================================

func (s *Store) ListRecords(_ context.Context, id challenge.ChallengeID) ([]challenge.DailyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []challenge.DailyRecord
	for _, r := range s.records[id] {
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) UpsertRecord(_ context.Context, r *challenge.DailyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDate, ok := s.records[r.ChallengeID]
	if !ok {
		byDate = make(map[string]challenge.DailyRecord)
		s.records[r.ChallengeID] = byDate
	}
	key := r.Date.String()
	if existing, ok := byDate[key]; ok {
		// Date and existence are immutable; only the outcome fields move.
		existing.Smoked = r.Smoked
		existing.Note = r.Note
		byDate[key] = existing
		return nil
	}
	byDate[key] = *r
	return nil
}

// =============================================================================
// GUARDED TRANSITIONS
// =============================================================================

func (s *Store) CompleteChallenge(_ context.Context, id challenge.ChallengeID, successDays, failedDays int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[id]
	if !ok || c.Status != challenge.StatusActive {
		return false, nil
	}
	c.Status = challenge.StatusCompleted
	c.TotalSuccessDays = successDays
	c.TotalFailedDays = failedDays
	s.challenges[id] = c
	return true, nil
}

func (s *Store) MarkRefunded(_ context.Context, id challenge.ChallengeID, amount int64, refundID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[id]
	if !ok || c.RefundCompleted {
		return false, nil
	}
	c.RefundCompleted = true
	c.RefundAmount = &amount
	c.RefundCompletedAt = &at
	c.StripeRefundID = refundID
	s.challenges[id] = c
	return true, nil
}

func (s *Store) ConfirmPayment(_ context.Context, paymentIntentID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.challenges {
		if c.PaymentIntentID != paymentIntentID {
			continue
		}
		if !c.PaymentCompleted {
			c.PaymentCompleted = true
			c.PaymentCompletedAt = &at
			s.challenges[id] = c
		}
		return nil
	}
	// Unknown charge reference: accepted and ignored, like any other
	// event the engine does not consume.
	return nil
}
