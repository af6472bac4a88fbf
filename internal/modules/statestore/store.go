package statestore

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/maksimww/papertrader/internal/database"
)

// ActiveInstrument records one strategy/instrument activation
type ActiveInstrument struct {
	StrategyID  string    `json:"strategy_id"`
	Instrument  string    `json:"instrument"`
	ActivatedAt time.Time `json:"activated_at"`
	Status      string    `json:"status"`
}

// Store persists which strategies are active on which instruments so
// activations survive a restart. Every mutation is written through to
// the database before the in-memory view is updated.
type Store struct {
	mu     sync.RWMutex
	active map[string]map[string]ActiveInstrument // strategy_id -> instrument -> record
	db     *database.DB
	log    zerolog.Logger
}

// New creates a state store backed by the given database
func New(db *database.DB, log zerolog.Logger) *Store {
	return &Store{
		active: make(map[string]map[string]ActiveInstrument),
		db:     db,
		log:    log.With().Str("component", "statestore").Logger(),
	}
}

// Load reads all persisted activations into memory. Called once at startup.
func (s *Store) Load() error {
	rows, err := s.db.Query(`SELECT strategy_id, instrument, activated_at, status FROM strategy_state`)
	if err != nil {
		return fmt.Errorf("failed to load strategy state: %w", err)
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = make(map[string]map[string]ActiveInstrument)
	count := 0

	for rows.Next() {
		var rec ActiveInstrument
		var activatedAt string
		if err := rows.Scan(&rec.StrategyID, &rec.Instrument, &activatedAt, &rec.Status); err != nil {
			return fmt.Errorf("failed to scan strategy state row: %w", err)
		}

		ts, err := time.Parse(time.RFC3339, activatedAt)
		if err != nil {
			s.log.Warn().Str("strategy_id", rec.StrategyID).Str("instrument", rec.Instrument).
				Str("activated_at", activatedAt).Msg("Skipping state row with bad timestamp")
			continue
		}
		rec.ActivatedAt = ts

		if s.active[rec.StrategyID] == nil {
			s.active[rec.StrategyID] = make(map[string]ActiveInstrument)
		}
		s.active[rec.StrategyID][rec.Instrument] = rec
		count++
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate strategy state rows: %w", err)
	}

	s.log.Info().Int("activations", count).Msg("Loaded strategy state")
	return nil
}

// Activate marks a strategy as active on an instrument. Idempotent.
func (s *Store) Activate(strategyID, instrument string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	_, err := s.db.Exec(`
		INSERT INTO strategy_state (strategy_id, instrument, activated_at, status)
		VALUES (?, ?, ?, 'active')
		ON CONFLICT(strategy_id, instrument) DO UPDATE SET
			activated_at = excluded.activated_at,
			status = 'active'`,
		strategyID, instrument, now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to persist activation: %w", err)
	}

	if s.active[strategyID] == nil {
		s.active[strategyID] = make(map[string]ActiveInstrument)
	}
	s.active[strategyID][instrument] = ActiveInstrument{
		StrategyID:  strategyID,
		Instrument:  instrument,
		ActivatedAt: now,
		Status:      "active",
	}

	return nil
}

// Deactivate removes a strategy/instrument activation. Idempotent.
func (s *Store) Deactivate(strategyID, instrument string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM strategy_state WHERE strategy_id = ? AND instrument = ?`,
		strategyID, instrument)
	if err != nil {
		return fmt.Errorf("failed to persist deactivation: %w", err)
	}

	if instruments, ok := s.active[strategyID]; ok {
		delete(instruments, instrument)
		if len(instruments) == 0 {
			delete(s.active, strategyID)
		}
	}

	return nil
}

// DeactivateAll removes every activation for a strategy
func (s *Store) DeactivateAll(strategyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM strategy_state WHERE strategy_id = ?`, strategyID)
	if err != nil {
		return fmt.Errorf("failed to persist deactivation: %w", err)
	}

	delete(s.active, strategyID)
	return nil
}

// IsActive reports whether a strategy is active on an instrument
func (s *Store) IsActive(strategyID, instrument string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	instruments, ok := s.active[strategyID]
	if !ok {
		return false
	}
	_, ok = instruments[instrument]
	return ok
}

// ActiveInstruments returns the instruments a strategy is active on
func (s *Store) ActiveInstruments(strategyID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	instruments := make([]string, 0, len(s.active[strategyID]))
	for instrument := range s.active[strategyID] {
		instruments = append(instruments, instrument)
	}
	return instruments
}

// Snapshot returns all activations grouped by strategy
func (s *Store) Snapshot() map[string][]ActiveInstrument {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string][]ActiveInstrument, len(s.active))
	for strategyID, instruments := range s.active {
		records := make([]ActiveInstrument, 0, len(instruments))
		for _, rec := range instruments {
			records = append(records, rec)
		}
		snapshot[strategyID] = records
	}

	return snapshot
}
