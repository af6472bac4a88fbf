package strategy

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/maksimww/papertrader/internal/domain"
)

// StatusInfo is a point in time view of a registered strategy
type StatusInfo struct {
	ID               string               `json:"id"`
	Name             string               `json:"name"`
	Status           domain.StrategyStatus `json:"status"`
	SignalsGenerated int                  `json:"signals_generated"`
	ErrorCount       int                  `json:"error_count"`
	LastError        string               `json:"last_error,omitempty"`
	LastSignalAt     *time.Time           `json:"last_signal_at,omitempty"`
}

type registryEntry struct {
	strategy         Strategy
	status           domain.StrategyStatus
	signalsGenerated int
	errorCount       int
	lastError        string
	lastSignalAt     *time.Time
}

// Registry tracks registered strategies, their lifecycle status and
// basic execution counters. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
	log     zerolog.Logger
}

// NewRegistry creates an empty strategy registry
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*registryEntry),
		log:     log.With().Str("component", "strategy_registry").Logger(),
	}
}

// Register adds a strategy to the registry in the inactive state.
// Registering the same ID twice is an error.
func (r *Registry) Register(s Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[s.ID()]; exists {
		return fmt.Errorf("strategy %s already registered", s.ID())
	}

	r.entries[s.ID()] = &registryEntry{
		strategy: s,
		status:   domain.StrategyStatusInactive,
	}

	r.log.Info().Str("strategy_id", s.ID()).Str("name", s.Name()).Msg("Registered strategy")
	return nil
}

// Get returns a registered strategy by ID
func (r *Registry) Get(id string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return entry.strategy, true
}

// SetStatus updates the lifecycle status of a strategy
func (r *Registry) SetStatus(id string, status domain.StrategyStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("strategy %s not registered", id)
	}

	entry.status = status
	return nil
}

// RecordSignal increments the signal counter for a strategy
func (r *Registry) RecordSignal(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[id]; ok {
		entry.signalsGenerated++
		now := time.Now()
		entry.lastSignalAt = &now
		// A successful signal clears a previous error state
		if entry.status == domain.StrategyStatusError {
			entry.status = domain.StrategyStatusActive
		}
	}
}

// RecordError increments the error counter and moves the strategy to
// the error state
func (r *Registry) RecordError(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[id]; ok {
		entry.errorCount++
		entry.lastError = err.Error()
		entry.status = domain.StrategyStatusError
	}
}

// List returns status information for all registered strategies
func (r *Registry) List() []StatusInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]StatusInfo, 0, len(r.entries))
	for id, entry := range r.entries {
		infos = append(infos, StatusInfo{
			ID:               id,
			Name:             entry.strategy.Name(),
			Status:           entry.status,
			SignalsGenerated: entry.signalsGenerated,
			ErrorCount:       entry.errorCount,
			LastError:        entry.lastError,
			LastSignalAt:     entry.lastSignalAt,
		})
	}

	return infos
}
