package allocation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/maksimww/papertrader/internal/domain"
	"github.com/maksimww/papertrader/internal/modules/statestore"
	"github.com/maksimww/papertrader/internal/modules/strategy"
)

const gatherConcurrency = 4

// allocKey identifies one strategy/instrument allocation
type allocKey struct {
	strategyID string
	instrument string
}

// Coordinator owns the active strategy/instrument allocations, their
// capital weights and signal aggregation. Weights are kept equal
// across allocations and recomputed whenever a pair joins or leaves.
type Coordinator struct {
	mu sync.Mutex

	registry    *strategy.Registry
	state       *statestore.Store
	allocations map[allocKey]*StrategyAllocation

	signalTimeout      time.Duration
	rebalanceThreshold float64
	log                zerolog.Logger
}

// NewCoordinator creates an empty coordinator
func NewCoordinator(registry *strategy.Registry, state *statestore.Store,
	signalTimeout time.Duration, rebalanceThreshold float64, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		registry:           registry,
		state:              state,
		allocations:        make(map[allocKey]*StrategyAllocation),
		signalTimeout:      signalTimeout,
		rebalanceThreshold: rebalanceThreshold,
		log:                log.With().Str("component", "coordinator").Logger(),
	}
}

// AddStrategy starts a registered strategy on the given instruments.
// Each new strategy/instrument pair gets its own allocation. Returns
// false when the request is a no-op or invalid (unknown strategy,
// unsupported instrument, all pairs already running) and an error only
// for storage failures.
func (c *Coordinator) AddStrategy(strategyID string, instruments []string) (bool, error) {
	strat, ok := c.registry.Get(strategyID)
	if !ok {
		c.log.Warn().Str("strategy_id", strategyID).Msg("Cannot start unregistered strategy")
		return false, nil
	}
	if len(instruments) == 0 {
		return false, nil
	}

	for _, instrument := range instruments {
		if !domain.IsSupportedInstrument(instrument) {
			c.log.Warn().Str("strategy_id", strategyID).Str("instrument", instrument).
				Msg("Cannot start strategy on unsupported instrument")
			return false, nil
		}
		if supported := strat.SupportedInstruments(); len(supported) > 0 {
			found := false
			for _, s := range supported {
				if s == instrument {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	newPair := false
	for _, instrument := range instruments {
		if c.state.IsActive(strategyID, instrument) {
			continue
		}
		if err := c.state.Activate(strategyID, instrument); err != nil {
			return false, fmt.Errorf("failed to activate %s on %s: %w", strategyID, instrument, err)
		}

		key := allocKey{strategyID: strategyID, instrument: instrument}
		if _, exists := c.allocations[key]; !exists {
			c.allocations[key] = &StrategyAllocation{
				StrategyID:    strategyID,
				Instrument:    instrument,
				RiskScore:     neutralRiskScore,
				AddedAt:       now,
				LastRebalance: now,
			}
		}
		newPair = true
	}

	if !newPair {
		return false, nil
	}

	c.equalizeWeightsLocked()
	_ = c.registry.SetStatus(strategyID, domain.StrategyStatusActive)

	c.log.Info().Str("strategy_id", strategyID).Strs("instruments", instruments).
		Int("allocations", len(c.allocations)).
		Msg("Strategy started")

	return true, nil
}

// RemoveStrategy stops a strategy on the given instruments and frees
// the matching allocations. An empty instrument list stops it
// everywhere.
func (c *Coordinator) RemoveStrategy(strategyID string, instruments []string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasStrategyLocked(strategyID) {
		return false, nil
	}

	if len(instruments) == 0 {
		if err := c.state.DeactivateAll(strategyID); err != nil {
			return false, fmt.Errorf("failed to deactivate %s: %w", strategyID, err)
		}
		for key := range c.allocations {
			if key.strategyID == strategyID {
				delete(c.allocations, key)
			}
		}
	} else {
		for _, instrument := range instruments {
			if err := c.state.Deactivate(strategyID, instrument); err != nil {
				return false, fmt.Errorf("failed to deactivate %s on %s: %w", strategyID, instrument, err)
			}
			delete(c.allocations, allocKey{strategyID: strategyID, instrument: instrument})
		}
	}

	c.equalizeWeightsLocked()

	if !c.hasStrategyLocked(strategyID) {
		_ = c.registry.SetStatus(strategyID, domain.StrategyStatusStopped)
		c.log.Info().Str("strategy_id", strategyID).Msg("Strategy stopped")
	}

	return true, nil
}

// RestoreFromState rebuilds allocations from persisted activations.
// Called once at startup after the state store has loaded.
func (c *Coordinator) RestoreFromState() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for strategyID, records := range c.state.Snapshot() {
		if _, ok := c.registry.Get(strategyID); !ok {
			c.log.Warn().Str("strategy_id", strategyID).Msg("Persisted state references unknown strategy")
			continue
		}
		for _, record := range records {
			key := allocKey{strategyID: strategyID, instrument: record.Instrument}
			if _, exists := c.allocations[key]; exists {
				continue
			}
			c.allocations[key] = &StrategyAllocation{
				StrategyID:    strategyID,
				Instrument:    record.Instrument,
				RiskScore:     neutralRiskScore,
				AddedAt:       record.ActivatedAt,
				LastRebalance: now,
			}
		}
		if len(records) > 0 {
			_ = c.registry.SetStatus(strategyID, domain.StrategyStatusActive)
		}
	}

	c.equalizeWeightsLocked()

	c.log.Info().Int("allocations", len(c.allocations)).Msg("Coordinator restored from state")
}

// GatherSignals asks every active strategy/instrument pair for a
// signal. Individual failures are recorded against the strategy and
// do not abort the rest of the gather.
func (c *Coordinator) GatherSignals(ctx context.Context) []domain.TradingSignal {
	type pair struct {
		strat      strategy.Strategy
		instrument string
	}

	c.mu.Lock()
	var pairs []pair
	for key := range c.allocations {
		strat, ok := c.registry.Get(key.strategyID)
		if !ok {
			continue
		}
		pairs = append(pairs, pair{strat: strat, instrument: key.instrument})
	}
	c.mu.Unlock()

	var resultMu sync.Mutex
	var signals []domain.TradingSignal

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(gatherConcurrency)

	for _, p := range pairs {
		p := p
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, c.signalTimeout)
			defer cancel()

			signal, err := p.strat.GenerateSignal(callCtx, p.instrument)
			if err != nil {
				c.registry.RecordError(p.strat.ID(), err)
				c.log.Warn().Err(err).
					Str("strategy_id", p.strat.ID()).
					Str("instrument", p.instrument).
					Msg("Signal generation failed")
				return nil
			}
			if signal == nil {
				return nil
			}
			if err := signal.Validate(); err != nil {
				c.registry.RecordError(p.strat.ID(), err)
				return nil
			}

			c.registry.RecordSignal(p.strat.ID())
			resultMu.Lock()
			signals = append(signals, *signal)
			resultMu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	c.log.Debug().Int("pairs", len(pairs)).Int("signals", len(signals)).Msg("Gather complete")
	return signals
}

// AggregateSignals combines per strategy signals into one composite
// score per instrument. Each signal contributes its confidence times
// its allocation weight and its direction sign, normalized by the sum
// of contributing weights, so the score stays in [-1, 1].
func (c *Coordinator) AggregateSignals(signals []domain.TradingSignal) []CompositeScore {
	c.mu.Lock()
	defer c.mu.Unlock()

	type accumulator struct {
		weighted float64
		weights  float64
		count    int
	}
	byInstrument := make(map[string]*accumulator)

	for _, signal := range signals {
		alloc, ok := c.allocations[allocKey{strategyID: signal.StrategyID, instrument: signal.Instrument}]
		if !ok {
			continue
		}
		weight := alloc.TargetWeight
		if weight <= 0 {
			continue
		}

		acc := byInstrument[signal.Instrument]
		if acc == nil {
			acc = &accumulator{}
			byInstrument[signal.Instrument] = acc
		}
		acc.weighted += signal.Confidence * weight * signal.Action.Direction()
		acc.weights += weight
		acc.count++
	}

	scores := make([]CompositeScore, 0, len(byInstrument))
	for instrument, acc := range byInstrument {
		score := 0.0
		if acc.weights > 0 {
			score = acc.weighted / acc.weights
		}
		scores = append(scores, CompositeScore{
			Instrument:     instrument,
			Score:          score,
			SignalCount:    acc.count,
			Recommendation: RecommendationFor(score),
		})
	}

	sort.Slice(scores, func(i, j int) bool {
		return scores[i].Instrument < scores[j].Instrument
	})

	return scores
}

// UpdatePositionMetrics refreshes measured weights and performance
// scores from the live portfolio. Allocations whose instrument has no
// open position fall back to zero.
func (c *Coordinator) UpdatePositionMetrics(metrics []PositionMetric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byInstrument := make(map[string]PositionMetric, len(metrics))
	for _, m := range metrics {
		byInstrument[m.Instrument] = m
	}

	for key, alloc := range c.allocations {
		if m, ok := byInstrument[key.instrument]; ok {
			alloc.CurrentWeight = m.ValueFraction
			alloc.PerformanceScore = m.ReturnPct
		} else {
			alloc.CurrentWeight = 0
			alloc.PerformanceScore = 0
		}
	}
}

// NeedsRebalance reports whether any allocation has drifted further
// than the threshold from its target weight
func (c *Coordinator) NeedsRebalance() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, alloc := range c.allocations {
		if math.Abs(alloc.CurrentWeight-alloc.TargetWeight) > c.rebalanceThreshold {
			return true
		}
	}
	return false
}

// RebalanceWeights resets every target to the equal weight and snaps
// current weights back to target. Returns the resulting allocations.
func (c *Coordinator) RebalanceWeights() []StrategyAllocation {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.equalizeWeightsLocked()
	for _, alloc := range c.allocations {
		alloc.CurrentWeight = alloc.TargetWeight
		alloc.LastRebalance = now
	}

	c.log.Info().Int("allocations", len(c.allocations)).Msg("Weights rebalanced")
	return c.allocationsLocked()
}

// Weight returns the combined target weight of a strategy across all
// of its instruments, zero if not running
func (c *Coordinator) Weight(strategyID string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0.0
	for key, alloc := range c.allocations {
		if key.strategyID == strategyID {
			total += alloc.TargetWeight
		}
	}
	return total
}

// Status returns a snapshot for API consumers
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	allocations := c.allocationsLocked()
	threshold := c.rebalanceThreshold
	c.mu.Unlock()

	strategies := make(map[string]struct{})
	totalAllocation := 0.0
	sumPerformance := 0.0
	sumRisk := 0.0
	var lastRebalance *time.Time
	for i := range allocations {
		alloc := &allocations[i]
		strategies[alloc.StrategyID] = struct{}{}
		totalAllocation += alloc.CurrentWeight
		sumPerformance += alloc.PerformanceScore
		sumRisk += alloc.RiskScore
		if lastRebalance == nil || alloc.LastRebalance.After(*lastRebalance) {
			ts := alloc.LastRebalance
			lastRebalance = &ts
		}
	}

	avgPerformance := 0.0
	avgRisk := 0.0
	if len(allocations) > 0 {
		avgPerformance = sumPerformance / float64(len(allocations))
		avgRisk = sumRisk / float64(len(allocations))
	}

	active := make(map[string][]string, len(strategies))
	for strategyID := range strategies {
		active[strategyID] = c.state.ActiveInstruments(strategyID)
	}

	return Status{
		Allocations:         allocations,
		StrategyCount:       len(strategies),
		AllocationCount:     len(allocations),
		TotalAllocation:     totalAllocation,
		CashAllocation:      math.Max(0, 1.0-totalAllocation),
		AvgPerformanceScore: avgPerformance,
		AvgRiskScore:        avgRisk,
		LastRebalance:       lastRebalance,
		ActiveInstruments:   active,
		RebalanceNeeded:     c.NeedsRebalance(),
		RebalanceThreshold:  threshold,
	}
}

func (c *Coordinator) hasStrategyLocked(strategyID string) bool {
	for key := range c.allocations {
		if key.strategyID == strategyID {
			return true
		}
	}
	return false
}

func (c *Coordinator) equalizeWeightsLocked() {
	n := len(c.allocations)
	if n == 0 {
		return
	}
	weight := 1.0 / float64(n)
	for _, alloc := range c.allocations {
		alloc.TargetWeight = weight
	}
}

func (c *Coordinator) allocationsLocked() []StrategyAllocation {
	out := make([]StrategyAllocation, 0, len(c.allocations))
	for _, alloc := range c.allocations {
		out = append(out, *alloc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StrategyID != out[j].StrategyID {
			return out[i].StrategyID < out[j].StrategyID
		}
		return out[i].Instrument < out[j].Instrument
	})
	return out
}
