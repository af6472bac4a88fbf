package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/maksimww/papertrader/internal/domain"
	"github.com/maksimww/papertrader/internal/events"
	"github.com/maksimww/papertrader/internal/modules/allocation"
	"github.com/maksimww/papertrader/internal/modules/execution"
	"github.com/maksimww/papertrader/internal/modules/portfolio"
)

// CycleResult summarizes one coordination run
type CycleResult struct {
	StartedAt       time.Time                   `json:"started_at"`
	Duration        time.Duration               `json:"duration"`
	SignalsGathered int                         `json:"signals_gathered"`
	Scores          []allocation.CompositeScore `json:"scores"`
	Executions      []execution.Record          `json:"executions"`
	Rebalanced      bool                        `json:"rebalanced"`
}

// CoordinationCycleJob runs the full gather, aggregate and execute
// cycle. Overlapping runs are skipped rather than queued.
type CoordinationCycleJob struct {
	coordinator *allocation.Coordinator
	gate        *execution.Gate
	ledger      *portfolio.Ledger
	events      *events.Manager

	running    atomic.Bool
	mu         sync.Mutex
	lastResult *CycleResult

	cycleTimeout time.Duration
	log          zerolog.Logger
}

// NewCoordinationCycleJob creates the coordination cycle job
func NewCoordinationCycleJob(coordinator *allocation.Coordinator, gate *execution.Gate,
	ledger *portfolio.Ledger, eventManager *events.Manager, cycleTimeout time.Duration, log zerolog.Logger) *CoordinationCycleJob {
	return &CoordinationCycleJob{
		coordinator:  coordinator,
		gate:         gate,
		ledger:       ledger,
		events:       eventManager,
		cycleTimeout: cycleTimeout,
		log:          log.With().Str("job", "coordination_cycle").Logger(),
	}
}

// Name returns the job name
func (j *CoordinationCycleJob) Name() string {
	return "coordination_cycle"
}

// Run executes one coordination cycle
func (j *CoordinationCycleJob) Run() error {
	if !j.running.CompareAndSwap(false, true) {
		j.log.Warn().Msg("Coordination cycle already running, skipping")
		return nil
	}
	defer j.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), j.cycleTimeout)
	defer cancel()

	startTime := time.Now()
	j.log.Info().Msg("Starting coordination cycle")

	signals := j.coordinator.GatherSignals(ctx)
	scores := j.coordinator.AggregateSignals(signals)

	result := &CycleResult{
		StartedAt:       startTime,
		SignalsGathered: len(signals),
		Scores:          scores,
	}

	for _, score := range scores {
		action, ok := actionForScore(score.Score)
		if !ok {
			continue
		}

		signal := domain.TradingSignal{
			Instrument: score.Instrument,
			Action:     action,
			Confidence: abs(score.Score),
			Timestamp:  time.Now(),
			StrategyID: "composite",
		}

		record, err := j.gate.Execute(signal)
		if err != nil {
			j.log.Error().Err(err).Str("instrument", score.Instrument).Msg("Execution persistence failed")
		}
		if record != nil {
			result.Executions = append(result.Executions, *record)
			switch record.Status {
			case execution.StatusExecuted:
				j.events.Emit(events.TradeExecuted, "coordination", map[string]interface{}{
					"instrument": record.Instrument,
					"action":     string(record.Action),
					"quantity":   record.Quantity,
					"price":      record.Price,
				})
			case execution.StatusRejected:
				j.events.Emit(events.SignalRejected, "coordination", map[string]interface{}{
					"instrument": record.Instrument,
					"reason":     record.Reason,
				})
			}
		}
	}

	j.coordinator.UpdatePositionMetrics(positionMetrics(j.ledger.Summary()))

	if j.coordinator.NeedsRebalance() {
		j.coordinator.RebalanceWeights()
		result.Rebalanced = true
		j.events.Emit(events.WeightsRebalanced, "coordination", nil)
	}

	result.Duration = time.Since(startTime)

	j.mu.Lock()
	j.lastResult = result
	j.mu.Unlock()

	j.events.Emit(events.CycleCompleted, "coordination", map[string]interface{}{
		"signals":    result.SignalsGathered,
		"executions": len(result.Executions),
		"rebalanced": result.Rebalanced,
	})

	j.log.Info().
		Int("signals", result.SignalsGathered).
		Int("scores", len(result.Scores)).
		Int("executions", len(result.Executions)).
		Bool("rebalanced", result.Rebalanced).
		Dur("duration", result.Duration).
		Msg("Coordination cycle complete")

	return nil
}

// LastResult returns the outcome of the most recent cycle, nil if none ran yet
func (j *CoordinationCycleJob) LastResult() *CycleResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastResult
}

// positionMetrics maps the ledger view into per instrument value
// fractions and returns for allocation tracking.
func positionMetrics(summary portfolio.Summary) []allocation.PositionMetric {
	metrics := make([]allocation.PositionMetric, 0, len(summary.Positions))
	for _, pos := range summary.Positions {
		returnPct := 0.0
		if basis := pos.CostBasis(); basis > 0 {
			returnPct = pos.UnrealizedPnL / basis
		}
		metrics = append(metrics, allocation.PositionMetric{
			Instrument:    pos.Instrument,
			ValueFraction: pos.Weight,
			ReturnPct:     returnPct,
		})
	}
	return metrics
}

func actionForScore(score float64) (domain.SignalAction, bool) {
	switch {
	case score > 0.3:
		return domain.SignalActionBuy, true
	case score < -0.3:
		return domain.SignalActionSell, true
	default:
		return domain.SignalActionHold, false
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
