package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maksimww/papertrader/internal/database"
	"github.com/maksimww/papertrader/internal/domain"
	"github.com/maksimww/papertrader/internal/events"
	"github.com/maksimww/papertrader/internal/modules/allocation"
	"github.com/maksimww/papertrader/internal/modules/execution"
	"github.com/maksimww/papertrader/internal/modules/portfolio"
	"github.com/maksimww/papertrader/internal/modules/statestore"
	"github.com/maksimww/papertrader/internal/modules/strategy"
)

type cannedStrategy struct {
	id     string
	action domain.SignalAction
	conf   float64
}

func (s *cannedStrategy) ID() string                     { return s.id }
func (s *cannedStrategy) Name() string                   { return s.id }
func (s *cannedStrategy) SupportedInstruments() []string { return nil }
func (s *cannedStrategy) GenerateSignal(_ context.Context, instrument string) (*domain.TradingSignal, error) {
	return &domain.TradingSignal{
		Instrument: instrument,
		Action:     s.action,
		Confidence: s.conf,
		Timestamp:  time.Now(),
		StrategyID: s.id,
	}, nil
}

type cycleLedgerStore struct{}

func (cycleLedgerStore) ApplyTrade(portfolio.Trade, *portfolio.Position, string, float64, float64) error {
	return nil
}
func (cycleLedgerStore) ListPositions() ([]portfolio.Position, error) { return nil, nil }
func (cycleLedgerStore) LatestCashBalance() (float64, bool, error)    { return 0, false, nil }

type cycleRecordSink struct {
	records []execution.Record
}

func (s *cycleRecordSink) Create(record execution.Record) error {
	s.records = append(s.records, record)
	return nil
}

type constPrices struct{ price float64 }

func (p constPrices) GetCurrentPrice(string) (float64, error) { return p.price, nil }
func (p constPrices) GetHistoricalPrices(string, int) ([]domain.PricePoint, error) {
	return nil, nil
}

func newCycleFixture(t *testing.T, strategies ...strategy.Strategy) (*CoordinationCycleJob, *allocation.Coordinator, *cycleRecordSink) {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "cycle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	state := statestore.New(db, zerolog.Nop())
	require.NoError(t, state.Load())

	registry := strategy.NewRegistry(zerolog.Nop())
	for _, s := range strategies {
		require.NoError(t, registry.Register(s))
	}

	coordinator := allocation.NewCoordinator(registry, state, 5*time.Second, 0.05, zerolog.Nop())

	ledger := portfolio.NewLedger(portfolio.Config{
		InitialBalance:      1_000_000,
		CommissionRate:      0.003,
		MaxPositionFraction: 0.10,
	}, cycleLedgerStore{}, zerolog.Nop())

	sink := &cycleRecordSink{}
	gate := execution.NewGate(execution.Config{
		MinConfidence:           0.7,
		MaxDailyTrades:          5,
		MaxDailyLossFraction:    0.02,
		BasePositionFraction:    0.02,
		MaxAutoPositionFraction: 0.05,
		MinNotional:             1000,
		Enabled:                 true,
		EnabledInstruments:      []string{"SBER", "GAZP"},
	}, ledger, constPrices{price: 300}, sink, zerolog.Nop())

	job := NewCoordinationCycleJob(coordinator, gate, ledger, events.NewManager(zerolog.Nop()), time.Minute, zerolog.Nop())
	return job, coordinator, sink
}

func TestCycleExecutesConsensusBuy(t *testing.T) {
	job, coordinator, sink := newCycleFixture(t,
		&cannedStrategy{id: "alpha", action: domain.SignalActionBuy, conf: 0.9},
		&cannedStrategy{id: "beta", action: domain.SignalActionBuy, conf: 0.6},
	)

	_, err := coordinator.AddStrategy("alpha", []string{"SBER"})
	require.NoError(t, err)
	_, err = coordinator.AddStrategy("beta", []string{"SBER"})
	require.NoError(t, err)

	require.NoError(t, job.Run())

	result := job.LastResult()
	require.NotNil(t, result)
	assert.Equal(t, 2, result.SignalsGathered)
	require.Len(t, result.Scores, 1)
	assert.InDelta(t, 0.75, result.Scores[0].Score, 1e-9)

	// Composite 0.75 clears the 0.7 gate threshold
	require.Len(t, result.Executions, 1)
	assert.Equal(t, execution.StatusExecuted, result.Executions[0].Status)
	assert.Equal(t, "composite", result.Executions[0].StrategyID)
	require.Len(t, sink.records, 1)

	// Deployed capital is far below the 0.5 targets, so the cycle rebalances
	assert.True(t, result.Rebalanced)
}

func TestCycleRejectsWeakConsensus(t *testing.T) {
	job, coordinator, sink := newCycleFixture(t,
		&cannedStrategy{id: "alpha", action: domain.SignalActionBuy, conf: 0.5},
		&cannedStrategy{id: "beta", action: domain.SignalActionBuy, conf: 0.5},
	)

	_, err := coordinator.AddStrategy("alpha", []string{"SBER"})
	require.NoError(t, err)
	_, err = coordinator.AddStrategy("beta", []string{"SBER"})
	require.NoError(t, err)

	require.NoError(t, job.Run())

	result := job.LastResult()
	require.NotNil(t, result)

	// Composite 0.5 maps to BUY but fails the 0.7 confidence gate
	require.Len(t, result.Executions, 1)
	assert.Equal(t, execution.StatusRejected, result.Executions[0].Status)
	assert.NotEmpty(t, result.Executions[0].Reason)
	require.Len(t, sink.records, 1)
}

func TestCycleSkipsHoldConsensus(t *testing.T) {
	job, coordinator, sink := newCycleFixture(t,
		&cannedStrategy{id: "alpha", action: domain.SignalActionBuy, conf: 0.8},
		&cannedStrategy{id: "beta", action: domain.SignalActionSell, conf: 0.8},
	)

	_, err := coordinator.AddStrategy("alpha", []string{"SBER"})
	require.NoError(t, err)
	_, err = coordinator.AddStrategy("beta", []string{"SBER"})
	require.NoError(t, err)

	require.NoError(t, job.Run())

	result := job.LastResult()
	require.NotNil(t, result)
	require.Len(t, result.Scores, 1)
	assert.InDelta(t, 0.0, result.Scores[0].Score, 1e-9)

	// Opposing signals cancel, nothing reaches the gate
	assert.Empty(t, result.Executions)
	assert.Empty(t, sink.records)
}

func TestCycleWithNoStrategies(t *testing.T) {
	job, _, sink := newCycleFixture(t)

	require.NoError(t, job.Run())

	result := job.LastResult()
	require.NotNil(t, result)
	assert.Zero(t, result.SignalsGathered)
	assert.Empty(t, sink.records)
}
