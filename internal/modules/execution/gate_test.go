package execution

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maksimww/papertrader/internal/domain"
	"github.com/maksimww/papertrader/internal/modules/portfolio"
)

// ledgerStore is a minimal in-memory backing store for test ledgers
type ledgerStore struct {
	positions map[string]portfolio.Position
	cash      []float64
}

func newLedgerStore() *ledgerStore {
	return &ledgerStore{positions: make(map[string]portfolio.Position)}
}

func (m *ledgerStore) ApplyTrade(_ portfolio.Trade, position *portfolio.Position, removeInstrument string, cashBalance, _ float64) error {
	if position != nil {
		m.positions[position.Instrument] = *position
	}
	if removeInstrument != "" {
		delete(m.positions, removeInstrument)
	}
	m.cash = append(m.cash, cashBalance)
	return nil
}
func (m *ledgerStore) ListPositions() ([]portfolio.Position, error) { return nil, nil }
func (m *ledgerStore) LatestCashBalance() (float64, bool, error)    { return 0, false, nil }

// recordSink collects execution records in memory
type recordSink struct {
	records []Record
}

func (s *recordSink) Create(record Record) error {
	s.records = append(s.records, record)
	return nil
}

// fixedPrices returns a constant price for every instrument
type fixedPrices struct {
	price float64
	err   error
}

func (p *fixedPrices) GetCurrentPrice(string) (float64, error) { return p.price, p.err }
func (p *fixedPrices) GetHistoricalPrices(string, int) ([]domain.PricePoint, error) {
	return nil, nil
}

func defaultGateConfig() Config {
	return Config{
		MinConfidence:           0.7,
		MaxDailyTrades:          5,
		MaxDailyLossFraction:    0.02,
		BasePositionFraction:    0.02,
		MaxAutoPositionFraction: 0.05,
		MinNotional:             1000,
		Enabled:                 true,
		EnabledInstruments:      []string{"SBER", "GAZP"},
	}
}

func newTestGate(t *testing.T, cfg Config, prices domain.PriceSource) (*Gate, *portfolio.Ledger, *recordSink) {
	t.Helper()
	store := newLedgerStore()
	ledger := portfolio.NewLedger(portfolio.Config{
		InitialBalance:      1_000_000,
		CommissionRate:      0.003,
		MaxPositionFraction: 0.10,
	}, store, zerolog.Nop())

	sink := &recordSink{}
	gate := NewGate(cfg, ledger, prices, sink, zerolog.Nop())
	return gate, ledger, sink
}

func signal(action domain.SignalAction, confidence float64) domain.TradingSignal {
	return domain.TradingSignal{
		Instrument: "SBER",
		Action:     action,
		Confidence: confidence,
		Timestamp:  time.Now(),
		StrategyID: "rsi",
	}
}

func TestGateRejectsLowConfidence(t *testing.T) {
	gate, _, sink := newTestGate(t, defaultGateConfig(), &fixedPrices{price: 300})

	record, err := gate.Execute(signal(domain.SignalActionBuy, 0.5))
	require.NoError(t, err)

	assert.Equal(t, StatusRejected, record.Status)
	assert.NotEmpty(t, record.Reason)
	assert.Contains(t, record.Reason, "confidence")
	require.Len(t, sink.records, 1)
	assert.Equal(t, StatusRejected, sink.records[0].Status)
}

func TestGateExecutesConfidentBuy(t *testing.T) {
	gate, ledger, sink := newTestGate(t, defaultGateConfig(), &fixedPrices{price: 300})

	record, err := gate.Execute(signal(domain.SignalActionBuy, 0.8))
	require.NoError(t, err)

	assert.Equal(t, StatusExecuted, record.Status)
	// 0.02 * 0.8 * 1,000,000 = 16,000 target value at price 300
	assert.Equal(t, 53.0, record.Quantity)
	assert.Equal(t, 300.0, record.Price)

	pos, ok := ledger.Position("SBER")
	require.True(t, ok)
	assert.Equal(t, 53.0, pos.Quantity)
	require.Len(t, sink.records, 1)
}

func TestGateDailyLimit(t *testing.T) {
	cfg := defaultGateConfig()
	cfg.MaxDailyTrades = 2
	gate, _, sink := newTestGate(t, cfg, &fixedPrices{price: 300})

	for i := 0; i < 2; i++ {
		record, err := gate.Execute(signal(domain.SignalActionBuy, 0.9))
		require.NoError(t, err)
		require.Equal(t, StatusExecuted, record.Status)
	}

	record, err := gate.Execute(signal(domain.SignalActionBuy, 0.9))
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, record.Status)
	assert.True(t, strings.Contains(record.Reason, "daily limit"))

	// The rejected attempt still produced a record
	assert.Len(t, sink.records, 3)

	gate.ResetDailyCounters()
	record, err = gate.Execute(signal(domain.SignalActionBuy, 0.9))
	require.NoError(t, err)
	assert.Equal(t, StatusExecuted, record.Status)
}

func TestGateDisabled(t *testing.T) {
	gate, _, _ := newTestGate(t, defaultGateConfig(), &fixedPrices{price: 300})
	gate.Disable()

	record, err := gate.Execute(signal(domain.SignalActionBuy, 0.9))
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, record.Status)
	assert.Contains(t, record.Reason, "disabled")

	gate.Enable()
	record, err = gate.Execute(signal(domain.SignalActionBuy, 0.9))
	require.NoError(t, err)
	assert.Equal(t, StatusExecuted, record.Status)
}

func TestGateInstrumentAllowList(t *testing.T) {
	gate, _, sink := newTestGate(t, defaultGateConfig(), &fixedPrices{price: 300})

	// YNDX is supported but not on the allow list
	sig := signal(domain.SignalActionBuy, 0.9)
	sig.Instrument = "YNDX"

	record, err := gate.Execute(sig)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, record.Status)
	assert.Contains(t, record.Reason, "not enabled")
	require.Len(t, sink.records, 1)

	assert.True(t, gate.EnableInstrument("YNDX"))
	record, err = gate.Execute(sig)
	require.NoError(t, err)
	assert.Equal(t, StatusExecuted, record.Status)

	gate.DisableInstrument("YNDX")
	record, err = gate.Execute(sig)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, record.Status)

	// Unsupported symbols never make it onto the list
	assert.False(t, gate.EnableInstrument("AAPL"))
	assert.ElementsMatch(t, []string{"GAZP", "SBER"}, gate.Status().EnabledInstruments)
}

func TestGateRejectsSellWithoutPosition(t *testing.T) {
	gate, _, _ := newTestGate(t, defaultGateConfig(), &fixedPrices{price: 300})

	record, err := gate.Execute(signal(domain.SignalActionSell, 0.9))
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, record.Status)
}

func TestGateSellCappedByPosition(t *testing.T) {
	gate, ledger, _ := newTestGate(t, defaultGateConfig(), &fixedPrices{price: 300})

	_, err := ledger.Buy("SBER", 10, 300, "manual")
	require.NoError(t, err)

	record, err := gate.Execute(signal(domain.SignalActionSell, 0.9))
	require.NoError(t, err)
	assert.Equal(t, StatusExecuted, record.Status)
	assert.Equal(t, 10.0, record.Quantity)

	_, ok := ledger.Position("SBER")
	assert.False(t, ok)
}

func TestGateFailsOnPriceError(t *testing.T) {
	gate, _, sink := newTestGate(t, defaultGateConfig(), &fixedPrices{err: assert.AnError})

	record, err := gate.Execute(signal(domain.SignalActionBuy, 0.9))
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, record.Status)
	require.Len(t, sink.records, 1)
}

func TestGateRejectsHold(t *testing.T) {
	gate, _, _ := newTestGate(t, defaultGateConfig(), &fixedPrices{price: 300})

	record, err := gate.Execute(signal(domain.SignalActionHold, 0.9))
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, record.Status)
}
