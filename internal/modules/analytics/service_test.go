package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maksimww/papertrader/internal/domain"
	"github.com/maksimww/papertrader/internal/modules/portfolio"
)

type nopLedgerStore struct{}

func (nopLedgerStore) ApplyTrade(portfolio.Trade, *portfolio.Position, string, float64, float64) error {
	return nil
}
func (nopLedgerStore) ListPositions() ([]portfolio.Position, error) { return nil, nil }
func (nopLedgerStore) LatestCashBalance() (float64, bool, error)    { return 0, false, nil }

type fixedHistory struct {
	values []float64
}

func (h *fixedHistory) ValueHistory(int) ([]float64, error) { return h.values, nil }

// seriesPrices serves a fixed daily series per instrument
type seriesPrices struct {
	series map[string][]float64
}

func (p *seriesPrices) GetCurrentPrice(instrument string) (float64, error) {
	s := p.series[instrument]
	return s[len(s)-1], nil
}

func (p *seriesPrices) GetHistoricalPrices(instrument string, days int) ([]domain.PricePoint, error) {
	s := p.series[instrument]
	points := make([]domain.PricePoint, len(s))
	start := time.Now().AddDate(0, 0, -len(s))
	for i, v := range s {
		points[i] = domain.PricePoint{Date: start.AddDate(0, 0, i), Price: v}
	}
	return points, nil
}

func newTestLedger(t *testing.T) *portfolio.Ledger {
	t.Helper()
	store := nopLedgerStore{}
	return portfolio.NewLedger(portfolio.Config{
		InitialBalance:      1_000_000,
		CommissionRate:      0.003,
		MaxPositionFraction: 0.10,
	}, store, zerolog.Nop())
}

func TestComputeMetricsDegenerateInputs(t *testing.T) {
	ledger := newTestLedger(t)
	service := NewService(ledger, &fixedHistory{}, &seriesPrices{}, 0.15, zerolog.Nop())

	metrics, err := service.ComputeMetrics(context.Background(), 30)
	require.NoError(t, err)

	assert.Equal(t, 0.0, metrics.Volatility)
	assert.Equal(t, 0.0, metrics.SharpeRatio)
	assert.Equal(t, 0.0, metrics.MaxDrawdown)
	assert.Equal(t, 0.0, metrics.ValueAtRisk95)
	assert.Equal(t, 1.0, metrics.Diversification)
	assert.Equal(t, 0, metrics.Samples)
	assert.Equal(t, 1_000_000.0, metrics.TotalValue)
}

func TestComputeMetricsFromHistory(t *testing.T) {
	ledger := newTestLedger(t)
	history := &fixedHistory{values: []float64{1_000_000, 1_010_000, 990_000, 1_005_000, 1_020_000}}
	service := NewService(ledger, history, &seriesPrices{}, 0.15, zerolog.Nop())

	metrics, err := service.ComputeMetrics(context.Background(), 30)
	require.NoError(t, err)

	assert.Greater(t, metrics.Volatility, 0.0)
	assert.Greater(t, metrics.ValueAtRisk95, 0.0)
	assert.GreaterOrEqual(t, metrics.ValueAtRisk99, metrics.ValueAtRisk95)
	// Peak 1,010,000 to trough 990,000
	assert.InDelta(t, 20_000.0/1_010_000.0, metrics.MaxDrawdown, 1e-9)
	assert.Equal(t, 5, metrics.Samples)
}

func TestAnnualizedReturnScaling(t *testing.T) {
	ledger := newTestLedger(t)
	_, err := ledger.Buy("SBER", 100, 300, "manual")
	require.NoError(t, err)
	ledger.UpdatePrice("SBER", 330)

	service := NewService(ledger, &fixedHistory{}, &seriesPrices{}, 0.15, zerolog.Nop())
	metrics, err := service.ComputeMetrics(context.Background(), 73)
	require.NoError(t, err)

	summary := ledger.Summary()
	assert.InDelta(t, summary.TotalReturn*365.0/73.0, metrics.AnnualizedReturn, 1e-9)
}

func TestDiversificationScore(t *testing.T) {
	zigzagUp := []float64{100, 102, 101, 103, 102, 104}
	zigzagDown := []float64{100, 98, 99, 97, 98, 96}

	t.Run("correlated positions score low", func(t *testing.T) {
		ledger := newTestLedger(t)
		_, err := ledger.Buy("SBER", 10, 300, "manual")
		require.NoError(t, err)
		_, err = ledger.Buy("GAZP", 10, 128, "manual")
		require.NoError(t, err)

		prices := &seriesPrices{series: map[string][]float64{
			"SBER": zigzagUp,
			"GAZP": zigzagUp,
		}}
		service := NewService(ledger, &fixedHistory{}, prices, 0.15, zerolog.Nop())

		metrics, err := service.ComputeMetrics(context.Background(), 30)
		require.NoError(t, err)
		assert.Less(t, metrics.Diversification, 0.5)
	})

	t.Run("anticorrelated positions score low", func(t *testing.T) {
		ledger := newTestLedger(t)
		_, err := ledger.Buy("SBER", 10, 300, "manual")
		require.NoError(t, err)
		_, err = ledger.Buy("GAZP", 10, 128, "manual")
		require.NoError(t, err)

		prices := &seriesPrices{series: map[string][]float64{
			"SBER": zigzagUp,
			"GAZP": zigzagDown,
		}}
		service := NewService(ledger, &fixedHistory{}, prices, 0.15, zerolog.Nop())

		// A perfectly hedged book concentrates risk just as much as a
		// perfectly correlated one
		metrics, err := service.ComputeMetrics(context.Background(), 30)
		require.NoError(t, err)
		assert.Less(t, metrics.Diversification, 0.5)
		assert.Less(t, metrics.AvgCorrelation, 0.0)
	})

	t.Run("uncorrelated positions score high", func(t *testing.T) {
		ledger := newTestLedger(t)
		_, err := ledger.Buy("SBER", 10, 300, "manual")
		require.NoError(t, err)
		_, err = ledger.Buy("GAZP", 10, 128, "manual")
		require.NoError(t, err)

		// Return patterns are orthogonal: +10 -10 +10 -10 against
		// +10 +10 -10 -10
		prices := &seriesPrices{series: map[string][]float64{
			"SBER": {100, 110, 99, 108.9, 98.01},
			"GAZP": {100, 110, 121, 108.9, 98.01},
		}}
		service := NewService(ledger, &fixedHistory{}, prices, 0.15, zerolog.Nop())

		metrics, err := service.ComputeMetrics(context.Background(), 30)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, metrics.Diversification, 1e-6)
		assert.InDelta(t, 0.0, metrics.AvgCorrelation, 1e-6)
	})

	t.Run("single position scores one", func(t *testing.T) {
		ledger := newTestLedger(t)
		_, err := ledger.Buy("SBER", 10, 300, "manual")
		require.NoError(t, err)

		service := NewService(ledger, &fixedHistory{}, &seriesPrices{}, 0.15, zerolog.Nop())
		metrics, err := service.ComputeMetrics(context.Background(), 30)
		require.NoError(t, err)
		assert.Equal(t, 1.0, metrics.Diversification)
	})
}
