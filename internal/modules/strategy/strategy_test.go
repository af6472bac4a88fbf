package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maksimww/papertrader/internal/domain"
)

// seriesSource serves a fixed price series for every instrument
type seriesSource struct {
	closes []float64
}

func (s *seriesSource) GetCurrentPrice(string) (float64, error) {
	return s.closes[len(s.closes)-1], nil
}

func (s *seriesSource) GetHistoricalPrices(_ string, days int) ([]domain.PricePoint, error) {
	points := make([]domain.PricePoint, len(s.closes))
	start := time.Now().AddDate(0, 0, -len(s.closes))
	for i, price := range s.closes {
		points[i] = domain.PricePoint{Date: start.AddDate(0, 0, i), Price: price}
	}
	return points, nil
}

func decliningSeries(n int) []float64 {
	closes := make([]float64, n)
	price := 200.0
	for i := range closes {
		closes[i] = price
		price -= 1.0
	}
	return closes
}

func risingSeries(n int) []float64 {
	closes := make([]float64, n)
	price := 100.0
	for i := range closes {
		closes[i] = price
		price += 1.0
	}
	return closes
}

// alternatingSeries has equal gains and losses so RSI sits at 50
func alternatingSeries(n int) []float64 {
	closes := make([]float64, n)
	price := 100.0
	for i := range closes {
		closes[i] = price
		if i%2 == 0 {
			price += 1.0
		} else {
			price -= 1.0
		}
	}
	return closes
}

func exponentialSeries(n int, growth float64) []float64 {
	closes := make([]float64, n)
	price := 100.0
	for i := range closes {
		closes[i] = price
		price *= growth
	}
	return closes
}

func TestRSIBuysOversold(t *testing.T) {
	strat := NewRSIStrategy(&seriesSource{closes: decliningSeries(60)}, zerolog.Nop())

	signal, err := strat.GenerateSignal(context.Background(), "SBER")
	require.NoError(t, err)
	require.NotNil(t, signal)

	assert.Equal(t, domain.SignalActionBuy, signal.Action)
	assert.Equal(t, "rsi", signal.StrategyID)
	// Relentless decline pins RSI near zero, confidence hits the cap
	assert.InDelta(t, 0.9, signal.Confidence, 1e-9)
	assert.NoError(t, signal.Validate())
}

func TestRSISellsOverbought(t *testing.T) {
	strat := NewRSIStrategy(&seriesSource{closes: risingSeries(60)}, zerolog.Nop())

	signal, err := strat.GenerateSignal(context.Background(), "SBER")
	require.NoError(t, err)
	require.NotNil(t, signal)

	assert.Equal(t, domain.SignalActionSell, signal.Action)
	assert.InDelta(t, 0.9, signal.Confidence, 1e-9)
}

func TestRSINeutralProducesNoSignal(t *testing.T) {
	strat := NewRSIStrategy(&seriesSource{closes: alternatingSeries(60)}, zerolog.Nop())

	signal, err := strat.GenerateSignal(context.Background(), "SBER")
	require.NoError(t, err)
	assert.Nil(t, signal)
}

func TestRSIInsufficientHistory(t *testing.T) {
	strat := NewRSIStrategy(&seriesSource{closes: decliningSeries(10)}, zerolog.Nop())

	_, err := strat.GenerateSignal(context.Background(), "SBER")
	assert.Error(t, err)
}

func TestRSIHonorsContextCancellation(t *testing.T) {
	strat := NewRSIStrategy(&seriesSource{closes: decliningSeries(60)}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := strat.GenerateSignal(ctx, "SBER")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMACDBuysUptrend(t *testing.T) {
	strat := NewMACDStrategy(&seriesSource{closes: exponentialSeries(90, 1.01)}, zerolog.Nop())

	signal, err := strat.GenerateSignal(context.Background(), "SBER")
	require.NoError(t, err)
	require.NotNil(t, signal)

	assert.Equal(t, domain.SignalActionBuy, signal.Action)
	assert.Equal(t, "macd", signal.StrategyID)
	assert.Greater(t, signal.Confidence, 0.0)
	assert.LessOrEqual(t, signal.Confidence, 0.8)
}

func TestMACDSellsDowntrend(t *testing.T) {
	strat := NewMACDStrategy(&seriesSource{closes: exponentialSeries(90, 0.99)}, zerolog.Nop())

	signal, err := strat.GenerateSignal(context.Background(), "SBER")
	require.NoError(t, err)
	require.NotNil(t, signal)

	assert.Equal(t, domain.SignalActionSell, signal.Action)
}

func TestMACDConfidenceScalesWithHistogram(t *testing.T) {
	slow := NewMACDStrategy(&seriesSource{closes: exponentialSeries(90, 1.002)}, zerolog.Nop())
	fast := NewMACDStrategy(&seriesSource{closes: exponentialSeries(90, 1.02)}, zerolog.Nop())

	slowSignal, err := slow.GenerateSignal(context.Background(), "SBER")
	require.NoError(t, err)
	require.NotNil(t, slowSignal)

	fastSignal, err := fast.GenerateSignal(context.Background(), "SBER")
	require.NoError(t, err)
	require.NotNil(t, fastSignal)

	assert.Greater(t, fastSignal.Confidence, slowSignal.Confidence)
}

func TestRegistryLifecycle(t *testing.T) {
	registry := NewRegistry(zerolog.Nop())
	prices := &seriesSource{closes: decliningSeries(60)}

	require.NoError(t, registry.Register(NewRSIStrategy(prices, zerolog.Nop())))
	require.NoError(t, registry.Register(NewMACDStrategy(prices, zerolog.Nop())))

	// Duplicate registration fails
	assert.Error(t, registry.Register(NewRSIStrategy(prices, zerolog.Nop())))

	strat, ok := registry.Get("rsi")
	require.True(t, ok)
	assert.Equal(t, "rsi", strat.ID())

	_, ok = registry.Get("missing")
	assert.False(t, ok)

	require.NoError(t, registry.SetStatus("rsi", domain.StrategyStatusActive))
	assert.Error(t, registry.SetStatus("missing", domain.StrategyStatusActive))

	registry.RecordSignal("rsi")
	registry.RecordSignal("rsi")
	registry.RecordError("macd", assert.AnError)

	infos := registry.List()
	require.Len(t, infos, 2)
	for _, info := range infos {
		switch info.ID {
		case "rsi":
			assert.Equal(t, domain.StrategyStatusActive, info.Status)
			assert.Equal(t, 2, info.SignalsGenerated)
			require.NotNil(t, info.LastSignalAt)
		case "macd":
			assert.Equal(t, domain.StrategyStatusError, info.Status)
			assert.Equal(t, 1, info.ErrorCount)
			assert.NotEmpty(t, info.LastError)
		}
	}
}

func TestRegistryRecoversFromError(t *testing.T) {
	registry := NewRegistry(zerolog.Nop())
	prices := &seriesSource{closes: decliningSeries(60)}
	require.NoError(t, registry.Register(NewRSIStrategy(prices, zerolog.Nop())))
	require.NoError(t, registry.SetStatus("rsi", domain.StrategyStatusActive))

	registry.RecordError("rsi", assert.AnError)
	registry.RecordSignal("rsi")

	infos := registry.List()
	require.Len(t, infos, 1)
	assert.Equal(t, domain.StrategyStatusActive, infos[0].Status)
	// The error history is kept even after recovery
	assert.Equal(t, 1, infos[0].ErrorCount)
	assert.NotEmpty(t, infos[0].LastError)
}
