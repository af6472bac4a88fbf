package strategy

import (
	"context"
	"fmt"
	"math"
	"time"

	talib "github.com/markcheno/go-talib"
	"github.com/rs/zerolog"

	"github.com/maksimww/papertrader/internal/domain"
)

const (
	macdFastPeriod      = 12
	macdSlowPeriod      = 26
	macdSignalPeriod    = 9
	macdLookbackDays    = 90
	macdConfidenceCap   = 0.8
	macdConfidenceScale = 10.0
)

// MACDStrategy generates trend following signals from the Moving
// Average Convergence Divergence indicator.
type MACDStrategy struct {
	id     string
	prices domain.PriceSource
	log    zerolog.Logger
}

// NewMACDStrategy creates a MACD strategy with the standard 12/26/9 periods
func NewMACDStrategy(prices domain.PriceSource, log zerolog.Logger) *MACDStrategy {
	return &MACDStrategy{
		id:     "macd",
		prices: prices,
		log:    log.With().Str("strategy", "macd").Logger(),
	}
}

// ID returns the strategy identifier
func (s *MACDStrategy) ID() string {
	return s.id
}

// Name returns the human readable name
func (s *MACDStrategy) Name() string {
	return "MACD Trend Following (12/26/9)"
}

// SupportedInstruments returns an empty slice, MACD works on any instrument
func (s *MACDStrategy) SupportedInstruments() []string {
	return nil
}

// GenerateSignal evaluates the latest MACD crossover state. A bullish
// crossover with a positive histogram produces a BUY, a bearish
// crossover with a negative histogram produces a SELL. Confidence
// scales with histogram magnitude, capped at 0.8.
func (s *MACDStrategy) GenerateSignal(ctx context.Context, instrument string) (*domain.TradingSignal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	closes, err := fetchCloses(s.prices, instrument, macdLookbackDays)
	if err != nil {
		return nil, fmt.Errorf("macd: %w", err)
	}
	if len(closes) < macdSlowPeriod+macdSignalPeriod {
		return nil, fmt.Errorf("macd: insufficient history for %s: have %d, need %d",
			instrument, len(closes), macdSlowPeriod+macdSignalPeriod)
	}

	macd, signal, hist := talib.Macd(closes, macdFastPeriod, macdSlowPeriod, macdSignalPeriod)

	last := len(hist) - 1
	macdVal := macd[last]
	signalVal := signal[last]
	histVal := hist[last]

	var action domain.SignalAction

	switch {
	case macdVal > signalVal && histVal > 0:
		action = domain.SignalActionBuy
	case macdVal < signalVal && histVal < 0:
		action = domain.SignalActionSell
	default:
		return nil, nil
	}

	confidence := math.Min(macdConfidenceCap, math.Abs(histVal)/macdConfidenceScale)

	s.log.Debug().
		Str("instrument", instrument).
		Float64("macd", macdVal).
		Float64("signal", signalVal).
		Float64("histogram", histVal).
		Str("action", string(action)).
		Float64("confidence", confidence).
		Msg("Generated signal")

	return &domain.TradingSignal{
		Instrument: instrument,
		Action:     action,
		Confidence: confidence,
		Timestamp:  time.Now(),
		StrategyID: s.id,
	}, nil
}
