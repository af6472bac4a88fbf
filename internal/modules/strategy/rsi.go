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
	rsiDefaultPeriod   = 14
	rsiOversold        = 30.0
	rsiOverbought      = 70.0
	rsiLookbackDays    = 60
	rsiConfidenceCap   = 0.9
	rsiConfidenceScale = 20.0
)

// RSIStrategy generates mean reversion signals from the Relative
// Strength Index. Oversold readings produce BUY signals, overbought
// readings produce SELL signals.
type RSIStrategy struct {
	id     string
	period int
	prices domain.PriceSource
	log    zerolog.Logger
}

// NewRSIStrategy creates an RSI strategy with the default 14 day period
func NewRSIStrategy(prices domain.PriceSource, log zerolog.Logger) *RSIStrategy {
	return &RSIStrategy{
		id:     "rsi",
		period: rsiDefaultPeriod,
		prices: prices,
		log:    log.With().Str("strategy", "rsi").Logger(),
	}
}

// ID returns the strategy identifier
func (s *RSIStrategy) ID() string {
	return s.id
}

// Name returns the human readable name
func (s *RSIStrategy) Name() string {
	return fmt.Sprintf("RSI Mean Reversion (%d)", s.period)
}

// SupportedInstruments returns an empty slice, RSI works on any instrument
func (s *RSIStrategy) SupportedInstruments() []string {
	return nil
}

// GenerateSignal evaluates the latest RSI reading for an instrument.
// Confidence scales with how far the reading sits beyond the threshold,
// capped at 0.9.
func (s *RSIStrategy) GenerateSignal(ctx context.Context, instrument string) (*domain.TradingSignal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	closes, err := fetchCloses(s.prices, instrument, rsiLookbackDays)
	if err != nil {
		return nil, fmt.Errorf("rsi: %w", err)
	}
	if len(closes) <= s.period {
		return nil, fmt.Errorf("rsi: insufficient history for %s: have %d, need %d", instrument, len(closes), s.period+1)
	}

	values := talib.Rsi(closes, s.period)
	rsi := values[len(values)-1]

	var action domain.SignalAction
	var confidence float64

	switch {
	case rsi < rsiOversold:
		action = domain.SignalActionBuy
		confidence = math.Min(rsiConfidenceCap, (rsiOversold-rsi)/rsiConfidenceScale)
	case rsi > rsiOverbought:
		action = domain.SignalActionSell
		confidence = math.Min(rsiConfidenceCap, (rsi-rsiOverbought)/rsiConfidenceScale)
	default:
		return nil, nil
	}

	s.log.Debug().
		Str("instrument", instrument).
		Float64("rsi", rsi).
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

// fetchCloses pulls daily closing prices oldest first
func fetchCloses(source domain.PriceSource, instrument string, days int) ([]float64, error) {
	points, err := source.GetHistoricalPrices(instrument, days)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history for %s: %w", instrument, err)
	}

	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Price
	}

	return closes, nil
}
