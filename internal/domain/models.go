package domain

import (
	"fmt"
	"strings"
	"time"
)

// SignalAction represents the direction of a trading signal
type SignalAction string

const (
	SignalActionBuy  SignalAction = "BUY"
	SignalActionSell SignalAction = "SELL"
	SignalActionHold SignalAction = "HOLD"
)

// IsValid checks if the action is one of BUY/SELL/HOLD
func (a SignalAction) IsValid() bool {
	return a == SignalActionBuy || a == SignalActionSell || a == SignalActionHold
}

// Direction returns the directional sign of the action:
// +1 for BUY, -1 for SELL, 0 for HOLD
func (a SignalAction) Direction() float64 {
	switch a {
	case SignalActionBuy:
		return 1
	case SignalActionSell:
		return -1
	default:
		return 0
	}
}

// SignalActionFromString parses an action string (case-insensitive)
func SignalActionFromString(value string) (SignalAction, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "BUY":
		return SignalActionBuy, nil
	case "SELL":
		return SignalActionSell, nil
	case "HOLD":
		return SignalActionHold, nil
	default:
		return "", fmt.Errorf("invalid signal action: %q", value)
	}
}

// TradingSignal is a single strategy's opinion on one instrument.
// Signals are produced fresh per query and never mutated.
type TradingSignal struct {
	Instrument string       `json:"instrument"`
	Action     SignalAction `json:"action"`
	Confidence float64      `json:"confidence"` // 0.0 to 1.0
	Quantity   *float64     `json:"quantity,omitempty"`
	Price      *float64     `json:"price,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
	StrategyID string       `json:"strategy_id"`
}

// Validate checks signal fields and normalizes the instrument symbol
func (s *TradingSignal) Validate() error {
	if strings.TrimSpace(s.Instrument) == "" {
		return fmt.Errorf("instrument cannot be empty")
	}
	if !s.Action.IsValid() {
		return fmt.Errorf("invalid signal action: %q", s.Action)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("confidence must be in [0, 1], got %.2f", s.Confidence)
	}
	s.Instrument = strings.ToUpper(strings.TrimSpace(s.Instrument))
	return nil
}

// StrategyStatus represents the lifecycle state of a strategy
type StrategyStatus string

const (
	StrategyStatusInactive StrategyStatus = "inactive"
	StrategyStatusActive   StrategyStatus = "active"
	StrategyStatusPaused   StrategyStatus = "paused"
	StrategyStatusError    StrategyStatus = "error"
	StrategyStatusStopped  StrategyStatus = "stopped"
)

// PricePoint is one day of an instrument's price history
type PricePoint struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// PriceSource supplies current and historical prices.
// The coordination core performs no price lookups of its own.
type PriceSource interface {
	GetCurrentPrice(instrument string) (float64, error)
	GetHistoricalPrices(instrument string, days int) ([]PricePoint, error)
}
