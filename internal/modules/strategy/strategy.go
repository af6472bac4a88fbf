package strategy

import (
	"context"

	"github.com/maksimww/papertrader/internal/domain"
)

// Strategy is the common interface every trading strategy implements.
// GenerateSignal returns nil (with a nil error) when the strategy has
// no actionable opinion on the instrument.
type Strategy interface {
	// ID returns the stable identifier used for registration and persistence
	ID() string

	// Name returns the human readable strategy name
	Name() string

	// SupportedInstruments lists the instruments the strategy can evaluate.
	// An empty slice means the strategy accepts any supported instrument.
	SupportedInstruments() []string

	// GenerateSignal evaluates an instrument and produces a trading signal
	GenerateSignal(ctx context.Context, instrument string) (*domain.TradingSignal, error)
}
