package execution

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/maksimww/papertrader/internal/domain"
	"github.com/maksimww/papertrader/internal/modules/portfolio"
)

// RecordStore persists execution records
type RecordStore interface {
	Create(record Record) error
}

// Config holds the gate's risk limits
type Config struct {
	MinConfidence           float64
	MaxDailyTrades          int
	MaxDailyLossFraction    float64
	BasePositionFraction    float64
	MaxAutoPositionFraction float64
	MinNotional             float64
	Enabled                 bool
	EnabledInstruments      []string
}

// Gate sits between aggregated signals and the ledger. Every signal
// passes through Execute, which always produces exactly one record.
// Checks run in a fixed order and the first failure wins. Only
// instruments on the allow-list are executed automatically.
type Gate struct {
	mu sync.Mutex

	cfg           Config
	enabled       bool
	instruments   map[string]bool
	tradesToday   int
	dayStartValue float64

	ledger  *portfolio.Ledger
	prices  domain.PriceSource
	records RecordStore
	log     zerolog.Logger
}

// NewGate creates an execution gate over the given ledger. The
// allow-list starts from cfg.EnabledInstruments and grows as
// strategies are started.
func NewGate(cfg Config, ledger *portfolio.Ledger, prices domain.PriceSource, records RecordStore, log zerolog.Logger) *Gate {
	instruments := make(map[string]bool, len(cfg.EnabledInstruments))
	for _, instrument := range cfg.EnabledInstruments {
		if domain.IsSupportedInstrument(instrument) {
			instruments[instrument] = true
		}
	}
	return &Gate{
		cfg:           cfg,
		enabled:       cfg.Enabled,
		instruments:   instruments,
		dayStartValue: ledger.TotalValue(),
		ledger:        ledger,
		prices:        prices,
		records:       records,
		log:           log.With().Str("component", "execution_gate").Logger(),
	}
}

// Execute validates, sizes and settles one signal. The returned record
// carries the final status and, for rejections, a human readable
// reason. Storage failures surface in the error without losing the
// record.
func (g *Gate) Execute(signal domain.TradingSignal) (*Record, error) {
	record := &Record{
		ID:         uuid.New().String(),
		Instrument: signal.Instrument,
		StrategyID: signal.StrategyID,
		Action:     signal.Action,
		Confidence: signal.Confidence,
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if reason := g.validateLocked(signal); reason != "" {
		return g.finishLocked(record, StatusRejected, reason)
	}

	price := 0.0
	if signal.Price != nil && *signal.Price > 0 {
		price = *signal.Price
	} else {
		fetched, err := g.prices.GetCurrentPrice(signal.Instrument)
		if err != nil {
			g.log.Error().Err(err).Str("instrument", signal.Instrument).Msg("Price fetch failed")
			return g.finishLocked(record, StatusFailed, fmt.Sprintf("price unavailable: %v", err))
		}
		price = fetched
	}
	record.Price = price
	g.ledger.UpdatePrice(signal.Instrument, price)

	quantity := g.sizeLocked(signal, price)
	record.Quantity = quantity
	if quantity <= 0 {
		return g.finishLocked(record, StatusRejected, "position size below minimum")
	}

	var result *portfolio.TradeResult
	var err error
	if signal.Action == domain.SignalActionBuy {
		result, err = g.ledger.Buy(signal.Instrument, quantity, price, signal.StrategyID)
	} else {
		result, err = g.ledger.Sell(signal.Instrument, quantity, price, signal.StrategyID)
	}

	if err != nil {
		if isBusinessReject(err) {
			return g.finishLocked(record, StatusRejected, err.Error())
		}
		return g.finishLocked(record, StatusFailed, err.Error())
	}

	record.Commission = result.Trade.Commission
	record.PortfolioImpact = result.RealizedPnL
	g.tradesToday++

	return g.finishLocked(record, StatusExecuted, "")
}

// validateLocked runs the ordered risk checks. Returns an empty string
// when the signal may proceed, otherwise the rejection reason.
func (g *Gate) validateLocked(signal domain.TradingSignal) string {
	if !g.enabled {
		return "automatic execution is disabled"
	}
	if !g.instruments[signal.Instrument] {
		return fmt.Sprintf("instrument %s is not enabled for automated execution", signal.Instrument)
	}
	if !signal.Action.IsValid() || signal.Action == domain.SignalActionHold {
		return fmt.Sprintf("action %q is not executable", signal.Action)
	}
	if signal.Confidence < g.cfg.MinConfidence {
		return fmt.Sprintf("confidence %.2f below threshold %.2f", signal.Confidence, g.cfg.MinConfidence)
	}
	if g.tradesToday >= g.cfg.MaxDailyTrades {
		return fmt.Sprintf("daily limit of %d trades reached", g.cfg.MaxDailyTrades)
	}
	if loss := g.dailyPnLPctLocked(); loss <= -g.cfg.MaxDailyLossFraction {
		return fmt.Sprintf("daily loss %.2f%% breaches limit %.2f%%", loss*100, g.cfg.MaxDailyLossFraction*100)
	}
	return ""
}

// sizeLocked converts signal confidence into a whole number of shares.
// Target value scales with confidence from the base fraction, capped
// at the max auto fraction, with a minimum notional floor. Sells are
// additionally capped by the open position.
func (g *Gate) sizeLocked(signal domain.TradingSignal, price float64) float64 {
	if signal.Quantity != nil && *signal.Quantity > 0 {
		quantity := math.Floor(*signal.Quantity)
		return g.capSell(signal, quantity)
	}

	totalValue := g.ledger.TotalValue()
	fraction := math.Min(g.cfg.BasePositionFraction*signal.Confidence, g.cfg.MaxAutoPositionFraction)
	value := math.Max(fraction*totalValue, g.cfg.MinNotional)

	quantity := math.Floor(value / price)
	return g.capSell(signal, quantity)
}

func (g *Gate) capSell(signal domain.TradingSignal, quantity float64) float64 {
	if signal.Action != domain.SignalActionSell {
		return quantity
	}
	pos, ok := g.ledger.Position(signal.Instrument)
	if !ok {
		return 0
	}
	return math.Min(quantity, pos.Quantity)
}

func (g *Gate) finishLocked(record *Record, status Status, reason string) (*Record, error) {
	record.Status = status
	record.Reason = reason

	event := g.log.Info()
	if status == StatusFailed {
		event = g.log.Error()
	}
	event.
		Str("instrument", record.Instrument).
		Str("strategy_id", record.StrategyID).
		Str("action", string(record.Action)).
		Str("status", string(status)).
		Str("reason", reason).
		Msg("Execution finished")

	if err := g.records.Create(*record); err != nil {
		return record, fmt.Errorf("failed to persist execution record: %w", err)
	}
	return record, nil
}

func (g *Gate) dailyPnLPctLocked() float64 {
	if g.dayStartValue <= 0 {
		return 0
	}
	return (g.ledger.TotalValue() - g.dayStartValue) / g.dayStartValue
}

// ResetDailyCounters starts a new trading day
func (g *Gate) ResetDailyCounters() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.tradesToday = 0
	g.dayStartValue = g.ledger.TotalValue()

	g.log.Info().Float64("day_start_value", g.dayStartValue).Msg("Daily counters reset")
}

// Enable turns automatic execution on
func (g *Gate) Enable() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = true
}

// Disable turns automatic execution off
func (g *Gate) Disable() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = false
}

// EnableInstrument adds an instrument to the automated execution
// allow-list. Returns false for instruments outside the catalog.
func (g *Gate) EnableInstrument(instrument string) bool {
	if !domain.IsSupportedInstrument(instrument) {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.instruments[instrument] {
		g.instruments[instrument] = true
		g.log.Info().Str("instrument", instrument).Msg("Instrument enabled for automated execution")
	}
	return true
}

// DisableInstrument removes an instrument from the allow-list
func (g *Gate) DisableInstrument(instrument string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.instruments[instrument] {
		delete(g.instruments, instrument)
		g.log.Info().Str("instrument", instrument).Msg("Instrument disabled for automated execution")
	}
}

// Status returns the current limits and counters
func (g *Gate) Status() GateStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	instruments := make([]string, 0, len(g.instruments))
	for instrument := range g.instruments {
		instruments = append(instruments, instrument)
	}
	sort.Strings(instruments)

	return GateStatus{
		Enabled:            g.enabled,
		EnabledInstruments: instruments,
		TradesToday:        g.tradesToday,
		MaxDailyTrades:     g.cfg.MaxDailyTrades,
		MinConfidence:      g.cfg.MinConfidence,
		DayStartValue:      g.dayStartValue,
		DailyPnLPct:        g.dailyPnLPctLocked(),
		MaxDailyLoss:       g.cfg.MaxDailyLossFraction,
	}
}

func isBusinessReject(err error) bool {
	return errors.Is(err, portfolio.ErrInsufficientFunds) ||
		errors.Is(err, portfolio.ErrPositionLimitExceeded) ||
		errors.Is(err, portfolio.ErrNoSuchPosition) ||
		errors.Is(err, portfolio.ErrInsufficientQuantity) ||
		errors.Is(err, portfolio.ErrInvalidOrder)
}
