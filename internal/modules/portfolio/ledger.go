package portfolio

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/maksimww/papertrader/internal/domain"
)

// Ledger is the single source of truth for cash and positions. All
// mutations happen under one lock and are written through to storage
// before the in-memory state changes, so a storage failure leaves the
// ledger untouched.
type Ledger struct {
	mu sync.Mutex

	cashBalance    float64
	initialBalance float64
	commissionRate float64
	maxPositionPct float64
	positions      map[string]*Position
	realizedPnL    float64
	totalTrades    int
	commissionPaid float64
	totalVolume    float64

	store LedgerStore
	log   zerolog.Logger
}

// Config holds ledger construction parameters
type Config struct {
	InitialBalance      float64
	CommissionRate      float64
	MaxPositionFraction float64
}

// NewLedger creates a ledger with the full starting cash balance
func NewLedger(cfg Config, store LedgerStore, log zerolog.Logger) *Ledger {
	return &Ledger{
		cashBalance:    cfg.InitialBalance,
		initialBalance: cfg.InitialBalance,
		commissionRate: cfg.CommissionRate,
		maxPositionPct: cfg.MaxPositionFraction,
		positions:      make(map[string]*Position),
		store:          store,
		log:            log.With().Str("component", "ledger").Logger(),
	}
}

// Load restores persisted positions and the last cash snapshot.
// Called once at startup before the ledger is shared.
func (l *Ledger) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	positions, err := l.store.ListPositions()
	if err != nil {
		return fmt.Errorf("failed to load positions: %w", err)
	}
	for i := range positions {
		p := positions[i]
		l.positions[p.Instrument] = &p
	}

	cash, ok, err := l.store.LatestCashBalance()
	if err != nil {
		return fmt.Errorf("failed to load cash balance: %w", err)
	}
	if ok {
		l.cashBalance = cash
	}

	l.log.Info().
		Int("positions", len(l.positions)).
		Float64("cash_balance", l.cashBalance).
		Msg("Ledger restored")

	return nil
}

// Buy executes a buy order. The full cost including commission is
// checked against available cash and the resulting position value is
// checked against the per instrument limit before anything changes.
func (l *Ledger) Buy(instrument string, quantity, price float64, source string) (*TradeResult, error) {
	if quantity <= 0 || price <= 0 {
		return nil, fmt.Errorf("%w: quantity=%f price=%f", ErrInvalidOrder, quantity, price)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	notional := quantity * price
	commission := notional * l.commissionRate
	totalCost := notional + commission

	if totalCost > l.cashBalance {
		return nil, fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientFunds, totalCost, l.cashBalance)
	}

	existing := l.positions[instrument]
	newQuantity := quantity
	if existing != nil {
		newQuantity += existing.Quantity
	}

	totalValue := l.totalValueLocked()
	if l.maxPositionPct > 0 && newQuantity*price > l.maxPositionPct*totalValue {
		return nil, fmt.Errorf("%w: position %.2f exceeds %.0f%% of portfolio %.2f",
			ErrPositionLimitExceeded, newQuantity*price, l.maxPositionPct*100, totalValue)
	}

	newAvgPrice := price
	if existing != nil {
		newAvgPrice = (existing.CostBasis() + notional) / newQuantity
	}

	now := time.Now()
	trade := Trade{
		ID:         uuid.New().String(),
		Instrument: instrument,
		Side:       TradeSideBuy,
		Quantity:   quantity,
		Price:      price,
		Commission: commission,
		Source:     source,
		ExecutedAt: now,
	}
	position := Position{
		Instrument:   instrument,
		Quantity:     newQuantity,
		AvgPrice:     newAvgPrice,
		CurrentPrice: price,
		LastUpdated:  now,
	}
	if existing != nil {
		position.Sector = existing.Sector
	} else if info, ok := domain.GetInstrumentInfo(instrument); ok {
		position.Sector = info.Sector
	}

	newCash := l.cashBalance - totalCost
	if err := l.persist(trade, &position, "", newCash); err != nil {
		return nil, err
	}

	l.cashBalance = newCash
	l.positions[instrument] = &position
	l.totalTrades++
	l.commissionPaid += commission
	l.totalVolume += notional

	l.log.Info().
		Str("instrument", instrument).
		Float64("quantity", quantity).
		Float64("price", price).
		Float64("commission", commission).
		Str("source", source).
		Msg("Buy executed")

	return &TradeResult{Trade: trade, CashAfter: newCash}, nil
}

// Sell executes a sell order against an existing position. A partial
// sell leaves the average entry price unchanged, a full sell removes
// the position. Realized PnL is net of the sell side commission.
func (l *Ledger) Sell(instrument string, quantity, price float64, source string) (*TradeResult, error) {
	if quantity <= 0 || price <= 0 {
		return nil, fmt.Errorf("%w: quantity=%f price=%f", ErrInvalidOrder, quantity, price)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	existing := l.positions[instrument]
	if existing == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchPosition, instrument)
	}
	if quantity > existing.Quantity {
		return nil, fmt.Errorf("%w: have %f, want to sell %f", ErrInsufficientQuantity, existing.Quantity, quantity)
	}

	notional := quantity * price
	commission := notional * l.commissionRate
	proceeds := notional - commission
	realized := quantity*(price-existing.AvgPrice) - commission

	now := time.Now()
	trade := Trade{
		ID:         uuid.New().String(),
		Instrument: instrument,
		Side:       TradeSideSell,
		Quantity:   quantity,
		Price:      price,
		Commission: commission,
		Source:     source,
		ExecutedAt: now,
	}

	remaining := existing.Quantity - quantity
	newCash := l.cashBalance + proceeds

	var position *Position
	if remaining > 0 {
		position = &Position{
			Instrument:   instrument,
			Quantity:     remaining,
			AvgPrice:     existing.AvgPrice,
			CurrentPrice: price,
			Sector:       existing.Sector,
			LastUpdated:  now,
		}
	}

	removeInstrument := ""
	if position == nil {
		removeInstrument = instrument
	}
	if err := l.persist(trade, position, removeInstrument, newCash); err != nil {
		return nil, err
	}

	l.cashBalance = newCash
	l.realizedPnL += realized
	l.totalTrades++
	l.commissionPaid += commission
	l.totalVolume += notional
	if position == nil {
		delete(l.positions, instrument)
	} else {
		l.positions[instrument] = position
	}

	l.log.Info().
		Str("instrument", instrument).
		Float64("quantity", quantity).
		Float64("price", price).
		Float64("realized_pnl", realized).
		Str("source", source).
		Msg("Sell executed")

	return &TradeResult{Trade: trade, CashAfter: newCash, RealizedPnL: realized}, nil
}

// UpdatePrice refreshes the mark price of a position if one exists
func (l *Ledger) UpdatePrice(instrument string, price float64) {
	if price <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if pos, ok := l.positions[instrument]; ok {
		pos.CurrentPrice = price
		pos.LastUpdated = time.Now()
	}
}

// Position returns a copy of the position in an instrument
func (l *Ledger) Position(instrument string) (Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[instrument]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// CashBalance returns the current free cash
func (l *Ledger) CashBalance() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cashBalance
}

// TotalValue returns cash plus the market value of all positions
func (l *Ledger) TotalValue() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalValueLocked()
}

// Summary builds a full snapshot of the portfolio. Positions are
// sorted by portfolio weight, largest first.
func (l *Ledger) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	positionsValue := 0.0
	invested := 0.0
	unrealized := 0.0
	for _, pos := range l.positions {
		positionsValue += pos.MarketValue()
		invested += pos.CostBasis()
		unrealized += pos.UnrealizedPnL()
	}

	totalValue := l.cashBalance + positionsValue
	totalReturn := 0.0
	if l.initialBalance > 0 {
		totalReturn = (totalValue - l.initialBalance) / l.initialBalance
	}

	positions := make([]WeightedPosition, 0, len(l.positions))
	sectors := make(map[string]float64)
	for _, pos := range l.positions {
		weight := 0.0
		if totalValue > 0 {
			weight = pos.MarketValue() / totalValue
		}
		positions = append(positions, WeightedPosition{
			Position:      *pos,
			MarketValue:   pos.MarketValue(),
			UnrealizedPnL: pos.UnrealizedPnL(),
			Weight:        weight,
		})

		if positionsValue > 0 {
			sector := pos.Sector
			if sector == "" {
				sector = "Unknown"
			}
			sectors[sector] += pos.MarketValue() / positionsValue
		}
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Weight > positions[j].Weight
	})

	avgTradeSize := 0.0
	if l.totalTrades > 0 {
		avgTradeSize = l.totalVolume / float64(l.totalTrades)
	}

	return Summary{
		CashBalance:      l.cashBalance,
		PositionsValue:   positionsValue,
		InvestedAmount:   invested,
		TotalValue:       totalValue,
		InitialBalance:   l.initialBalance,
		TotalReturn:      totalReturn,
		RealizedPnL:      l.realizedPnL,
		UnrealizedPnL:    unrealized,
		TotalTrades:      l.totalTrades,
		CommissionPaid:   l.commissionPaid,
		TotalVolume:      l.totalVolume,
		AvgTradeSize:     avgTradeSize,
		Positions:        positions,
		SectorAllocation: sectors,
		UpdatedAt:        time.Now(),
	}
}

func (l *Ledger) totalValueLocked() float64 {
	total := l.cashBalance
	for _, pos := range l.positions {
		total += pos.MarketValue()
	}
	return total
}

func (l *Ledger) persist(trade Trade, position *Position, removeInstrument string, newCash float64) error {
	totalAfter := newCash
	for instrument, pos := range l.positions {
		if position != nil && instrument == position.Instrument {
			continue
		}
		if instrument == removeInstrument {
			continue
		}
		totalAfter += pos.MarketValue()
	}
	if position != nil {
		totalAfter += position.MarketValue()
	}

	if err := l.store.ApplyTrade(trade, position, removeInstrument, newCash, totalAfter); err != nil {
		return fmt.Errorf("failed to persist trade: %w", err)
	}

	return nil
}
