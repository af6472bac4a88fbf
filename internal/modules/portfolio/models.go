package portfolio

import (
	"errors"
	"time"
)

// Sentinel errors for ledger operations
var (
	ErrInsufficientFunds     = errors.New("insufficient cash balance")
	ErrPositionLimitExceeded = errors.New("position size limit exceeded")
	ErrNoSuchPosition        = errors.New("no position in instrument")
	ErrInsufficientQuantity  = errors.New("insufficient position quantity")
	ErrInvalidOrder          = errors.New("invalid order parameters")
)

// TradeSide indicates trade direction
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// Position represents a holding in a single instrument
type Position struct {
	Instrument   string    `json:"instrument"`
	Quantity     float64   `json:"quantity"`
	AvgPrice     float64   `json:"avg_price"`
	CurrentPrice float64   `json:"current_price"`
	Sector       string    `json:"sector,omitempty"`
	LastUpdated  time.Time `json:"last_updated"`
}

// MarketValue returns quantity times the current price
func (p *Position) MarketValue() float64 {
	return p.Quantity * p.CurrentPrice
}

// CostBasis returns quantity times the average entry price
func (p *Position) CostBasis() float64 {
	return p.Quantity * p.AvgPrice
}

// UnrealizedPnL returns the open profit or loss on the position
func (p *Position) UnrealizedPnL() float64 {
	return p.MarketValue() - p.CostBasis()
}

// Trade is a single executed fill
type Trade struct {
	ID         string    `json:"id"`
	Instrument string    `json:"instrument"`
	Side       TradeSide `json:"side"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Commission float64   `json:"commission"`
	Source     string    `json:"source"`
	ExecutedAt time.Time `json:"executed_at"`
}

// TradeResult describes the ledger effect of an executed trade
type TradeResult struct {
	Trade       Trade   `json:"trade"`
	CashAfter   float64 `json:"cash_after"`
	RealizedPnL float64 `json:"realized_pnl"`
}

// WeightedPosition is a position annotated for the summary view
type WeightedPosition struct {
	Position
	MarketValue   float64 `json:"market_value"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	Weight        float64 `json:"weight"`
}

// Summary is a point in time snapshot of the whole portfolio
type Summary struct {
	CashBalance      float64            `json:"cash_balance"`
	PositionsValue   float64            `json:"positions_value"`
	InvestedAmount   float64            `json:"invested_amount"`
	TotalValue       float64            `json:"total_value"`
	InitialBalance   float64            `json:"initial_balance"`
	TotalReturn      float64            `json:"total_return"`
	RealizedPnL      float64            `json:"realized_pnl"`
	UnrealizedPnL    float64            `json:"unrealized_pnl"`
	TotalTrades      int                `json:"total_trades"`
	CommissionPaid   float64            `json:"commission_paid"`
	TotalVolume      float64            `json:"total_volume"`
	AvgTradeSize     float64            `json:"avg_trade_size"`
	Positions        []WeightedPosition `json:"positions"`
	SectorAllocation map[string]float64 `json:"sector_allocation"`
	UpdatedAt        time.Time          `json:"updated_at"`
}
