package execution

import (
	"time"

	"github.com/maksimww/papertrader/internal/domain"
)

// Status of an execution attempt
type Status string

const (
	StatusPending  Status = "pending"
	StatusExecuted Status = "executed"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

// Record captures the outcome of one signal passed through the gate.
// Exactly one record exists per attempted signal regardless of outcome.
type Record struct {
	ID              string              `json:"id"`
	Instrument      string              `json:"instrument"`
	StrategyID      string              `json:"strategy_id"`
	Action          domain.SignalAction `json:"action"`
	Confidence      float64             `json:"confidence"`
	Status          Status              `json:"status"`
	Quantity        float64             `json:"quantity,omitempty"`
	Price           float64             `json:"price,omitempty"`
	Commission      float64             `json:"commission,omitempty"`
	PortfolioImpact float64             `json:"portfolio_impact,omitempty"`
	Reason          string              `json:"reason,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

// GateStatus is a snapshot of the gate's limits and counters
type GateStatus struct {
	Enabled            bool     `json:"enabled"`
	EnabledInstruments []string `json:"enabled_instruments"`
	TradesToday        int      `json:"trades_today"`
	MaxDailyTrades     int      `json:"max_daily_trades"`
	MinConfidence      float64  `json:"min_confidence"`
	DayStartValue      float64  `json:"day_start_value"`
	DailyPnLPct        float64  `json:"daily_pnl_pct"`
	MaxDailyLoss       float64  `json:"max_daily_loss"`
}
