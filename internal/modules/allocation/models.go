package allocation

import "time"

// Recommendation labels derived from a composite score
const (
	RecommendationStrongBuy  = "STRONG BUY"
	RecommendationBuy        = "BUY"
	RecommendationHold       = "HOLD"
	RecommendationSell       = "SELL"
	RecommendationStrongSell = "STRONG SELL"
)

// neutralRiskScore is assigned to new allocations until a risk model
// updates it.
const neutralRiskScore = 0.5

// StrategyAllocation tracks the capital weight assigned to one
// strategy on one instrument. One record exists per active pair.
type StrategyAllocation struct {
	StrategyID       string    `json:"strategy_id"`
	Instrument       string    `json:"instrument"`
	TargetWeight     float64   `json:"target_weight"`
	CurrentWeight    float64   `json:"current_weight"`
	PerformanceScore float64   `json:"performance_score"`
	RiskScore        float64   `json:"risk_score"`
	AddedAt          time.Time `json:"added_at"`
	LastRebalance    time.Time `json:"last_rebalance"`
}

// PositionMetric carries one instrument's measured share of portfolio
// value and its unrealized return, used to refresh allocations.
type PositionMetric struct {
	Instrument    string
	ValueFraction float64
	ReturnPct     float64
}

// CompositeScore is the confidence weighted consensus for one instrument
type CompositeScore struct {
	Instrument     string  `json:"instrument"`
	Score          float64 `json:"score"`
	SignalCount    int     `json:"signal_count"`
	Recommendation string  `json:"recommendation"`
}

// Status is a snapshot of the coordinator for API consumers
type Status struct {
	Allocations         []StrategyAllocation `json:"allocations"`
	StrategyCount       int                  `json:"strategy_count"`
	AllocationCount     int                  `json:"allocation_count"`
	TotalAllocation     float64              `json:"total_allocation"`
	CashAllocation      float64              `json:"cash_allocation"`
	AvgPerformanceScore float64              `json:"avg_performance_score"`
	AvgRiskScore        float64              `json:"avg_risk_score"`
	LastRebalance       *time.Time           `json:"last_rebalance,omitempty"`
	ActiveInstruments   map[string][]string  `json:"active_instruments"`
	RebalanceNeeded     bool                 `json:"rebalance_needed"`
	RebalanceThreshold  float64              `json:"rebalance_threshold"`
}

// RecommendationFor maps a composite score to an action label
func RecommendationFor(score float64) string {
	switch {
	case score > 0.6:
		return RecommendationStrongBuy
	case score > 0.3:
		return RecommendationBuy
	case score < -0.6:
		return RecommendationStrongSell
	case score < -0.3:
		return RecommendationSell
	default:
		return RecommendationHold
	}
}
