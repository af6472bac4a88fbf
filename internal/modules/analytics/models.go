package analytics

import "time"

// Metrics is the full risk and performance report for the portfolio
type Metrics struct {
	PeriodDays       int       `json:"period_days"`
	TotalValue       float64   `json:"total_value"`
	TotalReturn      float64   `json:"total_return"`
	AnnualizedReturn float64   `json:"annualized_return"`
	Volatility       float64   `json:"volatility"`
	SharpeRatio      float64   `json:"sharpe_ratio"`
	SortinoRatio     float64   `json:"sortino_ratio"`
	MaxDrawdown      float64   `json:"max_drawdown"`
	ValueAtRisk95    float64   `json:"value_at_risk_95"`
	ValueAtRisk99    float64   `json:"value_at_risk_99"`
	Diversification  float64   `json:"diversification_score"`
	AvgCorrelation   float64   `json:"avg_pairwise_correlation"`
	PositionCount    int       `json:"position_count"`
	Samples          int       `json:"samples"`
	ComputedAt       time.Time `json:"computed_at"`
}
