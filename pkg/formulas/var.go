package formulas

import "sort"

// HistoricalVaR calculates Value at Risk from a set of periodic returns
// using the empirical (historical) method.
//
// The returns are sorted ascending and the value at the confidence
// quantile is taken, so VaR(0.95) picks the 5th percentile loss.
// The result is returned as a positive fraction, or nil when there is
// not enough data.
func HistoricalVaR(returns []float64, confidence float64) *float64 {
	if len(returns) < 2 || confidence <= 0 || confidence >= 1 {
		return nil
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	idx := int(float64(len(sorted)) * (1 - confidence))
	if idx > 0 {
		idx--
	}

	v := -sorted[idx]
	if v < 0 {
		v = 0
	}

	return &v
}
