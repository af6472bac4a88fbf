package formulas

import (
	"math"
)

// CalculateSharpeRatio calculates the annualized Sharpe ratio from periodic returns.
//
// Sharpe Ratio Formula:
//
//	Sharpe = (Mean Return - Periodic Risk-free Rate) / Standard Deviation of Returns
//	Annualized: Sharpe × sqrt(periodsPerYear)
//
// Returns nil when there is not enough data or the returns have no variance.
func CalculateSharpeRatio(returns []float64, riskFreeRate float64, periodsPerYear int) *float64 {
	if len(returns) < 2 {
		return nil
	}

	meanReturn := Mean(returns)

	stdDev := StdDev(returns)
	if stdDev == 0 {
		return nil
	}

	periodicRiskFree := riskFreeRate / float64(periodsPerYear)

	sharpe := (meanReturn - periodicRiskFree) / stdDev

	annualizedSharpe := sharpe * math.Sqrt(float64(periodsPerYear))

	return &annualizedSharpe
}

// CalculateSortinoRatio calculates the Sortino Ratio (downside deviation version of Sharpe).
// Only returns below the minimum acceptable return contribute to the deviation.
//
// Sortino Formula:
//
//	Sortino = (Mean Return - Periodic Risk-free Rate) / Downside Deviation
//	Downside Deviation = sqrt(mean of squared deviations below MAR)
//
// Returns nil when there is not enough data or no downside observations exist.
func CalculateSortinoRatio(returns []float64, riskFreeRate float64, targetReturn float64, periodsPerYear int) *float64 {
	if len(returns) < 2 {
		return nil
	}

	meanReturn := Mean(returns)

	periodicMAR := targetReturn / float64(periodsPerYear)

	var downsideSquaredSum float64
	downsideCount := 0

	for _, ret := range returns {
		if ret < periodicMAR {
			deviation := ret - periodicMAR
			downsideSquaredSum += deviation * deviation
			downsideCount++
		}
	}

	if downsideCount == 0 {
		return nil
	}

	downsideDeviation := math.Sqrt(downsideSquaredSum / float64(downsideCount))
	if downsideDeviation == 0 {
		return nil
	}

	periodicRiskFree := riskFreeRate / float64(periodsPerYear)

	sortino := (meanReturn - periodicRiskFree) / downsideDeviation

	annualizedSortino := sortino * math.Sqrt(float64(periodsPerYear))

	return &annualizedSortino
}
