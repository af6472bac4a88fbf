package formulas

// CalculateMaxDrawdown calculates the maximum drawdown from a value series.
//
// Drawdown Formula:
//
//	Drawdown = (Peak Value - Current Value) / Peak Value
//	Max Drawdown = Maximum of all drawdowns
//
// Returns the drawdown as a positive fraction (0.25 = 25% loss from peak)
// or nil when there is not enough data.
func CalculateMaxDrawdown(values []float64) *float64 {
	if len(values) < 2 {
		return nil
	}

	maxDrawdown := 0.0
	peak := values[0]

	for _, value := range values {
		if value > peak {
			peak = value
		}

		if peak > 0 {
			drawdown := (peak - value) / peak
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}

	return &maxDrawdown
}
