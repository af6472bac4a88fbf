package formulas

import (
	"math"
	"testing"
)

func TestCalculateReturns(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   []float64
	}{
		{
			name:   "simple series",
			prices: []float64{100, 110, 99},
			want:   []float64{0.10, -0.10},
		},
		{
			name:   "single price",
			prices: []float64{100},
			want:   []float64{},
		},
		{
			name:   "empty",
			prices: nil,
			want:   []float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateReturns(tt.prices)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d returns, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-9 {
					t.Errorf("return[%d] = %f, want %f", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestAnnualizedVolatility(t *testing.T) {
	returns := []float64{0.01, -0.01, 0.02, -0.02, 0.01}

	vol := AnnualizedVolatility(returns)
	expected := StdDev(returns) * math.Sqrt(252)

	if math.Abs(vol-expected) > 1e-9 {
		t.Errorf("AnnualizedVolatility = %f, want %f", vol, expected)
	}

	if AnnualizedVolatility(nil) != 0 {
		t.Error("expected zero volatility for empty returns")
	}
}

func TestSharpeRatioInsufficientData(t *testing.T) {
	if CalculateSharpeRatio([]float64{0.01}, 0.15, 252) != nil {
		t.Error("expected nil for a single return")
	}
	if CalculateSharpeRatio([]float64{0.01, 0.01, 0.01}, 0.15, 252) != nil {
		t.Error("expected nil for zero variance returns")
	}
}

func TestSortinoRequiresDownside(t *testing.T) {
	// All returns above the MAR leave no downside deviation
	if CalculateSortinoRatio([]float64{0.02, 0.03, 0.04}, 0.0, 0.0, 252) != nil {
		t.Error("expected nil when no returns fall below the target")
	}

	mixed := CalculateSortinoRatio([]float64{0.02, -0.03, 0.04, -0.01}, 0.0, 0.0, 252)
	if mixed == nil {
		t.Fatal("expected a Sortino ratio for mixed returns")
	}
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{
			name:   "peak to trough",
			values: []float64{100, 120, 90, 110},
			want:   0.25,
		},
		{
			name:   "monotonic rise",
			values: []float64{100, 110, 120},
			want:   0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateMaxDrawdown(tt.values)
			if got == nil {
				t.Fatal("expected a drawdown value")
			}
			if math.Abs(*got-tt.want) > 1e-9 {
				t.Errorf("CalculateMaxDrawdown = %f, want %f", *got, tt.want)
			}
		})
	}

	if CalculateMaxDrawdown([]float64{100}) != nil {
		t.Error("expected nil for insufficient data")
	}
}

func TestHistoricalVaR(t *testing.T) {
	// Twenty returns, worst is -0.10. At 95% confidence the index is
	// max(0, int(20*0.05)-1) = 0, the worst observation.
	returns := make([]float64, 20)
	for i := range returns {
		returns[i] = 0.01
	}
	returns[7] = -0.10

	got := HistoricalVaR(returns, 0.95)
	if got == nil {
		t.Fatal("expected a VaR value")
	}
	if math.Abs(*got-0.10) > 1e-9 {
		t.Errorf("HistoricalVaR = %f, want 0.10", *got)
	}

	if HistoricalVaR([]float64{0.01}, 0.95) != nil {
		t.Error("expected nil for insufficient data")
	}
	if HistoricalVaR(returns, 1.5) != nil {
		t.Error("expected nil for invalid confidence")
	}
}

func TestCorrelation(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{2, 4, 6, 8, 10}

	if got := Correlation(x, y); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("Correlation = %f, want 1.0", got)
	}

	inverse := []float64{10, 8, 6, 4, 2}
	if got := Correlation(x, inverse); math.Abs(got+1.0) > 1e-9 {
		t.Errorf("Correlation = %f, want -1.0", got)
	}

	if Correlation(x, []float64{1, 2}) != 0 {
		t.Error("expected zero for mismatched lengths")
	}
}
