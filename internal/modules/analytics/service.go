package analytics

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/maksimww/papertrader/internal/domain"
	"github.com/maksimww/papertrader/internal/modules/portfolio"
	"github.com/maksimww/papertrader/pkg/formulas"
)

const fetchConcurrency = 4

// ValueHistorySource provides historical total portfolio values
type ValueHistorySource interface {
	ValueHistory(days int) ([]float64, error)
}

// Service computes risk and performance metrics over the portfolio.
// Degenerate inputs (no history, single position) produce neutral
// zero metrics rather than errors.
type Service struct {
	ledger       *portfolio.Ledger
	history      ValueHistorySource
	prices       domain.PriceSource
	riskFreeRate float64
	log          zerolog.Logger
}

// NewService creates an analytics service
func NewService(ledger *portfolio.Ledger, history ValueHistorySource, prices domain.PriceSource,
	riskFreeRate float64, log zerolog.Logger) *Service {
	return &Service{
		ledger:       ledger,
		history:      history,
		prices:       prices,
		riskFreeRate: riskFreeRate,
		log:          log.With().Str("service", "analytics").Logger(),
	}
}

// ComputeMetrics builds the full metrics report for the last N days
func (s *Service) ComputeMetrics(ctx context.Context, days int) (*Metrics, error) {
	if days <= 0 {
		days = 30
	}

	summary := s.ledger.Summary()
	metrics := &Metrics{
		PeriodDays:      days,
		TotalValue:      summary.TotalValue,
		TotalReturn:     summary.TotalReturn,
		Diversification: 1.0,
		PositionCount:   len(summary.Positions),
		ComputedAt:      time.Now(),
	}

	// Simple annualization over the calendar period
	metrics.AnnualizedReturn = summary.TotalReturn * 365.0 / float64(days)

	values, err := s.history.ValueHistory(days)
	if err != nil {
		return nil, err
	}
	metrics.Samples = len(values)

	if len(values) >= 2 {
		returns := formulas.CalculateReturns(values)
		metrics.Volatility = formulas.AnnualizedVolatility(returns)

		if sharpe := formulas.CalculateSharpeRatio(returns, s.riskFreeRate, formulas.TradingDaysPerYear); sharpe != nil {
			metrics.SharpeRatio = *sharpe
		}
		if sortino := formulas.CalculateSortinoRatio(returns, s.riskFreeRate, 0, formulas.TradingDaysPerYear); sortino != nil {
			metrics.SortinoRatio = *sortino
		}
		if drawdown := formulas.CalculateMaxDrawdown(values); drawdown != nil {
			metrics.MaxDrawdown = *drawdown
		}
		if valueAtRisk := formulas.HistoricalVaR(returns, 0.95); valueAtRisk != nil {
			metrics.ValueAtRisk95 = *valueAtRisk
		}
		if valueAtRisk := formulas.HistoricalVaR(returns, 0.99); valueAtRisk != nil {
			metrics.ValueAtRisk99 = *valueAtRisk
		}
	}

	metrics.Diversification, metrics.AvgCorrelation = s.diversificationScore(ctx, summary.Positions, days)

	s.log.Debug().Int("days", days).Int("samples", metrics.Samples).Msg("Metrics computed")
	return metrics, nil
}

// diversificationScore measures how uncorrelated the open positions
// are. A single position scores 1.0. Otherwise the score is one minus
// the absolute average pairwise return correlation, floored at zero,
// so strongly anticorrelated books score as low as strongly
// correlated ones. The average correlation is returned alongside.
func (s *Service) diversificationScore(ctx context.Context, positions []portfolio.WeightedPosition, days int) (float64, float64) {
	if len(positions) < 2 {
		return 1.0, 0
	}

	var mu sync.Mutex
	returnsByInstrument := make(map[string][]float64, len(positions))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)

	for _, pos := range positions {
		instrument := pos.Instrument
		g.Go(func() error {
			points, err := s.prices.GetHistoricalPrices(instrument, days)
			if err != nil {
				s.log.Warn().Err(err).Str("instrument", instrument).Msg("Skipping instrument in correlation")
				return nil
			}
			closes := make([]float64, len(points))
			for i, p := range points {
				closes[i] = p.Price
			}
			returns := formulas.CalculateReturns(closes)
			if len(returns) == 0 {
				return nil
			}
			mu.Lock()
			returnsByInstrument[instrument] = returns
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	instruments := make([]string, 0, len(returnsByInstrument))
	for instrument := range returnsByInstrument {
		instruments = append(instruments, instrument)
	}
	if len(instruments) < 2 {
		return 1.0, 0
	}

	var correlationSum float64
	var pairCount int
	for i := 0; i < len(instruments); i++ {
		for j := i + 1; j < len(instruments); j++ {
			a := returnsByInstrument[instruments[i]]
			b := returnsByInstrument[instruments[j]]
			n := len(a)
			if len(b) < n {
				n = len(b)
			}
			if n < 2 {
				continue
			}
			correlationSum += formulas.Correlation(a[:n], b[:n])
			pairCount++
		}
	}

	if pairCount == 0 {
		return 1.0, 0
	}

	avgCorrelation := correlationSum / float64(pairCount)
	score := 1.0 - math.Abs(avgCorrelation)
	if score < 0 {
		score = 0
	}
	return score, avgCorrelation
}
