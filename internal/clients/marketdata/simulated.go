package marketdata

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/maksimww/papertrader/internal/domain"
)

// basePrices seed the simulated walk so each instrument trades in a
// realistic range.
var basePrices = map[string]float64{
	"SBER": 285.0,
	"GAZP": 128.0,
	"YNDX": 2450.0,
	"LKOH": 7100.0,
	"ROSN": 560.0,
	"NVTK": 1050.0,
	"GMKN": 152.0,
}

// Simulated is a deterministic price source for development mode.
// Prices follow a seeded random walk so repeated runs see the same
// series. It implements domain.PriceSource.
type Simulated struct {
	mu     sync.Mutex
	prices map[string]float64
	log    zerolog.Logger
}

// NewSimulated creates a simulated price source
func NewSimulated(log zerolog.Logger) *Simulated {
	return &Simulated{
		prices: make(map[string]float64),
		log:    log.With().Str("client", "marketdata-sim").Logger(),
	}
}

// GetCurrentPrice returns the current simulated price for an instrument
func (s *Simulated) GetCurrentPrice(instrument string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base, ok := basePrices[instrument]
	if !ok {
		return 0, fmt.Errorf("no simulated data for %s: %w", instrument, ErrNotFound)
	}

	price, ok := s.prices[instrument]
	if !ok {
		price = base
	}

	// Small step keeps the walk near the seed price
	rng := s.rng(instrument, time.Now().Unix())
	price = price * (1 + (rng.Float64()-0.5)*0.01)
	s.prices[instrument] = price

	return price, nil
}

// GetHistoricalPrices generates a deterministic daily series ending today
func (s *Simulated) GetHistoricalPrices(instrument string, days int) ([]domain.PricePoint, error) {
	base, ok := basePrices[instrument]
	if !ok {
		return nil, fmt.Errorf("no simulated data for %s: %w", instrument, ErrNotFound)
	}
	if days <= 0 {
		return []domain.PricePoint{}, nil
	}

	rng := s.rng(instrument, int64(days))
	points := make([]domain.PricePoint, days)
	price := base
	start := time.Now().AddDate(0, 0, -days+1)

	for i := 0; i < days; i++ {
		drift := (rng.Float64() - 0.5) * 0.02
		price = math.Max(price*(1+drift), 0.01)
		points[i] = domain.PricePoint{
			Date:  start.AddDate(0, 0, i),
			Price: price,
		}
	}

	return points, nil
}

func (s *Simulated) rng(instrument string, salt int64) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(instrument))
	return rand.New(rand.NewSource(int64(h.Sum64()) ^ salt))
}
