package marketdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/maksimww/papertrader/internal/domain"
)

// ErrNotFound is returned when the service has no data for an instrument
var ErrNotFound = errors.New("instrument not found")

// Client is an HTTP client for the market data service.
// It implements domain.PriceSource.
type Client struct {
	client  *http.Client
	baseURL string
	log     zerolog.Logger
}

// NewClient creates a new market data client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
		log:     log.With().Str("client", "marketdata").Logger(),
	}
}

// quoteResponse represents a single quote from the market data service
type quoteResponse struct {
	Instrument string  `json:"instrument"`
	Price      float64 `json:"price"`
	Timestamp  string  `json:"timestamp"`
}

// candleResponse represents historical daily candles
type candleResponse struct {
	Instrument string `json:"instrument"`
	Candles    []struct {
		Date  string  `json:"date"`
		Close float64 `json:"close"`
	} `json:"candles"`
}

// GetCurrentPrice fetches the latest price for an instrument
func (c *Client) GetCurrentPrice(instrument string) (float64, error) {
	endpoint := fmt.Sprintf("%s/api/quotes/%s", c.baseURL, url.PathEscape(instrument))

	var quote quoteResponse
	if err := c.getJSON(endpoint, &quote); err != nil {
		return 0, fmt.Errorf("failed to fetch quote for %s: %w", instrument, err)
	}

	if quote.Price <= 0 {
		return 0, fmt.Errorf("invalid price %f for %s", quote.Price, instrument)
	}

	return quote.Price, nil
}

// GetHistoricalPrices fetches daily closing prices for the last N days
func (c *Client) GetHistoricalPrices(instrument string, days int) ([]domain.PricePoint, error) {
	endpoint := fmt.Sprintf("%s/api/candles/%s?days=%s",
		c.baseURL, url.PathEscape(instrument), strconv.Itoa(days))

	var resp candleResponse
	if err := c.getJSON(endpoint, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch candles for %s: %w", instrument, err)
	}

	points := make([]domain.PricePoint, 0, len(resp.Candles))
	for _, candle := range resp.Candles {
		date, err := time.Parse("2006-01-02", candle.Date)
		if err != nil {
			c.log.Warn().Str("instrument", instrument).Str("date", candle.Date).Msg("Skipping candle with bad date")
			continue
		}
		points = append(points, domain.PricePoint{
			Date:  date,
			Price: candle.Close,
		})
	}

	return points, nil
}

func (c *Client) getJSON(endpoint string, out interface{}) error {
	resp, err := c.client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
