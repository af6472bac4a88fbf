package portfolio

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/maksimww/papertrader/internal/domain"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	ledger    *Ledger
	tradeRepo *TradeRepository
	prices    domain.PriceSource
	log       zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(ledger *Ledger, tradeRepo *TradeRepository, prices domain.PriceSource, log zerolog.Logger) *Handler {
	return &Handler{
		ledger:    ledger,
		tradeRepo: tradeRepo,
		prices:    prices,
		log:       log.With().Str("handler", "portfolio").Logger(),
	}
}

type orderRequest struct {
	Instrument string   `json:"instrument"`
	Quantity   float64  `json:"quantity"`
	Price      *float64 `json:"price,omitempty"`
}

// HandleGetSummary returns the current portfolio snapshot
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.ledger.Summary())
}

// HandleListTrades returns recent trade history with today's count
func (h *Handler) HandleListTrades(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}

	trades, err := h.tradeRepo.ListRecent(limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if trades == nil {
		trades = []Trade{}
	}

	midnight := time.Now().Truncate(24 * time.Hour)
	today, err := h.tradeRepo.CountSince(midnight)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"trades":       trades,
		"trades_today": today,
	})
}

// HandleBuy executes a manual buy order. Manual orders bypass the
// execution gate but settle through the same ledger as automated ones.
func (h *Handler) HandleBuy(w http.ResponseWriter, r *http.Request) {
	h.handleOrder(w, r, TradeSideBuy)
}

// HandleSell executes a manual sell order
func (h *Handler) HandleSell(w http.ResponseWriter, r *http.Request) {
	h.handleOrder(w, r, TradeSideSell)
}

func (h *Handler) handleOrder(w http.ResponseWriter, r *http.Request, side TradeSide) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Instrument == "" || req.Quantity <= 0 {
		h.writeError(w, http.StatusBadRequest, "instrument and positive quantity are required")
		return
	}
	if !domain.IsSupportedInstrument(req.Instrument) {
		h.writeError(w, http.StatusBadRequest, "unsupported instrument: "+req.Instrument)
		return
	}

	price := 0.0
	if req.Price != nil && *req.Price > 0 {
		price = *req.Price
	} else {
		fetched, err := h.prices.GetCurrentPrice(req.Instrument)
		if err != nil {
			h.log.Error().Err(err).Str("instrument", req.Instrument).Msg("Failed to fetch price for manual order")
			h.writeError(w, http.StatusBadGateway, "failed to fetch current price")
			return
		}
		price = fetched
	}

	var result *TradeResult
	var err error
	if side == TradeSideBuy {
		result, err = h.ledger.Buy(req.Instrument, req.Quantity, price, "manual")
	} else {
		result, err = h.ledger.Sell(req.Instrument, req.Quantity, price, "manual")
	}

	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, ErrInvalidOrder):
			status = http.StatusBadRequest
		case errors.Is(err, ErrInsufficientFunds),
			errors.Is(err, ErrPositionLimitExceeded),
			errors.Is(err, ErrNoSuchPosition),
			errors.Is(err, ErrInsufficientQuantity):
			status = http.StatusUnprocessableEntity
		}
		h.writeError(w, status, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
