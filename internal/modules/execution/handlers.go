package execution

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
)

// Handler handles execution HTTP requests
type Handler struct {
	gate *Gate
	repo *Repository
	log  zerolog.Logger
}

// NewHandler creates a new execution handler
func NewHandler(gate *Gate, repo *Repository, log zerolog.Logger) *Handler {
	return &Handler{
		gate: gate,
		repo: repo,
		log:  log.With().Str("handler", "execution").Logger(),
	}
}

// HandleList returns recent execution records
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}

	records, err := h.repo.ListRecent(limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []Record{}
	}

	h.writeJSON(w, http.StatusOK, records)
}

// HandleStatus returns gate limits, counters and aggregate outcomes
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := h.repo.CountByStatus()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"gate":   h.gate.Status(),
		"counts": counts,
	})
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
