package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/maksimww/papertrader/internal/events"
)

type strategyInstrumentsRequest struct {
	Instruments []string `json:"instruments"`
}

// handleHealth returns a simple liveness response
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSystemStatus returns an overview of every subsystem
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "running",
		"uptime_seconds": int(time.Since(s.deps.StartedAt).Seconds()),
		"strategies":     s.deps.Registry.List(),
		"coordination":   s.deps.Coordinator.Status(),
		"execution":      s.deps.Gate.Status(),
		"jobs":           s.deps.Scheduler.Jobs(),
	})
}

// handleListStrategies returns all registered strategies with their status
func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.deps.Registry.List())
}

// handleStartStrategy activates a strategy on the requested instruments
func (s *Server) handleStartStrategy(w http.ResponseWriter, r *http.Request) {
	strategyID := chi.URLParam(r, "id")

	var req strategyInstrumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Instruments) == 0 {
		s.writeError(w, http.StatusBadRequest, "instruments are required")
		return
	}

	started, err := s.deps.Coordinator.AddStrategy(strategyID, req.Instruments)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !started {
		s.writeError(w, http.StatusUnprocessableEntity, "strategy could not be started")
		return
	}

	for _, instrument := range req.Instruments {
		s.deps.Gate.EnableInstrument(instrument)
	}

	s.deps.Events.Emit(events.StrategyStarted, "coordination", map[string]interface{}{
		"strategy_id": strategyID,
		"instruments": req.Instruments,
	})

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"started":     true,
		"strategy_id": strategyID,
		"weight":      s.deps.Coordinator.Weight(strategyID),
	})
}

// handleStopStrategy deactivates a strategy. An empty or missing
// instrument list stops it everywhere.
func (s *Server) handleStopStrategy(w http.ResponseWriter, r *http.Request) {
	strategyID := chi.URLParam(r, "id")

	var req strategyInstrumentsRequest
	if r.Body != nil {
		// Body is optional for stop
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	stopped, err := s.deps.Coordinator.RemoveStrategy(strategyID, req.Instruments)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !stopped {
		s.writeError(w, http.StatusNotFound, "strategy is not running")
		return
	}

	s.deps.Events.Emit(events.StrategyStopped, "coordination", map[string]interface{}{
		"strategy_id": strategyID,
		"instruments": req.Instruments,
	})

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"stopped":     true,
		"strategy_id": strategyID,
	})
}

// handleRunCoordination triggers a coordination cycle immediately
func (s *Server) handleRunCoordination(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.RunCycle(); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result := s.deps.CycleJob.LastResult()
	s.deps.Events.Emit(events.CycleCompleted, "coordination", map[string]interface{}{
		"trigger": "manual",
	})

	s.writeJSON(w, http.StatusOK, result)
}

// handleCoordinationStatus returns allocations and the last cycle result
func (s *Server) handleCoordinationStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"coordination": s.deps.Coordinator.Status(),
		"last_cycle":   s.deps.CycleJob.LastResult(),
	})
}

// handleAnalyticsMetrics computes the risk report for the requested window
func (s *Server) handleAnalyticsMetrics(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > 365 {
			s.writeError(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = v
	}

	metrics, err := s.deps.Analytics.ComputeMetrics(r.Context(), days)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
