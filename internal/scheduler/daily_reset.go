package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/maksimww/papertrader/internal/events"
	"github.com/maksimww/papertrader/internal/modules/execution"
)

// DailyResetJob starts a fresh trading day on the execution gate
type DailyResetJob struct {
	gate   *execution.Gate
	events *events.Manager
	log    zerolog.Logger
}

// NewDailyResetJob creates the daily reset job
func NewDailyResetJob(gate *execution.Gate, eventManager *events.Manager, log zerolog.Logger) *DailyResetJob {
	return &DailyResetJob{
		gate:   gate,
		events: eventManager,
		log:    log.With().Str("job", "daily_reset").Logger(),
	}
}

// Name returns the job name
func (j *DailyResetJob) Name() string {
	return "daily_reset"
}

// Run resets the gate's daily trade counter and loss baseline
func (j *DailyResetJob) Run() error {
	j.gate.ResetDailyCounters()
	j.events.Emit(events.DailyReset, "execution", nil)
	return nil
}
