// internal/service/dailyrun.go
package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
)

// RunSummary reports what one daily run did. Partial failures are
// counted, never raised.
type RunSummary struct {
	RunID      uuid.UUID `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	PassSummary
}

// DailyRunCoordinator executes exactly one StepScheduler pass per
// external trigger. Overlapping triggers are rejected with
// ErrRunInProgress rather than queued; because completed actions are
// reflected in lead state, a rejected caller can simply retry and the
// next run picks up only what is still due.
type DailyRunCoordinator struct {
	Scheduler *StepScheduler
	Logger    *zap.Logger

	mu sync.Mutex
}

func (c *DailyRunCoordinator) TriggerRun(ctx context.Context) (*RunSummary, error) {
	if !c.mu.TryLock() {
		return nil, appErrors.NewRunInProgress()
	}
	defer c.mu.Unlock()

	runID := uuid.New()
	started := time.Now().UTC()
	c.Logger.Info("daily run started", zap.String("run_id", runID.String()))

	pass, err := c.Scheduler.RunPass(ctx)
	if err != nil {
		c.Logger.Error("daily run aborted", zap.String("run_id", runID.String()), zap.Error(err))
		return nil, err
	}

	summary := &RunSummary{
		RunID:       runID,
		StartedAt:   started,
		FinishedAt:  time.Now().UTC(),
		PassSummary: *pass,
	}
	c.Logger.Info("daily run finished",
		zap.String("run_id", runID.String()),
		zap.Int("dispatched", summary.Dispatched),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("transient_failed", summary.TransientFailed),
		zap.Int("permanent_failed", summary.PermanentFailed),
	)
	return summary, nil
}
