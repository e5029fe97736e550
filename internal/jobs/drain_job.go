package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DrainJobName is the name of the queued-mutation drain job
const DrainJobName = "queue_drain"

// DefaultDrainTimeout bounds one drain pass. Drains are incremental, so a
// pass cut short by the deadline leaves the remaining entries for the next run.
const DefaultDrainTimeout = 2 * time.Minute

// MutationDrainer defines the interface for replaying queued mutations.
// This interface allows the job to call the engine without importing the
// engine package directly.
type MutationDrainer interface {
	// SyncPendingMutations replays the durable queue in order against the
	// central store. It is a no-op while offline.
	SyncPendingMutations(ctx context.Context) error

	// PendingMutations returns the current queued-mutation gauge.
	PendingMutations() int64

	// Online reports whether the engine currently believes it has connectivity.
	Online() bool
}

// DrainJob periodically replays the durable mutation queue so that entries
// queued while offline are pushed out as soon as connectivity returns.
type DrainJob struct {
	drainer MutationDrainer
	logger  *zap.Logger
	timeout time.Duration
}

// NewDrainJob creates a new queue drain job.
// The timeout controls how long one drain pass is allowed to run.
func NewDrainJob(drainer MutationDrainer, logger *zap.Logger, timeout time.Duration) *DrainJob {
	return &DrainJob{
		drainer: drainer,
		logger:  logger,
		timeout: timeout,
	}
}

// Run executes one drain pass.
// This is called by the scheduler according to the cron expression.
func (j *DrainJob) Run() {
	if !j.drainer.Online() {
		return
	}
	pending := j.drainer.PendingMutations()
	if pending == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	j.logger.Info("starting queue drain job",
		zap.Int64("pending", pending))

	if err := j.drainer.SyncPendingMutations(ctx); err != nil {
		j.logger.Error("queue drain job failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return
	}

	j.logger.Info("queue drain job completed",
		zap.Int64("remaining", j.drainer.PendingMutations()),
		zap.Duration("duration", time.Since(start)))
}

// RegisterDrainJob registers the queue drain job with the scheduler.
// The cronExpr should be a valid cron expression (e.g., "@every 1m").
func RegisterDrainJob(scheduler *Scheduler, drainer MutationDrainer, logger *zap.Logger, cronExpr string, timeout time.Duration) error {
	job := NewDrainJob(drainer, logger, timeout)
	return scheduler.AddJob(DrainJobName, cronExpr, job.Run)
}
