package consolidate

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofrs/flock"
)

// DefaultInterval is how often the scheduler runs the job.
const DefaultInterval = 6 * time.Hour

// Scheduler runs the consolidation job on a ticker, guarded by a file
// lock so a manually launched run and the serve loop never execute
// concurrently.
type Scheduler struct {
	job      *Job
	interval time.Duration
	lock     *flock.Flock
	logger   *slog.Logger
}

// NewScheduler creates a scheduler. lockPath is the flock file shared
// by every process that may consolidate; empty disables locking.
func NewScheduler(job *Job, interval time.Duration, lockPath string, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	var lock *flock.Flock
	if lockPath != "" {
		lock = flock.New(lockPath)
	}
	return &Scheduler{job: job, interval: interval, lock: lock, logger: logger}
}

// Run blocks until ctx is canceled, running the job on each tick.
// Callers must track the goroutine with a WaitGroup.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single locked cycle. A held lock means another
// process is consolidating; the cycle is skipped, not queued.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if s.lock != nil {
		got, err := s.lock.TryLock()
		if err != nil {
			s.logger.Warn("consolidation lock failed", "error", err)
			return
		}
		if !got {
			s.logger.Info("consolidation already running elsewhere, skipping")
			return
		}
		defer func() {
			if err := s.lock.Unlock(); err != nil {
				s.logger.Warn("releasing consolidation lock failed", "error", err)
			}
		}()
	}

	if _, err := s.job.Run(ctx); err != nil {
		s.logger.Warn("consolidation run failed", "error", err)
	}
}
