package worker

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mowmarket/mowmarket-backend/internal/goroutine"
	"github.com/mowmarket/mowmarket-backend/internal/logger"
	"github.com/mowmarket/mowmarket-backend/internal/metrics"
)

// JobFunc is one background job run. The scheduler passes the tick time so
// jobs never read the wall clock themselves; tests drive them with fixed
// times.
type JobFunc func(ctx context.Context, now time.Time) error

type job struct {
	name     string
	interval time.Duration
	run      JobFunc
}

// Scheduler runs named jobs on fixed intervals: the quality control loop and
// the two booking sweepers. Each job runs in its own goroutine with panic
// recovery; a failing run is logged and the cadence continues.
type Scheduler struct {
	jobs  []job
	clock func() time.Time
	wg    sync.WaitGroup
}

func NewScheduler(clock func() time.Time) *Scheduler {
	if clock == nil {
		clock = time.Now
	}
	return &Scheduler{clock: clock}
}

// Add registers a job to run every interval.
func (s *Scheduler) Add(name string, interval time.Duration, run JobFunc) {
	s.jobs = append(s.jobs, job{name: name, interval: interval, run: run})
}

// Start launches every registered job. Jobs stop when ctx is cancelled; Wait
// blocks until they have all exited.
func (s *Scheduler) Start(ctx context.Context) {
	for _, j := range s.jobs {
		j := j
		s.wg.Add(1)
		goroutine.SafeGo(func() {
			defer s.wg.Done()
			s.loop(ctx, j)
		})
	}
}

// Wait blocks until all job loops have stopped.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, j job) {
	logger.Log.WithFields(logrus.Fields{
		"job":      j.name,
		"interval": j.interval.String(),
	}).Info("background job scheduled")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.WithField("job", j.name).Info("background job stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx, j)
		}
	}
}

// RunAll fires every job once immediately, outside their cadence. Used at
// startup so a long interval does not delay the first sweep.
func (s *Scheduler) RunAll(ctx context.Context) {
	for _, j := range s.jobs {
		s.runOnce(ctx, j)
	}
}

func (s *Scheduler) runOnce(ctx context.Context, j job) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.WithField("job", j.name).Errorf("background job panicked: %v", r)
		}
	}()

	start := s.clock()
	err := j.run(ctx, start)
	elapsed := time.Since(start)
	metrics.ObserveJob(j.name, elapsed.Seconds())

	entry := logger.Log.WithFields(logrus.Fields{
		"job":     j.name,
		"elapsed": elapsed.String(),
	})
	if err != nil {
		entry.WithError(err).Error("background job finished with errors")
		return
	}
	entry.Debug("background job finished")
}
