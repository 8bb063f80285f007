package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"school_notification_bot/internal/infra/runloop"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scanner is the periodic job driven by the scheduler.
type Scanner interface {
	Tick(ctx context.Context) error
}

// Submitter runs tasks on the dispatch loop.
type Submitter interface {
	Submit(task runloop.Task) bool
}

// ScanScheduler fires scan ticks on a cron spec. Ticks never run on the cron
// goroutine: each one is submitted to the dispatch loop, and a tick is skipped
// while the previous one is still queued or running.
type ScanScheduler struct {
	cronEngine *cron.Cron
	scanner    Scanner
	loop       Submitter
	spec       string
	timeout    time.Duration
	pending    atomic.Bool
	skipped    atomic.Int64
	logger     *logrus.Entry
}

func NewScanScheduler(scanner Scanner, loop Submitter, spec string, loc *time.Location, logger *logrus.Entry) *ScanScheduler {
	if loc == nil {
		loc = time.Local
	}
	cronLogger := cron.VerbosePrintfLogger(logger.WithField("engine", "cron"))
	return &ScanScheduler{
		cronEngine: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger)),
		),
		scanner: scanner,
		loop:    loop,
		spec:    spec,
		timeout: time.Minute,
		logger:  logger,
	}
}

// Start registers the scan job and starts the cron engine.
func (s *ScanScheduler) Start() error {
	s.logger.WithField("spec", s.spec).Info("Starting scan scheduler...")

	if _, err := s.cronEngine.AddFunc(s.spec, s.fire); err != nil {
		return fmt.Errorf("could not add scan cron job %q: %w", s.spec, err)
	}

	s.cronEngine.Start()
	s.logger.Info("Scan scheduler started.")
	return nil
}

// fire runs on the cron goroutine.
func (s *ScanScheduler) fire() {
	if !s.pending.CompareAndSwap(false, true) {
		n := s.skipped.Add(1)
		s.logger.WithField("skipped", n).Warn("Previous scan still pending, skipping tick")
		return
	}
	submitted := s.loop.Submit(func(ctx context.Context) {
		defer s.pending.Store(false)
		s.runTick(ctx)
	})
	if !submitted {
		s.pending.Store(false)
		s.logger.Warn("Dispatch loop stopped, scan tick dropped")
	}
}

func (s *ScanScheduler) runTick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.scanner.Tick(ctx); err != nil {
		s.logger.WithError(err).Error("Error during lesson scan")
	}
}

// Skipped returns how many ticks were skipped because the previous one was pending.
func (s *ScanScheduler) Skipped() int64 {
	return s.skipped.Load()
}

func (s *ScanScheduler) Stop() {
	s.logger.Info("Stopping scan scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Scan scheduler gracefully stopped.")
}
