package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Runner is the work the scheduler drives
type Runner interface {
	CheckAll(ctx context.Context) error
	RetryDispatches(ctx context.Context) (int, error)
}

// Scheduler handles scheduled tasks: the full domain check and the retry of
// failed alert deliveries. A full check never overlaps another one.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner

	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup

	mu      sync.Mutex
	checkID cron.EntryID
}

// NewScheduler creates a new scheduler
func NewScheduler(runner Runner) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	logger := cron.PrintfLogger(logrus.StandardLogger())
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger))),
		runner: runner,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start registers both jobs and starts the scheduler
func (s *Scheduler) Start(checkInterval, retryInterval string) error {
	id, err := s.cron.AddFunc(checkInterval, s.runCheck)
	if err != nil {
		return err
	}
	if retryInterval != "" {
		if _, err := s.cron.AddFunc(retryInterval, s.runRetry); err != nil {
			s.cron.Remove(id)
			return err
		}
	}
	s.mu.Lock()
	s.checkID = id
	s.mu.Unlock()

	s.cron.Start()
	logrus.WithFields(logrus.Fields{
		"check": checkInterval,
		"retry": retryInterval,
	}).Info("Scheduler started")
	return nil
}

// Trigger starts a full check in the background. It reports false when a
// check is already running.
func (s *Scheduler) Trigger() bool {
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.check()
	}()
	return true
}

// Running reports whether a full check is in progress
func (s *Scheduler) Running() bool { return s.running.Load() }

// NextRun is when the next full check is due, nil when none is scheduled
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	id := s.checkID
	s.mu.Unlock()
	if id == 0 {
		return nil
	}
	next := s.cron.Entry(id).Next
	if next.IsZero() {
		return nil
	}
	return &next
}

// Stop stops the scheduler, cancels running jobs and waits for them
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	s.cancel()
	<-done.Done()
	s.wg.Wait()
	logrus.Info("Scheduler stopped")
}

func (s *Scheduler) runCheck() {
	if !s.running.CompareAndSwap(false, true) {
		logrus.Warn("Previous domain check still running, skipping")
		return
	}
	s.check()
}

// check expects the running flag to be held and releases it
func (s *Scheduler) check() {
	defer s.running.Store(false)

	logrus.Info("Starting scheduled domain check...")
	start := time.Now()
	if err := s.runner.CheckAll(s.ctx); err != nil {
		logrus.Errorf("Scheduled check failed: %v", err)
		return
	}
	logrus.WithField("took", time.Since(start).Round(time.Millisecond)).Info("Scheduled domain check completed")
}

func (s *Scheduler) runRetry() {
	n, err := s.runner.RetryDispatches(s.ctx)
	if err != nil {
		logrus.Errorf("Alert retry failed: %v", err)
		return
	}
	if n > 0 {
		logrus.WithField("count", n).Info("Retried alert deliveries")
	}
}
