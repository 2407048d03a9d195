package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"domain-monitor/internal/alerting"
	"domain-monitor/internal/database"
	"domain-monitor/internal/metrics"
	"domain-monitor/internal/models"
	"domain-monitor/internal/monitoring"
)

// MonitorOptions tunes bulk checks and dashboard statistics
type MonitorOptions struct {
	BatchSize      int
	BatchDelay     time.Duration
	CriticalWindow time.Duration
}

// alertTypes maps each check that tracks an expiry date to its alert type
var alertTypes = map[monitoring.CheckKind]alerting.AlertType{
	monitoring.KindWhois: alerting.DomainExpiry,
	monitoring.KindSSL:   alerting.SSLExpiry,
}

// MonitorService handles domain monitoring. Results for one domain are
// applied one at a time; different domains proceed in parallel.
type MonitorService struct {
	store    *database.Store
	notify   *NotifyService
	checkers map[monitoring.CheckKind]Checker
	locks    *keyedMutex

	batchSize      int
	batchDelay     time.Duration
	criticalWindow time.Duration
	now            func() time.Time

	mu      sync.RWMutex
	lastRun *time.Time
	nextRun func() *time.Time
}

// NewMonitorService creates a new monitoring service. notify may be nil, in
// which case alerts are recorded but not delivered.
func NewMonitorService(store *database.Store, notify *NotifyService, opts MonitorOptions, checkers ...Checker) *MonitorService {
	if opts.BatchSize < 1 {
		opts.BatchSize = 3
	}
	s := &MonitorService{
		store:          store,
		notify:         notify,
		checkers:       make(map[monitoring.CheckKind]Checker, len(checkers)),
		locks:          newKeyedMutex(),
		batchSize:      opts.BatchSize,
		batchDelay:     opts.BatchDelay,
		criticalWindow: opts.CriticalWindow,
		now:            time.Now,
	}
	for _, c := range checkers {
		s.checkers[c.Kind()] = c
	}
	return s
}

// Kinds lists the registered check kinds in run order
func (s *MonitorService) Kinds() []monitoring.CheckKind {
	var out []monitoring.CheckKind
	for _, k := range monitoring.AllKinds {
		if _, ok := s.checkers[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// AddDomain normalizes the name and stores a new domain for its owner
func (s *MonitorService) AddDomain(ctx context.Context, d *models.DomainRecord) error {
	name, err := NormalizeDomain(d.Name)
	if err != nil {
		return err
	}
	d.Name = name
	d.ID = ""
	d.Version = 0
	return s.store.Domains.Create(ctx, d)
}

// CheckDomain runs the given checks (all registered ones when none are
// named) against one domain and returns the domain as it stands afterwards
// together with the log entries written
func (s *MonitorService) CheckDomain(ctx context.Context, id string, kinds ...monitoring.CheckKind) (*models.DomainRecord, []models.MonitoringLogEntry, error) {
	if len(kinds) == 0 {
		kinds = s.Kinds()
	}
	for _, k := range kinds {
		if _, ok := s.checkers[k]; !ok {
			return nil, nil, fmt.Errorf("%s: %w", k, ErrUnknownChecker)
		}
	}

	domain, err := s.store.Domains.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	var entries []models.MonitoringLogEntry
	for _, k := range kinds {
		if err := ctx.Err(); err != nil {
			return domain, entries, err
		}
		res := s.runCheck(ctx, s.checkers[k], *domain)
		entry, updated, err := s.ApplyResult(ctx, id, res)
		if err != nil {
			return domain, entries, err
		}
		domain = updated
		entries = append(entries, *entry)
	}
	return domain, entries, nil
}

func (s *MonitorService) runCheck(ctx context.Context, c Checker, d models.DomainRecord) monitoring.CheckResult {
	start := time.Now()
	res := c.Check(ctx, d)
	res.Kind = c.Kind()
	res.CheckedAt = s.now()
	metrics.ObserveCheck(string(res.Kind), res.Failed(), time.Since(start))

	if res.Failed() {
		logrus.WithFields(logrus.Fields{
			"domain": d.Name,
			"check":  res.Kind,
		}).Warnf("Check failed: %v", res.Err)
	}
	return res
}

// ApplyResult records one check result for a domain: it merges the update,
// appends the log entry, fires the eligible alert for the date the check
// tracks and delivers it. The domain is locked until the entry and alert
// history are written, so concurrent results for it are applied in turn.
func (s *MonitorService) ApplyResult(ctx context.Context, domainID string, res monitoring.CheckResult) (*models.MonitoringLogEntry, *models.DomainRecord, error) {
	unlock := s.locks.Lock(domainID)
	entry, domain, alerts, targets, err := s.record(ctx, domainID, res)
	unlock()
	if err != nil {
		return nil, nil, err
	}

	s.deliver(ctx, entry, alerts, targets)
	return entry, domain, nil
}

func (s *MonitorService) record(ctx context.Context, domainID string, res monitoring.CheckResult) (*models.MonitoringLogEntry, *models.DomainRecord, []alerting.AlertToFire, []alerting.Target, error) {
	var outcome monitoring.Outcome
	domain, err := s.store.Domains.Update(ctx, domainID, func(d *models.DomainRecord) error {
		outcome = monitoring.Record(*d, res)
		monitoring.Apply(d, outcome.Update)
		return nil
	})
	if err != nil {
		return nil, nil, nil, nil, err
	}

	settings, err := s.store.Settings.Get(ctx, domain.Owner)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	history, err := s.store.History.Load(ctx, domainID)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	// A failed check still evaluates the date it tracks against the stored
	// expiry, so a threshold day is not lost to one bad lookup.
	entry := outcome.Entry
	var alerts []alerting.AlertToFire
	if tracked, ok := alertTypes[res.Kind]; ok {
		for _, a := range alerting.Evaluate(*domain, settings, history, outcome.Update.CheckedAt) {
			if a.AlertType == tracked {
				alerts = append(alerts, a)
			}
		}
	}
	targets := alerting.Targets(settings)
	if len(alerts) > 0 {
		for _, t := range targets {
			entry.AlertChannels = append(entry.AlertChannels, t.Channel)
		}
	}

	if err := s.store.Logs.Append(ctx, &entry); err != nil {
		return nil, nil, nil, nil, err
	}
	for _, a := range alerts {
		if err := s.store.History.Remember(ctx, a.Key(), entry.CreatedAt); err != nil {
			return nil, nil, nil, nil, err
		}
		metrics.ObserveAlert(string(a.AlertType), a.ThresholdDay)
		logrus.WithFields(logrus.Fields{
			"domain":    a.Domain,
			"type":      a.AlertType,
			"threshold": strconv.Itoa(a.ThresholdDay),
		}).Info("Alert fired")
	}
	return &entry, domain, alerts, targets, nil
}

func (s *MonitorService) deliver(ctx context.Context, entry *models.MonitoringLogEntry, alerts []alerting.AlertToFire, targets []alerting.Target) {
	if s.notify == nil || len(targets) == 0 {
		return
	}
	for _, a := range alerts {
		sent, err := s.notify.Dispatch(ctx, entry.ID, a, targets)
		if err != nil {
			logrus.WithField("domain", a.Domain).Warnf("Alert delivery incomplete: %v", err)
		}
		if sent == 0 || entry.AlertSent {
			continue
		}
		if err := s.store.Logs.MarkAlertSent(ctx, entry.ID); err != nil {
			logrus.WithField("domain", a.Domain).Errorf("Failed to mark alert sent: %v", err)
			continue
		}
		entry.AlertSent = true
	}
}

// CheckAll checks all active domains in batches. Cancelling ctx stops new
// batches from starting; results already recorded stay valid.
func (s *MonitorService) CheckAll(ctx context.Context) error {
	domains, err := s.store.Domains.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch domains: %w", err)
	}

	logrus.Infof("Checking %d domains...", len(domains))
	failed := 0
	var mu sync.Mutex

	for start := 0; start < len(domains); start += s.batchSize {
		if start > 0 && s.batchDelay > 0 {
			timer := time.NewTimer(s.batchDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+s.batchSize, len(domains))
		p := pool.New().WithMaxGoroutines(s.batchSize)
		for _, d := range domains[start:end] {
			p.Go(func() {
				if _, _, err := s.CheckDomain(ctx, d.ID); err != nil {
					logrus.WithField("domain", d.Name).Errorf("Error checking domain: %v", err)
					mu.Lock()
					failed++
					mu.Unlock()
				}
			})
		}
		p.Wait()
	}

	now := s.now()
	s.mu.Lock()
	s.lastRun = &now
	s.mu.Unlock()
	metrics.LastRun.Set(float64(now.Unix()))

	logrus.WithField("failed", failed).Infof("Checked %d domains", len(domains))
	return nil
}

// RetryDispatches re-attempts failed deliveries whose next attempt is due
// and returns how many were attempted
func (s *MonitorService) RetryDispatches(ctx context.Context) (int, error) {
	if s.notify == nil {
		return 0, nil
	}
	due, err := s.store.Dispatches.Due(ctx, s.now(), 100)
	if err != nil {
		return 0, err
	}
	for i := range due {
		rec := &due[i]
		if err := s.notify.Retry(ctx, rec); err != nil && errors.Is(err, context.Canceled) {
			return i, err
		}
		if rec.Status == models.DispatchSent {
			if err := s.store.Logs.MarkAlertSent(ctx, rec.LogID); err != nil {
				logrus.WithField("log_id", rec.LogID).Errorf("Failed to mark alert sent: %v", err)
			}
		}
	}
	return len(due), nil
}

// Stats builds the owner's dashboard summary
func (s *MonitorService) Stats(ctx context.Context, owner string) (models.MonitoringStats, error) {
	now := s.now()
	domains, err := s.store.Domains.List(ctx, owner)
	if err != nil {
		return models.MonitoringStats{}, err
	}
	logs, err := s.store.Logs.Recent(ctx, owner, monitoring.WindowStart(now, s.criticalWindow), models.SeverityCritical)
	if err != nil {
		return models.MonitoringStats{}, err
	}
	stats := monitoring.Stats(domains, logs, now, s.criticalWindow)
	stats.LastMonitoringRun = s.LastRun()

	s.mu.RLock()
	next := s.nextRun
	s.mu.RUnlock()
	if next != nil {
		stats.NextMonitoringRun = next()
	}
	return stats, nil
}

// Expiring lists the owner's domains that need attention, soonest first
func (s *MonitorService) Expiring(ctx context.Context, owner string) ([]monitoring.ExpiringDomain, error) {
	domains, err := s.store.Domains.List(ctx, owner)
	if err != nil {
		return nil, err
	}
	return monitoring.Expiring(domains, s.now()), nil
}

// TestNotification sends a test message about a domain to every enabled
// channel of its owner
func (s *MonitorService) TestNotification(ctx context.Context, owner, id string) error {
	if s.notify == nil {
		return ErrNoNotifier
	}
	domain, err := s.store.Domains.GetOwned(ctx, owner, id)
	if err != nil {
		return err
	}
	settings, err := s.store.Settings.Get(ctx, owner)
	if err != nil {
		return err
	}
	targets := alerting.Targets(settings)
	if len(targets) == 0 {
		return ErrChannelOff
	}

	logrus.WithField("domain", domain.Name).Info("Triggering test notification")
	msg := fmt.Sprintf("Test notification for %s", domain.Name)
	var errs []error
	for _, t := range targets {
		if err := s.notify.SendTest(ctx, t, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.Channel, err))
		}
	}
	return errors.Join(errs...)
}

// Resume seeds the last run time from the newest log entry, so the
// dashboard keeps it across restarts
func (s *MonitorService) Resume(ctx context.Context) error {
	last, err := s.store.Logs.LastCreated(ctx)
	if err != nil || last == nil {
		return err
	}
	s.mu.Lock()
	if s.lastRun == nil {
		s.lastRun = last
	}
	s.mu.Unlock()
	return nil
}

// SetNextRun installs the source of the next scheduled run time
func (s *MonitorService) SetNextRun(fn func() *time.Time) {
	s.mu.Lock()
	s.nextRun = fn
	s.mu.Unlock()
}

// LastRun is when the last full run finished, nil before the first one
func (s *MonitorService) LastRun() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastRun == nil {
		return nil
	}
	t := *s.lastRun
	return &t
}
