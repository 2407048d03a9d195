package monitoring

import (
	"sort"
	"strings"
	"time"

	"domain-monitor/internal/expiry"
	"domain-monitor/internal/models"
)

// DefaultCriticalWindow bounds which critical log entries count towards
// MonitoringStats.CriticalAlerts
const DefaultCriticalWindow = 30 * 24 * time.Hour

// Stats aggregates domains and logs into the dashboard summary. Critical log
// entries older than window are ignored; a window of zero counts all of them.
func Stats(domains []models.DomainRecord, logs []models.MonitoringLogEntry, now time.Time, window time.Duration) models.MonitoringStats {
	var s models.MonitoringStats
	s.TotalDomains = len(domains)
	for _, d := range domains {
		if d.Status == models.StatusOnline {
			s.ActiveDomains++
		}
		if expiry.Classify(d.DomainExpiry, now).ExpiringSoon() {
			s.DomainsExpiringSoon++
		}
		if expiry.Classify(d.CertExpiry, now).ExpiringSoon() {
			s.SSLExpiringSoon++
		}
	}
	s.CriticalAlerts = CountCritical(logs, now, window)
	return s
}

// CountCritical counts critical entries created within window before now
func CountCritical(logs []models.MonitoringLogEntry, now time.Time, window time.Duration) int {
	since := WindowStart(now, window)
	n := 0
	for _, l := range logs {
		if l.Severity != models.SeverityCritical {
			continue
		}
		if since != nil && l.CreatedAt.Before(*since) {
			continue
		}
		n++
	}
	return n
}

// WindowStart is the oldest creation time counted for window, or nil when
// the window is unbounded
func WindowStart(now time.Time, window time.Duration) *time.Time {
	if window <= 0 {
		return nil
	}
	since := now.Add(-window)
	return &since
}

// Expiring lists the domains with at least one date in an expiring-soon or
// expired tier, soonest first
func Expiring(domains []models.DomainRecord, now time.Time) []ExpiringDomain {
	var out []ExpiringDomain
	for _, d := range domains {
		dr := expiry.Evaluate(d.DomainExpiry, now)
		cr := expiry.Evaluate(d.CertExpiry, now)
		if !dr.Severity.ExpiringSoon() && dr.Severity != expiry.Expired &&
			!cr.Severity.ExpiringSoon() && cr.Severity != expiry.Expired {
			continue
		}
		out = append(out, ExpiringDomain{Domain: d, DomainExpiry: dr, CertExpiry: cr})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].soonest() < out[j].soonest() })
	return out
}

// ExpiringDomain pairs a domain with the classification of both its dates
type ExpiringDomain struct {
	Domain       models.DomainRecord `json:"domain"`
	DomainExpiry expiry.Result       `json:"domain_expiry"`
	CertExpiry   expiry.Result       `json:"ssl_expiry"`
}

func (e ExpiringDomain) soonest() int {
	best := int(^uint(0) >> 1)
	for _, r := range []expiry.Result{e.DomainExpiry, e.CertExpiry} {
		if r.Known && r.DaysRemaining < best {
			best = r.DaysRemaining
		}
	}
	return best
}

// Query filters, orders and paginates logs in memory. Ordering is newest
// first with ties broken by descending id.
func Query(logs []models.MonitoringLogEntry, q models.GetLogsQuery) models.GetLogsResponse {
	q = q.Normalized()
	needle := strings.ToLower(q.Domain)

	matched := make([]models.MonitoringLogEntry, 0, len(logs))
	for _, l := range logs {
		if q.Owner != "" && l.Owner != q.Owner {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(l.Domain), needle) {
			continue
		}
		if q.LogType != "" && l.LogType != q.LogType {
			continue
		}
		if q.Severity != "" && l.Severity != q.Severity {
			continue
		}
		if q.AlertSent != nil && l.AlertSent != *q.AlertSent {
			continue
		}
		if q.StartDate != nil && l.CreatedAt.Before(*q.StartDate) {
			continue
		}
		if q.EndDate != nil && l.CreatedAt.After(*q.EndDate) {
			continue
		}
		matched = append(matched, l)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})

	total := int64(len(matched))
	page := []models.MonitoringLogEntry{}
	if off := q.Offset(); off < len(matched) {
		end := off + q.Limit
		if end > len(matched) {
			end = len(matched)
		}
		page = matched[off:end]
	}
	return models.GetLogsResponse{
		Logs:       page,
		Total:      total,
		Page:       q.Page,
		TotalPages: models.TotalPages(total, q.Limit),
	}
}
