// Package alerting decides which expiry alerts should fire for a domain and
// tracks the delivery state of each fired alert per channel.
package alerting

import (
	"fmt"
	"time"

	"domain-monitor/internal/expiry"
	"domain-monitor/internal/models"
)

// AlertType is which tracked date an alert is about
type AlertType string

const (
	DomainExpiry AlertType = "domain_expiry"
	SSLExpiry    AlertType = "ssl_expiry"
)

// Thresholds are the fixed alerting lead times, in days
var Thresholds = []int{30, 15, 7, 1}

// HistoryKey identifies one firing. Expiry is the Unix time of the expiry
// value the alert was computed from.
type HistoryKey struct {
	DomainID     string
	AlertType    AlertType
	ThresholdDay int
	Expiry       int64
}

// KeyFor builds the history key of a firing
func KeyFor(domainID string, t AlertType, thresholdDay int, exp time.Time) HistoryKey {
	return HistoryKey{DomainID: domainID, AlertType: t, ThresholdDay: thresholdDay, Expiry: exp.Unix()}
}

// History answers whether an alert has already fired
type History interface {
	Fired(key HistoryKey) bool
}

// MemoryHistory is a History held in a map
type MemoryHistory map[HistoryKey]struct{}

func (h MemoryHistory) Fired(key HistoryKey) bool {
	_, ok := h[key]
	return ok
}

func (h MemoryHistory) Add(key HistoryKey) { h[key] = struct{}{} }

// AlertToFire is an eligible, non-duplicate alert
type AlertToFire struct {
	DomainID      string    `json:"domain_id"`
	Domain        string    `json:"domain"`
	AlertType     AlertType `json:"alert_type"`
	ThresholdDay  int       `json:"threshold_day"`
	DaysRemaining int       `json:"days_remaining"`
	Expiry        time.Time `json:"expiry_date"`
	Message       string    `json:"message"`
}

// Key is the history key this alert records once fired
func (a AlertToFire) Key() HistoryKey {
	return KeyFor(a.DomainID, a.AlertType, a.ThresholdDay, a.Expiry)
}

type trackedDate struct {
	alertType AlertType
	at        *time.Time
	toggles   models.ThresholdToggles
}

// Evaluate returns the alerts that should fire for domain at now. Each
// tracked date is considered independently. A threshold is eligible only
// when the days remaining equal it exactly, and is skipped when history
// already holds it for the same expiry value. A nil history suppresses
// nothing.
func Evaluate(domain models.DomainRecord, settings models.NotificationSettings, history History, now time.Time) []AlertToFire {
	dates := []trackedDate{
		{alertType: DomainExpiry, at: domain.DomainExpiry, toggles: settings.DomainExpiry},
		{alertType: SSLExpiry, at: domain.CertExpiry, toggles: settings.CertExpiry},
	}

	var alerts []AlertToFire
	for _, d := range dates {
		r := expiry.Evaluate(d.at, now)
		if !r.Known {
			continue
		}
		for _, t := range Thresholds {
			if !d.toggles.Enabled(t) || r.DaysRemaining != t {
				continue
			}
			alert := AlertToFire{
				DomainID:      domain.ID,
				Domain:        domain.Name,
				AlertType:     d.alertType,
				ThresholdDay:  t,
				DaysRemaining: r.DaysRemaining,
				Expiry:        *d.at,
			}
			if history != nil && history.Fired(alert.Key()) {
				continue
			}
			alert.Message = Message(alert)
			alerts = append(alerts, alert)
		}
	}
	return alerts
}

// Message renders the human-readable text of an alert
func Message(a AlertToFire) string {
	unit := "days"
	if a.DaysRemaining == 1 {
		unit = "day"
	}
	subject := fmt.Sprintf("Domain %s", a.Domain)
	if a.AlertType == SSLExpiry {
		subject = fmt.Sprintf("SSL certificate for %s", a.Domain)
	}
	return fmt.Sprintf("%s expires in %d %s (%s)", subject, a.DaysRemaining, unit, a.Expiry.UTC().Format("2006-01-02"))
}
