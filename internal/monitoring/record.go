// Package monitoring turns raw check outcomes into log entries and domain
// updates, and aggregates logs and domains into dashboard statistics.
package monitoring

import (
	"fmt"
	"time"

	"gorm.io/datatypes"

	"domain-monitor/internal/expiry"
	"domain-monitor/internal/models"
)

// CheckKind names the check that produced a result
type CheckKind string

const (
	KindWhois  CheckKind = "whois"
	KindSSL    CheckKind = "ssl"
	KindUptime CheckKind = "uptime"
	KindDNS    CheckKind = "dns"
)

// AllKinds is every check kind in the order a full check runs them
var AllKinds = []CheckKind{KindWhois, KindSSL, KindDNS, KindUptime}

// ParseKind validates a check kind name
func ParseKind(s string) (CheckKind, bool) {
	for _, k := range AllKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// CheckResult is the raw outcome of one check. A non-nil Err means the check
// itself failed to execute; the other fields are then ignored.
type CheckResult struct {
	Kind        CheckKind
	CheckedAt   time.Time
	Err         error
	Expiry      *time.Time // Domain expiry for whois, certificate expiry for ssl
	Registrar   string
	Issuer      string
	NameServers []string
	Status      models.DomainStatus // uptime
	Detail      string
}

func (r CheckResult) Failed() bool { return r.Err != nil }

// Outcome is what Record derives from a check result
type Outcome struct {
	Entry  models.MonitoringLogEntry
	Update models.DomainMonitoringUpdate
}

// Record builds the log entry for res and the update to merge into domain.
// Classification uses res.CheckedAt as the current time.
func Record(domain models.DomainRecord, res CheckResult) Outcome {
	now := res.CheckedAt
	if now.IsZero() {
		now = time.Now()
	}
	upd := models.DomainMonitoringUpdate{
		DomainID:  domain.ID,
		Domain:    domain.Name,
		CheckedAt: now,
	}
	entry := models.MonitoringLogEntry{
		DomainID:  domain.ID,
		Domain:    domain.Name,
		Owner:     domain.Owner,
		CreatedAt: now,
	}

	if res.Failed() {
		upd.PreserveExpiryDate = true
		entry.LogType = models.LogMonitoringError
		entry.Severity = models.SeverityError
		entry.Message = fmt.Sprintf("%s check failed for %s: %v", kindLabel(res.Kind), domain.Name, res.Err)
		entry.Details = datatypes.NewJSONType(models.LogDetails{Check: string(res.Kind), Error: res.Err.Error()})
		return Outcome{Entry: entry, Update: upd}
	}

	switch res.Kind {
	case KindWhois:
		at := now
		upd.ExpiryDate = copyTime(res.Expiry)
		upd.Registrar = res.Registrar
		upd.NameServers = res.NameServers
		upd.LastWhoisCheck = &at

		known := res.Expiry
		if known == nil {
			known = domain.DomainExpiry
		}
		entry.LogType = models.LogDomainExpiry
		entry.Severity, entry.Message = expiryEntry("Domain "+domain.Name, known, now)
		entry.Details = datatypes.NewJSONType(expiryDetails(res.Kind, known, now, func(d *models.LogDetails) {
			d.Registrar = res.Registrar
			d.NameServers = res.NameServers
		}))

	case KindSSL:
		at := now
		upd.SSLExpiry = copyTime(res.Expiry)
		upd.SSLIssuer = res.Issuer
		upd.LastSslCheck = &at

		known := res.Expiry
		if known == nil {
			known = domain.CertExpiry
		}
		upd.SSLStatus = expiry.Classify(known, now).String()
		entry.LogType = models.LogSSLExpiry
		entry.Severity, entry.Message = expiryEntry("SSL certificate for "+domain.Name, known, now)
		entry.Details = datatypes.NewJSONType(expiryDetails(res.Kind, known, now, func(d *models.LogDetails) {
			d.Issuer = res.Issuer
		}))

	case KindUptime:
		status := res.Status
		if status == "" {
			status = models.StatusUnknown
		}
		upd.Status = status
		entry.LogType = models.LogDomainStatus
		entry.Severity = statusSeverity(status)
		entry.Message = statusMessage(domain.Name, domain.Status, status)
		entry.Details = datatypes.NewJSONType(models.LogDetails{
			Check:          string(res.Kind),
			PreviousStatus: string(domain.Status),
			CurrentStatus:  string(status),
			Error:          res.Detail,
		})

	case KindDNS:
		upd.NameServers = res.NameServers
		entry.LogType = models.LogDomainStatus
		entry.Severity = models.SeverityInfo
		entry.Message = fmt.Sprintf("DNS for %s resolves via %d nameservers", domain.Name, len(res.NameServers))
		if len(res.NameServers) == 0 {
			entry.Severity = models.SeverityWarning
			entry.Message = fmt.Sprintf("DNS for %s returned no nameservers", domain.Name)
		}
		entry.Details = datatypes.NewJSONType(models.LogDetails{Check: string(res.Kind), NameServers: res.NameServers})

	default:
		entry.LogType = models.LogMonitoringError
		entry.Severity = models.SeverityError
		entry.Message = fmt.Sprintf("unknown check %q for %s", res.Kind, domain.Name)
		entry.Details = datatypes.NewJSONType(models.LogDetails{Check: string(res.Kind), Error: "unknown check"})
		upd.PreserveExpiryDate = true
	}
	return Outcome{Entry: entry, Update: upd}
}

// Apply merges upd into d. Expiry dates are only replaced by present values
// and never when the update asks to preserve them.
func Apply(d *models.DomainRecord, upd models.DomainMonitoringUpdate) {
	if !upd.PreserveExpiryDate {
		if upd.ExpiryDate != nil {
			d.DomainExpiry = copyTime(upd.ExpiryDate)
		}
		if upd.SSLExpiry != nil {
			d.CertExpiry = copyTime(upd.SSLExpiry)
		}
	}
	if upd.Registrar != "" {
		d.Registrar = upd.Registrar
	}
	if upd.SSLIssuer != "" {
		d.CertIssuer = upd.SSLIssuer
	}
	if upd.SSLStatus != "" {
		d.SSLStatus = upd.SSLStatus
	}
	if len(upd.NameServers) > 0 {
		d.NameServers = append([]string(nil), upd.NameServers...)
	}
	if upd.LastWhoisCheck != nil {
		d.LastWhoisCheck = copyTime(upd.LastWhoisCheck)
	}
	if upd.LastSslCheck != nil {
		d.LastSslCheck = copyTime(upd.LastSslCheck)
	}
	if upd.Status != "" {
		d.Status = upd.Status
	}
	if !upd.CheckedAt.IsZero() {
		at := upd.CheckedAt
		d.LastCheckedAt = &at
	}
}

// LogSeverity maps an expiry tier to the severity stored on a log entry
func LogSeverity(s expiry.Severity) models.LogSeverity {
	switch s.Alerting() {
	case expiry.Valid:
		return models.SeverityInfo
	case expiry.Critical, expiry.Expired:
		return models.SeverityCritical
	default:
		return models.SeverityWarning
	}
}

func expiryEntry(subject string, at *time.Time, now time.Time) (models.LogSeverity, string) {
	r := expiry.Evaluate(at, now)
	var msg string
	switch r.Severity {
	case expiry.Unknown:
		msg = subject + " has no known expiry date"
	case expiry.Expired:
		msg = fmt.Sprintf("%s expired %d day(s) ago", subject, -r.DaysRemaining)
	case expiry.ExpiresToday:
		msg = subject + " expires today"
	default:
		msg = fmt.Sprintf("%s expires in %d day(s)", subject, r.DaysRemaining)
	}
	return LogSeverity(r.Severity), msg
}

func expiryDetails(kind CheckKind, at *time.Time, now time.Time, extra func(*models.LogDetails)) models.LogDetails {
	d := models.LogDetails{Check: string(kind)}
	if r := expiry.Evaluate(at, now); r.Known {
		days := r.DaysRemaining
		d.DaysUntilExpiry = &days
		d.ExpiryDate = copyTime(at)
	}
	if extra != nil {
		extra(&d)
	}
	return d
}

func statusSeverity(s models.DomainStatus) models.LogSeverity {
	switch s {
	case models.StatusOnline:
		return models.SeverityInfo
	case models.StatusOffline:
		return models.SeverityCritical
	default:
		return models.SeverityWarning
	}
}

func statusMessage(name string, prev, cur models.DomainStatus) string {
	if prev != "" && prev != cur {
		return fmt.Sprintf("%s is %s (was %s)", name, cur, prev)
	}
	return fmt.Sprintf("%s is %s", name, cur)
}

func kindLabel(k CheckKind) string {
	switch k {
	case KindWhois:
		return "WHOIS"
	case KindSSL:
		return "SSL"
	case KindDNS:
		return "DNS"
	case KindUptime:
		return "Uptime"
	}
	return string(k)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
