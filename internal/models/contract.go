package models

import "time"

// DomainMonitoringUpdate is the set of fields a check asks to merge into a
// DomainRecord. Absent (nil/empty) fields leave the record untouched.
type DomainMonitoringUpdate struct {
	DomainID           string       `json:"domainId"`
	Domain             string       `json:"domain"`
	ExpiryDate         *time.Time   `json:"expiry_date,omitempty"`
	SSLExpiry          *time.Time   `json:"ssl_expiry,omitempty"`
	SSLStatus          string       `json:"ssl_status,omitempty"`
	SSLIssuer          string       `json:"ssl_issuer,omitempty"`
	Registrar          string       `json:"registrar,omitempty"`
	NameServers        []string     `json:"name_servers,omitempty"`
	LastWhoisCheck     *time.Time   `json:"lastWhoisCheck,omitempty"`
	LastSslCheck       *time.Time   `json:"lastSslCheck,omitempty"`
	CheckedAt          time.Time    `json:"checkedAt"`
	Status             DomainStatus `json:"status,omitempty"`
	PreserveExpiryDate bool         `json:"preserveExpiryDate,omitempty"` // Keep the stored expiry dates whatever the update carries
}

// MonitoringStats is the dashboard summary
type MonitoringStats struct {
	TotalDomains        int        `json:"totalDomains"`
	ActiveDomains       int        `json:"activeDomains"`
	DomainsExpiringSoon int        `json:"domainsExpiringSoon"`
	SSLExpiringSoon     int        `json:"sslExpiringSoon"`
	CriticalAlerts      int        `json:"criticalAlerts"`
	LastMonitoringRun   *time.Time `json:"lastMonitoringRun,omitempty"`
	NextMonitoringRun   *time.Time `json:"nextMonitoringRun,omitempty"`
}

const (
	DefaultLogPage  = 1
	DefaultLogLimit = 20
	MaxLogLimit     = 100
)

// GetLogsQuery filters and paginates monitoring logs
type GetLogsQuery struct {
	Owner     string      `json:"-"`
	Domain    string      `json:"domain,omitempty"` // Substring, case-insensitive
	LogType   LogType     `json:"logType,omitempty"`
	Severity  LogSeverity `json:"severity,omitempty"`
	AlertSent *bool       `json:"alertSent,omitempty"`
	Page      int         `json:"page,omitempty"`
	Limit     int         `json:"limit,omitempty"`
	StartDate *time.Time  `json:"startDate,omitempty"` // Inclusive
	EndDate   *time.Time  `json:"endDate,omitempty"`   // Inclusive
}

// Normalized returns the query with page and limit clamped to usable values
func (q GetLogsQuery) Normalized() GetLogsQuery {
	if q.Page < 1 {
		q.Page = DefaultLogPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLogLimit
	}
	if q.Limit > MaxLogLimit {
		q.Limit = MaxLogLimit
	}
	return q
}

// Offset is the number of rows to skip for the query's page
func (q GetLogsQuery) Offset() int {
	n := q.Normalized()
	return (n.Page - 1) * n.Limit
}

// GetLogsResponse is one page of monitoring logs
type GetLogsResponse struct {
	Logs       []MonitoringLogEntry `json:"logs"`
	Total      int64                `json:"total"`
	Page       int                  `json:"page"`
	TotalPages int                  `json:"totalPages"`
}

// TotalPages computes the page count for total rows at the given page size
func TotalPages(total int64, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
