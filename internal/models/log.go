package models

import (
	"time"

	"gorm.io/datatypes"
)

// LogType identifies which check produced a log entry
type LogType string

const (
	LogDomainExpiry    LogType = "domain_expiry"
	LogSSLExpiry       LogType = "ssl_expiry"
	LogDomainStatus    LogType = "domain_status"
	LogMonitoringError LogType = "monitoring_error"
)

// LogSeverity is the severity stored on a log entry
type LogSeverity string

const (
	SeverityInfo     LogSeverity = "info"
	SeverityWarning  LogSeverity = "warning"
	SeverityCritical LogSeverity = "critical"
	SeverityError    LogSeverity = "error"
)

// Channel is an alert delivery channel
type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelWebhook Channel = "webhook"
	ChannelSlack   Channel = "slack"
)

// LogDetails holds the structured part of a log entry. Which fields are set
// depends on the log type.
type LogDetails struct {
	Check           string     `json:"check,omitempty"`
	DaysUntilExpiry *int       `json:"days_until_expiry,omitempty"`
	ExpiryDate      *time.Time `json:"expiry_date,omitempty"`
	PreviousStatus  string     `json:"previous_status,omitempty"`
	CurrentStatus   string     `json:"current_status,omitempty"`
	Registrar       string     `json:"registrar,omitempty"`
	Issuer          string     `json:"issuer,omitempty"`
	NameServers     []string   `json:"name_servers,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// MonitoringLogEntry is the immutable record of one check outcome.
// Only AlertSent may change after creation, and only from false to true.
type MonitoringLogEntry struct {
	ID            uint                           `gorm:"primarykey" json:"id"`
	DomainID      string                         `gorm:"index;size:36" json:"domain_id"`
	Domain        string                         `gorm:"index" json:"domain"`
	Owner         string                         `gorm:"index" json:"owner"`
	LogType       LogType                        `gorm:"index" json:"log_type"`
	Severity      LogSeverity                    `gorm:"index" json:"severity"`
	Message       string                         `json:"message"`
	Details       datatypes.JSONType[LogDetails] `json:"details"`
	AlertSent     bool                           `json:"alert_sent"`
	AlertChannels datatypes.JSONSlice[Channel]   `json:"alert_channels"`
	CreatedAt     time.Time                      `gorm:"index" json:"created_at"`
}

func (MonitoringLogEntry) TableName() string { return "monitoring_logs" }
