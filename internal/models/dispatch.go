package models

import "time"

// DispatchStatus tracks one delivery of an alert to one channel
type DispatchStatus string

const (
	DispatchPending DispatchStatus = "pending"
	DispatchSent    DispatchStatus = "sent"
	DispatchFailed  DispatchStatus = "failed"
	DispatchRetry   DispatchStatus = "retry"
)

// AlertDispatchRecord is one attempted delivery of an alert to one channel.
// There is at most one record per (log, channel) pair.
type AlertDispatchRecord struct {
	ID            uint           `gorm:"primarykey" json:"id"`
	LogID         uint           `gorm:"uniqueIndex:idx_dispatch_log_channel;not null" json:"log_id"`
	Channel       Channel        `gorm:"uniqueIndex:idx_dispatch_log_channel;not null" json:"channel"`
	DomainID      string         `gorm:"index;size:36" json:"domain_id"`
	Domain        string         `json:"domain"`
	AlertType     string         `json:"alert_type"`
	ThresholdDay  int            `json:"threshold_day"`
	ExpiryDate    *time.Time     `json:"expiry_date,omitempty"`
	Message       string         `json:"message"`
	Recipient     string         `json:"recipient"` // Address, URL or channel id
	Status        DispatchStatus `gorm:"index" json:"status"`
	SentAt        *time.Time     `json:"sent_at,omitempty"`
	Error         string         `json:"error,omitempty"`
	RetryCount    int            `json:"retry_count"`
	NextAttemptAt *time.Time     `gorm:"index" json:"next_attempt_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (AlertDispatchRecord) TableName() string { return "alert_dispatches" }

// Terminal reports whether no further attempts may be made
func (r AlertDispatchRecord) Terminal() bool {
	return r.Status == DispatchSent || r.Status == DispatchFailed
}

// FiredAlert is one entry of the de-duplication history. The expiry value is
// part of the key so that a renewed domain becomes eligible again.
type FiredAlert struct {
	ID           uint      `gorm:"primarykey"`
	DomainID     string    `gorm:"uniqueIndex:idx_fired_key;size:36;not null"`
	AlertType    string    `gorm:"uniqueIndex:idx_fired_key;not null"`
	ThresholdDay int       `gorm:"uniqueIndex:idx_fired_key;not null"`
	ExpiryUnix   int64     `gorm:"uniqueIndex:idx_fired_key;not null"`
	FiredAt      time.Time
}

func (FiredAlert) TableName() string { return "fired_alerts" }
