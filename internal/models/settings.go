package models

import "time"

// ThresholdToggles enables alerting at each fixed lead time
type ThresholdToggles struct {
	ThirtyDays  bool `json:"thirty_days"`
	FifteenDays bool `json:"fifteen_days"`
	SevenDays   bool `json:"seven_days"`
	OneDay      bool `json:"one_day"`
}

// Enabled reports whether the toggle for the given threshold day is on.
// Unknown thresholds are never enabled.
func (t ThresholdToggles) Enabled(day int) bool {
	switch day {
	case 30:
		return t.ThirtyDays
	case 15:
		return t.FifteenDays
	case 7:
		return t.SevenDays
	case 1:
		return t.OneDay
	}
	return false
}

// AllThresholds returns toggles with every threshold enabled
func AllThresholds() ThresholdToggles {
	return ThresholdToggles{ThirtyDays: true, FifteenDays: true, SevenDays: true, OneDay: true}
}

// NotificationSettings represents per-account notification configuration
type NotificationSettings struct {
	Owner           string           `gorm:"primaryKey" json:"owner"`
	DomainExpiry    ThresholdToggles `gorm:"embedded;embeddedPrefix:domain_" json:"domain_expiry"`
	CertExpiry      ThresholdToggles `gorm:"embedded;embeddedPrefix:cert_" json:"cert_expiry"`
	EmailEnabled    bool             `json:"email_enabled"`
	EmailAddress    string           `json:"email_address"`
	WebhookEnabled  bool             `json:"webhook_enabled"`
	WebhookURL      string           `json:"webhook_url"`
	SlackEnabled    bool             `json:"slack_enabled"`
	SlackWebhookURL string           `json:"slack_webhook_url"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func (NotificationSettings) TableName() string { return "notification_settings" }

// DefaultSettings is what an account gets before it saves its own settings
func DefaultSettings(owner string) NotificationSettings {
	return NotificationSettings{
		Owner:        owner,
		DomainExpiry: AllThresholds(),
		CertExpiry:   AllThresholds(),
	}
}
