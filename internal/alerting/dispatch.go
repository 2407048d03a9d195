package alerting

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"domain-monitor/internal/models"
)

// DefaultMaxRetries is how many retries a failed dispatch gets after its
// first attempt before it is marked failed
const DefaultMaxRetries = 5

// Retry spacing
const (
	RetryInitialInterval = time.Minute
	RetryMaxInterval     = time.Hour
)

// ErrTerminal is returned when a transition is requested on a record that
// is already sent or failed
var ErrTerminal = errors.New("dispatch record is already sent or failed")

// Target is one enabled delivery sink
type Target struct {
	Channel   models.Channel `json:"channel"`
	Recipient string         `json:"recipient"`
}

// Targets lists the enabled delivery sinks of settings. A sink without a
// recipient is skipped.
func Targets(s models.NotificationSettings) []Target {
	var out []Target
	if s.EmailEnabled && s.EmailAddress != "" {
		out = append(out, Target{Channel: models.ChannelEmail, Recipient: s.EmailAddress})
	}
	if s.WebhookEnabled && s.WebhookURL != "" {
		out = append(out, Target{Channel: models.ChannelWebhook, Recipient: s.WebhookURL})
	}
	if s.SlackEnabled && s.SlackWebhookURL != "" {
		out = append(out, Target{Channel: models.ChannelSlack, Recipient: s.SlackWebhookURL})
	}
	return out
}

// NewDispatch creates the pending record for delivering alert to target
func NewDispatch(logID uint, alert AlertToFire, target Target) models.AlertDispatchRecord {
	exp := alert.Expiry
	return models.AlertDispatchRecord{
		LogID:        logID,
		Channel:      target.Channel,
		DomainID:     alert.DomainID,
		Domain:       alert.Domain,
		AlertType:    string(alert.AlertType),
		ThresholdDay: alert.ThresholdDay,
		ExpiryDate:   &exp,
		Message:      alert.Message,
		Recipient:    target.Recipient,
		Status:       models.DispatchPending,
	}
}

// MarkSent records a successful delivery
func MarkSent(r *models.AlertDispatchRecord, at time.Time) error {
	if r.Terminal() {
		return ErrTerminal
	}
	r.Status = models.DispatchSent
	r.SentAt = &at
	r.Error = ""
	r.NextAttemptAt = nil
	return nil
}

// MarkFailed records a failed delivery. While retries remain the record
// moves to retry with its next attempt scheduled; otherwise it is failed.
func MarkFailed(r *models.AlertDispatchRecord, cause error, at time.Time, maxRetries int) error {
	if r.Terminal() {
		return ErrTerminal
	}
	if cause != nil {
		r.Error = cause.Error()
	}
	if r.RetryCount < maxRetries {
		r.RetryCount++
		r.Status = models.DispatchRetry
		next := at.Add(NextAttempt(r.RetryCount))
		r.NextAttemptAt = &next
		return nil
	}
	r.Status = models.DispatchFailed
	r.NextAttemptAt = nil
	return nil
}

// NextAttempt is the delay before the given retry (1-based). Delays double
// from RetryInitialInterval and are capped at RetryMaxInterval.
func NextAttempt(retry int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = RetryInitialInterval
	b.MaxInterval = RetryMaxInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.Reset()

	d := b.InitialInterval
	for i := 0; i < retry; i++ {
		d = b.NextBackOff()
	}
	return d
}
