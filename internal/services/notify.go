package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"domain-monitor/internal/alerting"
	"domain-monitor/internal/config"
	"domain-monitor/internal/metrics"
	"domain-monitor/internal/models"
)

// Notifier delivers one alert over one channel
type Notifier interface {
	Channel() models.Channel
	Send(ctx context.Context, r *models.AlertDispatchRecord) error
}

// DispatchStore persists delivery records
type DispatchStore interface {
	Open(ctx context.Context, r *models.AlertDispatchRecord) (bool, error)
	Save(ctx context.Context, r *models.AlertDispatchRecord) error
}

// NotifyService handles notifications. Every delivery is tracked by an
// AlertDispatchRecord and channels are attempted independently.
type NotifyService struct {
	store      DispatchStore
	notifiers  map[models.Channel]Notifier
	limiter    *rate.Limiter
	maxRetries int
	now        func() time.Time
}

// NewNotifyService creates a new notification service. Webhook and Slack
// are always available; email needs an SMTP relay.
func NewNotifyService(cfg *config.NotificationsConfig, store DispatchStore, maxRetries int) *NotifyService {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}
	if maxRetries < 0 {
		maxRetries = alerting.DefaultMaxRetries
	}

	client := &http.Client{Timeout: config.Duration(cfg.Timeout)}
	s := &NotifyService{
		store:      store,
		notifiers:  make(map[models.Channel]Notifier),
		limiter:    rate.NewLimiter(limit, burst),
		maxRetries: maxRetries,
		now:        time.Now,
	}
	s.Register(NewWebhookNotifier(client))
	s.Register(NewSlackNotifier(client))
	if cfg.Email.SMTPHost != "" {
		s.Register(NewEmailNotifier(&cfg.Email))
	}
	return s
}

// Register installs n for its channel, replacing any previous notifier
func (s *NotifyService) Register(n Notifier) {
	s.notifiers[n.Channel()] = n
}

// Dispatch delivers alert, fired by log entry logID, to every target. A
// channel that already has a record for this log is not attempted again
// here; pending retries belong to Retry. It returns how many channels hold
// a sent record for the entry.
func (s *NotifyService) Dispatch(ctx context.Context, logID uint, alert alerting.AlertToFire, targets []alerting.Target) (int, error) {
	sent := 0
	var errs []error
	for _, t := range targets {
		rec := alerting.NewDispatch(logID, alert, t)
		created, err := s.store.Open(ctx, &rec)
		if err != nil {
			errs = append(errs, fmt.Errorf("open %s dispatch: %w", t.Channel, err))
			continue
		}
		if !created {
			if rec.Status == models.DispatchSent {
				sent++
			}
			continue
		}
		if err := s.attempt(ctx, &rec); err != nil {
			errs = append(errs, err)
		}
		if rec.Status == models.DispatchSent {
			sent++
		}
	}
	return sent, errors.Join(errs...)
}

// Retry re-attempts a record in the retry state
func (s *NotifyService) Retry(ctx context.Context, rec *models.AlertDispatchRecord) error {
	if rec.Terminal() {
		return alerting.ErrTerminal
	}
	return s.attempt(ctx, rec)
}

// SendTest sends msg to target without recording a dispatch
func (s *NotifyService) SendTest(ctx context.Context, target alerting.Target, msg string) error {
	n, ok := s.notifiers[target.Channel]
	if !ok {
		return fmt.Errorf("%s: %w", target.Channel, ErrNoNotifier)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	rec := &models.AlertDispatchRecord{
		Channel:   target.Channel,
		Domain:    "test",
		AlertType: "test",
		Message:   msg,
		Recipient: target.Recipient,
	}
	return n.Send(ctx, rec)
}

// attempt sends rec once and persists the resulting state. The returned
// error is the delivery or persistence failure, if any.
func (s *NotifyService) attempt(ctx context.Context, rec *models.AlertDispatchRecord) error {
	sendErr := s.send(ctx, rec)
	now := s.now()

	var err error
	if sendErr == nil {
		err = alerting.MarkSent(rec, now)
	} else {
		err = alerting.MarkFailed(rec, sendErr, now, s.maxRetries)
	}
	if err != nil {
		return err
	}
	metrics.ObserveDispatch(string(rec.Channel), string(rec.Status))

	log := logrus.WithFields(logrus.Fields{
		"domain":  rec.Domain,
		"channel": rec.Channel,
		"status":  rec.Status,
	})
	if sendErr != nil {
		log.WithField("retry", rec.RetryCount).Warnf("Notification failed: %v", sendErr)
	} else {
		log.Info("Notification sent")
	}

	if err := s.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("save %s dispatch: %w", rec.Channel, err)
	}
	if sendErr != nil {
		return fmt.Errorf("%s notification: %w", rec.Channel, sendErr)
	}
	return nil
}

func (s *NotifyService) send(ctx context.Context, rec *models.AlertDispatchRecord) error {
	n, ok := s.notifiers[rec.Channel]
	if !ok {
		return fmt.Errorf("%s: %w", rec.Channel, ErrNoNotifier)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	return n.Send(ctx, rec)
}

// EmailNotifier sends email notifications
type EmailNotifier struct {
	config *config.EmailConfig
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(cfg *config.EmailConfig) *EmailNotifier {
	return &EmailNotifier{config: cfg}
}

func (e *EmailNotifier) Channel() models.Channel { return models.ChannelEmail }

// Send sends email notification
func (e *EmailNotifier) Send(ctx context.Context, r *models.AlertDispatchRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject := fmt.Sprintf("Expiry alert: %s", r.Domain)

	var b strings.Builder
	b.WriteString(r.Message + "\n\n")
	fmt.Fprintf(&b, "Domain: %s\n", r.Domain)
	if r.AlertType != "" {
		fmt.Fprintf(&b, "Alert: %s\n", r.AlertType)
	}
	if r.ThresholdDay > 0 {
		fmt.Fprintf(&b, "Threshold: %d days\n", r.ThresholdDay)
	}
	if r.ExpiryDate != nil {
		fmt.Fprintf(&b, "Expiry date: %s\n", r.ExpiryDate.UTC().Format("2006-01-02"))
	}

	// Build email message
	message := fmt.Sprintf("From: %s\r\n", e.config.From)
	message += fmt.Sprintf("To: %s\r\n", r.Recipient)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += "Content-Type: text/plain; charset=UTF-8\r\n"
	message += "\r\n"
	message += b.String()

	var auth smtp.Auth
	if e.config.Password != "" {
		auth = smtp.PlainAuth("", e.config.From, e.config.Password, e.config.SMTPHost)
	}

	addr := fmt.Sprintf("%s:%d", e.config.SMTPHost, e.config.SMTPPort)
	err := smtp.SendMail(addr, auth, e.config.From, []string{r.Recipient}, []byte(message))
	if err != nil {
		// Some providers answer the final QUIT with a short response even
		// though the message was accepted
		if !strings.Contains(err.Error(), "short response") {
			return fmt.Errorf("failed to send email: %w", err)
		}
		logrus.WithField("domain", r.Domain).Debug("Email sent (ignoring 'short response' from SMTP server)")
	}
	return nil
}

// WebhookNotifier posts the dispatch record as JSON
type WebhookNotifier struct {
	client *http.Client
}

// NewWebhookNotifier creates a new webhook notifier
func NewWebhookNotifier(client *http.Client) *WebhookNotifier {
	return &WebhookNotifier{client: client}
}

func (w *WebhookNotifier) Channel() models.Channel { return models.ChannelWebhook }

// Send sends webhook notification
func (w *WebhookNotifier) Send(ctx context.Context, r *models.AlertDispatchRecord) error {
	payload := map[string]interface{}{
		"domain":        r.Domain,
		"alert_type":    r.AlertType,
		"threshold_day": r.ThresholdDay,
		"message":       r.Message,
	}
	if r.ExpiryDate != nil {
		payload["expiry_date"] = r.ExpiryDate.UTC().Format("2006-01-02")
	}
	return postJSON(ctx, w.client, r.Recipient, payload)
}

// SlackNotifier posts to a Slack incoming webhook
type SlackNotifier struct {
	client *http.Client
}

func NewSlackNotifier(client *http.Client) *SlackNotifier {
	return &SlackNotifier{client: client}
}

func (s *SlackNotifier) Channel() models.Channel { return models.ChannelSlack }

func (s *SlackNotifier) Send(ctx context.Context, r *models.AlertDispatchRecord) error {
	return postJSON(ctx, s.client, r.Recipient, map[string]string{
		"text": fmt.Sprintf(":warning: %s", r.Message),
	})
}

func postJSON(ctx context.Context, client *http.Client, url string, payload interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
