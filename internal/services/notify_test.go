package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"domain-monitor/internal/alerting"
	"domain-monitor/internal/config"
	"domain-monitor/internal/models"
)

var t0 = time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)

type dispatchKey struct {
	log     uint
	channel models.Channel
}

type memDispatches struct {
	mu   sync.Mutex
	next uint
	recs map[dispatchKey]models.AlertDispatchRecord
}

func newMemDispatches() *memDispatches {
	return &memDispatches{recs: make(map[dispatchKey]models.AlertDispatchRecord)}
}

func (m *memDispatches) Open(ctx context.Context, r *models.AlertDispatchRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := dispatchKey{r.LogID, r.Channel}
	if existing, ok := m.recs[k]; ok {
		*r = existing
		return false, nil
	}
	m.next++
	r.ID = m.next
	m.recs[k] = *r
	return true, nil
}

func (m *memDispatches) Save(ctx context.Context, r *models.AlertDispatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[dispatchKey{r.LogID, r.Channel}] = *r
	return nil
}

func (m *memDispatches) get(log uint, ch models.Channel) models.AlertDispatchRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recs[dispatchKey{log, ch}]
}

// hookServer answers with the status codes in order, repeating the last one
func hookServer(t *testing.T, codes ...int) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&hits, 1))
		code := codes[len(codes)-1]
		if n <= len(codes) {
			code = codes[n-1]
		}
		w.WriteHeader(code)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestNotify(store DispatchStore, maxRetries int) *NotifyService {
	s := NewNotifyService(&config.NotificationsConfig{Timeout: "5s"}, store, maxRetries)
	s.now = func() time.Time { return t0 }
	return s
}

func sampleAlert() alerting.AlertToFire {
	a := alerting.AlertToFire{
		DomainID:      "d1",
		Domain:        "example.com",
		AlertType:     alerting.DomainExpiry,
		ThresholdDay:  7,
		DaysRemaining: 7,
		Expiry:        t0.Add(7 * 24 * time.Hour),
	}
	a.Message = alerting.Message(a)
	return a
}

func TestNotifyService_DispatchSent(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		json.NewDecoder(r.Body).Decode(&body)
	}))
	defer srv.Close()

	store := newMemDispatches()
	s := newTestNotify(store, 5)
	targets := []alerting.Target{{Channel: models.ChannelWebhook, Recipient: srv.URL}}

	sent, err := s.Dispatch(context.Background(), 1, sampleAlert(), targets)
	if err != nil || sent != 1 {
		t.Fatalf("Dispatch = %d, %v", sent, err)
	}
	rec := store.get(1, models.ChannelWebhook)
	if rec.Status != models.DispatchSent || rec.SentAt == nil || !rec.SentAt.Equal(t0) {
		t.Fatalf("record = %+v", rec)
	}
	if body["domain"] != "example.com" || body["threshold_day"] != float64(7) || body["expiry_date"] != "2025-12-08" {
		t.Fatalf("payload = %v", body)
	}
}

func TestNotifyService_ChannelsAreIndependent(t *testing.T) {
	ok, _ := hookServer(t, http.StatusOK)
	bad, _ := hookServer(t, http.StatusInternalServerError)

	store := newMemDispatches()
	s := newTestNotify(store, 5)
	targets := []alerting.Target{
		{Channel: models.ChannelWebhook, Recipient: bad.URL},
		{Channel: models.ChannelSlack, Recipient: ok.URL},
	}

	sent, err := s.Dispatch(context.Background(), 1, sampleAlert(), targets)
	if sent != 1 {
		t.Fatalf("sent = %d; want 1", sent)
	}
	if err == nil {
		t.Fatal("expected the webhook failure to be reported")
	}

	hook := store.get(1, models.ChannelWebhook)
	if hook.Status != models.DispatchRetry || hook.RetryCount != 1 {
		t.Fatalf("webhook record = %+v", hook)
	}
	if hook.NextAttemptAt == nil || !hook.NextAttemptAt.Equal(t0.Add(time.Minute)) {
		t.Fatalf("next attempt = %v", hook.NextAttemptAt)
	}
	if slack := store.get(1, models.ChannelSlack); slack.Status != models.DispatchSent {
		t.Fatalf("slack record = %+v", slack)
	}
}

func TestNotifyService_DispatchIsOncePerLogAndChannel(t *testing.T) {
	srv, hits := hookServer(t, http.StatusInternalServerError, http.StatusOK)
	store := newMemDispatches()
	s := newTestNotify(store, 5)
	targets := []alerting.Target{{Channel: models.ChannelWebhook, Recipient: srv.URL}}

	s.Dispatch(context.Background(), 1, sampleAlert(), targets)
	sent, _ := s.Dispatch(context.Background(), 1, sampleAlert(), targets)
	if sent != 0 || atomic.LoadInt32(hits) != 1 {
		t.Fatalf("second dispatch sent=%d hits=%d; want no new attempt", sent, atomic.LoadInt32(hits))
	}

	rec := store.get(1, models.ChannelWebhook)
	if err := s.Retry(context.Background(), &rec); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if rec.Status != models.DispatchSent || rec.RetryCount != 1 {
		t.Fatalf("after retry = %+v", rec)
	}
	if err := s.Retry(context.Background(), &rec); !errors.Is(err, alerting.ErrTerminal) {
		t.Fatalf("retry of sent record err = %v", err)
	}
}

func TestNotifyService_FailsAfterMaxRetries(t *testing.T) {
	srv, hits := hookServer(t, http.StatusBadGateway)
	store := newMemDispatches()
	s := newTestNotify(store, 2)
	targets := []alerting.Target{{Channel: models.ChannelWebhook, Recipient: srv.URL}}

	s.Dispatch(context.Background(), 1, sampleAlert(), targets)
	rec := store.get(1, models.ChannelWebhook)
	for rec.Status == models.DispatchRetry {
		s.Retry(context.Background(), &rec)
	}
	if rec.Status != models.DispatchFailed || rec.RetryCount != 2 {
		t.Fatalf("record = %+v", rec)
	}
	if got := atomic.LoadInt32(hits); got != 3 {
		t.Fatalf("attempts = %d; want 3", got)
	}
	if rec.Error == "" {
		t.Fatal("last error not kept")
	}
}

func TestNotifyService_MissingNotifier(t *testing.T) {
	store := newMemDispatches()
	s := newTestNotify(store, 5)
	targets := []alerting.Target{{Channel: models.ChannelEmail, Recipient: "ops@example.com"}}

	sent, err := s.Dispatch(context.Background(), 1, sampleAlert(), targets)
	if sent != 0 || !errors.Is(err, ErrNoNotifier) {
		t.Fatalf("Dispatch = %d, %v", sent, err)
	}
	if rec := store.get(1, models.ChannelEmail); rec.Status != models.DispatchRetry {
		t.Fatalf("record = %+v", rec)
	}
}

func TestSlackNotifier_Payload(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
	}))
	defer srv.Close()

	s := newTestNotify(newMemDispatches(), 5)
	err := s.SendTest(context.Background(), alerting.Target{Channel: models.ChannelSlack, Recipient: srv.URL}, "hello")
	if err != nil {
		t.Fatalf("SendTest: %v", err)
	}
	if body["text"] != ":warning: hello" {
		t.Fatalf("payload = %v", body)
	}
}
