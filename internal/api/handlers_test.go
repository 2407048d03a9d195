package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"domain-monitor/internal/config"
	"domain-monitor/internal/database"
	"domain-monitor/internal/models"
	"domain-monitor/internal/monitoring"
	"domain-monitor/internal/services"
)

type fixedWhois struct{ exp time.Time }

func (f fixedWhois) Kind() monitoring.CheckKind { return monitoring.KindWhois }

func (f fixedWhois) Check(ctx context.Context, d models.DomainRecord) monitoring.CheckResult {
	e := f.exp
	return monitoring.CheckResult{Expiry: &e, Registrar: "Example Registrar"}
}

type fakeRefresher struct{ ok bool }

func (f fakeRefresher) Trigger() bool { return f.ok }

type testAPI struct {
	router *gin.Engine
	store  *database.Store
}

func newTestAPI(t *testing.T, checkers ...services.Checker) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store, err := database.Connect(&config.DatabaseConfig{Type: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	monitor := services.NewMonitorService(store, nil, services.MonitorOptions{}, checkers...)
	h := NewHandler(monitor, store, fakeRefresher{ok: true})
	return &testAPI{router: NewRouter(&config.ServerConfig{}, h), store: store}
}

func (a *testAPI) do(t *testing.T, method, path, owner string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		req.Header.Set(OwnerHeader, owner)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestDomainsCRUD(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPost, "/api/v1/domains", "", gin.H{"domain": "https://Example.com/", "registrar": "Acme"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body)
	}
	var created models.DomainRecord
	decode(t, w, &created)
	if created.Name != "example.com" || created.Owner != models.DefaultOwner || created.ID == "" {
		t.Fatalf("created %+v", created)
	}

	if w := a.do(t, http.MethodPost, "/api/v1/domains", "", gin.H{"domain": "example.com"}); w.Code != http.StatusConflict {
		t.Fatalf("duplicate: %d", w.Code)
	}
	if w := a.do(t, http.MethodPost, "/api/v1/domains", "", gin.H{"domain": "nope"}); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid: %d", w.Code)
	}
	if w := a.do(t, http.MethodPost, "/api/v1/domains", "", gin.H{}); w.Code != http.StatusBadRequest {
		t.Fatalf("missing name: %d", w.Code)
	}

	// Another account sees nothing
	if w := a.do(t, http.MethodGet, "/api/v1/domains/"+created.ID, "other", nil); w.Code != http.StatusNotFound {
		t.Fatalf("foreign get: %d", w.Code)
	}
	var list []models.DomainRecord
	decode(t, a.do(t, http.MethodGet, "/api/v1/domains", "other", nil), &list)
	if len(list) != 0 {
		t.Fatalf("foreign list = %d", len(list))
	}

	w = a.do(t, http.MethodPut, "/api/v1/domains/"+created.ID, "", gin.H{"auto_renew": true, "is_active": false})
	if w.Code != http.StatusOK {
		t.Fatalf("update: %d %s", w.Code, w.Body)
	}
	var updated models.DomainRecord
	decode(t, w, &updated)
	if !updated.AutoRenew || updated.IsActive || updated.Registrar != "Acme" {
		t.Fatalf("updated %+v", updated)
	}

	if w := a.do(t, http.MethodDelete, "/api/v1/domains/"+created.ID, "", nil); w.Code != http.StatusOK {
		t.Fatalf("delete: %d", w.Code)
	}
	if w := a.do(t, http.MethodDelete, "/api/v1/domains/"+created.ID, "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("second delete: %d", w.Code)
	}
}

func TestImportDomains(t *testing.T) {
	a := newTestAPI(t)
	w := a.do(t, http.MethodPost, "/api/v1/domains/import", "", gin.H{"domains": []string{"a.com", "b.org", "a.com", "bad"}})
	if w.Code != http.StatusOK {
		t.Fatalf("import: %d", w.Code)
	}
	var resp struct {
		Total    int               `json:"total"`
		Imported int               `json:"imported"`
		Skipped  map[string]string `json:"skipped"`
	}
	decode(t, w, &resp)
	if resp.Total != 4 || resp.Imported != 2 || len(resp.Skipped) != 2 {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestRefreshDomainAndLogs(t *testing.T) {
	exp := time.Now().Add(400 * 24 * time.Hour).UTC().Truncate(time.Second)
	a := newTestAPI(t, fixedWhois{exp: exp})

	d := &models.DomainRecord{Owner: models.DefaultOwner, Name: "example.com"}
	if err := a.store.Domains.Create(context.Background(), d); err != nil {
		t.Fatal(err)
	}

	if w := a.do(t, http.MethodPost, "/api/v1/domains/"+d.ID+"/refresh?kinds=tls", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad kind: %d", w.Code)
	}
	if w := a.do(t, http.MethodPost, "/api/v1/domains/"+d.ID+"/refresh?kinds=ssl", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("unregistered kind: %d", w.Code)
	}

	w := a.do(t, http.MethodPost, "/api/v1/domains/"+d.ID+"/refresh", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: %d %s", w.Code, w.Body)
	}
	var resp struct {
		Domain models.DomainRecord         `json:"domain"`
		Logs   []models.MonitoringLogEntry `json:"logs"`
	}
	decode(t, w, &resp)
	if resp.Domain.DomainExpiry == nil || !resp.Domain.DomainExpiry.Equal(exp) || len(resp.Logs) != 1 {
		t.Fatalf("resp = %+v", resp)
	}

	var page models.GetLogsResponse
	decode(t, a.do(t, http.MethodGet, "/api/v1/logs?logType=domain_expiry&severity=info&limit=5", "", nil), &page)
	if page.Total != 1 || page.Page != 1 || page.TotalPages != 1 || len(page.Logs) != 1 {
		t.Fatalf("page = %+v", page)
	}
	decode(t, a.do(t, http.MethodGet, "/api/v1/logs?domain=nomatch", "", nil), &page)
	if page.Total != 0 || page.Logs == nil {
		t.Fatalf("empty page = %+v", page)
	}

	for _, q := range []string{"severity=loud", "logType=x", "alertSent=maybe", "page=one", "startDate=yesterday"} {
		if w := a.do(t, http.MethodGet, "/api/v1/logs?"+q, "", nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s: %d", q, w.Code)
		}
	}

	logPath := "/api/v1/logs/" + strconv.FormatUint(uint64(resp.Logs[0].ID), 10) + "/dispatches"
	w = a.do(t, http.MethodGet, logPath, "", nil)
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("dispatches: %d %s", w.Code, w.Body)
	}
	if w := a.do(t, http.MethodGet, logPath, "other", nil); w.Code != http.StatusNotFound {
		t.Fatalf("foreign dispatches: %d", w.Code)
	}
}

func TestRefreshAll(t *testing.T) {
	a := newTestAPI(t)
	if w := a.do(t, http.MethodPost, "/api/v1/domains/refresh", "", nil); w.Code != http.StatusAccepted {
		t.Fatalf("refresh all: %d", w.Code)
	}

	busy := NewRouter(&config.ServerConfig{}, NewHandler(nil, a.store, fakeRefresher{ok: false}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/domains/refresh", nil)
	w := httptest.NewRecorder()
	busy.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("busy refresh: %d", w.Code)
	}
}

func TestNotificationSettings(t *testing.T) {
	a := newTestAPI(t)

	var s models.NotificationSettings
	decode(t, a.do(t, http.MethodGet, "/api/v1/settings/notifications", "acct", nil), &s)
	if s.Owner != "acct" || !s.DomainExpiry.ThirtyDays || s.WebhookEnabled {
		t.Fatalf("defaults = %+v", s)
	}

	s.WebhookEnabled = true
	s.WebhookURL = "ftp://example.com"
	if w := a.do(t, http.MethodPut, "/api/v1/settings/notifications", "acct", s); w.Code != http.StatusBadRequest {
		t.Fatalf("bad url: %d", w.Code)
	}
	s.WebhookURL = "https://hooks.example.com/x"
	s.CertExpiry.OneDay = false
	s.Owner = "someone-else"
	if w := a.do(t, http.MethodPut, "/api/v1/settings/notifications", "acct", s); w.Code != http.StatusOK {
		t.Fatalf("save: %d %s", w.Code, w.Body)
	}

	var got models.NotificationSettings
	decode(t, a.do(t, http.MethodGet, "/api/v1/settings/notifications", "acct", nil), &got)
	if got.Owner != "acct" || !got.WebhookEnabled || got.WebhookURL != s.WebhookURL || got.CertExpiry.OneDay {
		t.Fatalf("saved = %+v", got)
	}

	bad := got
	bad.EmailEnabled = true
	bad.EmailAddress = "not an address"
	if w := a.do(t, http.MethodPut, "/api/v1/settings/notifications", "acct", bad); w.Code != http.StatusBadRequest {
		t.Fatalf("bad email: %d", w.Code)
	}
}

func TestRegistrars(t *testing.T) {
	a := newTestAPI(t)

	var schemas []struct {
		ID string `json:"id"`
	}
	decode(t, a.do(t, http.MethodGet, "/api/v1/registrars/schemas", "", nil), &schemas)
	if len(schemas) == 0 {
		t.Fatal("no schemas")
	}

	if w := a.do(t, http.MethodPost, "/api/v1/registrars", "", gin.H{"provider": "nosuch"}); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown provider: %d", w.Code)
	}
	if w := a.do(t, http.MethodPost, "/api/v1/registrars", "", gin.H{
		"provider":    "godaddy",
		"credentials": gin.H{"api_key": "k"},
	}); w.Code != http.StatusBadRequest {
		t.Fatalf("missing secret: %d", w.Code)
	}

	w := a.do(t, http.MethodPost, "/api/v1/registrars", "", gin.H{
		"provider":    "GoDaddy",
		"credentials": gin.H{"api_key": "k", "api_secret": "s3cret"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body)
	}
	if strings.Contains(w.Body.String(), "s3cret") {
		t.Fatal("secret leaked in response")
	}
	var created struct {
		ID          string         `json:"id"`
		Provider    string         `json:"provider"`
		DisplayName string         `json:"display_name"`
		Credentials map[string]any `json:"credentials"`
	}
	decode(t, w, &created)
	if created.Provider != "godaddy" || created.DisplayName != "GoDaddy" || created.Credentials["api_key"] != "k" {
		t.Fatalf("created = %+v", created)
	}

	list := a.do(t, http.MethodGet, "/api/v1/registrars", "", nil)
	if strings.Contains(list.Body.String(), "s3cret") || !strings.Contains(list.Body.String(), created.ID) {
		t.Fatalf("list = %s", list.Body)
	}

	if w := a.do(t, http.MethodDelete, "/api/v1/registrars/"+created.ID, "other", nil); w.Code != http.StatusNotFound {
		t.Fatalf("foreign delete: %d", w.Code)
	}
	if w := a.do(t, http.MethodDelete, "/api/v1/registrars/"+created.ID, "", nil); w.Code != http.StatusOK {
		t.Fatalf("delete: %d", w.Code)
	}
}

func TestDashboardAndMeta(t *testing.T) {
	a := newTestAPI(t)

	var stats models.MonitoringStats
	w := a.do(t, http.MethodGet, "/api/v1/dashboard/stats", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats: %d", w.Code)
	}
	decode(t, w, &stats)
	if stats.TotalDomains != 0 {
		t.Fatalf("stats = %+v", stats)
	}

	if w := a.do(t, http.MethodGet, "/api/v1/dashboard/expiring", "", nil); w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("expiring: %d %s", w.Code, w.Body)
	}

	var sev []struct {
		Key string `json:"key"`
	}
	decode(t, a.do(t, http.MethodGet, "/api/v1/severities", "", nil), &sev)
	if len(sev) != 6 || sev[0].Key != "unknown" || sev[5].Key != "expired" {
		t.Fatalf("severities = %+v", sev)
	}

	if err := a.store.Domains.Create(context.Background(), &models.DomainRecord{Owner: "other", Name: "example.org"}); err != nil {
		t.Fatal(err)
	}
	var health struct {
		Status  string     `json:"status"`
		Domains int64      `json:"domains"`
		LastRun *time.Time `json:"last_run"`
	}
	w = a.do(t, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz: %d", w.Code)
	}
	decode(t, w, &health)
	if health.Status != "ok" || health.Domains != 1 || health.LastRun != nil {
		t.Fatalf("healthz = %+v", health)
	}
	w = a.do(t, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatalf("metrics: %d", w.Code)
	}
}
