package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"domain-monitor/internal/database"
	"domain-monitor/internal/expiry"
	"domain-monitor/internal/metrics"
	"domain-monitor/internal/models"
	"domain-monitor/internal/monitoring"
	"domain-monitor/internal/registrar"
	"domain-monitor/internal/services"
)

// Refresher starts a full check in the background
type Refresher interface {
	Trigger() bool
}

// Handler holds service dependencies
type Handler struct {
	monitor   *services.MonitorService
	store     *database.Store
	refresher Refresher
}

// NewHandler creates a new API handler
func NewHandler(monitor *services.MonitorService, store *database.Store, refresher Refresher) *Handler {
	return &Handler{
		monitor:   monitor,
		store:     store,
		refresher: refresher,
	}
}

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, handler *Handler) {
	r.GET("/healthz", handler.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api/v1")
	{
		// Domain management
		api.GET("/domains", handler.ListDomains)
		api.POST("/domains", handler.CreateDomain)
		api.POST("/domains/import", handler.ImportDomains)
		api.POST("/domains/refresh", handler.RefreshAll)
		api.GET("/domains/:id", handler.GetDomain)
		api.PUT("/domains/:id", handler.UpdateDomain)
		api.DELETE("/domains/:id", handler.DeleteDomain)
		api.POST("/domains/:id/refresh", handler.RefreshDomain)

		// Dashboard statistics
		api.GET("/dashboard/stats", handler.GetStats)
		api.GET("/dashboard/expiring", handler.GetExpiring)

		// Monitoring logs
		api.GET("/logs", handler.ListLogs)
		api.GET("/logs/:id/dispatches", handler.ListDispatches)
		api.GET("/severities", handler.ListSeverities)

		// Notification settings
		api.GET("/settings/notifications", handler.GetNotificationSettings)
		api.PUT("/settings/notifications", handler.UpdateNotificationSettings)
		api.POST("/test/notification/:id", handler.TestNotification)

		// Registrar accounts
		api.GET("/registrars", handler.ListRegistrars)
		api.POST("/registrars", handler.CreateRegistrar)
		api.GET("/registrars/schemas", handler.ListRegistrarSchemas)
		api.DELETE("/registrars/:id", handler.DeleteRegistrar)
	}
}

// respondError maps service and storage errors onto HTTP statuses
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, database.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, database.ErrDuplicate), errors.Is(err, database.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, services.ErrInvalidDomain),
		errors.Is(err, services.ErrUnknownChecker),
		errors.Is(err, services.ErrChannelOff),
		errors.Is(err, registrar.ErrUnknownRegistrar):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNoNotifier):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		logrus.WithField("path", c.FullPath()).Errorf("Request failed: %v", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// Health reports whether the database answers, with the domain count
// and when the last full run finished
func (h *Handler) Health(c *gin.Context) {
	if err := h.store.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	n, err := h.store.Domains.Count(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "domains": n, "last_run": h.monitor.LastRun()})
}

// ListDomains retrieves all domains of the account
func (h *Handler) ListDomains(c *gin.Context) {
	domains, err := h.store.Domains.List(c.Request.Context(), owner(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, domains)
}

type domainRequest struct {
	Domain    string `json:"domain" binding:"required"`
	Registrar string `json:"registrar"`
	AutoRenew bool   `json:"auto_renew"`
}

// CreateDomain adds a new domain and checks it in the background
func (h *Handler) CreateDomain(c *gin.Context) {
	var req domainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	domain := &models.DomainRecord{
		Owner:     owner(c),
		Name:      req.Domain,
		Registrar: req.Registrar,
		AutoRenew: req.AutoRenew,
		IsActive:  true,
	}
	if err := h.monitor.AddDomain(c.Request.Context(), domain); err != nil {
		respondError(c, err)
		return
	}

	h.checkLater(domain)
	c.JSON(http.StatusCreated, domain)
}

// ImportDomains imports multiple domains. Names that are invalid or already
// monitored are reported and skipped.
func (h *Handler) ImportDomains(c *gin.Context) {
	var request struct {
		Domains []string `json:"domains" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, err.Error())
		return
	}

	imported := 0
	skipped := map[string]string{}
	for _, name := range request.Domains {
		domain := &models.DomainRecord{Owner: owner(c), Name: name, IsActive: true}
		if err := h.monitor.AddDomain(c.Request.Context(), domain); err != nil {
			skipped[name] = err.Error()
			continue
		}
		imported++
		h.checkLater(domain)
	}

	c.JSON(http.StatusOK, gin.H{
		"total":    len(request.Domains),
		"imported": imported,
		"skipped":  skipped,
	})
}

func (h *Handler) checkLater(d *models.DomainRecord) {
	if len(h.monitor.Kinds()) == 0 {
		return
	}
	id, name := d.ID, d.Name
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, _, err := h.monitor.CheckDomain(ctx, id); err != nil {
			logrus.WithField("domain", name).Warnf("Initial check failed: %v", err)
		}
	}()
}

// GetDomain retrieves a single domain
func (h *Handler) GetDomain(c *gin.Context) {
	domain, err := h.store.Domains.GetOwned(c.Request.Context(), owner(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, domain)
}

// UpdateDomain changes the user-editable fields of a domain
func (h *Handler) UpdateDomain(c *gin.Context) {
	var req struct {
		Registrar *string `json:"registrar"`
		AutoRenew *bool   `json:"auto_renew"`
		IsActive  *bool   `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	existing, err := h.store.Domains.GetOwned(ctx, owner(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	domain, err := h.store.Domains.Update(ctx, existing.ID, func(d *models.DomainRecord) error {
		if req.Registrar != nil {
			d.Registrar = *req.Registrar
		}
		if req.AutoRenew != nil {
			d.AutoRenew = *req.AutoRenew
		}
		if req.IsActive != nil {
			d.IsActive = *req.IsActive
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, domain)
}

// DeleteDomain removes a domain
func (h *Handler) DeleteDomain(c *gin.Context) {
	if err := h.store.Domains.Delete(c.Request.Context(), owner(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Domain deleted successfully"})
}

// RefreshDomain runs checks against one domain now. The optional kinds
// query parameter is a comma-separated subset of whois, ssl, dns, uptime.
func (h *Handler) RefreshDomain(c *gin.Context) {
	var kinds []monitoring.CheckKind
	if raw := c.Query("kinds"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			k, ok := monitoring.ParseKind(strings.TrimSpace(s))
			if !ok {
				badRequest(c, fmt.Sprintf("unknown check kind %q", s))
				return
			}
			kinds = append(kinds, k)
		}
	}

	ctx := c.Request.Context()
	existing, err := h.store.Domains.GetOwned(ctx, owner(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	domain, logs, err := h.monitor.CheckDomain(ctx, existing.ID, kinds...)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"domain": domain, "logs": logs})
}

// RefreshAll starts a full check of every active domain
func (h *Handler) RefreshAll(c *gin.Context) {
	if h.refresher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not running"})
		return
	}
	if !h.refresher.Trigger() {
		c.JSON(http.StatusConflict, gin.H{"error": "a check is already running"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Check started"})
}

// GetStats retrieves dashboard statistics
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.monitor.Stats(c.Request.Context(), owner(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetExpiring retrieves domains expiring soon
func (h *Handler) GetExpiring(c *gin.Context) {
	domains, err := h.monitor.Expiring(c.Request.Context(), owner(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if domains == nil {
		domains = []monitoring.ExpiringDomain{}
	}
	c.JSON(http.StatusOK, domains)
}

// ListLogs pages through the account's monitoring logs
func (h *Handler) ListLogs(c *gin.Context) {
	q, err := parseLogsQuery(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	resp, err := h.store.Logs.Query(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func parseLogsQuery(c *gin.Context) (models.GetLogsQuery, error) {
	q := models.GetLogsQuery{
		Owner:    owner(c),
		Domain:   c.Query("domain"),
		LogType:  models.LogType(c.Query("logType")),
		Severity: models.LogSeverity(c.Query("severity")),
	}
	switch q.LogType {
	case "", models.LogDomainExpiry, models.LogSSLExpiry, models.LogDomainStatus, models.LogMonitoringError:
	default:
		return q, fmt.Errorf("unknown log type %q", q.LogType)
	}
	switch q.Severity {
	case "", models.SeverityInfo, models.SeverityWarning, models.SeverityCritical, models.SeverityError:
	default:
		return q, fmt.Errorf("unknown severity %q", q.Severity)
	}
	if v := c.Query("alertSent"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return q, fmt.Errorf("alertSent: %w", err)
		}
		q.AlertSent = &b
	}
	for _, p := range []struct {
		key string
		dst *int
	}{{"page", &q.Page}, {"limit", &q.Limit}} {
		if v := c.Query(p.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return q, fmt.Errorf("%s: %w", p.key, err)
			}
			*p.dst = n
		}
	}
	var err error
	if q.StartDate, err = parseQueryTime(c.Query("startDate"), false); err != nil {
		return q, fmt.Errorf("startDate: %w", err)
	}
	if q.EndDate, err = parseQueryTime(c.Query("endDate"), true); err != nil {
		return q, fmt.Errorf("endDate: %w", err)
	}
	return q, nil
}

// parseQueryTime accepts RFC 3339 or a bare date. A bare end date covers
// the whole day.
func parseQueryTime(v string, endOfDay bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// ListDispatches shows the delivery records of one log entry
func (h *Handler) ListDispatches(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "Invalid log ID")
		return
	}
	ctx := c.Request.Context()
	entry, err := h.store.Logs.Get(ctx, uint(id))
	if err != nil {
		respondError(c, err)
		return
	}
	if entry.Owner != owner(c) {
		respondError(c, database.ErrNotFound)
		return
	}
	records, err := h.store.Dispatches.ListByLog(ctx, entry.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	if records == nil {
		records = []models.AlertDispatchRecord{}
	}
	c.JSON(http.StatusOK, records)
}

// ListSeverities returns how each expiry tier is presented
func (h *Handler) ListSeverities(c *gin.Context) {
	out := make([]expiry.Presentation, 0, len(expiry.All()))
	for _, s := range expiry.All() {
		out = append(out, s.Present())
	}
	c.JSON(http.StatusOK, out)
}

// GetNotificationSettings retrieves the account's notification settings
func (h *Handler) GetNotificationSettings(c *gin.Context) {
	settings, err := h.store.Settings.Get(c.Request.Context(), owner(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// UpdateNotificationSettings replaces the account's notification settings
func (h *Handler) UpdateNotificationSettings(c *gin.Context) {
	var settings models.NotificationSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		badRequest(c, err.Error())
		return
	}
	settings.Owner = owner(c)
	if err := validateSettings(settings); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.store.Settings.Save(c.Request.Context(), &settings); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func validateSettings(s models.NotificationSettings) error {
	if s.EmailEnabled {
		if _, err := mail.ParseAddress(s.EmailAddress); err != nil {
			return fmt.Errorf("email_address: %w", err)
		}
	}
	hooks := []struct {
		name    string
		enabled bool
		url     string
	}{
		{"webhook_url", s.WebhookEnabled, s.WebhookURL},
		{"slack_webhook_url", s.SlackEnabled, s.SlackWebhookURL},
	}
	for _, hk := range hooks {
		if !hk.enabled {
			continue
		}
		u, err := url.Parse(hk.url)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s: must be an http(s) URL", hk.name)
		}
	}
	return nil
}

// TestNotification manually triggers a notification for testing
func (h *Handler) TestNotification(c *gin.Context) {
	if err := h.monitor.TestNotification(c.Request.Context(), owner(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Test notification sent successfully"})
}

type registrarView struct {
	models.Registrar
	Credentials map[string]any `json:"credentials"`
}

func viewRegistrar(r models.Registrar) registrarView {
	return registrarView{Registrar: r, Credentials: registrar.Redact(r.Provider, r.Credentials)}
}

// ListRegistrars lists the account's registrar accounts with secrets masked
func (h *Handler) ListRegistrars(c *gin.Context) {
	regs, err := h.store.Registrars.List(c.Request.Context(), owner(c))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]registrarView, 0, len(regs))
	for _, r := range regs {
		out = append(out, viewRegistrar(r))
	}
	c.JSON(http.StatusOK, out)
}

// CreateRegistrar stores a registrar account after checking its credentials
// against the provider's schema
func (h *Handler) CreateRegistrar(c *gin.Context) {
	var req struct {
		Provider    string         `json:"provider" binding:"required"`
		DisplayName string         `json:"display_name"`
		Credentials map[string]any `json:"credentials"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	schema, ok := registrar.Lookup(req.Provider)
	if !ok {
		respondError(c, fmt.Errorf("%w: %s", registrar.ErrUnknownRegistrar, req.Provider))
		return
	}
	if err := registrar.Validate(schema.ID, req.Credentials); err != nil {
		badRequest(c, err.Error())
		return
	}

	reg := models.Registrar{
		Owner:       owner(c),
		Provider:    schema.ID,
		DisplayName: req.DisplayName,
		Credentials: req.Credentials,
	}
	if reg.DisplayName == "" {
		reg.DisplayName = schema.Name
	}
	if err := h.store.Registrars.Create(c.Request.Context(), &reg); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewRegistrar(reg))
}

// ListRegistrarSchemas lists the credential fields each provider needs
func (h *Handler) ListRegistrarSchemas(c *gin.Context) {
	c.JSON(http.StatusOK, registrar.All())
}

// DeleteRegistrar removes a registrar account
func (h *Handler) DeleteRegistrar(c *gin.Context) {
	if err := h.store.Registrars.Delete(c.Request.Context(), owner(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Registrar deleted successfully"})
}
