package database

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"domain-monitor/internal/models"
)

// LogRepository persists the append-only monitoring log
type LogRepository struct {
	db *gorm.DB
}

// likeEscaper escapes LIKE wildcards; patterns use ESCAPE '\'
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Append inserts a new entry and fills in its id. CreatedAt is stored in
// UTC so that the text comparisons in Query and Recent order instants.
func (r *LogRepository) Append(ctx context.Context, e *models.MonitoringLogEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *LogRepository) Get(ctx context.Context, id uint) (*models.MonitoringLogEntry, error) {
	var e models.MonitoringLogEntry
	if err := r.db.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

// MarkAlertSent flips alert_sent from false to true. It is the only
// mutation a log entry ever receives; calling it again is a no-op.
func (r *LogRepository) MarkAlertSent(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.MonitoringLogEntry{}).
		Where("id = ? AND alert_sent = ?", id, false).
		Update("alert_sent", true).Error
}

// Query filters and paginates entries the same way monitoring.Query does
func (r *LogRepository) Query(ctx context.Context, q models.GetLogsQuery) (models.GetLogsResponse, error) {
	q = q.Normalized()
	filtered := func() *gorm.DB {
		tx := r.db.WithContext(ctx).Model(&models.MonitoringLogEntry{})
		if q.Owner != "" {
			tx = tx.Where("owner = ?", q.Owner)
		}
		if q.Domain != "" {
			tx = tx.Where(`LOWER(domain) LIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(strings.ToLower(q.Domain))+"%")
		}
		if q.LogType != "" {
			tx = tx.Where("log_type = ?", q.LogType)
		}
		if q.Severity != "" {
			tx = tx.Where("severity = ?", q.Severity)
		}
		if q.AlertSent != nil {
			tx = tx.Where("alert_sent = ?", *q.AlertSent)
		}
		if q.StartDate != nil {
			tx = tx.Where("created_at >= ?", q.StartDate.UTC())
		}
		if q.EndDate != nil {
			tx = tx.Where("created_at <= ?", q.EndDate.UTC())
		}
		return tx
	}

	resp := models.GetLogsResponse{Logs: []models.MonitoringLogEntry{}, Page: q.Page}
	if err := filtered().Count(&resp.Total).Error; err != nil {
		return resp, err
	}
	err := filtered().
		Order("created_at DESC").
		Order("id DESC").
		Offset(q.Offset()).
		Limit(q.Limit).
		Find(&resp.Logs).Error
	if err != nil {
		return resp, err
	}
	resp.TotalPages = models.TotalPages(resp.Total, q.Limit)
	return resp, nil
}

// Recent returns the owner's entries created at or after since (all of them
// when since is nil), optionally restricted to one severity
func (r *LogRepository) Recent(ctx context.Context, owner string, since *time.Time, severity models.LogSeverity) ([]models.MonitoringLogEntry, error) {
	tx := r.db.WithContext(ctx).Where("owner = ?", owner)
	if since != nil {
		tx = tx.Where("created_at >= ?", since.UTC())
	}
	if severity != "" {
		tx = tx.Where("severity = ?", severity)
	}
	var logs []models.MonitoringLogEntry
	err := tx.Order("created_at DESC").Find(&logs).Error
	return logs, err
}

// LastCreated returns the time of the newest entry, or nil for an empty log
func (r *LogRepository) LastCreated(ctx context.Context) (*time.Time, error) {
	var e models.MonitoringLogEntry
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(1).Find(&e).Error
	if err != nil || e.ID == 0 {
		return nil, err
	}
	return &e.CreatedAt, nil
}
