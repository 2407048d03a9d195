package database

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"domain-monitor/internal/models"
)

// DispatchRepository persists AlertDispatchRecord rows, one per (log, channel)
type DispatchRepository struct {
	db *gorm.DB
}

// Open inserts r unless a record for the same (log, channel) pair exists,
// in which case r is overwritten with the stored record. The returned flag
// reports whether r was newly created.
func (d *DispatchRepository) Open(ctx context.Context, r *models.AlertDispatchRecord) (bool, error) {
	toUTC(r)
	res := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(r)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}
	var existing models.AlertDispatchRecord
	if err := d.db.WithContext(ctx).
		Where("log_id = ? AND channel = ?", r.LogID, r.Channel).
		First(&existing).Error; err != nil {
		return false, notFound(err)
	}
	*r = existing
	return false, nil
}

// Save writes back the state of an existing record
func (d *DispatchRepository) Save(ctx context.Context, r *models.AlertDispatchRecord) error {
	toUTC(r)
	return d.db.WithContext(ctx).Save(r).Error
}

// Due returns retry records whose next attempt is at or before now, oldest
// first. A non-positive limit returns all of them.
func (d *DispatchRepository) Due(ctx context.Context, now time.Time, limit int) ([]models.AlertDispatchRecord, error) {
	tx := d.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", models.DispatchRetry, now.UTC()).
		Order("next_attempt_at ASC, id ASC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var out []models.AlertDispatchRecord
	err := tx.Find(&out).Error
	return out, err
}

// ListByLog returns the dispatch records created for one log entry
func (d *DispatchRepository) ListByLog(ctx context.Context, logID uint) ([]models.AlertDispatchRecord, error) {
	var out []models.AlertDispatchRecord
	err := d.db.WithContext(ctx).Where("log_id = ?", logID).Order("id ASC").Find(&out).Error
	return out, err
}

// toUTC normalizes the timestamps Due compares as text
func toUTC(r *models.AlertDispatchRecord) {
	if r.NextAttemptAt != nil {
		t := r.NextAttemptAt.UTC()
		r.NextAttemptAt = &t
	}
	if r.SentAt != nil {
		t := r.SentAt.UTC()
		r.SentAt = &t
	}
}
