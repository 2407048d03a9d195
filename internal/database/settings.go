package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"domain-monitor/internal/models"
)

// SettingsRepository persists per-account notification settings
type SettingsRepository struct {
	db *gorm.DB
}

// Get returns the owner's settings, or the defaults when none were saved
func (r *SettingsRepository) Get(ctx context.Context, owner string) (models.NotificationSettings, error) {
	var s models.NotificationSettings
	err := r.db.WithContext(ctx).First(&s, "owner = ?", owner).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefaultSettings(owner), nil
	}
	return s, err
}

// Save replaces the owner's settings
func (r *SettingsRepository) Save(ctx context.Context, s *models.NotificationSettings) error {
	s.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner"}},
		UpdateAll: true,
	}).Create(s).Error
}
