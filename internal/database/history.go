package database

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"domain-monitor/internal/alerting"
	"domain-monitor/internal/models"
)

// HistoryRepository persists which alerts already fired
type HistoryRepository struct {
	db *gorm.DB
}

// Load returns the firing history of one domain
func (h *HistoryRepository) Load(ctx context.Context, domainID string) (alerting.MemoryHistory, error) {
	var rows []models.FiredAlert
	if err := h.db.WithContext(ctx).Where("domain_id = ?", domainID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(alerting.MemoryHistory, len(rows))
	for _, r := range rows {
		out.Add(alerting.HistoryKey{
			DomainID:     r.DomainID,
			AlertType:    alerting.AlertType(r.AlertType),
			ThresholdDay: r.ThresholdDay,
			Expiry:       r.ExpiryUnix,
		})
	}
	return out, nil
}

// Remember records a firing; remembering the same key twice is a no-op
func (h *HistoryRepository) Remember(ctx context.Context, key alerting.HistoryKey, at time.Time) error {
	row := models.FiredAlert{
		DomainID:     key.DomainID,
		AlertType:    string(key.AlertType),
		ThresholdDay: key.ThresholdDay,
		ExpiryUnix:   key.Expiry,
		FiredAt:      at,
	}
	return h.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

// Forget drops a domain's history
func (h *HistoryRepository) Forget(ctx context.Context, domainID string) error {
	return h.db.WithContext(ctx).Where("domain_id = ?", domainID).Delete(&models.FiredAlert{}).Error
}
