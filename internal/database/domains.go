package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"domain-monitor/internal/models"
)

// maxUpdateAttempts bounds compare-and-swap retries in DomainRepository.Update
const maxUpdateAttempts = 5

// DomainRepository persists DomainRecord rows
type DomainRepository struct {
	db *gorm.DB
}

// Create inserts d. A domain name already monitored by the same owner
// yields ErrDuplicate.
func (r *DomainRepository) Create(ctx context.Context, d *models.DomainRecord) error {
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", d.Name, ErrDuplicate)
		}
		return err
	}
	return nil
}

func (r *DomainRepository) Get(ctx context.Context, id string) (*models.DomainRecord, error) {
	var d models.DomainRecord
	if err := r.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

// GetOwned is Get restricted to one owner's domains
func (r *DomainRepository) GetOwned(ctx context.Context, owner, id string) (*models.DomainRecord, error) {
	var d models.DomainRecord
	if err := r.db.WithContext(ctx).First(&d, "id = ? AND owner = ?", id, owner).Error; err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

// List returns the owner's domains, soonest domain expiry first
func (r *DomainRepository) List(ctx context.Context, owner string) ([]models.DomainRecord, error) {
	var domains []models.DomainRecord
	err := r.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("domain_expiry IS NULL, domain_expiry ASC, name ASC").
		Find(&domains).Error
	return domains, err
}

// ListActive returns every domain with monitoring enabled, across owners
func (r *DomainRepository) ListActive(ctx context.Context) ([]models.DomainRecord, error) {
	var domains []models.DomainRecord
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("created_at ASC").Find(&domains).Error
	return domains, err
}

// Update applies fn to the current row and writes it back only if nobody
// else wrote the row in between. Conflicting writers re-read and re-apply.
func (r *DomainRepository) Update(ctx context.Context, id string, fn func(*models.DomainRecord) error) (*models.DomainRecord, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		cur, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		next := *cur
		if err := fn(&next); err != nil {
			return nil, err
		}
		next.ID = cur.ID
		next.Owner = cur.Owner
		next.CreatedAt = cur.CreatedAt
		next.Version = cur.Version + 1
		next.UpdatedAt = time.Now()

		res := r.db.WithContext(ctx).
			Model(&models.DomainRecord{}).
			Where("id = ? AND version = ?", id, cur.Version).
			Select("*").
			Updates(&next)
		if res.Error != nil {
			if isUniqueViolation(res.Error) {
				return nil, fmt.Errorf("%s: %w", next.Name, ErrDuplicate)
			}
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			return &next, nil
		}
	}
	return nil, fmt.Errorf("domain %s: %w", id, ErrConflict)
}

// Delete hard-deletes the owner's domain together with its alert history
func (r *DomainRepository) Delete(ctx context.Context, owner, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND owner = ?", id, owner).Delete(&models.DomainRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return (&HistoryRepository{db: tx}).Forget(ctx, id)
	})
}

// Count returns how many domains are stored across all owners
func (r *DomainRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.DomainRecord{}).Count(&n).Error
	return n, err
}
