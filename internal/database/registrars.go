package database

import (
	"context"

	"gorm.io/gorm"

	"domain-monitor/internal/models"
)

// RegistrarRepository persists the registrar accounts users configure
type RegistrarRepository struct {
	db *gorm.DB
}

func (r *RegistrarRepository) Create(ctx context.Context, reg *models.Registrar) error {
	return r.db.WithContext(ctx).Create(reg).Error
}

func (r *RegistrarRepository) List(ctx context.Context, owner string) ([]models.Registrar, error) {
	var out []models.Registrar
	err := r.db.WithContext(ctx).Where("owner = ?", owner).Order("created_at ASC").Find(&out).Error
	return out, err
}

func (r *RegistrarRepository) Get(ctx context.Context, owner, id string) (*models.Registrar, error) {
	var reg models.Registrar
	if err := r.db.WithContext(ctx).First(&reg, "id = ? AND owner = ?", id, owner).Error; err != nil {
		return nil, notFound(err)
	}
	return &reg, nil
}

func (r *RegistrarRepository) Delete(ctx context.Context, owner, id string) error {
	res := r.db.WithContext(ctx).Where("id = ? AND owner = ?", id, owner).Delete(&models.Registrar{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
