package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Registrar is a registrar account configured by a user
type Registrar struct {
	ID          string            `gorm:"primaryKey;size:36" json:"id"`
	Owner       string            `gorm:"index;not null" json:"owner"`
	Provider    string            `gorm:"not null" json:"provider"` // Key into the registrar schema table
	DisplayName string            `json:"display_name"`
	Credentials datatypes.JSONMap `json:"-"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (Registrar) TableName() string { return "registrars" }

func (r *Registrar) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Owner == "" {
		r.Owner = DefaultOwner
	}
	return nil
}
