package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DomainStatus is the outcome of the most recent uptime check
type DomainStatus string

const (
	StatusOnline  DomainStatus = "online"
	StatusOffline DomainStatus = "offline"
	StatusUnknown DomainStatus = "unknown"
)

// DefaultOwner is used when a request does not name an account
const DefaultOwner = "default"

// DomainRecord represents one monitored domain
type DomainRecord struct {
	ID             string                      `gorm:"primaryKey;size:36" json:"id"`
	Owner          string                      `gorm:"uniqueIndex:idx_domains_owner_name;not null" json:"owner"`
	Name           string                      `gorm:"uniqueIndex:idx_domains_owner_name;not null" json:"domain"` // Fully-qualified domain name
	Registrar      string                      `json:"registrar"`                                                  // Free text, as reported by WHOIS or the user
	AutoRenew      bool                        `json:"auto_renew"`                                                 // Registrar-reported auto-renew flag
	DomainExpiry   *time.Time                  `json:"expiry_date,omitempty"`                                      // Absent until a successful WHOIS check
	CertExpiry     *time.Time                  `json:"ssl_expiry,omitempty"`                                       // Absent until a successful TLS check
	CertIssuer     string                      `json:"ssl_issuer"`
	SSLStatus      string                      `json:"ssl_status"`
	NameServers    datatypes.JSONSlice[string] `json:"name_servers"`
	LastWhoisCheck *time.Time                  `json:"last_whois_check,omitempty"` // Last successful WHOIS check
	LastSslCheck   *time.Time                  `json:"last_ssl_check,omitempty"`   // Last successful TLS check
	LastCheckedAt  *time.Time                  `json:"last_checked_at,omitempty"`  // Last attempted check of any kind
	Status         DomainStatus                `gorm:"default:unknown" json:"status"`
	IsActive       bool                        `gorm:"default:true" json:"is_active"` // Monitor enabled
	Version        int64                       `gorm:"not null;default:0" json:"-"`   // Compare-and-swap counter
	CreatedAt      time.Time                   `json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

func (DomainRecord) TableName() string { return "domains" }

// BeforeCreate assigns an opaque id when the caller left it empty
func (d *DomainRecord) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Owner == "" {
		d.Owner = DefaultOwner
	}
	if d.Status == "" {
		d.Status = StatusUnknown
	}
	return nil
}
