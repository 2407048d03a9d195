package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"domain-monitor/internal/config"
	"domain-monitor/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
	ErrConflict  = errors.New("concurrent update conflict")
)

// Store owns the database connection and hands out repositories
type Store struct {
	db *gorm.DB

	Domains    *DomainRepository
	Logs       *LogRepository
	Settings   *SettingsRepository
	Dispatches *DispatchRepository
	History    *HistoryRepository
	Registrars *RegistrarRepository
}

// Connect opens the configured database and migrates the schema
func Connect(cfg *config.DatabaseConfig) (*Store, error) {
	switch cfg.Type {
	case "sqlite", "":
		if cfg.Path != ":memory:" && !strings.HasPrefix(cfg.Path, "file:") {
			if dir := filepath.Dir(cfg.Path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("failed to create database directory: %w", err)
				}
			}
		}

		// Use pure Go SQLite driver (modernc.org/sqlite)
		sqlDB, err := sql.Open("sqlite", cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		// A single connection serialises writers and keeps :memory: databases alive
		sqlDB.SetMaxOpenConns(1)

		db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to initialize GORM: %w", err)
		}

		store := NewStore(db)
		if err := store.Migrate(); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// NewStore wraps an open gorm handle
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:         db,
		Domains:    &DomainRepository{db: db},
		Logs:       &LogRepository{db: db},
		Settings:   &SettingsRepository{db: db},
		Dispatches: &DispatchRepository{db: db},
		History:    &HistoryRepository{db: db},
		Registrars: &RegistrarRepository{db: db},
	}
}

// Migrate creates or updates every table
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(
		&models.DomainRecord{},
		&models.MonitoringLogEntry{},
		&models.NotificationSettings{},
		&models.AlertDispatchRecord{},
		&models.FiredAlert{},
		&models.Registrar{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Ping checks the connection is usable
func (s *Store) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close releases the underlying connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	return err != nil && (errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed"))
}
