package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"go-firstresponder/types"
)

// SQLConfig selects the SQL backend.
type SQLConfig struct {
	Type        string // "sqlite" or "postgres"
	SQLitePath  string
	PostgresDSN string
	LogLevel    logger.LogLevel
}

// ParseLogLevel maps a config level name to a gorm log level.
func ParseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "info":
		return logger.Info
	case "warn", "warning":
		return logger.Warn
	case "error":
		return logger.Error
	default:
		return logger.Silent
	}
}

// Connect opens a gorm connection for the configured backend.
func Connect(cfg SQLConfig) (*gorm.DB, error) {
	if cfg.LogLevel == 0 {
		cfg.LogLevel = logger.Silent
	}
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(cfg.LogLevel),
	}

	switch cfg.Type {
	case "sqlite", "":
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
		gdb, err := gorm.Open(sqlite.Open(cfg.SQLitePath), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}
		// SQLite allows a single writer.
		sqlDB.SetMaxOpenConns(1)
		return gdb, nil

	case "postgres":
		gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return gdb, nil

	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// SQLStore is a ReportStore on top of gorm.
type SQLStore struct {
	db *gorm.DB
	// mu serializes step assignment within this process; the row lock on
	// the starter covers other processes on databases that support it.
	mu sync.Mutex
}

// NewSQLStore migrates the schema and returns the store.
func NewSQLStore(gdb *gorm.DB) (*SQLStore, error) {
	if err := gdb.AutoMigrate(&types.EmergencyReport{}); err != nil {
		return nil, fmt.Errorf("failed to migrate reports: %w", err)
	}
	return &SQLStore{db: gdb}, nil
}

func (s *SQLStore) Create(ctx context.Context, r *types.EmergencyReport) error {
	prepareStarter(r)
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

func (s *SQLStore) CreateFollowUp(ctx context.Context, parentID string, r *types.EmergencyReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parent types.EmergencyReport
		if err := tx.First(&parent, "id = ?", parentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("parent %s: %w", parentID, ErrNotFound)
			}
			return fmt.Errorf("failed to load parent report: %w", err)
		}

		var starter types.EmergencyReport
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&starter, "id = ?", starterOf(&parent)).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("starter %s: %w", starterOf(&parent), ErrNotFound)
			}
			return fmt.Errorf("failed to lock starter report: %w", err)
		}

		var followUps int64
		if err := tx.Model(&types.EmergencyReport{}).Where("parent_id = ?", starter.ID).Count(&followUps).Error; err != nil {
			return fmt.Errorf("failed to count follow-ups: %w", err)
		}

		prepareFollowUp(r, starter.ID, int(followUps)+2)
		if err := tx.Create(r).Error; err != nil {
			return fmt.Errorf("failed to create follow-up report: %w", err)
		}
		return nil
	})
}

func (s *SQLStore) Update(ctx context.Context, r *types.EmergencyReport) error {
	res := s.db.WithContext(ctx).Model(&types.EmergencyReport{}).Where("id = ?", r.ID).Select("*").Updates(r)
	if res.Error != nil {
		return fmt.Errorf("failed to update report %s: %w", r.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update %s: %w", r.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) Revise(ctx context.Context, id string, rev StarterRevision) error {
	cols := map[string]any{}
	if rev.Severity.Valid() {
		cols["severity"] = rev.Severity
	}
	if rev.Category != "" {
		cols["category"] = rev.Category
	}
	if rev.Complete {
		cols["conversation_status"] = types.Completed
	}
	if len(cols) == 0 {
		return nil
	}

	res := s.db.WithContext(ctx).Model(&types.EmergencyReport{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return fmt.Errorf("failed to revise report %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("revise %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*types.EmergencyReport, error) {
	var r types.EmergencyReport
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("report %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get report %s: %w", id, err)
	}
	return &r, nil
}

func (s *SQLStore) ListByParent(ctx context.Context, starterID string) ([]types.EmergencyReport, error) {
	var out []types.EmergencyReport
	err := s.db.WithContext(ctx).
		Where("parent_id = ?", starterID).
		Order("step ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list follow-ups of %s: %w", starterID, err)
	}
	return out, nil
}

func (s *SQLStore) Recent(ctx context.Context, since time.Time, limit int) ([]types.EmergencyReport, error) {
	q := s.db.WithContext(ctx).
		Where("received_at >= ?", since.UTC()).
		Order("received_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []types.EmergencyReport
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list recent reports: %w", err)
	}
	return out, nil
}

// Ping checks if the database connection is alive.
func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}
