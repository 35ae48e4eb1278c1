package database

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"artvault/internal/middleware"

	"gorm.io/gorm"
)

// MigrationLog is one row of migration_logs, written when a script is applied.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	AppliedAt time.Time `gorm:"autoCreateTime;index"`
}

func (MigrationLog) TableName() string { return "migration_logs" }

// MigrationStore records which migrations a database has seen.
type MigrationStore interface {
	AppliedVersions(ctx context.Context) ([]int, error)
	Apply(ctx context.Context, m Migration) error
	Revert(ctx context.Context, m Migration) error
}

type gormMigrationStore struct {
	db *gorm.DB
}

// NewMigrationStore returns a MigrationStore over db's migration_logs table.
func NewMigrationStore(db *gorm.DB) MigrationStore {
	return &gormMigrationStore{db: db}
}

func (s *gormMigrationStore) AppliedVersions(ctx context.Context) ([]int, error) {
	versions := []int{}
	if !s.db.Migrator().HasTable(&MigrationLog{}) {
		return versions, nil
	}
	err := s.db.WithContext(ctx).Model(&MigrationLog{}).Order("version").Pluck("version", &versions).Error
	if err != nil {
		return nil, fmt.Errorf("read migration_logs: %w", err)
	}
	return versions, nil
}

// Apply runs the up script and logs it atomically.
func (s *gormMigrationStore) Apply(ctx context.Context, m Migration) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.UpScript).Error; err != nil {
			return fmt.Errorf("apply %s: %w", m.String(), err)
		}
		return tx.Create(&MigrationLog{Version: m.Version, Name: m.Name}).Error
	})
}

// Revert runs the down script and drops its log row atomically.
func (s *gormMigrationStore) Revert(ctx context.Context, m Migration) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.DownScript).Error; err != nil {
			return fmt.Errorf("revert %s: %w", m.String(), err)
		}
		return tx.Delete(&MigrationLog{}, "version = ?", m.Version).Error
	})
}

// RunMigrations applies each embedded migration the database has not seen,
// oldest first. A database that has applied versions this build does not
// know about is refused.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&MigrationLog{}); err != nil {
		return fmt.Errorf("create migration_logs: %w", err)
	}

	store := NewMigrationStore(db)
	applied, err := store.AppliedVersions(ctx)
	if err != nil {
		return err
	}
	if err := validateAppliedVersions(applied, migrations); err != nil {
		return err
	}

	for _, m := range pending(migrations, applied) {
		if err := store.Apply(ctx, m); err != nil {
			return err
		}
		middleware.Logger.InfoContext(ctx, "migration applied", slog.String("migration", m.String()))
	}
	return nil
}

func validateAppliedVersions(applied []int, registered []Migration) error {
	var unknown []string
	for _, v := range slices.Sorted(slices.Values(applied)) {
		if !slices.ContainsFunc(registered, func(m Migration) bool { return m.Version == v }) {
			unknown = append(unknown, fmt.Sprintf("%06d", v))
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("database has migrations this build does not know: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// RollbackMigration reverts one applied migration by version.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	m := GetMigrationByVersion(version)
	if m == nil {
		return fmt.Errorf("no migration with version %d", version)
	}

	store := NewMigrationStore(db)
	applied, err := store.AppliedVersions(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(applied, version) {
		return fmt.Errorf("migration %s is not applied", m.String())
	}
	if err := store.Revert(ctx, *m); err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "migration reverted", slog.String("migration", m.String()))
	return nil
}
