package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"artvault/internal/config"
	"artvault/internal/middleware"

	"gorm.io/gorm"
)

// Schema modes selected by DB_SCHEMA_MODE.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaStatus is what ApplySchema would do right now.
type SchemaStatus struct {
	Mode               string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	AppliedVersions    []int
	PendingMigrations  []Migration
}

// schemaPlan says which of the two schema mechanisms run.
type schemaPlan struct {
	sql  bool // embedded PostgreSQL scripts
	auto bool // gorm AutoMigrate over PersistentModels
}

func schemaMode(cfg *config.Config) string {
	if m := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode)); m != "" {
		return m
	}
	return SchemaModeHybrid
}

func deployedEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

// planSchema picks the mechanisms for cfg on dialect. The SQL scripts target
// PostgreSQL; sqlite always AutoMigrates. Deployed environments never
// AutoMigrate in hybrid mode, and refuse auto mode unless destructive
// migrations were explicitly allowed.
func planSchema(cfg *config.Config, dialect string) (schemaPlan, error) {
	mode := schemaMode(cfg)
	switch mode {
	case SchemaModeHybrid, SchemaModeSQL, SchemaModeAuto:
	default:
		return schemaPlan{}, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", mode)
	}
	if dialect != "postgres" {
		return schemaPlan{auto: true}, nil
	}

	deployed := deployedEnv(cfg.Env)
	switch mode {
	case SchemaModeSQL:
		return schemaPlan{sql: true}, nil
	case SchemaModeAuto:
		if deployed && !cfg.DBAutoMigrateAllowDestructive {
			return schemaPlan{}, fmt.Errorf("DB_SCHEMA_MODE=auto in %s needs DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		return schemaPlan{auto: true}, nil
	}
	return schemaPlan{sql: true, auto: !deployed}, nil
}

// ApplySchema brings the posts, exhibitions, reactions and comments tables
// up to date according to DB_SCHEMA_MODE.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	dialect := db.Dialector.Name()
	plan, err := planSchema(cfg, dialect)
	if err != nil {
		return err
	}

	if plan.sql {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("sql migrations: %w", err)
		}
	}
	if plan.auto {
		middleware.Logger.InfoContext(ctx, "auto-migrating models",
			slog.String("mode", schemaMode(cfg)), slog.String("dialect", dialect))
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	return nil
}

// GetSchemaStatus reports the plan for cfg and, when SQL scripts are in
// play, which of them are still pending.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := planSchema(cfg, db.Dialector.Name())
	if err != nil {
		return nil, err
	}

	st := &SchemaStatus{
		Mode:               schemaMode(cfg),
		Environment:        cfg.Env,
		WillRunSQL:         plan.sql,
		WillRunAutoMigrate: plan.auto,
	}
	if !plan.sql {
		return st, nil
	}

	if st.AppliedVersions, err = NewMigrationStore(db).AppliedVersions(ctx); err != nil {
		return nil, err
	}
	st.PendingMigrations = pending(GetMigrations(), st.AppliedVersions)
	return st, nil
}
