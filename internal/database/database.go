// Package database opens the SQL store (postgres or sqlite) and owns its
// schema: embedded migrations, AutoMigrate and the startup policy between them.
package database

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"artvault/internal/config"
	"artvault/internal/middleware"
	"artvault/internal/observability"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	slowQuery     = 200 * time.Millisecond
	schemaTimeout = 2 * time.Minute
)

// queryLogger sends GORM output to the request-scoped slog logger, so SQL
// errors and slow queries carry the request and trace IDs.
type queryLogger struct {
	log   *slog.Logger
	level logger.LogLevel
	slow  time.Duration
}

func newQueryLogger() *queryLogger {
	return &queryLogger{log: middleware.Logger, level: logger.Warn, slow: slowQuery}
}

func (l *queryLogger) LogMode(level logger.LogLevel) logger.Interface {
	next := *l
	next.level = level
	return &next
}

func (l *queryLogger) emit(ctx context.Context, at logger.LogLevel, lvl slog.Level, msg string, args []interface{}) {
	if l.level >= at {
		l.log.Log(ctx, lvl, fmt.Sprintf(msg, args...))
	}
}

func (l *queryLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	l.emit(ctx, logger.Info, slog.LevelInfo, msg, args)
}

func (l *queryLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	l.emit(ctx, logger.Warn, slog.LevelWarn, msg, args)
}

func (l *queryLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	l.emit(ctx, logger.Error, slog.LevelError, msg, args)
}

// Trace logs failed statements at error and slow ones at warn. A missing
// record is not a failure.
func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	took := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)

	var lvl slog.Level
	var msg string
	switch {
	case failed && l.level >= logger.Error:
		lvl, msg = slog.LevelError, "sql failed"
	case l.slow > 0 && took > l.slow && l.level >= logger.Warn:
		lvl, msg = slog.LevelWarn, "sql slow"
	case l.level >= logger.Info:
		lvl, msg = slog.LevelInfo, "sql"
	default:
		return
	}

	stmt, rows := fc()
	attrs := []slog.Attr{
		slog.String("sql", stmt),
		slog.Int64("rows", rows),
		slog.Float64("took_ms", float64(took.Microseconds())/1000),
	}
	if failed {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.log.LogAttrs(ctx, lvl, msg, attrs...)
}

func postgresDSN(host, port, user, password, name, sslMode string) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, name, cmp.Or(sslMode, "disable"))
}

func dialector(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres, "":
		return postgres.Open(postgresDSN(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)), nil
	case config.DriverSQLite:
		// Foreign keys are off by default in SQLite.
		return sqlite.Open(cfg.SQLitePath + "?_foreign_keys=on"), nil
	default:
		return nil, fmt.Errorf("DB_DRIVER %q is not a SQL driver", cfg.DBDriver)
	}
}

// ConnectOptions control what Connect does after opening the database.
type ConnectOptions struct {
	ApplySchema bool
}

// Connect opens the SQL database selected by DB_DRIVER, applies the schema
// policy and returns the gorm DB instance.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	return ConnectWithOptions(cfg, ConnectOptions{ApplySchema: true})
}

// ConnectWithOptions is Connect with the schema step optional. The migrate
// command uses it to inspect or change the schema itself.
func ConnectWithOptions(cfg *config.Config, opts ConnectOptions) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(d, &gorm.Config{Logger: newQueryLogger()})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}
	if err := configurePool(db, cfg); err != nil {
		return nil, err
	}
	if err := observability.RegisterDatabaseMetrics(db); err != nil {
		return nil, fmt.Errorf("register database metrics: %w", err)
	}
	middleware.Logger.Info("database connected", slog.String("driver", db.Dialector.Name()))

	if !opts.ApplySchema {
		return db, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()
	if err := ApplySchema(ctx, db, cfg); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}

// ConnectReplica opens the read replica configured by DB_READ_HOST. It returns
// nil without error when no replica is configured.
func ConnectReplica(cfg *config.Config) (*gorm.DB, error) {
	if cfg.DBReadHost == "" || cfg.DBDriver != config.DriverPostgres {
		return nil, nil
	}
	dsn := postgresDSN(cfg.DBReadHost, cfg.DBReadPort, cfg.DBReadUser, cfg.DBReadPassword, cfg.DBName, cfg.DBSSLMode)
	replica, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: newQueryLogger()})
	if err != nil {
		return nil, fmt.Errorf("open read replica: %w", err)
	}
	if err := configurePool(replica, cfg); err != nil {
		return nil, err
	}
	middleware.Logger.Info("Read replica connected", slog.String("host", cfg.DBReadHost))
	return replica, nil
}

func configurePool(db *gorm.DB, cfg *config.Config) error {
	pool, err := db.DB()
	if err != nil {
		return fmt.Errorf("connection pool: %w", err)
	}
	if cfg.DBMaxOpenConns > 0 {
		pool.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		pool.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
	if cfg.DBConnMaxLifetimeMinutes > 0 {
		pool.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetimeMinutes) * time.Minute)
	}
	return nil
}

// IsPostgres reports whether db talks to PostgreSQL.
func IsPostgres(db *gorm.DB) bool {
	return db != nil && db.Dialector.Name() == "postgres"
}
