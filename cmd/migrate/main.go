// Command migrate manages the ArtVault SQL schema (postgres or sqlite).
//
//	migrate up            apply pending SQL migrations
//	migrate auto          run gorm AutoMigrate over the artwork models
//	migrate status        list applied and pending migrations
//	migrate down VERSION  roll back one migration
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"artvault/internal/config"
	"artvault/internal/database"
	"artvault/internal/middleware"

	"gorm.io/gorm"
)

type command func(ctx context.Context, db *gorm.DB, cfg *config.Config, args []string) error

var commands = map[string]command{
	"up":     migrateUp,
	"auto":   autoMigrate,
	"status": printStatus,
	"down":   rollback,
}

var errUsage = errors.New("usage: migrate <up|auto|status|down VERSION>")

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("migrate: %v", err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, ok := commands[strings.ToLower(args[0])]
	if !ok {
		return errUsage
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	middleware.ConfigureLogger(cfg.Env, cfg.LogLevel)
	if cfg.DBDriver == config.DriverMongo {
		return errors.New("DB_DRIVER=mongo keeps no SQL schema; its indexes are created on connect")
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect %s: %w", cfg.DBDriver, err)
	}
	return cmd(context.Background(), db, cfg, args[1:])
}

func migrateUp(ctx context.Context, db *gorm.DB, _ *config.Config, _ []string) error {
	if err := database.RunMigrations(ctx, db); err != nil {
		return err
	}
	log.Println("migrations applied")
	return nil
}

func autoMigrate(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	cfg.DBSchemaMode = database.SchemaModeAuto
	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		return err
	}
	log.Println("models auto-migrated")
	return nil
}

func printStatus(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	st, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("driver   %s\nmode     %s (env %s)\napplied  %d\npending  %d\n",
		cfg.DBDriver, st.Mode, st.Environment, len(st.AppliedVersions), len(st.PendingMigrations))
	for _, m := range st.PendingMigrations {
		fmt.Printf("  - %s\n", m.String())
	}
	if !st.WillRunSQL && !st.WillRunAutoMigrate {
		fmt.Println("startup will not touch the schema in this mode")
	}
	return nil
}

func rollback(ctx context.Context, db *gorm.DB, _ *config.Config, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	version, err := strconv.Atoi(args[0])
	if err != nil || version <= 0 {
		return fmt.Errorf("version must be a positive number, got %q", args[0])
	}
	if err := database.RollbackMigration(ctx, db, version); err != nil {
		return err
	}
	log.Printf("rolled back migration %d", version)
	return nil
}
