package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"artvault/internal/cache"
	"artvault/internal/config"
	"artvault/internal/database"
	"artvault/internal/models"
	"artvault/internal/repository"
	"artvault/internal/repository/mongostore"
	"artvault/internal/seed"
	"artvault/internal/storage"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// Options control runtime initialization behavior.
type Options struct {
	// Seed runs the demo seeder after the store is ready.
	Seed bool
}

// Runtime holds the backing services a Server is built from.
type Runtime struct {
	Store   *repository.Store
	Redis   *redis.Client
	Objects storage.ObjectStore
}

// InitRuntime opens the store selected by DB_DRIVER, connects Redis and the
// object store, and optionally runs seeding.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	r, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		log.Printf("redis unavailable, continuing without cache or realtime fan-out: %v", err)
	}
	cache.SetClient(r)

	objects, err := storage.New(cfg)
	if err != nil {
		_ = store.Close(ctx)
		return nil, fmt.Errorf("object storage init failed: %w", err)
	}

	if err := ensureDevRootAdmin(ctx, cfg, store.Users); err != nil {
		_ = store.Close(ctx)
		return nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	if opts.Seed {
		if _, err := seed.NewSeeder(store, seed.DefaultOptions()).Run(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return &Runtime{Store: store, Redis: r, Objects: objects}, nil
}

// OpenStore connects the repository Store for cfg.DBDriver.
func OpenStore(ctx context.Context, cfg *config.Config) (*repository.Store, error) {
	if cfg.DBDriver == config.DriverMongo {
		store, err := mongostore.Connect(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("mongodb connection failed: %w", err)
		}
		return store, nil
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	replica, err := database.ConnectReplica(cfg)
	if err != nil {
		// Reads fall back to the primary.
		log.Printf("read replica unavailable: %v", err)
		replica = nil
	}
	return repository.NewGormStore(db, replica), nil
}

func ensureDevRootAdmin(ctx context.Context, cfg *config.Config, users repository.UserRepository) error {
	if cfg == nil || users == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	username := strings.TrimSpace(cfg.DevRootUsername)
	if username == "" {
		username = "artvault_root"
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = "root@artvault.local"
	}
	password := cfg.DevRootPassword
	if password == "" {
		return errors.New("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	existing, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.IsAdmin {
			return nil
		}
		if err := users.SetAdmin(ctx, existing.ID, true); err != nil {
			return err
		}
		log.Printf("development root admin promoted (user ID %d, %s)", existing.ID, email)
		return nil
	case !models.IsNotFound(err):
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash root password: %w", err)
	}
	root := &models.User{
		Username:    username,
		Email:       email,
		Password:    string(hashedPassword),
		DisplayName: "ArtVault Admin",
		IsAdmin:     true,
	}
	if err := users.Create(ctx, root); err != nil {
		return err
	}
	log.Printf("development root admin created (user ID %d, %s)", root.ID, email)
	return nil
}
