// Command main runs the demo data seeder for ArtVault.
package main

import (
	"context"
	"flag"
	"log"

	"artvault/internal/bootstrap"
	"artvault/internal/config"
	"artvault/internal/middleware"
	"artvault/internal/seed"
)

func main() {
	// Parse command line flags
	opts := seed.DefaultOptions()
	flag.IntVar(&opts.Users, "users", opts.Users, "Number of users to create")
	flag.IntVar(&opts.Posts, "posts", opts.Posts, "Number of artwork posts to create")
	flag.Float64Var(&opts.ExhibitionRatio, "exhibitions", opts.ExhibitionRatio, "Share of posts that carry an exhibition (0-1)")
	flag.Int64Var(&opts.RandSeed, "seed", 0, "Random seed for a reproducible run (0 = time based)")
	preset := flag.String("preset", "", "YAML preset file; its values override the flags")
	flag.Parse()

	log.Println("🌱 ArtVault Seeder")
	log.Println("==================")

	if *preset != "" {
		p, err := seed.LoadPreset(*preset)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		opts = p.Apply(opts)
		log.Printf("Applied preset %s", *preset)
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.ConfigureLogger(cfg.Env, cfg.LogLevel)

	ctx := context.Background()
	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer func() { _ = store.Close(ctx) }()

	summary, err := seed.NewSeeder(store, opts).Run(ctx)
	if err != nil {
		log.Printf("❌ Seeding failed: %v", err)
		return
	}

	log.Printf("✨ All done! %d users, %d posts, %d reactions, %d comments.",
		summary.Users, summary.Posts, summary.Reactions, summary.Comments)
	log.Printf("📧 All seeded users have the password: %s", seed.DefaultPassword)
}
