// Command main is the entry point for the ArtVault backend server.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"artvault/internal/bootstrap"
	"artvault/internal/config"
	"artvault/internal/middleware"
	"artvault/internal/observability"
	"artvault/internal/server"
)

const (
	version       = "1.0"
	shutdownGrace = 10 * time.Second
)

// @title ArtVault API
// @version 1.0
// @description Artwork sharing API with posts, exhibitions, likes, saves, comments, and realtime events
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@artvault.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8375
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	middleware.ConfigureLogger(cfg.Env, cfg.LogLevel)

	flushTraces, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "artvault-api",
		ServiceVersion: version,
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSamplerRatio,
	})
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}

	rt, err := bootstrap.InitRuntime(context.Background(), cfg, bootstrap.Options{Seed: cfg.SeedOnStart})
	if err != nil {
		log.Fatalf("runtime: %v", err)
	}

	srv, err := server.NewServer(cfg, rt.Store, rt.Redis, rt.Objects)
	if err != nil {
		log.Fatalf("server: %v", err)
	}

	stop, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-stop.Done()
		log.Printf("artvault %s: draining connections", version)
		ctx, done := context.WithTimeout(context.Background(), shutdownGrace)
		defer done()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("shutdown: %v", err)
		}
		if err := flushTraces(ctx); err != nil {
			log.Printf("flush traces: %v", err)
		}
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("listen: %v", err)
	}
	<-drained
}
