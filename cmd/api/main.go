package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tasklane/todo-api/internal/api"
	"github.com/tasklane/todo-api/internal/auth"
	"github.com/tasklane/todo-api/internal/config"
	"github.com/tasklane/todo-api/internal/database"
	"github.com/tasklane/todo-api/internal/ratelimit"
	"github.com/tasklane/todo-api/internal/storage"
	"github.com/tasklane/todo-api/internal/store"
	"github.com/tasklane/todo-api/internal/validation"
)

const version = "0.1.0"

// newCounters builds the rate-limit counter store selected in the config.
func newCounters(ctx context.Context, cfg config.Config) (ratelimit.Store, error) {
	switch cfg.RateLimit.Store {
	case "memory", "":
		return ratelimit.NewMemoryStore(), nil
	case "file":
		return ratelimit.NewDocumentStore(
			storage.NewFileBlob(cfg.RateLimit.Path),
			storage.NewFileBlob(cfg.RateLimit.ThrottlePath),
		), nil
	case "s3":
		client, err := storage.NewS3Client(ctx, storage.S3Options{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Prefix:          cfg.S3.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return ratelimit.NewDocumentStore(client.Blob("rate-limits.json"), client.Blob("throttles.json")), nil
	default:
		return nil, fmt.Errorf("unsupported rate limit store: %s", cfg.RateLimit.Store)
	}
}

// initializeAPI wires the server from configuration. The returned closer
// releases the database.
func initializeAPI(ctx context.Context, configPath string) (*api.Api, io.Closer, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	counters, err := newCounters(ctx, *cfg)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	s := store.New(db)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret)
	server, err := api.NewApi(*cfg, api.Deps{
		Todos:     s,
		Auth:      auth.NewService(s, tokens, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL),
		Tokens:    tokens,
		Validator: validation.New(),
		Counters:  counters,
	})
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	return server, db, nil
}

func main() {
	configPath := flag.String("config", "app.yml", "Path to configuration file")
	envPath := flag.String("env", ".env", "Path to dotenv file")
	flag.Parse()

	log.Printf("Starting todo API v%s with config: %s", version, *configPath)

	if err := config.LoadEnvFile(*envPath); err != nil {
		log.Fatalf("Failed to load env file: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, db, err := initializeAPI(ctx, *configPath)
	if err != nil {
		log.Fatal(err)
	}

	err = server.Serve(ctx)
	db.Close()
	if err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Printf("Server stopped")
}
