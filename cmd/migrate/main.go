package main

import (
	"flag"
	"log"

	"github.com/tasklane/todo-api/internal/config"
	"github.com/tasklane/todo-api/internal/database"
)

func main() {
	configPath := flag.String("config", "app.yml", "Path to configuration file")
	envPath := flag.String("env", ".env", "Path to dotenv file")
	flag.Parse()

	if err := config.LoadEnvFile(*envPath); err != nil {
		log.Fatalf("Failed to load env file: %v", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Open applies any pending migrations
	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Printf("Database %s is up to date", cfg.Database.Type)
}
