package main

import (
	"flag"
	"log"

	"github.com/tasklane/todo-api/internal/auth"
	"github.com/tasklane/todo-api/internal/config"
)

func main() {
	envPath := flag.String("env", ".env", "Path to dotenv file")
	flag.Parse()

	secret, err := auth.GenerateSecret()
	if err != nil {
		log.Fatalf("Failed to generate secret: %v", err)
	}

	if err := config.SetEnvValue(*envPath, "JWT_SECRET", secret); err != nil {
		log.Fatalf("Failed to write %s: %v", *envPath, err)
	}
	log.Printf("JWT_SECRET written to %s", *envPath)
}
