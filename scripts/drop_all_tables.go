package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	// Read environment to determine table prefix
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev" // Default to dev
	}
	if env == "prod" {
		log.Fatal("Refusing to drop tables in the prod environment")
	}

	prefix := os.Getenv("TABLE_PREFIX")
	if prefix == "" {
		if env == "test" {
			prefix = "reverie_test_"
		} else {
			prefix = "reverie_dev_"
		}
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = db.Close() }() // Error ignored: script exiting

	// Drop all tables with environment-specific prefix
	dropSQL := fmt.Sprintf(`
		DROP TABLE IF EXISTS %sllm_request_logs CASCADE;
		DROP TABLE IF EXISTS %sflags CASCADE;
		DROP TABLE IF EXISTS %scontext_data CASCADE;
		DROP TABLE IF EXISTS %ssystem_messages CASCADE;
		DROP TABLE IF EXISTS %sturns CASCADE;
		DROP TABLE IF EXISTS %ssessions CASCADE;
		DROP TABLE IF EXISTS %ssettings CASCADE;
		DROP TABLE IF EXISTS %sprofiles CASCADE;
	`, prefix, prefix, prefix, prefix, prefix, prefix, prefix, prefix)

	if _, err := db.Exec(dropSQL); err != nil {
		log.Fatalf("Failed to drop tables: %v", err)
	}

	fmt.Printf("All tables dropped successfully (prefix: %s)\n", prefix)
}
