package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB is the shared connection pool used by the quote and package stores
var DB *sql.DB

// InitDB opens and verifies the Postgres connection. DATABASE_URL wins;
// otherwise the connection string is assembled from the discrete DB_* vars.
func InitDB() error {
	connStr, err := connectionString()
	if err != nil {
		return err
	}

	DB, err = sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := DB.PingContext(context.Background()); err != nil {
		return fmt.Errorf("failed to reach database: %w", err)
	}

	log.Printf("✓ Connected to Postgres")
	return nil
}

// connectionString resolves the Postgres connection string from the environment
func connectionString() (string, error) {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url, nil
	}

	host := os.Getenv("DB_HOST")
	user := os.Getenv("DB_USER")
	dbname := os.Getenv("DB_NAME")
	if host == "" || user == "" || dbname == "" {
		return "", fmt.Errorf("database configuration missing: set DATABASE_URL, or DB_HOST, DB_USER and DB_NAME")
	}

	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "5432"
	}
	sslmode := os.Getenv("DB_SSLMODE")
	if sslmode == "" {
		sslmode = "disable"
	}

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, os.Getenv("DB_PASSWORD"), dbname, sslmode), nil
}

// CloseDB closes the shared pool
func CloseDB() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}
