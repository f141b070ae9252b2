package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL deployments
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL deployments
)

// New creates a new database connection (supports both MySQL and PostgreSQL)
func New(databaseURL string) (*sqlx.DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	db, err := sqlx.Open(DriverFor(databaseURL), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool settings
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// DriverFor auto-detects the SQL driver from a database URL.
func DriverFor(databaseURL string) string {
	const (
		driverMySQL    = "mysql"
		driverPostgres = "postgres"
	)
	if len(databaseURL) > 8 && databaseURL[:8] == driverPostgres {
		return driverPostgres
	}
	return driverMySQL
}
