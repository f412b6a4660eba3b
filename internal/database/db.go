package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"relaychat/server/internal/config"
	"relaychat/server/internal/errors"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB holds the database connection pool
type DB struct {
	*sql.DB
}

// NewConnection creates a new database connection pool
func NewConnection(cfg *config.Config) (*DB, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New(errors.ErrFatal, "DATABASE_URL environment variable is required")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, errors.New(errors.ErrFatal, fmt.Sprintf("failed to open database connection: %v", err))
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var lastErr error
	for i := 0; i < 3; i++ {
		if err := db.PingContext(ctx); err != nil {
			lastErr = err
			log.Printf("Database connection attempt %d/3 failed: %v", i+1, err)
			if i < 2 {
				time.Sleep(2 * time.Second)
				continue
			}
		} else {
			lastErr = nil
			break
		}
	}

	if lastErr != nil {
		db.Close()
		return nil, errors.New(errors.ErrFatal, fmt.Sprintf("failed to connect to database after 3 attempts: %v", lastErr))
	}

	log.Println("Successfully connected to PostgreSQL database")

	return &DB{db}, nil
}

// Close closes the database connection pool
func (db *DB) Close() error {
	if db.DB != nil {
		return db.DB.Close()
	}
	return nil
}

// Migrate creates the users and messages tables if they do not already
// exist. Column additions are guarded so an older store loads safely.
func (db *DB) Migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			username      TEXT PRIMARY KEY,
			password_hash TEXT NOT NULL,
			public_key    BYTEA,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id              BIGSERIAL PRIMARY KEY,
			sender          TEXT NOT NULL,
			recipient       TEXT NOT NULL,
			body            TEXT NOT NULL,
			conversation_id TEXT NOT NULL,
			delivered       BOOLEAN NOT NULL DEFAULT true,
			timestamp       TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS public_key BYTEA`,
		`ALTER TABLE messages ADD COLUMN IF NOT EXISTS delivered BOOLEAN NOT NULL DEFAULT true`,
		`CREATE INDEX IF NOT EXISTS idx_messages_recipient_delivered ON messages (recipient, delivered)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation_id ON messages (conversation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages (timestamp)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return errors.Wrap(err, errors.ErrFatal)
		}
	}

	log.Println("Database schema ready")
	return nil
}

// Transaction helper for executing operations in a transaction
func (db *DB) Transaction(fn func(*sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, errors.ErrStoreFailure)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrStoreFailure)
	}

	return nil
}
