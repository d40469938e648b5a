package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/vainnor/atc-hours/config"
)

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, cfg config.Database) (*sql.DB, error) {
	conn, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	return conn, nil
}

var schema = []string{
	// Owned by the membership backend; created here so a fresh database
	// can run the engine on its own.
	`CREATE TABLE IF NOT EXISTS members (
		cid INTEGER PRIMARY KEY,
		first_name VARCHAR(255) NOT NULL,
		last_name VARCHAR(255) NOT NULL,
		rating INTEGER NOT NULL DEFAULT 1,
		active BOOLEAN NOT NULL DEFAULT true
	)`,
	`CREATE TABLE IF NOT EXISTS controller_sessions (
		id BIGSERIAL PRIMARY KEY,
		cid INTEGER NOT NULL,
		name VARCHAR(255) NOT NULL,
		callsign VARCHAR(32) NOT NULL,
		frequency VARCHAR(10) NOT NULL,
		start_time TIMESTAMP WITH TIME ZONE NOT NULL,
		end_time TIMESTAMP WITH TIME ZONE NOT NULL,
		duration_ms BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS controller_hours (
		id BIGSERIAL PRIMARY KEY,
		cid INTEGER NOT NULL,
		month INTEGER NOT NULL,
		year INTEGER NOT NULL,
		delivery_hours NUMERIC(10,2) NOT NULL DEFAULT 0,
		ground_hours NUMERIC(10,2) NOT NULL DEFAULT 0,
		tower_hours NUMERIC(10,2) NOT NULL DEFAULT 0,
		tracon_hours NUMERIC(10,2) NOT NULL DEFAULT 0,
		center_hours NUMERIC(10,2) NOT NULL DEFAULT 0,
		UNIQUE (cid, month, year)
	)`,
	`CREATE TABLE IF NOT EXISTS online_controllers (
		cid INTEGER NOT NULL,
		name VARCHAR(255) NOT NULL,
		rating VARCHAR(8) NOT NULL,
		callsign VARCHAR(32) NOT NULL,
		frequency VARCHAR(10) NOT NULL,
		online VARCHAR(32) NOT NULL,
		since TIMESTAMP WITH TIME ZONE NOT NULL
	)`,

	// Indexes
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_controller_sessions_open
		ON controller_sessions (cid, callsign, start_time) WHERE duration_ms = 0`,
	`CREATE INDEX IF NOT EXISTS idx_controller_sessions_cid ON controller_sessions (cid, start_time DESC)`,
}

// CreateTables creates the engine's tables and indexes if they are missing.
func CreateTables(ctx context.Context, conn *sql.DB) error {
	for _, query := range schema {
		if _, err := conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("error creating tables: %w", err)
		}
	}
	return nil
}

// Store is the Postgres implementation of the session store, member
// directory and online roster projection.
type Store struct {
	db *sql.DB
}

func NewStore(conn *sql.DB) *Store {
	return &Store{db: conn}
}
