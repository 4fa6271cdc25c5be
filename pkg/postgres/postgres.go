package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ds124wfegd/courseportal/config"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func NewPostgresDB(ctx context.Context, cfg *config.DatabaseConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"host":   cfg.Host,
		"dbname": cfg.DBName,
	}).Info("Successfully connected to PostgreSQL")
	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS lines (
		id VARCHAR(64) PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		color VARCHAR(32) NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS courses (
		id SERIAL PRIMARY KEY,
		line_id VARCHAR(64) NOT NULL REFERENCES lines(id),
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS course_slots (
		course_id INTEGER NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
		position SMALLINT NOT NULL,
		kind VARCHAR(20) NOT NULL CHECK (kind IN ('single', 'before_lunch', 'after_lunch', 'last')),
		label VARCHAR(255) NOT NULL,
		remaining_seats INTEGER NOT NULL CHECK (remaining_seats >= 0),
		PRIMARY KEY (course_id, label),
		UNIQUE (course_id, position),
		UNIQUE (course_id, kind)
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(36) PRIMARY KEY,
		email VARCHAR(255) UNIQUE NOT NULL,
		name VARCHAR(255) NOT NULL,
		role VARCHAR(20) NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin', 'developer')),
		enrolled_course_id INTEGER,
		enrolled_slot_label VARCHAR(255),
		enrolled_side_option VARCHAR(255),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT enrollment_complete CHECK (
			(enrolled_course_id IS NULL AND enrolled_slot_label IS NULL)
			OR (enrolled_course_id IS NOT NULL AND enrolled_slot_label IS NOT NULL)
		),
		FOREIGN KEY (enrolled_course_id, enrolled_slot_label) REFERENCES course_slots(course_id, label)
	)`,

	`CREATE TABLE IF NOT EXISTS waitlist (
		id BIGSERIAL PRIMARY KEY,
		user_id VARCHAR(36) NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
		course_id INTEGER NOT NULL,
		slot_label VARCHAR(255) NOT NULL,
		side_option VARCHAR(255),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		FOREIGN KEY (course_id, slot_label) REFERENCES course_slots(course_id, label) ON DELETE CASCADE
	)`,

	`CREATE TABLE IF NOT EXISTS faq (
		id BIGSERIAL PRIMARY KEY,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS maintenance_break (
		id SMALLINT PRIMARY KEY CHECK (id = 1),
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		activated_at TIMESTAMPTZ,
		activated_by VARCHAR(255)
	)`,
	`ALTER TABLE maintenance_break ADD COLUMN IF NOT EXISTS reason TEXT`,
	`INSERT INTO maintenance_break (id, is_active) VALUES (1, FALSE) ON CONFLICT (id) DO NOTHING`,

	`CREATE TABLE IF NOT EXISTS schools (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(255) UNIQUE NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	// Indexes
	`CREATE INDEX IF NOT EXISTS idx_courses_line_id ON courses(line_id)`,
	`CREATE INDEX IF NOT EXISTS idx_waitlist_queue ON waitlist(course_id, slot_label, created_at, id)`,
	`CREATE INDEX IF NOT EXISTS idx_users_enrolled_course ON users(enrolled_course_id)`,
}

// RunMigrations applies the idempotent schema statements in order.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	for i, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration %d: %w", i, err)
		}
	}

	logrus.WithField("statements", len(migrations)).Info("Database migrations completed successfully")
	return nil
}
