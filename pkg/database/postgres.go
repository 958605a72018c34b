package database

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/tramites-gateway/pkg/config"
)

// JournalSchema creates the assignment operation journal when missing.
const JournalSchema = `CREATE TABLE IF NOT EXISTS assignment_operations (
	id                 UUID PRIMARY KEY,
	folio              TEXT NOT NULL,
	assignee_id        TEXT NOT NULL,
	assignee_name      TEXT NOT NULL,
	actor_id           TEXT NOT NULL,
	state              TEXT NOT NULL,
	error_message      TEXT NULL,
	previous_snapshot  JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at         TIMESTAMPTZ NOT NULL,
	resolved_at        TIMESTAMPTZ NULL
);
CREATE INDEX IF NOT EXISTS idx_assignment_operations_folio ON assignment_operations (folio, created_at DESC);`

// NewPostgres returns a configured PostgreSQL client and makes sure the journal table exists.
func NewPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.Exec(JournalSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure journal schema: %w", err)
	}

	return db, nil
}
