package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS courses (
  id                text PRIMARY KEY,
  title             text NOT NULL,
  sections          jsonb NOT NULL DEFAULT '[]'::jsonb,
  completions_count bigint NOT NULL DEFAULT 0,
  updated_at        timestamptz NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS lesson_progress (
  user_id              text NOT NULL,
  course_id            text NOT NULL,
  lesson_key           text NOT NULL,
  completed            boolean NOT NULL DEFAULT false,
  percent              integer NOT NULL DEFAULT 0 CHECK (percent BETWEEN 0 AND 100),
  current_time_seconds double precision NOT NULL DEFAULT 0,
  last_watched_at      timestamptz,
  last_updated_at      timestamptz,
  PRIMARY KEY (user_id, course_id, lesson_key)
)`,
	`CREATE INDEX IF NOT EXISTS lesson_progress_user_idx ON lesson_progress (user_id, course_id)`,
	`CREATE TABLE IF NOT EXISTS user_certificates (
  certificate_id text PRIMARY KEY,
  user_id        text NOT NULL,
  course_id      text NOT NULL,
  course_name    text NOT NULL,
  user_name      text NOT NULL,
  issue_date     timestamptz NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS user_certificates_user_idx ON user_certificates (user_id, issue_date DESC)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS user_certificates_course_uniq ON user_certificates (user_id, course_id)`,
	`CREATE TABLE IF NOT EXISTS certificates (
  certificate_id text PRIMARY KEY,
  user_id        text NOT NULL,
  course_id      text NOT NULL,
  course_name    text NOT NULL,
  user_name      text NOT NULL,
  issue_date     timestamptz NOT NULL,
  created_at     timestamptz NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS processed_events (
  event_id   text PRIMARY KEY,
  subject    text NOT NULL DEFAULT '',
  created_at timestamptz NOT NULL DEFAULT now()
)`,
}

// Migrate applies the progress service schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	return nil
}
