package storage

import (
	"context"
	"fmt"
)

// Timestamps are stored as unix milliseconds so range scans behave the same on every engine.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS reporters (
		reporter_id      TEXT PRIMARY KEY,
		first_seen_ms    BIGINT NOT NULL,
		last_active_ms   BIGINT NOT NULL,
		cohort_rank      BIGINT NOT NULL UNIQUE,
		cohort_bonus     DOUBLE PRECISION NOT NULL,
		accurate_count   BIGINT NOT NULL DEFAULT 0,
		inaccurate_count BIGINT NOT NULL DEFAULT 0,
		pending_count    BIGINT NOT NULL DEFAULT 0,
		trust_score      DOUBLE PRECISION NOT NULL DEFAULT 0,
		flagged          BOOLEAN NOT NULL DEFAULT FALSE,
		flagged_reason   TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reporters_last_active ON reporters(last_active_ms)`,
	`CREATE TABLE IF NOT EXISTS reports (
		item_id         TEXT NOT NULL,
		collection_id   TEXT NOT NULL,
		reporter_id     TEXT NOT NULL,
		trust_weight    DOUBLE PRECISION NOT NULL,
		judgment        TEXT NOT NULL DEFAULT 'pending',
		judged_at_ms    BIGINT,
		created_at_ms   BIGINT NOT NULL,
		withdrawn_at_ms BIGINT,
		PRIMARY KEY (item_id, reporter_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reports_judgment ON reports(judgment, created_at_ms)`,
	`CREATE TABLE IF NOT EXISTS item_aggregates (
		item_id         TEXT PRIMARY KEY,
		collection_id   TEXT NOT NULL,
		effective_score DOUBLE PRECISION NOT NULL,
		report_count    BIGINT NOT NULL,
		marked          BOOLEAN NOT NULL,
		was_marked      BOOLEAN NOT NULL,
		first_marked_ms BIGINT NOT NULL DEFAULT 0,
		first_report_ms BIGINT NOT NULL,
		last_update_ms  BIGINT NOT NULL,
		version         BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_item_aggregates_last_update ON item_aggregates(last_update_ms)`,
	`CREATE TABLE IF NOT EXISTS community_state (
		id                INTEGER PRIMARY KEY,
		total_reporters   BIGINT NOT NULL,
		active_reporters  BIGINT NOT NULL,
		average_trust     DOUBLE PRECISION NOT NULL,
		maturity_factor   DOUBLE PRECISION NOT NULL,
		dynamic_threshold DOUBLE PRECISION NOT NULL,
		recalculated_ms   BIGINT NOT NULL
	)`,
}

// Migrate creates missing tables and indexes.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
