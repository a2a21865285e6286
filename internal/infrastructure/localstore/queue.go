// Package localstore keeps the client's durable state: the outbound queue (SQLite)
// and the distribution cache (badger).
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"SlopConsensus/internal/domain"
	"SlopConsensus/internal/infrastructure/storage"
	"SlopConsensus/internal/ports"
)

var queueSchema = []string{
	`CREATE TABLE IF NOT EXISTS queue (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		op TEXT NOT NULL,
		item_id TEXT NOT NULL,
		collection_id TEXT NOT NULL DEFAULT '',
		reporter_id TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		enqueued_ms INTEGER NOT NULL,
		UNIQUE (op, item_id, reporter_id)
	)`,
	`CREATE TABLE IF NOT EXISTS local_status (
		item_id TEXT PRIMARY KEY,
		status TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

// Queue is a ports.QueueStore backed by an embedded SQLite file.
type Queue struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.QueueStore = (*Queue)(nil)

// OpenQueue opens (creating if needed) the queue database at path.
func OpenQueue(ctx context.Context, path string) (*Queue, error) {
	db, err := storage.Open(ctx, storage.SQLite, path)
	if err != nil {
		return nil, err
	}
	for _, stmt := range queueSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate queue: %w", err)
		}
	}
	return &Queue{db: db, sb: sq.StatementBuilder.PlaceholderFormat(sq.Question)}, nil
}

// Close releases the database handle.
func (q *Queue) Close() error {
	return q.db.Close()
}

func (q *Queue) Append(ctx context.Context, entry ports.QueuedEntry) (bool, error) {
	e := entry.Entry
	query, args, err := q.sb.Insert("queue").
		Columns("op", "item_id", "collection_id", "reporter_id", "attempts", "enqueued_ms").
		Values(string(e.Op), e.ItemID, e.CollectionID, e.ReporterID, entry.Attempts, entry.EnqueuedAt.UnixMilli()).
		Suffix("ON CONFLICT (op, item_id, reporter_id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("append queue entry: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (q *Queue) Pending(ctx context.Context) ([]ports.QueuedEntry, error) {
	query, args, err := q.sb.Select("op", "item_id", "collection_id", "reporter_id", "attempts", "enqueued_ms").
		From("queue").OrderBy("seq ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}
	defer rows.Close()

	var out []ports.QueuedEntry
	for rows.Next() {
		entry, err := scanQueued(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (q *Queue) Find(ctx context.Context, op domain.BatchOp, itemID, reporterID string) (ports.QueuedEntry, bool, error) {
	query, args, err := q.sb.Select("op", "item_id", "collection_id", "reporter_id", "attempts", "enqueued_ms").
		From("queue").Where(sq.Eq{"op": string(op), "item_id": itemID, "reporter_id": reporterID}).ToSql()
	if err != nil {
		return ports.QueuedEntry{}, false, fmt.Errorf("build query: %w", err)
	}
	entry, err := scanQueued(q.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return ports.QueuedEntry{}, false, nil
	}
	if err != nil {
		return ports.QueuedEntry{}, false, err
	}
	return entry, true, nil
}

func (q *Queue) Delete(ctx context.Context, op domain.BatchOp, itemID, reporterID string) error {
	return q.exec(ctx, q.sb.Delete("queue").
		Where(sq.Eq{"op": string(op), "item_id": itemID, "reporter_id": reporterID}))
}

func (q *Queue) SetAttempts(ctx context.Context, op domain.BatchOp, itemID, reporterID string, attempts int) error {
	return q.exec(ctx, q.sb.Update("queue").Set("attempts", attempts).
		Where(sq.Eq{"op": string(op), "item_id": itemID, "reporter_id": reporterID}))
}

func (q *Queue) Len(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM queue").Scan(&n); err != nil {
		return 0, fmt.Errorf("count queue: %w", err)
	}
	return n, nil
}

// SetLocalStatus records what the UI shows for an item; LocalNone clears it.
func (q *Queue) SetLocalStatus(ctx context.Context, itemID string, status domain.LocalReportStatus) error {
	if status == domain.LocalNone {
		return q.exec(ctx, q.sb.Delete("local_status").Where(sq.Eq{"item_id": itemID}))
	}
	return q.exec(ctx, q.sb.Insert("local_status").Columns("item_id", "status").
		Values(itemID, string(status)).
		Suffix("ON CONFLICT (item_id) DO UPDATE SET status = excluded.status"))
}

func (q *Queue) LocalStatus(ctx context.Context, itemID string) (domain.LocalReportStatus, error) {
	var status string
	err := q.db.QueryRowContext(ctx, "SELECT status FROM local_status WHERE item_id = ?", itemID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LocalNone, nil
	}
	if err != nil {
		return domain.LocalNone, fmt.Errorf("load local status: %w", err)
	}
	return domain.LocalReportStatus(status), nil
}

func (q *Queue) Setting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := q.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load setting %s: %w", key, err)
	}
	return value, true, nil
}

func (q *Queue) SaveSetting(ctx context.Context, key, value string) error {
	return q.exec(ctx, q.sb.Insert("settings").Columns("key", "value").Values(key, value).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = excluded.value"))
}

type sqlizer interface {
	ToSql() (string, []any, error)
}

func (q *Queue) exec(ctx context.Context, b sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := q.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("queue store: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQueued(row rowScanner) (ports.QueuedEntry, error) {
	var (
		entry ports.QueuedEntry
		op    string
		ms    int64
	)
	err := row.Scan(&op, &entry.Entry.ItemID, &entry.Entry.CollectionID, &entry.Entry.ReporterID, &entry.Attempts, &ms)
	if err != nil {
		return ports.QueuedEntry{}, err
	}
	entry.Entry.Op = domain.BatchOp(op)
	entry.EnqueuedAt = time.UnixMilli(ms).UTC()
	return entry, nil
}
