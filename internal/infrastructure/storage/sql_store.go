package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"

	"SlopConsensus/internal/domain"
	"SlopConsensus/internal/ports"
)

const registerAttempts = 3

var (
	reporterColumns = []string{
		"reporter_id", "first_seen_ms", "last_active_ms", "cohort_rank", "cohort_bonus",
		"accurate_count", "inaccurate_count", "pending_count", "trust_score", "flagged", "flagged_reason",
	}
	reportColumns = []string{
		"item_id", "collection_id", "reporter_id", "trust_weight", "judgment",
		"judged_at_ms", "created_at_ms", "withdrawn_at_ms",
	}
	aggregateColumns = []string{
		"item_id", "collection_id", "effective_score", "report_count", "marked", "was_marked",
		"first_marked_ms", "first_report_ms", "last_update_ms", "version",
	}
)

// SQLStore implements ports.Datastore on Postgres or SQLite.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	sb      sq.StatementBuilderType
}

var _ ports.Datastore = (*SQLStore)(nil)

// NewSQLStore wires an open database handle.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{
		db:      db,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(dialect.placeholder),
	}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlizer interface {
	ToSql() (string, []any, error)
}

func exec(ctx context.Context, db execer, b sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return db.ExecContext(ctx, query, args...)
}

func queryRow(ctx context.Context, db execer, b sqlizer) (*sql.Row, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return db.QueryRowContext(ctx, query, args...), nil
}

func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLStore) locked(b sq.SelectBuilder) sq.SelectBuilder {
	if s.dialect.lockSuffix == "" {
		return b
	}
	return b.Suffix(s.dialect.lockSuffix)
}

// --- reporters ---

// RegisterReporter creates the reporter with the next cohort rank, or returns the existing one.
func (s *SQLStore) RegisterReporter(ctx context.Context, id string, now time.Time, bonusFor func(rank int64) float64) (domain.Reporter, bool, error) {
	var lastErr error
	for attempt := 0; attempt < registerAttempts; attempt++ {
		reporter, created, err := s.registerOnce(ctx, id, now, bonusFor)
		if err == nil {
			return reporter, created, nil
		}
		if !isUniqueViolation(err) {
			return domain.Reporter{}, false, err
		}
		// Another writer took the id or the rank; re-read and try again.
		lastErr = err
	}
	return domain.Reporter{}, false, fmt.Errorf("register reporter %s: %w", id, lastErr)
}

func (s *SQLStore) registerOnce(ctx context.Context, id string, now time.Time, bonusFor func(rank int64) float64) (domain.Reporter, bool, error) {
	var (
		out     domain.Reporter
		created bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := s.getReporter(ctx, tx, id)
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		row, err := queryRow(ctx, tx, s.sb.Select("COALESCE(MAX(cohort_rank), 0)").From("reporters"))
		if err != nil {
			return err
		}
		var maxRank int64
		if err := row.Scan(&maxRank); err != nil {
			return fmt.Errorf("read max cohort rank: %w", err)
		}

		rank := maxRank + 1
		bonus := 0.0
		if bonusFor != nil {
			bonus = bonusFor(rank)
		}
		out = domain.Reporter{
			ID:          id,
			FirstSeen:   now,
			LastActive:  now,
			CohortRank:  rank,
			CohortBonus: bonus,
		}

		_, err = exec(ctx, tx, s.sb.Insert("reporters").
			Columns("reporter_id", "first_seen_ms", "last_active_ms", "cohort_rank", "cohort_bonus").
			Values(id, toMillis(now), toMillis(now), rank, bonus))
		if err != nil {
			return fmt.Errorf("insert reporter: %w", err)
		}
		created = true
		return nil
	})
	return out, created, err
}

// GetReporter loads a reporter or returns domain.ErrNotFound.
func (s *SQLStore) GetReporter(ctx context.Context, id string) (domain.Reporter, error) {
	return s.getReporter(ctx, s.db, id)
}

func (s *SQLStore) getReporter(ctx context.Context, db execer, id string) (domain.Reporter, error) {
	row, err := queryRow(ctx, db, s.sb.Select(reporterColumns...).From("reporters").Where(sq.Eq{"reporter_id": id}))
	if err != nil {
		return domain.Reporter{}, err
	}
	r, err := scanReporter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Reporter{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Reporter{}, fmt.Errorf("get reporter %s: %w", id, err)
	}
	return r, nil
}

// TouchReporter moves last-active forward.
func (s *SQLStore) TouchReporter(ctx context.Context, id string, now time.Time) error {
	ms := toMillis(now)
	_, err := exec(ctx, s.db, s.sb.Update("reporters").
		Set("last_active_ms", ms).
		Where(sq.Eq{"reporter_id": id}).
		Where(sq.Lt{"last_active_ms": ms}))
	if err != nil {
		return fmt.Errorf("touch reporter %s: %w", id, err)
	}
	return nil
}

// ListReporters returns every reporter ordered by cohort rank.
func (s *SQLStore) ListReporters(ctx context.Context) ([]domain.Reporter, error) {
	query, args, err := s.sb.Select(reporterColumns...).From("reporters").OrderBy("cohort_rank ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reporters: %w", err)
	}
	defer rows.Close()

	var out []domain.Reporter
	for rows.Next() {
		r, err := scanReporter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reporter: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// SaveTrustScores writes the cached trust of many reporters in one transaction.
func (s *SQLStore) SaveTrustScores(ctx context.Context, scores map[string]float64) error {
	if len(scores) == 0 {
		return nil
	}
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			_, err := exec(ctx, tx, s.sb.Update("reporters").
				Set("trust_score", scores[id]).
				Where(sq.Eq{"reporter_id": id}))
			if err != nil {
				return fmt.Errorf("save trust for %s: %w", id, err)
			}
		}
		return nil
	})
}

// FlagReporter marks a reporter as abusive.
func (s *SQLStore) FlagReporter(ctx context.Context, id, reason string) error {
	res, err := exec(ctx, s.db, s.sb.Update("reporters").
		Set("flagged", true).
		Set("flagged_reason", reason).
		Where(sq.Eq{"reporter_id": id}))
	if err != nil {
		return fmt.Errorf("flag reporter %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// --- reports ---

// UpsertReport inserts a report unless the (item, reporter) pair already exists.
func (s *SQLStore) UpsertReport(ctx context.Context, report domain.Report) (domain.UpsertOutcome, error) {
	outcome := domain.UpsertInserted
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := exec(ctx, tx, s.sb.Insert("reports").
			Columns("item_id", "collection_id", "reporter_id", "trust_weight", "judgment", "created_at_ms").
			Values(report.ItemID, report.CollectionID, report.ReporterID, report.TrustWeight,
				string(domain.JudgmentPending), toMillis(report.CreatedAt)).
			Suffix("ON CONFLICT (item_id, reporter_id) DO NOTHING"))
		if err != nil {
			return fmt.Errorf("insert report: %w", err)
		}

		if n, _ := res.RowsAffected(); n == 0 {
			row, err := queryRow(ctx, tx, s.sb.Select("withdrawn_at_ms").From("reports").
				Where(sq.Eq{"item_id": report.ItemID, "reporter_id": report.ReporterID}))
			if err != nil {
				return err
			}
			var withdrawn sql.NullInt64
			if err := row.Scan(&withdrawn); err != nil {
				return fmt.Errorf("read existing report: %w", err)
			}
			outcome = domain.UpsertDuplicate
			if withdrawn.Valid {
				outcome = domain.UpsertWithdrawn
			}
			return nil
		}

		_, err = exec(ctx, tx, s.sb.Update("reporters").
			Set("pending_count", sq.Expr("pending_count + 1")).
			Where(sq.Eq{"reporter_id": report.ReporterID}))
		if err != nil {
			return fmt.Errorf("bump pending count: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return outcome, nil
}

// RemoveReport withdraws an active report. The row stays behind as a tombstone so the pair
// cannot be reported again.
func (s *SQLStore) RemoveReport(ctx context.Context, itemID, reporterID string, now time.Time) (domain.RemoveOutcome, error) {
	outcome := domain.RemoveWithdrawn
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row, err := queryRow(ctx, tx, s.locked(s.sb.Select("judgment", "withdrawn_at_ms").From("reports").
			Where(sq.Eq{"item_id": itemID, "reporter_id": reporterID})))
		if err != nil {
			return err
		}
		var (
			judgment  string
			withdrawn sql.NullInt64
		)
		err = row.Scan(&judgment, &withdrawn)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && withdrawn.Valid) {
			outcome = domain.RemoveNotFound
			return nil
		}
		if err != nil {
			return fmt.Errorf("read report: %w", err)
		}

		_, err = exec(ctx, tx, s.sb.Update("reports").
			Set("withdrawn_at_ms", toMillis(now)).
			Where(sq.Eq{"item_id": itemID, "reporter_id": reporterID}))
		if err != nil {
			return fmt.Errorf("withdraw report: %w", err)
		}

		if domain.Judgment(judgment) == domain.JudgmentPending {
			_, err = exec(ctx, tx, s.sb.Update("reporters").
				Set("pending_count", sq.Expr("pending_count - 1")).
				Where(sq.Eq{"reporter_id": reporterID}).
				Where(sq.Gt{"pending_count": 0}))
			if err != nil {
				return fmt.Errorf("drop pending count: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return outcome, nil
}

// PendingJudgments lists active, unjudged reports created at or before createdBefore.
func (s *SQLStore) PendingJudgments(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Report, error) {
	b := s.sb.Select(reportColumns...).From("reports").
		Where(sq.Eq{"judgment": string(domain.JudgmentPending), "withdrawn_at_ms": nil}).
		Where(sq.LtOrEq{"created_at_ms": toMillis(createdBefore)}).
		OrderBy("created_at_ms ASC", "item_id ASC", "reporter_id ASC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return s.queryReports(ctx, s.db, b)
}

// JudgeReport stores a verdict and moves the reporter's counters in the same transaction.
func (s *SQLStore) JudgeReport(ctx context.Context, itemID, reporterID string, verdict domain.Judgment, at time.Time) (bool, error) {
	counter := "accurate_count"
	switch verdict {
	case domain.JudgmentAccurate:
	case domain.JudgmentInaccurate:
		counter = "inaccurate_count"
	default:
		return false, fmt.Errorf("judge report: unsupported verdict %q", verdict)
	}

	judged := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := exec(ctx, tx, s.sb.Update("reports").
			Set("judgment", string(verdict)).
			Set("judged_at_ms", toMillis(at)).
			Where(sq.Eq{"item_id": itemID, "reporter_id": reporterID, "judgment": string(domain.JudgmentPending)}))
		if err != nil {
			return fmt.Errorf("judge report: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}

		_, err = exec(ctx, tx, s.sb.Update("reporters").
			Set(counter, sq.Expr(counter+" + 1")).
			Set("pending_count", sq.Expr("CASE WHEN pending_count > 0 THEN pending_count - 1 ELSE 0 END")).
			Where(sq.Eq{"reporter_id": reporterID}))
		if err != nil {
			return fmt.Errorf("update reporter counters: %w", err)
		}
		judged = true
		return nil
	})
	return judged, err
}

func (s *SQLStore) queryReports(ctx context.Context, db execer, b sq.SelectBuilder) ([]domain.Report, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []domain.Report
	for rows.Next() {
		var (
			r                   domain.Report
			judgment            string
			judgedAt, withdrawn sql.NullInt64
			createdAt           int64
		)
		if err := rows.Scan(&r.ItemID, &r.CollectionID, &r.ReporterID, &r.TrustWeight, &judgment,
			&judgedAt, &createdAt, &withdrawn); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		r.Judgment = domain.Judgment(judgment)
		r.JudgedAt = fromNullMillis(judgedAt)
		r.CreatedAt = fromMillis(createdAt)
		r.WithdrawnAt = fromNullMillis(withdrawn)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// --- aggregates ---

// UpdateAggregate reads the item's row and active reports, applies mutate and writes the
// result, all inside one transaction. The write only lands if the version moved forward.
func (s *SQLStore) UpdateAggregate(ctx context.Context, itemID string, mutate ports.AggregateMutation) (domain.ItemAggregate, error) {
	var next domain.ItemAggregate
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := s.getAggregate(ctx, tx, itemID, true)
		if errors.Is(err, domain.ErrNotFound) {
			current = domain.ItemAggregate{ItemID: itemID}
		} else if err != nil {
			return err
		}

		reports, err := s.queryReports(ctx, tx, s.sb.Select(reportColumns...).From("reports").
			Where(sq.Eq{"item_id": itemID, "withdrawn_at_ms": nil}).
			OrderBy("created_at_ms ASC", "reporter_id ASC"))
		if err != nil {
			return err
		}

		next, err = mutate(current, reports)
		if err != nil {
			return err
		}
		next.ItemID = itemID

		res, err := exec(ctx, tx, s.sb.Insert("item_aggregates").
			Columns(aggregateColumns...).
			Values(next.ItemID, next.CollectionID, next.EffectiveScore, next.ReportCount, next.Marked,
				next.WasMarked, toMillis(next.FirstMarkedAt), toMillis(next.FirstReportAt), toMillis(next.LastUpdateAt), next.Version).
			Suffix(`ON CONFLICT (item_id) DO UPDATE SET
				collection_id = excluded.collection_id,
				effective_score = excluded.effective_score,
				report_count = excluded.report_count,
				marked = excluded.marked,
				was_marked = excluded.was_marked,
				first_marked_ms = excluded.first_marked_ms,
				first_report_ms = excluded.first_report_ms,
				last_update_ms = excluded.last_update_ms,
				version = excluded.version
			WHERE item_aggregates.version < excluded.version`))
		if err != nil {
			return fmt.Errorf("upsert aggregate %s: %w", itemID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("upsert aggregate %s: stale version %d", itemID, next.Version)
		}
		return nil
	})
	if err != nil {
		return domain.ItemAggregate{}, err
	}
	return next, nil
}

// GetAggregate loads an aggregate or returns domain.ErrNotFound.
func (s *SQLStore) GetAggregate(ctx context.Context, itemID string) (domain.ItemAggregate, error) {
	return s.getAggregate(ctx, s.db, itemID, false)
}

func (s *SQLStore) getAggregate(ctx context.Context, db execer, itemID string, lock bool) (domain.ItemAggregate, error) {
	b := s.sb.Select(aggregateColumns...).From("item_aggregates").Where(sq.Eq{"item_id": itemID})
	if lock {
		b = s.locked(b)
	}
	row, err := queryRow(ctx, db, b)
	if err != nil {
		return domain.ItemAggregate{}, err
	}
	agg, err := scanAggregate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ItemAggregate{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ItemAggregate{}, fmt.Errorf("get aggregate %s: %w", itemID, err)
	}
	return agg, nil
}

// QueryMarkedItemsSince selects aggregates for a snapshot or delta.
func (s *SQLStore) QueryMarkedItemsSince(ctx context.Context, q domain.AggregateQuery) ([]domain.ItemAggregate, error) {
	b := s.sb.Select(aggregateColumns...).From("item_aggregates")
	if q.IncludeEvicted {
		b = b.Where(sq.Or{sq.Eq{"marked": true}, sq.Eq{"was_marked": true}})
	} else {
		b = b.Where(sq.Eq{"marked": true})
	}
	if !q.Since.IsZero() {
		b = b.Where(sq.Gt{"last_update_ms": toMillis(q.Since)})
	}
	if !q.WindowStart.IsZero() {
		b = b.Where(sq.GtOrEq{"last_update_ms": toMillis(q.WindowStart)})
	}
	b = b.OrderBy("last_update_ms ASC", "item_id ASC")

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query aggregates: %w", err)
	}
	defer rows.Close()

	var out []domain.ItemAggregate
	for rows.Next() {
		agg, err := scanAggregate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		out = append(out, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// ListAggregateIDs returns every item that has an aggregate.
func (s *SQLStore) ListAggregateIDs(ctx context.Context) ([]string, error) {
	query, args, err := s.sb.Select("item_id").From("item_aggregates").OrderBy("item_id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list aggregate ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return ids, nil
}

// --- community ---

const communityRowID = 1

// LoadCommunityState returns the singleton or domain.ErrNotFound before the first recalculation.
func (s *SQLStore) LoadCommunityState(ctx context.Context) (domain.CommunityState, error) {
	row, err := queryRow(ctx, s.db, s.sb.Select(
		"total_reporters", "active_reporters", "average_trust", "maturity_factor", "dynamic_threshold", "recalculated_ms",
	).From("community_state").Where(sq.Eq{"id": communityRowID}))
	if err != nil {
		return domain.CommunityState{}, err
	}

	var (
		st domain.CommunityState
		ms int64
	)
	err = row.Scan(&st.TotalReporters, &st.ActiveReporters, &st.AverageTrust, &st.MaturityFactor, &st.DynamicThreshold, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CommunityState{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.CommunityState{}, fmt.Errorf("load community state: %w", err)
	}
	st.RecalculatedAt = fromMillis(ms)
	return st, nil
}

// SaveCommunityState overwrites the singleton.
func (s *SQLStore) SaveCommunityState(ctx context.Context, st domain.CommunityState) error {
	_, err := exec(ctx, s.db, s.sb.Insert("community_state").
		Columns("id", "total_reporters", "active_reporters", "average_trust", "maturity_factor", "dynamic_threshold", "recalculated_ms").
		Values(communityRowID, st.TotalReporters, st.ActiveReporters, st.AverageTrust, st.MaturityFactor, st.DynamicThreshold, toMillis(st.RecalculatedAt)).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			total_reporters = excluded.total_reporters,
			active_reporters = excluded.active_reporters,
			average_trust = excluded.average_trust,
			maturity_factor = excluded.maturity_factor,
			dynamic_threshold = excluded.dynamic_threshold,
			recalculated_ms = excluded.recalculated_ms`))
	if err != nil {
		return fmt.Errorf("save community state: %w", err)
	}
	return nil
}

// --- scanning ---

type scanner interface {
	Scan(dest ...any) error
}

func scanReporter(row scanner) (domain.Reporter, error) {
	var (
		r                   domain.Reporter
		firstSeen, lastSeen int64
	)
	err := row.Scan(&r.ID, &firstSeen, &lastSeen, &r.CohortRank, &r.CohortBonus,
		&r.AccurateCount, &r.InaccurateCount, &r.PendingCount, &r.TrustScore, &r.Flagged, &r.FlaggedReason)
	if err != nil {
		return domain.Reporter{}, err
	}
	r.FirstSeen = fromMillis(firstSeen)
	r.LastActive = fromMillis(lastSeen)
	return r, nil
}

func scanAggregate(row scanner) (domain.ItemAggregate, error) {
	var (
		a                              domain.ItemAggregate
		firstMarked, first, lastUpdate int64
	)
	err := row.Scan(&a.ItemID, &a.CollectionID, &a.EffectiveScore, &a.ReportCount, &a.Marked, &a.WasMarked,
		&firstMarked, &first, &lastUpdate, &a.Version)
	if err != nil {
		return domain.ItemAggregate{}, err
	}
	a.FirstMarkedAt = fromMillis(firstMarked)
	a.FirstReportAt = fromMillis(first)
	a.LastUpdateAt = fromMillis(lastUpdate)
	return a, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func fromNullMillis(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return fromMillis(v.Int64)
}
