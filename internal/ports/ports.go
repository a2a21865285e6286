package ports

import (
	"context"
	"time"

	"SlopConsensus/internal/domain"
)

// ReporterStore persists reporter identities and their accuracy counters.
type ReporterStore interface {
	// RegisterReporter creates the reporter if absent, assigning the next cohort rank and the
	// bonus returned by bonusFor. Existing reporters are returned untouched with created=false.
	RegisterReporter(ctx context.Context, id string, now time.Time, bonusFor func(rank int64) float64) (reporter domain.Reporter, created bool, err error)
	GetReporter(ctx context.Context, id string) (domain.Reporter, error)
	TouchReporter(ctx context.Context, id string, now time.Time) error
	ListReporters(ctx context.Context) ([]domain.Reporter, error)
	SaveTrustScores(ctx context.Context, scores map[string]float64) error
	FlagReporter(ctx context.Context, id, reason string) error
}

// ReportStore persists reports with (item, reporter) uniqueness.
type ReportStore interface {
	UpsertReport(ctx context.Context, report domain.Report) (domain.UpsertOutcome, error)
	RemoveReport(ctx context.Context, itemID, reporterID string, now time.Time) (domain.RemoveOutcome, error)
	PendingJudgments(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Report, error)
	// JudgeReport records a verdict once; already-judged reports are left untouched.
	JudgeReport(ctx context.Context, itemID, reporterID string, verdict domain.Judgment, at time.Time) (bool, error)
}

// AggregateMutation derives the next aggregate from the locked current row and the item's reports.
type AggregateMutation func(current domain.ItemAggregate, reports []domain.Report) (domain.ItemAggregate, error)

// AggregateStore holds the materialized per-item consensus.
type AggregateStore interface {
	// UpdateAggregate runs mutate inside one transaction holding the item's row.
	// When mutate fails nothing is written.
	UpdateAggregate(ctx context.Context, itemID string, mutate AggregateMutation) (domain.ItemAggregate, error)
	GetAggregate(ctx context.Context, itemID string) (domain.ItemAggregate, error)
	QueryMarkedItemsSince(ctx context.Context, q domain.AggregateQuery) ([]domain.ItemAggregate, error)
	ListAggregateIDs(ctx context.Context) ([]string, error)
}

// CommunityStore keeps the community state singleton.
type CommunityStore interface {
	LoadCommunityState(ctx context.Context) (domain.CommunityState, error)
	SaveCommunityState(ctx context.Context, state domain.CommunityState) error
}

// Datastore is the full server-side persistence capability.
type Datastore interface {
	ReporterStore
	ReportStore
	AggregateStore
	CommunityStore
}

// BlobStore publishes and serves named artifacts. Put must replace atomically.
type BlobStore interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
}

// Job is the handler of a periodic task.
type Job func(ctx context.Context, trigger time.Time)

// Scheduler runs named periodic tasks.
type Scheduler interface {
	Register(name, spec string, job Job) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// BatchSubmitter sends queued operations to the server in one request.
type BatchSubmitter interface {
	SubmitBatch(ctx context.Context, entries []domain.BatchEntry) ([]domain.EntryResult, error)
}

// BlobFetcher downloads published artifacts. A missing blob yields domain.ErrBlobNotFound.
type BlobFetcher interface {
	FetchBlob(ctx context.Context, name string) ([]byte, error)
}

// ConsensusQuerier answers uncached questions directly from the server.
type ConsensusQuerier interface {
	GetAggregate(ctx context.Context, itemID string) (domain.ItemAggregate, error)
	GetTrustProfile(ctx context.Context, reporterID string) (domain.TrustProfile, error)
}

// QueuedEntry is a durable pending operation on the client.
type QueuedEntry struct {
	Entry      domain.BatchEntry
	Attempts   int
	EnqueuedAt time.Time
}

// QueueStore is the client's durable outbox plus local report status.
type QueueStore interface {
	// Append stores the entry unless one with the same op, item and reporter exists.
	Append(ctx context.Context, entry QueuedEntry) (bool, error)
	Pending(ctx context.Context) ([]QueuedEntry, error)
	Find(ctx context.Context, op domain.BatchOp, itemID, reporterID string) (QueuedEntry, bool, error)
	Delete(ctx context.Context, op domain.BatchOp, itemID, reporterID string) error
	SetAttempts(ctx context.Context, op domain.BatchOp, itemID, reporterID string, attempts int) error
	Len(ctx context.Context) (int, error)

	SetLocalStatus(ctx context.Context, itemID string, status domain.LocalReportStatus) error
	LocalStatus(ctx context.Context, itemID string) (domain.LocalReportStatus, error)

	Setting(ctx context.Context, key string) (string, bool, error)
	SaveSetting(ctx context.Context, key, value string) error
}

// CacheStore is the client's materialized distribution cache.
type CacheStore interface {
	// Replace drops every entry, writes entries and sets the watermark.
	Replace(ctx context.Context, entries []domain.CacheEntry, watermark time.Time) error
	// Apply upserts entries, deletes evicted ids and advances the watermark.
	Apply(ctx context.Context, upserts []domain.CacheEntry, evicted []string, watermark time.Time) error
	Get(ctx context.Context, itemID string) (domain.CacheEntry, bool, error)
	Prune(ctx context.Context, olderThan time.Time) (int, error)
	Watermark(ctx context.Context) (time.Time, error)
	Count(ctx context.Context) (int, error)
}
