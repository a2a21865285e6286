package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEvaluationJudgesOldReports(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	ctx := context.Background()

	srv.submit(t, report("hit", "r1"), report("hit", "r2"), report("miss", "r1"))
	srv.clock.Advance(10 * 24 * time.Hour)
	srv.submit(t, report("late", "r1"))

	srv.clock.Advance(21 * 24 * time.Hour)
	res, err := srv.evaluator.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, res.Accurate)
	require.Equal(t, 1, res.Inaccurate)

	r1, err := srv.store.GetReporter(ctx, "r1")
	require.NoError(t, err)
	require.EqualValues(t, 1, r1.AccurateCount)
	require.EqualValues(t, 1, r1.InaccurateCount)
	require.EqualValues(t, 1, r1.PendingCount)

	res, err = srv.evaluator.Run(ctx)
	require.NoError(t, err)
	require.Zero(t, res.Accurate+res.Inaccurate)
}

func TestEvaluationPagesThroughBacklog(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	ctx := context.Background()
	for _, item := range []string{"a", "b", "c", "d", "e"} {
		srv.submit(t, report(item, "r1"))
	}
	srv.clock.Advance(31 * 24 * time.Hour)

	ev := NewEvaluator(EvaluatorDeps{Store: srv.store, BatchSize: 2, Logger: discardLogger(), Clock: srv.clock.Now})
	res, err := ev.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, res.Inaccurate)
}

func TestEvaluationIgnoresConsensusAfterDelay(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	ctx := context.Background()

	srv.submit(t, report("slow", "r1"))
	srv.clock.Advance(31 * 24 * time.Hour)
	srv.submit(t, report("slow", "r2"), report("slow", "r3"))

	agg, err := srv.store.GetAggregate(ctx, "slow")
	require.NoError(t, err)
	require.True(t, agg.Marked)
	require.Equal(t, srv.clock.Now(), agg.FirstMarkedAt)

	res, err := srv.evaluator.Run(ctx)
	require.NoError(t, err)
	require.Zero(t, res.Accurate)
	require.Equal(t, 1, res.Inaccurate)

	r1, err := srv.store.GetReporter(ctx, "r1")
	require.NoError(t, err)
	require.EqualValues(t, 1, r1.InaccurateCount)
}
