package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"SlopConsensus/internal/domain"
	"SlopConsensus/internal/ports"
)

type manualDriver struct {
	specs   map[string]string
	jobs    map[string]ports.Job
	started bool
	stopped bool
}

func newManualDriver() *manualDriver {
	return &manualDriver{specs: map[string]string{}, jobs: map[string]ports.Job{}}
}

func (d *manualDriver) Register(name, spec string, job ports.Job) error {
	d.specs[name] = spec
	d.jobs[name] = job
	return nil
}

func (d *manualDriver) Start(context.Context) error { d.started = true; return nil }
func (d *manualDriver) Stop(context.Context) error  { d.stopped = true; return nil }

func (d *manualDriver) fire(name string, at time.Time) {
	d.jobs[name](context.Background(), at)
}

func TestSchedulerRegistersConfiguredJobs(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	driver := newManualDriver()
	sched := NewScheduler(SchedulerDeps{
		Driver:     driver,
		Bootstrap:  srv.bootstrap,
		Aggregator: srv.aggregator,
		Evaluator:  srv.evaluator,
		Publisher:  srv.publisher,
		Schedules:  Schedules{Community: "@every 4h", Snapshot: "@every 6h", Delta: "@every 30m"},
		Logger:     discardLogger(),
	})

	ctx := context.Background()
	require.NoError(t, sched.Start(ctx))
	require.True(t, driver.started)
	require.Len(t, driver.jobs, 3)
	require.NotContains(t, driver.jobs, JobEvaluation)
	require.Equal(t, "@every 30m", driver.specs[JobDelta])

	srv.submit(t, report("X", "r1"))
	driver.fire(JobCommunity, srv.clock.Now())

	st, err := srv.bootstrap.Current(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, st.TotalReporters)

	driver.fire(JobDelta, srv.clock.Now())
	_, err = srv.blobs.Get(ctx, domain.DeltaBlobName)
	require.NoError(t, err)

	require.NoError(t, sched.Stop(ctx))
	require.True(t, driver.stopped)
}
