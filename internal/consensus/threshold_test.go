package consensus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"SlopConsensus/internal/domain"
)

func TestThresholdMonotonicInAverageTrust(t *testing.T) {
	t.Parallel()

	p := DefaultCommunityParams()
	minimum := p.BaseThreshold * p.MaturityFloor
	prev := 0.0
	for avg := 0.0; avg <= 1.0; avg += 0.01 {
		th := p.DynamicThreshold(avg)
		require.GreaterOrEqual(t, th, prev)
		require.GreaterOrEqual(t, th, minimum-1e-12)
		require.LessOrEqual(t, th, p.BaseThreshold+1e-12)
		prev = th
	}
}

func TestColdStartThreshold(t *testing.T) {
	t.Parallel()

	p := DefaultCommunityParams()
	state := p.ColdStartState(epoch)
	require.InDelta(t, 0.40, state.MaturityFactor, 1e-9)
	require.InDelta(t, 1.00, state.DynamicThreshold, 1e-9)
}

func TestCalculateCommunityFallbacks(t *testing.T) {
	t.Parallel()

	p := DefaultCommunityParams()

	empty := CalculateCommunity(nil, epoch, p)
	require.Equal(t, int64(0), empty.TotalReporters)
	require.Equal(t, p.DefaultAvgTrust, empty.AverageTrust)

	stale := epoch.Add(-90 * 24 * time.Hour)
	dormant := []ReporterTrust{
		{Reporter: domain.Reporter{LastActive: stale}, Trust: 0.9},
		{Reporter: domain.Reporter{LastActive: stale}, Trust: 0.5},
	}
	st := CalculateCommunity(dormant, epoch, p)
	require.Equal(t, int64(0), st.ActiveReporters)
	require.InDelta(t, 0.7, st.AverageTrust, 1e-9)

	mixed := append(dormant, ReporterTrust{Reporter: domain.Reporter{LastActive: epoch}, Trust: 0.75})
	st = CalculateCommunity(mixed, epoch, p)
	require.Equal(t, int64(3), st.TotalReporters)
	require.Equal(t, int64(1), st.ActiveReporters)
	require.InDelta(t, 0.75, st.AverageTrust, 1e-9)
	require.InDelta(t, 1.0, st.MaturityFactor, 1e-9)
	require.InDelta(t, 2.5, st.DynamicThreshold, 1e-9)
}
