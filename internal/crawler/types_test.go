package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProgressPercent(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0.0, ProgressPercent(0, 0, 0), "zero total yields zero, not NaN")
	require.Equal(t, 0.0, ProgressPercent(0, 0, 10))
	require.Equal(t, 50.0, ProgressPercent(3, 2, 10))
	require.Equal(t, 100.0, ProgressPercent(7, 3, 10))
	require.Equal(t, 100.0, ProgressPercent(11, 1, 10), "clamped above 100")
}

func TestPageStatusTerminal(t *testing.T) {
	t.Parallel()

	require.True(t, PageStatusCompleted.Terminal())
	require.True(t, PageStatusFailed.Terminal())
	require.True(t, PageStatusBlocked.Terminal())
	require.False(t, PageStatusPending.Terminal())
	require.False(t, PageStatusCrawling.Terminal())
}

func TestJobStatusTerminal(t *testing.T) {
	t.Parallel()

	require.True(t, JobStatusCompleted.Terminal())
	require.True(t, JobStatusFailed.Terminal())
	require.True(t, JobStatusCancelled.Terminal())
	require.False(t, JobStatusPending.Terminal())
	require.False(t, JobStatusRunning.Terminal())
}
