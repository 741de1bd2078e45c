package build

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()
	assert.Equal(t, 0.0, m.Snapshot().SuccessRate())

	m.Record("js", 10*time.Millisecond, nil)
	m.Record("css", 30*time.Millisecond, errors.New("boom"))

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.TotalRuns)
	assert.Equal(t, int64(1), snap.SuccessfulRuns)
	assert.Equal(t, int64(1), snap.FailedRuns)
	assert.Equal(t, 40*time.Millisecond, snap.TotalDuration)
	assert.Equal(t, 20*time.Millisecond, snap.AverageDuration)
	assert.Equal(t, "css", snap.LastTask)
	assert.Equal(t, 50.0, snap.SuccessRate())
}

func TestMetricsConcurrentRecord(t *testing.T) {
	m := NewMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Record("js", time.Millisecond, nil)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), m.Snapshot().TotalRuns)
}

func TestRunnerFeedsMetrics(t *testing.T) {
	fs := project(t, fullProject(t))
	r := newRunner(t, fs)

	_, err := r.RunTask(context.Background(), TaskJS)
	require.NoError(t, err)
	_, err = r.RunTask(context.Background(), "nope")
	require.Error(t, err)

	snap := r.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalRuns, "unknown tasks never run")
	assert.Equal(t, TaskJS, snap.LastTask)
}
