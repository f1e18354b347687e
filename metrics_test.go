package rxcore

import (
	"io"
	"testing"
	"time"

	helpers "github.com/launchdarkly/go-test-helpers/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opencensus.io/stats/view"
)

func registerSchedulerViews(t *testing.T) {
	t.Helper()
	require.NoError(t, view.Register(SchedulerViews()...))
	t.Cleanup(func() { view.Unregister(SchedulerViews()...) })
}

// rowFor 查找指定调度器名称的视图行
func rowFor(t *testing.T, v *view.View, scheduler string) *view.Row {
	t.Helper()
	rows, err := view.RetrieveData(v.Name)
	require.NoError(t, err)
	for _, row := range rows {
		for _, tg := range row.Tags {
			if tg.Key == SchedulerTagKey && tg.Value == scheduler {
				return row
			}
		}
	}
	return nil
}

func countFor(t *testing.T, v *view.View, scheduler string) int64 {
	t.Helper()
	row := rowFor(t, v, scheduler)
	if row == nil {
		return 0
	}
	data, ok := row.Data.(*view.CountData)
	require.True(t, ok, "unexpected aggregation %T", row.Data)
	return data.Value
}

func TestMonitoredScheduler(t *testing.T) {
	registerSchedulerViews(t)

	t.Run("records scheduled, completed and panicked tasks", func(t *testing.T) {
		const name = "monitored-immediate"
		s := Monitored(NewImmediateScheduler(), name)

		for i := 0; i < 3; i++ {
			s.Schedule(func() {})
		}
		assert.Panics(t, func() {
			s.Schedule(func() { panic("boom") })
		})

		require.Eventually(t, func() bool {
			return countFor(t, TasksScheduledView, name) == 4
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, int64(3), countFor(t, TasksCompletedView, name))
		assert.Equal(t, int64(1), countFor(t, TasksPanickedView, name))

		latency := rowFor(t, TaskLatencyView, name)
		require.NotNil(t, latency)
		dist, ok := latency.Data.(*view.DistributionData)
		require.True(t, ok)
		assert.Equal(t, int64(4), dist.Count)
	})

	t.Run("wraps an asynchronous scheduler", func(t *testing.T) {
		const name = "monitored-single"
		s := Monitored(NewSingleScheduler(), name)

		done := make(chan struct{})
		s.Schedule(func() {})
		s.Schedule(func() { close(done) })
		helpers.RequireValue(t, done, time.Second)

		closer, ok := s.(io.Closer)
		require.True(t, ok)
		require.NoError(t, closer.Close())

		require.Eventually(t, func() bool {
			return countFor(t, TasksCompletedView, name) == 2
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, int64(2), countFor(t, TasksScheduledView, name))
	})

	t.Run("Close on a scheduler without lifecycle", func(t *testing.T) {
		s := Monitored(SchedulerFunc(func(action func()) { action() }), "monitored-func")
		assert.NoError(t, s.(io.Closer).Close())
	})
}
