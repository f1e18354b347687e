package rxcore

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
	helpers "github.com/launchdarkly/go-test-helpers/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockLog() *ldlogtest.MockLog {
	mockLog := ldlogtest.NewMockLog()
	mockLog.Loggers.SetMinLevel(ldlog.Debug)
	return mockLog
}

// ============================================================================
// 立即调度器 / 函数调度器
// ============================================================================

func TestImmediateScheduler(t *testing.T) {
	ran := false
	NewImmediateScheduler().Schedule(func() { ran = true })
	assert.True(t, ran)
}

func TestSchedulerFunc(t *testing.T) {
	var submitted []string
	s := SchedulerFunc(func(action func()) {
		submitted = append(submitted, "task")
		action()
	})

	ran := false
	s.Schedule(func() { ran = true })

	assert.True(t, ran)
	assert.Equal(t, []string{"task"}, submitted)
}

// ============================================================================
// 固定线程池
// ============================================================================

func TestComputationScheduler(t *testing.T) {
	t.Run("runs every task", func(t *testing.T) {
		s := NewComputationScheduler(WithWorkers(4))
		defer s.Close()

		const n = 200
		var count atomic.Int32
		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			s.Schedule(func() {
				count.Add(1)
				wg.Done()
			})
		}
		wg.Wait()

		assert.Equal(t, int32(n), count.Load())
	})

	t.Run("defaults to one worker per CPU", func(t *testing.T) {
		s := NewComputationScheduler(WithWorkers(0))
		defer s.Close()
		assert.Equal(t, DefaultConfig().Workers, s.Workers())
	})

	t.Run("runs at most Workers tasks at once", func(t *testing.T) {
		s := NewComputationScheduler(WithWorkers(2))
		defer s.Close()

		gate := make(chan struct{})
		started := make(chan int, 3)
		for i := 0; i < 3; i++ {
			i := i
			s.Schedule(func() {
				started <- i
				<-gate
			})
		}

		helpers.RequireValue(t, started, time.Second)
		helpers.RequireValue(t, started, time.Second)
		helpers.AssertNoMoreValues(t, started, 50*time.Millisecond, "third task started while both workers were busy")

		close(gate)
		helpers.RequireValue(t, started, time.Second)
	})

	t.Run("Schedule does not block when workers are busy", func(t *testing.T) {
		s := NewComputationScheduler(WithWorkers(1))
		defer s.Close()

		gate := make(chan struct{})
		s.Schedule(func() { <-gate })

		submitted := make(chan struct{})
		go func() {
			for i := 0; i < 1000; i++ {
				s.Schedule(func() {})
			}
			close(submitted)
		}()

		helpers.RequireValue(t, submitted, time.Second)
		close(gate)
	})
}

// ============================================================================
// 单线程调度器
// ============================================================================

func TestSingleScheduler(t *testing.T) {
	t.Run("runs tasks in submission order", func(t *testing.T) {
		s := NewSingleScheduler(WithWorkers(8))
		defer s.Close()
		require.Equal(t, 1, s.Workers())

		const n = 100
		var order []int
		done := make(chan struct{})
		for i := 0; i < n; i++ {
			i := i
			s.Schedule(func() {
				order = append(order, i)
				if i == n-1 {
					close(done)
				}
			})
		}
		helpers.RequireValue(t, done, time.Second)

		for i := 0; i < n; i++ {
			assert.Equal(t, i, order[i])
		}
	})

	t.Run("Close drains queued tasks", func(t *testing.T) {
		s := NewSingleScheduler()

		gate := make(chan struct{})
		var count atomic.Int32
		s.Schedule(func() {
			<-gate
			count.Add(1)
		})
		for i := 0; i < 10; i++ {
			s.Schedule(func() { count.Add(1) })
		}

		closed := make(chan error, 1)
		go func() { closed <- s.Close() }()
		helpers.AssertNoMoreValues(t, closed, 20*time.Millisecond, "Close returned while a task was running")

		close(gate)
		assert.NoError(t, helpers.RequireValue(t, closed, time.Second))
		assert.Equal(t, int32(11), count.Load())
	})

	t.Run("Close is idempotent", func(t *testing.T) {
		s := NewSingleScheduler()
		assert.NoError(t, s.Close())
		assert.NoError(t, s.Close())
	})

	t.Run("task after Close is dropped with a warning", func(t *testing.T) {
		mockLog := newMockLog()
		s := NewSingleScheduler(WithName("closed-single"), WithLoggers(mockLog.Loggers))
		require.NoError(t, s.Close())

		ran := false
		s.Schedule(func() { ran = true })

		assert.False(t, ran)
		mockLog.AssertMessageMatch(t, true, ldlog.Warn, `"closed-single" dropped a task`)
	})

	t.Run("panicking task is logged and the worker survives", func(t *testing.T) {
		mockLog := newMockLog()
		s := NewSingleScheduler(WithName("panicky"), WithLoggers(mockLog.Loggers))
		defer s.Close()

		done := make(chan struct{})
		s.Schedule(func() { panic("kaboom") })
		s.Schedule(func() { close(done) })

		helpers.RequireValue(t, done, time.Second)
		mockLog.AssertMessageMatch(t, true, ldlog.Error, `"panicky" recovered panic in task: kaboom`)
	})
}

// ============================================================================
// IO缓存池
// ============================================================================

func TestIOScheduler(t *testing.T) {
	t.Run("reuses an idle worker", func(t *testing.T) {
		s := NewIOScheduler(WithIdleTimeout(time.Minute))
		defer s.Close()

		first := make(chan struct{})
		s.Schedule(func() { close(first) })
		helpers.RequireValue(t, first, time.Second)
		require.Eventually(t, func() bool { return s.Idle() == 1 }, time.Second, time.Millisecond)

		second := make(chan struct{})
		s.Schedule(func() { close(second) })
		helpers.RequireValue(t, second, time.Second)

		assert.Equal(t, 1, s.Live())
	})

	t.Run("grows while workers are busy", func(t *testing.T) {
		s := NewIOScheduler()
		defer s.Close()

		gate := make(chan struct{})
		started := make(chan struct{}, 5)
		for i := 0; i < 5; i++ {
			s.Schedule(func() {
				started <- struct{}{}
				<-gate
			})
		}
		for i := 0; i < 5; i++ {
			helpers.RequireValue(t, started, time.Second)
		}

		assert.Equal(t, 5, s.Live())
		assert.Equal(t, 0, s.Idle())
		close(gate)
	})

	t.Run("reclaims idle workers", func(t *testing.T) {
		mockLog := newMockLog()
		s := NewIOScheduler(WithName("reclaiming"), WithIdleTimeout(20*time.Millisecond), WithLoggers(mockLog.Loggers))
		defer s.Close()

		done := make(chan struct{})
		s.Schedule(func() { close(done) })
		helpers.RequireValue(t, done, time.Second)

		require.Eventually(t, func() bool { return s.Live() == 0 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, 0, s.Idle())
		mockLog.AssertMessageMatch(t, true, ldlog.Debug, `"reclaiming" started worker`)
		mockLog.AssertMessageMatch(t, true, ldlog.Debug, `"reclaiming" reclaimed worker`)
	})

	t.Run("Close waits for running tasks", func(t *testing.T) {
		s := NewIOScheduler()

		gate := make(chan struct{})
		started := make(chan struct{})
		s.Schedule(func() {
			close(started)
			<-gate
		})
		helpers.RequireValue(t, started, time.Second)

		closed := make(chan error, 1)
		go func() { closed <- s.Close() }()
		helpers.AssertNoMoreValues(t, closed, 20*time.Millisecond, "Close returned while a task was running")

		close(gate)
		assert.NoError(t, helpers.RequireValue(t, closed, time.Second))
		assert.Equal(t, 0, s.Live())
	})

	t.Run("task after Close is dropped", func(t *testing.T) {
		mockLog := newMockLog()
		s := NewIOScheduler(WithName("closed-io"), WithLoggers(mockLog.Loggers))
		require.NoError(t, s.Close())
		require.NoError(t, s.Close())

		ran := false
		s.Schedule(func() { ran = true })

		assert.False(t, ran)
		assert.Equal(t, 0, s.Live())
		mockLog.AssertMessageMatch(t, true, ldlog.Warn, `"closed-io" dropped a task`)
	})

	t.Run("panicking task is logged and the worker survives", func(t *testing.T) {
		mockLog := newMockLog()
		s := NewIOScheduler(WithName("io-panicky"), WithLoggers(mockLog.Loggers))
		defer s.Close()

		panicked := make(chan struct{})
		s.Schedule(func() {
			defer close(panicked)
			panic("io kaboom")
		})
		helpers.RequireValue(t, panicked, time.Second)
		require.Eventually(t, func() bool { return s.Idle() == 1 }, time.Second, time.Millisecond)

		mockLog.AssertMessageMatch(t, true, ldlog.Error, `recovered panic in task: io kaboom`)
		assert.Equal(t, 1, s.Live())
	})
}

// ============================================================================
// 默认调度器
// ============================================================================

func TestDefaultSchedulers(t *testing.T) {
	assert.Same(t, Computation(), Computation())
	assert.Same(t, IO(), IO())
	assert.Same(t, Single(), Single())

	done := make(chan struct{}, 3)
	for _, s := range []Scheduler{Computation(), IO(), Single()} {
		s.Schedule(func() { done <- struct{}{} })
	}
	for i := 0; i < 3; i++ {
		helpers.RequireValue(t, done, time.Second)
	}
}
