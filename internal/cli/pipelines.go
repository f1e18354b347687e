package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/xinjiayu/rxcore"
	"github.com/xinjiayu/rxcore/internal/config"
)

// environment owns the schedulers of one run.
type environment struct {
	computation rxcore.Scheduler
	io          rxcore.Scheduler
	single      rxcore.Scheduler
	closers     []io.Closer
}

func newEnvironment(cfg config.Config, loggers ldlog.Loggers) *environment {
	computation := rxcore.NewComputationScheduler(cfg.ComputationOptions(loggers)...)
	ioScheduler := rxcore.NewIOScheduler(cfg.IOOptions(loggers)...)
	single := rxcore.NewSingleScheduler(cfg.SingleOptions(loggers)...)

	env := &environment{
		computation: computation,
		io:          ioScheduler,
		single:      single,
		closers:     []io.Closer{computation, ioScheduler, single},
	}
	if cfg.Metrics {
		env.computation = rxcore.Monitored(computation, "computation")
		env.io = rxcore.Monitored(ioScheduler, "io")
		env.single = rxcore.Monitored(single, "single")
	}
	return env
}

// Close shuts down every scheduler, waiting for queued tasks.
func (e *environment) Close() error {
	var errs []error
	for _, c := range e.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CloseContext is Close bounded by ctx. When ctx ends first the schedulers
// are left to finish in the background and ctx.Err() is returned.
func (e *environment) CloseContext(ctx context.Context) error {
	closed := make(chan error, 1)
	go func() { closed <- e.Close() }()

	select {
	case err := <-closed:
		return err
	case <-ctx.Done():
		return fmt.Errorf("schedulers did not stop: %w", ctx.Err())
	}
}

type pipeline struct {
	build func(env *environment) rxcore.Observable[string]
	// sorted marks pipelines whose arrival order is not deterministic.
	sorted bool
}

var pipelines = map[string]pipeline{
	"map":        {build: mapPipeline},
	"filter":     {build: filterPipeline},
	"flatmap":    {build: flatMapPipeline},
	"error":      {build: errorPipeline},
	"schedulers": {build: schedulersPipeline},
	"parallel":   {build: parallelPipeline, sorted: true},
}

func pipelineNames() []string {
	names := make([]string, 0, len(pipelines))
	for name := range pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func itoa(v int) (string, error) {
	return strconv.Itoa(v), nil
}

// ============================================================================
// 示例管道
// ============================================================================

// mapPipeline 1, 2 => x*10
func mapPipeline(*environment) rxcore.Observable[string] {
	times10 := rxcore.Map(rxcore.Just(1, 2), func(v int) (int, error) {
		return v * 10, nil
	})
	return rxcore.Map(times10, itoa)
}

// filterPipeline 1, 2, 3 => 奇数
func filterPipeline(*environment) rxcore.Observable[string] {
	odd := rxcore.Just(1, 2, 3).Filter(func(v int) bool { return v%2 == 1 })
	return rxcore.Map(odd, itoa)
}

// flatMapPipeline 每个值展开为一个单元素内部流
func flatMapPipeline(*environment) rxcore.Observable[string] {
	return rxcore.FlatMap(rxcore.Just(1, 2), func(v int) rxcore.Observable[string] {
		return rxcore.Just(fmt.Sprintf("Num:%d", v))
	})
}

// errorPipeline 发射一个值后失败
func errorPipeline(*environment) rxcore.Observable[string] {
	failing := rxcore.Create(func(observer rxcore.Observer[int]) rxcore.Disposable {
		observer.OnNext(1)
		observer.OnError(errors.New("Test error"))
		return rxcore.Disposed()
	})
	return rxcore.Map(failing, itoa)
}

// schedulersPipeline 在IO池上订阅，在单线程上观察
func schedulersPipeline(env *environment) rxcore.Observable[string] {
	return rxcore.Map(rxcore.Just(1, 2, 3), itoa).
		SubscribeOn(env.io).
		ObserveOn(env.single)
}

// parallelPipeline 在计算池上并行计算平方
func parallelPipeline(env *environment) rxcore.Observable[string] {
	return rxcore.FlatMap(rxcore.Just(1, 2, 3, 4, 5, 6, 7, 8), func(v int) rxcore.Observable[string] {
		return rxcore.Map(rxcore.Just(v), func(v int) (string, error) {
			return fmt.Sprintf("square(%d)=%d", v, v*v), nil
		}).SubscribeOn(env.computation)
	})
}
