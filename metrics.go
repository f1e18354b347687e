// Scheduler metrics for rxcore
// 调度器性能监控，基于OpenCensus记录任务指标
package rxcore

import (
	"context"
	"io"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

// ============================================================================
// 指标定义
// ============================================================================

var (
	// SchedulerTagKey 标记指标所属的调度器名称
	SchedulerTagKey = tag.MustNewKey("scheduler")

	tasksScheduledMeasure = stats.Int64("rxcore/tasks_scheduled", "Tasks submitted to a scheduler", stats.UnitDimensionless)
	tasksCompletedMeasure = stats.Int64("rxcore/tasks_completed", "Tasks that returned normally", stats.UnitDimensionless)
	tasksPanickedMeasure  = stats.Int64("rxcore/tasks_panicked", "Tasks that panicked", stats.UnitDimensionless)
	taskLatencyMeasure    = stats.Float64("rxcore/task_latency", "Time from submission to the end of a task", stats.UnitMilliseconds)
)

var (
	// TasksScheduledView 已提交任务数
	TasksScheduledView = &view.View{
		Name:        "rxcore/tasks_scheduled",
		Measure:     tasksScheduledMeasure,
		Description: tasksScheduledMeasure.Description(),
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{SchedulerTagKey},
	}
	// TasksCompletedView 正常完成任务数
	TasksCompletedView = &view.View{
		Name:        "rxcore/tasks_completed",
		Measure:     tasksCompletedMeasure,
		Description: tasksCompletedMeasure.Description(),
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{SchedulerTagKey},
	}
	// TasksPanickedView panic任务数
	TasksPanickedView = &view.View{
		Name:        "rxcore/tasks_panicked",
		Measure:     tasksPanickedMeasure,
		Description: tasksPanickedMeasure.Description(),
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{SchedulerTagKey},
	}
	// TaskLatencyView 任务延迟分布（毫秒）
	TaskLatencyView = &view.View{
		Name:        "rxcore/task_latency",
		Measure:     taskLatencyMeasure,
		Description: taskLatencyMeasure.Description(),
		Aggregation: view.Distribution(0, 1, 5, 10, 50, 100, 500, 1000, 5000),
		TagKeys:     []tag.Key{SchedulerTagKey},
	}
)

// SchedulerViews 返回所有调度器视图，由调用方注册到view包
func SchedulerViews() []*view.View {
	return []*view.View{TasksScheduledView, TasksCompletedView, TasksPanickedView, TaskLatencyView}
}

// ============================================================================
// 带监控的调度器
// ============================================================================

// monitoredScheduler 带监控的调度器包装器
type monitoredScheduler struct {
	scheduler Scheduler
	ctx       context.Context
}

// Monitored 创建带监控的调度器，指标以name作为scheduler标签
//
// A panic in a task is counted and then re-raised to the wrapped scheduler.
func Monitored(scheduler Scheduler, name string) Scheduler {
	ctx, err := tag.New(context.Background(), tag.Upsert(SchedulerTagKey, name))
	if err != nil {
		loggers := DefaultLoggers()
		loggers.Errorf("Failed to create metric tags for scheduler %q: %s", name, err)
		ctx = context.Background()
	}
	return &monitoredScheduler{scheduler: scheduler, ctx: ctx}
}

// Schedule 调度任务并记录指标
func (s *monitoredScheduler) Schedule(action func()) {
	stats.Record(s.ctx, tasksScheduledMeasure.M(1))

	startTime := time.Now()
	s.scheduler.Schedule(func() {
		defer func() {
			stats.Record(s.ctx, taskLatencyMeasure.M(float64(time.Since(startTime))/float64(time.Millisecond)))
			if r := recover(); r != nil {
				stats.Record(s.ctx, tasksPanickedMeasure.M(1))
				panic(r)
			}
			stats.Record(s.ctx, tasksCompletedMeasure.M(1))
		}()

		action()
	})
}

// Close 关闭被包装的调度器（如果它支持关闭）
func (s *monitoredScheduler) Close() error {
	if closer, ok := s.scheduler.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
