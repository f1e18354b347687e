// Observable implementation for rxcore
// Observable核心实现：订阅、转换操作符与调度操作符
package rxcore

import (
	"sync"
	"sync/atomic"
)

// ============================================================================
// Observable 核心实现
// ============================================================================

// Observable 可观察序列，包装一个生产函数
//
// An Observable is an immutable recipe. Every Subscribe call runs the
// producing function again with the given Observer; nothing is shared
// between two subscriptions unless an operator introduces it.
type Observable[T any] struct {
	source func(observer Observer[T]) Disposable
}

// Create 从生产函数创建Observable
//
// The producing function is responsible for routing its own failures to
// OnError and may check its returned Disposable to stop early.
func Create[T any](source func(observer Observer[T]) Disposable) Observable[T] {
	return Observable[T]{source: source}
}

// Subscribe 订阅观察者，立即执行生产函数
func (o Observable[T]) Subscribe(observer Observer[T]) Disposable {
	if d := o.source(observer); d != nil {
		return d
	}
	return NewDisposable(nil)
}

// SubscribeFuncs 使用回调函数订阅
func (o Observable[T]) SubscribeFuncs(onNext func(T), onError func(error), onComplete func()) Disposable {
	return o.Subscribe(ObserverFuncs[T]{Next: onNext, Error: onError, Complete: onComplete})
}

// ============================================================================
// 转换操作符
// ============================================================================

// Map 转换操作符
//
// A mapper that returns an error or panics forwards that failure to OnError
// and the item is dropped. Terminal signals pass through unchanged.
func Map[T, R any](o Observable[T], mapper func(T) (R, error)) Observable[R] {
	return Create(func(observer Observer[R]) Disposable {
		return o.Subscribe(&mapObserver[T, R]{downstream: observer, mapper: mapper})
	})
}

type mapObserver[T, R any] struct {
	downstream Observer[R]
	mapper     func(T) (R, error)
}

func (m *mapObserver[T, R]) OnNext(item T) {
	var result R
	err := catch(func() (err error) {
		result, err = m.mapper(item)
		return err
	})
	if err != nil {
		m.downstream.OnError(err)
		return
	}
	m.downstream.OnNext(result)
}

func (m *mapObserver[T, R]) OnError(err error) { m.downstream.OnError(err) }
func (m *mapObserver[T, R]) OnComplete()       { m.downstream.OnComplete() }

// Filter 过滤操作符
//
// A panicking predicate forwards the recovered failure to OnError.
func (o Observable[T]) Filter(predicate func(T) bool) Observable[T] {
	return Create(func(observer Observer[T]) Disposable {
		return o.Subscribe(&filterObserver[T]{downstream: observer, predicate: predicate})
	})
}

type filterObserver[T any] struct {
	downstream Observer[T]
	predicate  func(T) bool
}

func (f *filterObserver[T]) OnNext(item T) {
	var keep bool
	if err := catch(func() error {
		keep = f.predicate(item)
		return nil
	}); err != nil {
		f.downstream.OnError(err)
		return
	}
	if keep {
		f.downstream.OnNext(item)
	}
}

func (f *filterObserver[T]) OnError(err error) { f.downstream.OnError(err) }
func (f *filterObserver[T]) OnComplete()       { f.downstream.OnComplete() }

// ============================================================================
// FlatMap
// ============================================================================

// FlatMap 将每个源项转换为Observable并合并所有内部Observable的输出
//
// Inner Observables are subscribed as soon as they are produced and run
// concurrently; their items are forwarded in arrival order. Downstream
// OnComplete is delivered once the source and every inner Observable have
// completed. The first error from the source, the mapper or any inner
// Observable is delivered once, after which the source and all live inner
// subscriptions are disposed and nothing further is forwarded. Downstream
// signals are serialized.
func FlatMap[T, R any](o Observable[T], mapper func(T) Observable[R]) Observable[R] {
	return Create(func(observer Observer[R]) Disposable {
		m := &mergeObserver[T, R]{
			out:       &serializer[R]{downstream: observer},
			mapper:    mapper,
			composite: NewCompositeDisposable(),
		}
		m.active.Store(1)
		m.composite.Add(o.Subscribe(m))
		return m.composite
	})
}

type mergeObserver[T, R any] struct {
	out       *serializer[R]
	mapper    func(T) Observable[R]
	composite *CompositeDisposable

	// active counts the source plus every inner subscription not yet completed.
	active atomic.Int64
}

func (m *mergeObserver[T, R]) OnNext(item T) {
	if m.out.isTerminated() {
		return
	}

	var inner Observable[R]
	if err := catch(func() error {
		inner = m.mapper(item)
		return nil
	}); err != nil {
		m.fail(err)
		return
	}

	m.active.Add(1)
	sub := &mergeInnerObserver[T, R]{parent: m}
	d := inner.Subscribe(sub)

	sub.mu.Lock()
	finished := sub.finished
	if !finished {
		sub.handle = d
	}
	sub.mu.Unlock()

	// Add may dispose d at once, and d's teardown may signal sub.
	if !finished {
		m.composite.Add(d)
	}
}

func (m *mergeObserver[T, R]) OnError(err error) { m.fail(err) }
func (m *mergeObserver[T, R]) OnComplete()       { m.release() }

// fail delivers err once and disposes the aggregate, even if the
// downstream OnError panics.
func (m *mergeObserver[T, R]) fail(err error) {
	if m.out.isTerminated() {
		return
	}
	defer m.composite.Dispose()
	m.out.raise(err)
}

func (m *mergeObserver[T, R]) release() {
	if m.active.Add(-1) == 0 {
		m.out.complete()
	}
}

// mergeInnerObserver 内部Observable的观察者
type mergeInnerObserver[T, R any] struct {
	parent *mergeObserver[T, R]

	mu       sync.Mutex
	finished bool
	handle   Disposable
}

func (i *mergeInnerObserver[T, R]) OnNext(item R)     { i.parent.out.next(item) }
func (i *mergeInnerObserver[T, R]) OnError(err error) { i.parent.fail(err) }

func (i *mergeInnerObserver[T, R]) OnComplete() {
	i.mu.Lock()
	if i.finished {
		i.mu.Unlock()
		return
	}
	i.finished = true
	handle := i.handle
	i.handle = nil
	i.mu.Unlock()

	if handle != nil {
		i.parent.composite.Delete(handle)
	}
	i.parent.release()
}

// ============================================================================
// 调度操作符
// ============================================================================

// SubscribeOn 指定订阅时使用的调度器
//
// Only the act of subscribing moves to the scheduler; items are delivered on
// whatever goroutine the producer emits them from. Disposing the returned
// handle before the scheduled subscription starts skips it, and disposing it
// while the subscription is being established disposes that subscription as
// soon as it is available.
func (o Observable[T]) SubscribeOn(scheduler Scheduler) Observable[T] {
	return Create(func(observer Observer[T]) Disposable {
		slot := NewAssignableDisposable()
		scheduler.Schedule(func() {
			if slot.IsDisposed() {
				return
			}
			slot.Set(o.Subscribe(observer))
		})
		return slot
	})
}

// ObserveOn 指定观察时使用的调度器
//
// Each signal is submitted to the scheduler as its own task in the order it
// was produced. Order is preserved only when the scheduler is serial.
func (o Observable[T]) ObserveOn(scheduler Scheduler) Observable[T] {
	return Create(func(observer Observer[T]) Disposable {
		return o.Subscribe(&observeOnObserver[T]{downstream: observer, scheduler: scheduler})
	})
}

type observeOnObserver[T any] struct {
	downstream Observer[T]
	scheduler  Scheduler
}

func (s *observeOnObserver[T]) OnNext(item T) {
	s.scheduler.Schedule(func() { s.downstream.OnNext(item) })
}

func (s *observeOnObserver[T]) OnError(err error) {
	s.scheduler.Schedule(func() { s.downstream.OnError(err) })
}

func (s *observeOnObserver[T]) OnComplete() {
	s.scheduler.Schedule(s.downstream.OnComplete)
}
