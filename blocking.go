// Blocking helpers for rxcore
// 阻塞操作：在调用方goroutine上等待终止信号
package rxcore

import (
	"context"
	"sync"
)

// BlockingCollect 订阅并阻塞直到终止信号或ctx取消
//
// It returns every item received before the terminal signal. On OnError the
// items so far are returned together with the error. If ctx is done first,
// the subscription is disposed and ctx.Err() is returned.
func BlockingCollect[T any](ctx context.Context, o Observable[T]) ([]T, error) {
	var (
		mu    sync.Mutex
		items []T
	)
	done := make(chan error, 1)

	d := o.Subscribe(Safe[T](ObserverFuncs[T]{
		Next: func(item T) {
			mu.Lock()
			items = append(items, item)
			mu.Unlock()
		},
		Error:    func(err error) { done <- err },
		Complete: func() { done <- nil },
	}))

	snapshot := func() []T {
		mu.Lock()
		defer mu.Unlock()
		return append([]T(nil), items...)
	}

	select {
	case err := <-done:
		return snapshot(), err
	case <-ctx.Done():
		d.Dispose()
		return snapshot(), ctx.Err()
	}
}
