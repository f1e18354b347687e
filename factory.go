// Factory functions for rxcore
// 工厂函数，提供常用的Observable构造方式
package rxcore

// ============================================================================
// 基础工厂函数
// ============================================================================

// Just 从给定的值创建Observable
//
// Values are emitted synchronously on the subscribing goroutine; combine with
// SubscribeOn to move emission elsewhere.
func Just[T any](values ...T) Observable[T] {
	return FromSlice(values)
}

// FromSlice 从切片创建Observable
func FromSlice[T any](items []T) Observable[T] {
	return Create(func(observer Observer[T]) Disposable {
		for _, item := range items {
			observer.OnNext(item)
		}
		observer.OnComplete()
		return Disposed()
	})
}

// Empty 创建一个空的Observable，立即完成
func Empty[T any]() Observable[T] {
	return Create(func(observer Observer[T]) Disposable {
		observer.OnComplete()
		return Disposed()
	})
}

// Never 创建一个永不发射任何信号的Observable
func Never[T any]() Observable[T] {
	return Create(func(observer Observer[T]) Disposable {
		return NewDisposable(nil)
	})
}

// Error 创建一个立即发射错误的Observable
func Error[T any](err error) Observable[T] {
	return Create(func(observer Observer[T]) Disposable {
		observer.OnError(err)
		return Disposed()
	})
}

// ============================================================================
// 从数据源创建
// ============================================================================

// FromChannel 从Go channel创建Observable
//
// Each subscription starts a goroutine that drains ch until it is closed
// (then completes) or the subscription is disposed (then stops silently).
// Two subscriptions to the same channel compete for its values.
func FromChannel[T any](ch <-chan T) Observable[T] {
	return Create(func(observer Observer[T]) Disposable {
		stop := make(chan struct{})
		d := NewDisposable(func() { close(stop) })

		go func() {
			for {
				select {
				case <-stop:
					return
				case value, ok := <-ch:
					if !ok {
						observer.OnComplete()
						return
					}
					select {
					case <-stop:
						return
					default:
					}
					observer.OnNext(value)
				}
			}
		}()

		return d
	})
}
