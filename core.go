// Package rxcore provides a minimal push-based reactive stream engine
// 基于Go泛型的最小化响应式流引擎，专注于操作符组合、取消与调度
package rxcore

import (
	"sync"
	"sync/atomic"
)

// ============================================================================
// 观察者
// ============================================================================

// Observer 观察者接口，接收流中的信号
//
// OnNext may be called zero or more times, followed by at most one of OnError
// or OnComplete.
type Observer[T any] interface {
	// OnNext 处理下一个值
	OnNext(item T)
	// OnError 处理错误（终止信号）
	OnError(err error)
	// OnComplete 处理完成（终止信号）
	OnComplete()
}

// ObserverFuncs 使用回调函数实现Observer，nil回调被忽略
type ObserverFuncs[T any] struct {
	Next     func(item T)
	Error    func(err error)
	Complete func()
}

// OnNext 调用Next回调
func (f ObserverFuncs[T]) OnNext(item T) {
	if f.Next != nil {
		f.Next(item)
	}
}

// OnError 调用Error回调
func (f ObserverFuncs[T]) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

// OnComplete 调用Complete回调
func (f ObserverFuncs[T]) OnComplete() {
	if f.Complete != nil {
		f.Complete()
	}
}

// ============================================================================
// 生命周期管理
// ============================================================================

// Disposable 可释放资源的接口
type Disposable interface {
	// Dispose 释放资源，多次调用与调用一次效果相同
	Dispose()
	// IsDisposed 检查是否已释放
	IsDisposed() bool
}

// baseDisposable 基础可释放资源实现
type baseDisposable struct {
	disposed atomic.Bool
	action   func()
}

// NewDisposable 创建基础可释放资源，action在首次Dispose时执行一次
func NewDisposable(action func()) Disposable {
	return &baseDisposable{action: action}
}

// Disposed 返回一个已经释放的资源
func Disposed() Disposable {
	d := &baseDisposable{}
	d.disposed.Store(true)
	return d
}

// Dispose 释放资源
func (d *baseDisposable) Dispose() {
	if d.disposed.CompareAndSwap(false, true) && d.action != nil {
		d.action()
	}
}

// IsDisposed 检查是否已释放
func (d *baseDisposable) IsDisposed() bool {
	return d.disposed.Load()
}

// CompositeDisposable 组合式资源管理器
//
// Once disposed it holds no members; any member added afterwards is disposed
// immediately instead of stored.
type CompositeDisposable struct {
	mu        sync.Mutex
	disposed  bool
	resources []Disposable
}

// NewCompositeDisposable 创建组合式资源管理器
func NewCompositeDisposable(disposables ...Disposable) *CompositeDisposable {
	cd := &CompositeDisposable{}
	for _, d := range disposables {
		cd.Add(d)
	}
	return cd
}

// Add 添加可释放资源
func (cd *CompositeDisposable) Add(disposable Disposable) {
	if disposable == nil {
		return
	}

	cd.mu.Lock()
	if cd.disposed {
		cd.mu.Unlock()
		disposable.Dispose()
		return
	}
	cd.resources = append(cd.resources, disposable)
	cd.mu.Unlock()
}

// Delete 移除资源但不释放它，返回是否找到
func (cd *CompositeDisposable) Delete(disposable Disposable) bool {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	for i, resource := range cd.resources {
		if resource == disposable {
			cd.resources = append(cd.resources[:i], cd.resources[i+1:]...)
			return true
		}
	}
	return false
}

// Len 返回当前持有的资源数量
func (cd *CompositeDisposable) Len() int {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	return len(cd.resources)
}

// Dispose 释放所有资源
//
// Members are disposed outside the lock, in insertion order, so a member's
// teardown may safely call back into the composite.
func (cd *CompositeDisposable) Dispose() {
	cd.mu.Lock()
	if cd.disposed {
		cd.mu.Unlock()
		return
	}
	cd.disposed = true
	resources := cd.resources
	cd.resources = nil
	cd.mu.Unlock()

	for _, resource := range resources {
		resource.Dispose()
	}
}

// IsDisposed 检查是否已释放
func (cd *CompositeDisposable) IsDisposed() bool {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	return cd.disposed
}

// AssignableDisposable 单槽位资源，可以晚于自身的返回而被赋值
//
// The slot is pending until Set is called. Disposing a pending slot marks it
// cancelled, and a Disposable set afterwards is disposed on arrival.
type AssignableDisposable struct {
	mu       sync.Mutex
	current  Disposable
	disposed bool
}

// NewAssignableDisposable 创建一个空槽位
func NewAssignableDisposable() *AssignableDisposable {
	return &AssignableDisposable{}
}

// Set 设置槽位中的资源；若槽位已释放则立即释放该资源
func (a *AssignableDisposable) Set(disposable Disposable) {
	if disposable == nil {
		return
	}

	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		disposable.Dispose()
		return
	}
	a.current = disposable
	a.mu.Unlock()
}

// Dispose 释放槽位及其中的资源
func (a *AssignableDisposable) Dispose() {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return
	}
	a.disposed = true
	current := a.current
	a.current = nil
	a.mu.Unlock()

	if current != nil {
		current.Dispose()
	}
}

// IsDisposed 检查是否已释放
func (a *AssignableDisposable) IsDisposed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.disposed
}
