// Scheduler implementations for rxcore
// 实现调度器系统：计算线程池、IO缓存池、单线程串行调度器
package rxcore

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"golang.org/x/sync/errgroup"
)

// ============================================================================
// 调度器接口
// ============================================================================

// Scheduler 调度器接口，控制任务在哪里执行
type Scheduler interface {
	// Schedule 提交一个任务；不阻塞，不报告结果
	Schedule(action func())
}

// SchedulerFunc 将普通函数适配为Scheduler
type SchedulerFunc func(action func())

// Schedule 调用函数本身
func (f SchedulerFunc) Schedule(action func()) {
	f(action)
}

// ============================================================================
// 配置选项
// ============================================================================

// Option 调度器配置选项接口
type Option interface {
	Apply(config *Config)
}

// Config 调度器配置
type Config struct {
	// Name 用于日志和指标
	Name string
	// Workers 固定池的goroutine数量，<=0时使用runtime.NumCPU()
	Workers int
	// IdleTimeout IO池中空闲worker的回收时间
	IdleTimeout time.Duration
	// Loggers 调度器日志
	Loggers ldlog.Loggers
}

const (
	// DefaultIdleTimeout IO池默认空闲回收时间
	DefaultIdleTimeout = 60 * time.Second
)

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Workers:     runtime.NumCPU(),
		IdleTimeout: DefaultIdleTimeout,
		Loggers:     DefaultLoggers(),
	}
}

type optionFunc func(config *Config)

func (f optionFunc) Apply(config *Config) { f(config) }

// WithName 设置调度器名称
func WithName(name string) Option {
	return optionFunc(func(config *Config) { config.Name = name })
}

// WithWorkers 设置固定池的worker数量
func WithWorkers(workers int) Option {
	return optionFunc(func(config *Config) { config.Workers = workers })
}

// WithIdleTimeout 设置IO池的空闲回收时间
func WithIdleTimeout(timeout time.Duration) Option {
	return optionFunc(func(config *Config) { config.IdleTimeout = timeout })
}

// WithLoggers 设置调度器日志
func WithLoggers(loggers ldlog.Loggers) Option {
	return optionFunc(func(config *Config) { config.Loggers = loggers })
}

func newConfig(name string, options []Option) *Config {
	config := DefaultConfig()
	config.Name = name
	for _, opt := range options {
		if opt != nil {
			opt.Apply(config)
		}
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultIdleTimeout
	}
	return config
}

// run 执行任务，恢复并记录逃逸的panic，保证worker存活
func (c *Config) run(action func()) {
	defer func() {
		if r := recover(); r != nil {
			c.Loggers.Errorf("Scheduler %q recovered panic in task: %v\n%s", c.Name, r, debug.Stack())
		}
	}()
	action()
}

// ============================================================================
// 立即调度器 - Immediate Scheduler
// ============================================================================

// immediateScheduler 立即在当前goroutine中执行任务
type immediateScheduler struct{}

// NewImmediateScheduler 创建立即调度器
//
// The action runs inline on the submitting goroutine, so panics are not
// recovered.
func NewImmediateScheduler() Scheduler {
	return immediateScheduler{}
}

// Schedule 立即执行任务
func (immediateScheduler) Schedule(action func()) {
	action()
}

// ============================================================================
// 固定大小线程池 - Pool Scheduler
// ============================================================================

// PoolScheduler 使用固定数量goroutine执行任务的调度器
//
// Tasks wait in an unbounded FIFO queue, so Schedule never blocks. With one
// worker the scheduler is strictly serial.
type PoolScheduler struct {
	config *Config
	group  errgroup.Group

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
}

// NewComputationScheduler 创建计算型线程池，默认worker数为CPU数
func NewComputationScheduler(options ...Option) *PoolScheduler {
	return newPoolScheduler(newConfig("computation", options))
}

// NewSingleScheduler 创建单线程串行调度器，忽略WithWorkers
func NewSingleScheduler(options ...Option) *PoolScheduler {
	config := newConfig("single", options)
	config.Workers = 1
	return newPoolScheduler(config)
}

func newPoolScheduler(config *Config) *PoolScheduler {
	s := &PoolScheduler{config: config}
	s.cond = sync.NewCond(&s.mu)

	for i := 0; i < config.Workers; i++ {
		s.group.Go(s.worker)
	}
	config.Loggers.Debugf("Scheduler %q started with %d workers", config.Name, config.Workers)

	return s
}

// Schedule 将任务放入队列
func (s *PoolScheduler) Schedule(action func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.config.Loggers.Warnf("Scheduler %q dropped a task: %s", s.config.Name, ErrSchedulerClosed)
		return
	}
	s.queue = append(s.queue, action)
	s.mu.Unlock()
	s.cond.Signal()
}

// Workers 返回worker数量
func (s *PoolScheduler) Workers() int {
	return s.config.Workers
}

// Close 停止接收新任务，执行完已排队的任务后等待所有worker退出
func (s *PoolScheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()

	err := s.group.Wait()
	s.config.Loggers.Debugf("Scheduler %q closed", s.config.Name)
	return err
}

// worker 工作goroutine
func (s *PoolScheduler) worker() error {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return nil
		}
		action := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.config.run(action)
	}
}

// ============================================================================
// IO缓存池 - IO Scheduler
// ============================================================================

// IOScheduler 按需创建worker并回收空闲worker的调度器
//
// A task is handed to an idle worker when one exists, otherwise a new worker
// is started. Workers idle for longer than the idle timeout exit.
type IOScheduler struct {
	config *Config
	wg     sync.WaitGroup
	done   chan struct{}

	mu     sync.Mutex
	idle   []*ioWorker
	live   int
	closed bool
}

type ioWorker struct {
	id    uuid.UUID
	tasks chan func()
}

// NewIOScheduler 创建IO型缓存池
func NewIOScheduler(options ...Option) *IOScheduler {
	config := newConfig("io", options)
	config.Loggers.Debugf("Scheduler %q started with idle timeout %s", config.Name, config.IdleTimeout)
	return &IOScheduler{
		config: config,
		done:   make(chan struct{}),
	}
}

// Schedule 交给空闲worker或启动新worker
func (s *IOScheduler) Schedule(action func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.config.Loggers.Warnf("Scheduler %q dropped a task: %s", s.config.Name, ErrSchedulerClosed)
		return
	}

	if n := len(s.idle); n > 0 {
		w := s.idle[n-1]
		s.idle[n-1] = nil
		s.idle = s.idle[:n-1]
		s.mu.Unlock()
		// A claimed worker receives exactly one task, so this never blocks.
		w.tasks <- action
		return
	}

	w := &ioWorker{id: uuid.New(), tasks: make(chan func(), 1)}
	s.live++
	s.wg.Add(1)
	s.mu.Unlock()

	s.config.Loggers.Debugf("Scheduler %q started worker %s", s.config.Name, w.id)
	go s.work(w, action)
}

// Live 返回当前存活的worker数量
func (s *IOScheduler) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// Idle 返回当前空闲的worker数量
func (s *IOScheduler) Idle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.idle)
}

// Close 停止接收新任务并等待所有worker退出
func (s *IOScheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
	s.config.Loggers.Debugf("Scheduler %q closed", s.config.Name)
	return nil
}

func (s *IOScheduler) work(w *ioWorker, action func()) {
	defer s.wg.Done()

	for {
		s.config.run(action)

		s.mu.Lock()
		if s.closed {
			s.retire(w)
			s.mu.Unlock()
			return
		}
		s.idle = append(s.idle, w)
		s.mu.Unlock()

		next, ok := s.park(w)
		if !ok {
			return
		}
		action = next
	}
}

// park waits for the next task; ok is false when the worker retired.
func (s *IOScheduler) park(w *ioWorker) (action func(), ok bool) {
	timer := time.NewTimer(s.config.IdleTimeout)
	defer timer.Stop()

	select {
	case action = <-w.tasks:
		return action, true
	case <-timer.C:
	case <-s.done:
	}

	s.mu.Lock()
	if s.removeIdle(w) {
		s.retire(w)
		s.mu.Unlock()
		return nil, false
	}
	s.mu.Unlock()

	// Schedule claimed this worker before it could leave; the task is on its way.
	return <-w.tasks, true
}

// removeIdle must be called with s.mu held.
func (s *IOScheduler) removeIdle(w *ioWorker) bool {
	for i, idle := range s.idle {
		if idle == w {
			s.idle = append(s.idle[:i], s.idle[i+1:]...)
			return true
		}
	}
	return false
}

// retire must be called with s.mu held.
func (s *IOScheduler) retire(w *ioWorker) {
	s.live--
	s.config.Loggers.Debugf("Scheduler %q reclaimed worker %s", s.config.Name, w.id)
}

// ============================================================================
// 默认调度器
// ============================================================================

var (
	computationOnce    sync.Once
	computationDefault *PoolScheduler

	ioOnce    sync.Once
	ioDefault *IOScheduler

	singleOnce    sync.Once
	singleDefault *PoolScheduler
)

// Computation 返回进程级计算调度器，首次调用时创建且永不关闭
func Computation() Scheduler {
	computationOnce.Do(func() { computationDefault = NewComputationScheduler() })
	return computationDefault
}

// IO 返回进程级IO调度器，首次调用时创建且永不关闭
func IO() Scheduler {
	ioOnce.Do(func() { ioDefault = NewIOScheduler() })
	return ioDefault
}

// Single 返回进程级单线程调度器，首次调用时创建且永不关闭
func Single() Scheduler {
	singleOnce.Do(func() { singleDefault = NewSingleScheduler() })
	return singleDefault
}
