// Serialized signal delivery for rxcore
// 串行发射器：多个goroutine的信号排队，由一个goroutine在锁外依次交付
package rxcore

import (
	"sync"
)

type signalKind int

const (
	signalNext signalKind = iota
	signalError
	signalComplete
)

func (k signalKind) String() string {
	switch k {
	case signalNext:
		return "OnNext"
	case signalError:
		return "OnError"
	default:
		return "OnComplete"
	}
}

type signal[T any] struct {
	kind signalKind
	item T
	err  error
}

// serializer 串行化下游信号，从不在持锁时调用下游
//
// Signals are queued. The caller that finds the queue idle drains it and the
// others return at once, so downstream calls never overlap and a downstream
// may dispose or signal re-entrantly. Only the first terminal is accepted.
type serializer[T any] struct {
	downstream Observer[T]
	// dropped is called for each signal refused after a terminal.
	dropped func(kind signalKind)

	mu         sync.Mutex
	queue      []signal[T]
	emitting   bool
	terminated bool
}

func (s *serializer[T]) next(item T)     { s.emit(signal[T]{kind: signalNext, item: item}) }
func (s *serializer[T]) raise(err error) { s.emit(signal[T]{kind: signalError, err: err}) }
func (s *serializer[T]) complete()       { s.emit(signal[T]{kind: signalComplete}) }

func (s *serializer[T]) isTerminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

func (s *serializer[T]) emit(sig signal[T]) {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		if s.dropped != nil {
			s.dropped(sig.kind)
		}
		return
	}
	if sig.kind != signalNext {
		s.terminated = true
	}
	s.queue = append(s.queue, sig)
	if s.emitting {
		s.mu.Unlock()
		return
	}
	s.emitting = true
	s.mu.Unlock()

	s.drain()
}

func (s *serializer[T]) drain() {
	// A panicking downstream hands the queue back to the next emitter.
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.emitting = false
			s.mu.Unlock()
			panic(r)
		}
	}()

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.emitting = false
			s.mu.Unlock()
			return
		}
		sig := s.queue[0]
		s.queue[0] = signal[T]{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		switch sig.kind {
		case signalNext:
			s.downstream.OnNext(sig.item)
		case signalError:
			s.downstream.OnError(sig.err)
		default:
			s.downstream.OnComplete()
		}
	}
}
