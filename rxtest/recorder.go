// Package rxtest provides helpers for testing Observables.
package rxtest

import (
	"fmt"
	"sync"
	"time"
)

// Kind identifies a recorded signal.
type Kind int

const (
	// KindNext is an OnNext signal.
	KindNext Kind = iota + 1
	// KindError is an OnError signal.
	KindError
	// KindComplete is an OnComplete signal.
	KindComplete
)

// String returns the lowercase signal name.
func (k Kind) String() string {
	switch k {
	case KindNext:
		return "next"
	case KindError:
		return "error"
	case KindComplete:
		return "complete"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Event is one recorded signal.
type Event[T any] struct {
	Kind  Kind
	Value T
	Err   error
}

// String renders the event the way rxdemo prints signals.
func (e Event[T]) String() string {
	switch e.Kind {
	case KindNext:
		return fmt.Sprintf("next %v", e.Value)
	case KindError:
		return fmt.Sprintf("error %v", e.Err)
	default:
		return e.Kind.String()
	}
}

// Recorder records every signal it receives. It implements rxcore.Observer.
//
// Recorder is safe under concurrent calls. It does not enforce the terminal
// contract: extra terminal signals are recorded so tests can detect them.
type Recorder[T any] struct {
	mu     sync.Mutex
	events []Event[T]

	done     chan struct{}
	doneOnce sync.Once
}

// NewRecorder constructs an empty Recorder.
func NewRecorder[T any]() *Recorder[T] {
	return &Recorder[T]{done: make(chan struct{})}
}

// OnNext records an item.
func (r *Recorder[T]) OnNext(item T) {
	r.record(Event[T]{Kind: KindNext, Value: item})
}

// OnError records an error and marks the recorder done.
func (r *Recorder[T]) OnError(err error) {
	r.record(Event[T]{Kind: KindError, Err: err})
	r.doneOnce.Do(func() { close(r.done) })
}

// OnComplete records completion and marks the recorder done.
func (r *Recorder[T]) OnComplete() {
	r.record(Event[T]{Kind: KindComplete})
	r.doneOnce.Do(func() { close(r.done) })
}

func (r *Recorder[T]) record(e Event[T]) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Done returns a channel that is closed on the first terminal signal.
func (r *Recorder[T]) Done() <-chan struct{} {
	return r.done
}

// Await waits up to timeout for a terminal signal and reports whether one arrived.
func (r *Recorder[T]) Await(timeout time.Duration) bool {
	select {
	case <-r.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Events returns a snapshot copy of recorded events.
func (r *Recorder[T]) Events() []Event[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]Event[T], len(r.events))
	copy(cp, r.events)
	return cp
}

// Values returns the recorded OnNext items in arrival order.
func (r *Recorder[T]) Values() []T {
	evs := r.Events()
	out := make([]T, 0, len(evs))
	for _, e := range evs {
		if e.Kind == KindNext {
			out = append(out, e.Value)
		}
	}
	return out
}

// Errors returns the recorded OnError causes.
func (r *Recorder[T]) Errors() []error {
	var out []error
	for _, e := range r.Events() {
		if e.Kind == KindError {
			out = append(out, e.Err)
		}
	}
	return out
}

// Completions returns how many times OnComplete was called.
func (r *Recorder[T]) Completions() int {
	n := 0
	for _, e := range r.Events() {
		if e.Kind == KindComplete {
			n++
		}
	}
	return n
}

// Trace renders every event with Event.String.
func (r *Recorder[T]) Trace() []string {
	evs := r.Events()
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.String()
	}
	return out
}
