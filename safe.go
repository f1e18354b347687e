package rxcore

// Safe wraps observer so that it sees at most one terminal signal and no
// signal after it. Calls are serialized without holding a lock, so observer
// may dispose its subscription from inside a callback. Operators do not apply
// this guard themselves; it is opt-in for consumers that cannot trust their
// source. Dropped signals are reported through DefaultLoggers at Warn level.
func Safe[T any](observer Observer[T]) Observer[T] {
	if s, ok := observer.(*safeObserver[T]); ok {
		return s
	}
	return &safeObserver[T]{out: serializer[T]{downstream: observer, dropped: violation}}
}

type safeObserver[T any] struct {
	out serializer[T]
}

func (s *safeObserver[T]) OnNext(item T)     { s.out.next(item) }
func (s *safeObserver[T]) OnError(err error) { s.out.raise(err) }
func (s *safeObserver[T]) OnComplete()       { s.out.complete() }

func violation(kind signalKind) {
	loggers := DefaultLoggers()
	loggers.Warnf("Dropped %s delivered after a terminal signal", kind)
}
