package rxcore

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingDisposable 记录Dispose调用次数
type countingDisposable struct {
	calls atomic.Int32
}

func (c *countingDisposable) Dispose()         { c.calls.Add(1) }
func (c *countingDisposable) IsDisposed() bool { return c.calls.Load() > 0 }

func TestDisposable(t *testing.T) {
	t.Run("Dispose runs the action once", func(t *testing.T) {
		calls := 0
		d := NewDisposable(func() { calls++ })
		assert.False(t, d.IsDisposed())

		d.Dispose()
		d.Dispose()

		assert.True(t, d.IsDisposed())
		assert.Equal(t, 1, calls)
	})

	t.Run("nil action", func(t *testing.T) {
		d := NewDisposable(nil)
		d.Dispose()
		assert.True(t, d.IsDisposed())
	})

	t.Run("Disposed is already disposed", func(t *testing.T) {
		d := Disposed()
		assert.True(t, d.IsDisposed())
		d.Dispose()
		assert.True(t, d.IsDisposed())
	})
}

func TestCompositeDisposable(t *testing.T) {
	t.Run("disposes every member exactly once", func(t *testing.T) {
		members := []*countingDisposable{{}, {}, {}}
		cd := NewCompositeDisposable()
		for _, m := range members {
			cd.Add(m)
		}
		require.Equal(t, 3, cd.Len())

		cd.Dispose()
		cd.Dispose()

		assert.True(t, cd.IsDisposed())
		assert.Equal(t, 0, cd.Len())
		for _, m := range members {
			assert.Equal(t, int32(1), m.calls.Load())
		}
	})

	t.Run("member added after dispose is disposed immediately", func(t *testing.T) {
		cd := NewCompositeDisposable()
		cd.Dispose()

		late := &countingDisposable{}
		cd.Add(late)

		assert.Equal(t, int32(1), late.calls.Load())
		assert.Equal(t, 0, cd.Len())

		cd.Dispose()
		assert.Equal(t, int32(1), late.calls.Load())
	})

	t.Run("constructor members", func(t *testing.T) {
		a, b := &countingDisposable{}, &countingDisposable{}
		cd := NewCompositeDisposable(a, b, nil)
		assert.Equal(t, 2, cd.Len())
		cd.Dispose()
		assert.True(t, a.IsDisposed())
		assert.True(t, b.IsDisposed())
	})

	t.Run("Delete removes without disposing", func(t *testing.T) {
		a, b := &countingDisposable{}, &countingDisposable{}
		cd := NewCompositeDisposable(a, b)

		assert.True(t, cd.Delete(a))
		assert.False(t, cd.Delete(a))
		cd.Dispose()

		assert.Equal(t, int32(0), a.calls.Load())
		assert.Equal(t, int32(1), b.calls.Load())
	})

	t.Run("member teardown may call back into the composite", func(t *testing.T) {
		cd := NewCompositeDisposable()
		late := &countingDisposable{}
		cd.Add(NewDisposable(func() { cd.Add(late) }))

		cd.Dispose()

		assert.Equal(t, int32(1), late.calls.Load())
	})

	t.Run("concurrent add and dispose", func(t *testing.T) {
		const n = 200
		cd := NewCompositeDisposable()
		members := make([]*countingDisposable, n)
		for i := range members {
			members[i] = &countingDisposable{}
		}

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(m *countingDisposable) {
				defer wg.Done()
				cd.Add(m)
			}(members[i])
			if i == n/2 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					cd.Dispose()
				}()
			}
		}
		wg.Wait()

		for i, m := range members {
			assert.Equal(t, int32(1), m.calls.Load(), "member %d", i)
		}
	})
}

func TestAssignableDisposable(t *testing.T) {
	t.Run("dispose after set disposes the current value", func(t *testing.T) {
		slot := NewAssignableDisposable()
		inner := &countingDisposable{}
		slot.Set(inner)
		assert.False(t, inner.IsDisposed())

		slot.Dispose()
		slot.Dispose()

		assert.True(t, slot.IsDisposed())
		assert.Equal(t, int32(1), inner.calls.Load())
	})

	t.Run("set after dispose disposes on arrival", func(t *testing.T) {
		slot := NewAssignableDisposable()
		slot.Dispose()

		inner := &countingDisposable{}
		slot.Set(inner)

		assert.Equal(t, int32(1), inner.calls.Load())
	})

	t.Run("pending slot", func(t *testing.T) {
		slot := NewAssignableDisposable()
		assert.False(t, slot.IsDisposed())
		slot.Dispose()
		assert.True(t, slot.IsDisposed())
	})
}

func TestObserverFuncs(t *testing.T) {
	var got []string
	o := ObserverFuncs[int]{
		Next:  func(item int) { got = append(got, "next") },
		Error: func(err error) { got = append(got, err.Error()) },
	}

	o.OnNext(1)
	o.OnError(errors.New("boom"))
	o.OnComplete()

	assert.Equal(t, []string{"next", "boom"}, got)
}

func TestCatch(t *testing.T) {
	t.Run("returned error", func(t *testing.T) {
		sentinel := errors.New("sentinel")
		assert.Equal(t, sentinel, catch(func() error { return sentinel }))
	})

	t.Run("panic with a value", func(t *testing.T) {
		err := catch(func() error { panic("kaboom") })

		var pe *PanicError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "kaboom", pe.Value)
		assert.NotEmpty(t, pe.Stack)
		assert.Contains(t, err.Error(), "kaboom")
		assert.Nil(t, pe.Unwrap())
	})

	t.Run("panic with an error", func(t *testing.T) {
		sentinel := errors.New("sentinel")
		err := catch(func() error { panic(sentinel) })
		assert.ErrorIs(t, err, sentinel)
	})
}
