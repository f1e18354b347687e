// Error handling for rxcore
// 错误定义与用户函数的异常汇集
package rxcore

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrSchedulerClosed 调度器已关闭
var ErrSchedulerClosed = errors.New("rxcore: scheduler closed")

// PanicError 用户函数panic后被恢复的错误
type PanicError struct {
	// Value 是recover()返回的值
	Value interface{}
	// Stack 是panic发生时的调用栈
	Stack []byte
}

// Error 实现error接口
func (e *PanicError) Error() string {
	return fmt.Sprintf("rxcore: recovered panic: %v", e.Value)
}

// Unwrap 当panic的值本身是error时返回它
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// catch 执行操作符中的用户函数，将返回的错误和panic统一为error
//
// Only the user function runs under recover; downstream callbacks must be
// invoked outside catch so their failures propagate to the caller.
func catch(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}
