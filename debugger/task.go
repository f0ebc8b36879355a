package debugger

import (
	"context"
	"errors"
	"sync"

	e "github.com/fansqz/debug-engine/error"
	"github.com/fansqz/debug-engine/utils/gosync"
)

// ErrTaskPending 任务尚未完成
var ErrTaskPending = errors.New("task is pending")

// Task 一个异步操作的结果
// Complete只有第一次调用有效；Cancel表示调用者不再关心结果，之后的回调都会被丢弃
type Task[T any] struct {
	lock      sync.Mutex
	done      chan struct{}
	value     T
	err       error
	completed bool
	canceled  bool
	callbacks []func(T, error)
}

func NewTask[T any]() *Task[T] {
	return &Task[T]{done: make(chan struct{})}
}

// RunTask 在新的协程中执行fn，返回它的结果
func RunTask[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Task[T] {
	task := NewTask[T]()
	gosync.Go(ctx, func(ctx context.Context) {
		value, err := fn(ctx)
		task.Complete(value, err)
	})
	return task
}

// Complete 设置结果，返回是否是第一次设置
func (t *Task[T]) Complete(value T, err error) bool {
	t.lock.Lock()
	if t.completed || t.canceled {
		t.lock.Unlock()
		return false
	}
	t.completed = true
	t.value = value
	t.err = err
	callbacks := t.callbacks
	t.callbacks = nil
	close(t.done)
	t.lock.Unlock()

	for _, callback := range callbacks {
		callback(value, err)
	}
	return true
}

// Cancel 不再关心结果
func (t *Task[T]) Cancel() {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.completed || t.canceled {
		return
	}
	t.canceled = true
	t.callbacks = nil
	close(t.done)
}

// Done 完成或者取消时关闭
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

func (t *Task[T]) IsCanceled() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.canceled
}

// Result 任务的结果，未完成时返回ErrTaskPending
func (t *Task[T]) Result() (T, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	var zero T
	if t.canceled {
		return zero, e.ErrTaskCanceled
	}
	if !t.completed {
		return zero, ErrTaskPending
	}
	return t.value, t.err
}

// Wait 等待任务完成
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.Result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// OnDone 任务完成时调用callback，已经完成时立即调用，取消之后不再调用
func (t *Task[T]) OnDone(callback func(T, error)) {
	t.lock.Lock()
	if t.canceled {
		t.lock.Unlock()
		return
	}
	if !t.completed {
		t.callbacks = append(t.callbacks, callback)
		t.lock.Unlock()
		return
	}
	value, err := t.value, t.err
	t.lock.Unlock()
	callback(value, err)
}
