package gosync

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

const loopQueueSize = 256

// Loop 控制协程，所有投递的函数按投递顺序在同一个协程中串行执行。
// 引擎的状态只在Loop中修改，传输层、计时器等其他协程通过Post把事件交给Loop处理
type Loop struct {
	tasks    chan func()
	done     chan struct{}
	stopOnce sync.Once
}

// NewLoop 创建并启动控制协程，ctx结束时Loop也会停止
func NewLoop(ctx context.Context) *Loop {
	l := &Loop{
		tasks: make(chan func(), loopQueueSize),
		done:  make(chan struct{}),
	}
	Go(ctx, l.run)
	return l
}

func (l *Loop) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return
		case <-l.done:
			return
		case task := <-l.tasks:
			l.runTask(task)
		}
	}
}

func (l *Loop) runTask(task func()) {
	defer func() {
		if err := recover(); err != nil {
			logrus.Errorf("[Loop] task panic: %v\n%s", err, debug.Stack())
		}
	}()
	task()
}

// Post 投递一个函数，Loop已经停止时返回false。
// 在Loop协程内部调用时，队列满了会一直阻塞，需要换到其他协程中投递
func (l *Loop) Post(task func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- task:
		return true
	case <-l.done:
		return false
	}
}

// Sync 投递一个函数并等待执行完成，不能在Loop协程内部调用
func (l *Loop) Sync(task func()) bool {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		task()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-l.done:
		return false
	}
}

// Stop 停止Loop，尚未执行的函数会被丢弃
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
	})
}

// Done Loop停止时关闭
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
