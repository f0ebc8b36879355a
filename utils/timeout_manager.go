package utils

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// TimeoutManager 一个单次触发、可重启的计时器
// 重复调用Start会重新计时，只有最后一次计时会触发。
// 到期的函数通过post投递到控制协程执行，投递之后如果计时器被Stop或者重启，该次执行会被丢弃
type TimeoutManager struct {
	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
	active     bool
	post       func(func())
}

// NewTimeoutManager 创建一个新的计时器实例，post为nil时在计时器协程中直接执行
func NewTimeoutManager(post func(func())) *TimeoutManager {
	if post == nil {
		post = func(f func()) { f() }
	}
	return &TimeoutManager{post: post}
}

// Start 开始计时，timeout之后执行fun
func (t *TimeoutManager) Start(timeout time.Duration, fun func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.generation++
	t.active = true
	gen := t.generation
	t.timer = time.AfterFunc(timeout, func() {
		t.post(func() {
			if !t.expire(gen) {
				return
			}
			logrus.Debugf("[TimeoutManager] Timer expired, performing action")
			fun()
		})
	})
}

func (t *TimeoutManager) expire(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.generation || !t.active {
		return false
	}
	t.active = false
	return true
}

// Stop 取消计时
func (t *TimeoutManager) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.generation++
	t.active = false
}

// IsActive 计时器是否在计时中
func (t *TimeoutManager) IsActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}
