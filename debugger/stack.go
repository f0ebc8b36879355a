package debugger

import (
	"sync"

	e "github.com/fansqz/debug-engine/error"
)

// StackHandler 保存最近一次停止时的调用栈
type StackHandler struct {
	lock         sync.RWMutex
	frames       []StackFrame
	currentIndex int
	// stale 程序已经继续运行，栈帧只用于展示
	stale bool
}

func NewStackHandler() *StackHandler {
	return &StackHandler{currentIndex: -1}
}

// SetFrames 替换栈帧，当前帧重置为第一帧
func (s *StackHandler) SetFrames(frames []StackFrame) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.frames = make([]StackFrame, len(frames))
	copy(s.frames, frames)
	s.stale = false
	if len(frames) == 0 {
		s.currentIndex = -1
	} else {
		s.currentIndex = 0
	}
}

func (s *StackHandler) Frames() []StackFrame {
	s.lock.RLock()
	defer s.lock.RUnlock()
	answer := make([]StackFrame, len(s.frames))
	copy(answer, s.frames)
	return answer
}

func (s *StackHandler) SetCurrentIndex(index int) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if index < 0 || index >= len(s.frames) {
		return e.ErrInvalidFrameIndex
	}
	s.currentIndex = index
	return nil
}

func (s *StackHandler) CurrentIndex() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.currentIndex
}

// CurrentFrame 当前栈帧
func (s *StackHandler) CurrentFrame() (StackFrame, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.currentIndex < 0 || s.currentIndex >= len(s.frames) {
		return StackFrame{}, false
	}
	return s.frames[s.currentIndex], true
}

func (s *StackHandler) FrameAt(index int) (StackFrame, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if index < 0 || index >= len(s.frames) {
		return StackFrame{}, e.ErrInvalidFrameIndex
	}
	return s.frames[index], nil
}

func (s *StackHandler) Clear() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.frames = nil
	s.currentIndex = -1
	s.stale = false
}

func (s *StackHandler) ScheduleResetLocation() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.stale = true
}

// ResetLocation 栈帧不再代表当前位置
func (s *StackHandler) ResetLocation() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.stale = true
	s.currentIndex = -1
}

func (s *StackHandler) IsStale() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.stale
}
