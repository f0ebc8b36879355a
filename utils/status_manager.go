package utils

import (
	"sync"

	"github.com/fansqz/debug-engine/constants"
)

// StatusManager 记录调试引擎的状态
// 状态只在控制协程中修改，读锁用于其他协程（例如DAP会话）读取状态
type StatusManager struct {
	lock   sync.RWMutex
	status constants.DebuggerState
}

func NewStatusManager() *StatusManager {
	return &StatusManager{
		status: constants.DebuggerNotReady,
	}
}

// Set 设置新状态并返回旧状态
func (s *StatusManager) Set(status constants.DebuggerState) constants.DebuggerState {
	defer s.lock.Unlock()
	s.lock.Lock()
	old := s.status
	s.status = status
	return old
}

func (s *StatusManager) Get() constants.DebuggerState {
	defer s.lock.RUnlock()
	s.lock.RLock()
	return s.status
}

func (s *StatusManager) Is(statusList ...constants.DebuggerState) bool {
	defer s.lock.RUnlock()
	s.lock.RLock()
	for _, status := range statusList {
		if s.status == status {
			return true
		}
	}
	return false
}
