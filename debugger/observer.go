package debugger

import (
	"sync"

	"github.com/fansqz/debug-engine/constants"
)

// Event 引擎广播给观察者的事件
type Event interface {
	Type() constants.DebugEventType
}

// Observer 事件观察者，在控制协程中同步调用，不能阻塞
type Observer func(event Event)

// StateChangedEvent 每次调用Transition或ForceTransition都会产生，状态未改变时Changed为false
type StateChangedEvent struct {
	From    constants.DebuggerState
	To      constants.DebuggerState
	Forced  bool
	Changed bool
}

func (e *StateChangedEvent) Type() constants.DebugEventType { return constants.StateChangedEvent }

// EngineStartedEvent 进入EngineRunRequested
type EngineStartedEvent struct{}

func (e *EngineStartedEvent) Type() constants.DebugEventType { return constants.EngineStartedEvent }

// EngineFinishedEvent 进入DebuggerFinished
type EngineFinishedEvent struct{}

func (e *EngineFinishedEvent) Type() constants.DebugEventType { return constants.EngineFinishedEvent }

type StatusMessageEvent struct {
	Message string
}

func (e *StatusMessageEvent) Type() constants.DebugEventType { return constants.StatusMessageEvent }

// ProgressEvent 启动进度，Value取值 0 ~ 1000
type ProgressEvent struct {
	Value    int
	Canceled bool
}

func (e *ProgressEvent) Type() constants.DebugEventType { return constants.ProgressEvent }

type ActionsChangedEvent struct {
	Actions Actions
}

func (e *ActionsChangedEvent) Type() constants.DebugEventType { return constants.ActionsChangedEvent }

// OutputEvent 用户程序或者调试器的输出
type OutputEvent struct {
	Category constants.OutputCategory
	Output   string
}

func (e *OutputEvent) Type() constants.DebugEventType { return constants.OutputEvent }

// BreakpointChangedEvent 断点状态发生改变
type BreakpointChangedEvent struct {
	Reason     constants.BreakpointReasonType
	Breakpoint Breakpoint
}

func (e *BreakpointChangedEvent) Type() constants.DebugEventType {
	return constants.BreakpointChangedEvent
}

// StoppedEvent 用户程序停止，由后端在停止通知之后发出
type StoppedEvent struct {
	Reason constants.StoppedReasonType
	Text   string
}

func (e *StoppedEvent) Type() constants.DebugEventType { return constants.StoppedEvent }

type observerEntry struct {
	id       int
	observer Observer
	// agent 随引擎结束一起解除注册
	agent bool
}

// observerList 观察者列表，添加和删除可以在任意协程中进行
type observerList struct {
	mu      sync.Mutex
	nextID  int
	entries []observerEntry
}

func (l *observerList) add(o Observer, agent bool) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	id := l.nextID
	l.entries = append(l.entries, observerEntry{id: id, observer: o, agent: agent})
	return func() { l.remove(id) }
}

func (l *observerList) remove(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, entry := range l.entries {
		if entry.id == id {
			l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
			return
		}
	}
}

// detachAgents 删除所有agent观察者
func (l *observerList) detachAgents() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.entries[:0:0]
	for _, entry := range l.entries {
		if !entry.agent {
			kept = append(kept, entry)
		}
	}
	removed := len(l.entries) - len(kept)
	l.entries = kept
	return removed
}

func (l *observerList) notify(event Event) {
	l.mu.Lock()
	entries := make([]observerEntry, len(l.entries))
	copy(entries, l.entries)
	l.mu.Unlock()
	for _, entry := range entries {
		entry.observer(event)
	}
}
