package constants

import "fmt"

// DebuggerState 调试引擎的状态
// 一个引擎在任意时刻只处于其中一个状态
type DebuggerState int

const (
	DebuggerNotReady DebuggerState = iota

	// 引擎启动阶段
	EngineSetupRequested
	EngineSetupFailed

	EngineRunRequested
	EngineRunFailed

	// InferiorUnrunnable 引擎可用但是被调试程序无法运行，例如只加载了core文件
	InferiorUnrunnable

	// 运行、暂停阶段
	InferiorRunRequested
	InferiorRunOk
	InferiorRunFailed

	InferiorStopRequested
	InferiorStopOk
	InferiorStopFailed

	// 关闭阶段
	InferiorShutdownRequested
	InferiorShutdownFinished

	EngineShutdownRequested
	EngineShutdownFinished

	DebuggerFinished
)

var stateNames = map[DebuggerState]string{
	DebuggerNotReady:          "DebuggerNotReady",
	EngineSetupRequested:      "EngineSetupRequested",
	EngineSetupFailed:         "EngineSetupFailed",
	EngineRunRequested:        "EngineRunRequested",
	EngineRunFailed:           "EngineRunFailed",
	InferiorUnrunnable:        "InferiorUnrunnable",
	InferiorRunRequested:      "InferiorRunRequested",
	InferiorRunOk:             "InferiorRunOk",
	InferiorRunFailed:         "InferiorRunFailed",
	InferiorStopRequested:     "InferiorStopRequested",
	InferiorStopOk:            "InferiorStopOk",
	InferiorStopFailed:        "InferiorStopFailed",
	InferiorShutdownRequested: "InferiorShutdownRequested",
	InferiorShutdownFinished:  "InferiorShutdownFinished",
	EngineShutdownRequested:   "EngineShutdownRequested",
	EngineShutdownFinished:    "EngineShutdownFinished",
	DebuggerFinished:          "DebuggerFinished",
}

func (s DebuggerState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("DebuggerState(%d)", int(s))
}

// AllDebuggerStates 按声明顺序返回所有状态
func AllDebuggerStates() []DebuggerState {
	states := make([]DebuggerState, 0, len(stateNames))
	for s := DebuggerNotReady; s <= DebuggerFinished; s++ {
		states = append(states, s)
	}
	return states
}
