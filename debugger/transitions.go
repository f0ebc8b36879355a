package debugger

import (
	"github.com/emirpasic/gods/sets"

	"github.com/fansqz/debug-engine/constants"
	"github.com/fansqz/debug-engine/utils"
)

// allowedTransitions 状态迁移表，表之外的迁移会打印诊断日志但仍然会执行
var allowedTransitions = map[constants.DebuggerState]sets.Set{
	constants.DebuggerNotReady: utils.List2set(
		constants.EngineSetupRequested,
	),
	constants.EngineSetupRequested: utils.List2set(
		constants.EngineRunRequested,
		constants.EngineSetupFailed,
		constants.EngineShutdownRequested,
	),
	constants.EngineSetupFailed: utils.List2set(
		constants.DebuggerFinished,
	),
	constants.EngineRunRequested: utils.List2set(
		constants.EngineRunFailed,
		constants.InferiorRunRequested,
		constants.InferiorRunOk,
		constants.InferiorStopOk,
		constants.InferiorUnrunnable,
	),
	constants.EngineRunFailed: utils.List2set(
		constants.EngineShutdownRequested,
	),
	constants.InferiorRunRequested: utils.List2set(
		constants.InferiorRunOk,
		constants.InferiorRunFailed,
	),
	constants.InferiorRunFailed: utils.List2set(
		constants.InferiorStopOk,
	),
	constants.InferiorRunOk: utils.List2set(
		constants.InferiorStopRequested,
		constants.InferiorStopOk,
		constants.InferiorShutdownFinished,
	),
	constants.InferiorStopRequested: utils.List2set(
		constants.InferiorStopOk,
		constants.InferiorStopFailed,
	),
	constants.InferiorStopOk: utils.List2set(
		constants.InferiorRunRequested,
		constants.InferiorShutdownRequested,
		constants.InferiorStopOk,
		constants.InferiorShutdownFinished,
	),
	constants.InferiorStopFailed: utils.List2set(
		constants.EngineShutdownRequested,
	),
	constants.InferiorUnrunnable: utils.List2set(
		constants.InferiorShutdownRequested,
	),
	constants.InferiorShutdownRequested: utils.List2set(
		constants.InferiorShutdownFinished,
	),
	constants.InferiorShutdownFinished: utils.List2set(
		constants.EngineShutdownRequested,
	),
	constants.EngineShutdownRequested: utils.List2set(
		constants.EngineShutdownFinished,
	),
	constants.EngineShutdownFinished: utils.List2set(
		constants.DebuggerFinished,
	),
	constants.DebuggerFinished: utils.List2set(
		constants.EngineSetupRequested,
	),
}

// IsAllowedTransition 判断 from -> to 是否在迁移表中
func IsAllowedTransition(from constants.DebuggerState, to constants.DebuggerState) bool {
	set, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return set.Contains(to)
}

// AllowedTransitions 返回from可以迁移到的状态
func AllowedTransitions(from constants.DebuggerState) []constants.DebuggerState {
	set, ok := allowedTransitions[from]
	if !ok {
		return nil
	}
	return utils.Set2list[constants.DebuggerState](set)
}

// debuggerActionsEnabled 只有这几个状态下用户可以操作调试器
func debuggerActionsEnabled(state constants.DebuggerState) bool {
	switch state {
	case constants.InferiorRunOk, constants.InferiorUnrunnable, constants.InferiorStopOk:
		return true
	}
	return false
}
