package debugger

import (
	"github.com/fansqz/debug-engine/constants"
)

func (engine *Engine) doShutdownInferior() {
	if !IsAllowedTransition(engine.State(), constants.InferiorShutdownRequested) && !engine.IsDying() {
		engine.logger.Warnf("doShutdownInferior: unexpected state %s", engine.State())
	}
	engine.Transition(constants.InferiorShutdownRequested)
	engine.ResetLocation()
	engine.ShowMessage("CALL: SHUTDOWN INFERIOR")
	engine.backend.ShutdownInferior()
}

func (engine *Engine) doShutdownEngine() {
	if !IsAllowedTransition(engine.State(), constants.EngineShutdownRequested) && !engine.IsDying() {
		engine.logger.Warnf("doShutdownEngine: unexpected state %s", engine.State())
	}
	engine.Transition(constants.EngineShutdownRequested)
	engine.startDying()
	engine.ShowMessage("CALL: SHUTDOWN ENGINE")
	engine.backend.ShutdownEngine()
}

func (engine *Engine) doFinishDebugger() {
	engine.checkState("doFinishDebugger", constants.EngineShutdownFinished)
	engine.ResetLocation()
	engine.stackHandler.Clear()
	engine.watchHandler.Clear()
	engine.ShowStatusMessage("Debugger finished.")
	engine.Transition(constants.DebuggerFinished)
}

// QuitDebugger 结束调试，根据当前状态选择关闭流程的入口
func (engine *Engine) QuitDebugger() {
	engine.ShowMessage("QUIT DEBUGGER REQUESTED IN STATE " + engine.State().String())
	engine.startDying()
	switch engine.State() {
	case constants.InferiorStopOk, constants.InferiorStopFailed, constants.InferiorUnrunnable:
		engine.doShutdownInferior()
	case constants.InferiorRunOk:
		engine.Transition(constants.InferiorStopRequested)
		engine.ShowStatusMessage("Attempting to interrupt.")
		engine.backend.InterruptInferior()
	case constants.EngineSetupRequested:
		engine.NotifyEngineSetupFailed()
	case constants.EngineRunRequested:
		engine.NotifyEngineRunFailed()
	case constants.InferiorRunRequested, constants.InferiorRunFailed, constants.InferiorStopRequested:
		engine.NotifyInferiorIll()
	default:
		// 已经在关闭流程中，或者还没有启动
	}
}

// AbortDebugger 第一次调用正常退出，再次调用强制结束
func (engine *Engine) AbortDebugger() {
	engine.ResetLocation()
	if !engine.abortRequested && !engine.IsDying() {
		engine.abortRequested = true
		engine.ShowMessage("ABORTING DEBUGGER. FIRST TIME.")
		engine.QuitDebugger()
		return
	}
	engine.ShowMessage("ABORTING DEBUGGER. SECOND TIME.")
	engine.backend.AbortEngine()
	if engine.State() != constants.DebuggerFinished {
		engine.NotifyEngineSpontaneousShutdown()
	}
}

// RequestInterruptInferior 请求暂停正在运行的程序
func (engine *Engine) RequestInterruptInferior() {
	if !engine.isPrimary {
		engine.logger.Warn("RequestInterruptInferior called on a secondary engine")
	}
	engine.checkState("RequestInterruptInferior", constants.InferiorRunOk)
	engine.Transition(constants.InferiorStopRequested)
	engine.ShowMessage("CALL: INTERRUPT INFERIOR")
	engine.ShowStatusMessage("Attempting to interrupt.")
	engine.backend.InterruptInferior()
}
