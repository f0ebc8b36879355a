package debugger

import (
	"fmt"

	"github.com/fansqz/debug-engine/constants"
)

// Start 开始调试
func (engine *Engine) Start() {
	if engine.State() == constants.DebuggerFinished {
		// 重新启动
		engine.dying.Store(false)
		engine.abortRequested = false
		engine.finished = NewTask[constants.DebuggerState]()
	}
	engine.watchHandler.ResetWatchers()
	engine.setInitialActionStates()
	if engine.registry != nil {
		engine.registry.Register(engine)
	}
	engine.setProgress(constants.ProgressStarted, false)
	engine.Transition(constants.EngineSetupRequested)
	engine.ShowMessage("CALL: SETUP ENGINE")
	engine.backend.SetupEngine()
}

func (engine *Engine) NotifyEngineSetupOk() {
	engine.ShowMessage("NOTE: ENGINE SETUP OK")
	engine.checkState("NotifyEngineSetupOk", constants.EngineSetupRequested)
	engine.setProgress(constants.ProgressSetupOk, false)
	engine.Transition(constants.EngineRunRequested)
}

func (engine *Engine) NotifyEngineSetupFailed() {
	engine.ShowMessage("NOTE: ENGINE SETUP FAILED")
	engine.checkState("NotifyEngineSetupFailed", constants.EngineSetupRequested)
	engine.Transition(constants.EngineSetupFailed)
	if engine.isPrimary {
		engine.ShowStatusMessage("Setup failed.")
		engine.setProgress(constants.ProgressFailed, true)
	}
	engine.Transition(constants.DebuggerFinished)
}

func (engine *Engine) NotifyEngineRunOkAndInferiorUnrunnable() {
	engine.ShowMessage("NOTE: INFERIOR UNRUNNABLE")
	engine.setProgress(constants.ProgressFinished, false)
	engine.ShowStatusMessage("Loading finished.")
	engine.checkState("NotifyEngineRunOkAndInferiorUnrunnable", constants.EngineRunRequested)
	engine.Transition(constants.InferiorUnrunnable)
}

func (engine *Engine) NotifyEngineRunFailed() {
	engine.ShowMessage("NOTE: ENGINE RUN FAILED")
	engine.checkState("NotifyEngineRunFailed", constants.EngineRunRequested)
	engine.setProgress(constants.ProgressFailed, true)
	engine.ShowStatusMessage("Run failed.")
	engine.Transition(constants.EngineRunFailed)
	engine.doShutdownEngine()
}

func (engine *Engine) NotifyEngineRunAndInferiorRunOk() {
	engine.ShowMessage("NOTE: ENGINE RUN AND INFERIOR RUN OK")
	engine.setProgress(constants.ProgressFinished, false)
	engine.ShowStatusMessage("Running.")
	engine.checkState("NotifyEngineRunAndInferiorRunOk", constants.EngineRunRequested)
	engine.Transition(constants.InferiorRunOk)
}

func (engine *Engine) NotifyEngineRunAndInferiorStopOk() {
	engine.ShowMessage("NOTE: ENGINE RUN AND INFERIOR STOP OK")
	engine.setProgress(constants.ProgressFinished, false)
	engine.ShowStatusMessage("Stopped.")
	engine.checkState("NotifyEngineRunAndInferiorStopOk", constants.EngineRunRequested)
	engine.Transition(constants.InferiorStopOk)
}

func (engine *Engine) NotifyInferiorRunRequested() {
	engine.ShowMessage("NOTE: INFERIOR RUN REQUESTED")
	engine.checkState("NotifyInferiorRunRequested", constants.InferiorStopOk)
	engine.ShowStatusMessage("Run requested...")
	engine.Transition(constants.InferiorRunRequested)
}

// NotifyInferiorRunOk 重复的通知会被忽略
func (engine *Engine) NotifyInferiorRunOk() {
	if engine.State() == constants.InferiorRunOk {
		engine.logger.Info("NOTE: INFERIOR RUN OK - REPEATED.")
		return
	}
	engine.ShowMessage("NOTE: INFERIOR RUN OK")
	engine.ShowStatusMessage("Running.")
	// StopRequested -> RunOk 在远程调试时可能出现
	engine.checkState("NotifyInferiorRunOk", constants.InferiorRunRequested,
		constants.InferiorStopOk, constants.InferiorStopRequested)
	engine.Transition(constants.InferiorRunOk)
}

func (engine *Engine) NotifyInferiorRunFailed() {
	engine.ShowMessage("NOTE: INFERIOR RUN FAILED")
	engine.checkState("NotifyInferiorRunFailed", constants.InferiorRunRequested)
	engine.Transition(constants.InferiorRunFailed)
	engine.Transition(constants.InferiorStopOk)
	if engine.IsDying() {
		engine.doShutdownInferior()
	}
}

// NotifyInferiorStopOk 程序按照请求停止
// 关闭流程中收到的停止通知会直接推进关闭流程
func (engine *Engine) NotifyInferiorStopOk() {
	engine.ShowMessage("NOTE: INFERIOR STOP OK")
	if engine.IsDying() {
		engine.ShowMessage("NOTE: ... WHILE DYING. ")
		if engine.statusManager.Is(constants.InferiorStopRequested,
			constants.InferiorRunRequested, constants.InferiorRunOk) {
			engine.ShowMessage("NOTE: ... FORWARDING TO 'STOP OK'. ")
			engine.Transition(constants.InferiorStopOk)
		}
		if engine.statusManager.Is(constants.InferiorStopOk, constants.InferiorStopFailed) {
			engine.doShutdownInferior()
		}
		engine.ShowMessage("NOTE: ... IGNORING STOP MESSAGE")
		return
	}
	engine.checkState("NotifyInferiorStopOk", constants.InferiorStopRequested)
	engine.ShowStatusMessage("Stopped.")
	engine.Transition(constants.InferiorStopOk)
}

// NotifyInferiorSpontaneousStop 程序自己停止，例如命中断点
func (engine *Engine) NotifyInferiorSpontaneousStop() {
	engine.ShowMessage("NOTE: INFERIOR SPONTANEOUS STOP")
	engine.checkState("NotifyInferiorSpontaneousStop", constants.InferiorRunOk)
	engine.ShowStatusMessage("Stopped.")
	engine.Transition(constants.InferiorStopOk)
}

func (engine *Engine) NotifyInferiorStopFailed() {
	engine.ShowMessage("NOTE: INFERIOR STOP FAILED")
	engine.checkState("NotifyInferiorStopFailed", constants.InferiorStopRequested)
	engine.Transition(constants.InferiorStopFailed)
	engine.doShutdownEngine()
}

func (engine *Engine) NotifyInferiorShutdownFinished() {
	engine.ShowMessage("INFERIOR FINISHED SHUT DOWN")
	engine.checkState("NotifyInferiorShutdownFinished", constants.InferiorShutdownRequested)
	engine.Transition(constants.InferiorShutdownFinished)
	engine.doShutdownEngine()
}

// NotifyInferiorIll 用户程序状态异常，几乎可以在任何状态下调用
func (engine *Engine) NotifyInferiorIll() {
	engine.ShowMessage("NOTE: INFERIOR ILL")
	engine.startDying()
	if engine.State() == constants.InferiorRunRequested {
		// 请求了运行但是没有收到回应，认为程序已经结束
		engine.Transition(constants.InferiorRunFailed)
		engine.Transition(constants.InferiorStopOk)
	}
	engine.doShutdownInferior()
}

func (engine *Engine) NotifyEngineShutdownFinished() {
	engine.ShowMessage("NOTE: ENGINE SHUTDOWN FINISHED")
	engine.checkState("NotifyEngineShutdownFinished", constants.EngineShutdownRequested)
	engine.Transition(constants.EngineShutdownFinished)
	engine.doFinishDebugger()
}

// NotifyEngineIll 调试后端异常
func (engine *Engine) NotifyEngineIll() {
	engine.ShowMessage("NOTE: ENGINE ILL ******")
	engine.startDying()
	switch engine.State() {
	case constants.InferiorRunRequested, constants.InferiorRunOk:
		// 尝试中断一次，中断失败同样会进入关闭流程
		engine.ForceTransition(constants.InferiorStopRequested)
		engine.ShowMessage("ATTEMPT TO INTERRUPT INFERIOR")
		engine.backend.InterruptInferior()
	case constants.InferiorStopRequested:
		engine.NotifyInferiorStopFailed()
	case constants.InferiorStopOk:
		engine.ShowMessage("FORWARDING STATE TO InferiorShutdownFinished")
		engine.ForceTransition(constants.InferiorShutdownFinished)
		engine.doShutdownEngine()
	default:
		engine.doShutdownEngine()
	}
}

// NotifyEngineSpontaneousShutdown 后端自己退出了
func (engine *Engine) NotifyEngineSpontaneousShutdown() {
	engine.ShowMessage("NOTE: ENGINE SPONTANEOUS SHUTDOWN")
	engine.ForceTransition(constants.EngineShutdownFinished)
	engine.doFinishDebugger()
}

// NotifyInferiorExited 用户程序正常退出
func (engine *Engine) NotifyInferiorExited(exitCode int) {
	engine.ShowMessage("NOTE: INFERIOR EXITED")
	engine.logger.Infof("inferior exited with code %d", exitCode)
	engine.ResetLocation()
	engine.Transition(constants.InferiorShutdownFinished)
	engine.doShutdownEngine()
}

// NotifyDebuggerProcessFinished 调试后端进程结束
func (engine *Engine) NotifyDebuggerProcessFinished(exitCode int) {
	engine.ShowMessage("NOTE: DEBUGGER PROCESS FINISHED")
	switch engine.State() {
	case constants.DebuggerFinished:
	case constants.EngineSetupRequested:
		engine.NotifyEngineSetupFailed()
	case constants.EngineShutdownRequested, constants.InferiorShutdownRequested:
		engine.NotifyEngineShutdownFinished()
	case constants.InferiorRunOk:
		// 可能是程序很快就退出了
		engine.ShowStatusMessage("The debugger process exited somewhat unexpectedly.")
		engine.NotifyEngineSpontaneousShutdown()
	default:
		engine.ShowStatusMessage(fmt.Sprintf("The debugger process exited unexpectedly (code %d)", exitCode))
		engine.NotifyInferiorIll()
	}
}
