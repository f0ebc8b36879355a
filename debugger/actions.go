package debugger

import (
	"github.com/fansqz/debug-engine/constants"
	e "github.com/fansqz/debug-engine/error"
)

// Actions 当前可以执行的用户操作
type Actions struct {
	Continue      bool `json:"continue"`
	Interrupt     bool `json:"interrupt"`
	StepIn        bool `json:"stepIn"`
	StepOver      bool `json:"stepOver"`
	StepOut       bool `json:"stepOut"`
	RunToLine     bool `json:"runToLine"`
	ActivateFrame bool `json:"activateFrame"`
	AddWatcher    bool `json:"addWatcher"`
	Abort         bool `json:"abort"`
	Reset         bool `json:"reset"`
	// Busy 引擎正在处理请求
	Busy bool `json:"busy"`
}

// Actions 可以在任意协程中调用
func (engine *Engine) Actions() Actions {
	engine.mu.RLock()
	defer engine.mu.RUnlock()
	return engine.actions
}

func (engine *Engine) setActions(actions Actions) {
	engine.mu.Lock()
	changed := engine.actions != actions
	engine.actions = actions
	engine.mu.Unlock()
	if changed {
		engine.Emit(&ActionsChangedEvent{Actions: actions})
	}
}

// setInitialActionStates 启动之前只有abort可以执行
func (engine *Engine) setInitialActionStates() {
	engine.setActions(Actions{Abort: true})
}

// UpdateState 根据当前状态重新计算可以执行的用户操作
// 协作引擎会在主引擎每次状态迁移之后调用它
func (engine *Engine) UpdateState() {
	state := engine.State()
	if engine.IsDying() {
		engine.setActions(Actions{Abort: state != constants.DebuggerFinished})
		return
	}
	companionPreventsActions := engine.backend.CompanionPreventsActions()
	stopped := state == constants.InferiorStopOk && !companionPreventsActions
	running := state == constants.InferiorRunOk && !companionPreventsActions
	enabled := debuggerActionsEnabled(state)

	engine.setActions(Actions{
		Continue:      stopped,
		Interrupt:     running,
		StepIn:        stopped,
		StepOver:      stopped,
		StepOut:       stopped,
		RunToLine:     stopped && engine.HasCapability(constants.RunToLineCapability),
		ActivateFrame: state == constants.InferiorStopOk || state == constants.InferiorUnrunnable,
		AddWatcher:    enabled && engine.HasCapability(constants.AddWatcherCapability),
		Abort:         state != constants.DebuggerNotReady && state != constants.DebuggerFinished,
		Reset:         enabled,
		Busy: !enabled && state != constants.DebuggerNotReady &&
			state != constants.DebuggerFinished,
	})
}

// HasCapability 后端或者启动参数声明了该能力
func (engine *Engine) HasCapability(capability constants.Capability) bool {
	return engine.backend.HasCapability(capability) || engine.params.HasCapability(capability)
}

func (engine *Engine) checkAction(allowed bool) error {
	if !allowed {
		return e.ErrActionNotAllowed
	}
	return nil
}

// ExecContinue 继续执行
func (engine *Engine) ExecContinue() error {
	if err := engine.checkAction(engine.Actions().Continue); err != nil {
		return err
	}
	engine.ScheduleResetLocation()
	engine.backend.ContinueInferior()
	return nil
}

func (engine *Engine) ExecStepIn() error {
	if err := engine.checkAction(engine.Actions().StepIn); err != nil {
		return err
	}
	engine.ScheduleResetLocation()
	engine.backend.ExecuteStepIn()
	return nil
}

func (engine *Engine) ExecStepOver() error {
	if err := engine.checkAction(engine.Actions().StepOver); err != nil {
		return err
	}
	engine.ScheduleResetLocation()
	engine.backend.ExecuteStepOver()
	return nil
}

func (engine *Engine) ExecStepOut() error {
	if err := engine.checkAction(engine.Actions().StepOut); err != nil {
		return err
	}
	engine.ScheduleResetLocation()
	engine.backend.ExecuteStepOut()
	return nil
}

// ExecRunToLine 运行到指定行
func (engine *Engine) ExecRunToLine(file string, line int) error {
	if !engine.HasCapability(constants.RunToLineCapability) {
		return e.ErrCapabilityNotSupported
	}
	if err := engine.checkAction(engine.Actions().RunToLine); err != nil {
		return err
	}
	engine.ScheduleResetLocation()
	engine.backend.ExecuteRunToLine(file, line)
	return nil
}

// ExecInterrupt 暂停正在运行的程序
func (engine *Engine) ExecInterrupt() error {
	if err := engine.checkAction(engine.Actions().Interrupt); err != nil {
		return err
	}
	engine.RequestInterruptInferior()
	return nil
}

// ActivateFrame 切换当前栈帧
func (engine *Engine) ActivateFrame(index int) error {
	if err := engine.checkAction(engine.Actions().ActivateFrame); err != nil {
		return err
	}
	if index < 0 || index >= len(engine.stackHandler.Frames()) {
		return e.ErrInvalidFrameIndex
	}
	engine.backend.ActivateFrame(index)
	return nil
}
