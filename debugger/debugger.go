package debugger

import (
	"github.com/fansqz/debug-engine/constants"
)

// EngineBackend
// 一个具体的调试后端（例如脚本运行时的调试服务）需要实现的操作。
// 所有方法都在控制协程中被调用，且不能阻塞；操作的结果通过Engine的Notify*方法异步报告
type EngineBackend interface {
	// Kind 后端类型
	Kind() constants.EngineKind
	// Attach 绑定状态机，在New中调用一次
	Attach(engine *Engine)
	// SetupEngine 最终必须调用 NotifyEngineSetupOk 或 NotifyEngineSetupFailed
	SetupEngine()
	// ShutdownInferior 完成后调用 NotifyInferiorShutdownFinished
	ShutdownInferior()
	// ShutdownEngine 完成后调用 NotifyEngineShutdownFinished
	ShutdownEngine()
	// AbortEngine 第二次abort时调用，强制结束后端
	AbortEngine()
	// ContinueInferior 继续执行
	ContinueInferior()
	// InterruptInferior 发出中断请求，停止结果由后端的事件异步报告
	InterruptInferior()
	// ExecuteStepIn 单步进入
	ExecuteStepIn()
	// ExecuteStepOver 单步跳过
	ExecuteStepOver()
	// ExecuteStepOut 单步跳出
	ExecuteStepOut()
	// ExecuteRunToLine 运行到某一行，需要 RunToLineCapability
	ExecuteRunToLine(file string, line int)
	// ActivateFrame 切换当前栈帧
	ActivateFrame(index int)
	// InsertBreakpoint 插入断点，结果通过BreakpointHandler的Notify*方法报告
	InsertBreakpoint(bp *Breakpoint)
	RemoveBreakpoint(bp *Breakpoint)
	UpdateBreakpoint(bp *Breakpoint)
	// HasCapability 可选能力查询
	HasCapability(capability constants.Capability) bool
	// CompanionPreventsActions 协作引擎处于不兼容状态时返回true，此时禁用单步、继续等操作
	CompanionPreventsActions() bool
}

// Companion 协作引擎，状态机每次迁移之后都会调用协作引擎的UpdateState
type Companion interface {
	State() constants.DebuggerState
	UpdateState()
}

// BaseBackend 可选操作的空实现，具体后端内嵌它即可
type BaseBackend struct {
	engine *Engine
}

func (b *BaseBackend) Attach(engine *Engine) {
	b.engine = engine
}

// Engine 绑定的状态机
func (b *BaseBackend) Engine() *Engine {
	return b.engine
}

func (b *BaseBackend) AbortEngine() {}

func (b *BaseBackend) ExecuteRunToLine(file string, line int) {}

func (b *BaseBackend) ActivateFrame(index int) {}

func (b *BaseBackend) UpdateBreakpoint(bp *Breakpoint) {}

func (b *BaseBackend) HasCapability(capability constants.Capability) bool {
	return false
}

func (b *BaseBackend) CompanionPreventsActions() bool {
	return false
}
