package constants

// DebugEventType 引擎向观察者广播的事件类型
type DebugEventType string

const (
	StateChangedEvent      DebugEventType = "stateChanged"
	EngineStartedEvent     DebugEventType = "engineStarted"
	EngineFinishedEvent    DebugEventType = "engineFinished"
	StatusMessageEvent     DebugEventType = "statusMessage"
	ProgressEvent          DebugEventType = "progress"
	ActionsChangedEvent    DebugEventType = "actionsChanged"
	OutputEvent            DebugEventType = "output"
	BreakpointChangedEvent DebugEventType = "breakpoint"
	StoppedEvent           DebugEventType = "stopped"
)

// BreakpointReasonType 断点改变类型
type BreakpointReasonType string

const (
	ChangeType  BreakpointReasonType = "changed"
	NewType     BreakpointReasonType = "new"
	RemovedType BreakpointReasonType = "removed"
)

// StoppedReasonType 程序停止类型
type StoppedReasonType string

const (
	BreakpointStopped StoppedReasonType = "breakpoint"
	StepStopped       StoppedReasonType = "step"
	PauseStopped      StoppedReasonType = "pause"
	ExceptionStopped  StoppedReasonType = "exception"
)

// StepAction 单步调试类型，Continue表示不单步
type StepAction string

const (
	Continue StepAction = "continue"
	StepIn   StepAction = "in"
	StepOut  StepAction = "out"
	StepOver StepAction = "next"
)

// OutputCategory 输出的来源
type OutputCategory string

const (
	StdoutOutput  OutputCategory = "stdout"
	ConsoleOutput OutputCategory = "console"
)

// Progress 启动进度的刻度，取值范围为 0 ~ 1000
const (
	ProgressStarted  = 0
	ProgressSetupOk  = 300
	ProgressFailed   = 900
	ProgressFinished = 1000
)
