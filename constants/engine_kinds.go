package constants

// EngineKind 调试后端类型，创建引擎时根据该标记选择实现
type EngineKind string

const (
	EngineKindQml EngineKind = "qml"
)

// StartMode 启动方式
type StartMode string

const (
	// StartInternal 由调试器启动脚本运行时进程，然后连接其调试服务
	StartInternal StartMode = "internal"
	// AttachToRemoteServer 只连接一个已经在运行的调试服务
	AttachToRemoteServer StartMode = "attach"
)

// Capability 后端可选能力，调用可选操作之前需要先查询
type Capability uint32

const (
	ReverseSteppingCapability Capability = 1 << iota
	OperateByInstructionCapability
	AddWatcherCapability
	RunToLineCapability
	WatchComplexExpressionsCapability
	ChangeBreakpointCapability
	BreakConditionCapability
	BreakIndividualLocationsCapability
)
