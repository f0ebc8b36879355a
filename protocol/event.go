package protocol

// 调试服务的事件
const (
	EventBreak        = "break"
	EventException    = "exception"
	EventAfterCompile = "afterCompile"
)

// InternalFunction 运行时为绑定自动生成的包装函数所在行的源码
const InternalFunction = "(function(method) { return (function(object, data, qmlglobal) { return (function() { return method(object, data, qmlglobal, arguments.length, arguments); });});})"

// ScriptRef 脚本引用
type ScriptRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// BreakEventBody break事件
type BreakEventBody struct {
	InvocationText string    `json:"invocationText"`
	SourceLine     int       `json:"sourceLine"`
	SourceColumn   int       `json:"sourceColumn"`
	SourceLineText string    `json:"sourceLineText"`
	Script         ScriptRef `json:"script"`
	Breakpoints    []int     `json:"breakpoints"`
}

// ExceptionEventBody exception事件
type ExceptionEventBody struct {
	Uncaught       bool      `json:"uncaught"`
	SourceLine     int       `json:"sourceLine"`
	SourceColumn   int       `json:"sourceColumn"`
	SourceLineText string    `json:"sourceLineText"`
	Script         ScriptRef `json:"script"`
	Exception      struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"exception"`
}
