package protocol

import "encoding/json"

// 调试服务支持的命令
const (
	CommandConnect           = "connect"
	CommandDisconnect        = "disconnect"
	CommandContinue          = "continue"
	CommandSetBreakpoint     = "setbreakpoint"
	CommandChangeBreakpoint  = "changebreakpoint"
	CommandClearBreakpoint   = "clearbreakpoint"
	CommandSetExceptionBreak = "setexceptionbreak"
	CommandBacktrace         = "backtrace"
	CommandFrame             = "frame"
	CommandScope             = "scope"
	CommandScripts           = "scripts"
	CommandVersion           = "version"
	CommandEvaluate          = "evaluate"
	CommandLookup            = "lookup"
)

// 断点类型
const (
	BreakpointScriptRegExp = "scriptRegExp"
	ExceptionBreakAll      = "all"
)

// Arguments 请求参数
type Arguments map[string]interface{}

// Request V8请求
//
//	{ "seq": <number>, "type": "request", "command": <command>, "arguments": {...} }
type Request struct {
	Seq       int       `json:"seq"`
	Type      string    `json:"type"`
	Command   string    `json:"command"`
	Arguments Arguments `json:"arguments"`
}

func NewRequest(seq int, command string, args Arguments) *Request {
	if args == nil {
		args = Arguments{}
	}
	return &Request{
		Seq:       seq,
		Type:      "request",
		Command:   command,
		Arguments: args,
	}
}

func (r *Request) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// ContinueArguments continue命令的参数，StepAction为空表示继续运行
func ContinueArguments(stepAction string) Arguments {
	args := Arguments{}
	if stepAction != "" {
		args["stepaction"] = stepAction
	}
	return args
}

// SetBreakpointArguments setbreakpoint命令的参数，line和column从1开始，为0时不设置
func SetBreakpointArguments(target string, enabled bool, line, column int, condition string, ignoreCount int) Arguments {
	args := Arguments{
		"type":    BreakpointScriptRegExp,
		"enabled": enabled,
		"target":  target,
	}
	if line > 0 {
		args["line"] = line - 1
	}
	if column > 0 {
		args["column"] = column - 1
	}
	if condition != "" {
		args["condition"] = condition
	}
	if ignoreCount != -1 {
		args["ignoreCount"] = ignoreCount
	}
	return args
}
