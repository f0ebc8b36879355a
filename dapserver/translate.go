package dapserver

import (
	"path/filepath"

	"github.com/google/go-dap"

	"github.com/fansqz/debug-engine/constants"
	"github.com/fansqz/debug-engine/debugger"
)

func translateSource(file string) *dap.Source {
	if file == "" {
		return nil
	}
	return &dap.Source{
		Name: filepath.Base(file),
		Path: file,
	}
}

// translateBreakpoint 已经插入的断点使用实际的位置
func translateBreakpoint(bp *debugger.Breakpoint) dap.Breakpoint {
	verified := bp.State == debugger.BreakpointInserted
	line := bp.Requested.Line
	if verified && bp.Actual.Line > 0 {
		line = bp.Actual.Line
	}
	answer := dap.Breakpoint{
		Id:       bp.ID,
		Verified: verified,
		Source:   translateSource(bp.Requested.FileName),
		Line:     line,
	}
	if bp.State == debugger.BreakpointFailed {
		answer.Message = "breakpoint could not be inserted"
	}
	return answer
}

func translateBreakpoints(bps []*debugger.Breakpoint) []dap.Breakpoint {
	answer := make([]dap.Breakpoint, 0, len(bps))
	for _, bp := range bps {
		answer = append(answer, translateBreakpoint(bp))
	}
	return answer
}

// translateStackFrames 栈帧id从1开始，等于栈帧下标加1
func translateStackFrames(frames []debugger.StackFrame, start int) []dap.StackFrame {
	answer := make([]dap.StackFrame, 0, len(frames))
	for i, frame := range frames {
		stackFrame := dap.StackFrame{
			Id:     start + i + 1,
			Name:   frame.Function,
			Source: translateSource(frame.File),
			Line:   frame.Line,
			Column: 1,
		}
		if !frame.Usable {
			stackFrame.PresentationHint = "subtle"
		}
		answer = append(answer, stackFrame)
	}
	return answer
}

func translateVariables(variables []debugger.Variable) []dap.Variable {
	answer := make([]dap.Variable, 0, len(variables))
	for _, v := range variables {
		answer = append(answer, dap.Variable{
			Name:  v.Name,
			Value: v.Value,
			Type:  v.Type,
		})
	}
	return answer
}

func translateWatchers(watch *debugger.WatchHandler) []dap.Variable {
	watchers := watch.Watchers()
	answer := make([]dap.Variable, 0, len(watchers))
	for _, expression := range watchers {
		value, _ := watch.WatcherValue(expression)
		answer = append(answer, dap.Variable{
			Name:         expression,
			Value:        value,
			EvaluateName: expression,
		})
	}
	return answer
}

func translateOutputCategory(category constants.OutputCategory) string {
	switch category {
	case constants.StdoutOutput:
		return "stdout"
	default:
		return "console"
	}
}
