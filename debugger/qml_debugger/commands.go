package qml_debugger

import (
	"context"
	"fmt"
	"strings"

	"github.com/fansqz/debug-engine/constants"
	"github.com/fansqz/debug-engine/debugger"
	e "github.com/fansqz/debug-engine/error"
	"github.com/fansqz/debug-engine/protocol"
)

const anonymousFunction = "Anonymous Function"

// continueDebugging 发送continue命令，action为Continue时不携带stepaction
func (q *QmlEngine) continueDebugging(action constants.StepAction) {
	stepAction := ""
	if action != constants.Continue {
		stepAction = string(action)
	}
	q.queue.RunCommand(protocol.CommandContinue, protocol.ContinueArguments(stepAction), nil)
	q.previousStepAction = action
}

func (q *QmlEngine) ContinueInferior() {
	engine := q.Engine()
	if engine.State() != constants.InferiorStopOk {
		engine.Logger().Warnf("ContinueInferior in state %s", engine.State())
	}
	q.continueDebugging(constants.Continue)
	engine.NotifyInferiorRunRequested()
	engine.NotifyInferiorRunOk()
}

func (q *QmlEngine) ExecuteStepIn() {
	q.step(constants.StepIn)
}

func (q *QmlEngine) ExecuteStepOver() {
	q.step(constants.StepOver)
}

func (q *QmlEngine) ExecuteStepOut() {
	q.step(constants.StepOut)
}

func (q *QmlEngine) step(action constants.StepAction) {
	engine := q.Engine()
	q.continueDebugging(action)
	engine.NotifyInferiorRunRequested()
	engine.NotifyInferiorRunOk()
}

func (q *QmlEngine) InterruptInferior() {
	engine := q.Engine()
	if engine.IsDying() {
		engine.NotifyInferiorStopOk()
		return
	}
	engine.ShowMessage(protocol.PacketInterrupt)
	q.queue.RunDirectCommand(protocol.PacketInterrupt, nil)
	engine.ShowStatusMessage("Waiting for JavaScript engine to interrupt on next statement.")
}

// ExecuteRunToLine 在目标行设置一个临时断点，然后继续运行
func (q *QmlEngine) ExecuteRunToLine(file string, line int) {
	engine := q.Engine()
	if engine.State() != constants.InferiorStopOk {
		engine.Logger().Warnf("ExecuteRunToLine in state %s", engine.State())
	}
	engine.ShowStatusMessage(fmt.Sprintf("Run to line %d (%s) requested...", line, file))
	q.setBreakpoint(file, true, line, 0, "", -1)
	q.continueDebugging(constants.Continue)
	engine.NotifyInferiorRunRequested()
	engine.NotifyInferiorRunOk()
}

func (q *QmlEngine) ActivateFrame(index int) {
	engine := q.Engine()
	state := engine.State()
	if state != constants.InferiorStopOk && state != constants.InferiorUnrunnable {
		return
	}
	stack := engine.StackHandler()
	if err := stack.SetCurrentIndex(index); err != nil {
		engine.Logger().Warnf("activate frame %d fail, err = %v", index, err)
		return
	}
	if frame, ok := stack.CurrentFrame(); ok {
		engine.GotoLocation(frameLocation(frame))
	}
	q.updateLocals()
}

func frameLocation(frame debugger.StackFrame) debugger.Location {
	return debugger.Location{
		File:     frame.File,
		Line:     frame.Line,
		Function: frame.Function,
	}
}

func (q *QmlEngine) backtrace() {
	q.queue.RunCommand(protocol.CommandBacktrace, nil, q.handleBacktrace)
}

func (q *QmlEngine) handleBacktrace(response *protocol.Message) {
	engine := q.Engine()
	body := &protocol.BacktraceBody{}
	if err := response.DecodeBody(body); err != nil {
		engine.Logger().Warnf("decode backtrace fail, err = %v", err)
		q.emitPendingStop()
		return
	}
	if body.FromFrame != 0 {
		engine.Logger().Warnf("backtrace starts from frame %d", body.FromFrame)
		q.emitPendingStop()
		return
	}

	frames := make([]debugger.StackFrame, 0, len(body.Frames))
	q.stackIndexLookup = map[int]int{}
	for _, frame := range body.Frames {
		stackFrame, ok := extractStackFrame(frame)
		if !ok {
			continue
		}
		stackFrame.Level = len(frames)
		q.stackIndexLookup[len(frames)] = *frame.Index
		frames = append(frames, stackFrame)
	}
	stack := engine.StackHandler()
	stack.SetFrames(frames)
	if len(frames) == 0 {
		q.emitPendingStop()
		return
	}
	_ = stack.SetCurrentIndex(0)
	q.updateLocals()
}

func (q *QmlEngine) emitPendingStop() {
	if q.pendingStop == nil {
		return
	}
	event := q.pendingStop
	q.pendingStop = nil
	q.Engine().Emit(event)
}

// extractStackFrame 运行时自动生成的包装函数不展示
func extractStackFrame(frame protocol.Frame) (debugger.StackFrame, bool) {
	if frame.Index == nil || frame.SourceLineText == protocol.InternalFunction {
		return debugger.StackFrame{}, false
	}
	stackFrame := debugger.StackFrame{
		Function: protocol.ExtractString(frame.Func),
		File:     protocol.ExtractString(frame.Script),
		Receiver: protocol.ExtractString(frame.Receiver),
		Line:     frame.Line + 1,
	}
	if stackFrame.Function == "" {
		stackFrame.Function = anonymousFunction
	}
	stackFrame.Usable = stackFrame.File != ""
	return stackFrame, true
}

// updateLocals 请求当前栈帧的数据，之前还没有完成的更新不再等待
func (q *QmlEngine) updateLocals() {
	current := q.Engine().StackHandler().CurrentIndex()
	if q.localsUpdated != nil {
		q.localsUpdated.Cancel()
	}
	q.localsUpdated = debugger.NewTask[int]()
	q.pendingScopes = 0
	q.queue.RunCommand(protocol.CommandFrame, protocol.Arguments{
		"number": q.stackIndexLookup[current],
	}, q.handleFrame)
}

// LocalsUpdated 当前栈帧的变量和作用域全部收到之后完成，只能在控制协程中调用
func (q *QmlEngine) LocalsUpdated() *debugger.Task[int] {
	if q.localsUpdated == nil {
		task := debugger.NewTask[int]()
		task.Complete(q.Engine().StackHandler().CurrentIndex(), nil)
		return task
	}
	return q.localsUpdated
}

func (q *QmlEngine) completeLocals() {
	if q.pendingScopes > 0 || q.localsUpdated == nil {
		return
	}
	q.localsUpdated.Complete(q.Engine().StackHandler().CurrentIndex(), nil)
}

// handleFrame 当前栈帧的变量，停止事件在变量更新之后发出
func (q *QmlEngine) handleFrame(response *protocol.Message) {
	engine := q.Engine()
	stack := engine.StackHandler()
	body := &protocol.Frame{}
	err := response.DecodeBody(body)
	// 栈帧已经切换，等待新的栈帧数据
	if err == nil && body.Index != nil && *body.Index != q.stackIndexLookup[stack.CurrentIndex()] {
		return
	}
	defer q.emitPendingStop()
	defer q.completeLocals()
	if err != nil {
		engine.Logger().Warnf("decode frame fail, err = %v", err)
		return
	}
	if stack.CurrentIndex() < 0 {
		return
	}
	frame, ok := stack.CurrentFrame()
	if !ok || !frame.Usable {
		return
	}

	locals := make([]debugger.Variable, 0, len(body.Arguments)+len(body.Locals)+1)
	if len(body.Receiver) != 0 {
		locals = append(locals, objectVariable("this", decodeObject(body.Receiver)))
	}
	for _, argument := range body.Arguments {
		locals = append(locals, propertyVariable(argument))
	}
	for _, local := range body.Locals {
		locals = append(locals, propertyVariable(local))
	}
	watch := engine.WatchHandler()
	watch.SetLocals(locals)

	q.currentFrameScopes = q.currentFrameScopes[:0]
	for _, scope := range body.Scopes {
		if scope.Type == protocol.ScopeGlobal {
			continue
		}
		q.currentFrameScopes = append(q.currentFrameScopes, scope.Index)
		q.pendingScopes++
		q.scope(scope.Index)
	}

	engine.GotoLocation(frameLocation(frame))

	for _, expression := range watch.Watchers() {
		expression := expression
		q.evaluate(expression, func(value string, err error) {
			if err != nil {
				value = err.Error()
			}
			watch.SetWatcherValue(expression, value)
		})
	}
}

func (q *QmlEngine) scope(number int) {
	q.queue.RunCommand(protocol.CommandScope, protocol.Arguments{
		"number": number,
	}, q.handleScope)
}

func (q *QmlEngine) handleScope(response *protocol.Message) {
	engine := q.Engine()
	if q.pendingScopes > 0 {
		q.pendingScopes--
		defer q.completeLocals()
	}
	body := &protocol.ScopeBody{}
	if err := response.DecodeBody(body); err != nil {
		engine.Logger().Warnf("decode scope fail, err = %v", err)
		return
	}
	// 栈帧已经切换，丢弃旧的作用域
	if body.FrameIndex != q.stackIndexLookup[engine.StackHandler().CurrentIndex()] {
		return
	}
	locals := make([]debugger.Variable, 0, len(body.Object.Properties))
	for _, property := range body.Object.Properties {
		name := protocol.ExtractString(property.Name)
		if name == "" || strings.HasPrefix(name, ".") {
			continue
		}
		locals = append(locals, objectVariable(name, property))
	}
	engine.WatchHandler().AddLocals(locals)
}

// evaluate 计算表达式，程序停止时在当前栈帧中计算
func (q *QmlEngine) evaluate(expression string, callback func(string, error)) {
	engine := q.Engine()
	if !q.unpausedEvaluate && engine.State() != constants.InferiorStopOk {
		callback("", e.ErrProgramIsRunningOptionFail)
		return
	}
	args := protocol.Arguments{"expression": expression}
	stack := engine.StackHandler()
	if frame, ok := stack.CurrentFrame(); ok && frame.Usable {
		args["frame"] = q.stackIndexLookup[stack.CurrentIndex()]
	}
	q.queue.RunCommand(protocol.CommandEvaluate, args, func(response *protocol.Message) {
		data := protocol.ObjectData{}
		if err := response.DecodeBody(&data); err != nil {
			callback("", fmt.Errorf("%w: %v", e.ErrEvaluateFailed, err))
			return
		}
		value := protocol.ExtractString(data.Value)
		if !response.Success {
			if value == "" {
				value = response.Message
			}
			callback("", fmt.Errorf("%w: %s", e.ErrEvaluateFailed, value))
			return
		}
		callback(value, nil)
	})
}

// Evaluate 计算表达式，需要在控制协程中调用
func (q *QmlEngine) Evaluate(expression string) *debugger.Task[string] {
	task := debugger.NewTask[string]()
	q.evaluate(expression, func(value string, err error) {
		task.Complete(value, err)
	})
	return task
}

// RunCommandTask 发送一个命令，返回等待响应的任务
func (q *QmlEngine) RunCommandTask(ctx context.Context, command string, args protocol.Arguments) *debugger.Task[*protocol.Message] {
	task := debugger.NewTask[*protocol.Message]()
	if ctx != nil {
		stop := context.AfterFunc(ctx, task.Cancel)
		task.OnDone(func(*protocol.Message, error) { stop() })
	}
	q.queue.RunCommand(command, args, func(response *protocol.Message) {
		task.Complete(response, nil)
	})
	return task
}

// ReloadSourceFiles 请求调试服务中的脚本列表
func (q *QmlEngine) ReloadSourceFiles() {
	q.queue.RunCommand(protocol.CommandScripts, protocol.Arguments{
		"types":         4,
		"includeSource": false,
	}, q.handleScripts)
}

func (q *QmlEngine) handleScripts(response *protocol.Message) {
	if !response.Success {
		return
	}
	var scripts []protocol.ScriptBody
	if err := response.DecodeBody(&scripts); err != nil {
		q.Engine().Logger().Warnf("decode scripts fail, err = %v", err)
		return
	}
	for _, script := range scripts {
		if script.Name == "" {
			continue
		}
		q.sourceFiles.Add(script.Name)
	}
}

func (q *QmlEngine) handleVersion(response *protocol.Message) {
	body := &protocol.VersionBody{}
	if err := response.DecodeBody(body); err != nil {
		q.Engine().Logger().Warnf("decode version fail, err = %v", err)
		return
	}
	q.unpausedEvaluate = body.UnpausedEvaluate
	q.contextEvaluate = body.ContextEvaluate
	q.supportChangeBreakpoint = body.ChangeBreakpoint
	q.Engine().ShowMessage(fmt.Sprintf("debug service version %s", body.V8Version))
}
