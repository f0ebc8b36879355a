package dapserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/go-dap"

	"github.com/fansqz/debug-engine/constants"
	"github.com/fansqz/debug-engine/debugger"
	e "github.com/fansqz/debug-engine/error"
)

// variablesReference 的编码：局部变量为 scopeLocalBase + 栈帧id，监视表达式使用固定值
const (
	scopeLocalBase = 1000
	scopeWatchRef  = 999
)

// threadID 脚本运行时只有一个线程
const threadID = 1

// exceptionFilterAll 抛出任何异常时停止
const exceptionFilterAll = "all"

// launchArguments launch和attach请求的参数
type launchArguments struct {
	// URL 运行时中调试服务的地址
	URL     string   `json:"url"`
	Program string   `json:"program"`
	Args    []string `json:"args"`
	Cwd     string   `json:"cwd"`
	Env     []string `json:"env"`
	// StopOnEntry 脚本运行时不支持，忽略
	StopOnEntry bool `json:"stopOnEntry"`
}

func (d *DebugSession) dispatchRequest(request dap.Message) {
	switch request := request.(type) {
	case *dap.InitializeRequest:
		d.onInitializeRequest(request)
	case *dap.LaunchRequest:
		d.onLaunchRequest(request)
	case *dap.AttachRequest:
		d.onAttachRequest(request)
	case *dap.SetBreakpointsRequest:
		d.onSetBreakpointsRequest(request)
	case *dap.SetExceptionBreakpointsRequest:
		d.onSetExceptionBreakpointsRequest(request)
	case *dap.ConfigurationDoneRequest:
		d.onConfigurationDoneRequest(request)
	case *dap.ThreadsRequest:
		d.onThreadsRequest(request)
	case *dap.ContinueRequest:
		d.onContinueRequest(request)
	case *dap.NextRequest:
		d.onNextRequest(request)
	case *dap.StepInRequest:
		d.onStepInRequest(request)
	case *dap.StepOutRequest:
		d.onStepOutRequest(request)
	case *dap.PauseRequest:
		d.onPauseRequest(request)
	case *dap.StackTraceRequest:
		d.onStackTraceRequest(request)
	case *dap.ScopesRequest:
		d.onScopesRequest(request)
	case *dap.VariablesRequest:
		d.onVariablesRequest(request)
	case *dap.EvaluateRequest:
		d.onEvaluateRequest(request)
	case *dap.TerminateRequest:
		d.onTerminateRequest(request)
	case *dap.DisconnectRequest:
		d.onDisconnectRequest(request)
	default:
		if req, ok := request.(dap.RequestMessage); ok {
			base := req.GetRequest()
			d.sendErrorResponse(base.Seq, base.Command, errorUnsupported,
				fmt.Sprintf("%s is not yet supported", base.Command))
			return
		}
		d.logger.Warnf("unable to process %#v", request)
	}
}

// -----------------------------------------------------------------------
// Request Handlers

func (d *DebugSession) onInitializeRequest(request *dap.InitializeRequest) {
	response := &dap.InitializeResponse{}
	response.Response = d.newResponse(request.Seq, request.Command)
	response.Body.SupportsConfigurationDoneRequest = true
	response.Body.SupportsConditionalBreakpoints = true
	response.Body.SupportsHitConditionalBreakpoints = true
	response.Body.SupportsTerminateRequest = true
	response.Body.SupportsEvaluateForHovers = true
	response.Body.ExceptionBreakpointFilters = []dap.ExceptionBreakpointsFilter{
		{Filter: exceptionFilterAll, Label: "All Exceptions"},
	}
	d.send(response)
	// 断点等配置请求可以在任意时刻发送，引擎接管断点之前只记录在断点模型中
	d.send(&dap.InitializedEvent{Event: d.newEvent("initialized")})
}

func (d *DebugSession) onLaunchRequest(request *dap.LaunchRequest) {
	args, err := parseLaunchArguments(request.Arguments)
	if err != nil {
		d.sendErrorResponse(request.Seq, request.Command, errorRequestFailed, err.Error())
		return
	}
	if args.Program == "" {
		d.sendErrorResponse(request.Seq, request.Command, errorRequestFailed, "program is required")
		return
	}
	if args.URL == "" {
		d.sendErrorResponse(request.Seq, request.Command, errorRequestFailed, "url is required")
		return
	}
	d.sync(func() {
		d.params.StartMode = constants.StartInternal
		d.applyLaunchArguments(args)
	})
	d.launched = true
	response := &dap.LaunchResponse{}
	response.Response = d.newResponse(request.Seq, request.Command)
	d.send(response)
	d.maybeStart()
}

func (d *DebugSession) onAttachRequest(request *dap.AttachRequest) {
	args, err := parseLaunchArguments(request.Arguments)
	if err != nil {
		d.sendErrorResponse(request.Seq, request.Command, errorRequestFailed, err.Error())
		return
	}
	if args.URL == "" {
		d.sendErrorResponse(request.Seq, request.Command, errorRequestFailed, "url is required")
		return
	}
	d.sync(func() {
		d.params.StartMode = constants.AttachToRemoteServer
		d.applyLaunchArguments(args)
	})
	d.launched = true
	response := &dap.AttachResponse{}
	response.Response = d.newResponse(request.Seq, request.Command)
	d.send(response)
	d.maybeStart()
}

func parseLaunchArguments(raw json.RawMessage) (*launchArguments, error) {
	args := &launchArguments{}
	if len(raw) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(raw, args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return args, nil
}

func (d *DebugSession) applyLaunchArguments(args *launchArguments) {
	d.params.ServerURL = args.URL
	d.params.Executable = args.Program
	d.params.Arguments = args.Args
	d.params.WorkingDir = args.Cwd
	d.params.Environment = args.Env
}

func (d *DebugSession) onSetBreakpointsRequest(request *dap.SetBreakpointsRequest) {
	file := request.Arguments.Source.Path
	if file == "" {
		file = request.Arguments.Source.Name
	}
	params := make([]debugger.BreakpointParameters, 0, len(request.Arguments.Breakpoints))
	for _, b := range request.Arguments.Breakpoints {
		params = append(params, debugger.BreakpointParameters{
			Line:        b.Line,
			Column:      b.Column,
			Condition:   b.Condition,
			IgnoreCount: parseHitCondition(b.HitCondition),
			Enabled:     true,
		})
	}

	response := &dap.SetBreakpointsResponse{}
	d.sync(func() {
		bps := d.engine.BreakHandler().SetFileBreakpoints(file, params)
		response.Body.Breakpoints = translateBreakpoints(bps)
	})
	response.Response = d.newResponse(request.Seq, request.Command)
	d.send(response)
}

// parseHitCondition 命中次数条件，只支持整数，表示忽略前n-1次命中
func parseHitCondition(condition string) int {
	if condition == "" {
		return -1
	}
	count, err := strconv.Atoi(condition)
	if err != nil || count <= 0 {
		return -1
	}
	return count - 1
}

func (d *DebugSession) onSetExceptionBreakpointsRequest(request *dap.SetExceptionBreakpointsRequest) {
	enabled := false
	for _, filter := range request.Arguments.Filters {
		if filter == exceptionFilterAll {
			enabled = true
		}
	}
	d.sync(func() {
		d.backend.SetExceptionBreak(enabled)
	})
	response := &dap.SetExceptionBreakpointsResponse{}
	response.Response = d.newResponse(request.Seq, request.Command)
	d.send(response)
}

func (d *DebugSession) onConfigurationDoneRequest(request *dap.ConfigurationDoneRequest) {
	d.configured = true
	response := &dap.ConfigurationDoneResponse{}
	response.Response = d.newResponse(request.Seq, request.Command)
	d.send(response)
	d.maybeStart()
}

func (d *DebugSession) onThreadsRequest(request *dap.ThreadsRequest) {
	response := &dap.ThreadsResponse{}
	response.Response = d.newResponse(request.Seq, request.Command)
	response.Body.Threads = []dap.Thread{{Id: threadID, Name: d.engine.Name()}}
	d.send(response)
}

// execute 在控制协程中执行一个调试动作
func (d *DebugSession) execute(action func() error) error {
	var err error
	if !d.sync(func() {
		err = action()
	}) {
		return e.ErrDebuggerIsClosed
	}
	return err
}

func (d *DebugSession) onContinueRequest(request *dap.ContinueRequest) {
	if err := d.execute(d.engine.ExecContinue); err != nil {
		d.sendErrorResponse(request.Seq, request.Command, errorRequestFailed, err.Error())
		return
	}
	response := &dap.ContinueResponse{}
	response.Response = d.newResponse(request.Seq, request.Command)
	response.Body.AllThreadsContinued = true
	d.send(response)
}

func (d *DebugSession) onNextRequest(request *dap.NextRequest) {
	if err := d.execute(d.engine.ExecStepOver); err != nil {
		d.sendErrorResponse(request.Seq, request.Command, errorRequestFailed, err.Error())
		return
	}
	response := &dap.NextResponse{}
	response.Response = d.newResponse(request.Seq, request.Command)
	d.send(response)
}

func (d *DebugSession) onStepInRequest(request *dap.StepInRequest) {
	if err := d.execute(d.engine.ExecStepIn); err != nil {
		d.sendErrorResponse(request.Seq, request.Command, errorRequestFailed, err.Error())
		return
	}
	response := &dap.StepInResponse{}
	response.Response = d.newResponse(request.Seq, request.Command)
	d.send(response)
}

func (d *DebugSession) onStepOutRequest(request *dap.StepOutRequest) {
	if err := d.execute(d.engine.ExecStepOut); err != nil {
		d.sendErrorResponse(request.Seq, request.Command, errorRequestFailed, err.Error())
		return
	}
	response := &dap.StepOutResponse{}
	response.Response = d.newResponse(request.Seq, request.Command)
	d.send(response)
}

func (d *DebugSession) onPauseRequest(request *dap.PauseRequest) {
	if err := d.execute(d.engine.ExecInterrupt); err != nil {
		d.sendErrorResponse(request.Seq, request.Command, errorRequestFailed, err.Error())
		return
	}
	response := &dap.PauseResponse{}
	response.Response = d.newResponse(request.Seq, request.Command)
	d.send(response)
}

func (d *DebugSession) onStackTraceRequest(request *dap.StackTraceRequest) {
	var frames []debugger.StackFrame
	d.sync(func() {
		frames = d.engine.StackHandler().Frames()
	})
	total := len(frames)

	start := request.Arguments.StartFrame
	if start < 0 || start > total {
		start = total
	}
	end := total
	if levels := request.Arguments.Levels; levels > 0 && start+levels < total {
		end = start + levels
	}

	response := &dap.StackTraceResponse{}
	response.Response = d.newResponse(request.Seq, request.Command)
	response.Body = dap.StackTraceResponseBody{
		StackFrames: translateStackFrames(frames[start:end], start),
		TotalFrames: total,
	}
	d.send(response)
}

// selectFrame 切换到index对应的栈帧，并等待它的变量更新完成
func (d *DebugSession) selectFrame(index int) error {
	var err error
	var task *debugger.Task[int]
	if !d.sync(func() {
		if index != d.engine.StackHandler().CurrentIndex() {
			if err = d.engine.ActivateFrame(index); err != nil {
				return
			}
		}
		task = d.backend.LocalsUpdated()
	}) {
		return e.ErrDebuggerIsClosed
	}
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(d.ctx, d.server.config.Engine.CommandTimeout)
	defer cancel()
	_, err = task.Wait(ctx)
	return err
}

func (d *DebugSession) onScopesRequest(request *dap.ScopesRequest) {
	frameID := request.Arguments.FrameId
	if err := d.selectFrame(frameID - 1); err != nil {
		d.sendErrorResponse(request.Seq, request.Command, errorRequestFailed, err.Error())
		return
	}
	var watchers int
	d.sync(func() {
		watchers = len(d.engine.WatchHandler().Watchers())
	})

	scopes := []dap.Scope{
		{Name: "Locals", PresentationHint: "locals", VariablesReference: scopeLocalBase + frameID},
	}
	if watchers > 0 {
		scopes = append(scopes, dap.Scope{Name: "Watch", VariablesReference: scopeWatchRef})
	}
	response := &dap.ScopesResponse{}
	response.Response = d.newResponse(request.Seq, request.Command)
	response.Body.Scopes = scopes
	d.send(response)
}

// onVariablesRequest 局部变量属于引用中编码的栈帧，需要时先切换栈帧
func (d *DebugSession) onVariablesRequest(request *dap.VariablesRequest) {
	ref := request.Arguments.VariablesReference
	index := ref - scopeLocalBase - 1
	if ref > scopeLocalBase {
		if err := d.selectFrame(index); err != nil {
			d.sendErrorResponse(request.Seq, request.Command, errorRequestFailed, err.Error())
			return
		}
	}
	variables := []dap.Variable{}
	d.sync(func() {
		watch := d.engine.WatchHandler()
		switch {
		case ref == scopeWatchRef:
			variables = translateWatchers(watch)
		case ref > scopeLocalBase && d.engine.StackHandler().CurrentIndex() == index:
			variables = translateVariables(watch.Locals())
		}
	})
	response := &dap.VariablesResponse{}
	response.Response = d.newResponse(request.Seq, request.Command)
	response.Body.Variables = variables
	d.send(response)
}

func (d *DebugSession) onEvaluateRequest(request *dap.EvaluateRequest) {
	expression := request.Arguments.Expression
	var task *debugger.Task[string]
	if !d.sync(func() {
		if request.Arguments.Context == "watch" {
			d.engine.WatchHandler().AddWatcher(expression)
		}
		task = d.backend.Evaluate(expression)
	}) {
		d.sendErrorResponse(request.Seq, request.Command, errorEvaluateFailed, e.ErrDebuggerIsClosed.Error())
		return
	}

	ctx, cancel := context.WithTimeout(d.ctx, d.server.config.Engine.CommandTimeout)
	defer cancel()
	value, err := task.Wait(ctx)
	if err != nil {
		task.Cancel()
		d.sendErrorResponse(request.Seq, request.Command, errorEvaluateFailed, err.Error())
		return
	}
	response := &dap.EvaluateResponse{}
	response.Response = d.newResponse(request.Seq, request.Command)
	response.Body.Result = value
	d.send(response)
}

func (d *DebugSession) onTerminateRequest(request *dap.TerminateRequest) {
	if d.started {
		d.sync(d.engine.QuitDebugger)
	}
	response := &dap.TerminateResponse{}
	response.Response = d.newResponse(request.Seq, request.Command)
	d.send(response)
	if !d.started {
		d.sendTerminated()
	}
}

func (d *DebugSession) onDisconnectRequest(request *dap.DisconnectRequest) {
	if d.started {
		d.sync(d.engine.QuitDebugger)
		if err := d.waitFinished(quitTimeout); err != nil {
			d.logger.Warnf("wait engine finished fail, err = %v", err)
		}
	}
	response := &dap.DisconnectResponse{}
	response.Response = d.newResponse(request.Seq, request.Command)
	d.send(response)
	d.sendTerminated()
	d.disconnected = true
}
