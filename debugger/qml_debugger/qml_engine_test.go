package qml_debugger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fansqz/debug-engine/constants"
	"github.com/fansqz/debug-engine/debugger"
	e "github.com/fansqz/debug-engine/error"
	"github.com/fansqz/debug-engine/protocol"
)

func (h *testHelper) addBreakpoint(file string, line int) *debugger.Breakpoint {
	var bp *debugger.Breakpoint
	h.sync(func() {
		bp = h.engine.BreakHandler().Add(debugger.BreakpointParameters{
			FileName:    file,
			Line:        line,
			Enabled:     true,
			IgnoreCount: -1,
		})
	})
	return bp
}

// acceptBreakpoint 响应最近一次setbreakpoint
func acceptBreakpoint(h *testHelper, transport *fakeTransport, responseID, line int) {
	req := transport.lastRequest(protocol.CommandSetBreakpoint)
	require.NotNil(h.t, req)
	transport.respond(req, true, map[string]interface{}{
		"type":             protocol.BreakpointScriptRegExp,
		"breakpoint":       responseID,
		"line":             line,
		"actual_locations": []interface{}{map[string]interface{}{"line": line}},
	})
	h.flush()
}

func breakBody(line int, lineText string, breakpoints ...int) map[string]interface{} {
	if breakpoints == nil {
		breakpoints = []int{}
	}
	return map[string]interface{}{
		"invocationText": "onClicked()",
		"sourceLine":     line,
		"sourceColumn":   4,
		"sourceLineText": lineText,
		"script":         map[string]interface{}{"id": 1, "name": "main.qml"},
		"breakpoints":    breakpoints,
	}
}

func simpleBacktrace() map[string]interface{} {
	return map[string]interface{}{
		"fromFrame":   0,
		"toFrame":     1,
		"totalFrames": 1,
		"frames": []interface{}{
			map[string]interface{}{
				"index": 0, "func": "onClicked", "script": "main.qml", "line": 9, "sourceLineText": "foo()",
			},
		},
	}
}

// completeBacktrace 回复栈和栈帧请求，停止事件随之发出
func completeBacktrace(h *testHelper, transport *fakeTransport) {
	transport.respond(transport.lastRequest(protocol.CommandBacktrace), true, simpleBacktrace())
	h.flush()
	transport.respond(transport.lastRequest(protocol.CommandFrame), true, map[string]interface{}{"index": 0})
	h.flush()
}

// stopAtBreakpoint 运行到一个已经插入的断点并完成栈的更新
func stopAtBreakpoint(h *testHelper, transport *fakeTransport) *debugger.Breakpoint {
	bp := h.addBreakpoint("/src/app/main.qml", 10)
	acceptBreakpoint(h, transport, 7, 9)
	transport.event(protocol.EventBreak, breakBody(9, "foo()", 7))
	h.waitState(constants.InferiorStopOk)
	h.flush()
	completeBacktrace(h, transport)
	return bp
}

// TestConnectHandshake 连接建立之后的消息顺序
func TestConnectHandshake(t *testing.T) {
	h := newTestHelper(t, &fakeDialer{}, nil)
	bp := h.addBreakpoint("/src/app/main.qml", 10)
	assert.Equal(t, debugger.BreakpointNew, bp.State)

	transport := h.start()
	packets := transport.sent()
	require.NotEmpty(t, packets)
	assert.Equal(t, protocol.PacketConnect, packets[0].Type)
	assert.JSONEq(t, `{"redundantRefs":false,"namesAsObjects":false}`, string(packets[0].Payload))

	requests := transport.requests()
	require.Len(t, requests, 3)
	assert.Equal(t, protocol.CommandVersion, requests[0].Command)
	assert.Equal(t, protocol.CommandSetBreakpoint, requests[1].Command)
	assert.Equal(t, protocol.CommandScripts, requests[2].Command)
	for i, req := range requests {
		assert.Equal(t, i, req.Seq)
	}

	// 断点使用文件名，行号从0开始
	setbp := requests[1]
	assert.Equal(t, "main.qml", setbp.Arguments["target"])
	assert.Equal(t, protocol.BreakpointScriptRegExp, setbp.Arguments["type"])
	assert.Equal(t, true, setbp.Arguments["enabled"])
	assert.Equal(t, 9, intArg(setbp, "line"))
	assert.NotContains(t, setbp.Arguments, "column")
	assert.NotContains(t, setbp.Arguments, "ignoreCount")

	transport.respond(requests[0], true, map[string]interface{}{
		"V8Version": "6.0", "UnpausedEvaluate": true, "ContextEvaluate": true, "ChangeBreakpoint": true,
	})
	acceptBreakpoint(h, transport, 7, 9)
	transport.respond(requests[2], true, []interface{}{
		map[string]interface{}{"id": 1, "name": "main.qml"},
		map[string]interface{}{"id": 2, "name": ""},
		map[string]interface{}{"id": 3, "name": "util.js"},
	})
	h.flush()

	h.sync(func() {
		assert.True(t, h.backend.supportChangeBreakpoint)
		assert.True(t, h.backend.unpausedEvaluate)
		assert.Equal(t, debugger.BreakpointInserted, bp.State)
		assert.Equal(t, "7", bp.ResponseID)
		assert.Equal(t, 10, bp.Actual.Line)
		assert.Equal(t, []string{"main.qml", "util.js"}, h.backend.SourceFiles())
		assert.True(t, h.backend.IsConnected())
	})
}

// TestBreakOnBreakpoint 命中断点之后更新栈、局部变量和监视表达式
func TestBreakOnBreakpoint(t *testing.T) {
	h := newTestHelper(t, &fakeDialer{}, nil)
	transport := h.start()
	bp := h.addBreakpoint("/src/app/main.qml", 10)
	acceptBreakpoint(h, transport, 7, 9)
	h.sync(func() {
		h.engine.WatchHandler().AddWatcher("a + b")
	})

	transport.event(protocol.EventBreak, breakBody(9, "foo()", 7))
	h.waitState(constants.InferiorStopOk)
	h.flush()
	// 栈更新之前不发出停止事件
	assert.Empty(t, h.stoppedEvents())

	bt := transport.lastRequest(protocol.CommandBacktrace)
	require.NotNil(t, bt)
	transport.respond(bt, true, map[string]interface{}{
		"fromFrame":   0,
		"toFrame":     3,
		"totalFrames": 3,
		"frames": []interface{}{
			map[string]interface{}{"index": 0, "func": "onClicked", "script": "main.qml", "line": 9, "sourceLineText": "foo()"},
			map[string]interface{}{"index": 1, "func": "", "script": "main.qml", "line": 2, "sourceLineText": protocol.InternalFunction},
			map[string]interface{}{"index": 2, "func": "", "script": "util.js", "line": 4, "sourceLineText": "bar()"},
		},
	})
	h.flush()

	frames := h.engine.StackHandler().Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, "onClicked", frames[0].Function)
	assert.Equal(t, 10, frames[0].Line)
	assert.Equal(t, "Anonymous Function", frames[1].Function)
	assert.Equal(t, "util.js", frames[1].File)
	assert.Equal(t, 5, frames[1].Line)
	assert.Equal(t, 0, h.engine.StackHandler().CurrentIndex())
	assert.Empty(t, h.stoppedEvents())

	frameReq := transport.lastRequest(protocol.CommandFrame)
	require.NotNil(t, frameReq)
	assert.Equal(t, 0, intArg(frameReq, "number"))
	transport.respond(frameReq, true, map[string]interface{}{
		"index":     0,
		"receiver":  map[string]interface{}{"handle": 1, "type": "object", "value": "global"},
		"arguments": []interface{}{map[string]interface{}{"name": "x", "value": map[string]interface{}{"type": "number", "value": 3}}},
		"locals":    []interface{}{map[string]interface{}{"name": "s", "value": "abc"}},
		"scopes": []interface{}{
			map[string]interface{}{"type": 0, "index": 0},
			map[string]interface{}{"type": 1, "index": 1},
		},
	})
	h.flush()

	stopped := h.stoppedEvents()
	require.Len(t, stopped, 1)
	assert.Equal(t, constants.BreakpointStopped, stopped[0].Reason)

	scopes := transport.requestsOf(protocol.CommandScope)
	require.Len(t, scopes, 1)
	assert.Equal(t, 1, intArg(scopes[0], "number"))
	transport.respond(scopes[0], true, map[string]interface{}{
		"index":      1,
		"frameIndex": 0,
		"type":       1,
		"object": map[string]interface{}{
			"handle": 5,
			"properties": []interface{}{
				map[string]interface{}{"name": "y", "type": "number", "value": 4},
				map[string]interface{}{"name": ".hidden", "type": "number", "value": 1},
				map[string]interface{}{"name": "", "type": "number", "value": 2},
			},
		},
	})

	eval := transport.lastRequest(protocol.CommandEvaluate)
	require.NotNil(t, eval)
	assert.Equal(t, "a + b", eval.Arguments["expression"])
	assert.Equal(t, 0, intArg(eval, "frame"))
	transport.respond(eval, true, map[string]interface{}{"handle": 9, "type": "number", "value": 42})
	h.flush()

	assert.Equal(t, []debugger.Variable{
		{Name: "this", Type: "object", Value: "global"},
		{Name: "x", Type: "number", Value: "3"},
		{Name: "s", Type: "string", Value: "abc"},
		{Name: "y", Type: "number", Value: "4"},
	}, h.engine.WatchHandler().Locals())
	value, ok := h.engine.WatchHandler().WatcherValue("a + b")
	assert.True(t, ok)
	assert.Equal(t, "42", value)

	h.sync(func() {
		assert.True(t, bp.Hit)
		location := h.engine.Location()
		require.NotNil(t, location)
		assert.Equal(t, "main.qml", location.File)
		assert.Equal(t, 10, location.Line)
	})
}

// TestBreakWithoutBreakpointContinues 没有命中断点也没有单步时的停止被忽略
func TestBreakWithoutBreakpointContinues(t *testing.T) {
	h := newTestHelper(t, &fakeDialer{}, nil)
	transport := h.start()

	transport.event(protocol.EventBreak, breakBody(3, "foo()"))
	h.flush()

	assert.Equal(t, constants.InferiorRunOk, h.engine.State())
	continues := transport.requestsOf(protocol.CommandContinue)
	require.Len(t, continues, 1)
	assert.Empty(t, continues[0].Arguments)
	assert.Nil(t, transport.lastRequest(protocol.CommandBacktrace))
}

// TestBreakpointRelocation 命中绑定表达式的包装函数时把断点移到表达式开始的位置
func TestBreakpointRelocation(t *testing.T) {
	h := newTestHelper(t, &fakeDialer{}, nil)
	transport := h.start()
	bp := h.addBreakpoint("/src/app/main.qml", 10)
	acceptBreakpoint(h, transport, 7, 9)

	body := breakBody(9, "    (width * 2)", 7)
	body["invocationText"] = "[anonymous]()"
	transport.event(protocol.EventBreak, body)
	h.flush()

	assert.Equal(t, constants.InferiorRunOk, h.engine.State())
	clear := transport.lastRequest(protocol.CommandClearBreakpoint)
	require.NotNil(t, clear)
	assert.Equal(t, 7, intArg(clear, "breakpoint"))

	setbp := transport.lastRequest(protocol.CommandSetBreakpoint)
	assert.Equal(t, 9, intArg(setbp, "line"))
	assert.Equal(t, 4, intArg(setbp, "column"))
	assert.Len(t, transport.requestsOf(protocol.CommandContinue), 1)
	assert.Empty(t, h.stoppedEvents())

	acceptBreakpoint(h, transport, 8, 9)
	h.sync(func() {
		assert.Equal(t, "8", bp.ResponseID)
		assert.Equal(t, debugger.BreakpointInserted, bp.State)
	})
}

// TestInternalFunctionContinuesWithPreviousStep 停在运行时内部函数时按上一次的单步方式继续
func TestInternalFunctionContinuesWithPreviousStep(t *testing.T) {
	h := newTestHelper(t, &fakeDialer{}, nil)
	transport := h.start()
	stopAtBreakpoint(h, transport)

	h.sync(func() {
		require.NoError(t, h.engine.ExecStepOver())
	})
	assert.Equal(t, constants.InferiorRunOk, h.engine.State())

	transport.event(protocol.EventBreak, breakBody(2, protocol.InternalFunction))
	h.flush()
	assert.Equal(t, constants.InferiorRunOk, h.engine.State())

	steps := 0
	for _, req := range transport.requestsOf(protocol.CommandContinue) {
		if req.Arguments["stepaction"] == string(constants.StepOver) {
			steps++
		}
	}
	assert.Equal(t, 2, steps)

	transport.event(protocol.EventBreak, breakBody(10, "bar()"))
	h.waitState(constants.InferiorStopOk)
	h.flush()
	completeBacktrace(h, transport)

	stopped := h.stoppedEvents()
	require.Len(t, stopped, 2)
	assert.Equal(t, constants.StepStopped, stopped[1].Reason)
}

// TestInterruptAndRunToLine 暂停以及运行到指定行
func TestInterruptAndRunToLine(t *testing.T) {
	h := newTestHelper(t, &fakeDialer{}, nil)
	transport := h.start()

	h.sync(func() {
		require.NoError(t, h.engine.ExecInterrupt())
	})
	assert.Equal(t, constants.InferiorStopRequested, h.engine.State())
	packets := transport.sent()
	assert.Equal(t, protocol.PacketInterrupt, packets[len(packets)-1].Type)
	assert.Contains(t, h.statusMessages(), "Waiting for JavaScript engine to interrupt on next statement.")

	transport.event(protocol.EventBreak, breakBody(5, "foo()"))
	h.waitState(constants.InferiorStopOk)
	h.flush()
	completeBacktrace(h, transport)
	stopped := h.stoppedEvents()
	require.Len(t, stopped, 1)
	assert.Equal(t, constants.PauseStopped, stopped[0].Reason)

	h.sync(func() {
		require.NoError(t, h.engine.ExecRunToLine("/src/app/main.qml", 20))
	})
	assert.Equal(t, constants.InferiorRunOk, h.engine.State())
	assert.Contains(t, h.statusMessages(), "Run to line 20 (/src/app/main.qml) requested...")
	temp := transport.lastRequest(protocol.CommandSetBreakpoint)
	require.NotNil(t, temp)
	assert.Equal(t, "main.qml", temp.Arguments["target"])
	assert.Equal(t, 19, intArg(temp, "line"))

	// 不属于断点模型的断点是临时断点
	acceptBreakpoint(h, transport, 9, 19)
	h.sync(func() {
		assert.Equal(t, []string{"9"}, h.backend.breakpointsTemp)
	})

	transport.event(protocol.EventBreak, breakBody(19, "baz()", 9))
	h.waitState(constants.InferiorStopOk)
	h.flush()
	clear := transport.lastRequest(protocol.CommandClearBreakpoint)
	require.NotNil(t, clear)
	assert.Equal(t, 9, intArg(clear, "breakpoint"))
	h.sync(func() {
		assert.Empty(t, h.backend.breakpointsTemp)
	})
}

// TestConnectRetry 连接失败之后按间隔重试
func TestConnectRetry(t *testing.T) {
	dialer := &fakeDialer{failures: 2}
	h := newTestHelper(t, dialer, nil)
	h.start()
	assert.Equal(t, 3, dialer.attemptCount())
}

// TestConnectFailureFinishes 重试次数用完之后启动失败
func TestConnectFailureFinishes(t *testing.T) {
	dialer := &fakeDialer{failures: 100}
	h := newTestHelper(t, dialer, func(params *debugger.RunParameters) {
		params.ConnectRetries = 1
	})
	h.sync(h.engine.Start)
	h.waitState(constants.DebuggerFinished)
	h.flush()

	assert.Equal(t, 2, dialer.attemptCount())
	assert.Contains(t, h.statusMessages(), "Run failed.")
	_, err := h.engine.Finished().Wait(context.Background())
	assert.NoError(t, err)
}

// TestConnectionLostWhileRunning 连接异常断开时结束调试
func TestConnectionLostWhileRunning(t *testing.T) {
	h := newTestHelper(t, &fakeDialer{}, nil)
	transport := h.start()

	transport.handler.OnClosed(errors.Join(e.ErrConnectionFailed, errors.New("connection reset")))
	h.waitState(constants.DebuggerFinished)
	h.flush()

	statuses := h.statusMessages()
	assert.Contains(t, statuses, "QML Debugger: Connection failed.")
	assert.Equal(t, "Debugger finished.", statuses[len(statuses)-1])
	assert.True(t, h.engine.IsDying())
}

// TestOrderlyDisconnect 调试服务正常关闭连接，认为程序已经退出
func TestOrderlyDisconnect(t *testing.T) {
	h := newTestHelper(t, &fakeDialer{}, nil)
	transport := h.start()

	transport.handler.OnClosed(nil)
	h.waitState(constants.DebuggerFinished)
	h.flush()
	assert.Contains(t, h.statusMessages(), "QML Debugger disconnected.")
}

// TestQuitWhileRunning 运行时退出会先发送disconnect再关闭连接
func TestQuitWhileRunning(t *testing.T) {
	h := newTestHelper(t, &fakeDialer{}, nil)
	transport := h.start()

	h.sync(h.engine.QuitDebugger)
	assert.Equal(t, constants.DebuggerFinished, h.engine.State())
	assert.NotNil(t, transport.lastRequest(protocol.CommandDisconnect))
	assert.True(t, transport.isClosed())

	// 关闭之后收到的消息被忽略
	transport.event(protocol.EventBreak, breakBody(3, "foo()", 1))
	h.flush()
	assert.Equal(t, constants.DebuggerFinished, h.engine.State())
}

// TestExceptionStops 运行中抛出异常时停止
func TestExceptionStops(t *testing.T) {
	h := newTestHelper(t, &fakeDialer{}, nil)
	transport := h.start()

	transport.event(protocol.EventException, map[string]interface{}{
		"uncaught":   true,
		"sourceLine": 4,
		"script":     map[string]interface{}{"id": 1, "name": "main.qml"},
		"exception":  map[string]interface{}{"type": "error", "text": "TypeError: x is undefined"},
	})
	h.waitState(constants.InferiorStopOk)
	h.flush()
	assert.True(t, h.hasWarning("main.qml:5: TypeError: x is undefined"))

	completeBacktrace(h, transport)
	assert.Len(t, transport.requestsOf(protocol.CommandBacktrace), 1)
	stopped := h.stoppedEvents()
	require.Len(t, stopped, 1)
	assert.Equal(t, constants.ExceptionStopped, stopped[0].Reason)
}

// TestEventWithoutType 没有事件类型的消息输出到控制台
func TestEventWithoutType(t *testing.T) {
	h := newTestHelper(t, &fakeDialer{}, nil)
	transport := h.start()

	transport.push(map[string]interface{}{
		"type":    protocol.TypeEvent,
		"event":   "",
		"message": "ReferenceError: foo is not defined",
	})
	h.flush()

	found := false
	h.lock.Lock()
	for _, event := range h.events {
		if output, ok := event.(*debugger.OutputEvent); ok &&
			output.Category == constants.ConsoleOutput && output.Output == "ReferenceError: foo is not defined\n" {
			found = true
		}
	}
	h.lock.Unlock()
	assert.True(t, found)
}

// TestUpdateBreakpoint 支持changebreakpoint时直接修改，失败时恢复
func TestUpdateBreakpoint(t *testing.T) {
	h := newTestHelper(t, &fakeDialer{}, nil)
	transport := h.start()
	h.sync(func() {
		h.backend.supportChangeBreakpoint = true
	})
	bp := h.addBreakpoint("/src/app/main.qml", 10)
	acceptBreakpoint(h, transport, 7, 9)

	h.sync(func() {
		params := bp.Requested
		params.Enabled = false
		h.engine.BreakHandler().RequestUpdate(bp, params)
		assert.Equal(t, debugger.BreakpointInserted, bp.State)
		assert.False(t, bp.Actual.Enabled)
	})
	change := transport.lastRequest(protocol.CommandChangeBreakpoint)
	require.NotNil(t, change)
	assert.Equal(t, 7, intArg(change, "breakpoint"))
	assert.Equal(t, false, change.Arguments["enabled"])

	transport.respond(change, false, nil)
	h.flush()
	h.sync(func() {
		assert.True(t, bp.Actual.Enabled)
	})
}

// TestUpdateBreakpointWithoutChange 不支持changebreakpoint时先删除再设置
func TestUpdateBreakpointWithoutChange(t *testing.T) {
	h := newTestHelper(t, &fakeDialer{}, nil)
	transport := h.start()
	bp := h.addBreakpoint("/src/app/main.qml", 10)
	acceptBreakpoint(h, transport, 7, 9)

	h.sync(func() {
		params := bp.Requested
		params.Condition = "x > 1"
		h.engine.BreakHandler().RequestUpdate(bp, params)
	})
	assert.Nil(t, transport.lastRequest(protocol.CommandChangeBreakpoint))
	clear := transport.lastRequest(protocol.CommandClearBreakpoint)
	require.NotNil(t, clear)
	assert.Equal(t, 7, intArg(clear, "breakpoint"))
	setbp := transport.lastRequest(protocol.CommandSetBreakpoint)
	assert.Equal(t, "x > 1", setbp.Arguments["condition"])

	acceptBreakpoint(h, transport, 11, 9)
	h.sync(func() {
		assert.Equal(t, "11", bp.ResponseID)
		assert.Equal(t, "x > 1", bp.Actual.Condition)
	})
}

// TestRemoveBreakpoint 删除断点
func TestRemoveBreakpoint(t *testing.T) {
	h := newTestHelper(t, &fakeDialer{}, nil)
	transport := h.start()
	bp := h.addBreakpoint("/src/app/main.qml", 10)
	acceptBreakpoint(h, transport, 7, 9)

	h.sync(func() {
		h.engine.BreakHandler().RequestRemove(bp)
		assert.Equal(t, 0, h.engine.BreakHandler().Len())
	})
	clear := transport.lastRequest(protocol.CommandClearBreakpoint)
	require.NotNil(t, clear)
	assert.Equal(t, 7, intArg(clear, "breakpoint"))
}

// TestRemoveBreakpointBeforeInserted setbreakpoint的响应返回之前删除断点，收到响应之后清除服务端的断点
func TestRemoveBreakpointBeforeInserted(t *testing.T) {
	h := newTestHelper(t, &fakeDialer{}, nil)
	transport := h.start()
	bp := h.addBreakpoint("/src/app/main.qml", 10)
	require.NotNil(t, transport.lastRequest(protocol.CommandSetBreakpoint))

	h.sync(func() {
		h.engine.BreakHandler().RequestRemove(bp)
		assert.Equal(t, debugger.BreakpointRemoveRequested, bp.State)
		assert.Equal(t, 1, h.engine.BreakHandler().Len())
	})
	assert.Nil(t, transport.lastRequest(protocol.CommandClearBreakpoint))
	h.lock.Lock()
	before := len(h.events)
	h.lock.Unlock()

	acceptBreakpoint(h, transport, 7, 9)
	clear := transport.lastRequest(protocol.CommandClearBreakpoint)
	require.NotNil(t, clear)
	assert.Equal(t, 7, intArg(clear, "breakpoint"))
	h.sync(func() {
		assert.Equal(t, debugger.BreakpointRemoved, bp.State)
		assert.Equal(t, 0, h.engine.BreakHandler().Len())
		assert.Nil(t, h.engine.BreakHandler().FindByResponseID("7"))
	})
	var reasons []constants.BreakpointReasonType
	h.lock.Lock()
	for _, event := range h.events[before:] {
		if changed, ok := event.(*debugger.BreakpointChangedEvent); ok && changed.Breakpoint.ID == bp.ID {
			reasons = append(reasons, changed.Reason)
		}
	}
	h.lock.Unlock()
	assert.Equal(t, []constants.BreakpointReasonType{constants.RemovedType}, reasons)

	// clearbreakpoint生效之前服务端仍然可能停在这个断点上
	transport.event(protocol.EventBreak, breakBody(9, "foo()", 7))
	h.flush()
	assert.Equal(t, constants.InferiorRunOk, h.engine.State())
	assert.Len(t, transport.requestsOf(protocol.CommandContinue), 1)
	assert.Empty(t, h.stoppedEvents())
}

// TestUpdateBreakpointWithInvalidID 断点ID不合法时不发送changebreakpoint，改为重新设置
func TestUpdateBreakpointWithInvalidID(t *testing.T) {
	h := newTestHelper(t, &fakeDialer{}, nil)
	transport := h.start()
	h.sync(func() {
		h.backend.supportChangeBreakpoint = true
	})
	bp := h.addBreakpoint("/src/app/main.qml", 10)
	acceptBreakpoint(h, transport, 7, 9)
	setCount := len(transport.requestsOf(protocol.CommandSetBreakpoint))

	h.sync(func() {
		bp.ResponseID = "bad"
		params := bp.Requested
		params.Enabled = false
		h.engine.BreakHandler().RequestUpdate(bp, params)
	})
	assert.Nil(t, transport.lastRequest(protocol.CommandChangeBreakpoint))
	assert.Len(t, transport.requestsOf(protocol.CommandSetBreakpoint), setCount+1)
	setbp := transport.lastRequest(protocol.CommandSetBreakpoint)
	assert.Equal(t, false, setbp.Arguments["enabled"])

	acceptBreakpoint(h, transport, 11, 9)
	h.sync(func() {
		assert.Equal(t, "11", bp.ResponseID)
		assert.Equal(t, debugger.BreakpointInserted, bp.State)
	})
}

// TestEvaluate 计算表达式
func TestEvaluate(t *testing.T) {
	h := newTestHelper(t, &fakeDialer{}, nil)
	transport := h.start()

	var running *debugger.Task[string]
	h.sync(func() {
		running = h.backend.Evaluate("1 + 1")
	})
	_, err := running.Result()
	assert.ErrorIs(t, err, e.ErrProgramIsRunningOptionFail)

	stopAtBreakpoint(h, transport)

	var task *debugger.Task[string]
	h.sync(func() {
		task = h.backend.Evaluate("1 + 1")
	})
	transport.respond(transport.lastRequest(protocol.CommandEvaluate), true,
		map[string]interface{}{"handle": 3, "type": "number", "value": 2})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	value, err := task.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2", value)

	h.sync(func() {
		task = h.backend.Evaluate("nope")
	})
	transport.respond(transport.lastRequest(protocol.CommandEvaluate), false,
		map[string]interface{}{"type": "string", "value": "ReferenceError: nope is not defined"})
	_, err = task.Wait(ctx)
	assert.ErrorIs(t, err, e.ErrEvaluateFailed)
	assert.Contains(t, err.Error(), "ReferenceError")
}

// TestCompanionPreventsActions 协作引擎不在运行时禁止操作
func TestCompanionPreventsActions(t *testing.T) {
	h := newTestHelper(t, &fakeDialer{}, nil)
	assert.False(t, h.backend.CompanionPreventsActions())

	companion := &stateCompanion{state: constants.InferiorStopOk}
	h.sync(func() {
		h.engine.AddCompanionEngine(companion)
	})
	assert.True(t, h.backend.CompanionPreventsActions())
	companion.state = constants.InferiorRunOk
	assert.False(t, h.backend.CompanionPreventsActions())

	assert.True(t, h.backend.HasCapability(constants.RunToLineCapability))
	assert.True(t, h.backend.HasCapability(constants.AddWatcherCapability))
}

type stateCompanion struct {
	state constants.DebuggerState
}

func (c *stateCompanion) State() constants.DebuggerState {
	return c.state
}

func (c *stateCompanion) UpdateState() {}

type fakeProcess struct {
	exited  *debugger.Task[int]
	input   []string
	stopped bool
}

func (p *fakeProcess) Exited() *debugger.Task[int] {
	return p.exited
}

func (p *fakeProcess) Write(input string) error {
	p.input = append(p.input, input)
	return nil
}

func (p *fakeProcess) Stop() error {
	p.stopped = true
	p.exited.Complete(-1, nil)
	return nil
}

type fakeLauncher struct {
	process *fakeProcess
	output  func(string)
	err     error
	// exitedAtLaunch 返回的进程已经退出
	exitedAtLaunch bool
}

func (l *fakeLauncher) Launch(ctx context.Context, params *debugger.RunParameters, output func(string)) (Process, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.output = output
	l.process = &fakeProcess{exited: debugger.NewTask[int]()}
	if l.exitedAtLaunch {
		l.process.exited.Complete(1, nil)
	}
	return l.process, nil
}

// TestStartInternal 启动进程之后连接，进程退出时结束调试
func TestStartInternal(t *testing.T) {
	launcher := &fakeLauncher{}
	h := newTestHelper(t, &fakeDialer{}, func(params *debugger.RunParameters) {
		params.StartMode = constants.StartInternal
		params.Executable = "qmlscene"
	})
	h.backend.launcher = launcher
	h.start()
	require.NotNil(t, launcher.process)

	launcher.output("hello\n")
	h.flush()
	found := false
	h.lock.Lock()
	for _, event := range h.events {
		if output, ok := event.(*debugger.OutputEvent); ok && output.Category == constants.StdoutOutput {
			found = output.Output == "hello\n"
		}
	}
	h.lock.Unlock()
	assert.True(t, found)

	h.sync(func() {
		require.NoError(t, h.backend.SendInput("1\n"))
	})
	assert.Equal(t, []string{"1\n"}, launcher.process.input)

	launcher.process.exited.Complete(0, nil)
	h.waitState(constants.DebuggerFinished)
	h.flush()
	assert.Contains(t, h.statusMessages(), "QML Debugger disconnected.")
	h.sync(func() {
		assert.ErrorIs(t, h.backend.SendInput("2\n"), e.ErrProcessNotRunning)
	})
}

// TestStartInternalLaunchFailed 进程启动失败
func TestStartInternalLaunchFailed(t *testing.T) {
	launcher := &fakeLauncher{err: errors.New("no such file")}
	h := newTestHelper(t, &fakeDialer{}, func(params *debugger.RunParameters) {
		params.StartMode = constants.StartInternal
	})
	h.backend.launcher = launcher
	h.sync(h.engine.Start)
	h.waitState(constants.DebuggerFinished)
	assert.Contains(t, h.statusMessages(), "Run failed.")
}

// TestStartInternalProcessAlreadyExited 进程在注册回调之前已经退出，控制协程的队列已满时启动也不会阻塞
func TestStartInternalProcessAlreadyExited(t *testing.T) {
	launcher := &fakeLauncher{exitedAtLaunch: true}
	h := newTestHelper(t, &fakeDialer{failures: 100}, func(params *debugger.RunParameters) {
		params.StartMode = constants.StartInternal
		params.Executable = "qmlscene"
		params.ConnectRetryInterval = time.Hour
	})
	h.backend.launcher = launcher

	done := make(chan bool, 1)
	go func() {
		done <- h.loop.Sync(func() {
			// 占满控制协程的队列
			for i := 0; i < 256; i++ {
				h.loop.Post(func() {})
			}
			h.engine.Start()
		})
	}()
	select {
	case ok := <-done:
		require.True(t, ok)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "start blocked the control loop")
	}
	h.waitState(constants.DebuggerFinished)
	h.flush()
	assert.Contains(t, h.statusMessages(), "The process exited before the debugger could connect.")
}
