package qml_debugger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fansqz/debug-engine/constants"
	"github.com/fansqz/debug-engine/debugger"
	"github.com/fansqz/debug-engine/protocol"
)

// messageReceived 处理调试服务发来的一条消息，只在控制协程中调用
func (q *QmlEngine) messageReceived(data []byte) {
	engine := q.Engine()
	packet, err := protocol.DecodePacket(data)
	if err != nil {
		engine.Logger().Warnf("drop message: %v", err)
		q.metrics.RecordDropped("malformed")
		return
	}
	engine.ShowMessage(packet.Type)
	switch packet.Type {
	case protocol.PacketConnect, protocol.PacketInterrupt, protocol.PacketBreakOnSignal:
	case protocol.PacketV8Message:
		engine.ShowMessage(protocol.PacketV8Message + " " + string(packet.Payload))
		msg, err := protocol.DecodeMessage(packet.Payload)
		if err != nil {
			engine.Logger().Warnf("drop message: %v", err)
			q.metrics.RecordDropped("malformed")
			return
		}
		q.handleV8Message(msg)
	default:
		engine.Logger().Warnf("unknown packet type %q", packet.Type)
		q.metrics.RecordDropped("unknown_packet")
	}
}

func (q *QmlEngine) handleV8Message(msg *protocol.Message) {
	engine := q.Engine()
	switch msg.Type {
	case protocol.TypeResponse:
		if !msg.Success {
			engine.Logger().Debugf("request %d (%s) was unsuccessful: %s", msg.RequestSeq, msg.Command, msg.Message)
		}
		if q.queue.HandleResponse(msg) {
			return
		}
		switch msg.Command {
		case protocol.CommandSetBreakpoint:
			q.handleSetBreakpoint(msg)
		case protocol.CommandChangeBreakpoint:
			q.handleChangeBreakpoint(msg)
		}
	case protocol.TypeEvent:
		switch msg.Event {
		case protocol.EventBreak:
			q.handleBreak(msg)
		case protocol.EventException:
			q.handleException(msg)
		case protocol.EventAfterCompile:
			engine.ShowMessage("afterCompile")
		case "":
			// 通常是表达式写错了，把消息输出到控制台
			engine.ShowOutput(msg.Message+"\n", constants.ConsoleOutput)
		default:
			engine.Logger().Warnf("unknown event %q", msg.Event)
		}
	default:
		engine.Logger().Warnf("unknown message type %q", msg.Type)
		q.metrics.RecordDropped("unknown_message")
	}
}

// handleBreak 处理程序停止事件
// 以下情况不停止：没有命中断点的自动停止、绑定表达式生成的包装函数、运行时内部函数
func (q *QmlEngine) handleBreak(msg *protocol.Message) {
	engine := q.Engine()
	body := &protocol.BreakEventBody{}
	if err := msg.DecodeBody(body); err != nil {
		engine.Logger().Warnf("decode break event fail, err = %v", err)
		return
	}
	inferiorStop := true

	var breakpoints []*debugger.Breakpoint
	var tempHits []string
	removed := 0
	handler := engine.BreakHandler()
	for _, id := range body.Breakpoints {
		responseID := strconv.Itoa(id)
		bp := handler.FindByResponseID(responseID)
		switch {
		case bp != nil && handler.IsRemovePending(bp), bp == nil && q.breakpointsCleared[responseID]:
			engine.Logger().Debugf("break on removed breakpoint %s", responseID)
			removed++
		case bp != nil:
			breakpoints = append(breakpoints, bp)
		case q.isTempBreakpoint(responseID):
			tempHits = append(tempHits, responseID)
		default:
			engine.Logger().Debugf("break on unknown breakpoint %s", responseID)
		}
	}

	if engine.State() != constants.InferiorStopRequested &&
		len(body.Breakpoints) == removed && q.previousStepAction == constants.Continue {
		// 可能停在了另一个同名文件中，或者断点已经被删除
		inferiorStop = false
		q.continueDebugging(constants.Continue)
	}

	if inferiorStop && len(breakpoints) != 0 &&
		strings.HasPrefix(body.InvocationText, "[anonymous]()") &&
		strings.HasSuffix(body.Script.Name, ".qml") &&
		strings.HasPrefix(strings.TrimSpace(body.SourceLineText), "(") {
		// 命中了绑定表达式自动生成的匿名包装函数，把断点移到表达式的第一列
		newColumn := strings.Index(body.SourceLineText, "(") + 1
		for _, bp := range breakpoints {
			requested := bp.Requested
			q.clearBreakpoint(bp.ResponseID)
			seq := q.setBreakpoint(requested.FileName, requested.Enabled, requested.Line, newColumn,
				requested.Condition, requested.IgnoreCount)
			q.breakpointsSync[seq] = bp
		}
		q.continueDebugging(constants.Continue)
		inferiorStop = false
	}

	if inferiorStop && body.SourceLineText == protocol.InternalFunction {
		q.continueDebugging(q.previousStepAction)
		inferiorStop = false
	}

	if !inferiorStop {
		return
	}

	for _, bp := range breakpoints {
		if bp.State != debugger.BreakpointInserted {
			actual := bp.Requested
			actual.Line = body.SourceLine + 1
			handler.NotifyInsertOk(bp, actual)
		}
	}

	reason := constants.BreakpointStopped
	if len(breakpoints) == 0 && len(tempHits) == 0 {
		reason = constants.StepStopped
	}
	switch engine.State() {
	case constants.InferiorRunOk:
		for _, id := range tempHits {
			q.clearTempBreakpoint(id)
		}
		for _, bp := range breakpoints {
			q.clearTempBreakpoint(bp.ResponseID)
		}
		engine.NotifyInferiorSpontaneousStop()
	case constants.InferiorStopRequested:
		engine.NotifyInferiorStopOk()
		if len(breakpoints) == 0 {
			reason = constants.PauseStopped
		}
	default:
		return
	}

	engine.GotoLocation(debugger.Location{
		File:     body.Script.Name,
		Line:     body.SourceLine + 1,
		Function: body.InvocationText,
	})
	for _, bp := range breakpoints {
		handler.MarkHit(bp)
	}
	q.pendingStop = &debugger.StoppedEvent{Reason: reason, Text: body.InvocationText}
	q.backtrace()
}

func (q *QmlEngine) handleException(msg *protocol.Message) {
	engine := q.Engine()
	body := &protocol.ExceptionEventBody{}
	if err := msg.DecodeBody(body); err != nil {
		engine.Logger().Warnf("decode exception event fail, err = %v", err)
		return
	}
	line := body.SourceLine + 1
	message := fmt.Sprintf("%s:%d: %s", body.Script.Name, line, body.Exception.Text)
	engine.Logger().Warnf("exception: %s", message)
	engine.ShowOutput(message+"\n", constants.ConsoleOutput)
	engine.ShowStatusMessage(message)

	switch engine.State() {
	case constants.InferiorRunOk:
		engine.NotifyInferiorSpontaneousStop()
	case constants.InferiorStopOk:
	default:
		return
	}
	q.pendingStop = &debugger.StoppedEvent{Reason: constants.ExceptionStopped, Text: body.Exception.Text}
	q.backtrace()
}
