package qml_debugger

import (
	"path/filepath"
	"strconv"

	"github.com/fansqz/debug-engine/debugger"
	"github.com/fansqz/debug-engine/protocol"
)

func (q *QmlEngine) InsertBreakpoint(bp *debugger.Breakpoint) {
	engine := q.Engine()
	if bp.State != debugger.BreakpointInsertionRequested {
		engine.Logger().Warnf("insert breakpoint %d in state %s", bp.ID, bp.State)
	}
	requested := bp.Requested
	if requested.FileName == "" || requested.Line <= 0 {
		engine.BreakHandler().NotifyInsertFailed(bp)
		return
	}
	seq := q.setBreakpoint(requested.FileName, requested.Enabled, requested.Line, requested.Column,
		requested.Condition, requested.IgnoreCount)
	q.breakpointsSync[seq] = bp
}

// RemoveBreakpoint 调试服务的clearbreakpoint没有需要处理的响应，直接认为删除成功
func (q *QmlEngine) RemoveBreakpoint(bp *debugger.Breakpoint) {
	q.clearBreakpoint(bp.ResponseID)
	q.Engine().BreakHandler().NotifyRemoveOk(bp)
}

// UpdateBreakpoint 调试服务不支持changebreakpoint或者断点ID不合法时先删除再重新设置
func (q *QmlEngine) UpdateBreakpoint(bp *debugger.Breakpoint) {
	requested := bp.Requested
	seq := -1
	if q.supportChangeBreakpoint {
		seq = q.changeBreakpoint(bp.ResponseID, requested)
	}
	if seq < 0 {
		q.clearBreakpoint(bp.ResponseID)
		seq = q.setBreakpoint(requested.FileName, requested.Enabled, requested.Line, requested.Column,
			requested.Condition, requested.IgnoreCount)
	}
	q.breakpointsSync[seq] = bp
	q.Engine().BreakHandler().NotifyUpdateOk(bp)
}

// SetExceptionBreak 抛出异常时是否停止
// 未连接时先记录，连接建立之后发送
func (q *QmlEngine) SetExceptionBreak(enabled bool) {
	q.exceptionBreak = &enabled
	if !q.IsConnected() {
		return
	}
	q.sendExceptionBreak(enabled)
}

func (q *QmlEngine) sendExceptionBreak(enabled bool) {
	q.queue.RunCommand(protocol.CommandSetExceptionBreak, protocol.Arguments{
		"type":    protocol.ExceptionBreakAll,
		"enabled": enabled,
	}, nil)
}

// setBreakpoint 按文件名设置断点，返回命令的序号
func (q *QmlEngine) setBreakpoint(file string, enabled bool, line, column int, condition string, ignoreCount int) int {
	args := protocol.SetBreakpointArguments(filepath.Base(file), enabled, line, column, condition, ignoreCount)
	return q.queue.RunCommand(protocol.CommandSetBreakpoint, args, nil)
}

func (q *QmlEngine) clearBreakpoint(responseID string) {
	id, err := strconv.Atoi(responseID)
	if err != nil {
		q.Engine().Logger().Debugf("clear breakpoint with invalid id %q", responseID)
		return
	}
	q.breakpointsCleared[responseID] = true
	q.queue.RunCommand(protocol.CommandClearBreakpoint, protocol.Arguments{
		"breakpoint": id,
	}, nil)
}

// changeBreakpoint 返回命令的序号，断点ID不合法时不发送并返回-1
func (q *QmlEngine) changeBreakpoint(responseID string, params debugger.BreakpointParameters) int {
	id, err := strconv.Atoi(responseID)
	if err != nil {
		q.Engine().Logger().Debugf("change breakpoint with invalid id %q", responseID)
		return -1
	}
	args := protocol.Arguments{
		"breakpoint": id,
		"enabled":    params.Enabled,
	}
	if params.Condition != "" {
		args["condition"] = params.Condition
	}
	if params.IgnoreCount != -1 {
		args["ignoreCount"] = params.IgnoreCount
	}
	return q.queue.RunCommand(protocol.CommandChangeBreakpoint, args, nil)
}

// handleSetBreakpoint 记录调试服务分配的断点ID，不是断点模型中的断点时作为临时断点记录
func (q *QmlEngine) handleSetBreakpoint(response *protocol.Message) {
	engine := q.Engine()
	body := &protocol.SetBreakpointBody{}
	if err := response.DecodeBody(body); err != nil {
		engine.Logger().Warnf("decode setbreakpoint fail, err = %v", err)
		return
	}
	index := strconv.Itoa(body.Breakpoint)
	delete(q.breakpointsCleared, index)

	bp, ok := q.breakpointsSync[response.RequestSeq]
	if !ok {
		q.breakpointsTemp = append(q.breakpointsTemp, index)
		return
	}
	delete(q.breakpointsSync, response.RequestSeq)

	// 等待响应的时候断点已经被删除，调试服务中的断点也要删除
	handler := engine.BreakHandler()
	if handler.IsRemovePending(bp) {
		if response.Success {
			q.clearBreakpoint(index)
		}
		handler.NotifyRemoveOk(bp)
		return
	}
	bp.ResponseID = index

	// 有实际位置说明断点被接受
	if len(body.ActualLocations) != 0 && bp.State != debugger.BreakpointInserted {
		actual := bp.Requested
		actual.Line = body.Line + 1
		handler.NotifyInsertOk(bp, actual)
	}
}

func (q *QmlEngine) handleChangeBreakpoint(response *protocol.Message) {
	bp, ok := q.breakpointsSync[response.RequestSeq]
	if !ok {
		return
	}
	delete(q.breakpointsSync, response.RequestSeq)
	actual := bp.Actual
	if !response.Success {
		actual.Enabled = !bp.Requested.Enabled
	}
	q.Engine().BreakHandler().NotifyChanged(bp, actual)
}

// isTempBreakpoint 是否是运行到某一行时设置的临时断点
func (q *QmlEngine) isTempBreakpoint(responseID string) bool {
	for _, id := range q.breakpointsTemp {
		if id == responseID {
			return true
		}
	}
	return false
}

func (q *QmlEngine) clearTempBreakpoint(responseID string) {
	for i, id := range q.breakpointsTemp {
		if id == responseID {
			q.breakpointsTemp = append(q.breakpointsTemp[:i], q.breakpointsTemp[i+1:]...)
			q.clearBreakpoint(responseID)
			return
		}
	}
}
