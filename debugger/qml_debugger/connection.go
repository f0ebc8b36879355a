package qml_debugger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fansqz/debug-engine/constants"
	"github.com/fansqz/debug-engine/debugger"
	e "github.com/fansqz/debug-engine/error"
	"github.com/fansqz/debug-engine/protocol"
)

// connection 一次连接尝试，传输层的回调都投递到控制协程中处理
type connection struct {
	owner     *QmlEngine
	transport Transport
	connected bool
	closed    bool
}

func (c *connection) OnMessage(data []byte) {
	c.owner.Engine().Post(func() {
		if c.owner.conn != c {
			return
		}
		c.owner.messageReceived(data)
	})
}

func (c *connection) OnClosed(err error) {
	c.owner.Engine().Post(func() {
		if c.owner.conn != c {
			return
		}
		c.owner.connectionClosed(c, err)
	})
}

// IsConnected 是否已经连接到调试服务
func (q *QmlEngine) IsConnected() bool {
	return q.conn != nil && q.conn.connected
}

func (q *QmlEngine) connectTimeout() time.Duration {
	if t := q.params().ConnectTimeout; t > 0 {
		return t
	}
	return defaultConnectTimeout
}

func (q *QmlEngine) connectRetryInterval() time.Duration {
	if t := q.params().ConnectRetryInterval; t > 0 {
		return t
	}
	return defaultConnectRetryInterval
}

func (q *QmlEngine) connectRetries() int {
	if n := q.params().ConnectRetries; n > 0 {
		return n
	}
	return defaultConnectRetries
}

func (q *QmlEngine) tryToConnect() {
	engine := q.Engine()
	engine.ShowMessage("QML Debugger: Trying to connect ...")
	q.retryOnConnectFail = true
	if engine.State() == constants.EngineRunRequested {
		if engine.IsDying() {
			q.appStartupFailed("No application output received in time")
		} else {
			q.beginConnection()
		}
	} else {
		q.automaticConnect = true
	}
}

func (q *QmlEngine) beginConnection() {
	engine := q.Engine()
	if engine.State() != constants.EngineRunRequested {
		if !q.retryOnConnectFail {
			engine.Logger().Warnf("beginConnection: unexpected state %s", engine.State())
		}
		return
	}
	if q.conn != nil {
		return
	}
	url := q.params().ServerURL
	if url == "" {
		q.appStartupFailed("No debug server address.")
		return
	}

	c := &connection{owner: q}
	q.conn = c
	q.connectAttempts++
	engine.ShowMessage(fmt.Sprintf("QML Debugger: connecting to %s (attempt %d)", url, q.connectAttempts))

	ctx, cancel := context.WithTimeout(q.ctx, q.connectTimeout())
	task := debugger.RunTask(ctx, func(ctx context.Context) (Transport, error) {
		return q.dialer.Dial(ctx, url, c)
	})
	task.OnDone(func(transport Transport, err error) {
		cancel()
		q.postLater(func() {
			q.handleDialResult(c, transport, err)
		}, func() {
			if transport != nil {
				_ = transport.Close()
			}
		})
	})
}

func (q *QmlEngine) handleDialResult(c *connection, transport Transport, err error) {
	if q.conn != c {
		// 连接已经被关闭
		if transport != nil {
			_ = transport.Close()
		}
		return
	}
	if err != nil || c.closed {
		if transport != nil {
			_ = transport.Close()
		}
		q.conn = nil
		if err == nil {
			err = e.ErrConnectionFailed
		}
		q.Engine().ShowMessage("QML Debugger: " + err.Error())
		q.connectionStartupFailed(err)
		return
	}
	c.transport = transport
	c.connected = true
	q.connectAttempts = 0
	q.connectionEstablished()
}

// connectionEstablished 开始调试会话
func (q *QmlEngine) connectionEstablished() {
	engine := q.Engine()
	q.queue.Enable(q.conn.transport)
	parameters, _ := json.Marshal(map[string]bool{
		"redundantRefs":  false,
		"namesAsObjects": false,
	})
	q.queue.RunDirectCommand(protocol.PacketConnect, parameters)
	q.queue.RunCommand(protocol.CommandVersion, nil, q.handleVersion)
	engine.BreakHandler().Claim()
	if q.exceptionBreak != nil {
		q.sendExceptionBreak(*q.exceptionBreak)
	}
	q.ReloadSourceFiles()

	if engine.State() == constants.EngineRunRequested {
		engine.NotifyEngineRunAndInferiorRunOk()
	}
}

func (q *QmlEngine) connectionStartupFailed(err error) {
	engine := q.Engine()
	if engine.IsDying() {
		return
	}
	if q.retryOnConnectFail && q.connectAttempts <= q.connectRetries() {
		engine.Logger().Infof("connect fail, retry in %v, err = %v", q.connectRetryInterval(), err)
		q.retryTimer.Start(q.connectRetryInterval(), q.beginConnection)
		return
	}
	q.appStartupFailed(fmt.Sprintf("Could not connect to the in-process QML debugger. %v", err))
}

func (q *QmlEngine) appStartupFailed(message string) {
	engine := q.Engine()
	engine.ShowOutput(message+"\n", constants.ConsoleOutput)
	engine.ShowStatusMessage(message)
	switch engine.State() {
	case constants.InferiorRunOk:
		engine.NotifyInferiorSpontaneousStop()
		engine.NotifyInferiorIll()
	case constants.EngineRunRequested:
		engine.NotifyEngineRunFailed()
	}
}

func (q *QmlEngine) connectionClosed(c *connection, err error) {
	c.closed = true
	if !c.connected {
		// 连接尚未建立，由handleDialResult处理
		return
	}
	q.conn = nil
	q.queue.Disable()
	if err != nil {
		q.connectionFailed(err)
	} else {
		q.disconnected()
	}
}

// connectionFailed 已经建立的连接异常断开
func (q *QmlEngine) connectionFailed(err error) {
	engine := q.Engine()
	if engine.IsDying() {
		return
	}
	engine.Logger().Warnf("connection failed, err = %v", err)
	engine.ShowStatusMessage("QML Debugger: Connection failed.")
	if engine.State() == constants.InferiorRunOk {
		engine.NotifyInferiorSpontaneousStop()
	}
	engine.NotifyInferiorIll()
}

// disconnected 调试服务正常关闭了连接
func (q *QmlEngine) disconnected() {
	engine := q.Engine()
	if engine.IsDying() {
		return
	}
	engine.ShowStatusMessage("QML Debugger disconnected.")
	engine.NotifyInferiorExited(0)
}

func (q *QmlEngine) closeConnection() {
	q.automaticConnect = false
	q.retryOnConnectFail = false
	q.retryTimer.Stop()
	if c := q.conn; c != nil {
		q.conn = nil
		c.closed = true
		if c.transport != nil {
			_ = c.transport.Close()
		}
	}
	q.queue.Disable()
	// 等待中的回调不会再被调用
	if q.localsUpdated != nil {
		q.localsUpdated.Cancel()
	}
}
