package dapserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/go-dap"
	"github.com/sirupsen/logrus"

	"github.com/fansqz/debug-engine/constants"
	"github.com/fansqz/debug-engine/debugger"
	"github.com/fansqz/debug-engine/debugger/qml_debugger"
	e "github.com/fansqz/debug-engine/error"
	"github.com/fansqz/debug-engine/utils/gosync"
)

const (
	sendQueueSize = 64
	// quitTimeout 会话结束时等待引擎关闭的时间
	quitTimeout = 5 * time.Second
)

// DebugSession 调试会话，对应一个客户端连接
type DebugSession struct {
	server *Server
	conn   io.ReadWriteCloser
	reader *bufio.Reader
	writer *bufio.Writer
	logger *logrus.Entry

	// sendQueue 所有消息都由发送协程写入连接
	sendQueue  chan dap.Message
	sendLock   sync.Mutex
	sendClosed bool
	sendDone   chan struct{}
	seq        atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc

	loop    *gosync.Loop
	backend *qml_debugger.QmlEngine
	engine  *debugger.Engine
	params  *debugger.RunParameters

	// 以下字段只在读协程中访问
	launched     bool
	configured   bool
	started      bool
	disconnected bool

	terminated atomic.Bool
}

func newDebugSession(s *Server, conn io.ReadWriteCloser) *DebugSession {
	ctx, cancel := context.WithCancel(s.ctx)
	cfg := s.config.Engine
	session := &DebugSession{
		server:    s,
		conn:      conn,
		reader:    bufio.NewReader(conn),
		writer:    bufio.NewWriter(conn),
		sendQueue: make(chan dap.Message, sendQueueSize),
		sendDone:  make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		params: &debugger.RunParameters{
			DisplayName:          string(constants.EngineKindQml),
			StartMode:            constants.AttachToRemoteServer,
			ConnectTimeout:       cfg.ConnectTimeout,
			ConnectRetryInterval: cfg.ConnectRetryInterval,
			ConnectRetries:       cfg.ConnectRetries,
		},
	}
	session.loop = gosync.NewLoop(ctx)

	backendOpts := []qml_debugger.Option{qml_debugger.WithMetrics(s.metrics)}
	if s.dialer != nil {
		backendOpts = append(backendOpts, qml_debugger.WithDialer(s.dialer))
	}
	if s.launcher != nil {
		backendOpts = append(backendOpts, qml_debugger.WithLauncher(s.launcher))
	}
	session.backend = qml_debugger.NewQmlEngine(backendOpts...)
	session.engine = debugger.New(session.backend, session.params,
		debugger.WithExecutor(session.loop),
		debugger.WithRegistry(s.registry),
		debugger.WithMetrics(s.metrics),
		debugger.WithLocationResetDelay(cfg.LocationResetDelay),
		debugger.WithObserver(session.onEngineEvent),
	)
	session.logger = session.engine.Logger().WithField("component", "dapserver")
	return session
}

func (d *DebugSession) serve() error {
	gosync.Go(d.ctx, func(ctx context.Context) {
		d.sendFromQueue()
	})
	stop := context.AfterFunc(d.ctx, func() {
		_ = d.conn.Close()
	})
	defer stop()
	defer d.close()

	for !d.disconnected {
		err := d.handleRequest()
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) || d.ctx.Err() != nil {
			d.logger.Infof("no more data to read")
			return nil
		}
		var decodeErr *dap.DecodeProtocolMessageFieldError
		if errors.As(err, &decodeErr) {
			d.logger.Warnf("decode request fail, err = %v", err)
			d.sendUnsupported(decodeErr)
			continue
		}
		d.logger.Errorf("read request fail, err = %v", err)
		return err
	}
	return nil
}

func (d *DebugSession) handleRequest() error {
	request, err := dap.ReadProtocolMessage(d.reader)
	if err != nil {
		return err
	}
	d.dispatchRequest(request)
	return nil
}

// close 关闭引擎、发送协程和连接
func (d *DebugSession) close() {
	if d.started && d.engine.State() != constants.DebuggerFinished {
		d.sync(d.engine.QuitDebugger)
		ctx, cancel := context.WithTimeout(context.Background(), quitTimeout)
		if _, err := d.engine.Finished().Wait(ctx); err != nil {
			d.logger.Warnf("engine did not finish, abort it")
			d.sync(d.engine.AbortDebugger)
			d.sync(d.engine.AbortDebugger)
		}
		cancel()
	}
	d.loop.Stop()
	d.server.registry.Deregister(d.engine.ID())

	d.sendLock.Lock()
	d.sendClosed = true
	close(d.sendQueue)
	d.sendLock.Unlock()
	<-d.sendDone

	d.cancel()
	_ = d.conn.Close()
}

// sync 在控制协程中执行task，会话已经关闭时返回false
func (d *DebugSession) sync(task func()) bool {
	return d.loop.Sync(task)
}

// send 把消息放入发送队列，可以在任意协程中调用
func (d *DebugSession) send(message dap.Message) {
	d.sendLock.Lock()
	defer d.sendLock.Unlock()
	if d.sendClosed {
		return
	}
	d.sendQueue <- message
}

func (d *DebugSession) sendFromQueue() {
	defer close(d.sendDone)
	for message := range d.sendQueue {
		if err := dap.WriteProtocolMessage(d.writer, message); err != nil {
			d.logger.Debugf("write message fail, err = %v", err)
			continue
		}
		if err := d.writer.Flush(); err != nil {
			d.logger.Debugf("flush fail, err = %v", err)
		}
	}
}

func (d *DebugSession) nextSeq() int {
	return int(d.seq.Add(1))
}

func (d *DebugSession) newEvent(event string) dap.Event {
	return dap.Event{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  d.nextSeq(),
			Type: "event",
		},
		Event: event,
	}
}

func (d *DebugSession) newResponse(requestSeq int, command string) dap.Response {
	return dap.Response{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  d.nextSeq(),
			Type: "response",
		},
		Command:    command,
		RequestSeq: requestSeq,
		Success:    true,
	}
}

// 错误响应的编号
const (
	errorUnsupported = 1000 + iota
	errorRequestFailed
	errorEvaluateFailed
)

func (d *DebugSession) sendErrorResponse(requestSeq int, command string, id int, message string) {
	response := &dap.ErrorResponse{}
	response.Response = d.newResponse(requestSeq, command)
	response.Success = false
	response.Message = message
	response.Body.Error = &dap.ErrorMessage{
		Id:     id,
		Format: message,
	}
	d.send(response)
}

func (d *DebugSession) sendUnsupported(err *dap.DecodeProtocolMessageFieldError) {
	command := err.FieldValue
	if err.FieldName != "command" {
		d.sendErrorResponse(err.Seq, "", errorUnsupported, err.Error())
		return
	}
	d.sendErrorResponse(err.Seq, command, errorUnsupported, fmt.Sprintf("%s is not yet supported", command))
}

// maybeStart launch/attach和configurationDone都收到之后启动引擎
func (d *DebugSession) maybeStart() {
	if d.started || !d.launched || !d.configured {
		return
	}
	d.started = true
	d.terminated.Store(false)
	d.sync(d.engine.Start)
}

// waitFinished 等待引擎结束
func (d *DebugSession) waitFinished(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(d.ctx, timeout)
	defer cancel()
	_, err := d.engine.Finished().Wait(ctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: engine did not finish in %s", e.ErrTaskCanceled, timeout)
	}
	return err
}

// sendTerminated 每次调试只发送一次terminated
func (d *DebugSession) sendTerminated() {
	if d.terminated.Swap(true) {
		return
	}
	d.send(&dap.TerminatedEvent{Event: d.newEvent("terminated")})
}
