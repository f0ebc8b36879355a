package qml_debugger

import (
	"context"
	"time"

	"github.com/emirpasic/gods/sets/treeset"

	"github.com/fansqz/debug-engine/constants"
	"github.com/fansqz/debug-engine/debugger"
	e "github.com/fansqz/debug-engine/error"
	"github.com/fansqz/debug-engine/metrics"
	"github.com/fansqz/debug-engine/protocol"
	"github.com/fansqz/debug-engine/utils"
	"github.com/fansqz/debug-engine/utils/gosync"
)

const (
	defaultConnectTimeout       = 4 * time.Second
	defaultConnectRetryInterval = 3 * time.Second
	defaultConnectRetries       = 3
)

// QmlEngine 脚本运行时（QML/JavaScript）调试后端
// 通过websocket和运行时中的调试服务通信，消息格式为V8风格的JSON
type QmlEngine struct {
	debugger.BaseBackend

	ctx    context.Context
	cancel context.CancelFunc

	dialer   Dialer
	launcher Launcher
	metrics  *metrics.Metrics

	queue *CommandQueue
	conn  *connection

	retryOnConnectFail bool
	automaticConnect   bool
	connectAttempts    int
	retryTimer         *utils.TimeoutManager

	process Process

	previousStepAction constants.StepAction
	// breakpointsSync setbreakpoint/changebreakpoint命令的序号 -> 断点
	breakpointsSync map[int]*debugger.Breakpoint
	// breakpointsTemp 运行到某一行时设置的临时断点
	breakpointsTemp []string
	// breakpointsCleared 已经发送clearbreakpoint的断点ID，之后的停止事件中出现时忽略
	breakpointsCleared map[string]bool
	// stackIndexLookup 展示的栈帧下标 -> 调试服务中的栈帧下标
	stackIndexLookup   map[int]int
	currentFrameScopes []int
	// localsUpdated 当前栈帧的变量（包括作用域）全部更新之后完成，值为栈帧下标
	localsUpdated *debugger.Task[int]
	pendingScopes int
	// pendingStop 栈更新之后发出的停止事件
	pendingStop        *debugger.StoppedEvent
	sourceFiles        *treeset.Set
	exceptionBreak     *bool

	supportChangeBreakpoint bool
	unpausedEvaluate        bool
	contextEvaluate         bool
}

// Option QmlEngine的可选项
type Option func(q *QmlEngine)

func WithDialer(dialer Dialer) Option {
	return func(q *QmlEngine) {
		q.dialer = dialer
	}
}

func WithLauncher(launcher Launcher) Option {
	return func(q *QmlEngine) {
		q.launcher = launcher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(q *QmlEngine) {
		q.metrics = m
	}
}

func NewQmlEngine(opts ...Option) *QmlEngine {
	q := &QmlEngine{
		dialer:             &WebsocketDialer{HandshakeTimeout: defaultConnectTimeout},
		launcher:           &PtyLauncher{},
		previousStepAction: constants.Continue,
		breakpointsSync:    map[int]*debugger.Breakpoint{},
		breakpointsCleared: map[string]bool{},
		stackIndexLookup:   map[int]int{},
		sourceFiles:        treeset.NewWithStringComparator(),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.ctx, q.cancel = context.WithCancel(context.Background())
	return q
}

func (q *QmlEngine) Attach(engine *debugger.Engine) {
	q.BaseBackend.Attach(engine)
	q.queue = NewCommandQueue(engine.Logger(), q.metrics)
	q.retryTimer = utils.NewTimeoutManager(func(task func()) {
		engine.Post(task)
	})
}

func (q *QmlEngine) Kind() constants.EngineKind {
	return constants.EngineKindQml
}

func (q *QmlEngine) HasCapability(capability constants.Capability) bool {
	return capability&(constants.AddWatcherCapability|
		constants.RunToLineCapability|
		constants.WatchComplexExpressionsCapability) != 0
}

// CompanionPreventsActions 协作引擎不在运行状态时，运行时中的调试服务无法响应
func (q *QmlEngine) CompanionPreventsActions() bool {
	companions := q.Engine().CompanionEngines()
	if len(companions) == 0 {
		return false
	}
	return companions[0].State() != constants.InferiorRunOk
}

func (q *QmlEngine) params() *debugger.RunParameters {
	return q.Engine().RunParameters()
}

func (q *QmlEngine) SetupEngine() {
	engine := q.Engine()
	if q.ctx.Err() != nil {
		q.ctx, q.cancel = context.WithCancel(context.Background())
	}
	q.connectAttempts = 0
	engine.NotifyEngineSetupOk()

	q.retryOnConnectFail = true
	q.automaticConnect = true

	if engine.State() != constants.EngineRunRequested {
		engine.Logger().Warnf("SetupEngine: unexpected state %s", engine.State())
	}

	if engine.IsPrimaryEngine() && q.params().StartMode == constants.StartInternal {
		q.startProcess()
	} else {
		q.tryToConnect()
	}

	if q.automaticConnect {
		q.beginConnection()
	}
}

func (q *QmlEngine) ShutdownInferior() {
	engine := q.Engine()
	if engine.State() != constants.InferiorShutdownRequested {
		engine.Logger().Debugf("ShutdownInferior in state %s", engine.State())
	}
	q.queue.RunCommand(protocol.CommandDisconnect, nil, nil)
	engine.ResetLocation()
	q.closeConnection()
	q.stopProcess()
	engine.NotifyInferiorShutdownFinished()
}

func (q *QmlEngine) ShutdownEngine() {
	q.closeConnection()
	q.stopProcess()
	q.cancel()
	q.Engine().NotifyEngineShutdownFinished()
}

func (q *QmlEngine) AbortEngine() {
	q.closeConnection()
	q.stopProcess()
	q.cancel()
}

func (q *QmlEngine) startProcess() {
	engine := q.Engine()
	if q.process != nil {
		return
	}
	params := q.params()
	engine.ShowOutput("Starting "+params.Executable+"\n", constants.ConsoleOutput)
	process, err := q.launcher.Launch(q.ctx, params, func(output string) {
		engine.Post(func() {
			engine.ShowOutput(output, constants.StdoutOutput)
		})
	})
	if err != nil {
		engine.Logger().Errorf("start process fail, err = %v", err)
		q.appStartupFailed(err.Error())
		return
	}
	q.process = process
	// 进程可能已经退出，此时回调在控制协程中直接执行
	process.Exited().OnDone(func(code int, err error) {
		q.postLater(func() {
			q.processFinished(process, code, err)
		}, nil)
	})
	// 进程启动之后开始连接
	q.tryToConnect()
}

func (q *QmlEngine) stopProcess() {
	if q.process == nil {
		return
	}
	if err := q.process.Stop(); err != nil {
		q.Engine().Logger().Warnf("stop process fail, err = %v", err)
	}
	q.process = nil
}

func (q *QmlEngine) processFinished(process Process, code int, err error) {
	if q.process != process {
		return
	}
	q.process = nil
	engine := q.Engine()
	if err != nil {
		engine.Logger().Warnf("process finished with error: %v", err)
	}
	if engine.IsDying() {
		return
	}
	if engine.State() == constants.EngineRunRequested {
		q.appStartupFailed("The process exited before the debugger could connect.")
		return
	}
	engine.ShowStatusMessage("QML Debugger disconnected.")
	engine.NotifyInferiorExited(code)
}

// postLater 在新的协程中投递，用于可能在控制协程中直接执行的回调。
// 控制协程里直接Post时，队列满了会一直阻塞；dropped在控制协程停止、任务被丢弃时调用
func (q *QmlEngine) postLater(task func(), dropped func()) {
	engine := q.Engine()
	gosync.Go(q.ctx, func(context.Context) {
		if !engine.Post(task) && dropped != nil {
			dropped()
		}
	})
}

// SendInput 写入用户程序的标准输入
func (q *QmlEngine) SendInput(input string) error {
	if q.process == nil {
		return e.ErrProcessNotRunning
	}
	return q.process.Write(input)
}

// SourceFiles 调试服务报告的脚本文件
func (q *QmlEngine) SourceFiles() []string {
	return utils.Set2list[string](q.sourceFiles)
}
