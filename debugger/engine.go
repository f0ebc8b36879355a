package debugger

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fansqz/debug-engine/constants"
	"github.com/fansqz/debug-engine/metrics"
	"github.com/fansqz/debug-engine/utils"
)

const defaultLocationResetDelay = 80 * time.Millisecond

// Executor 控制协程，gosync.Loop实现了该接口
type Executor interface {
	Post(task func()) bool
}

// inlineExecutor 直接在调用者的协程中执行，只适合单协程使用的场景（例如测试）
type inlineExecutor struct{}

func (inlineExecutor) Post(task func()) bool {
	task()
	return true
}

// Engine 调试引擎的状态机
// 除了State、Actions等只读查询，Engine的方法都必须在控制协程中调用
type Engine struct {
	id      string
	name    string
	backend EngineBackend
	params  *RunParameters

	statusManager *utils.StatusManager
	executor      Executor
	logger        *logrus.Entry
	metrics       *metrics.Metrics
	registry      *Registry
	observers     *observerList

	isPrimary  bool
	companions []Companion
	// dying 进入关闭流程之后不再报告状态检查的诊断，也不再更新操作状态
	dying          atomic.Bool
	abortRequested bool

	mu            sync.RWMutex
	actions       Actions
	progress      int
	statusMessage string
	location      *Location

	breakHandler *BreakpointHandler
	stackHandler *StackHandler
	watchHandler *WatchHandler

	locationTimer      *utils.TimeoutManager
	locationResetDelay time.Duration

	finished *Task[constants.DebuggerState]
}

// Option 创建Engine时的可选项
type Option func(engine *Engine)

// WithExecutor 设置控制协程，计时器的回调会投递到该协程中执行
func WithExecutor(executor Executor) Option {
	return func(engine *Engine) {
		engine.executor = executor
	}
}

func WithObserver(observer Observer) Option {
	return func(engine *Engine) {
		engine.observers.add(observer, false)
	}
}

func WithRegistry(registry *Registry) Option {
	return func(engine *Engine) {
		engine.registry = registry
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(engine *Engine) {
		engine.metrics = m
	}
}

// WithLocationResetDelay 位置重置的防抖时间
func WithLocationResetDelay(delay time.Duration) Option {
	return func(engine *Engine) {
		if delay > 0 {
			engine.locationResetDelay = delay
		}
	}
}

func WithLogger(logger *logrus.Entry) Option {
	return func(engine *Engine) {
		engine.logger = logger
	}
}

// New 创建状态机并绑定后端，初始状态为DebuggerNotReady
func New(backend EngineBackend, params *RunParameters, opts ...Option) *Engine {
	if params == nil {
		params = &RunParameters{}
	}
	engine := &Engine{
		id:                 utils.GetUUID(),
		backend:            backend,
		params:             params,
		statusManager:      utils.NewStatusManager(),
		executor:           inlineExecutor{},
		observers:          &observerList{},
		isPrimary:          true,
		stackHandler:       NewStackHandler(),
		watchHandler:       NewWatchHandler(),
		locationResetDelay: defaultLocationResetDelay,
		finished:           NewTask[constants.DebuggerState](),
	}
	engine.name = params.DisplayName
	if engine.name == "" {
		engine.name = string(backend.Kind())
	}
	for _, opt := range opts {
		opt(engine)
	}
	if engine.logger == nil {
		engine.logger = logrus.WithFields(logrus.Fields{
			"engine":  engine.name,
			"session": engine.id,
		})
	}
	engine.breakHandler = NewBreakpointHandler(engine)
	engine.locationTimer = utils.NewTimeoutManager(func(task func()) {
		engine.executor.Post(task)
	})
	backend.Attach(engine)
	return engine
}

func (engine *Engine) ID() string {
	return engine.id
}

func (engine *Engine) Name() string {
	return engine.name
}

func (engine *Engine) Backend() EngineBackend {
	return engine.backend
}

func (engine *Engine) Kind() constants.EngineKind {
	return engine.backend.Kind()
}

func (engine *Engine) RunParameters() *RunParameters {
	return engine.params
}

func (engine *Engine) Logger() *logrus.Entry {
	return engine.logger
}

func (engine *Engine) Metrics() *metrics.Metrics {
	return engine.metrics
}

// State 当前状态，可以在任意协程中调用
func (engine *Engine) State() constants.DebuggerState {
	return engine.statusManager.Get()
}

// IsDying 是否已经进入关闭流程
func (engine *Engine) IsDying() bool {
	return engine.dying.Load()
}

func (engine *Engine) startDying() {
	engine.dying.Store(true)
}

func (engine *Engine) IsPrimaryEngine() bool {
	return engine.isPrimary
}

// SetSecondaryEngine 作为混合调试中的从属引擎，不再报告进度和状态信息
func (engine *Engine) SetSecondaryEngine() {
	engine.isPrimary = false
}

// AddCompanionEngine 添加协作引擎
func (engine *Engine) AddCompanionEngine(companion Companion) {
	engine.companions = append(engine.companions, companion)
}

func (engine *Engine) CompanionEngines() []Companion {
	answer := make([]Companion, len(engine.companions))
	copy(answer, engine.companions)
	return answer
}

func (engine *Engine) BreakHandler() *BreakpointHandler {
	return engine.breakHandler
}

func (engine *Engine) StackHandler() *StackHandler {
	return engine.stackHandler
}

func (engine *Engine) WatchHandler() *WatchHandler {
	return engine.watchHandler
}

// Post 把任务投递到控制协程
func (engine *Engine) Post(task func()) bool {
	return engine.executor.Post(task)
}

// Finished 引擎进入DebuggerFinished时完成
func (engine *Engine) Finished() *Task[constants.DebuggerState] {
	return engine.finished
}

// AddObserver 添加观察者，返回的函数用于删除该观察者
func (engine *Engine) AddObserver(observer Observer) func() {
	return engine.observers.add(observer, false)
}

// AddAgent 添加一个跟随引擎生命周期的观察者，引擎结束时自动删除
func (engine *Engine) AddAgent(observer Observer) func() {
	return engine.observers.add(observer, true)
}

// Emit 向所有观察者广播事件
func (engine *Engine) Emit(event Event) {
	engine.observers.notify(event)
}

// Transition 迁移到新状态，迁移表之外的迁移会打印诊断日志，但依然执行
func (engine *Engine) Transition(state constants.DebuggerState) {
	engine.setState(state, false)
}

// ForceTransition 迁移到新状态，不做检查
func (engine *Engine) ForceTransition(state constants.DebuggerState) {
	engine.setState(state, true)
}

func (engine *Engine) setState(state constants.DebuggerState, forced bool) {
	old := engine.statusManager.Get()
	by := ""
	if forced {
		by = " BY FORCE"
	}
	msg := fmt.Sprintf("State changed%s from %s(%d) to %s(%d)", by, old, int(old), state, int(state))
	engine.logger.Debug(msg)

	engine.statusManager.Set(state)

	allowed := forced || IsAllowedTransition(old, state)
	if !allowed {
		if engine.IsDying() {
			engine.logger.Debugf("transition while dying: %s", msg)
		} else {
			engine.logger.Warnf("UNEXPECTED STATE TRANSITION: %s", msg)
		}
	}
	engine.metrics.RecordTransition(engine.name, old.String(), state.String(), forced, allowed)

	if state == constants.EngineRunRequested {
		engine.Emit(&EngineStartedEvent{})
	}

	engine.UpdateState()
	for _, companion := range engine.companions {
		companion.UpdateState()
	}

	engine.Emit(&StateChangedEvent{
		From:    old,
		To:      state,
		Forced:  forced,
		Changed: old != state,
	})

	if old == constants.InferiorRunOk && state == constants.InferiorStopOk {
		// 新的停止位置马上会到达，之前计划的位置重置不再需要
		engine.locationTimer.Stop()
		engine.watchHandler.ResetLocation()
	}

	if state == constants.DebuggerFinished {
		engine.finish()
	}
}

func (engine *Engine) finish() {
	engine.breakHandler.ReleaseAll()
	if n := engine.observers.detachAgents(); n > 0 {
		engine.logger.Debugf("detached %d agents", n)
	}
	engine.Emit(&EngineFinishedEvent{})
	if engine.registry != nil {
		engine.registry.Deregister(engine.id)
	}
	engine.finished.Complete(constants.DebuggerFinished, nil)
}

// checkState 检查前置状态，不满足时打印诊断日志（进入关闭流程之后不打印）
func (engine *Engine) checkState(operation string, expected ...constants.DebuggerState) bool {
	if engine.statusManager.Is(expected...) {
		return true
	}
	if !engine.IsDying() {
		engine.logger.Warnf("%s: unexpected state %s, expected %v", operation, engine.State(), expected)
	}
	return false
}

// ShowMessage 调试日志
func (engine *Engine) ShowMessage(msg string) {
	engine.logger.Debug(msg)
}

// ShowStatusMessage 状态栏信息
func (engine *Engine) ShowStatusMessage(msg string) {
	engine.logger.Info(msg)
	engine.mu.Lock()
	engine.statusMessage = msg
	engine.mu.Unlock()
	engine.Emit(&StatusMessageEvent{Message: msg})
}

func (engine *Engine) StatusMessage() string {
	engine.mu.RLock()
	defer engine.mu.RUnlock()
	return engine.statusMessage
}

// ShowOutput 转发用户程序的输出
func (engine *Engine) ShowOutput(output string, category constants.OutputCategory) {
	engine.Emit(&OutputEvent{Category: category, Output: output})
}

func (engine *Engine) setProgress(value int, canceled bool) {
	if !engine.isPrimary {
		return
	}
	engine.mu.Lock()
	engine.progress = value
	engine.mu.Unlock()
	engine.Emit(&ProgressEvent{Value: value, Canceled: canceled})
}

func (engine *Engine) Progress() int {
	engine.mu.RLock()
	defer engine.mu.RUnlock()
	return engine.progress
}
