package debugger

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	"github.com/fansqz/debug-engine/constants"
)

const fakeKind constants.EngineKind = "fake"

// fakeBackend 测试用的后端，默认情况下所有异步操作都立即成功
type fakeBackend struct {
	BaseBackend
	calls             []string
	capabilities      constants.Capability
	companionPrevents bool

	// 为true时对应操作只记录调用，不通知状态机
	manualSetup     bool
	manualInterrupt bool
	manualShutdown  bool
	failSetup       bool

	inserted []*Breakpoint
	removed  []*Breakpoint
	updated  []*Breakpoint
}

func (f *fakeBackend) Kind() constants.EngineKind {
	return fakeKind
}

func (f *fakeBackend) record(name string) {
	f.calls = append(f.calls, name)
}

func (f *fakeBackend) count(name string) int {
	n := 0
	for _, call := range f.calls {
		if call == name {
			n++
		}
	}
	return n
}

func (f *fakeBackend) SetupEngine() {
	f.record("SetupEngine")
	if f.manualSetup {
		return
	}
	if f.failSetup {
		f.Engine().NotifyEngineSetupFailed()
		return
	}
	f.Engine().NotifyEngineSetupOk()
}

func (f *fakeBackend) ShutdownInferior() {
	f.record("ShutdownInferior")
	if !f.manualShutdown {
		f.Engine().NotifyInferiorShutdownFinished()
	}
}

func (f *fakeBackend) ShutdownEngine() {
	f.record("ShutdownEngine")
	if !f.manualShutdown {
		f.Engine().NotifyEngineShutdownFinished()
	}
}

func (f *fakeBackend) AbortEngine() {
	f.record("AbortEngine")
}

func (f *fakeBackend) ContinueInferior() {
	f.record("ContinueInferior")
	f.Engine().NotifyInferiorRunRequested()
	f.Engine().NotifyInferiorRunOk()
}

func (f *fakeBackend) InterruptInferior() {
	f.record("InterruptInferior")
	if !f.manualInterrupt {
		f.Engine().NotifyInferiorStopOk()
	}
}

func (f *fakeBackend) ExecuteStepIn() {
	f.record("ExecuteStepIn")
}

func (f *fakeBackend) ExecuteStepOver() {
	f.record("ExecuteStepOver")
}

func (f *fakeBackend) ExecuteStepOut() {
	f.record("ExecuteStepOut")
}

func (f *fakeBackend) ExecuteRunToLine(file string, line int) {
	f.record("ExecuteRunToLine")
}

func (f *fakeBackend) ActivateFrame(index int) {
	f.record("ActivateFrame")
}

func (f *fakeBackend) InsertBreakpoint(bp *Breakpoint) {
	f.inserted = append(f.inserted, bp)
}

func (f *fakeBackend) RemoveBreakpoint(bp *Breakpoint) {
	f.removed = append(f.removed, bp)
}

func (f *fakeBackend) UpdateBreakpoint(bp *Breakpoint) {
	f.updated = append(f.updated, bp)
}

func (f *fakeBackend) HasCapability(capability constants.Capability) bool {
	return f.capabilities&capability != 0
}

func (f *fakeBackend) CompanionPreventsActions() bool {
	return f.companionPrevents
}

// fakeCompanion 记录UpdateState的调用次数
type fakeCompanion struct {
	state   constants.DebuggerState
	updates int
}

func (c *fakeCompanion) State() constants.DebuggerState {
	return c.state
}

func (c *fakeCompanion) UpdateState() {
	c.updates++
}

// testHelper 测试辅助结构体
type testHelper struct {
	t       *testing.T
	backend *fakeBackend
	engine  *Engine
	hook    *test.Hook
	events  []Event
}

func newTestHelper(t *testing.T, opts ...Option) *testHelper {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	h := &testHelper{
		t:       t,
		backend: &fakeBackend{},
		hook:    hook,
	}
	opts = append([]Option{
		WithLogger(logger.WithField("engine", "test")),
		WithObserver(func(event Event) {
			h.events = append(h.events, event)
		}),
	}, opts...)
	h.engine = New(h.backend, &RunParameters{DisplayName: "test"}, opts...)
	return h
}

// states 按顺序返回所有状态迁移的目标状态
func (h *testHelper) states() []constants.DebuggerState {
	var answer []constants.DebuggerState
	for _, event := range h.events {
		if changed, ok := event.(*StateChangedEvent); ok {
			answer = append(answer, changed.To)
		}
	}
	return answer
}

func (h *testHelper) stateChanges() []*StateChangedEvent {
	var answer []*StateChangedEvent
	for _, event := range h.events {
		if changed, ok := event.(*StateChangedEvent); ok {
			answer = append(answer, changed)
		}
	}
	return answer
}

func (h *testHelper) countEvents(eventType constants.DebugEventType) int {
	n := 0
	for _, event := range h.events {
		if event.Type() == eventType {
			n++
		}
	}
	return n
}

func (h *testHelper) resetEvents() {
	h.events = nil
}

// warnings 返回所有Warn级别以上的日志
func (h *testHelper) warnings() []string {
	var answer []string
	for _, entry := range h.hook.AllEntries() {
		if entry.Level <= logrus.WarnLevel {
			answer = append(answer, entry.Message)
		}
	}
	return answer
}

func (h *testHelper) hasLog(level logrus.Level, substr string) bool {
	for _, entry := range h.hook.AllEntries() {
		if entry.Level == level && strings.Contains(entry.Message, substr) {
			return true
		}
	}
	return false
}

// running 把引擎带到InferiorRunOk
func (h *testHelper) running() {
	h.engine.Start()
	h.engine.NotifyEngineRunAndInferiorRunOk()
	assert.Equal(h.t, constants.InferiorRunOk, h.engine.State())
}

// stopped 把引擎带到InferiorStopOk
func (h *testHelper) stopped() {
	h.running()
	h.engine.NotifyInferiorSpontaneousStop()
	assert.Equal(h.t, constants.InferiorStopOk, h.engine.State())
}
