package qml_debugger

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fansqz/debug-engine/constants"
	"github.com/fansqz/debug-engine/debugger"
	"github.com/fansqz/debug-engine/protocol"
	"github.com/fansqz/debug-engine/utils/gosync"
)

const testURL = "ws://127.0.0.1:0/debugger"

// fakeTransport 记录发出的消息，并且可以模拟调试服务发来的消息
type fakeTransport struct {
	lock    sync.Mutex
	packets []*protocol.Packet
	closed  bool
	handler TransportHandler
	seq     int
}

func (t *fakeTransport) Send(data []byte) error {
	packet, err := protocol.DecodePacket(data)
	if err != nil {
		return err
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	t.packets = append(t.packets, packet)
	return nil
}

func (t *fakeTransport) Close() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) isClosed() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.closed
}

func (t *fakeTransport) sent() []*protocol.Packet {
	t.lock.Lock()
	defer t.lock.Unlock()
	answer := make([]*protocol.Packet, len(t.packets))
	copy(answer, t.packets)
	return answer
}

// requests 发出的所有V8请求
func (t *fakeTransport) requests() []*protocol.Request {
	var answer []*protocol.Request
	for _, packet := range t.sent() {
		if packet.Type != protocol.PacketV8Request {
			continue
		}
		req := &protocol.Request{}
		if err := json.Unmarshal(packet.Payload, req); err == nil {
			answer = append(answer, req)
		}
	}
	return answer
}

func (t *fakeTransport) requestsOf(command string) []*protocol.Request {
	var answer []*protocol.Request
	for _, req := range t.requests() {
		if req.Command == command {
			answer = append(answer, req)
		}
	}
	return answer
}

func (t *fakeTransport) lastRequest(command string) *protocol.Request {
	requests := t.requestsOf(command)
	if len(requests) == 0 {
		return nil
	}
	return requests[len(requests)-1]
}

func (t *fakeTransport) push(message map[string]interface{}) {
	t.lock.Lock()
	t.seq++
	message["seq"] = t.seq
	handler := t.handler
	t.lock.Unlock()
	payload, _ := json.Marshal(message)
	data, _ := protocol.EncodePacket(protocol.PacketV8Message, payload)
	handler.OnMessage(data)
}

func (t *fakeTransport) respond(req *protocol.Request, success bool, body interface{}) {
	t.push(map[string]interface{}{
		"type":        protocol.TypeResponse,
		"command":     req.Command,
		"request_seq": req.Seq,
		"success":     success,
		"running":     false,
		"body":        body,
	})
}

func (t *fakeTransport) event(event string, body interface{}) {
	t.push(map[string]interface{}{
		"type":  protocol.TypeEvent,
		"event": event,
		"body":  body,
	})
}

// fakeDialer 前failures次连接失败
type fakeDialer struct {
	lock      sync.Mutex
	failures  int
	attempts  int
	transport *fakeTransport
}

func (d *fakeDialer) Dial(ctx context.Context, url string, handler TransportHandler) (Transport, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.attempts++
	if d.failures > 0 {
		d.failures--
		return nil, errors.New("connection refused")
	}
	d.transport = &fakeTransport{handler: handler}
	return d.transport, nil
}

func (d *fakeDialer) attemptCount() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.attempts
}

func (d *fakeDialer) current() *fakeTransport {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.transport
}

type testHelper struct {
	t       *testing.T
	loop    *gosync.Loop
	backend *QmlEngine
	engine  *debugger.Engine
	dialer  *fakeDialer
	hook    *test.Hook

	lock   sync.Mutex
	events []debugger.Event
}

func newTestHelper(t *testing.T, dialer *fakeDialer, setup func(params *debugger.RunParameters)) *testHelper {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	h := &testHelper{
		t:      t,
		loop:   gosync.NewLoop(ctx),
		dialer: dialer,
		hook:   hook,
	}
	params := &debugger.RunParameters{
		StartMode:            constants.AttachToRemoteServer,
		ServerURL:            testURL,
		ConnectTimeout:       time.Second,
		ConnectRetryInterval: 10 * time.Millisecond,
		ConnectRetries:       3,
	}
	if setup != nil {
		setup(params)
	}
	h.backend = NewQmlEngine(WithDialer(dialer))
	h.engine = debugger.New(h.backend, params,
		debugger.WithExecutor(h.loop),
		debugger.WithLogger(logrus.NewEntry(logger)),
		debugger.WithObserver(func(event debugger.Event) {
			h.lock.Lock()
			defer h.lock.Unlock()
			h.events = append(h.events, event)
		}))
	return h
}

// sync 在控制协程中执行
func (h *testHelper) sync(task func()) {
	require.True(h.t, h.loop.Sync(task))
}

// flush 等待之前投递的任务执行完
func (h *testHelper) flush() {
	h.sync(func() {})
}

func (h *testHelper) waitState(state constants.DebuggerState) {
	assert.Eventually(h.t, func() bool {
		return h.engine.State() == state
	}, 2*time.Second, 5*time.Millisecond, "wait for state %s, current %s", state, h.engine.State())
}

// start 启动并等待连接建立
func (h *testHelper) start() *fakeTransport {
	h.sync(h.engine.Start)
	h.waitState(constants.InferiorRunOk)
	h.flush()
	transport := h.dialer.current()
	require.NotNil(h.t, transport)
	return transport
}

func (h *testHelper) stoppedEvents() []*debugger.StoppedEvent {
	h.lock.Lock()
	defer h.lock.Unlock()
	var answer []*debugger.StoppedEvent
	for _, event := range h.events {
		if stopped, ok := event.(*debugger.StoppedEvent); ok {
			answer = append(answer, stopped)
		}
	}
	return answer
}

func (h *testHelper) statusMessages() []string {
	h.lock.Lock()
	defer h.lock.Unlock()
	var answer []string
	for _, event := range h.events {
		if status, ok := event.(*debugger.StatusMessageEvent); ok {
			answer = append(answer, status.Message)
		}
	}
	return answer
}

func (h *testHelper) hasWarning(substr string) bool {
	for _, entry := range h.hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && strings.Contains(entry.Message, substr) {
			return true
		}
	}
	return false
}

func intArg(req *protocol.Request, name string) int {
	value, ok := req.Arguments[name]
	if !ok {
		return -1
	}
	return int(value.(float64))
}
