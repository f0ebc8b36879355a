package dapserver

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-dap"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/fansqz/debug-engine/config"
	"github.com/fansqz/debug-engine/metrics"
	"github.com/fansqz/debug-engine/protocol"
)

const readTimeout = 5 * time.Second

// fakeRuntime 一个脚本运行时调试服务，自动回复引擎发送的请求
type fakeRuntime struct {
	server *httptest.Server

	mu             sync.Mutex
	conn           *websocket.Conn
	seq            int
	nextBreakpoint int
	commands       []string
	// frames backtrace返回的栈帧数量
	frames int
	// frameDelay 栈帧0之外的frame请求延迟回复
	frameDelay time.Duration
}

func newFakeRuntime(t *testing.T) *fakeRuntime {
	r := &fakeRuntime{nextBreakpoint: 1, frames: 1}
	upgrader := websocket.Upgrader{}
	r.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		r.mu.Lock()
		r.conn = conn
		r.mu.Unlock()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			packet, err := protocol.DecodePacket(data)
			if err != nil || packet.Type != protocol.PacketV8Request {
				continue
			}
			request := &protocol.Request{}
			if err := json.Unmarshal(packet.Payload, request); err != nil {
				continue
			}
			r.respond(request)
		}
	}))
	t.Cleanup(r.server.Close)
	return r
}

func (r *fakeRuntime) url() string {
	return "ws" + strings.TrimPrefix(r.server.URL, "http")
}

func (r *fakeRuntime) received(command string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.commands {
		if c == command {
			return true
		}
	}
	return false
}

func (r *fakeRuntime) respond(request *protocol.Request) {
	r.mu.Lock()
	r.commands = append(r.commands, request.Command)
	r.mu.Unlock()

	response := map[string]interface{}{
		"type":        protocol.TypeResponse,
		"command":     request.Command,
		"request_seq": request.Seq,
		"success":     true,
		"running":     request.Command == protocol.CommandContinue,
	}
	switch request.Command {
	case protocol.CommandVersion:
		response["body"] = map[string]interface{}{"UnpausedEvaluate": true, "ChangeBreakpoint": true}
	case protocol.CommandSetBreakpoint:
		r.mu.Lock()
		id := r.nextBreakpoint
		r.nextBreakpoint++
		r.mu.Unlock()
		line := request.Arguments["line"]
		response["body"] = map[string]interface{}{
			"type":             protocol.BreakpointScriptRegExp,
			"breakpoint":       id,
			"line":             line,
			"actual_locations": []interface{}{map[string]interface{}{"line": line}},
		}
	case protocol.CommandScripts:
		response["body"] = []interface{}{map[string]interface{}{"id": 1, "name": "main.qml"}}
	case protocol.CommandBacktrace:
		r.mu.Lock()
		count := r.frames
		r.mu.Unlock()
		frames := []interface{}{
			map[string]interface{}{"index": 0, "func": "onClicked", "script": "main.qml", "line": 9, "sourceLineText": "foo()"},
		}
		for i := 1; i < count; i++ {
			frames = append(frames, map[string]interface{}{
				"index": i, "func": fmt.Sprintf("caller%d", i), "script": "main.qml", "line": 20 + i, "sourceLineText": "bar()",
			})
		}
		response["body"] = map[string]interface{}{
			"fromFrame":   0,
			"toFrame":     count,
			"totalFrames": count,
			"frames":      frames,
		}
	case protocol.CommandFrame:
		number, _ := request.Arguments["number"].(float64)
		local := map[string]interface{}{"name": "count", "value": map[string]interface{}{"type": "number", "value": 3}}
		if number != 0 {
			local = map[string]interface{}{"name": "level", "value": map[string]interface{}{"type": "number", "value": number}}
			r.mu.Lock()
			delay := r.frameDelay
			r.mu.Unlock()
			time.Sleep(delay)
		}
		response["body"] = map[string]interface{}{
			"index":  int(number),
			"locals": []interface{}{local},
		}
	case protocol.CommandEvaluate:
		response["body"] = map[string]interface{}{"handle": 1, "type": "number", "value": 42}
	}
	r.write(response)
}

// breakAt 程序停在line（从0开始）
func (r *fakeRuntime) breakAt(line int, breakpoints ...int) {
	r.write(map[string]interface{}{
		"type":  protocol.TypeEvent,
		"event": protocol.EventBreak,
		"body": map[string]interface{}{
			"invocationText": "onClicked()",
			"sourceLine":     line,
			"sourceLineText": "foo()",
			"script":         map[string]interface{}{"id": 1, "name": "main.qml"},
			"breakpoints":    breakpoints,
		},
	})
}

func (r *fakeRuntime) write(message map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	message["seq"] = r.seq
	payload, _ := json.Marshal(message)
	data, _ := protocol.EncodePacket(protocol.PacketV8Message, payload)
	if r.conn != nil {
		_ = r.conn.WriteMessage(websocket.TextMessage, data)
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Engine.ConnectTimeout = time.Second
	cfg.Engine.ConnectRetryInterval = 10 * time.Millisecond
	cfg.Engine.ConnectRetries = 1
	cfg.Engine.CommandTimeout = 2 * time.Second
	cfg.Engine.LocationResetDelay = 10 * time.Millisecond
	return cfg
}

// testClient DAP客户端
type testClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
	seq    int
	done   chan error
	server *Server
}

func newTestClient(t *testing.T) *testClient {
	server := New(testConfig(), WithMetrics(metrics.NewMetrics("test", prometheus.NewRegistry())))
	client, conn := net.Pipe()
	c := &testClient{
		t:      t,
		conn:   client,
		reader: bufio.NewReader(client),
		done:   make(chan error, 1),
		server: server,
	}
	go func() {
		c.done <- server.ServeConn(conn)
	}()
	t.Cleanup(func() {
		_ = client.Close()
		server.Shutdown()
	})
	return c
}

func (c *testClient) request(command string) dap.Request {
	c.seq++
	return dap.Request{
		ProtocolMessage: dap.ProtocolMessage{Seq: c.seq, Type: "request"},
		Command:         command,
	}
}

func (c *testClient) send(message dap.Message) {
	require.NoError(c.t, c.conn.SetWriteDeadline(time.Now().Add(readTimeout)))
	require.NoError(c.t, dap.WriteProtocolMessage(c.conn, message))
}

func (c *testClient) read() dap.Message {
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(readTimeout)))
	message, err := dap.ReadProtocolMessage(c.reader)
	require.NoError(c.t, err)
	return message
}

// readUntil 读取消息直到match返回true，中间的其他消息被跳过
func (c *testClient) readUntil(match func(dap.Message) bool) dap.Message {
	for {
		message := c.read()
		if match(message) {
			return message
		}
	}
}

func expectMessage[T dap.Message](c *testClient) T {
	message := c.readUntil(func(m dap.Message) bool {
		_, ok := m.(T)
		return ok
	})
	return message.(T)
}

func (c *testClient) initialize() {
	c.send(&dap.InitializeRequest{Request: c.request("initialize")})
	expectMessage[*dap.InitializeResponse](c)
	expectMessage[*dap.InitializedEvent](c)
}

func (c *testClient) attach(url string) {
	args, _ := json.Marshal(map[string]interface{}{"url": url})
	c.send(&dap.AttachRequest{Request: c.request("attach"), Arguments: args})
	response := expectMessage[*dap.AttachResponse](c)
	require.True(c.t, response.Success)
}
