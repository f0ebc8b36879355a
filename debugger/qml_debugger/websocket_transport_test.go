package qml_debugger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	e "github.com/fansqz/debug-engine/error"
	"github.com/fansqz/debug-engine/protocol"
)

type channelHandler struct {
	messages chan []byte
	closed   chan error
}

func newChannelHandler() *channelHandler {
	return &channelHandler{
		messages: make(chan []byte, 16),
		closed:   make(chan error, 1),
	}
}

func (h *channelHandler) OnMessage(data []byte) {
	h.messages <- data
}

func (h *channelHandler) OnClosed(err error) {
	h.closed <- err
}

// newDebugServer 一个简单的调试服务：回显收到的消息，收到close请求时正常关闭连接
func newDebugServer(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			packet, err := protocol.DecodePacket(data)
			if err == nil && packet.Type == "close" {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
				return
			}
			if err == nil && packet.Type == "drop" {
				return
			}
			if err := conn.WriteMessage(messageType, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWebsocketTransport_RoundTrip(t *testing.T) {
	server := newDebugServer(t)
	handler := newChannelHandler()
	dialer := &WebsocketDialer{HandshakeTimeout: time.Second}

	transport, err := dialer.Dial(context.Background(), wsURL(server), handler)
	require.NoError(t, err)

	data, _ := protocol.EncodePacket(protocol.PacketConnect, []byte(`{"redundantRefs":false}`))
	require.NoError(t, transport.Send(data))
	select {
	case got := <-handler.messages:
		assert.Equal(t, data, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no echo")
	}

	closeData, _ := protocol.EncodePacket("close", nil)
	require.NoError(t, transport.Send(closeData))
	select {
	case err := <-handler.closed:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("not closed")
	}
	assert.ErrorIs(t, transport.Send(data), e.ErrTransportNotReady)
}

func TestWebsocketTransport_ConnectionLost(t *testing.T) {
	server := newDebugServer(t)
	handler := newChannelHandler()
	dialer := &WebsocketDialer{HandshakeTimeout: time.Second}

	transport, err := dialer.Dial(context.Background(), wsURL(server), handler)
	require.NoError(t, err)
	defer transport.Close()

	dropData, _ := protocol.EncodePacket("drop", nil)
	require.NoError(t, transport.Send(dropData))
	select {
	case err := <-handler.closed:
		assert.ErrorIs(t, err, e.ErrConnectionFailed)
	case <-time.After(2 * time.Second):
		t.Fatal("not closed")
	}
}

func TestWebsocketDialer_Refused(t *testing.T) {
	server := newDebugServer(t)
	url := wsURL(server)
	server.Close()

	_, err := (&WebsocketDialer{HandshakeTimeout: time.Second}).Dial(context.Background(), url, newChannelHandler())
	assert.ErrorIs(t, err, e.ErrConnectionFailed)
}
