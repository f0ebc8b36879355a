package qml_debugger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	e "github.com/fansqz/debug-engine/error"
	"github.com/fansqz/debug-engine/utils/gosync"
)

const writeWait = 10 * time.Second

// WebsocketDialer 通过websocket连接调试服务
type WebsocketDialer struct {
	HandshakeTimeout time.Duration
}

func (d *WebsocketDialer) Dial(ctx context.Context, url string, handler TransportHandler) (Transport, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: d.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", e.ErrConnectionFailed, err)
	}
	t := &websocketTransport{
		conn:    conn,
		handler: handler,
	}
	gosync.Go(context.Background(), t.readLoop)
	return t, nil
}

// websocketTransport 每条websocket文本消息是一个Packet
type websocketTransport struct {
	conn      *websocket.Conn
	handler   TransportHandler
	writeLock sync.Mutex
	closeOnce sync.Once
	closed    bool
}

func (t *websocketTransport) Send(data []byte) error {
	t.writeLock.Lock()
	defer t.writeLock.Unlock()
	if t.closed {
		return e.ErrTransportNotReady
	}
	if err := t.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *websocketTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.writeLock.Lock()
		t.closed = true
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		t.writeLock.Unlock()
		err = t.conn.Close()
	})
	return err
}

func (t *websocketTransport) readLoop(ctx context.Context) {
	for {
		messageType, data, err := t.conn.ReadMessage()
		if err != nil {
			_ = t.Close()
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.handler.OnClosed(nil)
			} else {
				logrus.Debugf("[websocketTransport] read fail, err = %v", err)
				t.handler.OnClosed(errors.Join(e.ErrConnectionFailed, err))
			}
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		t.handler.OnMessage(data)
	}
}
