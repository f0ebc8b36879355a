package qml_debugger

import (
	"context"
)

// Transport 与调试服务之间的连接
type Transport interface {
	// Send 发送一条完整的消息，可以在任意协程中调用
	Send(data []byte) error
	Close() error
}

// TransportHandler 接收连接上的事件，在传输层自己的协程中调用
type TransportHandler interface {
	OnMessage(data []byte)
	// OnClosed 连接关闭，正常关闭时err为nil
	OnClosed(err error)
}

// Dialer 建立到调试服务的连接
type Dialer interface {
	Dial(ctx context.Context, url string, handler TransportHandler) (Transport, error)
}
