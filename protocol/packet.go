// Package protocol 脚本运行时调试服务的消息格式。
// 每条websocket消息是一个Packet，Packet中携带V8风格的JSON请求、响应或事件。
package protocol

import (
	"encoding/json"
	"fmt"
)

// Packet 的类型
const (
	PacketConnect       = "connect"
	PacketInterrupt     = "interrupt"
	PacketBreakOnSignal = "breakonsignal"
	PacketV8Request     = "v8request"
	PacketV8Message     = "v8message"
)

// Packet 传输层的消息信封
type Packet struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EncodePacket 编码一个消息信封，payload为nil时不携带payload
func EncodePacket(typ string, payload []byte) ([]byte, error) {
	p := Packet{Type: typ}
	if len(payload) != 0 {
		p.Payload = json.RawMessage(payload)
	}
	return json.Marshal(p)
}

// DecodePacket 解码消息信封
func DecodePacket(data []byte) (*Packet, error) {
	p := &Packet{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decode packet: %w", err)
	}
	if p.Type == "" {
		return nil, fmt.Errorf("decode packet: missing type")
	}
	return p, nil
}
