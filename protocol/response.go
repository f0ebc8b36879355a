package protocol

import (
	"encoding/json"
	"fmt"
)

// Message 调试服务发来的V8消息，可能是响应也可能是事件
type Message struct {
	Seq        int             `json:"seq"`
	Type       string          `json:"type"`
	Command    string          `json:"command,omitempty"`
	RequestSeq int             `json:"request_seq,omitempty"`
	Success    bool            `json:"success,omitempty"`
	Running    bool            `json:"running,omitempty"`
	Event      string          `json:"event,omitempty"`
	Message    string          `json:"message,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
}

const (
	TypeResponse = "response"
	TypeEvent    = "event"
)

func DecodeMessage(data []byte) (*Message, error) {
	m := &Message{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("decode v8 message: %w", err)
	}
	return m, nil
}

// DecodeBody 把body解码到v
func (m *Message) DecodeBody(v interface{}) error {
	if len(m.Body) == 0 {
		return nil
	}
	return json.Unmarshal(m.Body, v)
}

// VersionBody version命令的响应
type VersionBody struct {
	V8Version        string `json:"V8Version"`
	UnpausedEvaluate bool   `json:"UnpausedEvaluate"`
	ContextEvaluate  bool   `json:"ContextEvaluate"`
	ChangeBreakpoint bool   `json:"ChangeBreakpoint"`
}

// SetBreakpointBody setbreakpoint命令的响应
type SetBreakpointBody struct {
	Type            string            `json:"type"`
	Breakpoint      int               `json:"breakpoint"`
	Line            int               `json:"line"`
	Column          int               `json:"column"`
	ActualLocations []json.RawMessage `json:"actual_locations"`
}

// BacktraceBody backtrace命令的响应
type BacktraceBody struct {
	FromFrame   int     `json:"fromFrame"`
	ToFrame     int     `json:"toFrame"`
	TotalFrames int     `json:"totalFrames"`
	Frames      []Frame `json:"frames"`
}

// Frame 栈帧，同时也是frame命令的响应
type Frame struct {
	Index          *int            `json:"index"`
	Func           json.RawMessage `json:"func"`
	Script         json.RawMessage `json:"script"`
	Receiver       json.RawMessage `json:"receiver"`
	Line           int             `json:"line"`
	Column         int             `json:"column"`
	SourceLineText string          `json:"sourceLineText"`
	Arguments      []Property      `json:"arguments"`
	Locals         []Property      `json:"locals"`
	Scopes         []ScopeRef      `json:"scopes"`
}

// ScopeGlobal 全局作用域，不展示
const ScopeGlobal = 0

// ScopeRef 栈帧中的作用域
type ScopeRef struct {
	Type  int `json:"type"`
	Index int `json:"index"`
}

// ObjectData 调试服务返回的对象
type ObjectData struct {
	Handle     int             `json:"handle"`
	Name       json.RawMessage `json:"name"`
	Type       string          `json:"type"`
	Value      json.RawMessage `json:"value"`
	Properties []ObjectData    `json:"properties"`
}

// ScopeBody scope命令的响应
type ScopeBody struct {
	Index      int        `json:"index"`
	FrameIndex int        `json:"frameIndex"`
	Type       int        `json:"type"`
	Object     ObjectData `json:"object"`
}

// ScriptBody scripts命令的响应中的一项
type ScriptBody struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	LineOffset   int    `json:"lineOffset"`
	ColumnOffset int    `json:"columnOffset"`
	LineCount    int    `json:"lineCount"`
}

// Property 局部变量或参数
type Property struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// EvaluateBody evaluate命令的响应
type EvaluateBody struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
	Text  string          `json:"text"`
}

// ExtractString 取出一个值的展示文本
// 值可以是字符串，也可以是带有 name / value / text 字段的对象
func ExtractString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, key := range []string{"name", "value", "text"} {
			if v, ok := obj[key]; ok {
				if str := ExtractString(v); str != "" {
					return str
				}
			}
		}
		return ""
	}
	// 数字、布尔等直接使用JSON文本
	return string(raw)
}
