package qml_debugger

import (
	"encoding/json"
	"strings"

	"github.com/fansqz/debug-engine/debugger"
	"github.com/fansqz/debug-engine/protocol"
)

// decodeObject 解析调试服务返回的对象，值不是对象时作为普通值处理
func decodeObject(raw json.RawMessage) protocol.ObjectData {
	var data protocol.ObjectData
	if len(raw) == 0 {
		return data
	}
	if strings.HasPrefix(strings.TrimSpace(string(raw)), "{") {
		if err := json.Unmarshal(raw, &data); err == nil {
			return data
		}
	}
	data.Value = raw
	data.Type = valueType(raw)
	return data
}

// valueType 根据JSON文本推断值的类型
func valueType(raw json.RawMessage) string {
	text := strings.TrimSpace(string(raw))
	switch {
	case text == "" || text == "null":
		return "undefined"
	case text == "true" || text == "false":
		return "boolean"
	case strings.HasPrefix(text, "\""):
		return "string"
	case strings.HasPrefix(text, "{") || strings.HasPrefix(text, "["):
		return "object"
	default:
		return "number"
	}
}

func objectVariable(name string, data protocol.ObjectData) debugger.Variable {
	typ := data.Type
	if typ == "" {
		typ = valueType(data.Value)
	}
	return debugger.Variable{
		Name:  name,
		Type:  typ,
		Value: protocol.ExtractString(data.Value),
	}
}

func propertyVariable(property protocol.Property) debugger.Variable {
	return objectVariable(property.Name, decodeObject(property.Value))
}
