package debugger

import (
	"time"

	"github.com/fansqz/debug-engine/constants"
)

// RunParameters 启动调试的参数，对状态机只读
type RunParameters struct {
	// DisplayName 引擎名称，用于日志
	DisplayName string
	// StartMode 启动方式
	StartMode constants.StartMode
	// Executable 被调试的程序（脚本运行时）
	Executable  string
	Arguments   []string
	WorkingDir  string
	Environment []string
	// ServerURL 调试服务地址
	ServerURL string
	// Capabilities 额外声明的能力
	Capabilities constants.Capability

	ConnectTimeout       time.Duration
	ConnectRetryInterval time.Duration
	ConnectRetries       int
}

// HasCapability 参数中是否声明了某个能力
func (p *RunParameters) HasCapability(c constants.Capability) bool {
	return p != nil && p.Capabilities&c != 0
}

// Location 当前停止的位置
type Location struct {
	File     string
	Line     int
	Function string
}

// StackFrame 栈帧
type StackFrame struct {
	Level    int    `json:"level"`
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Receiver string `json:"receiver"`
	// Usable 文件在本地可以找到
	Usable bool `json:"usable"`
}

// Variable 变量
type Variable struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}
