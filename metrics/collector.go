// Package metrics 提供调试引擎的 Prometheus 指标。
// 状态机和命令队列通过辅助方法更新指标，未配置指标时这些方法可以在 nil 上安全调用。
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 调试引擎运行时指标集合
type Metrics struct {
	// StateTransitions 状态迁移次数
	// 标签: engine, from, to, forced
	StateTransitions *prometheus.CounterVec

	// UnexpectedTransitions 迁移表之外的状态迁移次数
	// 标签: engine
	UnexpectedTransitions *prometheus.CounterVec

	// ActiveEngines 当前注册的引擎数量
	ActiveEngines prometheus.Gauge

	// CommandsTotal 发送到后端的命令数量
	// 标签: command
	CommandsTotal *prometheus.CounterVec

	// PendingCallbacks 等待响应的回调数量
	PendingCallbacks prometheus.Gauge

	// CommandLatency 命令从发送到收到响应的耗时（秒）
	// 标签: command
	CommandLatency *prometheus.HistogramVec

	// DroppedMessages 无法识别而被丢弃的后端消息
	// 标签: reason
	DroppedMessages *prometheus.CounterVec
}

// NewMetrics 在reg上注册并返回指标集合，reg为nil时使用默认注册器
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		StateTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_transitions_total",
				Help:      "Total number of debugger state transitions",
			},
			[]string{"engine", "from", "to", "forced"},
		),
		UnexpectedTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unexpected_transitions_total",
				Help:      "Transitions applied although the transition table does not allow them",
			},
			[]string{"engine"},
		),
		ActiveEngines: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_engines",
				Help:      "Engines currently registered",
			},
		),
		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Total number of commands sent to the backend",
			},
			[]string{"command"},
		),
		PendingCallbacks: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_callbacks",
				Help:      "Commands waiting for a response",
			},
		),
		CommandLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_latency_seconds",
				Help:      "Time between sending a command and receiving its response",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"command"},
		),
		DroppedMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dropped_messages_total",
				Help:      "Backend messages dropped without a handler",
			},
			[]string{"reason"},
		),
	}
}

// RecordTransition 记录一次状态迁移
func (m *Metrics) RecordTransition(engine, from, to string, forced, allowed bool) {
	if m == nil {
		return
	}
	m.StateTransitions.WithLabelValues(engine, from, to, strconv.FormatBool(forced)).Inc()
	if !allowed {
		m.UnexpectedTransitions.WithLabelValues(engine).Inc()
	}
}

// EngineRegistered 引擎注册
func (m *Metrics) EngineRegistered() {
	if m == nil {
		return
	}
	m.ActiveEngines.Inc()
}

// EngineDeregistered 引擎注销
func (m *Metrics) EngineDeregistered() {
	if m == nil {
		return
	}
	m.ActiveEngines.Dec()
}

// RecordCommand 记录一次发送的命令
func (m *Metrics) RecordCommand(command string) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(command).Inc()
}

// SetPendingCallbacks 更新等待中的回调数量
func (m *Metrics) SetPendingCallbacks(n int) {
	if m == nil {
		return
	}
	m.PendingCallbacks.Set(float64(n))
}

// ObserveCommandLatency 记录命令耗时
func (m *Metrics) ObserveCommandLatency(command string, d time.Duration) {
	if m == nil {
		return
	}
	m.CommandLatency.WithLabelValues(command).Observe(d.Seconds())
}

// RecordDropped 记录被丢弃的消息
func (m *Metrics) RecordDropped(reason string) {
	if m == nil {
		return
	}
	m.DroppedMessages.WithLabelValues(reason).Inc()
}
