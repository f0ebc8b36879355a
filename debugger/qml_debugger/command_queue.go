package qml_debugger

import (
	"time"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/queues/linkedlistqueue"
	godsutils "github.com/emirpasic/gods/utils"
	"github.com/sirupsen/logrus"

	"github.com/fansqz/debug-engine/metrics"
	"github.com/fansqz/debug-engine/protocol"
)

// CommandCallback 命令响应的回调
type CommandCallback func(response *protocol.Message)

type pendingCommand struct {
	command  string
	callback CommandCallback
	sentAt   time.Time
}

// CommandQueue 给调试服务发送命令，并根据序号把响应交给对应的回调
// 连接可用之前发送的消息按顺序缓存，连接可用时一次性发出。只能在控制协程中使用
type CommandQueue struct {
	sequence   int
	callbacks  *treemap.Map
	sendBuffer *linkedlistqueue.Queue
	transport  Transport
	logger     *logrus.Entry
	metrics    *metrics.Metrics
}

func NewCommandQueue(logger *logrus.Entry, m *metrics.Metrics) *CommandQueue {
	return &CommandQueue{
		sequence:   -1,
		callbacks:  treemap.NewWith(godsutils.IntComparator),
		sendBuffer: linkedlistqueue.New(),
		logger:     logger,
		metrics:    m,
	}
}

// Sequence 最近一次发送的命令的序号
func (q *CommandQueue) Sequence() int {
	return q.sequence
}

// IsEnabled 连接是否可用
func (q *CommandQueue) IsEnabled() bool {
	return q.transport != nil
}

// Enable 连接可用，按顺序发出缓存的消息
func (q *CommandQueue) Enable(transport Transport) {
	q.transport = transport
	for !q.sendBuffer.Empty() {
		value, _ := q.sendBuffer.Dequeue()
		q.sendMessage(value.([]byte))
	}
}

// Disable 连接断开，丢弃尚未收到响应的回调和缓存的消息，返回丢弃的回调数量
func (q *CommandQueue) Disable() int {
	q.transport = nil
	dropped := q.callbacks.Size()
	if dropped > 0 {
		q.logger.Debugf("dropping %d pending callbacks", dropped)
		q.metrics.RecordDropped("disconnected")
	}
	q.callbacks.Clear()
	q.sendBuffer.Clear()
	q.metrics.SetPendingCallbacks(0)
	return dropped
}

// RunCommand 发送一个V8请求，返回它的序号
func (q *CommandQueue) RunCommand(command string, args protocol.Arguments, callback CommandCallback) int {
	q.sequence++
	seq := q.sequence
	data, err := protocol.NewRequest(seq, command, args).Marshal()
	if err != nil {
		q.logger.Errorf("marshal command %s fail, err = %v", command, err)
		return seq
	}
	if callback != nil {
		q.callbacks.Put(seq, &pendingCommand{command: command, callback: callback, sentAt: time.Now()})
		q.metrics.SetPendingCallbacks(q.callbacks.Size())
	}
	q.metrics.RecordCommand(command)
	q.RunDirectCommand(protocol.PacketV8Request, data)
	return seq
}

// RunDirectCommand 发送一个不需要序号的消息，例如connect和interrupt
func (q *CommandQueue) RunDirectCommand(packetType string, payload []byte) {
	q.logger.Debugf("%s %s", packetType, string(payload))
	data, err := protocol.EncodePacket(packetType, payload)
	if err != nil {
		q.logger.Errorf("encode packet %s fail, err = %v", packetType, err)
		return
	}
	if q.IsEnabled() {
		q.sendMessage(data)
	} else {
		q.sendBuffer.Enqueue(data)
	}
}

func (q *CommandQueue) sendMessage(data []byte) {
	if err := q.transport.Send(data); err != nil {
		q.logger.Warnf("send message fail, err = %v", err)
		q.metrics.RecordDropped("send_failed")
	}
}

// HandleResponse 调用响应对应的回调，没有回调时返回false
func (q *CommandQueue) HandleResponse(response *protocol.Message) bool {
	value, ok := q.callbacks.Get(response.RequestSeq)
	if !ok {
		return false
	}
	q.callbacks.Remove(response.RequestSeq)
	q.metrics.SetPendingCallbacks(q.callbacks.Size())
	pending := value.(*pendingCommand)
	q.metrics.ObserveCommandLatency(pending.command, time.Since(pending.sentAt))
	pending.callback(response)
	return true
}

// Pending 尚未收到响应的回调数量
func (q *CommandQueue) Pending() int {
	return q.callbacks.Size()
}

// Buffered 缓存中尚未发出的消息数量
func (q *CommandQueue) Buffered() int {
	return q.sendBuffer.Size()
}
