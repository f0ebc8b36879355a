package dapserver

import (
	"github.com/google/go-dap"

	"github.com/fansqz/debug-engine/constants"
	"github.com/fansqz/debug-engine/debugger"
)

// onEngineEvent 把引擎事件转换为DAP事件，在控制协程中调用
func (d *DebugSession) onEngineEvent(event debugger.Event) {
	switch ev := event.(type) {
	case *debugger.StateChangedEvent:
		if ev.Changed && ev.To == constants.InferiorRunOk {
			d.sendContinuedEvent()
		}
	case *debugger.StoppedEvent:
		d.sendStoppedEvent(ev)
	case *debugger.OutputEvent:
		d.send(&dap.OutputEvent{
			Event: d.newEvent("output"),
			Body: dap.OutputEventBody{
				Category: translateOutputCategory(ev.Category),
				Output:   ev.Output,
			},
		})
	case *debugger.BreakpointChangedEvent:
		// 新增和删除的断点由客户端发起，已经体现在setBreakpoints的响应中
		if ev.Reason != constants.ChangeType {
			return
		}
		d.send(&dap.BreakpointEvent{
			Event: d.newEvent("breakpoint"),
			Body: dap.BreakpointEventBody{
				Reason:     string(ev.Reason),
				Breakpoint: translateBreakpoint(&ev.Breakpoint),
			},
		})
	case *debugger.StatusMessageEvent:
		d.logger.Debugf("status: %s", ev.Message)
	case *debugger.EngineFinishedEvent:
		d.sendTerminated()
	}
}

func (d *DebugSession) sendContinuedEvent() {
	d.send(&dap.ContinuedEvent{
		Event: d.newEvent("continued"),
		Body: dap.ContinuedEventBody{
			ThreadId:            threadID,
			AllThreadsContinued: true,
		},
	})
}

func (d *DebugSession) sendStoppedEvent(ev *debugger.StoppedEvent) {
	var hit []int
	if ev.Reason == constants.BreakpointStopped {
		for _, bp := range d.engine.BreakHandler().Breakpoints() {
			if bp.Hit {
				hit = append(hit, bp.ID)
			}
		}
	}
	d.send(&dap.StoppedEvent{
		Event: d.newEvent("stopped"),
		Body: dap.StoppedEventBody{
			Reason:            string(ev.Reason),
			ThreadId:          threadID,
			Text:              ev.Text,
			AllThreadsStopped: true,
			HitBreakpointIds:  hit,
		},
	})
}
