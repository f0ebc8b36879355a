package debugger

import (
	"sync"
)

// WatchHandler 监视表达式和当前栈帧的局部变量
type WatchHandler struct {
	lock     sync.RWMutex
	watchers []string
	values   map[string]string
	locals   []Variable
	stale    bool
}

func NewWatchHandler() *WatchHandler {
	return &WatchHandler{values: map[string]string{}}
}

// AddWatcher 添加监视表达式，重复添加会被忽略
func (w *WatchHandler) AddWatcher(expression string) bool {
	w.lock.Lock()
	defer w.lock.Unlock()
	for _, watcher := range w.watchers {
		if watcher == expression {
			return false
		}
	}
	w.watchers = append(w.watchers, expression)
	return true
}

func (w *WatchHandler) RemoveWatcher(expression string) {
	w.lock.Lock()
	defer w.lock.Unlock()
	for i, watcher := range w.watchers {
		if watcher == expression {
			w.watchers = append(w.watchers[:i:i], w.watchers[i+1:]...)
			delete(w.values, expression)
			return
		}
	}
}

func (w *WatchHandler) Watchers() []string {
	w.lock.RLock()
	defer w.lock.RUnlock()
	answer := make([]string, len(w.watchers))
	copy(answer, w.watchers)
	return answer
}

func (w *WatchHandler) SetWatcherValue(expression string, value string) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.values[expression] = value
}

func (w *WatchHandler) WatcherValue(expression string) (string, bool) {
	w.lock.RLock()
	defer w.lock.RUnlock()
	value, ok := w.values[expression]
	return value, ok
}

func (w *WatchHandler) SetLocals(locals []Variable) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.locals = make([]Variable, len(locals))
	copy(w.locals, locals)
	w.stale = false
}

// AddLocals 追加局部变量，例如异步返回的作用域中的变量
func (w *WatchHandler) AddLocals(locals []Variable) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.locals = append(w.locals, locals...)
}

func (w *WatchHandler) Locals() []Variable {
	w.lock.RLock()
	defer w.lock.RUnlock()
	answer := make([]Variable, len(w.locals))
	copy(answer, w.locals)
	return answer
}

// ResetWatchers 清空监视表达式的值，表达式本身保留
func (w *WatchHandler) ResetWatchers() {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.values = map[string]string{}
	w.locals = nil
}

// Clear 清空所有数据
func (w *WatchHandler) Clear() {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.watchers = nil
	w.values = map[string]string{}
	w.locals = nil
	w.stale = false
}

func (w *WatchHandler) ResetLocation() {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.stale = true
}

// IsStale 局部变量是否来自上一次停止
func (w *WatchHandler) IsStale() bool {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return w.stale
}
