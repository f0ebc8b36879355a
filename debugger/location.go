package debugger

// ScheduleResetLocation 延迟重置当前位置
// 程序运行之后如果很快又停下，位置标记不会闪烁
func (engine *Engine) ScheduleResetLocation() {
	engine.stackHandler.ScheduleResetLocation()
	engine.locationTimer.Start(engine.locationResetDelay, engine.ResetLocation)
}

// ResetLocation 立即清除位置标记
func (engine *Engine) ResetLocation() {
	engine.locationTimer.Stop()
	engine.mu.Lock()
	engine.location = nil
	engine.mu.Unlock()
	engine.stackHandler.ResetLocation()
	engine.watchHandler.ResetLocation()
	engine.breakHandler.ResetLocation()
}

// GotoLocation 记录新的停止位置，取消尚未执行的位置重置
func (engine *Engine) GotoLocation(location Location) {
	engine.locationTimer.Stop()
	engine.mu.Lock()
	engine.location = &location
	engine.mu.Unlock()
}

// Location 当前停止的位置，没有时返回nil
func (engine *Engine) Location() *Location {
	engine.mu.RLock()
	defer engine.mu.RUnlock()
	if engine.location == nil {
		return nil
	}
	answer := *engine.location
	return &answer
}

// IsLocationResetPending 是否有尚未执行的位置重置
func (engine *Engine) IsLocationResetPending() bool {
	return engine.locationTimer.IsActive()
}
