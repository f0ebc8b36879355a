package debugger

import (
	"sync"

	"github.com/emirpasic/gods/maps/linkedhashmap"

	"github.com/fansqz/debug-engine/constants"
	e "github.com/fansqz/debug-engine/error"
	"github.com/fansqz/debug-engine/metrics"
)

// Registry 记录当前运行中的引擎，按照注册顺序排列
type Registry struct {
	lock    sync.RWMutex
	engines *linkedhashmap.Map
	metrics *metrics.Metrics
}

func NewRegistry(m *metrics.Metrics) *Registry {
	return &Registry{
		engines: linkedhashmap.New(),
		metrics: m,
	}
}

// Register 注册引擎，重复注册会被忽略
func (r *Registry) Register(engine *Engine) string {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.engines.Get(engine.ID()); ok {
		return engine.ID()
	}
	r.engines.Put(engine.ID(), engine)
	r.metrics.EngineRegistered()
	return engine.ID()
}

func (r *Registry) Deregister(id string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.engines.Get(id); !ok {
		return
	}
	r.engines.Remove(id)
	r.metrics.EngineDeregistered()
}

func (r *Registry) Get(id string) (*Engine, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	value, ok := r.engines.Get(id)
	if !ok {
		return nil, e.ErrEngineNotFound
	}
	return value.(*Engine), nil
}

// Engines 所有引擎，按照注册顺序排列
func (r *Registry) Engines() []*Engine {
	r.lock.RLock()
	defer r.lock.RUnlock()
	answer := make([]*Engine, 0, r.engines.Size())
	for _, value := range r.engines.Values() {
		answer = append(answer, value.(*Engine))
	}
	return answer
}

func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.engines.Size()
}

func (r *Registry) FindByKind(kind constants.EngineKind) []*Engine {
	var answer []*Engine
	for _, engine := range r.Engines() {
		if engine.Kind() == kind {
			answer = append(answer, engine)
		}
	}
	return answer
}
