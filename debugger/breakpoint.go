package debugger

import (
	"github.com/emirpasic/gods/maps/treemap"
	godsutils "github.com/emirpasic/gods/utils"

	"github.com/fansqz/debug-engine/constants"
	e "github.com/fansqz/debug-engine/error"
)

// BreakpointState 断点在后端中的状态
type BreakpointState int

const (
	BreakpointNew BreakpointState = iota
	BreakpointInsertionRequested
	BreakpointInserted
	BreakpointUpdateRequested
	BreakpointRemoveRequested
	BreakpointRemoved
	BreakpointFailed
)

var breakpointStateNames = map[BreakpointState]string{
	BreakpointNew:                "New",
	BreakpointInsertionRequested: "InsertionRequested",
	BreakpointInserted:           "Inserted",
	BreakpointUpdateRequested:    "UpdateRequested",
	BreakpointRemoveRequested:    "RemoveRequested",
	BreakpointRemoved:            "Removed",
	BreakpointFailed:             "Failed",
}

func (s BreakpointState) String() string {
	if name, ok := breakpointStateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// BreakpointParameters 断点参数，行号从1开始
type BreakpointParameters struct {
	FileName  string `json:"fileName"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	Condition string `json:"condition"`
	// IgnoreCount 命中多少次之后才停止，-1表示不设置
	IgnoreCount int  `json:"ignoreCount"`
	Enabled     bool `json:"enabled"`
}

// Breakpoint 断点，ID由BreakpointHandler分配，ResponseID由后端分配
type Breakpoint struct {
	ID         int
	ResponseID string
	Requested  BreakpointParameters
	Actual     BreakpointParameters
	State      BreakpointState
	// Hit 程序停在该断点上
	Hit bool
}

// BreakpointHandler 一个引擎的断点集合，按照ID排序
// 只能在控制协程中访问
type BreakpointHandler struct {
	engine      *Engine
	breakpoints *treemap.Map
	nextID      int
	claimed     bool
}

func NewBreakpointHandler(engine *Engine) *BreakpointHandler {
	return &BreakpointHandler{
		engine:      engine,
		breakpoints: treemap.NewWith(godsutils.IntComparator),
	}
}

// Add 添加断点，引擎已经接管断点时立即请求后端插入
func (h *BreakpointHandler) Add(params BreakpointParameters) *Breakpoint {
	h.nextID++
	bp := &Breakpoint{
		ID:        h.nextID,
		Requested: params,
		State:     BreakpointNew,
	}
	h.breakpoints.Put(bp.ID, bp)
	h.emit(constants.NewType, bp)
	if h.claimed {
		h.requestInsert(bp)
	}
	return bp
}

// SetFileBreakpoints 用新的断点替换一个文件中的所有断点
func (h *BreakpointHandler) SetFileBreakpoints(file string, params []BreakpointParameters) []*Breakpoint {
	for _, bp := range h.Breakpoints() {
		if bp.Requested.FileName == file {
			h.RequestRemove(bp)
		}
	}
	answer := make([]*Breakpoint, 0, len(params))
	for _, p := range params {
		p.FileName = file
		answer = append(answer, h.Add(p))
	}
	return answer
}

// Claim 引擎接管断点，并请求后端插入所有未插入的断点
func (h *BreakpointHandler) Claim() {
	h.claimed = true
	for _, bp := range h.Breakpoints() {
		if bp.State == BreakpointNew {
			h.requestInsert(bp)
		}
	}
}

func (h *BreakpointHandler) IsClaimed() bool {
	return h.claimed
}

func (h *BreakpointHandler) requestInsert(bp *Breakpoint) {
	bp.State = BreakpointInsertionRequested
	h.engine.backend.InsertBreakpoint(bp)
}

// NotifyInsertOk 后端插入成功，actual为后端报告的实际位置
func (h *BreakpointHandler) NotifyInsertOk(bp *Breakpoint, actual BreakpointParameters) {
	if bp.State != BreakpointInsertionRequested && bp.State != BreakpointUpdateRequested {
		h.engine.logger.Debugf("breakpoint %d inserted in state %s", bp.ID, bp.State)
	}
	bp.Actual = actual
	bp.State = BreakpointInserted
	h.emit(constants.ChangeType, bp)
}

func (h *BreakpointHandler) NotifyInsertFailed(bp *Breakpoint) {
	bp.State = BreakpointFailed
	h.emit(constants.ChangeType, bp)
}

// RequestRemove 删除断点，未插入的断点直接删除
// 插入请求还在等待响应时只标记为RemoveRequested，由后端收到响应之后删除
func (h *BreakpointHandler) RequestRemove(bp *Breakpoint) {
	switch bp.State {
	case BreakpointRemoveRequested, BreakpointRemoved:
		return
	case BreakpointInsertionRequested:
		bp.State = BreakpointRemoveRequested
		return
	}
	if bp.State == BreakpointNew || bp.State == BreakpointFailed || bp.ResponseID == "" {
		h.NotifyRemoveOk(bp)
		return
	}
	bp.State = BreakpointRemoveRequested
	h.engine.backend.RemoveBreakpoint(bp)
}

// IsRemovePending 断点已经被删除，等待后端确认
func (h *BreakpointHandler) IsRemovePending(bp *Breakpoint) bool {
	return bp.State == BreakpointRemoveRequested || bp.State == BreakpointRemoved
}

func (h *BreakpointHandler) NotifyRemoveOk(bp *Breakpoint) {
	if _, ok := h.breakpoints.Get(bp.ID); !ok {
		return
	}
	h.breakpoints.Remove(bp.ID)
	bp.State = BreakpointRemoved
	h.emit(constants.RemovedType, bp)
}

// RequestUpdate 修改断点参数，已插入的断点会通知后端修改
func (h *BreakpointHandler) RequestUpdate(bp *Breakpoint, params BreakpointParameters) {
	bp.Requested = params
	if bp.State != BreakpointInserted {
		return
	}
	bp.State = BreakpointUpdateRequested
	h.engine.backend.UpdateBreakpoint(bp)
}

func (h *BreakpointHandler) NotifyUpdateOk(bp *Breakpoint) {
	bp.State = BreakpointInserted
	bp.Actual.Enabled = bp.Requested.Enabled
	bp.Actual.Condition = bp.Requested.Condition
	bp.Actual.IgnoreCount = bp.Requested.IgnoreCount
	h.emit(constants.ChangeType, bp)
}

// NotifyChanged 后端报告断点的实际参数发生了变化
func (h *BreakpointHandler) NotifyChanged(bp *Breakpoint, actual BreakpointParameters) {
	bp.Actual = actual
	if bp.State == BreakpointUpdateRequested {
		bp.State = BreakpointInserted
	}
	h.emit(constants.ChangeType, bp)
}

// Get 根据ID获取断点
func (h *BreakpointHandler) Get(id int) (*Breakpoint, error) {
	value, ok := h.breakpoints.Get(id)
	if !ok {
		return nil, e.ErrBreakpointNotFound
	}
	return value.(*Breakpoint), nil
}

// FindByResponseID 根据后端分配的ID查找断点
func (h *BreakpointHandler) FindByResponseID(responseID string) *Breakpoint {
	if responseID == "" {
		return nil
	}
	_, value := h.breakpoints.Find(func(key interface{}, value interface{}) bool {
		return value.(*Breakpoint).ResponseID == responseID
	})
	if value == nil {
		return nil
	}
	return value.(*Breakpoint)
}

// Breakpoints 按照ID排序的所有断点
func (h *BreakpointHandler) Breakpoints() []*Breakpoint {
	answer := make([]*Breakpoint, 0, h.breakpoints.Size())
	for _, value := range h.breakpoints.Values() {
		answer = append(answer, value.(*Breakpoint))
	}
	return answer
}

func (h *BreakpointHandler) Len() int {
	return h.breakpoints.Size()
}

// ReleaseAll 引擎结束时释放断点，重新启动之后需要再次Claim
func (h *BreakpointHandler) ReleaseAll() {
	h.claimed = false
	for _, bp := range h.Breakpoints() {
		if bp.State == BreakpointRemoveRequested {
			h.NotifyRemoveOk(bp)
			continue
		}
		bp.State = BreakpointNew
		bp.Actual = BreakpointParameters{}
		bp.Hit = false
	}
}

// MarkHit 标记程序停在了该断点上
func (h *BreakpointHandler) MarkHit(bp *Breakpoint) {
	bp.Hit = true
}

func (h *BreakpointHandler) ResetLocation() {
	h.breakpoints.Each(func(key interface{}, value interface{}) {
		value.(*Breakpoint).Hit = false
	})
}

func (h *BreakpointHandler) emit(reason constants.BreakpointReasonType, bp *Breakpoint) {
	h.engine.Emit(&BreakpointChangedEvent{Reason: reason, Breakpoint: *bp})
}
