// Package interaction 指针命中测试、悬停和软删除状态机
//
// The controller is a small state machine:
//
//	idle --pointer over segment--> hovering(id)
//	hovering(id) --pointer leaves / no match--> idle
//	idle|hovering --RequestDelete(id)--> confirmingDelete(id)
//	confirmingDelete(id) --ConfirmDelete--> idle, id removed
//	confirmingDelete(id) --CancelDelete--> previous state
//
// A pending confirmation is modal: pointer and hover input is ignored until
// it is confirmed or cancelled. The controller is not safe for concurrent use.
package interaction

import (
	"errors"
	"image"

	"github.com/TIANLI0/RugPalette/geometry"
	"github.com/TIANLI0/RugPalette/model"
)

var (
	ErrUnknownSegment  = errors.New("unknown segment id")
	ErrSegmentRemoved  = errors.New("segment already removed")
	ErrNoPendingDelete = errors.New("no delete pending")
)

// Mode 控制器状态
type Mode int

const (
	Idle Mode = iota
	Hovering
	ConfirmingDelete
)

func (m Mode) String() string {
	switch m {
	case Hovering:
		return "hovering"
	case ConfirmingDelete:
		return "confirming_delete"
	default:
		return "idle"
	}
}

// ViewState 客户端交互状态
//
// Never sent to the server; reset whenever a new result is loaded.
type ViewState struct {
	HoveredID       int
	Hovered         bool
	PendingDeleteID int
	PendingDelete   bool
	RemovedIDs      map[int]struct{}
}

// Removed 是否已软删除
func (v ViewState) Removed(id int) bool {
	_, ok := v.RemovedIDs[id]
	return ok
}

func (v ViewState) clone() ViewState {
	c := v
	c.RemovedIDs = make(map[int]struct{}, len(v.RemovedIDs))
	for id := range v.RemovedIDs {
		c.RemovedIDs[id] = struct{}{}
	}
	return c
}

// HoverChange 悬停变化事件
//
// Emitted whenever the hovered segment or its tooltip anchor changes. Anchor
// is the pointer position on the surface, the zero point for hovers that come
// from the list view.
type HoverChange struct {
	ID     int
	Active bool
	Anchor image.Point
}

// Controller 交互控制器，非并发安全
type Controller struct {
	segments []model.Segment
	width    int
	height   int

	mode  Mode
	state ViewState
	// hover to restore when a delete confirmation is cancelled
	prevHoverID int
	prevHovered bool
	anchor      image.Point

	onHover func(HoverChange)
}

func NewController() *Controller {
	return &Controller{state: ViewState{RemovedIDs: map[int]struct{}{}}}
}

// OnHoverChange 注册悬停变化回调
func (c *Controller) OnHoverChange(fn func(HoverChange)) {
	c.onHover = fn
}

// Reset 载入新的分区列表并清空状态
func (c *Controller) Reset(segments []model.Segment) {
	wasHovered := c.state.Hovered
	c.segments = segments
	c.mode = Idle
	c.state = ViewState{RemovedIDs: map[int]struct{}{}}
	c.prevHoverID, c.prevHovered = 0, false
	if wasHovered {
		c.emit(HoverChange{})
	}
}

// SetSurfaceSize 设置命中测试使用的画布尺寸
//
// Until it is called with positive values, pointer moves are ignored.
func (c *Controller) SetSurfaceSize(width, height int) {
	c.width, c.height = width, height
}

func (c *Controller) Mode() Mode { return c.mode }

// State 返回状态副本
func (c *Controller) State() ViewState {
	return c.state.clone()
}

// Visible 未删除的分区，保持原顺序
func (c *Controller) Visible() []model.Segment {
	out := make([]model.Segment, 0, len(c.segments))
	for _, s := range c.segments {
		if !c.state.Removed(s.ID) {
			out = append(out, s)
		}
	}
	return out
}

// HitTest 返回第一个包含该点的可见分区
//
// p is normalized. Overlapping masks resolve to the earlier segment.
func (c *Controller) HitTest(p geometry.Point) (model.Segment, bool) {
	for _, s := range c.segments {
		if c.state.Removed(s.ID) {
			continue
		}
		if geometry.PointInPolygon(p, s.Mask) {
			return s, true
		}
	}
	return model.Segment{}, false
}

// PointerMove 处理画布内的指针移动
func (c *Controller) PointerMove(x, y float64) {
	if c.mode == ConfirmingDelete {
		return
	}
	p, ok := geometry.FromPixels(x, y, c.width, c.height)
	if !ok {
		return
	}
	anchor := image.Pt(int(x), int(y))
	if seg, hit := c.HitTest(p); hit {
		c.setHover(seg.ID, anchor)
		return
	}
	c.clearHover()
}

// PointerLeave 指针离开画布
func (c *Controller) PointerLeave() {
	if c.mode == ConfirmingDelete {
		return
	}
	c.clearHover()
}

// HoverSegment 从列表直接悬停
func (c *Controller) HoverSegment(id int) error {
	if c.mode == ConfirmingDelete {
		return nil
	}
	if err := c.checkVisible(id); err != nil {
		return err
	}
	c.setHover(id, image.Point{})
	return nil
}

// ClearHover 结束列表悬停
func (c *Controller) ClearHover() {
	c.PointerLeave()
}

// RequestDelete 请求删除确认，与当前悬停无关
func (c *Controller) RequestDelete(id int) error {
	if err := c.checkVisible(id); err != nil {
		return err
	}
	if c.mode != ConfirmingDelete {
		c.prevHoverID, c.prevHovered = c.state.HoveredID, c.state.Hovered
	}
	c.mode = ConfirmingDelete
	c.state.PendingDeleteID, c.state.PendingDelete = id, true
	return nil
}

// ConfirmDelete 确认删除，返回被删除的 id
func (c *Controller) ConfirmDelete() (int, error) {
	if c.mode != ConfirmingDelete {
		return 0, ErrNoPendingDelete
	}
	id := c.state.PendingDeleteID
	c.state.RemovedIDs[id] = struct{}{}
	c.state.PendingDeleteID, c.state.PendingDelete = 0, false
	c.prevHoverID, c.prevHovered = 0, false
	c.mode = Idle
	if c.state.Hovered {
		c.state.HoveredID, c.state.Hovered = 0, false
		c.emit(HoverChange{})
	}
	return id, nil
}

// CancelDelete 取消删除并恢复之前的状态
func (c *Controller) CancelDelete() error {
	if c.mode != ConfirmingDelete {
		return ErrNoPendingDelete
	}
	c.state.PendingDeleteID, c.state.PendingDelete = 0, false
	c.state.HoveredID, c.state.Hovered = c.prevHoverID, c.prevHovered
	c.mode = Idle
	if c.state.Hovered {
		c.mode = Hovering
	}
	return nil
}

func (c *Controller) checkVisible(id int) error {
	for _, s := range c.segments {
		if s.ID != id {
			continue
		}
		if c.state.Removed(id) {
			return ErrSegmentRemoved
		}
		return nil
	}
	return ErrUnknownSegment
}

func (c *Controller) setHover(id int, anchor image.Point) {
	changed := !c.state.Hovered || c.state.HoveredID != id || c.anchor != anchor
	c.state.HoveredID, c.state.Hovered = id, true
	c.anchor = anchor
	c.mode = Hovering
	if changed {
		c.emit(HoverChange{ID: id, Active: true, Anchor: anchor})
	}
}

func (c *Controller) clearHover() {
	if !c.state.Hovered {
		return
	}
	c.state.HoveredID, c.state.Hovered = 0, false
	c.mode = Idle
	c.emit(HoverChange{})
}

func (c *Controller) emit(ev HoverChange) {
	if c.onHover != nil {
		c.onHover(ev)
	}
}
