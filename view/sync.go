// Package view 保持位图叠加层、悬停高亮和分区列表一致
//
// Sync owns the only copy of the view state (through its controller). The
// three presentations are projections computed from it on demand; none of
// them keeps its own hover or removal bookkeeping. The raster frame is the
// one cached projection and is redrawn only when the visible set or the base
// image changes.
package view

import (
	"fmt"
	"image"
	"sync"

	"github.com/TIANLI0/RugPalette/interaction"
	"github.com/TIANLI0/RugPalette/model"
	"github.com/TIANLI0/RugPalette/render"
	"github.com/TIANLI0/RugPalette/utils"
	"go.uber.org/zap"
)

// Row 分区列表的一行
type Row struct {
	ID          int
	Color       string
	AreaPercent string
	Highlighted bool
}

// Tooltip 指针处的分区编号提示
type Tooltip struct {
	ID     int
	Anchor image.Point
}

// Presentation 所有视图的一致快照
type Presentation struct {
	Frame     *image.RGBA
	Highlight render.Highlight
	// HighlightActive is false when nothing is hovered.
	HighlightActive bool
	Rows            []Row
	Tooltip         Tooltip
	TooltipActive   bool
	Palette         []string
	HoveredID       int
	Hovered         bool
	PendingDeleteID int
	PendingDelete   bool
	// Notice is set when the image was stored but could not be segmented.
	Notice string
}

// Sync 持有唯一的交互状态
type Sync struct {
	mu sync.Mutex

	renderer *render.Renderer
	ctrl     *interaction.Controller
	surface  *render.Surface

	result  *model.UploadResult
	base    image.Image
	notice  string
	tooltip Tooltip
	tipOn   bool
	redraws int
}

func New(renderer *render.Renderer) *Sync {
	s := &Sync{
		renderer: renderer,
		ctrl:     interaction.NewController(),
		surface:  render.NewSurface(),
	}
	s.ctrl.OnHoverChange(func(ev interaction.HoverChange) {
		s.tooltip = Tooltip{ID: ev.ID, Anchor: ev.Anchor}
		s.tipOn = ev.Active
	})
	return s
}

// SetResult 载入新的上传结果
//
// All view state is reset and the previous base image dropped; the frame is
// drawn once the new image is set.
func (s *Sync) SetResult(result *model.UploadResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.result = result
	s.base = nil
	s.notice = ""
	s.surface = render.NewSurface()
	s.ctrl.SetSurfaceSize(0, 0)
	var segments []model.Segment
	if result != nil {
		segments = result.Segments
	}
	s.ctrl.Reset(segments)

	utils.Logger.Debug("view result set", zap.Int("segments", len(segments)))
}

// ShowSegmentationFailure 显示已保存但未分割的图片，不绘制叠加层
func (s *Sync) ShowSegmentationFailure(filename, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.result = &model.UploadResult{Filename: filename}
	s.base = nil
	s.notice = message
	s.surface = render.NewSurface()
	s.ctrl.SetSurfaceSize(0, 0)
	s.ctrl.Reset(nil)
}

// SetBaseImage 设置底图并重绘
func (s *Sync) SetBaseImage(img image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if img == nil {
		return render.ErrImageNotLoaded
	}
	s.base = img
	return s.redraw()
}

// Filename 当前结果的存储文件名
func (s *Sync) Filename() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return ""
	}
	return s.result.Filename
}

func (s *Sync) PointerMove(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.PointerMove(x, y)
}

func (s *Sync) PointerLeave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.PointerLeave()
}

// HoverRow 悬停列表行，与悬停画布区域等效
func (s *Sync) HoverRow(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.HoverSegment(id)
}

func (s *Sync) LeaveRow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.ClearHover()
}

func (s *Sync) RequestDelete(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.RequestDelete(id)
}

func (s *Sync) CancelDelete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.CancelDelete()
}

// ConfirmDelete 确认删除并重绘位图层
func (s *Sync) ConfirmDelete() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.ctrl.ConfirmDelete()
	if err != nil {
		return 0, err
	}
	utils.Logger.Debug("segment removed", zap.Int("id", id))
	if s.base != nil {
		if err := s.redraw(); err != nil {
			return id, err
		}
	}
	return id, nil
}

// Redraws 完整重绘次数
func (s *Sync) Redraws() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.redraws
}

// State 返回交互状态副本
func (s *Sync) State() interaction.ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.State()
}

// Present 根据当前状态计算所有视图
func (s *Sync) Present() Presentation {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.ctrl.State()
	p := Presentation{
		Frame:           s.surface.Image(),
		HoveredID:       st.HoveredID,
		Hovered:         st.Hovered,
		PendingDeleteID: st.PendingDeleteID,
		PendingDelete:   st.PendingDelete,
		Notice:          s.notice,
	}
	if s.result != nil {
		p.Palette = append([]string(nil), s.result.DominantColors...)
	}

	for _, seg := range s.ctrl.Visible() {
		p.Rows = append(p.Rows, Row{
			ID:          seg.ID,
			Color:       seg.Color,
			AreaPercent: fmt.Sprintf("%.1f%%", seg.Area*100),
			Highlighted: st.Hovered && seg.ID == st.HoveredID,
		})
	}

	if st.Hovered {
		if seg, ok := s.result.Segment(st.HoveredID); ok {
			// A hovered segment always owns the layer; the path is empty when
			// it cannot be drawn yet (no surface) or at all (degenerate mask).
			h, drawable := render.NewHighlight(seg, s.surface.Width(), s.surface.Height())
			if !drawable {
				h = render.Highlight{SegmentID: seg.ID, Color: seg.Color}
			}
			p.Highlight, p.HighlightActive = h, true
		}
		if s.tipOn && s.tooltip.ID == st.HoveredID {
			p.Tooltip, p.TooltipActive = s.tooltip, true
		}
	}
	return p
}

func (s *Sync) redraw() error {
	var segments []model.Segment
	if s.notice == "" {
		segments = s.ctrl.Visible()
	}
	if err := s.renderer.Draw(s.surface, s.base, segments); err != nil {
		return err
	}
	s.ctrl.SetSurfaceSize(s.surface.Width(), s.surface.Height())
	s.redraws++
	return nil
}
