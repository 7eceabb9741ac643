package render

import (
	"image"
	"image/draw"
	"strconv"
	"strings"

	"github.com/TIANLI0/RugPalette/geometry"
	"github.com/TIANLI0/RugPalette/model"
)

// Highlight 悬停分区的矢量高亮层
//
// One closed path at the same pixel scale as the raster surface. It carries
// no pointer handling.
type Highlight struct {
	SegmentID int
	Color     string
	Points    []geometry.Point // surface pixels
}

// NewHighlight 生成高亮路径，退化的 mask 或没有尺寸的画布返回 false
func NewHighlight(seg model.Segment, width, height int) (Highlight, bool) {
	if !seg.Renderable() || width <= 0 || height <= 0 {
		return Highlight{}, false
	}
	return Highlight{
		SegmentID: seg.ID,
		Color:     seg.Color,
		Points:    geometry.ToPixels(seg.Mask, width, height),
	}, true
}

// SVGPath 转换为 SVG path
func (h Highlight) SVGPath() string {
	if len(h.Points) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, p := range h.Points {
		if i == 0 {
			sb.WriteString("M")
		} else {
			sb.WriteString(" L")
		}
		sb.WriteString(strconv.FormatFloat(p.X, 'f', 1, 64))
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatFloat(p.Y, 'f', 1, 64))
	}
	sb.WriteString(" Z")
	return sb.String()
}

// Composite 将高亮层合成到画面副本上
//
// Used by outputs that flatten both layers into one image. frame itself is
// left untouched.
func (r *Renderer) Composite(frame *image.RGBA, h Highlight) *image.RGBA {
	out := image.NewRGBA(frame.Bounds())
	draw.Draw(out, out.Bounds(), frame, frame.Bounds().Min, draw.Src)
	if len(h.Points) < 3 {
		return out
	}
	c := parseOrFallback(h.Color)
	fillPolygon(out, h.Points, withAlpha(c, 0xb3))
	strokePolygon(out, h.Points, r.StrokeWidth+1, labelText)
	return out
}
