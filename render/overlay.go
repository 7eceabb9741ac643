// Package render 在位图画布上绘制分区叠加层
//
// A frame is always produced in one full pass: base image first, then every
// visible segment in slice order so later segments cover earlier ones. Hover
// feedback never goes through here; it is a separate vector layer (see
// Highlight).
package render

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"

	"github.com/TIANLI0/RugPalette/geometry"
	"github.com/TIANLI0/RugPalette/model"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// ErrImageNotLoaded 底图未加载
var ErrImageNotLoaded = errors.New("base image not loaded")

// Surface 位图画布，初始没有尺寸，由 Draw 按底图大小分配
type Surface struct {
	img *image.RGBA
}

// NewSurface 创建空画布
func NewSurface() *Surface {
	return &Surface{img: image.NewRGBA(image.Rect(0, 0, 0, 0))}
}

func (s *Surface) Width() int  { return s.img.Bounds().Dx() }
func (s *Surface) Height() int { return s.img.Bounds().Dy() }

// Resize 重新分配画布，原内容丢弃
func (s *Surface) Resize(width, height int) {
	s.img = image.NewRGBA(image.Rect(0, 0, width, height))
}

// Image 当前位图
func (s *Surface) Image() *image.RGBA {
	return s.img
}

// Renderer 绘制器
type Renderer struct {
	FillAlpha   uint8
	StrokeWidth float64
	Face        font.Face
}

// NewRenderer 默认半透明填充、2px 描边、内置字体
func NewRenderer() *Renderer {
	return &Renderer{
		FillAlpha:   0x80,
		StrokeWidth: 2,
		Face:        basicfont.Face7x13,
	}
}

// Draw 完整重绘底图和分区
//
// The surface is resized to the base image's natural size and the image is
// drawn unscaled at the origin. Masks with fewer than 3 points are skipped.
//
// Callers pass only visible segments and must not resize s concurrently.
func (r *Renderer) Draw(s *Surface, base image.Image, segments []model.Segment) error {
	if base == nil || base.Bounds().Empty() {
		return ErrImageNotLoaded
	}

	b := base.Bounds()
	s.Resize(b.Dx(), b.Dy())
	dst := s.Image()
	draw.Draw(dst, dst.Bounds(), base, b.Min, draw.Src)

	w, h := s.Width(), s.Height()
	for _, seg := range segments {
		if !seg.Renderable() {
			continue
		}
		pts := geometry.ToPixels(seg.Mask, w, h)
		c := parseOrFallback(seg.Color)

		fillPolygon(dst, pts, withAlpha(c, r.FillAlpha))
		strokePolygon(dst, pts, r.StrokeWidth, withAlpha(c, 0xff))

		center := geometry.Centroid(pts)
		r.drawLabel(dst, strconv.Itoa(seg.ID), center)
	}
	return nil
}

func fillPolygon(dst *image.RGBA, pts []geometry.Point, c color.Color) {
	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.MoveTo(float32(pts[0].X), float32(pts[0].Y))
	for _, p := range pts[1:] {
		z.LineTo(float32(p.X), float32(p.Y))
	}
	z.ClosePath()
	z.Draw(dst, b, image.NewUniform(c), image.Point{})
}

// strokePolygon outlines the closed ring. Each edge becomes a quad of the
// given width, extended by half the width at both ends to fill the joins.
func strokePolygon(dst *image.RGBA, pts []geometry.Point, width float64, c color.Color) {
	if width <= 0 {
		return
	}
	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	hw := width / 2
	n := len(pts)
	for i := 0; i < n; i++ {
		a, e := pts[i], pts[(i+1)%n]
		dx, dy := e.X-a.X, e.Y-a.Y
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		ux, uy := dx/l*hw, dy/l*hw
		nx, ny := -uy, ux

		ax, ay := a.X-ux, a.Y-uy
		ex, ey := e.X+ux, e.Y+uy
		z.MoveTo(float32(ax+nx), float32(ay+ny))
		z.LineTo(float32(ex+nx), float32(ey+ny))
		z.LineTo(float32(ex-nx), float32(ey-ny))
		z.LineTo(float32(ax-nx), float32(ay-ny))
		z.ClosePath()
	}
	z.Draw(dst, b, image.NewUniform(c), image.Point{})
}

// drawLabel 居中绘制带 1px 黑色描边的编号
func (r *Renderer) drawLabel(dst *image.RGBA, text string, p geometry.Point) {
	m := r.Face.Metrics()
	width := font.MeasureString(r.Face, text)
	x := fixed.I(int(math.Round(p.X))) - width/2
	y := fixed.I(int(math.Round(p.Y))) + (m.Ascent-m.Descent)/2

	d := &font.Drawer{Dst: dst, Face: r.Face, Src: image.NewUniform(labelOutline)}
	for _, off := range [][2]int{{-1, -1}, {0, -1}, {1, -1}, {-1, 0}, {1, 0}, {-1, 1}, {0, 1}, {1, 1}} {
		d.Dot = fixed.Point26_6{X: x + fixed.I(off[0]), Y: y + fixed.I(off[1])}
		d.DrawString(text)
	}
	d.Src = image.NewUniform(labelText)
	d.Dot = fixed.Point26_6{X: x, Y: y}
	d.DrawString(text)
}
