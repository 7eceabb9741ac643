// Package geometry 归一化坐标下的多边形运算
//
// All points live in the same [0,1]x[0,1] space as the masks returned by the
// segmentation service. Conversion to pixel space is done by the caller with
// the current surface dimensions (see ToPixels and FromPixels).
package geometry

import (
	"gonum.org/v1/gonum/stat"
)

// Point 二维点
//
// Masks store normalized coordinates; after ToPixels the same type carries
// surface pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PointInPolygon 奇偶规则判断点是否在多边形内
//
// A horizontal ray is cast from p towards +X and every edge (i, i-1 mod n)
// it crosses toggles the result. Non-convex rings are handled. Self-intersecting
// rings follow the plain even-odd interpretation, so regions covered twice test
// as outside. Points exactly on an edge may go either way, but the same input
// always gives the same answer.
//
// Rings with fewer than 3 points are never inside anything.
func PointInPolygon(p Point, ring []Point) bool {
	n := len(ring)
	if n < 3 {
		return false
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := ring[i], ring[j]
		if (pi.Y > p.Y) != (pj.Y > p.Y) &&
			p.X < (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y)+pi.X {
			inside = !inside
		}
	}
	return inside
}

// Centroid 顶点重心
//
// Arithmetic mean of the points, not the area centroid; only used to place
// labels. An empty ring yields the zero point.
func Centroid(ring []Point) Point {
	if len(ring) == 0 {
		return Point{}
	}
	xs := make([]float64, len(ring))
	ys := make([]float64, len(ring))
	for i, p := range ring {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return Point{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)}
}

// ToPixels 归一化坐标转换为像素坐标
func ToPixels(ring []Point, width, height int) []Point {
	out := make([]Point, len(ring))
	w, h := float64(width), float64(height)
	for i, p := range ring {
		out[i] = Point{X: p.X * w, Y: p.Y * h}
	}
	return out
}

// FromPixels 像素坐标转换为归一化坐标，画布没有尺寸时返回 false
func FromPixels(x, y float64, width, height int) (Point, bool) {
	if width <= 0 || height <= 0 {
		return Point{}, false
	}
	return Point{X: x / float64(width), Y: y / float64(height)}, true
}
