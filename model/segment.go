package model

import "github.com/TIANLI0/RugPalette/geometry"

// Segment 单个分割区域
type Segment struct {
	ID    int     `json:"id"`
	Color string  `json:"color"` // hex, e.g. #a0522d
	Area  float64 `json:"area"`  // fraction of the image, 0..1
	// Mask is a closed ring in normalized image coordinates; the last point
	// connects back to the first.
	Mask      []geometry.Point `json:"mask"`
	PixelArea int64            `json:"pixel_area,omitempty"`
}

// Renderable reports whether the mask describes a polygon.
func (s Segment) Renderable() bool {
	return len(s.Mask) >= 3
}

// SegmentationResponse 分割服务返回的数据
type SegmentationResponse struct {
	Message        string    `json:"message"`
	Segments       []Segment `json:"segments"`
	DominantColors []string  `json:"dominant_colors"`
}

// UploadResult 上传并分割完成后的结果
//
// Segments are in painter's order. IDs are the only stable identity; all view
// state is keyed by ID, never by index.
type UploadResult struct {
	Message        string    `json:"message"`
	Filename       string    `json:"filename"`
	Path           string    `json:"path"`
	Segments       []Segment `json:"segments"`
	DominantColors []string  `json:"dominant_colors"`
}

// Segment returns the segment with the given id.
func (r *UploadResult) Segment(id int) (Segment, bool) {
	if r == nil {
		return Segment{}, false
	}
	for _, s := range r.Segments {
		if s.ID == id {
			return s, true
		}
	}
	return Segment{}, false
}
