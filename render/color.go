package render

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Fallback 无法解析的颜色使用灰色
var Fallback = color.NRGBA{R: 128, G: 128, B: 128, A: 255}

var (
	labelText    = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	labelOutline = color.NRGBA{R: 0, G: 0, B: 0, A: 255}
)

// ParseHexColor 解析十六进制颜色
func ParseHexColor(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(h) {
	case 3:
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]}) + "ff"
	case 6:
		h += "ff"
	case 8:
	default:
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
	}

	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.NRGBA{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}

func parseOrFallback(s string) color.NRGBA {
	c, err := ParseHexColor(s)
	if err != nil {
		return Fallback
	}
	return c
}

func withAlpha(c color.NRGBA, a uint8) color.NRGBA {
	c.A = a
	return c
}
