package main

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const savedResult = `{
	"message": "File uploaded and segmented successfully!",
	"filename": "rugImage-1-abc.png",
	"path": "media/rugImage-1-abc.png",
	"segments": [
		{"id": 1, "color": "#ff0000", "area": 0.25, "mask": [{"x": 0, "y": 0}, {"x": 0.5, "y": 0}, {"x": 0.5, "y": 0.5}, {"x": 0, "y": 0.5}]},
		{"id": 2, "color": "#0000ff", "area": 0.25, "mask": [{"x": 0.5, "y": 0.5}, {"x": 1, "y": 0.5}, {"x": 1, "y": 1}, {"x": 0.5, "y": 1}]}
	],
	"dominant_colors": ["#ff0000", "#0000ff"]
}`

func TestRenderCommand(t *testing.T) {
	dir := t.TempDir()
	resultPath := filepath.Join(dir, "result.json")
	imagePath := filepath.Join(dir, "rug.png")
	outPath := filepath.Join(dir, "out.png")

	if err := os.WriteFile(resultPath, []byte(savedResult), 0o644); err != nil {
		t.Fatal(err)
	}
	base := image.NewRGBA(image.Rect(0, 0, 40, 40))
	draw.Draw(base, base.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, base); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(imagePath, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs([]string{"render", resultPath, imagePath, "--remove", "2", "--hover", "1", "--out", outPath})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("render: %v", err)
	}

	got := stdout.String()
	if !strings.Contains(got, "segments: 1") || !strings.Contains(got, "#1") || strings.Contains(got, "#2 ") {
		t.Errorf("output:\n%s", got)
	}
	if !strings.Contains(got, "* #1") {
		t.Errorf("hovered row not marked:\n%s", got)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	out, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if out.Bounds() != base.Bounds() {
		t.Fatalf("bounds = %v", out.Bounds())
	}
	// removed segment leaves the base image visible
	if r, g, b, _ := out.At(37, 37).RGBA(); r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Errorf("removed segment still drawn: %d %d %d", r>>8, g>>8, b>>8)
	}
	// hovered segment is tinted red
	if r, g, _, _ := out.At(3, 16).RGBA(); r>>8 <= g>>8 {
		t.Errorf("hovered segment not tinted: r=%d g=%d", r>>8, g>>8)
	}
}
