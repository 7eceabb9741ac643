package main

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/TIANLI0/RugPalette/model"
	"github.com/TIANLI0/RugPalette/render"
	"github.com/TIANLI0/RugPalette/view"
	"github.com/spf13/cobra"
	_ "golang.org/x/image/webp"
)

var (
	removeFlag []int
	hoverFlag  int
)

var renderCmd = &cobra.Command{
	Use:   "render <result.json> <image>",
	Short: "Render a saved upload result over a local image",
	Args:  cobra.ExactArgs(2),
	RunE:  runRender,
}

func init() {
	renderCmd.Flags().IntSliceVar(&removeFlag, "remove", nil, "Segment id to remove (repeatable)")
	renderCmd.Flags().IntVar(&hoverFlag, "hover", -1, "Segment id to highlight")
	renderCmd.Flags().StringVarP(&outFlag, "out", "o", "overlay.png", "Output PNG path")
}

func runRender(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var result model.UploadResult
	if err := json.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}

	img, err := decodeImageFile(args[1])
	if err != nil {
		return err
	}

	renderer := render.NewRenderer()
	sync := view.New(renderer)
	sync.SetResult(&result)
	if err := sync.SetBaseImage(img); err != nil {
		return err
	}

	for _, id := range removeFlag {
		if err := sync.RequestDelete(id); err != nil {
			return fmt.Errorf("cannot remove segment %d: %w", id, err)
		}
		if _, err := sync.ConfirmDelete(); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("hover") {
		if err := sync.HoverRow(hoverFlag); err != nil {
			return fmt.Errorf("cannot hover segment %d: %w", hoverFlag, err)
		}
	}

	p := sync.Present()
	frame := p.Frame
	if p.HighlightActive && len(p.Highlight.Points) > 0 {
		frame = renderer.Composite(frame, p.Highlight)
	}
	if err := writePNG(outFlag, frame); err != nil {
		return err
	}
	printPresentation(cmd.OutOrStdout(), result.Filename, p)
	fmt.Fprintf(cmd.OutOrStdout(), "overlay written to %s\n", outFlag)
	return nil
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}
