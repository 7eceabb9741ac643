package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"

	"github.com/TIANLI0/RugPalette/client"
	"github.com/TIANLI0/RugPalette/render"
	"github.com/TIANLI0/RugPalette/utils"
	"github.com/TIANLI0/RugPalette/view"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	apiFlag string
	outFlag string
)

var uploadCmd = &cobra.Command{
	Use:   "upload <image>",
	Short: "Upload a rug photo and write the segment overlay as PNG",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&apiFlag, "api", "http://localhost:3001", "Gateway base URL")
	uploadCmd.Flags().StringVarP(&outFlag, "out", "o", "overlay.png", "Output PNG path")
}

func runUpload(cmd *cobra.Command, args []string) error {
	if err := utils.InitLogger("release"); err != nil {
		return err
	}
	defer utils.Sync()

	f, err := client.OpenFile(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	renderer := render.NewRenderer()
	sync := view.New(renderer)
	uploader := client.NewUploader(apiFlag, nil)

	if _, err := uploader.UploadTo(ctx, f, sync); err != nil {
		var ue *client.UploadError
		if !errors.As(err, &ue) || !ue.SegmentationFailed() {
			return fmt.Errorf("upload failed: %w", err)
		}
		utils.Logger.Warn("segmentation failed, showing stored image only",
			zap.String("filename", ue.Filename))
	}

	img, err := uploader.FetchImage(ctx, sync.Filename())
	if err != nil {
		return err
	}
	if err := sync.SetBaseImage(img); err != nil {
		return err
	}

	p := sync.Present()
	if err := writePNG(outFlag, p.Frame); err != nil {
		return err
	}
	printPresentation(cmd.OutOrStdout(), sync.Filename(), p)
	fmt.Fprintf(cmd.OutOrStdout(), "overlay written to %s\n", outFlag)
	return nil
}

func printPresentation(w io.Writer, filename string, p view.Presentation) {
	fmt.Fprintf(w, "image: %s\n", filename)
	if p.Notice != "" {
		fmt.Fprintf(w, "notice: %s\n", p.Notice)
		return
	}
	fmt.Fprintf(w, "segments: %d\n", len(p.Rows))
	for _, row := range p.Rows {
		marker := " "
		if row.Highlighted {
			marker = "*"
		}
		fmt.Fprintf(w, " %s #%-3d %-9s %s\n", marker, row.ID, row.Color, row.AreaPercent)
	}
	fmt.Fprintf(w, "dominant colors: %v\n", p.Palette)
}

func writePNG(path string, img image.Image) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return out.Close()
}
