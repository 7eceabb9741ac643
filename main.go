package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TIANLI0/RugPalette/config"
	"github.com/TIANLI0/RugPalette/handler"
	"github.com/TIANLI0/RugPalette/service"
	"github.com/TIANLI0/RugPalette/utils"
	"github.com/klauspost/compress/gzhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	BuildID   = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "rugpalette",
	Short: "Rug photo segmentation gateway and overlay tools",
	Long: `RugPalette stores uploaded rug photos, forwards them to a segmentation
service and renders the returned color regions as an interactive overlay.

Examples:
  rugpalette serve
  rugpalette upload ./rug.jpg --api http://localhost:3001 --out overlay.png
  rugpalette render result.json ./rug.jpg --remove 3 --hover 1`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the upload gateway",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "config.yaml", "Path to the YAML config file")
	rootCmd.AddCommand(serveCmd, uploadCmd, renderCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	// 加载配置
	cfg := config.NewFromFile(configFlag)

	// 初始化日志
	if err := utils.InitLogger(cfg.Server.Mode); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer utils.Sync()

	utils.Logger.Info("starting RugPalette gateway",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("git_branch", GitBranch))

	// 确保媒体目录存在
	store := service.NewMediaStore(cfg.Media.Path, cfg.Upload.FieldName)
	if err := store.Ensure(); err != nil {
		utils.Logger.Error("failed to create media directory", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化Redis，不可用时禁用缓存
	var cache handler.ResultCache
	if cfg.Redis.Enabled {
		redisService := service.NewRedisService(&cfg.Redis)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := redisService.Ping(pingCtx)
		cancel()
		if err != nil {
			utils.Logger.Warn("redis connection failed, cache disabled", zap.Error(err))
			_ = redisService.Close()
		} else {
			utils.Logger.Info("redis connected successfully", zap.String("addr", cfg.Redis.Addr))
			cache = redisService
			defer redisService.Close()
		}
	}

	segmenter := service.NewSegmentationClient(&cfg.Segmentation)

	r := handler.NewRouter(cfg, store, segmenter, cache, handler.BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		BuildID:   BuildID,
		GitCommit: GitCommit,
		GitBranch: GitBranch,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      gzhttp.GzipHandler(r),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.Logger.Info("server starting",
			zap.String("port", cfg.Server.Port),
			zap.String("media_path", store.Dir()),
			zap.String("segmentation_url", cfg.Segmentation.BaseURL))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			utils.Logger.Error("failed to start server", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	utils.Logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Logger.Error("server shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
