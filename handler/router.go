package handler

import (
	"net/http"

	"github.com/TIANLI0/RugPalette/config"
	"github.com/TIANLI0/RugPalette/middleware"
	"github.com/TIANLI0/RugPalette/model"
	"github.com/TIANLI0/RugPalette/service"
	"github.com/gin-gonic/gin"
)

// BuildInfo 版本信息
type BuildInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	BuildID   string `json:"build_id"`
	GitCommit string `json:"git_commit"`
	GitBranch string `json:"git_branch"`
}

// NewRouter 创建路由
func NewRouter(cfg *config.Config, store *service.MediaStore, segmenter Segmenter, cache ResultCache, build BuildInfo) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())

	// 已上传的图片
	r.Static("/media", store.Dir())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, model.HealthResponse{
			Status:          "API is running",
			MediaPathExists: store.Exists(),
		})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, build)
	})

	uploadHandler := NewUploadHandler(cfg, store, segmenter, cache)
	r.POST("/upload", uploadHandler.Upload)

	return r
}
