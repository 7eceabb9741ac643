package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/TIANLI0/RugPalette/config"
	"github.com/TIANLI0/RugPalette/middleware"
	"github.com/TIANLI0/RugPalette/model"
	"github.com/TIANLI0/RugPalette/service"
	"github.com/TIANLI0/RugPalette/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	messageSuccess      = "File uploaded and segmented successfully!"
	messageRejected     = "Upload failed. Make sure it is an image file (JPG, PNG, WEBP) under 10MB."
	messageSegmentation = "File uploaded but segmentation failed"
	messageServerError  = "Server error during upload"

	// multipart 边界和头部的额外空间
	multipartOverhead = 1 << 20

	// 写超时中留给错误响应的时间上限
	maxResponseReserve = 5 * time.Second
)

// Segmenter 分割服务
type Segmenter interface {
	Segment(ctx context.Context, filename string) (*model.SegmentationResponse, error)
}

// ResultCache 分割结果缓存
type ResultCache interface {
	GetSegmentation(ctx context.Context, md5 string) (*model.SegmentationResponse, error)
	SetSegmentation(ctx context.Context, md5 string, result *model.SegmentationResponse) error
}

type UploadHandler struct {
	cfg       *config.Config
	store     *service.MediaStore
	segmenter Segmenter
	cache     ResultCache
}

// NewUploadHandler cache 可以为 nil（禁用缓存）
func NewUploadHandler(cfg *config.Config, store *service.MediaStore, segmenter Segmenter, cache ResultCache) *UploadHandler {
	return &UploadHandler{
		cfg:       cfg,
		store:     store,
		segmenter: segmenter,
		cache:     cache,
	}
}

// Upload 处理图片上传并调用分割服务
//
// 400: rejected, nothing stored. 500 with filename: stored, segmentation
// failed. 201: stored and segmented.
func (h *UploadHandler) Upload(c *gin.Context) {
	start := time.Now()
	maxBody := h.cfg.Upload.MaxSize + multipartOverhead
	if c.Request.ContentLength > maxBody {
		h.reject(c, h.tooLargeMessage(), "content length exceeds limit")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBody)

	file, err := h.singleFile(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			h.reject(c, h.tooLargeMessage(), err.Error())
			return
		}
		h.reject(c, messageRejected, err.Error())
		return
	}

	if file.Size > h.cfg.Upload.MaxSize {
		h.reject(c, h.tooLargeMessage(), "file size exceeds limit")
		return
	}

	declared := file.Header.Get("Content-Type")
	if !h.isAllowedType(declared) {
		h.reject(c, messageRejected, fmt.Sprintf("unsupported content type: %s", declared))
		return
	}

	src, err := file.Open()
	if err != nil {
		h.reject(c, messageRejected, err.Error())
		return
	}
	defer src.Close()

	sniffed, err := sniffContentType(src)
	if err != nil || !h.isAllowedType(sniffed) {
		h.reject(c, messageRejected, fmt.Sprintf("file content is %s, not an accepted image", sniffed))
		return
	}

	stored, err := h.store.Save(src, file.Filename, extensionsFor(sniffed))
	if err != nil {
		utils.Logger.Error("failed to save file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Message: messageServerError,
			Error:   "failed to store file",
		})
		return
	}

	utils.Logger.Info("file uploaded",
		zap.String("filename", stored.Filename),
		zap.Int64("size", stored.Size),
		zap.String("content_type", declared))

	ctx := c.Request.Context()
	md5, result := h.lookupCache(ctx, stored)
	if result == nil {
		segCtx, cancel := h.segmentationContext(ctx, start)
		result, err = h.segmenter.Segment(segCtx, stored.Filename)
		cancel()
		if err != nil {
			utils.Logger.Error("segmentation failed",
				zap.String("filename", stored.Filename),
				zap.Error(err))
			c.JSON(http.StatusInternalServerError, model.ErrorResponse{
				Message:  messageSegmentation,
				Error:    segmentationErrorMessage(err),
				Filename: stored.Filename,
			})
			return
		}
		h.storeCache(ctx, md5, result)
	}

	utils.Logger.Info("segmentation successful",
		zap.String("filename", stored.Filename),
		zap.Int("segments", len(result.Segments)),
		zap.Int("dominant_colors", len(result.DominantColors)))

	c.JSON(http.StatusCreated, model.UploadResult{
		Message:        messageSuccess,
		Filename:       stored.Filename,
		Path:           stored.Path,
		Segments:       result.Segments,
		DominantColors: result.DominantColors,
	})
}

// singleFile 只接受一个文件字段
func (h *UploadHandler) singleFile(c *gin.Context) (*multipart.FileHeader, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}

	total := 0
	for _, files := range form.File {
		total += len(files)
	}
	files := form.File[h.cfg.Upload.FieldName]
	switch {
	case len(files) == 0:
		return nil, fmt.Errorf("no file in field %q", h.cfg.Upload.FieldName)
	case total != 1:
		return nil, fmt.Errorf("expected exactly one file, got %d", total)
	}
	return files[0], nil
}

// segmentationContext 限制分割调用的总时长，保证失败响应在写超时之前发出
func (h *UploadHandler) segmentationContext(ctx context.Context, start time.Time) (context.Context, context.CancelFunc) {
	wt := h.cfg.Server.WriteTimeout
	if wt <= 0 {
		return context.WithCancel(ctx)
	}
	reserve := min(wt/5, maxResponseReserve)
	return context.WithDeadline(ctx, start.Add(wt-reserve))
}

// segmentationErrorMessage 返回给客户端的错误描述，不包含下游响应内容
func segmentationErrorMessage(err error) string {
	var se *service.StatusError
	switch {
	case errors.As(err, &se):
		return fmt.Sprintf("segmentation service returned %d", se.StatusCode)
	case errors.Is(err, service.ErrInvalidResponse):
		return service.ErrInvalidResponse.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "segmentation service timed out"
	default:
		return "segmentation service unavailable"
	}
}

func (h *UploadHandler) lookupCache(ctx context.Context, stored *service.StoredFile) (string, *model.SegmentationResponse) {
	if h.cache == nil {
		return "", nil
	}
	md5, err := utils.FileMD5(stored.Path)
	if err != nil {
		utils.Logger.Warn("failed to calculate md5", zap.Error(err))
		return "", nil
	}
	cached, err := h.cache.GetSegmentation(ctx, md5)
	if err != nil {
		utils.Logger.Warn("failed to get cache", zap.Error(err))
		return md5, nil
	}
	if cached != nil {
		utils.Logger.Info("cache hit", zap.String("md5", md5), zap.String("filename", stored.Filename))
	}
	return md5, cached
}

func (h *UploadHandler) storeCache(ctx context.Context, md5 string, result *model.SegmentationResponse) {
	if h.cache == nil || md5 == "" {
		return
	}
	if err := h.cache.SetSegmentation(ctx, md5, result); err != nil {
		utils.Logger.Warn("failed to set cache", zap.Error(err))
	}
}

func (h *UploadHandler) reject(c *gin.Context, message, reason string) {
	utils.Logger.Info("upload rejected",
		zap.String("reason", reason),
		zap.String("request_id", c.GetString(middleware.RequestIDKey)))
	c.JSON(http.StatusBadRequest, model.ErrorResponse{Message: message})
}

func (h *UploadHandler) tooLargeMessage() string {
	return fmt.Sprintf("File is too large. Maximum size is %dMB.", h.cfg.Upload.MaxSize/(1024*1024))
}

func (h *UploadHandler) isAllowedType(contentType string) bool {
	contentType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	for _, allowed := range h.cfg.Upload.AllowedTypes {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}

// sniffContentType 读取文件头判断真实类型，并把读取位置复原
func sniffContentType(src multipart.File) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}

// extensionsFor 内容类型允许的扩展名，第一个为默认值
func extensionsFor(contentType string) []string {
	switch strings.ToLower(contentType) {
	case "image/png":
		return []string{".png"}
	case "image/webp":
		return []string{".webp"}
	default:
		return []string{".jpg", ".jpeg"}
	}
}
