// Package client 上传地毯图片并把结果交给视图
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/TIANLI0/RugPalette/model"
	"github.com/TIANLI0/RugPalette/utils"
	"go.uber.org/zap"
)

const (
	DefaultMaxSize   = 10 * 1024 * 1024
	DefaultFieldName = "rugImage"
)

var acceptedTypes = []string{"image/jpeg", "image/png", "image/webp"}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// ErrUploadInProgress 同一个 Uploader 已有上传在进行
var ErrUploadInProgress = errors.New("an upload is already in progress")

// ValidationError 发送前的本地校验错误
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// UploadError 网关返回非 2xx
//
// Filename is set when the image was stored but could not be segmented.
type UploadError struct {
	Status   int
	Message  string
	Filename string
}

func (e *UploadError) Error() string { return e.Message }

// SegmentationFailed 图片已保存但分割失败
func (e *UploadError) SegmentationFailed() bool {
	return e.Status >= http.StatusInternalServerError && e.Filename != ""
}

// File 待上传的图片
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// OpenFile 读取本地图片，内容类型取自扩展名
func OpenFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	name := filepath.Base(path)
	return File{
		Name:        name,
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(name))),
		Size:        int64(len(data)),
		Body:        bytes.NewReader(data),
	}, nil
}

// ResultSink 接收上传结果，view.Sync 实现了该接口
type ResultSink interface {
	SetResult(result *model.UploadResult)
	ShowSegmentationFailure(filename, message string)
}

// Uploader 上传客户端
type Uploader struct {
	baseURL    string
	httpClient *http.Client
	maxSize    int64
	fieldName  string
	inFlight   atomic.Bool
}

// NewUploader httpClient 为 nil 时使用默认客户端
func NewUploader(baseURL string, httpClient *http.Client) *Uploader {
	if httpClient == nil {
		// 网关自身会等待分割服务（最多两次 60s）
		httpClient = &http.Client{Timeout: 150 * time.Second}
	}
	return &Uploader{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		maxSize:    DefaultMaxSize,
		fieldName:  DefaultFieldName,
	}
}

// Validate 本地预检
func (u *Uploader) Validate(f File) error {
	if f.Body == nil {
		return &ValidationError{Message: "No valid files selected."}
	}
	if !isAccepted(f.ContentType) {
		return &ValidationError{Message: "Please select a JPG, PNG or WEBP image."}
	}
	if f.Size > u.maxSize {
		return &ValidationError{
			Message: fmt.Sprintf("File is too large. Maximum size is %dMB.", u.maxSize/(1024*1024)),
		}
	}
	return nil
}

// Upload 上传图片，同一时间只允许一个上传
func (u *Uploader) Upload(ctx context.Context, f File) (*model.UploadResult, error) {
	if !u.inFlight.CompareAndSwap(false, true) {
		return nil, ErrUploadInProgress
	}
	defer u.inFlight.Store(false)

	if err := u.Validate(f); err != nil {
		return nil, err
	}

	body, contentType, err := u.encode(f)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+"/upload", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	utils.Logger.Debug("uploading image",
		zap.String("name", f.Name),
		zap.String("content_type", f.ContentType),
		zap.Int64("size", f.Size))

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeUploadError(resp.StatusCode, data)
	}

	var result model.UploadResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}
	if result.Segments == nil {
		result.Segments = []model.Segment{}
	}
	if result.DominantColors == nil {
		result.DominantColors = []string{}
	}

	utils.Logger.Debug("upload complete",
		zap.String("filename", result.Filename),
		zap.Int("segments", len(result.Segments)))
	return &result, nil
}

// UploadTo 上传并把结果交给 sink
//
// A rejected upload leaves sink untouched; an image that was stored but not
// segmented is still shown.
func (u *Uploader) UploadTo(ctx context.Context, f File, sink ResultSink) (*model.UploadResult, error) {
	result, err := u.Upload(ctx, f)
	if err != nil {
		var ue *UploadError
		if errors.As(err, &ue) && ue.SegmentationFailed() {
			sink.ShowSegmentationFailure(ue.Filename, ue.Message)
		}
		return nil, err
	}
	sink.SetResult(result)
	return result, nil
}

func (u *Uploader) encode(f File) (io.Reader, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(u.fieldName), quoteEscaper.Replace(f.Name)))
	h.Set("Content-Type", f.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f.Body); err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}

func decodeUploadError(status int, data []byte) *UploadError {
	var body model.ErrorResponse
	ue := &UploadError{Status: status}
	if err := json.Unmarshal(data, &body); err == nil {
		ue.Message = body.Message
		ue.Filename = body.Filename
	}
	if ue.Message == "" {
		ue.Message = fmt.Sprintf("Upload failed: %d", status)
	}
	return ue
}

func isAccepted(contentType string) bool {
	contentType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	for _, t := range acceptedTypes {
		if strings.EqualFold(contentType, t) {
			return true
		}
	}
	return false
}
