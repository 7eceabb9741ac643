package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/TIANLI0/RugPalette/config"
	"github.com/TIANLI0/RugPalette/model"
	"github.com/TIANLI0/RugPalette/utils"
	"go.uber.org/zap"
)

const maxLoggedBody = 1024

// ErrInvalidResponse 分割服务返回的数据结构不符合约定
var ErrInvalidResponse = errors.New("invalid response from segmentation service")

// StatusError 分割服务返回非 2xx
//
// Body is kept for logging only; Error does not include it.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("segmentation service returned %d", e.StatusCode)
}

func (e *StatusError) retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// SegmentationClient 调用外部分割服务
type SegmentationClient struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	retries    int
}

func NewSegmentationClient(cfg *config.SegmentationConfig) *SegmentationClient {
	return &SegmentationClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{},
		timeout:    cfg.Timeout,
		retries:    max(0, cfg.Retries),
	}
}

// Segment 请求分割已保存的文件
//
// Only the stored filename is sent. Each attempt has its own timeout;
// transport errors, timeouts, 5xx and 429 are retried up to the configured
// count. A malformed body is never retried.
func (s *SegmentationClient) Segment(ctx context.Context, filename string) (*model.SegmentationResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			utils.Logger.Warn("retrying segmentation request",
				zap.String("filename", filename),
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr))
		}

		result, err := s.do(ctx, filename)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil || !isRetryable(err) {
			break
		}
	}
	return nil, lastErr
}

func (s *SegmentationClient) do(ctx context.Context, filename string) (*model.SegmentationResponse, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	endpoint := fmt.Sprintf("%s/segment?file_path=%s", s.baseURL, url.QueryEscape(filename))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	utils.Logger.Info("segmentation service responded",
		zap.String("filename", filename),
		zap.Int("status", resp.StatusCode),
		zap.Duration("cost", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{StatusCode: resp.StatusCode, Body: truncate(strings.TrimSpace(string(body)), maxLoggedBody)}
		utils.Logger.Warn("segmentation service error",
			zap.String("filename", filename),
			zap.Int("status", se.StatusCode),
			zap.String("body", se.Body))
		return nil, se
	}

	return DecodeSegmentation(body)
}

// DecodeSegmentation 校验并解析分割服务响应
//
// segments and dominant_colors must both be present and be JSON arrays.
func DecodeSegmentation(body []byte) (*model.SegmentationResponse, error) {
	var raw struct {
		Message        string          `json:"message"`
		Segments       json.RawMessage `json:"segments"`
		DominantColors json.RawMessage `json:"dominant_colors"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if !isArray(raw.Segments) || !isArray(raw.DominantColors) {
		return nil, fmt.Errorf("%w: segments or dominant_colors are not arrays", ErrInvalidResponse)
	}

	result := &model.SegmentationResponse{Message: raw.Message}
	if err := json.Unmarshal(raw.Segments, &result.Segments); err != nil {
		return nil, fmt.Errorf("%w: segments: %v", ErrInvalidResponse, err)
	}
	if err := json.Unmarshal(raw.DominantColors, &result.DominantColors); err != nil {
		return nil, fmt.Errorf("%w: dominant_colors: %v", ErrInvalidResponse, err)
	}
	// keep empty arrays as [] in the relayed JSON
	if result.Segments == nil {
		result.Segments = []model.Segment{}
	}
	if result.DominantColors == nil {
		result.DominantColors = []string{}
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func isRetryable(err error) bool {
	if errors.Is(err, ErrInvalidResponse) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.retryable()
	}
	// transport errors and per-attempt timeouts
	return true
}
