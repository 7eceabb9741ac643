package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TIANLI0/RugPalette/config"
)

const validBody = `{
	"message": "Segmentation completed",
	"segments": [{"id": 1, "color": "#a0522d", "area": 0.25, "mask": [{"x": 0, "y": 0}, {"x": 1, "y": 0}, {"x": 0.5, "y": 1}]}],
	"dominant_colors": ["#a0522d", "#f5deb3", "#2f4f4f"]
}`

func newTestSegmenter(url string, timeout time.Duration, retries int) *SegmentationClient {
	return NewSegmentationClient(&config.SegmentationConfig{BaseURL: url + "/", Timeout: timeout, Retries: retries})
}

func TestSegmentSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/segment" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("file_path"); got != "rugImage-1-abc.jpg" {
			t.Errorf("file_path = %q", got)
		}
		w.Write([]byte(validBody))
	}))
	defer server.Close()

	result, err := newTestSegmenter(server.URL, time.Second, 1).Segment(context.Background(), "rugImage-1-abc.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Segments) != 1 || result.Segments[0].ID != 1 || len(result.Segments[0].Mask) != 3 {
		t.Errorf("segments = %+v", result.Segments)
	}
	if len(result.DominantColors) != 3 {
		t.Errorf("dominant colors = %v", result.DominantColors)
	}
}

func TestSegmentRetriesOnceOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "model warming up", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(validBody))
	}))
	defer server.Close()

	if _, err := newTestSegmenter(server.URL, time.Second, 1).Segment(context.Background(), "f.jpg"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestSegmentGivesUpAfterRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestSegmenter(server.URL, time.Second, 1).Segment(context.Background(), "f.jpg")
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected StatusError 500, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestSegmentDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"detail":"Image file not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	if _, err := newTestSegmenter(server.URL, time.Second, 1).Segment(context.Background(), "f.jpg"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestSegmentTimeout(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	start := time.Now()
	_, err := newTestSegmenter(server.URL, 50*time.Millisecond, 1).Segment(context.Background(), "f.jpg")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2 (one retry)", calls.Load())
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout was not enforced")
	}
}

func TestSegmentInvalidShapeIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"segments": "not-an-array", "dominant_colors": []}`))
	}))
	defer server.Close()

	_, err := newTestSegmenter(server.URL, time.Second, 1).Segment(context.Background(), "f.jpg")
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestDecodeSegmentation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", validBody, false},
		{"empty arrays", `{"segments": [], "dominant_colors": []}`, false},
		{"segments not array", `{"segments": "not-an-array", "dominant_colors": []}`, true},
		{"colors object", `{"segments": [], "dominant_colors": {}}`, true},
		{"missing colors", `{"segments": []}`, true},
		{"null segments", `{"segments": null, "dominant_colors": []}`, true},
		{"bad segment element", `{"segments": [1, 2], "dominant_colors": []}`, true},
		{"not json", `<html>`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := DecodeSegmentation([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidResponse) {
				t.Errorf("error does not wrap ErrInvalidResponse: %v", err)
			}
			if err == nil && (result.Segments == nil || result.DominantColors == nil) {
				t.Error("arrays must be non-nil")
			}
		})
	}
}

func TestStatusErrorKeepsBodyOutOfMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Traceback (most recent call last): /opt/cv/app.py", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestSegmenter(server.URL, time.Second, 0).Segment(context.Background(), "f.jpg")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if err.Error() != "segmentation service returned 502" {
		t.Errorf("Error() = %q", err.Error())
	}
	if se.Body == "" {
		t.Error("body should be kept for logging")
	}
}

func TestSegmentStopsAtCallerDeadline(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := newTestSegmenter(server.URL, 5*time.Second, 1).Segment(ctx, "f.jpg")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	if time.Since(start) > 2*time.Second {
		t.Error("caller deadline was not honoured")
	}
}
