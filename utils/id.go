package utils

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var lastStamp atomic.Int64

// GenerateID 生成单调递增的毫秒时间戳
//
// Two calls in the same millisecond get consecutive values.
func GenerateID() int64 {
	for {
		now := time.Now().UnixMilli()
		last := lastStamp.Load()
		if now <= last {
			now = last + 1
		}
		if lastStamp.CompareAndSwap(last, now) {
			return now
		}
	}
}

// RandomSuffix 12 位十六进制随机串
func RandomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// GenerateFilename 生成存储文件名: <prefix>-<时间戳>-<随机>.<ext>
//
// The client name only chooses between the allowed extensions (".jpeg" vs
// ".jpg"); anything else falls back to allowedExts[0].
func GenerateFilename(prefix, clientName string, allowedExts []string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(clientName)))
	if !slices.Contains(allowedExts, ext) {
		ext = ""
		if len(allowedExts) > 0 {
			ext = allowedExts[0]
		}
	}
	return fmt.Sprintf("%s-%d-%s%s", prefix, GenerateID(), RandomSuffix(), ext)
}
