package service

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/TIANLI0/RugPalette/utils"
	"go.uber.org/zap"
)

// StoredFile 已保存的上传文件
type StoredFile struct {
	Filename string
	Path     string
	Size     int64
}

// MediaStore 上传文件目录
type MediaStore struct {
	dir    string
	prefix string
}

func NewMediaStore(dir, prefix string) *MediaStore {
	return &MediaStore{dir: dir, prefix: prefix}
}

func (s *MediaStore) Dir() string {
	return s.dir
}

// Ensure 确保目录存在
func (s *MediaStore) Ensure() error {
	return os.MkdirAll(s.dir, 0755)
}

// Exists 目录是否存在
func (s *MediaStore) Exists() bool {
	info, err := os.Stat(s.dir)
	return err == nil && info.IsDir()
}

// Save 以服务端生成的文件名保存上传内容
//
// allowedExts are the extensions of the content type, the first one being
// the default. The file is created with O_EXCL, so a name clash fails
// instead of overwriting; Save then retries with a fresh name.
func (s *MediaStore) Save(src io.Reader, clientName string, allowedExts []string) (*StoredFile, error) {
	var (
		f    *os.File
		name string
		path string
		err  error
	)
	for attempt := 0; attempt < 3; attempt++ {
		name = utils.GenerateFilename(s.prefix, clientName, allowedExts)
		path = filepath.Join(s.dir, name)
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil || !errors.Is(err, os.ErrExist) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create media file: %w", err)
	}

	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			utils.Logger.Warn("failed to remove partial file", zap.String("file", path), zap.Error(rmErr))
		}
		return nil, fmt.Errorf("write media file: %w", err)
	}

	return &StoredFile{Filename: name, Path: path, Size: n}, nil
}
