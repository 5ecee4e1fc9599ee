package filestorage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Brownie44l1/ripeness-api/internal/config"
	"github.com/gabriel-vasile/mimetype"
	"lukechampine.com/blake3"
)

var ErrFileNotFound = errors.New("file not found")

type FileInfo struct {
	Name        string
	Extension   string
	ContentType string
	Content     []byte
}

type FileStorage interface {
	// Upload stores the file and returns its key.
	Upload(ctx context.Context, file FileInfo) (string, error)
	GetFile(ctx context.Context, key string) (*FileInfo, error)
	// Open streams a stored object; size is -1 when unknown.
	Open(ctx context.Context, key string) (rc io.ReadCloser, size int64, err error)
}

func NewFileStorage(cfg *config.Config) (FileStorage, error) {
	switch strings.ToLower(cfg.Storage.Type) {
	case config.StorageLocal:
		return NewLocalFileStorage(cfg.Storage.LocalDir), nil
	case config.StorageS3:
		return NewS3FileStorage(context.Background(), cfg.S3)
	}
	return nil, fmt.Errorf("invalid storage type %s", cfg.Storage.Type)
}

// NewFileInfo names content by its blake3 hash so identical uploads share a
// key. The extension comes from the sniffed content type when filename has
// none.
func NewFileInfo(content []byte, filename string) FileInfo {
	mtype := mimetype.Detect(content)

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = mtype.Extension()
	}

	return FileInfo{
		Name:        Blake3Hash(content),
		Extension:   ext,
		ContentType: mtype.String(),
		Content:     content,
	}
}

func (f FileInfo) Filename() string {
	return f.Name + f.Extension
}

func Blake3Hash(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
