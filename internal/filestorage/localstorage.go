package filestorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

type LocalFileStorage struct {
	dir string
}

func NewLocalFileStorage(dir string) *LocalFileStorage {
	return &LocalFileStorage{dir: dir}
}

func (s *LocalFileStorage) Upload(_ context.Context, file FileInfo) (string, error) {
	key := file.Filename()
	dest := filepath.Join(s.dir, key)

	if err := os.MkdirAll(filepath.Dir(dest), os.ModePerm); err != nil {
		return "", err
	}
	if err := os.WriteFile(dest, file.Content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return key, nil
}

func (s *LocalFileStorage) GetFile(_ context.Context, key string) (*FileInfo, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, notFound(key, err)
	}

	ext := filepath.Ext(key)
	return &FileInfo{
		Name:        strings.TrimSuffix(key, ext),
		Extension:   ext,
		ContentType: mimetype.Detect(content).String(),
		Content:     content,
	}, nil
}

func (s *LocalFileStorage) Open(_ context.Context, key string) (io.ReadCloser, int64, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, notFound(key, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// resolve keeps keys inside the storage directory.
func (s *LocalFileStorage) resolve(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("%w: empty key", ErrFileNotFound)
	}
	return filepath.Join(s.dir, clean), nil
}

func notFound(key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrFileNotFound, key)
	}
	return err
}
