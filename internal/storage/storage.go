// Package storage хранит файлы вложений.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"chat_engine/pkg/logger"
)

var ErrInvalidPath = errors.New("invalid storage path")

// FileStore: внешнее файловое хранилище вложений.
type FileStore interface {
	Store(ctx context.Context, name string, r io.Reader) (string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	URL(name string) string
	Delete(ctx context.Context, name string) (bool, error)
	Disk() string
}

// LocalStore хранит файлы в каталоге root и отдает их по baseURL.
type LocalStore struct {
	root    string
	baseURL string
	log     logger.Logger
}

func NewLocalStore(root, baseURL string, log logger.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &LocalStore{root: root, baseURL: strings.TrimRight(baseURL, "/"), log: log}, nil
}

func (s *LocalStore) Disk() string {
	return "local"
}

// resolve не выпускает путь за пределы root.
func (s *LocalStore) resolve(name string) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(name))
	if clean == "/" {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func (s *LocalStore) Store(ctx context.Context, name string, r io.Reader) (string, error) {
	full, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		s.log.Error("Failed to create directory", "error", err, "path", name)
		return "", err
	}
	f, err := os.Create(full)
	if err != nil {
		s.log.Error("Failed to create file", "error", err, "path", name)
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		s.log.Error("Failed to write file", "error", err, "path", name)
		_ = os.Remove(full)
		return "", err
	}
	return strings.TrimPrefix(path.Clean("/"+name), "/"), nil
}

func (s *LocalStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	full, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

func (s *LocalStore) URL(name string) string {
	escaped := (&url.URL{Path: strings.TrimPrefix(path.Clean("/"+name), "/")}).EscapedPath()
	return s.baseURL + "/" + escaped
}

func (s *LocalStore) Delete(ctx context.Context, name string) (bool, error) {
	full, err := s.resolve(name)
	if err != nil {
		return false, err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		s.log.Error("Failed to delete file", "error", err, "path", name)
		return false, err
	}
	return true, nil
}
