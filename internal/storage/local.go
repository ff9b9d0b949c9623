package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pageza/foodgram/backend/internal/metrics"
)

// LocalStore keeps images under a media root on disk. URLs are the media URL
// prefix joined with the object key; the HTTP server serves the root there.
type LocalStore struct {
	root    string
	baseURL string
}

func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &LocalStore{root: root, baseURL: baseURL}, nil
}

func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) Save(_ context.Context, key string, data []byte, _ string) (url string, err error) {
	defer func() { metrics.StorageOperationsTotal.WithLabelValues("local", "save", metrics.Result(err)).Inc() }()

	path, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return s.baseURL + key, nil
}

func (s *LocalStore) Delete(_ context.Context, url string) (err error) {
	defer func() { metrics.StorageOperationsTotal.WithLabelValues("local", "delete", metrics.Result(err)).Inc() }()

	if !s.Owns(url) {
		return ErrNotOwned
	}
	path, err := s.path(strings.TrimPrefix(url, s.baseURL))
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove image: %w", err)
	}
	return nil
}

func (s *LocalStore) Owns(url string) bool {
	return strings.HasPrefix(url, s.baseURL) && len(url) > len(s.baseURL)
}

// path resolves key inside the root and refuses anything escaping it.
func (s *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}
