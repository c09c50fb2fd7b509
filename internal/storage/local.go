package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps objects under Dir. Locations are file:// URLs.
type LocalStore struct {
	Dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{Dir: abs}, nil
}

func (s *LocalStore) Tag() string { return "local" }

func (s *LocalStore) Upload(ctx context.Context, name string, data []byte) (*Object, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", name, err)
	}
	return &Object{Name: name, Location: "file://" + filepath.ToSlash(path)}, nil
}

func (s *LocalStore) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	path, ok := strings.CutPrefix(location, "file://")
	if !ok {
		return nil, fmt.Errorf("not a local location: %q", location)
	}
	path = filepath.Clean(filepath.FromSlash(path))
	if !strings.HasPrefix(path, s.Dir+string(filepath.Separator)) {
		return nil, fmt.Errorf("location %q is outside %s", location, s.Dir)
	}
	return os.Open(path)
}

func (s *LocalStore) path(name string) (string, error) {
	path := filepath.Join(s.Dir, filepath.FromSlash(name))
	if !strings.HasPrefix(path, s.Dir+string(filepath.Separator)) {
		return "", fmt.Errorf("object name %q escapes the store", name)
	}
	return path, nil
}
