package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Blobs holds file bodies. Put returns a location that Open understands.
type Blobs interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// LocalBlobs writes bodies below a root directory.
type LocalBlobs struct {
	root string
}

func NewLocalBlobs(root string) (*LocalBlobs, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve uploads dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &LocalBlobs{root: abs}, nil
}

func (b *LocalBlobs) Root() string { return b.root }

func (b *LocalBlobs) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	path := filepath.Join(b.root, filepath.FromSlash(key))
	if !strings.HasPrefix(path, b.root+string(filepath.Separator)) {
		return "", fmt.Errorf("blob key %q escapes uploads dir", key)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create owner dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("move file into place: %w", err)
	}
	return path, nil
}

func (b *LocalBlobs) Open(_ context.Context, location string) (io.ReadCloser, error) {
	f, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", location, err)
	}
	return f, nil
}
