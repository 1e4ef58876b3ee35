package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/set-night/memoirbot/internal/domain"
)

// Index persists file metadata by file id.
type Index interface {
	Get(ctx context.Context, fileID string) (domain.FileMeta, error)
	Put(ctx context.Context, meta domain.FileMeta) error
	List(ctx context.Context) ([]domain.FileMeta, error)
}

// JSONIndex keeps metadata in a single JSON object on disk. Writes are a
// read-modify-write under an in-process mutex plus an exclusive flock, so
// concurrent saves from several processes do not drop each other's entries.
type JSONIndex struct {
	path string

	mu      sync.Mutex
	entries map[string]domain.FileMeta
}

func OpenJSONIndex(path string) (*JSONIndex, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	idx := &JSONIndex{path: path, entries: map[string]domain.FileMeta{}}
	entries, err := idx.read()
	if err != nil {
		return nil, err
	}
	idx.entries = entries
	return idx, nil
}

func (i *JSONIndex) Get(_ context.Context, fileID string) (domain.FileMeta, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if meta, ok := i.entries[fileID]; ok {
		return meta, nil
	}
	// Another process may have written it since the last load.
	entries, err := i.read()
	if err != nil {
		return domain.FileMeta{}, err
	}
	i.entries = entries
	meta, ok := i.entries[fileID]
	if !ok {
		return domain.FileMeta{}, fmt.Errorf("file %s: %w", fileID, domain.ErrFileNotFound)
	}
	return meta, nil
}

func (i *JSONIndex) Put(_ context.Context, meta domain.FileMeta) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	lock, err := os.OpenFile(i.path+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open index lock: %w", err)
	}
	defer lock.Close()

	if err := lockFile(lock); err != nil {
		return fmt.Errorf("lock index: %w", err)
	}
	defer unlockFile(lock)

	entries, err := i.read()
	if err != nil {
		return err
	}
	entries[meta.FileID] = meta
	if err := i.write(entries); err != nil {
		return err
	}
	i.entries = entries
	return nil
}

func (i *JSONIndex) List(_ context.Context) ([]domain.FileMeta, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	entries, err := i.read()
	if err != nil {
		return nil, err
	}
	i.entries = entries

	out := make([]domain.FileMeta, 0, len(entries))
	for _, m := range entries {
		out = append(out, m)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].UploadTime.After(out[b].UploadTime) })
	return out, nil
}

func (i *JSONIndex) read() (map[string]domain.FileMeta, error) {
	data, err := os.ReadFile(i.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]domain.FileMeta{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	entries := map[string]domain.FileMeta{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	return entries, nil
}

func (i *JSONIndex) write(entries map[string]domain.FileMeta) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(i.path), ".metadata-*.json")
	if err != nil {
		return fmt.Errorf("create index temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close index temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), i.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace index: %w", err)
	}
	return nil
}
