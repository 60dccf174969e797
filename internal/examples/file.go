package examples

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps the corpus in a single local file. A missing file reads as
// the seed corpus; the first append materializes it.
type FileStore struct {
	path   string
	format Format
	seed   []Example

	mu sync.Mutex
}

func NewFileStore(path string, seed []Example) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("examples path is required")
	}
	return &FileStore{path: path, format: FormatForPath(path), seed: cloneExamples(seed)}, nil
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(_ context.Context) ([]Example, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *FileStore) Append(_ context.Context, example Example) error {
	example = example.Normalize()
	if err := example.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	corpus, err := s.loadLocked()
	if err != nil {
		return err
	}
	corpus = append(corpus, example)
	data, err := Encode(s.format, corpus)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path, data)
}

func (s *FileStore) loadLocked() ([]Example, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return cloneExamples(s.seed), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read examples file: %w", err)
	}
	return Decode(s.format, data)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create examples dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp examples file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp examples file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp examples file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp examples file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace examples file: %w", err)
	}
	return nil
}
