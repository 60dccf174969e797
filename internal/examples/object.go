package examples

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sqlpilot/sqlpilot/internal/storage"
)

// ObjectStore keeps the corpus as one object. When history is enabled the
// previous corpus is copied to a time partitioned key before each rewrite.
type ObjectStore struct {
	store   storage.ObjectStore
	key     string
	format  Format
	seed    []Example
	history bool
	logger  *slog.Logger
	now     func() time.Time

	mu sync.Mutex
}

func NewObjectStore(store storage.ObjectStore, key string, seed []Example, history bool, logger *slog.Logger) (*ObjectStore, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if key == "" {
		return nil, fmt.Errorf("examples object key is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ObjectStore{
		store:   store,
		key:     key,
		format:  FormatForPath(key),
		seed:    cloneExamples(seed),
		history: history,
		logger:  logger,
		now:     time.Now,
	}, nil
}

func (s *ObjectStore) Load(ctx context.Context) ([]Example, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	corpus, _, err := s.loadLocked(ctx)
	return corpus, err
}

func (s *ObjectStore) Append(ctx context.Context, example Example) error {
	example = example.Normalize()
	if err := example.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	corpus, previous, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	if s.history && previous != nil {
		snapshotKey, err := storage.BuildCorpusSnapshotKey(s.key, s.now())
		if err != nil {
			return err
		}
		if _, err := s.store.Put(ctx, snapshotKey, bytes.NewReader(previous), int64(len(previous)), storage.PutOptions{}); err != nil {
			return fmt.Errorf("snapshot examples corpus: %w", err)
		}
		s.logger.DebugContext(ctx, "examples corpus snapshot written", slog.String("key", snapshotKey))
	}

	data, err := Encode(s.format, append(corpus, example))
	if err != nil {
		return err
	}
	if _, err := s.store.Put(ctx, s.key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{}); err != nil {
		return fmt.Errorf("write examples corpus: %w", err)
	}
	return nil
}

func (s *ObjectStore) loadLocked(ctx context.Context) ([]Example, []byte, error) {
	reader, err := s.store.Get(ctx, s.key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return cloneExamples(s.seed), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get examples corpus: %w", err)
	}
	defer func() { _ = reader.Close() }()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("read examples corpus: %w", err)
	}
	corpus, err := Decode(s.format, data)
	if err != nil {
		return nil, nil, err
	}
	return corpus, data, nil
}
