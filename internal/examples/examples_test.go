package examples

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sqlpilot/sqlpilot/internal/storage"
)

func TestDecodeAcceptsNestedAndFlatLayouts(t *testing.T) {
	data := []byte(`[
		{"input": "How many movies?", "output": {"sqlQuery": "SELECT COUNT(*) FROM movies", "answer": "There are 10 movies."}},
		{"input": "Hi there", "sqlQuery": "", "answer": "Hello!"}
	]`)
	corpus, err := Decode(FormatJSON, data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(corpus) != 2 {
		t.Fatalf("len(corpus) = %d", len(corpus))
	}
	if corpus[0].SQLQuery != "SELECT COUNT(*) FROM movies" || corpus[0].Answer != "There are 10 movies." {
		t.Fatalf("nested example = %#v", corpus[0])
	}
	if corpus[1].SQLQuery != NotApplicable {
		t.Fatalf("empty sqlQuery should normalize to %q, got %q", NotApplicable, corpus[1].SQLQuery)
	}
}

func TestParquetCodecKeepsOrder(t *testing.T) {
	corpus := []Example{
		{Input: "first", SQLQuery: "SELECT 1", Answer: "one"},
		{Input: "second", SQLQuery: NotApplicable, Answer: "two"},
		{Input: "third", SQLQuery: "SELECT 3", Answer: "three"},
	}
	data, err := Encode(FormatParquet, corpus)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	decoded, err := Decode(FormatParquet, data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(decoded) != len(corpus) {
		t.Fatalf("len(decoded) = %d", len(decoded))
	}
	for i := range corpus {
		if decoded[i] != corpus[i] {
			t.Fatalf("decoded[%d] = %#v, want %#v", i, decoded[i], corpus[i])
		}
	}
}

func TestFormatForPath(t *testing.T) {
	if FormatForPath("data/examples.PARQUET") != FormatParquet {
		t.Fatal("expected parquet format")
	}
	if FormatForPath("data/examples.json") != FormatJSON {
		t.Fatal("expected json format")
	}
}

func TestSeedMovies(t *testing.T) {
	corpus, err := Seed("movies")
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	found := false
	for _, example := range corpus {
		if example.Input == "How many characters has Harrison Ford interpreted?" {
			found = true
		}
	}
	if !found {
		t.Fatalf("movies seed missing Harrison Ford example: %#v", corpus)
	}
	empty, err := Seed("none")
	if err != nil || len(empty) != 0 {
		t.Fatalf("Seed(none) = %#v, %v", empty, err)
	}
	if _, err := Seed("does-not-exist"); err == nil {
		t.Fatal("expected error for unknown seed")
	}
}

func TestFileStoreMissingFileReturnsSeed(t *testing.T) {
	seed := []Example{{Input: "q", SQLQuery: "SELECT 1", Answer: "a"}}
	store, err := NewFileStore(filepath.Join(t.TempDir(), "examples.json"), seed)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	corpus, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(corpus) != 1 || corpus[0] != seed[0] {
		t.Fatalf("Load() = %#v", corpus)
	}
	if _, err := os.Stat(store.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Load() should not create the file, stat err = %v", err)
	}
}

func TestFileStoreAppendThenReload(t *testing.T) {
	for _, name := range []string{"examples.json", "examples.parquet"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			seed := []Example{{Input: "seeded", SQLQuery: "SELECT 1", Answer: "one"}}
			store, err := NewFileStore(path, seed)
			if err != nil {
				t.Fatalf("NewFileStore() error = %v", err)
			}
			ctx := context.Background()
			if err := store.Append(ctx, Example{Input: " added ", SQLQuery: "SELECT 2", Answer: "two"}); err != nil {
				t.Fatalf("Append() error = %v", err)
			}
			if err := store.Append(ctx, Example{Input: "chat", Answer: "hello"}); err != nil {
				t.Fatalf("Append() error = %v", err)
			}

			reopened, err := NewFileStore(path, nil)
			if err != nil {
				t.Fatalf("NewFileStore() error = %v", err)
			}
			corpus, err := reopened.Load(ctx)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			want := []Example{
				{Input: "seeded", SQLQuery: "SELECT 1", Answer: "one"},
				{Input: "added", SQLQuery: "SELECT 2", Answer: "two"},
				{Input: "chat", SQLQuery: NotApplicable, Answer: "hello"},
			}
			if len(corpus) != len(want) {
				t.Fatalf("len(corpus) = %d, want %d", len(corpus), len(want))
			}
			for i := range want {
				if corpus[i] != want[i] {
					t.Fatalf("corpus[%d] = %#v, want %#v", i, corpus[i], want[i])
				}
			}
		})
	}
}

func TestFileStoreRejectsInvalidExample(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "examples.json"), nil)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	err = store.Append(context.Background(), Example{Input: "  ", Answer: "x"})
	if !errors.Is(err, ErrInvalidExample) {
		t.Fatalf("Append() error = %v, want ErrInvalidExample", err)
	}
	if _, statErr := os.Stat(store.Path()); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("rejected example should not write the file")
	}
}

func TestObjectStoreAppendWritesHistorySnapshot(t *testing.T) {
	mem := storage.NewMemoryStore()
	store, err := NewObjectStore(mem, "examples/corpus.json", []Example{{Input: "seeded", SQLQuery: "SELECT 1", Answer: "one"}}, true, nil)
	if err != nil {
		t.Fatalf("NewObjectStore() error = %v", err)
	}
	store.now = func() time.Time { return time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	if err := store.Append(ctx, Example{Input: "first", SQLQuery: "SELECT 2", Answer: "two"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if keys := mem.Keys(); len(keys) != 1 || keys[0] != "examples/corpus.json" {
		t.Fatalf("keys after first append = %#v", keys)
	}
	if err := store.Append(ctx, Example{Input: "second", SQLQuery: "SELECT 3", Answer: "three"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	keys := mem.Keys()
	if len(keys) != 2 {
		t.Fatalf("keys after second append = %#v", keys)
	}
	if !strings.HasPrefix(keys[1], "examples/history/corpus/date=2026-03-02/") {
		t.Fatalf("snapshot key = %q", keys[1])
	}

	corpus, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(corpus) != 3 || corpus[2].Input != "second" {
		t.Fatalf("Load() = %#v", corpus)
	}
}

func TestCorpusAppendRefreshesView(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "examples.json"), []Example{{Input: "seeded", Answer: "one"}})
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()
	corpus, err := NewCorpus(ctx, store)
	if err != nil {
		t.Fatalf("NewCorpus() error = %v", err)
	}
	before := corpus.Version()
	if err := corpus.Append(ctx, Example{Input: "new", SQLQuery: "SELECT 1", Answer: "ok"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if corpus.Version() <= before {
		t.Fatalf("Version() did not advance: %d -> %d", before, corpus.Version())
	}
	if got := corpus.Examples(); len(got) != 2 || got[1].Input != "new" {
		t.Fatalf("Examples() = %#v", got)
	}
}

// gatedStore hands out a snapshot and then holds it until gate closes when
// hold is set, so a slow load can be overtaken by a later append.
type gatedStore struct {
	mu       sync.Mutex
	examples []Example
	hold     bool
	loading  chan struct{}
	gate     chan struct{}
}

func (s *gatedStore) Load(ctx context.Context) ([]Example, error) {
	s.mu.Lock()
	snapshot := cloneExamples(s.examples)
	hold := s.hold
	s.hold = false
	s.mu.Unlock()
	if hold {
		close(s.loading)
		<-s.gate
	}
	return snapshot, nil
}

func (s *gatedStore) Append(ctx context.Context, example Example) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.examples = append(s.examples, example)
	return nil
}

func TestCorpusConcurrentAppendsKeepLatestView(t *testing.T) {
	store := &gatedStore{loading: make(chan struct{}), gate: make(chan struct{})}
	ctx := context.Background()
	corpus, err := NewCorpus(ctx, store)
	if err != nil {
		t.Fatalf("NewCorpus() error = %v", err)
	}

	store.mu.Lock()
	store.hold = true
	store.mu.Unlock()

	first := make(chan error, 1)
	go func() { first <- corpus.Append(ctx, Example{Input: "first", Answer: "one"}) }()
	<-store.loading

	second := make(chan error, 1)
	go func() { second <- corpus.Append(ctx, Example{Input: "second", Answer: "two"}) }()
	select {
	case err := <-second:
		second <- err
	case <-time.After(50 * time.Millisecond):
	}
	close(store.gate)

	for _, ch := range []chan error{first, second} {
		if err := <-ch; err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	if got := corpus.Examples(); len(got) != 2 || got[0].Input != "first" || got[1].Input != "second" {
		t.Fatalf("Examples() = %#v", got)
	}
}

func TestWatcherReloadsOnExternalEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "examples.json")
	if err := os.WriteFile(path, []byte(`[{"input":"a","sqlQuery":"SELECT 1","answer":"one"}]`), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	store, err := NewFileStore(path, nil)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	corpus, err := NewCorpus(ctx, store)
	if err != nil {
		t.Fatalf("NewCorpus() error = %v", err)
	}
	watcher, err := NewWatcher(corpus, path, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	watcher.debounce = 10 * time.Millisecond
	done := make(chan struct{})
	go func() {
		_ = watcher.Run(ctx)
		close(done)
	}()

	if err := os.WriteFile(path, []byte(`[{"input":"a","answer":"one"},{"input":"b","answer":"two"}]`), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for len(corpus.Examples()) != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("corpus not reloaded: %#v", corpus.Examples())
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
}
