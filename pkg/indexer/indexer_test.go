package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/edurag/internal/models"
	"github.com/xhad/edurag/pkg/store"
)

type staticSource struct {
	docs  []models.Document
	err   error
	gate  chan struct{}
	calls int
	mu    sync.Mutex
}

func (s *staticSource) ListRecentDocuments(ctx context.Context, limit int) ([]models.Document, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	if len(s.docs) > limit {
		return s.docs[:limit], nil
	}
	return s.docs, nil
}

// faultyStore wraps the memory store with injectable failures.
type faultyStore struct {
	*store.MemoryChunkStore
	pingErr    error
	insertErr  error
	existsFail map[string]bool
	failChunk  string
	panicOn    string
}

func (f *faultyStore) Ping(ctx context.Context) error {
	if f.pingErr != nil {
		return f.pingErr
	}
	return f.MemoryChunkStore.Ping(ctx)
}

func (f *faultyStore) InsertChunks(ctx context.Context, chunks []models.DocumentChunk) (int, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	return f.MemoryChunkStore.InsertChunks(ctx, chunks)
}

func (f *faultyStore) ChunkExists(ctx context.Context, id string) (bool, error) {
	if f.panicOn != "" && strings.HasPrefix(id, "doc_"+f.panicOn+"_") {
		panic("corrupt row")
	}
	if id == f.failChunk {
		return false, errors.New("lookup failed")
	}
	for doc := range f.existsFail {
		if strings.HasPrefix(id, "doc_"+doc+"_") {
			return false, errors.New("lookup failed")
		}
	}
	return f.MemoryChunkStore.ChunkExists(ctx, id)
}

func thousandChars() string {
	parts := make([]string, 10)
	for i := range parts {
		parts[i] = strings.Repeat("w", 98) + "."
	}
	return strings.Join(parts, " ")
}

func gatewayDocs(n int) []models.Document {
	docs := make([]models.Document, n)
	for i := range docs {
		docs[i] = models.Document{
			ID:            fmt.Sprintf("%d", i+1),
			FileName:      fmt.Sprintf("lesson-%d.pdf", i+1),
			ExtractedText: thousandChars(),
		}
	}
	return docs
}

func TestRebuild_IndexesDocuments(t *testing.T) {
	chunks := store.NewMemoryChunkStore()
	ix := New(&staticSource{docs: gatewayDocs(3)}, chunks, Config{}, nil)

	report, err := ix.Rebuild(context.Background())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, report.ChunksCreated, 6)
	assert.LessOrEqual(t, report.ChunksCreated, 9)
	assert.Zero(t, report.ChunksSkipped)
	assert.Equal(t, 3, report.DocumentsProcessed)
	assert.False(t, report.Partial)
	assert.Equal(t, report.ChunksCreated, report.AfterCount-report.BeforeCount)

	got, err := chunks.SearchChunks(context.Background(), []string{"www"}, "lesson-1", 100)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "document", got[0].Category)
	assert.Equal(t, []string{"gateway", "uploaded"}, got[0].Tags)
	assert.Equal(t, "1", got[0].DocumentID)
}

func TestRebuild_IsIdempotent(t *testing.T) {
	chunks := store.NewMemoryChunkStore()
	ix := New(&staticSource{docs: gatewayDocs(2)}, chunks, Config{}, nil)

	first, err := ix.Rebuild(context.Background())
	require.NoError(t, err)
	require.Positive(t, first.ChunksCreated)

	second, err := ix.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.ChunksCreated)
	assert.Equal(t, first.ChunksCreated, second.ChunksSkipped)
	assert.Equal(t, second.BeforeCount, second.AfterCount)
}

func TestRebuild_DuplicateDocumentsInOneRun(t *testing.T) {
	docs := gatewayDocs(1)
	docs = append(docs, docs[0])
	ix := New(&staticSource{docs: docs}, store.NewMemoryChunkStore(), Config{}, nil)

	report, err := ix.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.ChunksCreated, report.ChunksSkipped)
}

func TestRebuild_EmptyAndUnavailableSource(t *testing.T) {
	for name, src := range map[string]*staticSource{
		"empty":       {},
		"unavailable": {err: errors.New("no such table: documents")},
	} {
		t.Run(name, func(t *testing.T) {
			ix := New(src, store.NewMemoryChunkStore(), Config{}, nil)

			report, err := ix.Rebuild(context.Background())
			require.NoError(t, err)
			assert.Zero(t, report.ChunksCreated)
			assert.Zero(t, report.ChunksSkipped)
			assert.Equal(t, report.BeforeCount, report.AfterCount)
		})
	}
}

func TestRebuild_SkipsShortDocuments(t *testing.T) {
	docs := []models.Document{
		{ID: "short", ExtractedText: "too short"},
		{ID: "summary", ExtractedText: "tiny", Summary: "A summary long enough to be indexed on its own."},
	}
	chunks := store.NewMemoryChunkStore()
	ix := New(&staticSource{docs: docs}, chunks, Config{}, nil)

	report, err := ix.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.DocumentsSkipped)
	assert.Equal(t, 1, report.DocumentsProcessed)
	assert.Equal(t, 1, report.ChunksCreated)

	got, _ := chunks.SearchChunks(context.Background(), []string{"summary"}, "", 10)
	require.Len(t, got, 1)
	assert.Equal(t, "Document", got[0].Topic)
}

func TestRebuild_StoreUnavailableIsFatal(t *testing.T) {
	fs := &faultyStore{MemoryChunkStore: store.NewMemoryChunkStore(), pingErr: errors.New("connection refused")}
	src := &staticSource{docs: gatewayDocs(1)}
	ix := New(src, fs, Config{}, nil)

	report, err := ix.Rebuild(context.Background())
	assert.Nil(t, report)
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
	assert.Zero(t, src.calls)
	assert.False(t, ix.Running())
}

func TestRebuild_DocumentFailureDoesNotAbort(t *testing.T) {
	fs := &faultyStore{
		MemoryChunkStore: store.NewMemoryChunkStore(),
		existsFail:       map[string]bool{"2": true},
		panicOn:          "3",
	}
	ix := New(&staticSource{docs: gatewayDocs(4)}, fs, Config{}, nil)

	report, err := ix.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.DocumentsProcessed)
	assert.Equal(t, 2, report.DocumentsSkipped)
	assert.Positive(t, report.ChunksCreated)
}

func TestRebuild_FailedDocumentLeavesNoChunks(t *testing.T) {
	fs := &faultyStore{MemoryChunkStore: store.NewMemoryChunkStore(), failChunk: "doc_2_1"}
	ix := New(&staticSource{docs: gatewayDocs(2)}, fs, Config{BatchSize: 50}, nil)

	report, err := ix.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.DocumentsProcessed)
	assert.Equal(t, 1, report.DocumentsSkipped)

	for _, id := range []string{"doc_2_0", "doc_2_1"} {
		exists, err := fs.MemoryChunkStore.ChunkExists(context.Background(), id)
		require.NoError(t, err)
		assert.False(t, exists, id)
	}
	exists, err := fs.MemoryChunkStore.ChunkExists(context.Background(), "doc_1_0")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, report.ChunksCreated, report.AfterCount-report.BeforeCount)
}

func TestRebuild_BatchFailureCountsSkipped(t *testing.T) {
	fs := &faultyStore{MemoryChunkStore: store.NewMemoryChunkStore(), insertErr: errors.New("deadlock")}
	ix := New(&staticSource{docs: gatewayDocs(1)}, fs, Config{BatchSize: 1}, nil)

	report, err := ix.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.ChunksCreated)
	assert.Positive(t, report.ChunksSkipped)
}

func TestRebuild_TimeBudget(t *testing.T) {
	ix := New(&staticSource{docs: gatewayDocs(5)}, store.NewMemoryChunkStore(), Config{TimeBudget: 40 * time.Second}, nil)

	var mu sync.Mutex
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ix.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := clock
		clock = clock.Add(15 * time.Second)
		return t
	}

	report, err := ix.Rebuild(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Partial)
	assert.Less(t, report.DocumentsProcessed, 5)
	assert.Equal(t, report.ChunksCreated, report.AfterCount-report.BeforeCount)
}

func TestRebuild_RejectsConcurrentRuns(t *testing.T) {
	src := &staticSource{docs: gatewayDocs(1), gate: make(chan struct{})}
	ix := New(src, store.NewMemoryChunkStore(), Config{}, nil)

	results, err := ix.RebuildAsync(context.Background())
	require.NoError(t, err)
	assert.True(t, ix.Running())

	_, err = ix.Rebuild(context.Background())
	assert.ErrorIs(t, err, ErrRebuildInProgress)
	_, err = ix.RebuildAsync(context.Background())
	assert.ErrorIs(t, err, ErrRebuildInProgress)

	close(src.gate)
	res := <-results
	require.NoError(t, res.Err)
	assert.Positive(t, res.Report.ChunksCreated)

	_, open := <-results
	assert.False(t, open)
	assert.Eventually(t, func() bool { return !ix.Running() }, time.Second, 10*time.Millisecond)
}

func TestRebuild_Progress(t *testing.T) {
	ix := New(&staticSource{docs: gatewayDocs(3)}, store.NewMemoryChunkStore(), Config{}, nil)

	var seen []Progress
	ix.OnProgress = func(p Progress) { seen = append(seen, p) }

	_, err := ix.Rebuild(context.Background())
	require.NoError(t, err)
	require.Len(t, seen, 3)
	assert.Equal(t, 3, seen[2].Processed)
	assert.Equal(t, 3, seen[2].Total)
}

func TestReindexDocument(t *testing.T) {
	chunks := store.NewMemoryChunkStore()
	ix := New(&staticSource{docs: gatewayDocs(2)}, chunks, Config{}, nil)
	_, err := ix.Rebuild(context.Background())
	require.NoError(t, err)

	updated := models.Document{ID: "1", FileName: "lesson-1.pdf", ExtractedText: "Revised lesson about the water cycle and evaporation."}
	report, err := ix.ReindexDocument(context.Background(), updated)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ChunksCreated)

	got, err := chunks.SearchChunks(context.Background(), []string{"evaporation", "www"}, "lesson-1", 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Content, "water cycle")
}
