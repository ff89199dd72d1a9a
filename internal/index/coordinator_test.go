package index

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ytqa/internal/chunker"
	"github.com/xxxsen/ytqa/internal/model"
	appErr "github.com/xxxsen/ytqa/internal/pkg/errors"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	err   error
	// gate, when set, blocks Fetch until closed.
	gate chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, videoID string) ([]model.CaptionUnit, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	err := f.err
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return []model.CaptionUnit{
		{Text: "caption one for " + videoID, Start: 0, Duration: 2},
		{Text: "caption two for " + videoID, Start: 2, Duration: 2},
	}, nil
}

func (f *fakeFetcher) fetchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeChunkStore struct {
	mu      sync.Mutex
	rows    map[string][]model.Chunk
	deletes map[string]int
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{rows: make(map[string][]model.Chunk), deletes: make(map[string]int)}
}

func (s *fakeChunkStore) InsertBatch(ctx context.Context, chunks []model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, chunk := range chunks {
		s.rows[chunk.VideoID] = append(s.rows[chunk.VideoID], chunk)
	}
	return nil
}

func (s *fakeChunkStore) DeleteByVideo(ctx context.Context, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, videoID)
	s.deletes[videoID]++
	return nil
}

func (s *fakeChunkStore) VideoChunkCounts(ctx context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int, len(s.rows))
	for videoID, chunks := range s.rows {
		counts[videoID] = len(chunks)
	}
	return counts, nil
}

func (s *fakeChunkStore) rowCount(videoID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows[videoID])
}

type memArtifacts struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{blobs: make(map[string][]byte)}
}

func (m *memArtifacts) Save(ctx context.Context, key string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.blobs[key] = data
	m.mu.Unlock()
	return nil
}

func (m *memArtifacts) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	data, ok := m.blobs[key]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("artifact %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memArtifacts) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.blobs, key)
	m.mu.Unlock()
	return nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func (fakeEmbedder) ModelName() string { return "fake-embed" }

func newTestCoordinator(fetcher *fakeFetcher, store *fakeChunkStore) *Coordinator {
	ck := chunker.New(chunker.Config{CaptionGroupSize: 10, ChunkSize: 1000, ChunkOverlap: 200})
	return NewCoordinator(fetcher, ck, fakeEmbedder{}, store, nil, Config{
		BuildTimeout:        10 * time.Second,
		MaxConcurrentBuilds: 4,
	})
}

func TestCoordinator_EnsureIndexed(t *testing.T) {
	fetcher := &fakeFetcher{}
	store := newFakeChunkStore()
	c := newTestCoordinator(fetcher, store)

	status := c.EnsureIndexed(context.Background(), "vid1")
	require.Equal(t, model.StatusIndexing, status)
	c.waitBuild("vid1")

	info := c.Status("vid1")
	require.Equal(t, model.StatusIndexed, info.Status)
	require.Equal(t, 1, info.ChunkCount)
	require.Equal(t, 1, store.rowCount("vid1"))
	require.Equal(t, 1, fetcher.fetchCalls())
}

func TestCoordinator_EnsureIndexedIsIdempotent(t *testing.T) {
	gate := make(chan struct{})
	fetcher := &fakeFetcher{gate: gate}
	store := newFakeChunkStore()
	c := newTestCoordinator(fetcher, store)

	require.Equal(t, model.StatusIndexing, c.EnsureIndexed(context.Background(), "vid1"))
	// A second request while the build is in flight must not start another.
	require.Equal(t, model.StatusIndexing, c.EnsureIndexed(context.Background(), "vid1"))
	close(gate)
	c.waitBuild("vid1")

	require.Equal(t, 1, fetcher.fetchCalls())
	// Once settled, further requests are no-ops.
	require.Equal(t, model.StatusIndexed, c.EnsureIndexed(context.Background(), "vid1"))
	require.Equal(t, 1, fetcher.fetchCalls())
}

func TestCoordinator_VideosBuildIndependently(t *testing.T) {
	gate := make(chan struct{})
	slowFetcher := &fakeFetcher{gate: gate}
	store := newFakeChunkStore()
	c := newTestCoordinator(slowFetcher, store)

	c.EnsureIndexed(context.Background(), "slow")
	c.EnsureIndexed(context.Background(), "fast")

	// "fast" shares the gated fetcher here, so release both; the point is
	// that neither build held a coordinator-wide lock while running.
	require.Equal(t, model.StatusIndexing, c.Status("slow").Status)
	require.Equal(t, model.StatusIndexing, c.Status("fast").Status)
	close(gate)
	c.waitBuild("slow")
	c.waitBuild("fast")

	require.Equal(t, model.StatusIndexed, c.Status("slow").Status)
	require.Equal(t, model.StatusIndexed, c.Status("fast").Status)
}

func TestCoordinator_FetchFailureSettlesAsFailed(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("captions disabled")}
	store := newFakeChunkStore()
	c := newTestCoordinator(fetcher, store)

	c.EnsureIndexed(context.Background(), "vid1")
	c.waitBuild("vid1")

	info := c.Status("vid1")
	require.Equal(t, model.StatusFailed, info.Status)
	require.Equal(t, 0, info.ChunkCount)
	require.Equal(t, 0, store.rowCount("vid1"))

	// A failed video is retryable.
	fetcher.mu.Lock()
	fetcher.err = nil
	fetcher.mu.Unlock()
	require.Equal(t, model.StatusIndexing, c.EnsureIndexed(context.Background(), "vid1"))
	c.waitBuild("vid1")
	require.Equal(t, model.StatusIndexed, c.Status("vid1").Status)
	require.Equal(t, 2, fetcher.fetchCalls())
}

func TestCoordinator_ReindexForcesRebuild(t *testing.T) {
	fetcher := &fakeFetcher{}
	store := newFakeChunkStore()
	c := newTestCoordinator(fetcher, store)

	c.EnsureIndexed(context.Background(), "vid1")
	c.waitBuild("vid1")
	require.Equal(t, 1, fetcher.fetchCalls())

	require.Equal(t, model.StatusIndexing, c.Reindex(context.Background(), "vid1"))
	c.waitBuild("vid1")
	require.Equal(t, 2, fetcher.fetchCalls())
	require.Equal(t, model.StatusIndexed, c.Status("vid1").Status)
	// The rebuild cleared the old rows before inserting.
	require.GreaterOrEqual(t, store.deletes["vid1"], 2)
	require.Equal(t, 1, store.rowCount("vid1"))
}

func TestCoordinator_StatusUnknownVideo(t *testing.T) {
	c := newTestCoordinator(&fakeFetcher{}, newFakeChunkStore())
	info := c.Status("nope")
	require.Equal(t, model.StatusNotIndexed, info.Status)
	require.Equal(t, "nope", info.VideoID)
}

func TestCoordinator_DeleteRefusesWhileIndexing(t *testing.T) {
	gate := make(chan struct{})
	fetcher := &fakeFetcher{gate: gate}
	store := newFakeChunkStore()
	c := newTestCoordinator(fetcher, store)

	c.EnsureIndexed(context.Background(), "vid1")
	err := c.Delete(context.Background(), "vid1")
	require.ErrorIs(t, err, appErr.ErrConflict)

	close(gate)
	c.waitBuild("vid1")
	require.NoError(t, c.Delete(context.Background(), "vid1"))
	require.Equal(t, 0, store.rowCount("vid1"))
	require.Equal(t, model.StatusNotIndexed, c.Status("vid1").Status)
}

func TestCoordinator_DeleteUnknownVideo(t *testing.T) {
	c := newTestCoordinator(&fakeFetcher{}, newFakeChunkStore())
	require.ErrorIs(t, c.Delete(context.Background(), "nope"), appErr.ErrNotFound)
}

func TestCoordinator_Restore(t *testing.T) {
	store := newFakeChunkStore()
	require.NoError(t, store.InsertBatch(context.Background(), []model.Chunk{
		{VideoID: "vid1", Position: 0, Content: "a"},
		{VideoID: "vid1", Position: 1, Content: "b"},
	}))
	fetcher := &fakeFetcher{}
	c := newTestCoordinator(fetcher, store)
	require.NoError(t, c.Restore(context.Background()))

	info := c.Status("vid1")
	require.Equal(t, model.StatusIndexed, info.Status)
	require.Equal(t, 2, info.ChunkCount)
	// Restored videos do not get re-fetched.
	require.Equal(t, model.StatusIndexed, c.EnsureIndexed(context.Background(), "vid1"))
	require.Equal(t, 0, fetcher.fetchCalls())
}

func TestCoordinator_Counts(t *testing.T) {
	gate := make(chan struct{})
	fetcher := &fakeFetcher{gate: gate}
	store := newFakeChunkStore()
	c := newTestCoordinator(fetcher, store)

	c.EnsureIndexed(context.Background(), "vid1")
	counts := c.Counts()
	require.Equal(t, 1, counts.Indexing)
	close(gate)
	c.waitBuild("vid1")
	counts = c.Counts()
	require.Equal(t, 1, counts.Indexed)
	require.Equal(t, 0, counts.Indexing)
}

func TestCoordinator_RebuildFallsBackToSavedArtifact(t *testing.T) {
	fetcher := &fakeFetcher{}
	store := newFakeChunkStore()
	artifacts := newMemArtifacts()
	ck := chunker.New(chunker.Config{CaptionGroupSize: 10, ChunkSize: 1000, ChunkOverlap: 200})
	c := NewCoordinator(fetcher, ck, fakeEmbedder{}, store, artifacts, Config{
		BuildTimeout:        10 * time.Second,
		MaxConcurrentBuilds: 4,
	})

	c.EnsureIndexed(context.Background(), "vid1")
	c.waitBuild("vid1")
	require.Equal(t, model.StatusIndexed, c.Status("vid1").Status)

	// Captions go away; a forced rebuild still succeeds from the artifact.
	fetcher.mu.Lock()
	fetcher.err = fmt.Errorf("captions gone")
	fetcher.mu.Unlock()
	c.Reindex(context.Background(), "vid1")
	c.waitBuild("vid1")
	require.Equal(t, model.StatusIndexed, c.Status("vid1").Status)
	require.Equal(t, 1, store.rowCount("vid1"))
}

func TestCoordinator_DeleteRemovesArtifact(t *testing.T) {
	fetcher := &fakeFetcher{}
	store := newFakeChunkStore()
	artifacts := newMemArtifacts()
	ck := chunker.New(chunker.Config{CaptionGroupSize: 10, ChunkSize: 1000, ChunkOverlap: 200})
	c := NewCoordinator(fetcher, ck, fakeEmbedder{}, store, artifacts, Config{
		BuildTimeout:        10 * time.Second,
		MaxConcurrentBuilds: 4,
	})

	c.EnsureIndexed(context.Background(), "vid1")
	c.waitBuild("vid1")
	require.Contains(t, artifacts.blobs, "vid1.json")

	require.NoError(t, c.Delete(context.Background(), "vid1"))
	require.NotContains(t, artifacts.blobs, "vid1.json")
}

func TestCoordinator_DeleteConflictDoesNotDropRows(t *testing.T) {
	gate := make(chan struct{})
	fetcher := &fakeFetcher{gate: gate}
	store := newFakeChunkStore()
	c := newTestCoordinator(fetcher, store)

	c.EnsureIndexed(context.Background(), "vid1")
	require.Error(t, c.Delete(context.Background(), "vid1"))
	close(gate)
	c.waitBuild("vid1")
	require.Equal(t, 1, store.rowCount("vid1"))
}
