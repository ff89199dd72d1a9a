package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ytqa/internal/ai"
	"github.com/xxxsen/ytqa/internal/chunker"
	"github.com/xxxsen/ytqa/internal/filestore"
	"github.com/xxxsen/ytqa/internal/model"
	appErr "github.com/xxxsen/ytqa/internal/pkg/errors"
	"github.com/xxxsen/ytqa/internal/transcript"
)

const embedTaskDocument = "RETRIEVAL_DOCUMENT"

// ChunkStore is the slice of the chunk repository the coordinator needs.
type ChunkStore interface {
	InsertBatch(ctx context.Context, chunks []model.Chunk) error
	DeleteByVideo(ctx context.Context, videoID string) error
	VideoChunkCounts(ctx context.Context) (map[string]int, error)
}

type Config struct {
	BuildTimeout        time.Duration
	MaxConcurrentBuilds int
}

// Coordinator owns the per-video indexing state machine. Each video gets
// its own entry with its own mutex; the coordinator mutex only guards map
// membership, so builds for different videos never block each other.
type Coordinator struct {
	mu      sync.Mutex
	entries map[string]*entry

	fetcher   transcript.Fetcher
	chunker   *chunker.Chunker
	embedder  ai.IEmbedder
	store     ChunkStore
	artifacts filestore.Store
	sem       chan struct{}
	timeout   time.Duration
}

type entry struct {
	mu         sync.Mutex
	status     model.VideoStatus
	chunkCount int
	// building is closed when the in-flight build commits; nil otherwise.
	building chan struct{}
	// deleted marks an entry torn down between a caller fetching it and
	// locking it; such callers must restart with a fresh entry.
	deleted bool
}

func NewCoordinator(
	fetcher transcript.Fetcher,
	ck *chunker.Chunker,
	embedder ai.IEmbedder,
	store ChunkStore,
	artifacts filestore.Store,
	cfg Config,
) *Coordinator {
	timeout := cfg.BuildTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	maxBuilds := cfg.MaxConcurrentBuilds
	if maxBuilds <= 0 {
		maxBuilds = 4
	}
	return &Coordinator{
		entries:   make(map[string]*entry),
		fetcher:   fetcher,
		chunker:   ck,
		embedder:  embedder,
		store:     store,
		artifacts: artifacts,
		sem:       make(chan struct{}, maxBuilds),
		timeout:   timeout,
	}
}

// Restore seeds already indexed videos from the persisted chunk store so a
// restart does not forget them.
func (c *Coordinator) Restore(ctx context.Context) error {
	counts, err := c.store.VideoChunkCounts(ctx)
	if err != nil {
		return fmt.Errorf("scan persisted index: %w", err)
	}
	c.mu.Lock()
	for videoID, count := range counts {
		c.entries[videoID] = &entry{status: model.StatusIndexed, chunkCount: count}
	}
	c.mu.Unlock()
	logutil.GetLogger(ctx).Info("index state restored", zap.Int("videos", len(counts)))
	return nil
}

// EnsureIndexed starts a background build unless the video is already
// indexed or a build is in flight. It returns immediately with the status
// the caller should report.
func (c *Coordinator) EnsureIndexed(ctx context.Context, videoID string) model.VideoStatus {
	return c.ingest(ctx, videoID, false)
}

// Reindex forces a rebuild from any settled state, including Indexed.
func (c *Coordinator) Reindex(ctx context.Context, videoID string) model.VideoStatus {
	return c.ingest(ctx, videoID, true)
}

func (c *Coordinator) ingest(ctx context.Context, videoID string, force bool) model.VideoStatus {
	var e *entry
	for {
		e = c.getOrCreate(videoID)
		e.mu.Lock()
		if !e.deleted {
			break
		}
		e.mu.Unlock()
	}
	switch e.status {
	case model.StatusIndexing:
		e.mu.Unlock()
		return model.StatusIndexing
	case model.StatusIndexed:
		if !force {
			e.mu.Unlock()
			return model.StatusIndexed
		}
	}
	e.status = model.StatusIndexing
	e.chunkCount = 0
	done := make(chan struct{})
	e.building = done
	e.mu.Unlock()

	logutil.GetLogger(ctx).Info("indexing started", zap.String("video_id", videoID), zap.Bool("force", force))
	go c.build(videoID, e, done)
	return model.StatusIndexing
}

func (c *Coordinator) Status(videoID string) model.VideoIndexInfo {
	c.mu.Lock()
	e := c.entries[videoID]
	c.mu.Unlock()
	if e == nil {
		return model.VideoIndexInfo{VideoID: videoID, Status: model.StatusNotIndexed}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return model.VideoIndexInfo{VideoID: videoID, Status: e.status, ChunkCount: e.chunkCount}
}

// Delete removes the entry, the persisted chunks and the raw transcript
// artifact. It refuses while a build is in flight; teardown and builds are
// serialized on the entry lock.
func (c *Coordinator) Delete(ctx context.Context, videoID string) error {
	c.mu.Lock()
	e := c.entries[videoID]
	c.mu.Unlock()
	if e == nil {
		return appErr.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status == model.StatusIndexing {
		return fmt.Errorf("%w: indexing in progress", appErr.ErrConflict)
	}
	if err := c.store.DeleteByVideo(ctx, videoID); err != nil {
		return err
	}
	if c.artifacts != nil {
		if err := c.artifacts.Remove(ctx, artifactKey(videoID)); err != nil {
			logutil.GetLogger(ctx).Warn("remove transcript artifact failed",
				zap.String("video_id", videoID), zap.Error(err))
		}
	}
	e.deleted = true
	c.mu.Lock()
	delete(c.entries, videoID)
	c.mu.Unlock()
	logutil.GetLogger(ctx).Info("video index deleted", zap.String("video_id", videoID))
	return nil
}

type Counts struct {
	Indexed  int `json:"indexed"`
	Indexing int `json:"indexing"`
	Failed   int `json:"failed"`
}

func (c *Coordinator) Counts() Counts {
	c.mu.Lock()
	entries := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	c.mu.Unlock()
	var counts Counts
	for _, e := range entries {
		e.mu.Lock()
		status := e.status
		e.mu.Unlock()
		switch status {
		case model.StatusIndexed:
			counts.Indexed++
		case model.StatusIndexing:
			counts.Indexing++
		case model.StatusFailed:
			counts.Failed++
		}
	}
	return counts
}

func (c *Coordinator) getOrCreate(videoID string) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[videoID]
	if e == nil {
		e = &entry{status: model.StatusNotIndexed}
		c.entries[videoID] = e
	}
	return e
}

// build runs the whole pipeline outside the entry lock and commits the
// outcome under it. Errors never escape; they settle the entry as Failed.
func (c *Coordinator) build(videoID string, e *entry, done chan struct{}) {
	c.sem <- struct{}{}
	defer func() { <-c.sem }()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	logger := logutil.GetLogger(ctx).With(zap.String("video_id", videoID))
	start := time.Now()

	count, err := c.runPipeline(ctx, videoID)

	e.mu.Lock()
	if err != nil {
		e.status = model.StatusFailed
		e.chunkCount = 0
	} else {
		e.status = model.StatusIndexed
		e.chunkCount = count
	}
	e.building = nil
	e.mu.Unlock()
	close(done)

	if err != nil {
		logger.Error("indexing failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return
	}
	logger.Info("indexing finished", zap.Int("chunks", count), zap.Duration("duration", time.Since(start)))
}

func (c *Coordinator) runPipeline(ctx context.Context, videoID string) (int, error) {
	// A rebuild must never leave stale chunks behind.
	if err := c.store.DeleteByVideo(ctx, videoID); err != nil {
		return 0, fmt.Errorf("clear previous chunks: %w", err)
	}
	units, err := c.fetcher.Fetch(ctx, videoID)
	if err != nil {
		// A saved raw transcript lets a rebuild survive the source being
		// unreachable.
		cached, cacheErr := c.loadArtifact(ctx, videoID)
		if cacheErr != nil {
			return 0, fmt.Errorf("fetch transcript: %w", err)
		}
		logutil.GetLogger(ctx).Warn("transcript fetch failed, rebuilding from saved artifact",
			zap.String("video_id", videoID), zap.Error(err))
		units = cached
	} else {
		c.saveArtifact(ctx, videoID, units)
	}

	chunks := c.chunker.Chunk(ctx, videoID, units)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("transcript produced no chunks")
	}
	for i := range chunks {
		emb, err := c.embedder.Embed(ctx, chunks[i].Content, embedTaskDocument)
		if err != nil {
			return 0, fmt.Errorf("embed chunk %d: %w", i, err)
		}
		chunks[i].Embedding = emb
	}
	if err := c.store.InsertBatch(ctx, chunks); err != nil {
		return 0, fmt.Errorf("persist chunks: %w", err)
	}
	return len(chunks), nil
}

// saveArtifact keeps the raw caption units around for a later re-index.
// Failure is logged and ignored, the artifact is a convenience copy.
func (c *Coordinator) saveArtifact(ctx context.Context, videoID string, units []model.CaptionUnit) {
	if c.artifacts == nil {
		return
	}
	data, err := json.Marshal(units)
	if err != nil {
		return
	}
	if err := c.artifacts.Save(ctx, artifactKey(videoID), bytes.NewReader(data), int64(len(data))); err != nil {
		logutil.GetLogger(ctx).Warn("save transcript artifact failed",
			zap.String("video_id", videoID), zap.Error(err))
	}
}

func (c *Coordinator) loadArtifact(ctx context.Context, videoID string) ([]model.CaptionUnit, error) {
	if c.artifacts == nil {
		return nil, fmt.Errorf("no artifact store configured")
	}
	rc, err := c.artifacts.Open(ctx, artifactKey(videoID))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var units []model.CaptionUnit
	if err := json.NewDecoder(rc).Decode(&units); err != nil {
		return nil, fmt.Errorf("decode transcript artifact: %w", err)
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("empty transcript artifact")
	}
	return units, nil
}

func artifactKey(videoID string) string {
	return videoID + ".json"
}

// waitBuild blocks until an in-flight build for the video commits. Only
// used by tests to observe completion without polling.
func (c *Coordinator) waitBuild(videoID string) {
	c.mu.Lock()
	e := c.entries[videoID]
	c.mu.Unlock()
	if e == nil {
		return
	}
	e.mu.Lock()
	done := e.building
	e.mu.Unlock()
	if done != nil {
		<-done
	}
}
