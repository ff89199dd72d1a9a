package chunker

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ytqa/internal/model"
)

type Config struct {
	CaptionGroupSize int
	ChunkSize        int
	ChunkOverlap     int
}

type Chunker struct {
	groupSize int
	size      int
	overlap   int
}

func New(cfg Config) *Chunker {
	groupSize := cfg.CaptionGroupSize
	if groupSize <= 0 {
		groupSize = 10
	}
	size := cfg.ChunkSize
	if size <= 0 {
		size = 1000
	}
	overlap := cfg.ChunkOverlap
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Chunker{groupSize: groupSize, size: size, overlap: overlap}
}

type batch struct {
	text     string
	start    float64
	duration float64
}

// Chunk groups ordered caption units into fixed-size batches carrying a
// coarse time range, then re-splits each batch into overlapping text
// windows. Every resulting chunk keeps the batch's start/duration so
// retrieval hits can be mapped back to a point in the video.
func (c *Chunker) Chunk(ctx context.Context, videoID string, units []model.CaptionUnit) []model.Chunk {
	batches := c.group(units)
	var chunks []model.Chunk
	position := 0
	for _, b := range batches {
		for _, window := range c.split(b.text) {
			chunks = append(chunks, model.Chunk{
				VideoID:  videoID,
				Position: position,
				Content:  window,
				Start:    b.start,
				Duration: b.duration,
			})
			position++
		}
	}
	logutil.GetLogger(ctx).Info("transcript chunked",
		zap.String("video_id", videoID),
		zap.Int("units", len(units)),
		zap.Int("batches", len(batches)),
		zap.Int("chunks", len(chunks)),
	)
	return chunks
}

func (c *Chunker) group(units []model.CaptionUnit) []batch {
	var batches []batch
	for offset := 0; offset < len(units); offset += c.groupSize {
		end := offset + c.groupSize
		if end > len(units) {
			end = len(units)
		}
		group := units[offset:end]
		parts := make([]string, 0, len(group))
		var duration float64
		for _, unit := range group {
			text := strings.TrimSpace(unit.Text)
			if text != "" {
				parts = append(parts, text)
			}
			duration += unit.Duration
		}
		if len(parts) == 0 {
			continue
		}
		batches = append(batches, batch{
			text:     strings.Join(parts, " "),
			start:    group[0].Start,
			duration: duration,
		})
	}
	return batches
}

// split cuts text into rune windows of at most c.size, each window starting
// c.size-c.overlap runes after the previous one. Overlap keeps sentences
// that straddle a boundary retrievable from both sides.
func (c *Chunker) split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= c.size {
		return []string{text}
	}
	step := c.size - c.overlap
	var windows []string
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		windows = append(windows, strings.TrimSpace(string(runes[start:end])))
		if end == len(runes) {
			break
		}
	}
	return windows
}
