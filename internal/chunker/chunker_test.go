package chunker

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ytqa/internal/model"
)

func makeUnits(count int, secondsEach float64) []model.CaptionUnit {
	units := make([]model.CaptionUnit, 0, count)
	for i := 0; i < count; i++ {
		units = append(units, model.CaptionUnit{
			Text:     fmt.Sprintf("caption %d", i),
			Start:    float64(i) * secondsEach,
			Duration: secondsEach,
		})
	}
	return units
}

func TestChunk_GroupsCarryTimeMetadata(t *testing.T) {
	c := New(Config{CaptionGroupSize: 5, ChunkSize: 1000, ChunkOverlap: 200})
	units := makeUnits(12, 2.0)

	chunks := c.Chunk(context.Background(), "vid1", units)
	require.Len(t, chunks, 3)

	// First batch covers units 0..4: starts at 0, five 2s captions.
	require.Equal(t, 0.0, chunks[0].Start)
	require.Equal(t, 10.0, chunks[0].Duration)
	// Second batch covers units 5..9.
	require.Equal(t, 10.0, chunks[1].Start)
	require.Equal(t, 10.0, chunks[1].Duration)
	// Last batch only has units 10 and 11.
	require.Equal(t, 20.0, chunks[2].Start)
	require.Equal(t, 4.0, chunks[2].Duration)

	for i, chunk := range chunks {
		require.Equal(t, "vid1", chunk.VideoID)
		require.Equal(t, i, chunk.Position)
	}
	require.Equal(t, "caption 0 caption 1 caption 2 caption 3 caption 4", chunks[0].Content)
}

func TestChunk_SplitsLongBatchesWithOverlap(t *testing.T) {
	c := New(Config{CaptionGroupSize: 1, ChunkSize: 100, ChunkOverlap: 20})
	long := strings.Repeat("a", 250)
	units := []model.CaptionUnit{{Text: long, Start: 0, Duration: 5}}

	chunks := c.Chunk(context.Background(), "vid1", units)
	// Windows start every 80 runes: 0..100, 80..180, 160..250.
	require.Len(t, chunks, 3)
	require.Len(t, []rune(chunks[0].Content), 100)
	require.Len(t, []rune(chunks[2].Content), 90)
	for i, chunk := range chunks {
		require.Equal(t, i, chunk.Position)
		require.Equal(t, 0.0, chunk.Start)
		require.Equal(t, 5.0, chunk.Duration)
	}
}

func TestChunk_SkipsEmptyCaptions(t *testing.T) {
	c := New(Config{CaptionGroupSize: 2, ChunkSize: 1000, ChunkOverlap: 200})
	units := []model.CaptionUnit{
		{Text: "  ", Start: 0, Duration: 1},
		{Text: "", Start: 1, Duration: 1},
		{Text: "hello", Start: 2, Duration: 1},
	}

	chunks := c.Chunk(context.Background(), "vid1", units)
	require.Len(t, chunks, 1)
	require.Equal(t, "hello", chunks[0].Content)
	// The batch keeps the time range of its group, empty captions included.
	require.Equal(t, 2.0, chunks[0].Start)
}

func TestChunk_NoUnits(t *testing.T) {
	c := New(Config{})
	require.Empty(t, c.Chunk(context.Background(), "vid1", nil))
}

func TestNew_RejectsBadOverlap(t *testing.T) {
	c := New(Config{ChunkSize: 100, ChunkOverlap: 100})
	require.Equal(t, 20, c.overlap)
}
