package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/ytqa/internal/model"
	"github.com/xxxsen/ytqa/internal/pkg/dbutil"
	appErr "github.com/xxxsen/ytqa/internal/pkg/errors"
)

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

func (r *ChunkRepo) InsertBatch(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	now := time.Now().UnixMilli()
	rows := make([]map[string]interface{}, 0, len(chunks))
	for _, chunk := range chunks {
		rows = append(rows, map[string]interface{}{
			"video_id":     chunk.VideoID,
			"position":     chunk.Position,
			"content":      chunk.Content,
			"start_sec":    chunk.Start,
			"duration_sec": chunk.Duration,
			"embedding":    pgvector.NewVector(chunk.Embedding),
			"ctime":        now,
		})
	}
	sqlStr, args, err := builder.BuildInsert("transcript_chunks", rows)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return fmt.Errorf("%w: duplicate chunk position", appErr.ErrConflict)
		}
		return err
	}
	return nil
}

// SearchByVideo returns the topK chunks for a video ordered by cosine
// distance to the query embedding, closest first.
func (r *ChunkRepo) SearchByVideo(ctx context.Context, videoID string, query []float32, topK int) ([]model.ChunkMatch, error) {
	const sqlStr = `
		SELECT video_id, position, content, start_sec, duration_sec, embedding <=> $1 AS distance
		FROM transcript_chunks
		WHERE video_id = $2
		ORDER BY embedding <=> $1
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, sqlStr, pgvector.NewVector(query), videoID, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var matches []model.ChunkMatch
	for rows.Next() {
		var item model.ChunkMatch
		var distance float64
		if err := rows.Scan(
			&item.Chunk.VideoID,
			&item.Chunk.Position,
			&item.Chunk.Content,
			&item.Chunk.Start,
			&item.Chunk.Duration,
			&distance,
		); err != nil {
			return nil, err
		}
		item.Score = 1 - distance
		matches = append(matches, item)
	}
	return matches, rows.Err()
}

func (r *ChunkRepo) DeleteByVideo(ctx context.Context, videoID string) error {
	const sqlStr = `DELETE FROM transcript_chunks WHERE video_id = $1`
	_, err := r.db.ExecContext(ctx, sqlStr, videoID)
	return err
}

// VideoChunkCounts scans the persisted index at startup so already indexed
// videos survive a restart.
func (r *ChunkRepo) VideoChunkCounts(ctx context.Context) (map[string]int, error) {
	const sqlStr = `SELECT video_id, COUNT(*) FROM transcript_chunks GROUP BY video_id`
	rows, err := r.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var videoID string
		var count int
		if err := rows.Scan(&videoID, &count); err != nil {
			return nil, err
		}
		counts[videoID] = count
	}
	return counts, rows.Err()
}
