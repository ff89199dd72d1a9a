package model

type VideoStatus string

const (
	StatusNotIndexed VideoStatus = "not_indexed"
	StatusIndexing   VideoStatus = "indexing"
	StatusIndexed    VideoStatus = "indexed"
	StatusFailed     VideoStatus = "failed"
)

type VideoIndexInfo struct {
	VideoID    string      `json:"video_id"`
	Status     VideoStatus `json:"status"`
	ChunkCount int         `json:"chunk_count"`
}
