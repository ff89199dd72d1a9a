package model

type CaptionUnit struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

type Chunk struct {
	VideoID   string    `json:"video_id"`
	Position  int       `json:"position"`
	Content   string    `json:"content"`
	Start     float64   `json:"start"`
	Duration  float64   `json:"duration"`
	Embedding []float32 `json:"embedding,omitempty"`
}

type ChunkMatch struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}
