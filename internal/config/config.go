package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port             int              `json:"port"`
	CORSAllowlist    []string         `json:"cors_allowlist"`
	RateLimitSeconds int              `json:"rate_limit_seconds"`
	LogConfig        logger.LogConfig `json:"log_config"`
	Database         DatabaseConfig   `json:"database"`
	AI               AIConfig         `json:"ai"`
	EmbedCache       EmbedCacheConfig `json:"embed_cache"`
	Index            IndexConfig      `json:"index"`
	Session          SessionConfig    `json:"session"`
	Transcript       TranscriptConfig `json:"transcript"`
	TranscriptStore  FileStoreConfig  `json:"transcript_store"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type AIConfig struct {
	Provider      string             `json:"provider"`
	Data          interface{}        `json:"data"`
	GenerateModel string             `json:"generate_model"`
	EmbedModel    string             `json:"embed_model"`
	Timeout       int                `json:"timeout"`
	MaxInputChars int                `json:"max_input_chars"`
	Fallbacks     []AIFallbackConfig `json:"fallbacks"`
}

type AIFallbackConfig struct {
	Provider      string      `json:"provider"`
	Data          interface{} `json:"data"`
	GenerateModel string      `json:"generate_model"`
	EmbedModel    string      `json:"embed_model"`
}

type EmbedCacheConfig struct {
	Size       int `json:"size"`
	TTLSeconds int `json:"ttl_seconds"`
}

type IndexConfig struct {
	CaptionGroupSize    int `json:"caption_group_size"`
	ChunkSize           int `json:"chunk_size"`
	ChunkOverlap        int `json:"chunk_overlap"`
	TopK                int `json:"top_k"`
	BuildTimeoutSeconds int `json:"build_timeout_seconds"`
	MaxConcurrentBuilds int `json:"max_concurrent_builds"`
}

type SessionConfig struct {
	Capacity       int    `json:"capacity"`
	IdleTTLMinutes int    `json:"idle_ttl_minutes"`
	CleanupCron    string `json:"cleanup_cron"`
}

type TranscriptConfig struct {
	BaseURL        string   `json:"base_url"`
	TimeoutSeconds int      `json:"timeout_seconds"`
	Languages      []string `json:"languages"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.GenerateModel == "" || cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.generate_model and ai.embed_model are required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.RateLimitSeconds == 0 {
		cfg.RateLimitSeconds = 1
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 60
	}
	if cfg.AI.MaxInputChars == 0 {
		cfg.AI.MaxInputChars = 4000
	}
	if cfg.EmbedCache.Size == 0 {
		cfg.EmbedCache.Size = 10000
	}
	if cfg.EmbedCache.TTLSeconds == 0 {
		cfg.EmbedCache.TTLSeconds = 7200
	}
	if cfg.Index.CaptionGroupSize == 0 {
		cfg.Index.CaptionGroupSize = 10
	}
	if cfg.Index.ChunkSize == 0 {
		cfg.Index.ChunkSize = 1000
	}
	if cfg.Index.ChunkOverlap == 0 {
		cfg.Index.ChunkOverlap = 200
	}
	if cfg.Index.ChunkOverlap >= cfg.Index.ChunkSize {
		return nil, fmt.Errorf("index.chunk_overlap must be smaller than index.chunk_size")
	}
	if cfg.Index.TopK == 0 {
		cfg.Index.TopK = 4
	}
	if cfg.Index.BuildTimeoutSeconds == 0 {
		cfg.Index.BuildTimeoutSeconds = 300
	}
	if cfg.Index.MaxConcurrentBuilds == 0 {
		cfg.Index.MaxConcurrentBuilds = 4
	}
	if cfg.Session.Capacity == 0 {
		cfg.Session.Capacity = 10
	}
	if cfg.Session.IdleTTLMinutes == 0 {
		cfg.Session.IdleTTLMinutes = 720
	}
	if cfg.Session.CleanupCron == "" {
		cfg.Session.CleanupCron = "*/30 * * * *"
	}
	if cfg.Transcript.BaseURL == "" {
		cfg.Transcript.BaseURL = "https://www.youtube.com"
	}
	if cfg.Transcript.TimeoutSeconds == 0 {
		cfg.Transcript.TimeoutSeconds = 30
	}
	if len(cfg.Transcript.Languages) == 0 {
		cfg.Transcript.Languages = []string{"en"}
	}
	if cfg.TranscriptStore.Type == "" {
		cfg.TranscriptStore.Type = "local"
		cfg.TranscriptStore.Data = map[string]interface{}{"dir": "./data/transcripts"}
	}
	return &cfg, nil
}
