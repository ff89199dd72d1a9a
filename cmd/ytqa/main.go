package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/ytqa/internal/ai"
	"github.com/xxxsen/ytqa/internal/chunker"
	"github.com/xxxsen/ytqa/internal/config"
	"github.com/xxxsen/ytqa/internal/db"
	"github.com/xxxsen/ytqa/internal/embedcache"
	"github.com/xxxsen/ytqa/internal/filestore"
	"github.com/xxxsen/ytqa/internal/handler"
	"github.com/xxxsen/ytqa/internal/index"
	"github.com/xxxsen/ytqa/internal/job"
	"github.com/xxxsen/ytqa/internal/middleware"
	"github.com/xxxsen/ytqa/internal/repo"
	"github.com/xxxsen/ytqa/internal/schedule"
	"github.com/xxxsen/ytqa/internal/service"
	"github.com/xxxsen/ytqa/internal/session"
	"github.com/xxxsen/ytqa/internal/transcript"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "ytqa",
		Short: "ytqa backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run ytqa server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			database, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(database); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, database)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func buildAI(cfg config.AIConfig) (ai.IGenerator, ai.IEmbedder, error) {
	generators := make([]ai.GeneratorEntry, 0, len(cfg.Fallbacks)+1)
	embedders := make([]ai.EmbedderEntry, 0, len(cfg.Fallbacks)+1)

	primary, err := ai.NewProvider(cfg.Provider, cfg.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("init ai provider: %w", err)
	}
	generators = append(generators, ai.GeneratorEntry{
		Name:      cfg.Provider,
		Generator: ai.NewGenerator(primary, cfg.GenerateModel),
	})
	embedders = append(embedders, ai.EmbedderEntry{
		Name:     cfg.Provider,
		Embedder: ai.NewEmbedder(primary, cfg.EmbedModel),
	})

	for _, fb := range cfg.Fallbacks {
		provider, err := ai.NewProvider(fb.Provider, fb.Data)
		if err != nil {
			return nil, nil, fmt.Errorf("init ai fallback %s: %w", fb.Provider, err)
		}
		if fb.GenerateModel != "" {
			generators = append(generators, ai.GeneratorEntry{
				Name:      fb.Provider,
				Generator: ai.NewGenerator(provider, fb.GenerateModel),
			})
		}
		if fb.EmbedModel != "" {
			embedders = append(embedders, ai.EmbedderEntry{
				Name:     fb.Provider,
				Embedder: ai.NewEmbedder(provider, fb.EmbedModel),
			})
		}
	}
	return ai.NewGroupGenerator(generators), ai.NewGroupEmbedder(embedders), nil
}

func runServer(cfg *config.Config, database *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("transcript_store", cfg.TranscriptStore.Type),
	)

	generator, embedder, err := buildAI(cfg.AI)
	if err != nil {
		return err
	}
	embedder = embedcache.WrapLruCacheToEmbedder(
		embedder,
		cfg.EmbedCache.Size,
		time.Duration(cfg.EmbedCache.TTLSeconds)*time.Second,
	)

	artifacts, err := filestore.New(cfg.TranscriptStore)
	if err != nil {
		return fmt.Errorf("init transcript store: %w", err)
	}
	fetcher := transcript.NewYoutubeFetcher(transcript.YoutubeConfig{
		BaseURL:   cfg.Transcript.BaseURL,
		Timeout:   time.Duration(cfg.Transcript.TimeoutSeconds) * time.Second,
		Languages: cfg.Transcript.Languages,
	})
	ck := chunker.New(chunker.Config{
		CaptionGroupSize: cfg.Index.CaptionGroupSize,
		ChunkSize:        cfg.Index.ChunkSize,
		ChunkOverlap:     cfg.Index.ChunkOverlap,
	})
	chunkRepo := repo.NewChunkRepo(database)

	coordinator := index.NewCoordinator(fetcher, ck, embedder, chunkRepo, artifacts, index.Config{
		BuildTimeout:        time.Duration(cfg.Index.BuildTimeoutSeconds) * time.Second,
		MaxConcurrentBuilds: cfg.Index.MaxConcurrentBuilds,
	})
	if err := coordinator.Restore(context.Background()); err != nil {
		return fmt.Errorf("restore index state: %w", err)
	}

	pool := session.NewPool(cfg.Session.Capacity)
	askService := service.NewAskService(
		coordinator,
		chunkRepo,
		embedder,
		generator,
		pool,
		service.NewHeuristicClassifier(),
		service.AskConfig{
			TopK:             cfg.Index.TopK,
			Timeout:          time.Duration(cfg.AI.Timeout) * time.Second,
			MaxQuestionChars: cfg.AI.MaxInputChars,
		},
	)

	deps := handler.RouterDeps{
		Videos:          handler.NewVideoHandler(coordinator),
		Ask:             handler.NewAskHandler(askService),
		Sessions:        handler.NewSessionHandler(pool),
		Health:          handler.NewHealthHandler(coordinator, pool),
		RateLimitWindow: time.Duration(cfg.RateLimitSeconds) * time.Second,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	cleanup := job.NewSessionCleanupJob(pool, time.Duration(cfg.Session.IdleTTLMinutes)*time.Minute)
	if err := scheduler.AddJob(cleanup, cfg.Session.CleanupCron); err != nil {
		return fmt.Errorf("schedule session cleanup: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
