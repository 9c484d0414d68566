package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/flakerslabs/sentinel/backend/internal/ai"
	"github.com/flakerslabs/sentinel/backend/internal/config"
	"github.com/flakerslabs/sentinel/backend/internal/database"
	"github.com/flakerslabs/sentinel/backend/internal/models"
	"github.com/flakerslabs/sentinel/backend/internal/repository"
	"github.com/flakerslabs/sentinel/backend/internal/seeder"
	"github.com/flakerslabs/sentinel/backend/pkg/utils"
	"github.com/joho/godotenv"
	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func main() {
	var (
		assistantID = flag.String("assistant-id", "", "assistant to ingest content for (required)")
		maxPages    = flag.Int("limit", 200, "maximum pages to crawl")
		concurrent  = flag.Int("concurrent", 4, "concurrent page fetches")
		delay       = flag.Duration("delay", 200*time.Millisecond, "delay between fetches")
		dryRun      = flag.Bool("dry-run", false, "crawl and report without writing chunks")
		verbose     = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	_ = godotenv.Load()

	utils.InitLogger()
	logger := utils.GetLogger()
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	if *assistantID == "" {
		logger.Fatal("--assistant-id is required")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if err := cfg.ValidateOpenAI(); err != nil {
		logger.WithError(err).Fatal("Invalid OpenAI configuration")
	}

	dbManager, err := database.NewManager(&database.Config{
		DatabaseURL: cfg.Database.URL,
		RedisURL:    cfg.Redis.URL,
		LogLevel:    os.Getenv("LOG_LEVEL"),
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer dbManager.Close()

	repos := repository.NewRepositoryManager(dbManager.DB)

	assistant, err := repos.Assistant.GetByID(*assistantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Fatal("Assistant not found")
		}
		logger.WithError(err).Fatal("Failed to load assistant")
	}

	chunkRepo := repos.Chunk
	if *dryRun {
		chunkRepo = &dryRunChunkRepo{inner: chunkRepo, logger: logger}
	}

	aiClient := ai.NewClient(cfg, logger)
	ingestor := seeder.NewIngestor(chunkRepo, aiClient, seeder.Options{
		MaxPages:    *maxPages,
		Parallelism: *concurrent,
		Delay:       *delay,
	}, logger)

	logger.WithFields(logrus.Fields{
		"assistant_id": assistant.ID,
		"site_url":     assistant.SiteURL,
		"dry_run":      *dryRun,
	}).Info("Starting ingestion")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if err := repos.Assistant.UpdateStatus(assistant.ID, models.StatusIngesting, "seed run in progress"); err != nil {
		logger.WithError(err).Fatal("Failed to mark assistant as ingesting")
	}

	count, err := ingestor.Ingest(ctx, assistant)
	if err != nil {
		logger.WithError(err).Error("Ingestion failed")
		if uerr := repos.Assistant.UpdateStatus(assistant.ID, models.StatusError, err.Error()); uerr != nil {
			logger.WithError(uerr).Error("Failed to record failure status")
		}
		os.Exit(1)
	}

	if *dryRun {
		// Leave status untouched; nothing was written.
		logger.WithField("chunks", count).Info("Dry run completed")
		return
	}

	if err := repos.Assistant.UpdateIngestionResult(assistant.ID, models.StatusReady, count, nil); err != nil {
		logger.WithError(err).Fatal("Failed to record ingestion result")
	}

	cache := database.NewCache(dbManager.Redis, logger)
	invalidateCtx, invalidateCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer invalidateCancel()
	if err := cache.InvalidateAssistant(invalidateCtx, assistant.ID); err != nil {
		logger.WithError(err).Warn("Failed to invalidate assistant cache")
	}

	logger.WithField("chunks", count).Info("Ingestion completed")
}

// dryRunChunkRepo counts writes instead of performing them.
type dryRunChunkRepo struct {
	inner  repository.ChunkRepository
	logger *logrus.Logger
}

func (d *dryRunChunkRepo) CreateBatch(chunks []models.ContentChunk) error {
	for _, chunk := range chunks {
		d.logger.WithFields(logrus.Fields{
			"source_url": chunk.SourceURL,
			"intent":     chunk.Intent,
			"chars":      len(chunk.Text),
		}).Info("Would index chunk")
	}
	return nil
}

func (d *dryRunChunkRepo) SearchSimilar(ctx context.Context, tenantID, assistantID string, embedding pgvector.Vector, limit int) ([]repository.ChunkMatch, error) {
	return d.inner.SearchSimilar(ctx, tenantID, assistantID, embedding, limit)
}

func (d *dryRunChunkRepo) ExistsByHash(assistantID, contentHash string) (bool, error) {
	return d.inner.ExistsByHash(assistantID, contentHash)
}

func (d *dryRunChunkRepo) DeleteByAssistant(assistantID string) error { return nil }

func (d *dryRunChunkRepo) CountByAssistant(assistantID string) (int64, error) {
	return d.inner.CountByAssistant(assistantID)
}
