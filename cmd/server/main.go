package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flakerslabs/sentinel/backend/internal/ai"
	"github.com/flakerslabs/sentinel/backend/internal/api/handlers"
	"github.com/flakerslabs/sentinel/backend/internal/config"
	"github.com/flakerslabs/sentinel/backend/internal/database"
	"github.com/flakerslabs/sentinel/backend/internal/governance"
	"github.com/flakerslabs/sentinel/backend/internal/health"
	"github.com/flakerslabs/sentinel/backend/internal/index"
	"github.com/flakerslabs/sentinel/backend/internal/middleware"
	"github.com/flakerslabs/sentinel/backend/internal/migration"
	"github.com/flakerslabs/sentinel/backend/internal/repository"
	"github.com/flakerslabs/sentinel/backend/internal/retrieval"
	"github.com/flakerslabs/sentinel/backend/internal/seeder"
	"github.com/flakerslabs/sentinel/backend/internal/services"
	"github.com/flakerslabs/sentinel/backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	utils.InitLogger()
	logger := utils.GetLogger()

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

	migrationRunner := migration.NewRunner(dbManager, logger)
	if err := migrationRunner.RunMigrations("./migrations"); err != nil {
		logger.WithError(err).Fatal("Migrations failed")
	}

	// Wire up the decision engine
	repos := repository.NewRepositoryManager(dbManager.DB)
	cache := database.NewCache(dbManager.Redis, logger)
	locks := database.NewSessionLocks(dbManager.Redis, logger)

	aiClient := ai.NewClient(cfg, logger)
	contentIndex := index.NewPgVector(repos.Chunk, logger)
	orchestrator := retrieval.NewOrchestrator(aiClient, contentIndex, retrieval.Options{
		TopK:          cfg.Retrieval.TopK,
		MinRelevance:  cfg.Retrieval.MinRelevance,
		EmbedTimeout:  cfg.Retrieval.EmbedTimeout,
		SearchTimeout: cfg.Retrieval.SearchTimeout,
	}, logger)
	pipeline := governance.NewPipeline(logger)

	decisionService := services.NewDecisionService(repos, cache, locks, orchestrator, pipeline, aiClient, cfg, logger)
	historyService := services.NewHistoryService(repos, logger)

	ingestor := seeder.NewIngestor(repos.Chunk, aiClient, seeder.DefaultOptions(), logger)
	assistantService := services.NewAssistantService(repos, cache, ingestor, cfg.Governance.ConfidenceThreshold, logger)

	healthChecker := health.NewHealthChecker(dbManager, aiClient, logger)
	healthCtx, healthCancel := context.WithCancel(context.Background())
	defer healthCancel()
	go healthChecker.StartPeriodicChecks(healthCtx, 30*time.Second)

	chatHandler := handlers.NewChatHandler(decisionService, historyService, logger)
	assistantHandler := handlers.NewAssistantHandler(assistantService, logger)
	healthHandler := handlers.NewHealthHandler(healthChecker, logger)

	// HTTP server
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.SecurityHeaders())

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit)

	router.GET("/health", healthHandler.HandleLiveness)

	v1 := router.Group("/api/v1")
	v1.Use(rateLimiter.RateLimit())
	{
		v1.GET("/health", healthHandler.HandleHealth)

		v1.POST("/chat/query", chatHandler.HandleQuery)
		v1.GET("/chat/threads", chatHandler.HandleThreads)
		v1.GET("/chat/history", chatHandler.HandleHistory)

		v1.POST("/assistants", assistantHandler.HandleCreate)
		v1.GET("/assistants", assistantHandler.HandleList)
		v1.GET("/assistants/:id", assistantHandler.HandleGet)
		v1.DELETE("/assistants/:id", assistantHandler.HandleDelete)
		v1.POST("/assistants/:id/reingest", assistantHandler.HandleReingest)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	healthCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Forced shutdown")
	}

	logger.Info("Server stopped")
}
