package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flakerslabs/sentinel/backend/internal/database"
	"github.com/flakerslabs/sentinel/backend/internal/governance"
	"github.com/flakerslabs/sentinel/backend/internal/models"
	"github.com/flakerslabs/sentinel/backend/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// templateIntents are the default allowed-intent sets per template. They seed
// the governance configuration at creation; re-ingestion may override them.
var templateIntents = map[models.AssistantTemplate][]string{
	models.TemplateSupport:   {models.IntentSupport, models.IntentFAQ, models.IntentDocumentation, models.IntentTutorial},
	models.TemplateCustomer:  {models.IntentSupport, models.IntentFAQ, models.IntentPolicy, models.IntentProductInfo},
	models.TemplateSales:     {models.IntentProductInfo, models.IntentPricing, models.IntentMarketing},
	models.TemplateEcommerce: {models.IntentProductInfo, models.IntentPricing, models.IntentPolicy, models.IntentFAQ},
}

// DefaultIntentsFor returns the template's default allowed intents.
func DefaultIntentsFor(template models.AssistantTemplate) []string {
	intents := templateIntents[template]
	out := make([]string, len(intents))
	copy(out, intents)
	return out
}

// Ingestor crawls an assistant's site and indexes its content.
type Ingestor interface {
	Ingest(ctx context.Context, assistant *models.Assistant) (int, error)
}

// AssistantService manages assistant lifecycle: creation, ingestion,
// re-ingestion, deletion.
type AssistantService struct {
	repos               *repository.RepositoryManager
	cache               *database.Cache
	ingestor            Ingestor
	confidenceThreshold float64
	logger              *logrus.Logger
}

func NewAssistantService(repos *repository.RepositoryManager, cache *database.Cache, ingestor Ingestor, confidenceThreshold float64, logger *logrus.Logger) *AssistantService {
	if confidenceThreshold <= 0 {
		confidenceThreshold = governance.DefaultConfidenceThreshold
	}
	return &AssistantService{
		repos:               repos,
		cache:               cache,
		ingestor:            ingestor,
		confidenceThreshold: confidenceThreshold,
		logger:              logger,
	}
}

// Create registers a new assistant and starts ingestion in the background.
// The assistant answers nothing until ingestion reaches ready.
func (s *AssistantService) Create(ctx context.Context, req *models.CreateAssistantRequest) (*models.Assistant, error) {
	assistant := &models.Assistant{
		TenantID:            req.TenantID,
		Name:                req.Name,
		SiteURL:             req.SiteURL,
		Template:            req.Template,
		Status:              models.StatusCreating,
		AllowedIntents:      models.StringArray(DefaultIntentsFor(req.Template)),
		ConfidenceThreshold: s.confidenceThreshold,
	}

	if err := s.repos.Assistant.Create(assistant); err != nil {
		return nil, fmt.Errorf("failed to create assistant: %w", err)
	}

	go s.runIngestion(assistant, nil)

	return assistant, nil
}

func (s *AssistantService) Get(assistantID string) (*models.Assistant, error) {
	assistant, err := s.repos.Assistant.GetByID(assistantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssistantNotFound
		}
		return nil, err
	}
	return assistant, nil
}

func (s *AssistantService) List(tenantID string) ([]models.Assistant, error) {
	return s.repos.Assistant.List(tenantID)
}

// Reingest wipes the assistant's index and rebuilds it. This is the only path
// allowed to rewrite allowed_intents after creation.
func (s *AssistantService) Reingest(ctx context.Context, assistantID string, allowedIntents []string) (*models.Assistant, error) {
	assistant, err := s.Get(assistantID)
	if err != nil {
		return nil, err
	}
	if assistant.Status == models.StatusIngesting {
		return nil, fmt.Errorf("%w: ingestion already in progress", ErrAssistantNotReady)
	}

	if err := s.repos.Chunk.DeleteByAssistant(assistantID); err != nil {
		return nil, fmt.Errorf("failed to clear index: %w", err)
	}
	if err := s.cache.InvalidateAssistant(ctx, assistantID); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate assistant cache")
	}

	go s.runIngestion(assistant, allowedIntents)

	return assistant, nil
}

// Delete removes the assistant and everything it owns.
func (s *AssistantService) Delete(ctx context.Context, assistantID string) error {
	if _, err := s.Get(assistantID); err != nil {
		return err
	}

	if err := s.repos.DeleteAssistantCascade(assistantID); err != nil {
		return fmt.Errorf("failed to delete assistant: %w", err)
	}
	if err := s.cache.InvalidateAssistant(ctx, assistantID); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate assistant cache")
	}
	return nil
}

// runIngestion drives the crawl in the background and records the resulting
// status transition. newIntents, when non-nil, replaces allowed_intents on
// success.
func (s *AssistantService) runIngestion(assistant *models.Assistant, newIntents []string) {
	log := s.logger.WithFields(logrus.Fields{
		"assistant_id": assistant.ID,
		"site_url":     assistant.SiteURL,
	})

	if err := s.repos.Assistant.UpdateStatus(assistant.ID, models.StatusIngesting, "crawling site content"); err != nil {
		log.WithError(err).Error("Failed to mark assistant as ingesting")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	chunkCount, err := s.ingestor.Ingest(ctx, assistant)
	if err != nil {
		log.WithError(err).Error("Ingestion failed")
		if uerr := s.repos.Assistant.UpdateStatus(assistant.ID, models.StatusError, err.Error()); uerr != nil {
			log.WithError(uerr).Error("Failed to record ingestion failure")
		}
		return
	}

	if err := s.repos.Assistant.UpdateIngestionResult(assistant.ID, models.StatusReady, chunkCount, newIntents); err != nil {
		log.WithError(err).Error("Failed to record ingestion result")
		return
	}

	invalidateCtx, invalidateCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer invalidateCancel()
	if err := s.cache.InvalidateAssistant(invalidateCtx, assistant.ID); err != nil {
		log.WithError(err).Warn("Failed to invalidate assistant cache")
	}

	log.WithField("chunks", chunkCount).Info("Ingestion completed")
}
