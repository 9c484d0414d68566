package services

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/flakerslabs/sentinel/backend/internal/governance"
	"github.com/flakerslabs/sentinel/backend/internal/models"
	"github.com/flakerslabs/sentinel/backend/internal/repository"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAssistantRepo records creations and refuses status updates so the
// background ingestion goroutine stops before touching other collaborators.
type stubAssistantRepo struct {
	created *models.Assistant
}

func (s *stubAssistantRepo) Create(assistant *models.Assistant) error {
	s.created = assistant
	return nil
}

func (s *stubAssistantRepo) GetByID(id string) (*models.Assistant, error) {
	return nil, errors.New("not implemented")
}

func (s *stubAssistantRepo) List(tenantID string) ([]models.Assistant, error) {
	return nil, nil
}

func (s *stubAssistantRepo) UpdateStatus(id string, status models.AssistantStatus, message string) error {
	return errors.New("status updates disabled")
}

func (s *stubAssistantRepo) UpdateIngestionResult(id string, status models.AssistantStatus, chunkCount int, intents []string) error {
	return errors.New("status updates disabled")
}

func (s *stubAssistantRepo) Delete(id string) error { return nil }

func newAssistantServiceForTest(repo *stubAssistantRepo, threshold float64) *AssistantService {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	repos := &repository.RepositoryManager{Assistant: repo}
	return NewAssistantService(repos, nil, nil, threshold, logger)
}

func TestCreateAppliesConfiguredConfidenceThreshold(t *testing.T) {
	repo := &stubAssistantRepo{}
	svc := newAssistantServiceForTest(repo, 0.75)

	assistant, err := svc.Create(context.Background(), &models.CreateAssistantRequest{
		TenantID: "tenant-1",
		Name:     "Acme Helper",
		SiteURL:  "https://acme.test",
		Template: models.TemplateSupport,
	})
	require.NoError(t, err)

	assert.Equal(t, 0.75, assistant.ConfidenceThreshold)
	require.NotNil(t, repo.created)
	assert.Equal(t, 0.75, repo.created.ConfidenceThreshold)
}

func TestCreateFallsBackToDefaultThreshold(t *testing.T) {
	repo := &stubAssistantRepo{}
	svc := newAssistantServiceForTest(repo, 0)

	assistant, err := svc.Create(context.Background(), &models.CreateAssistantRequest{
		TenantID: "tenant-1",
		Name:     "Acme Helper",
		SiteURL:  "https://acme.test",
		Template: models.TemplateSales,
	})
	require.NoError(t, err)

	assert.Equal(t, governance.DefaultConfidenceThreshold, assistant.ConfidenceThreshold)
}

func TestCreateSeedsTemplateDefaultIntents(t *testing.T) {
	repo := &stubAssistantRepo{}
	svc := newAssistantServiceForTest(repo, 0.6)

	assistant, err := svc.Create(context.Background(), &models.CreateAssistantRequest{
		TenantID: "tenant-1",
		Name:     "Acme Sales",
		SiteURL:  "https://acme.test",
		Template: models.TemplateSales,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StringArray{
		models.IntentProductInfo, models.IntentPricing, models.IntentMarketing,
	}, assistant.AllowedIntents)
	assert.Equal(t, models.StatusCreating, assistant.Status)
}

func TestDefaultIntentsForReturnsCopies(t *testing.T) {
	first := DefaultIntentsFor(models.TemplateSupport)
	first[0] = "mutated"

	second := DefaultIntentsFor(models.TemplateSupport)
	assert.Equal(t, models.IntentSupport, second[0])
}
