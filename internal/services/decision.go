package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flakerslabs/sentinel/backend/internal/config"
	"github.com/flakerslabs/sentinel/backend/internal/database"
	"github.com/flakerslabs/sentinel/backend/internal/governance"
	"github.com/flakerslabs/sentinel/backend/internal/models"
	"github.com/flakerslabs/sentinel/backend/internal/repository"
	"github.com/flakerslabs/sentinel/backend/pkg/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrAssistantNotFound = errors.New("assistant not found")
	ErrAssistantNotReady = errors.New("assistant is not ready")
)

const assistantCacheTTL = 5 * time.Minute

// Retriever produces ranked evidence for a query.
type Retriever interface {
	Retrieve(ctx context.Context, assistant *models.Assistant, queryText string) (models.Evidence, error)
}

// Synthesizer phrases a grounded answer from evidence.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, evidence models.Evidence, policyQuote bool) (string, error)
}

// DecisionService runs one chat query through retrieval, governance,
// synthesis, and the audit trail.
type DecisionService struct {
	repos       *repository.RepositoryManager
	cache       *database.Cache
	locks       *database.SessionLocks
	retriever   Retriever
	pipeline    *governance.Pipeline
	synthesizer Synthesizer
	composer    *Composer
	cfg         *config.Config
	logger      *logrus.Logger
}

func NewDecisionService(
	repos *repository.RepositoryManager,
	cache *database.Cache,
	locks *database.SessionLocks,
	retriever Retriever,
	pipeline *governance.Pipeline,
	synthesizer Synthesizer,
	cfg *config.Config,
	logger *logrus.Logger,
) *DecisionService {
	return &DecisionService{
		repos:       repos,
		cache:       cache,
		locks:       locks,
		retriever:   retriever,
		pipeline:    pipeline,
		synthesizer: synthesizer,
		composer:    NewComposer(),
		cfg:         cfg,
		logger:      logger,
	}
}

// HandleQuery processes one message synchronously and appends the resulting
// decision to the session's audit trail. Upstream failures propagate as typed
// errors; refusals are normal results.
func (s *DecisionService) HandleQuery(ctx context.Context, req *models.ChatQueryRequest) (*models.GovernanceDecision, error) {
	startedAt := time.Now()

	assistant, err := s.loadAssistant(ctx, req.AssistantID)
	if err != nil {
		return nil, err
	}
	if assistant.Status != models.StatusReady {
		return nil, fmt.Errorf("%w: status is %s", ErrAssistantNotReady, assistant.Status)
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = utils.NewSessionID()
	}

	query := models.Query{
		AssistantID: assistant.ID,
		TenantID:    assistant.TenantID,
		SessionID:   sessionID,
		Text:        req.Message,
	}

	evidence, err := s.retriever.Retrieve(ctx, assistant, query.Text)
	if err != nil {
		return nil, err
	}

	result := s.pipeline.Evaluate(governance.Config{
		TenantID:            assistant.TenantID,
		AllowedIntents:      assistant.AllowedIntents,
		ConfidenceThreshold: assistant.ConfidenceThreshold,
	}, evidence)

	var answer string
	if result.Answered() {
		synthCtx, cancel := context.WithTimeout(ctx, s.cfg.Retrieval.SynthesisTimeout)
		answer, err = s.synthesizer.Synthesize(synthCtx, query.Text, evidence, result.PolicyQuote)
		cancel()
		if err != nil {
			return nil, err
		}
	}

	decision, err := s.composer.Compose(query, result, evidence, answer, startedAt)
	if err != nil {
		return nil, err
	}

	if err := s.appendDecision(ctx, decision); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"assistant_id":       assistant.ID,
		"session_id":         sessionID,
		"decision":           decision.Decision,
		"reason":             decision.Reason,
		"rules_applied":      len(decision.RulesApplied),
		"processing_time_ms": decision.ProcessingTimeMs,
	}).Info("Query decided")

	return decision, nil
}

// loadAssistant reads through the config cache to the database.
func (s *DecisionService) loadAssistant(ctx context.Context, assistantID string) (*models.Assistant, error) {
	if cached, err := s.cache.GetCachedAssistant(ctx, assistantID); err == nil {
		return cached, nil
	}

	assistant, err := s.repos.Assistant.GetByID(assistantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssistantNotFound
		}
		return nil, fmt.Errorf("failed to load assistant: %w", err)
	}

	if err := s.cache.CacheAssistant(ctx, assistant, assistantCacheTTL); err != nil {
		s.logger.WithError(err).Warn("Failed to cache assistant config")
	}

	return assistant, nil
}

// appendDecision persists the decision and updates the thread under the
// per-session lock so concurrent appends to one session keep their order.
func (s *DecisionService) appendDecision(ctx context.Context, decision *models.GovernanceDecision) error {
	release, err := s.locks.Acquire(ctx, decision.SessionID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.repos.Decision.Create(decision); err != nil {
		return fmt.Errorf("failed to persist decision: %w", err)
	}

	now := time.Now()
	if _, err := s.repos.Thread.GetBySession(decision.SessionID); err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to load thread: %w", err)
		}
		return s.repos.Thread.Create(&models.ConversationThread{
			SessionID:      decision.SessionID,
			AssistantID:    decision.AssistantID,
			MessageCount:   1,
			LastActivityAt: now,
		})
	}

	return s.repos.Thread.Touch(decision.SessionID, now)
}
