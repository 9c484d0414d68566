package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/flakerslabs/sentinel/backend/internal/models"
	"github.com/flakerslabs/sentinel/backend/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var ErrThreadNotFound = errors.New("conversation thread not found")

const (
	defaultHistoryLimit = 100
	defaultThreadsLimit = 50
	previewMaxRunes     = 120
)

// HistoryService replays decision audit trails as conversation history.
type HistoryService struct {
	repos  *repository.RepositoryManager
	logger *logrus.Logger
}

func NewHistoryService(repos *repository.RepositoryManager, logger *logrus.Logger) *HistoryService {
	return &HistoryService{repos: repos, logger: logger}
}

// GetThread returns a session's decisions in chronological order.
func (s *HistoryService) GetThread(sessionID string) (*models.HistoryResponse, error) {
	thread, err := s.repos.Thread.GetBySession(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrThreadNotFound
		}
		return nil, fmt.Errorf("failed to load thread: %w", err)
	}

	decisions, err := s.repos.Decision.ListBySession(sessionID, defaultHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load decisions: %w", err)
	}

	messages := make([]models.HistoryEntry, 0, len(decisions))
	for _, d := range decisions {
		messages = append(messages, models.HistoryEntry{
			ID:               d.ID,
			QueryText:        d.QueryText,
			Decision:         d.Decision,
			Reason:           d.Reason,
			Answer:           d.Answer,
			Sources:          d.Sources,
			RulesApplied:     d.RulesApplied,
			ProcessingTimeMs: d.ProcessingTimeMs,
			CreatedAt:        d.CreatedAt.Format(time.RFC3339),
		})
	}

	return &models.HistoryResponse{
		SessionID:     sessionID,
		AssistantID:   thread.AssistantID,
		Messages:      messages,
		TotalMessages: len(messages),
	}, nil
}

// ListThreads returns an assistant's threads newest-activity first, each with
// a preview of its latest exchange.
func (s *HistoryService) ListThreads(assistantID string) (*models.ThreadsResponse, error) {
	threads, err := s.repos.Thread.ListByAssistant(assistantID, defaultThreadsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}

	summaries := make([]models.ThreadSummary, 0, len(threads))
	for _, thread := range threads {
		summary := models.ThreadSummary{
			SessionID:    thread.SessionID,
			MessageCount: thread.MessageCount,
			CreatedAt:    thread.CreatedAt.Format(time.RFC3339),
			LastActivity: thread.LastActivityAt.Format(time.RFC3339),
		}

		last, err := s.repos.Decision.LastBySession(thread.SessionID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				s.logger.WithError(err).WithField("session_id", thread.SessionID).
					Warn("Failed to load thread preview")
			}
		} else {
			summary.LastMessage = preview(last)
		}

		summaries = append(summaries, summary)
	}

	return &models.ThreadsResponse{
		Threads:      summaries,
		TotalThreads: len(summaries),
	}, nil
}

func preview(d *models.GovernanceDecision) string {
	text := d.Answer
	if d.Decision == models.DecisionRefuse {
		text = d.QueryText
	}

	runes := []rune(text)
	if len(runes) <= previewMaxRunes {
		return text
	}
	return string(runes[:previewMaxRunes]) + "..."
}
