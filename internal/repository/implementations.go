package repository

import (
	"context"
	"time"

	"github.com/flakerslabs/sentinel/backend/internal/models"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// AssistantRepository manages assistant configuration rows
type AssistantRepository interface {
	Create(assistant *models.Assistant) error
	GetByID(id string) (*models.Assistant, error)
	List(tenantID string) ([]models.Assistant, error)
	UpdateStatus(id string, status models.AssistantStatus, message string) error
	UpdateIngestionResult(id string, status models.AssistantStatus, chunkCount int, intents []string) error
	Delete(id string) error
}

// ChunkMatch is one vector search hit with its cosine similarity
type ChunkMatch struct {
	ID          string
	AssistantID string
	TenantID    string
	SourceURL   string
	Title       string
	Text        string
	Intent      string
	Similarity  float64
	CreatedAt   time.Time
}

// ChunkRepository manages ingested content chunks and vector search
type ChunkRepository interface {
	CreateBatch(chunks []models.ContentChunk) error
	SearchSimilar(ctx context.Context, tenantID, assistantID string, embedding pgvector.Vector, limit int) ([]ChunkMatch, error)
	ExistsByHash(assistantID, contentHash string) (bool, error)
	DeleteByAssistant(assistantID string) error
	CountByAssistant(assistantID string) (int64, error)
}

// DecisionRepository is the append-only audit trail
type DecisionRepository interface {
	Create(decision *models.GovernanceDecision) error
	ListBySession(sessionID string, limit int) ([]models.GovernanceDecision, error)
	LastBySession(sessionID string) (*models.GovernanceDecision, error)
	DeleteByAssistant(assistantID string) error
}

// ThreadRepository manages conversation thread bookkeeping
type ThreadRepository interface {
	GetBySession(sessionID string) (*models.ConversationThread, error)
	Create(thread *models.ConversationThread) error
	Touch(sessionID string, at time.Time) error
	ListByAssistant(assistantID string, limit int) ([]models.ConversationThread, error)
	DeleteByAssistant(assistantID string) error
}

// AssistantRepositoryImpl implements AssistantRepository
type AssistantRepositoryImpl struct {
	db *gorm.DB
}

func NewAssistantRepository(db *gorm.DB) AssistantRepository {
	return &AssistantRepositoryImpl{db: db}
}

func (r *AssistantRepositoryImpl) Create(assistant *models.Assistant) error {
	return r.db.Create(assistant).Error
}

func (r *AssistantRepositoryImpl) GetByID(id string) (*models.Assistant, error) {
	var assistant models.Assistant
	err := r.db.Where("id = ?", id).First(&assistant).Error
	if err != nil {
		return nil, err
	}
	return &assistant, nil
}

func (r *AssistantRepositoryImpl) List(tenantID string) ([]models.Assistant, error) {
	var assistants []models.Assistant
	q := r.db.Order("created_at DESC")
	if tenantID != "" {
		q = q.Where("tenant_id = ?", tenantID)
	}
	err := q.Find(&assistants).Error
	return assistants, err
}

func (r *AssistantRepositoryImpl) UpdateStatus(id string, status models.AssistantStatus, message string) error {
	return r.db.Model(&models.Assistant{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         status,
			"status_message": message,
		}).Error
}

func (r *AssistantRepositoryImpl) UpdateIngestionResult(id string, status models.AssistantStatus, chunkCount int, intents []string) error {
	updates := map[string]interface{}{
		"status":               status,
		"total_chunks_indexed": chunkCount,
		"last_ingestion_at":    time.Now(),
	}
	if intents != nil {
		updates["allowed_intents"] = models.StringArray(intents)
	}
	return r.db.Model(&models.Assistant{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *AssistantRepositoryImpl) Delete(id string) error {
	return r.db.Delete(&models.Assistant{}, "id = ?", id).Error
}

// ChunkRepositoryImpl implements ChunkRepository
type ChunkRepositoryImpl struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) ChunkRepository {
	return &ChunkRepositoryImpl{db: db}
}

func (r *ChunkRepositoryImpl) CreateBatch(chunks []models.ContentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return r.db.CreateInBatches(chunks, 100).Error
}

// SearchSimilar runs a tenant-scoped nearest-neighbor query. The tenant filter
// is part of the SQL itself, never applied client-side after the fact.
func (r *ChunkRepositoryImpl) SearchSimilar(ctx context.Context, tenantID, assistantID string, embedding pgvector.Vector, limit int) ([]ChunkMatch, error) {
	var matches []ChunkMatch
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			id,
			assistant_id,
			tenant_id,
			source_url,
			title,
			text,
			intent,
			created_at,
			1 - (embedding <=> ?) AS similarity
		FROM content_chunks
		WHERE tenant_id = ? AND assistant_id = ?
		ORDER BY embedding <=> ?
		LIMIT ?
	`, embedding, tenantID, assistantID, embedding, limit).Scan(&matches).Error
	return matches, err
}

func (r *ChunkRepositoryImpl) ExistsByHash(assistantID, contentHash string) (bool, error) {
	var count int64
	err := r.db.Model(&models.ContentChunk{}).
		Where("assistant_id = ? AND content_hash = ?", assistantID, contentHash).
		Count(&count).Error
	return count > 0, err
}

func (r *ChunkRepositoryImpl) DeleteByAssistant(assistantID string) error {
	return r.db.Delete(&models.ContentChunk{}, "assistant_id = ?", assistantID).Error
}

func (r *ChunkRepositoryImpl) CountByAssistant(assistantID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.ContentChunk{}).
		Where("assistant_id = ?", assistantID).
		Count(&count).Error
	return count, err
}

// DecisionRepositoryImpl implements DecisionRepository
type DecisionRepositoryImpl struct {
	db *gorm.DB
}

func NewDecisionRepository(db *gorm.DB) DecisionRepository {
	return &DecisionRepositoryImpl{db: db}
}

func (r *DecisionRepositoryImpl) Create(decision *models.GovernanceDecision) error {
	return r.db.Create(decision).Error
}

func (r *DecisionRepositoryImpl) ListBySession(sessionID string, limit int) ([]models.GovernanceDecision, error) {
	var decisions []models.GovernanceDecision
	err := r.db.Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Limit(limit).
		Find(&decisions).Error
	return decisions, err
}

func (r *DecisionRepositoryImpl) LastBySession(sessionID string) (*models.GovernanceDecision, error) {
	var decision models.GovernanceDecision
	err := r.db.Where("session_id = ?", sessionID).
		Order("created_at DESC").
		First(&decision).Error
	if err != nil {
		return nil, err
	}
	return &decision, nil
}

func (r *DecisionRepositoryImpl) DeleteByAssistant(assistantID string) error {
	return r.db.Delete(&models.GovernanceDecision{}, "assistant_id = ?", assistantID).Error
}

// ThreadRepositoryImpl implements ThreadRepository
type ThreadRepositoryImpl struct {
	db *gorm.DB
}

func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &ThreadRepositoryImpl{db: db}
}

func (r *ThreadRepositoryImpl) GetBySession(sessionID string) (*models.ConversationThread, error) {
	var thread models.ConversationThread
	err := r.db.Where("session_id = ?", sessionID).First(&thread).Error
	if err != nil {
		return nil, err
	}
	return &thread, nil
}

func (r *ThreadRepositoryImpl) Create(thread *models.ConversationThread) error {
	return r.db.Create(thread).Error
}

func (r *ThreadRepositoryImpl) Touch(sessionID string, at time.Time) error {
	return r.db.Model(&models.ConversationThread{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"last_activity_at": at,
			"message_count":    gorm.Expr("message_count + 1"),
		}).Error
}

func (r *ThreadRepositoryImpl) ListByAssistant(assistantID string, limit int) ([]models.ConversationThread, error) {
	var threads []models.ConversationThread
	err := r.db.Where("assistant_id = ?", assistantID).
		Order("last_activity_at DESC").
		Limit(limit).
		Find(&threads).Error
	return threads, err
}

func (r *ThreadRepositoryImpl) DeleteByAssistant(assistantID string) error {
	return r.db.Delete(&models.ConversationThread{}, "assistant_id = ?", assistantID).Error
}

// RepositoryManager bundles all repositories
type RepositoryManager struct {
	Assistant AssistantRepository
	Chunk     ChunkRepository
	Decision  DecisionRepository
	Thread    ThreadRepository

	db *gorm.DB
}

func NewRepositoryManager(db *gorm.DB) *RepositoryManager {
	return &RepositoryManager{
		Assistant: NewAssistantRepository(db),
		Chunk:     NewChunkRepository(db),
		Decision:  NewDecisionRepository(db),
		Thread:    NewThreadRepository(db),
		db:        db,
	}
}

// DeleteAssistantCascade removes an assistant and everything it owns in one
// transaction: chunks, decisions, threads, then the assistant row itself.
func (m *RepositoryManager) DeleteAssistantCascade(assistantID string) error {
	return m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.ContentChunk{}, "assistant_id = ?", assistantID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.GovernanceDecision{}, "assistant_id = ?", assistantID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.ConversationThread{}, "assistant_id = ?", assistantID).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Assistant{}, "id = ?", assistantID).Error
	})
}
