package models

// GORM models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// AssistantTemplate selects the default governance configuration at creation time.
type AssistantTemplate string

const (
	TemplateSupport   AssistantTemplate = "support"
	TemplateCustomer  AssistantTemplate = "customer"
	TemplateSales     AssistantTemplate = "sales"
	TemplateEcommerce AssistantTemplate = "ecommerce"
)

// AssistantStatus tracks the ingestion lifecycle.
type AssistantStatus string

const (
	StatusCreating  AssistantStatus = "creating"
	StatusIngesting AssistantStatus = "ingesting"
	StatusReady     AssistantStatus = "ready"
	StatusError     AssistantStatus = "error"
)

// DecisionType is the governance verdict.
type DecisionType string

const (
	DecisionAnswer DecisionType = "ANSWER"
	DecisionRefuse DecisionType = "REFUSE"
)

// RefusalReason explains a REFUSE decision.
type RefusalReason string

const (
	ReasonOutOfScope             RefusalReason = "OUT_OF_SCOPE"
	ReasonNoContext              RefusalReason = "NO_CONTEXT"
	ReasonPolicyViolation        RefusalReason = "POLICY_VIOLATION"
	ReasonCrossTenant            RefusalReason = "CROSS_TENANT"
	ReasonInsufficientConfidence RefusalReason = "INSUFFICIENT_CONFIDENCE"
)

// Content intent labels assigned during ingestion.
const (
	IntentDocumentation = "documentation"
	IntentSupport       = "support"
	IntentProductInfo   = "product_info"
	IntentPricing       = "pricing"
	IntentPolicy        = "policy"
	IntentLegal         = "legal"
	IntentMarketing     = "marketing"
	IntentBlog          = "blog"
	IntentFAQ           = "faq"
	IntentTutorial      = "tutorial"
	IntentUnknown       = "unknown"
)

// StringArray for PostgreSQL array support
type StringArray []string

func (s StringArray) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "{}", nil
	}
	return fmt.Sprintf("{%s}", strings.Join(s, ",")), nil
}

func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = StringArray{}
		return nil
	}

	switch v := value.(type) {
	case string:
		v = strings.Trim(v, "{}")
		if v == "" {
			*s = StringArray{}
			return nil
		}
		*s = StringArray(strings.Split(v, ","))
	case []byte:
		return s.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into StringArray", value)
	}
	return nil
}

// Source identifies one cited evidence origin.
type Source struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Intent string `json:"intent"`
}

// SourceList stores cited sources as a JSONB column.
type SourceList []Source

func (s SourceList) Value() (driver.Value, error) {
	if s == nil {
		s = SourceList{}
	}
	return json.Marshal(s)
}

func (s *SourceList) Scan(value interface{}) error {
	if value == nil {
		*s = SourceList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("cannot scan %T into SourceList", value)
	}
}

// RuleList stores the ordered applied-rule names as a JSONB column.
type RuleList []string

func (r RuleList) Value() (driver.Value, error) {
	if r == nil {
		r = RuleList{}
	}
	return json.Marshal(r)
}

func (r *RuleList) Scan(value interface{}) error {
	if value == nil {
		*r = RuleList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	default:
		return fmt.Errorf("cannot scan %T into RuleList", value)
	}
}

// Assistant represents a governance-configured tenant assistant.
type Assistant struct {
	ID            string            `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID      string            `json:"tenant_id" gorm:"type:uuid;not null;index"`
	Name          string            `json:"name" gorm:"not null"`
	SiteURL       string            `json:"site_url" gorm:"not null"`
	Template      AssistantTemplate `json:"template" gorm:"not null"`
	Status        AssistantStatus   `json:"status" gorm:"default:'creating'"`
	StatusMessage string            `json:"status_message"`

	// Governance configuration. AllowedIntents is frozen once the assistant
	// reaches ready; re-ingestion is the only path that may rewrite it.
	AllowedIntents      StringArray `json:"allowed_intents" gorm:"type:text[]"`
	ConfidenceThreshold float64     `json:"confidence_threshold" gorm:"default:0.6"`

	TotalChunksIndexed int        `json:"total_chunks_indexed" gorm:"default:0"`
	LastIngestionAt    *time.Time `json:"last_ingestion_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContentChunk is a unit of ingested knowledge owned by exactly one assistant.
type ContentChunk struct {
	ID          string          `json:"id" gorm:"type:uuid;primaryKey"`
	AssistantID string          `json:"assistant_id" gorm:"type:uuid;not null;index"`
	TenantID    string          `json:"tenant_id" gorm:"type:uuid;not null;index"`
	SourceURL   string          `json:"source_url" gorm:"not null"`
	Title       string          `json:"title"`
	Text        string          `json:"text" gorm:"type:text;not null"`
	Intent      string          `json:"intent" gorm:"not null;index"`
	ContentHash string          `json:"content_hash" gorm:"index"`
	ChunkIndex  int             `json:"chunk_index" gorm:"default:0"`
	Embedding   pgvector.Vector `json:"-" gorm:"type:vector(1536)"`
	CreatedAt   time.Time       `json:"created_at"`
}

// GovernanceDecision is the append-only audit record of one query decision.
// Rows are write-once; history reads never mutate them.
type GovernanceDecision struct {
	ID          string `json:"id" gorm:"type:uuid;primaryKey"`
	AssistantID string `json:"assistant_id" gorm:"type:uuid;not null;index"`
	SessionID   string `json:"session_id" gorm:"type:uuid;not null;index:idx_decisions_session"`

	QueryText string        `json:"query_text" gorm:"type:text;not null"`
	Decision  DecisionType  `json:"decision" gorm:"not null"`
	Reason    RefusalReason `json:"reason,omitempty"`
	Answer    string        `json:"answer,omitempty" gorm:"type:text"`

	Sources      SourceList `json:"sources" gorm:"type:jsonb"`
	RulesApplied RuleList   `json:"rules_applied" gorm:"type:jsonb"`
	PolicyQuote  bool       `json:"policy_quote" gorm:"default:false"`

	ProcessingTimeMs int       `json:"processing_time_ms"`
	CreatedAt        time.Time `json:"created_at" gorm:"index:idx_decisions_session"`
}

// ConversationThread groups decisions by session for history replay.
type ConversationThread struct {
	SessionID      string    `json:"session_id" gorm:"type:uuid;primaryKey"`
	AssistantID    string    `json:"assistant_id" gorm:"type:uuid;not null;index"`
	MessageCount   int       `json:"message_count" gorm:"default:0"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// TableName methods for custom table names
func (Assistant) TableName() string          { return "assistants" }
func (ContentChunk) TableName() string       { return "content_chunks" }
func (GovernanceDecision) TableName() string { return "governance_decisions" }
func (ConversationThread) TableName() string { return "conversation_threads" }

// Model validation methods
func (a *Assistant) Validate() error {
	if a.TenantID == "" {
		return fmt.Errorf("tenant ID is required")
	}
	if a.Name == "" {
		return fmt.Errorf("assistant name is required")
	}
	validTemplates := map[AssistantTemplate]bool{
		TemplateSupport:   true,
		TemplateCustomer:  true,
		TemplateSales:     true,
		TemplateEcommerce: true,
	}
	if !validTemplates[a.Template] {
		return fmt.Errorf("invalid template: %s", a.Template)
	}
	if a.ConfidenceThreshold < 0 || a.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in [0,1], got %f", a.ConfidenceThreshold)
	}
	return nil
}

func (d *GovernanceDecision) Validate() error {
	if d.AssistantID == "" || d.SessionID == "" {
		return fmt.Errorf("assistant ID and session ID are required")
	}
	switch d.Decision {
	case DecisionAnswer:
		if d.Answer == "" {
			return fmt.Errorf("ANSWER decision requires a non-empty answer")
		}
		if len(d.Sources) == 0 {
			return fmt.Errorf("ANSWER decision requires at least one source")
		}
	case DecisionRefuse:
		if d.Reason == "" {
			return fmt.Errorf("REFUSE decision requires a reason")
		}
	default:
		return fmt.Errorf("invalid decision type: %s", d.Decision)
	}
	return nil
}

func (c *ContentChunk) Validate() error {
	if c.AssistantID == "" || c.TenantID == "" {
		return fmt.Errorf("assistant ID and tenant ID are required")
	}
	if c.SourceURL == "" {
		return fmt.Errorf("source URL is required")
	}
	if strings.TrimSpace(c.Text) == "" {
		return fmt.Errorf("chunk text is required")
	}
	return nil
}

// GORM hooks
func (a *Assistant) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return a.Validate()
}

func (c *ContentChunk) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return c.Validate()
}

func (d *GovernanceDecision) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return d.Validate()
}

// Audit rows are write-once.
func (d *GovernanceDecision) BeforeUpdate(tx *gorm.DB) error {
	return fmt.Errorf("governance decisions are append-only")
}
