package models

type ChatQueryRequest struct {
	AssistantID string `json:"assistant_id" binding:"required"`
	SessionID   string `json:"session_id"`
	Message     string `json:"message" binding:"required"`
}

type ChatQueryResponse struct {
	Decision         DecisionType  `json:"decision"`
	Answer           string        `json:"answer,omitempty"`
	Reason           RefusalReason `json:"reason,omitempty"`
	Sources          SourceList    `json:"sources"`
	RulesApplied     RuleList      `json:"rules_applied"`
	SessionID        string        `json:"session_id"`
	ProcessingTimeMs int           `json:"processing_time_ms"`
}

type CreateAssistantRequest struct {
	TenantID string            `json:"tenant_id" binding:"required"`
	Name     string            `json:"name" binding:"required"`
	SiteURL  string            `json:"site_url" binding:"required"`
	Template AssistantTemplate `json:"template" binding:"required"`
}

type ReingestRequest struct {
	AllowedIntents []string `json:"allowed_intents"`
}

type ThreadSummary struct {
	SessionID    string `json:"session_id"`
	LastMessage  string `json:"last_message"`
	MessageCount int    `json:"message_count"`
	CreatedAt    string `json:"created_at"`
	LastActivity string `json:"last_activity"`
}

type ThreadsResponse struct {
	Threads      []ThreadSummary `json:"threads"`
	TotalThreads int             `json:"total_threads"`
}

type HistoryEntry struct {
	ID               string        `json:"id"`
	QueryText        string        `json:"query_text"`
	Decision         DecisionType  `json:"decision"`
	Reason           RefusalReason `json:"reason,omitempty"`
	Answer           string        `json:"answer,omitempty"`
	Sources          SourceList    `json:"sources"`
	RulesApplied     RuleList      `json:"rules_applied"`
	ProcessingTimeMs int           `json:"processing_time_ms"`
	CreatedAt        string        `json:"created_at"`
}

type HistoryResponse struct {
	SessionID     string         `json:"session_id"`
	AssistantID   string         `json:"assistant_id"`
	Messages      []HistoryEntry `json:"messages"`
	TotalMessages int            `json:"total_messages"`
}
