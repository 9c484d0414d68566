package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/flakerslabs/sentinel/backend/internal/ai"
	"github.com/flakerslabs/sentinel/backend/internal/index"
	"github.com/flakerslabs/sentinel/backend/internal/models"
	"github.com/flakerslabs/sentinel/backend/internal/services"
	"github.com/flakerslabs/sentinel/backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type ChatHandler struct {
	decisionService *services.DecisionService
	historyService  *services.HistoryService
	logger          *logrus.Logger
}

func NewChatHandler(
	decisionService *services.DecisionService,
	historyService *services.HistoryService,
	logger *logrus.Logger,
) *ChatHandler {
	return &ChatHandler{
		decisionService: decisionService,
		historyService:  historyService,
		logger:          logger,
	}
}

// HandleQuery processes one chat message through the decision engine
func (h *ChatHandler) HandleQuery(c *gin.Context) {
	var req models.ChatQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Error("Invalid chat request")
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Message cannot be empty", nil)
		return
	}
	if len(req.Message) > 2000 {
		utils.ErrorResponse(c, http.StatusBadRequest, "Message too long (max 2000 characters)", nil)
		return
	}
	if req.SessionID != "" && !utils.ValidateSessionID(req.SessionID) {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid session ID", nil)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"assistant_id": req.AssistantID,
		"session_id":   req.SessionID,
		"ip_address":   c.ClientIP(),
	}).Info("Processing chat query")

	decision, err := h.decisionService.HandleQuery(c.Request.Context(), &req)
	if err != nil {
		h.respondQueryError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Query processed", models.ChatQueryResponse{
		Decision:         decision.Decision,
		Answer:           decision.Answer,
		Reason:           decision.Reason,
		Sources:          decision.Sources,
		RulesApplied:     decision.RulesApplied,
		SessionID:        decision.SessionID,
		ProcessingTimeMs: decision.ProcessingTimeMs,
	})
}

// respondQueryError maps decision errors onto HTTP statuses. Upstream
// failures are 503 so callers can retry; they are never disguised as
// governance refusals.
func (h *ChatHandler) respondQueryError(c *gin.Context, err error) {
	var (
		embErr *ai.EmbeddingError
		synErr *ai.SynthesisError
		idxErr *index.UnavailableError
		invErr *services.InvariantError
	)

	switch {
	case errors.Is(err, services.ErrAssistantNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, "Assistant not found", err)
	case errors.Is(err, services.ErrAssistantNotReady):
		utils.ErrorResponse(c, http.StatusConflict, "Assistant is not ready", err)
	case errors.As(err, &embErr), errors.As(err, &idxErr):
		h.logger.WithError(err).Error("Retrieval backend unavailable")
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Retrieval temporarily unavailable", err)
	case errors.As(err, &synErr):
		h.logger.WithError(err).Error("Synthesis backend unavailable")
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Answer synthesis temporarily unavailable", err)
	case errors.As(err, &invErr):
		h.logger.WithError(err).Error("Decision invariant violated")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Internal decision error", err)
	default:
		h.logger.WithError(err).Error("Chat query failed")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Query processing failed", err)
	}
}

// HandleThreads lists an assistant's conversation threads
func (h *ChatHandler) HandleThreads(c *gin.Context) {
	assistantID := c.Query("assistant_id")
	if assistantID == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "assistant_id is required", nil)
		return
	}

	threads, err := h.historyService.ListThreads(assistantID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list threads")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list threads", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Threads retrieved", threads)
}

// HandleHistory returns one session's decision history
func (h *ChatHandler) HandleHistory(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" || !utils.ValidateSessionID(sessionID) {
		utils.ErrorResponse(c, http.StatusBadRequest, "A valid session_id is required", nil)
		return
	}

	history, err := h.historyService.GetThread(sessionID)
	if err != nil {
		if errors.Is(err, services.ErrThreadNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "Thread not found", err)
			return
		}
		h.logger.WithError(err).Error("Failed to load history")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to load history", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "History retrieved", history)
}
