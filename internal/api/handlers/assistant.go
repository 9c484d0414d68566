package handlers

import (
	"errors"
	"net/http"

	"github.com/flakerslabs/sentinel/backend/internal/models"
	"github.com/flakerslabs/sentinel/backend/internal/services"
	"github.com/flakerslabs/sentinel/backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AssistantHandler struct {
	assistantService *services.AssistantService
	logger           *logrus.Logger
}

func NewAssistantHandler(assistantService *services.AssistantService, logger *logrus.Logger) *AssistantHandler {
	return &AssistantHandler{
		assistantService: assistantService,
		logger:           logger,
	}
}

// HandleCreate registers a new assistant and kicks off ingestion
func (h *AssistantHandler) HandleCreate(c *gin.Context) {
	var req models.CreateAssistantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	assistant, err := h.assistantService.Create(c.Request.Context(), &req)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create assistant")
		utils.ErrorResponse(c, http.StatusBadRequest, "Failed to create assistant", err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"assistant_id": assistant.ID,
		"tenant_id":    assistant.TenantID,
		"template":     assistant.Template,
	}).Info("Assistant created")

	utils.SuccessResponse(c, http.StatusCreated, "Assistant created", assistant)
}

// HandleList lists assistants, optionally filtered by tenant
func (h *AssistantHandler) HandleList(c *gin.Context) {
	assistants, err := h.assistantService.List(c.Query("tenant_id"))
	if err != nil {
		h.logger.WithError(err).Error("Failed to list assistants")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list assistants", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Assistants retrieved", assistants)
}

// HandleGet returns one assistant by ID
func (h *AssistantHandler) HandleGet(c *gin.Context) {
	assistant, err := h.assistantService.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrAssistantNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "Assistant not found", err)
			return
		}
		h.logger.WithError(err).Error("Failed to load assistant")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to load assistant", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Assistant retrieved", assistant)
}

// HandleDelete removes an assistant and all of its data
func (h *AssistantHandler) HandleDelete(c *gin.Context) {
	id := c.Param("id")

	if err := h.assistantService.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrAssistantNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "Assistant not found", err)
			return
		}
		h.logger.WithError(err).Error("Failed to delete assistant")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to delete assistant", err)
		return
	}

	h.logger.WithField("assistant_id", id).Info("Assistant deleted")
	utils.SuccessResponse(c, http.StatusOK, "Assistant deleted", nil)
}

// HandleReingest rebuilds an assistant's content index
func (h *AssistantHandler) HandleReingest(c *gin.Context) {
	var req models.ReingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	assistant, err := h.assistantService.Reingest(c.Request.Context(), c.Param("id"), req.AllowedIntents)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAssistantNotFound):
			utils.ErrorResponse(c, http.StatusNotFound, "Assistant not found", err)
		case errors.Is(err, services.ErrAssistantNotReady):
			utils.ErrorResponse(c, http.StatusConflict, "Ingestion already in progress", err)
		default:
			h.logger.WithError(err).Error("Failed to start re-ingestion")
			utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to start re-ingestion", err)
		}
		return
	}

	utils.SuccessResponse(c, http.StatusAccepted, "Re-ingestion started", assistant)
}
