package handlers

import (
	"net/http"
	"time"

	"github.com/flakerslabs/sentinel/backend/internal/health"
	"github.com/flakerslabs/sentinel/backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type HealthHandler struct {
	checker *health.HealthChecker
	logger  *logrus.Logger
}

func NewHealthHandler(checker *health.HealthChecker, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		checker: checker,
		logger:  logger,
	}
}

// HandleHealth returns the cached system health snapshot
func (h *HealthHandler) HandleHealth(c *gin.Context) {
	overall := h.checker.CachedOverall(c.Request.Context())

	code := http.StatusOK
	if overall.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}

	utils.SuccessResponse(c, code, "Health status", overall)
}

// HandleLiveness is the bare process liveness probe
func (h *HealthHandler) HandleLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   "sentinel",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
