package health

import (
	"context"
	"time"

	"github.com/flakerslabs/sentinel/backend/internal/database"
	"github.com/sirupsen/logrus"
)

// OpenAIPinger verifies the AI backend is reachable.
type OpenAIPinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker manages health checks for all backing services
type HealthChecker struct {
	dbManager *database.Manager
	cache     *database.Cache
	openai    OpenAIPinger
	logger    *logrus.Logger
	startedAt time.Time
}

func NewHealthChecker(dbManager *database.Manager, openai OpenAIPinger, logger *logrus.Logger) *HealthChecker {
	return &HealthChecker{
		dbManager: dbManager,
		cache:     database.NewCache(dbManager.Redis, logger),
		openai:    openai,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// ServiceHealth represents the health status of a service
type ServiceHealth struct {
	Name         string `json:"name"`
	Status       string `json:"status"`
	ResponseTime int    `json:"response_time_ms"`
	Error        string `json:"error,omitempty"`
	LastChecked  string `json:"last_checked"`
}

// OverallHealth represents the overall system health
type OverallHealth struct {
	Status   string          `json:"status"`
	Services []ServiceHealth `json:"services"`
	Uptime   string          `json:"uptime"`
}

func (h *HealthChecker) check(name string, probe func() error) ServiceHealth {
	start := time.Now()
	err := probe()
	responseTime := int(time.Since(start).Milliseconds())

	status := "healthy"
	errorMsg := ""
	if err != nil {
		status = "unhealthy"
		errorMsg = err.Error()
		h.logger.WithError(err).WithField("service", name).Error("Health check failed")
	}

	return ServiceHealth{
		Name:         name,
		Status:       status,
		ResponseTime: responseTime,
		Error:        errorMsg,
		LastChecked:  time.Now().Format(time.RFC3339),
	}
}

// CheckPostgreSQL checks PostgreSQL database health
func (h *HealthChecker) CheckPostgreSQL() ServiceHealth {
	return h.check("postgresql", h.dbManager.PingDatabase)
}

// CheckRedis checks Redis cache health
func (h *HealthChecker) CheckRedis() ServiceHealth {
	return h.check("redis", h.dbManager.PingRedis)
}

// CheckOpenAI checks the AI backend
func (h *HealthChecker) CheckOpenAI() ServiceHealth {
	return h.check("openai", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return h.openai.Ping(ctx)
	})
}

// CheckAll runs every probe and aggregates the overall status. The system is
// degraded, not down, when only the AI backend is failing.
func (h *HealthChecker) CheckAll() OverallHealth {
	services := []ServiceHealth{
		h.CheckPostgreSQL(),
		h.CheckRedis(),
		h.CheckOpenAI(),
	}

	status := "healthy"
	for _, svc := range services {
		if svc.Status != "unhealthy" {
			continue
		}
		if svc.Name == "openai" {
			if status == "healthy" {
				status = "degraded"
			}
		} else {
			status = "unhealthy"
		}
	}

	return OverallHealth{
		Status:   status,
		Services: services,
		Uptime:   time.Since(h.startedAt).Round(time.Second).String(),
	}
}

// StartPeriodicChecks runs the probes on an interval and caches the snapshot
// so the health endpoint stays cheap.
func (h *HealthChecker) StartPeriodicChecks(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.runAndCache(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.runAndCache(ctx)
		}
	}
}

func (h *HealthChecker) runAndCache(ctx context.Context) {
	overall := h.CheckAll()

	cacheCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.cache.CacheSystemHealth(cacheCtx, overall, 2*time.Minute); err != nil {
		h.logger.WithError(err).Warn("Failed to cache health snapshot")
	}
}

// CachedOverall returns the last cached snapshot, falling back to a live
// check on cache miss.
func (h *HealthChecker) CachedOverall(ctx context.Context) OverallHealth {
	var overall OverallHealth
	if err := h.cache.GetCachedSystemHealth(ctx, &overall); err == nil {
		return overall
	}
	return h.CheckAll()
}
