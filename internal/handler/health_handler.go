package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/llm"
	apperrors "github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/pkg/errors"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/service"
)

// HealthChecker - диагностика хранилища и кеша
type HealthChecker interface {
	CheckDatabase(ctx context.Context) error
	CheckCache(ctx context.Context) error
	Stats(ctx context.Context) (*service.Stats, error)
}

// HealthHandler обслуживает /, /health и /stats
type HealthHandler struct {
	checker  HealthChecker
	llm      llm.Client
	probeLLM bool
	logger   *zap.Logger
}

// NewHealthHandler создает обработчик диагностики. Если probeLLM, /health
// делает пробный запрос к модели; иначе сообщает только о наличии клиента.
func NewHealthHandler(checker HealthChecker, client llm.Client, probeLLM bool, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{checker: checker, llm: client, probeLLM: probeLLM, logger: logger}
}

// Root - проверка, что сервис запущен
// GET /
func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "AI Wiki Quiz Generator API", "status": "running"})
}

// Health проверяет базу, кеш и модель
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	now := time.Now().UTC()
	if err := h.checker.CheckDatabase(ctx); err != nil {
		h.logger.Warn("health: database unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     err.Error(),
			"timestamp": now,
		})
		return
	}

	cacheStatus := "connected"
	if err := h.checker.CheckCache(ctx); err != nil {
		h.logger.Warn("health: cache unavailable", zap.Error(err))
		cacheStatus = "unavailable"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"database":  "connected",
		"cache":     cacheStatus,
		"llm":       h.llmStatus(ctx),
		"timestamp": now,
	})
}

func (h *HealthHandler) llmStatus(ctx context.Context) string {
	if h.llm == nil {
		return "api_key_needed"
	}
	if !h.probeLLM {
		return "configured"
	}
	if err := llm.Ping(ctx, h.llm); err != nil {
		h.logger.Warn("health: llm probe failed", zap.Error(err))
		return "api_key_needed"
	}
	return "ready"
}

// Stats возвращает количество сохранённых викторин
// GET /stats
func (h *HealthHandler) Stats(c *gin.Context) {
	stats, err := h.checker.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("stats failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get stats", "error_type": apperrors.KindName(err)})
		return
	}
	c.JSON(http.StatusOK, stats)
}
