package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/seseseee/discourse-insight/internal/models"
	"github.com/seseseee/discourse-insight/internal/repository"
)

type AnalyticsHandler interface {
	GetDashboard(c *gin.Context)
}

type analyticsHandler struct {
	messageRepo repository.MessageRepository
	recordRepo  repository.LabelRecordRepository
	triggerRepo repository.TriggerRepository
	logger      *zap.Logger
}

func NewAnalyticsHandler(
	messageRepo repository.MessageRepository,
	recordRepo repository.LabelRecordRepository,
	triggerRepo repository.TriggerRepository,
	logger *zap.Logger,
) AnalyticsHandler {
	return &analyticsHandler{
		messageRepo: messageRepo,
		recordRepo:  recordRepo,
		triggerRepo: triggerRepo,
		logger:      logger,
	}
}

// DashboardStats summarizes one server's classification activity.
type DashboardStats struct {
	TotalMessages     int                     `json:"total_messages"`
	Messages24h       int                     `json:"messages_24h"`
	LabelDistribution map[models.Label]int    `json:"label_distribution"`
	LabelNames        map[models.Label]string `json:"label_names"`
	TopTriggers       []*models.Trigger       `json:"top_triggers"`
}

// GetDashboard handles GET /api/analytics/dashboard
func (h *analyticsHandler) GetDashboard(c *gin.Context) {
	serverID := c.Query("server_id")
	if serverID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "server_id is required"})
		return
	}

	ctx := c.Request.Context()

	total, err := h.messageRepo.CountMessages(ctx, serverID, time.Time{})
	if err != nil {
		h.logger.Error("Failed to count messages for dashboard", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve dashboard data"})
		return
	}

	recent, err := h.messageRepo.CountMessages(ctx, serverID, time.Now().Add(-24*time.Hour))
	if err != nil {
		h.logger.Error("Failed to count recent messages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve dashboard data"})
		return
	}

	distribution, err := h.recordRepo.CountByLabel(ctx, serverID, time.Time{})
	if err != nil {
		h.logger.Error("Failed to count labels", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve dashboard data"})
		return
	}

	topTriggers, err := h.triggerRepo.TopTriggers(ctx, serverID, 10)
	if err != nil {
		h.logger.Error("Failed to list top triggers", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve dashboard data"})
		return
	}

	names := make(map[models.Label]string, len(models.AllLabels))
	for _, label := range models.AllLabels {
		names[label] = label.Name()
	}

	c.JSON(http.StatusOK, gin.H{"dashboard": DashboardStats{
		TotalMessages:     total,
		Messages24h:       recent,
		LabelDistribution: distribution,
		LabelNames:        names,
		TopTriggers:       topTriggers,
	}})
}
