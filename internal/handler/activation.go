package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/seseseee/discourse-insight/internal/activation"
)

type ActivationHandler interface {
	GetActivation(c *gin.Context)
	GetActivationSeries(c *gin.Context)
}

type activationHandler struct {
	service *activation.Service
	logger  *zap.Logger
}

func NewActivationHandler(service *activation.Service, logger *zap.Logger) ActivationHandler {
	return &activationHandler{service: service, logger: logger}
}

func parseWindow(c *gin.Context) (serverID string, channelID *string, from, to time.Time, ok bool) {
	serverID = c.Query("server_id")
	if serverID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "server_id is required"})
		return "", nil, time.Time{}, time.Time{}, false
	}

	if ch := c.Query("channel_id"); ch != "" {
		channelID = &ch
	}

	to = time.Now()
	from = to.Add(-24 * time.Hour)

	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return "", nil, time.Time{}, time.Time{}, false
		}
		from = t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
			return "", nil, time.Time{}, time.Time{}, false
		}
		to = t
	}

	if !to.After(from) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to must be after from"})
		return "", nil, time.Time{}, time.Time{}, false
	}

	return serverID, channelID, from, to, true
}

// GetActivation handles GET /api/activation
func (h *activationHandler) GetActivation(c *gin.Context) {
	serverID, channelID, from, to, ok := parseWindow(c)
	if !ok {
		return
	}

	point, err := h.service.Compute(c.Request.Context(), serverID, channelID, from, to)
	if err != nil {
		h.logger.Error("Failed to compute activation",
			zap.String("server_id", serverID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute activation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"activation": point})
}

// GetActivationSeries handles GET /api/activation/series
func (h *activationHandler) GetActivationSeries(c *gin.Context) {
	serverID, channelID, from, to, ok := parseWindow(c)
	if !ok {
		return
	}

	bucket := time.Hour
	if raw := c.Query("bucket_minutes"); raw != "" {
		d, err := time.ParseDuration(raw + "m")
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bucket_minutes must be a positive integer"})
			return
		}
		bucket = d
	}

	series, err := h.service.Series(c.Request.Context(), serverID, channelID, from, to, bucket)
	if err != nil {
		h.logger.Error("Failed to compute activation series",
			zap.String("server_id", serverID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute activation series"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"series": series})
}
