package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/seseseee/discourse-insight/internal/classifier"
	"github.com/seseseee/discourse-insight/internal/repository"
)

type ClassifyHandler interface {
	ClassifyText(c *gin.Context)
	GetMessageLabel(c *gin.Context)
}

type classifyHandler struct {
	cascade    *classifier.Cascade
	recordRepo repository.LabelRecordRepository
	logger     *zap.Logger
}

func NewClassifyHandler(cascade *classifier.Cascade, recordRepo repository.LabelRecordRepository, logger *zap.Logger) ClassifyHandler {
	return &classifyHandler{cascade: cascade, recordRepo: recordRepo, logger: logger}
}

type ClassifyRequest struct {
	Text     string `json:"text" binding:"required"`
	ServerID string `json:"server_id"`
}

// ClassifyText handles POST /api/classify. Ad hoc classification: nothing
// is persisted, so analysts can probe the cascade freely.
func (h *classifyHandler) ClassifyText(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Failed to bind classify request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.cascade.Classify(c.Request.Context(), classifier.Request{
		Text:     req.Text,
		ServerID: req.ServerID,
	})

	c.JSON(http.StatusOK, gin.H{"result": result})
}

// GetMessageLabel handles GET /api/messages/:id/label and returns the most
// recent label record for a stored message.
func (h *classifyHandler) GetMessageLabel(c *gin.Context) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.logger.Error("Invalid message ID", zap.String("id", idStr), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message ID"})
		return
	}

	record, err := h.recordRepo.GetLatestByMessage(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get label record", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve label"})
		return
	}

	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No label record for message"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"label":      record.Label,
		"labels":     record.SecondaryLabels(),
		"confidence": record.Confidence,
		"rationale":  record.Rationale,
		"created_at": record.CreatedAt,
	})
}
