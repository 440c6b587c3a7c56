package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/seseseee/discourse-insight/internal/feedback"
)

type FeedbackHandler interface {
	GrantFeedback(c *gin.Context)
	RevokeFeedback(c *gin.Context)
}

type feedbackHandler struct {
	ledger *feedback.Ledger
	logger *zap.Logger
}

func NewFeedbackHandler(ledger *feedback.Ledger, logger *zap.Logger) FeedbackHandler {
	return &feedbackHandler{ledger: ledger, logger: logger}
}

type GrantFeedbackRequest struct {
	ServerID   string   `json:"server_id" binding:"required"`
	MessageID  int64    `json:"message_id" binding:"required"`
	UserID     string   `json:"user_id" binding:"required"`
	Labels     []string `json:"labels" binding:"required"`
	Confidence *float64 `json:"confidence"`
	Notes      string   `json:"notes"`
}

type RevokeFeedbackRequest struct {
	ServerID  string   `json:"server_id" binding:"required"`
	MessageID int64    `json:"message_id" binding:"required"`
	UserID    string   `json:"user_id" binding:"required"`
	Labels    []string `json:"labels"`
}

// GrantFeedback handles POST /api/feedback
func (h *feedbackHandler) GrantFeedback(c *gin.Context) {
	var req GrantFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Failed to bind feedback grant", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	receipt, err := h.ledger.Grant(c.Request.Context(), feedback.GrantRequest{
		ServerID:   req.ServerID,
		MessageID:  req.MessageID,
		UserID:     req.UserID,
		Labels:     req.Labels,
		Confidence: req.Confidence,
		Notes:      req.Notes,
	})
	if err != nil {
		if errors.Is(err, feedback.ErrNotTrusted) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to grant feedback",
			zap.Int64("message_id", req.MessageID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record feedback"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"receipt": receipt})
}

// RevokeFeedback handles DELETE /api/feedback
func (h *feedbackHandler) RevokeFeedback(c *gin.Context) {
	var req RevokeFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Failed to bind feedback revoke", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	receipt, err := h.ledger.Revoke(c.Request.Context(), feedback.RevokeRequest{
		ServerID:  req.ServerID,
		MessageID: req.MessageID,
		UserID:    req.UserID,
		Labels:    req.Labels,
	})
	if err != nil {
		if errors.Is(err, feedback.ErrNotTrusted) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to revoke feedback",
			zap.Int64("message_id", req.MessageID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke feedback"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"receipt": receipt})
}
