package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/seseseee/discourse-insight/internal/models"
	"github.com/seseseee/discourse-insight/internal/repository"
)

type SurveyHandler interface {
	SubmitRating(c *gin.Context)
	GetSummary(c *gin.Context)
}

type surveyHandler struct {
	surveyRepo repository.SurveyRepository
	logger     *zap.Logger
}

func NewSurveyHandler(surveyRepo repository.SurveyRepository, logger *zap.Logger) SurveyHandler {
	return &surveyHandler{surveyRepo: surveyRepo, logger: logger}
}

type SubmitRatingRequest struct {
	ServerID  string `json:"server_id" binding:"required"`
	ChannelID string `json:"channel_id" binding:"required"`
	RaterID   string `json:"rater_id" binding:"required"`
	Score     int    `json:"score" binding:"required"`
	Note      string `json:"note"`
}

// SubmitRating handles POST /api/survey
func (h *surveyHandler) SubmitRating(c *gin.Context) {
	var req SubmitRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Failed to bind survey rating", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Score < 1 || req.Score > 5 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "score must be between 1 and 5"})
		return
	}

	rating := &models.SurveyRating{
		ServerID:  req.ServerID,
		ChannelID: req.ChannelID,
		RaterID:   req.RaterID,
		Score:     req.Score,
		Note:      req.Note,
	}
	if err := h.surveyRepo.SaveRating(c.Request.Context(), rating); err != nil {
		h.logger.Error("Failed to save survey rating",
			zap.String("server_id", req.ServerID),
			zap.String("channel_id", req.ChannelID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save rating"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": rating.ID})
}

// GetSummary handles GET /api/survey/summary
func (h *surveyHandler) GetSummary(c *gin.Context) {
	serverID := c.Query("server_id")
	channelID := c.Query("channel_id")
	if serverID == "" || channelID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "server_id and channel_id are required"})
		return
	}

	summary, err := h.surveyRepo.Summary(c.Request.Context(), serverID, channelID)
	if err != nil {
		h.logger.Error("Failed to get survey summary",
			zap.String("server_id", serverID),
			zap.String("channel_id", channelID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve summary"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}
