package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/seseseee/discourse-insight/internal/classifier"
	"github.com/seseseee/discourse-insight/internal/models"
	"github.com/seseseee/discourse-insight/internal/repository"
)

type IngestHandler interface {
	IngestMessage(c *gin.Context)
}

type ingestHandler struct {
	messageRepo repository.MessageRepository
	recordRepo  repository.LabelRecordRepository
	cascade     *classifier.Cascade
	logger      *zap.Logger
}

func NewIngestHandler(
	messageRepo repository.MessageRepository,
	recordRepo repository.LabelRecordRepository,
	cascade *classifier.Cascade,
	logger *zap.Logger,
) IngestHandler {
	return &ingestHandler{
		messageRepo: messageRepo,
		recordRepo:  recordRepo,
		cascade:     cascade,
		logger:      logger,
	}
}

// IngestRequest mirrors the payload the chat bridge forwards for every
// observed utterance.
type IngestRequest struct {
	ServerID    string    `json:"serverId" binding:"required"`
	ChannelID   string    `json:"channelId" binding:"required"`
	MessageID   string    `json:"messageId" binding:"required"`
	AuthorID    string    `json:"authorId" binding:"required"`
	AuthorIsBot bool      `json:"authorIsBot"`
	ContentText string    `json:"contentText"`
	CreatedAt   time.Time `json:"createdAt"`
	ReplyToID   *string   `json:"replyToId"`
	Mentions    []string  `json:"mentions"`
	URLs        []string  `json:"urls"`
	Excluded    bool      `json:"excluded"`
}

// IngestMessage handles POST /api/ingest/discord: stores the utterance and
// classifies it in the same request so the label record is immediately
// available.
func (h *ingestHandler) IngestMessage(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Failed to bind ingest payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ts := req.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	msg := &models.Message{
		ServerID:    req.ServerID,
		ChannelID:   req.ChannelID,
		MessageID:   req.MessageID,
		AuthorID:    req.AuthorID,
		AuthorIsBot: req.AuthorIsBot,
		Content:     req.ContentText,
		ReplyToID:   req.ReplyToID,
		Excluded:    req.Excluded,
		Timestamp:   ts,
	}

	if err := h.messageRepo.SaveMessage(c.Request.Context(), msg); err != nil {
		h.logger.Error("Failed to save message",
			zap.String("server_id", req.ServerID),
			zap.String("message_id", req.MessageID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save message"})
		return
	}

	// Bot authors are stored for thread context but never classified.
	if req.AuthorIsBot {
		c.JSON(http.StatusCreated, gin.H{"id": msg.ID, "classified": false})
		return
	}

	result := h.cascade.Classify(c.Request.Context(), classifier.Request{
		Text:      req.ContentText,
		ServerID:  req.ServerID,
		MessageID: msg.ID,
	})

	record := &models.LabelRecord{
		MessageID:  msg.ID,
		Label:      result.Label,
		Labels:     joinLabelList(result.Labels),
		Confidence: result.Confidence,
		Rationale:  result.Rationale,
	}
	if err := h.recordRepo.AppendRecord(c.Request.Context(), record); err != nil {
		h.logger.Error("Failed to append label record",
			zap.Int64("message_id", msg.ID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record classification"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":         msg.ID,
		"classified": true,
		"result":     result,
	})
}

func joinLabelList(labels []models.Label) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = string(l)
	}
	return strings.Join(parts, ",")
}
