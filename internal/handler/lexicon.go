package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/seseseee/discourse-insight/internal/lexicon"
)

type LexiconHandler interface {
	GetLexicon(c *gin.Context)
	RebuildLexicon(c *gin.Context)
}

type lexiconHandler struct {
	snapshot *lexicon.Snapshot
	builder  *lexicon.Builder
	logger   *zap.Logger
}

func NewLexiconHandler(snapshot *lexicon.Snapshot, builder *lexicon.Builder, logger *zap.Logger) LexiconHandler {
	return &lexiconHandler{snapshot: snapshot, builder: builder, logger: logger}
}

// GetLexicon handles GET /api/lexicon and returns the current in-memory
// snapshot.
func (h *lexiconHandler) GetLexicon(c *gin.Context) {
	current := h.snapshot.Current()
	if current == nil {
		c.JSON(http.StatusOK, gin.H{"lexicon": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"built_at": current.BuiltAt,
		"job_id":   current.JobID,
		"terms":    current.Terms,
	})
}

// RebuildLexicon handles POST /api/lexicon/rebuild: an on-demand rebuild
// outside the periodic schedule.
func (h *lexiconHandler) RebuildLexicon(c *gin.Context) {
	if err := h.builder.Rebuild(c.Request.Context()); err != nil {
		h.logger.Error("Manual lexicon rebuild failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Rebuild failed"})
		return
	}

	current := h.snapshot.Current()
	c.JSON(http.StatusOK, gin.H{
		"built_at": current.BuiltAt,
		"job_id":   current.JobID,
	})
}
