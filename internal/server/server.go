package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/seseseee/discourse-insight/internal/handler"
	"github.com/seseseee/discourse-insight/internal/middleware"
	"github.com/seseseee/discourse-insight/internal/service"
)

// Deps carries the already-wired handlers. The server only owns routing.
type Deps struct {
	Auth       handler.AuthHandler
	Ingest     handler.IngestHandler
	Classify   handler.ClassifyHandler
	Feedback   handler.FeedbackHandler
	Activation handler.ActivationHandler
	Survey     handler.SurveyHandler
	Lexicon    handler.LexiconHandler
	Analytics  handler.AnalyticsHandler

	AuthService service.AuthService
}

type Server struct {
	router *gin.Engine
	log    *logrus.Logger
	logger *zap.Logger
}

func NewServer(deps Deps, log *logrus.Logger, logger *zap.Logger) *Server {
	router := gin.Default()

	s := &Server{
		router: router,
		log:    log,
		logger: logger,
	}

	s.setupRoutes(deps)

	return s
}

func (s *Server) setupRoutes(deps Deps) {
	// Ping route for health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// Authentication routes
	authGroup := s.router.Group("/api/auth")
	authGroup.POST("/register", deps.Auth.Register)
	authGroup.POST("/login", deps.Auth.Login)

	// Ingestion from the chat bridge: protected like everything else.
	api := s.router.Group("/api")
	api.Use(middleware.AuthMiddleware(deps.AuthService, s.logger))
	{
		api.POST("/ingest/discord", deps.Ingest.IngestMessage)

		api.POST("/classify", deps.Classify.ClassifyText)
		api.GET("/messages/:id/label", deps.Classify.GetMessageLabel)

		api.POST("/feedback", deps.Feedback.GrantFeedback)
		api.DELETE("/feedback", deps.Feedback.RevokeFeedback)

		api.GET("/activation", deps.Activation.GetActivation)
		api.GET("/activation/series", deps.Activation.GetActivationSeries)

		api.POST("/survey", deps.Survey.SubmitRating)
		api.GET("/survey/summary", deps.Survey.GetSummary)

		api.GET("/lexicon", deps.Lexicon.GetLexicon)
		api.POST("/lexicon/rebuild", deps.Lexicon.RebuildLexicon)

		api.GET("/analytics/dashboard", deps.Analytics.GetDashboard)
	}
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(addr string) {
	s.log.Infof("Server starting on port %s...", addr)
	if err := s.router.Run(addr); err != nil {
		s.log.Fatalf("Server failed to start: %v", err)
	}
}
