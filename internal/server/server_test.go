package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubHandler struct{}

func (stubHandler) Register(c *gin.Context)            { c.Status(http.StatusOK) }
func (stubHandler) Login(c *gin.Context)               { c.Status(http.StatusOK) }
func (stubHandler) IngestMessage(c *gin.Context)       { c.Status(http.StatusOK) }
func (stubHandler) ClassifyText(c *gin.Context)        { c.Status(http.StatusOK) }
func (stubHandler) GetMessageLabel(c *gin.Context)     { c.Status(http.StatusOK) }
func (stubHandler) GrantFeedback(c *gin.Context)       { c.Status(http.StatusOK) }
func (stubHandler) RevokeFeedback(c *gin.Context)      { c.Status(http.StatusOK) }
func (stubHandler) GetActivation(c *gin.Context)       { c.Status(http.StatusOK) }
func (stubHandler) GetActivationSeries(c *gin.Context) { c.Status(http.StatusOK) }
func (stubHandler) SubmitRating(c *gin.Context)        { c.Status(http.StatusOK) }
func (stubHandler) GetSummary(c *gin.Context)          { c.Status(http.StatusOK) }
func (stubHandler) GetLexicon(c *gin.Context)          { c.Status(http.StatusOK) }
func (stubHandler) RebuildLexicon(c *gin.Context)      { c.Status(http.StatusOK) }
func (stubHandler) GetDashboard(c *gin.Context)        { c.Status(http.StatusOK) }

func newTestServer() *Server {
	gin.SetMode(gin.TestMode)
	stub := stubHandler{}
	return NewServer(Deps{
		Auth:       stub,
		Ingest:     stub,
		Classify:   stub,
		Feedback:   stub,
		Activation: stub,
		Survey:     stub,
		Lexicon:    stub,
		Analytics:  stub,
	}, logrus.New(), zap.NewNop())
}

func TestRouteRegistration(t *testing.T) {
	srv := newTestServer()

	// Protected routes without a token hit the auth middleware (401);
	// unregistered paths fall through to gin's 404.
	cases := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/ping", http.StatusOK},
		{http.MethodPost, "/api/ingest/discord", http.StatusUnauthorized},
		{http.MethodPost, "/api/ingest", http.StatusNotFound},
		{http.MethodPost, "/api/classify", http.StatusUnauthorized},
		{http.MethodPost, "/api/feedback", http.StatusUnauthorized},
		{http.MethodDelete, "/api/feedback", http.StatusUnauthorized},
		{http.MethodGet, "/api/activation", http.StatusUnauthorized},
		{http.MethodGet, "/api/activation/series", http.StatusUnauthorized},
		{http.MethodPost, "/api/survey", http.StatusUnauthorized},
		{http.MethodGet, "/api/survey/summary", http.StatusUnauthorized},
		{http.MethodGet, "/api/lexicon", http.StatusUnauthorized},
		{http.MethodPost, "/api/lexicon/rebuild", http.StatusUnauthorized},
		{http.MethodGet, "/api/analytics/dashboard", http.StatusUnauthorized},
		{http.MethodPost, "/api/auth/register", http.StatusOK},
		{http.MethodPost, "/api/auth/login", http.StatusOK},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(tc.method, tc.path, nil)
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, tc.status, rec.Code, "%s %s", tc.method, tc.path)
	}
}
