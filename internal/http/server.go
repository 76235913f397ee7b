package http

import (
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ayurgenix/internal/core"
	"ayurgenix/internal/dataset"
	"ayurgenix/internal/db"
)

//go:embed templates/*.html
var templateFS embed.FS

// Server bundles together the dependencies required by HTTP handlers.  It
// implements http.Handler so it can be passed to http.Server.
type Server struct {
	Store      db.Store
	Chat       *core.ChatService
	Index      *dataset.Index
	MessageCap int
	Now        func() time.Time

	engine *gin.Engine
}

// NewServer constructs a Server and its routes.  The HTML templates are
// embedded in the binary.
func NewServer(store db.Store, chat *core.ChatService, index *dataset.Index, messageCap int) (*Server, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"speaker":  speaker,
		"markdown": renderMarkdown,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	s := &Server{
		Store:      store,
		Chat:       chat,
		Index:      index,
		MessageCap: messageCap,
		Now:        time.Now,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.SetHTMLTemplate(tmpl)
	s.routes(r)
	s.engine = r
	return s, nil
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/", s.handleIndexPage)
	r.POST("/sessions", s.handleStartConsultation)
	r.GET("/sessions/:id", s.handleSessionPage)

	api := r.Group("/api")
	api.POST("/sessions", s.handleCreateSession)
	api.GET("/sessions/:id", s.handleGetSession)
	api.PUT("/sessions/:id/profile", s.handleSaveProfile)
	api.POST("/sessions/:id/profile", s.handleSaveProfile)
	api.POST("/sessions/:id/messages", s.handlePostMessage)
	api.POST("/sessions/:id/reset", s.handleReset)
	api.GET("/sessions/:id/report", s.handleReport)
	api.GET("/dataset", s.handleDatasetStatus)
	api.GET("/dataset/matches", s.handleDatasetMatches)
}

// ServeHTTP dispatches to the gin engine.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// llmReady reports whether answers can be generated.
func (s *Server) llmReady() bool {
	return s.Chat != nil && s.Chat.LLM != nil
}

// fail writes an error response.  Unknown sessions become 404; everything
// else is logged and reported as 500.
func fail(c *gin.Context, err error) {
	if errors.Is(err, db.ErrSessionNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	slog.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// requestLogger replaces gin's default logger with slog.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
