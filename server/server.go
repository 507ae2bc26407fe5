// Package server exposes the playground over HTTP with gin: the chat endpoint,
// the host page, per-session playground routes and the live websocket channel.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/Desarso/playground"
	"github.com/Desarso/playground/sandbox"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templateFiles embed.FS

// GenericErrorMessage is the only failure detail clients ever see.
const GenericErrorMessage = "An error occurred while processing your request."

// Server serves one Playground.
type Server struct {
	Playground *playground.Playground
	Router     *gin.Engine
	Document   sandbox.DocumentOptions

	logger   logrus.FieldLogger
	upgrader websocket.Upgrader
}

// New creates a server and registers its routes.
func New(p *playground.Playground) *Server {
	s := &Server{
		Playground: p,
		Document:   sandbox.DocumentOptions{EntryPoint: p.Config.EntryPoint},
		logger:     p.Logger.WithField("component", "http"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	router.SetHTMLTemplate(template.Must(template.ParseFS(templateFiles, "templates/*.html")))
	s.Router = router

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	r := s.Router

	r.GET("/", s.handleIndex)
	r.GET("/healthz", s.handleHealth)

	r.POST("/api/chat", s.handleChat)
	r.HandleMethodNotAllowed = true
	r.NoMethod(methodNotAllowed)

	r.POST("/api/sessions", s.handleCreateSession)
	sessionRoutes := r.Group("/api/sessions/:id", s.loadSession)
	{
		sessionRoutes.GET("/history", s.handleHistory)
		sessionRoutes.GET("/playground", s.handlePlayground)
		sessionRoutes.PUT("/playground/source", s.handleEditSource)
		sessionRoutes.PUT("/playground/view", s.handleSetView)
		sessionRoutes.GET("/preview", s.handlePreview)
		sessionRoutes.GET("/ws", s.handleLive)
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.Router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("playground server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := s.logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		})
		if id := c.Param("id"); id != "" {
			entry = entry.WithField("session", id)
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request served")
	}
}

// methodNotAllowed answers a known path requested with a method it does not
// serve. /api/chat accepts POST only.
func methodNotAllowed(c *gin.Context) {
	if c.Request.URL.Path == "/api/chat" {
		c.Header("Allow", http.MethodPost)
		c.String(http.StatusMethodNotAllowed, "Method %s Not Allowed", c.Request.Method)
		return
	}
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method " + c.Request.Method + " not allowed"})
}
