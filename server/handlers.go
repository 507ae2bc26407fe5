package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Desarso/playground/models"
	"github.com/Desarso/playground/sandbox"
	"github.com/Desarso/playground/sessions"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const sessionKey = "session"

func (s *Server) handleIndex(c *gin.Context) {
	session := s.Playground.Sessions.Create()
	c.HTML(http.StatusOK, "index.html", gin.H{
		"SessionID": session.ID,
		"Sandbox":   sandbox.SandboxAttributes(),
		"Apology":   sessions.ApologyMessage,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	status := gin.H{
		"status":   "ok",
		"sessions": s.Playground.Sessions.Len(),
	}
	if archive := s.Playground.Archive; archive != nil {
		if err := archive.Ping(); err != nil {
			s.logger.WithError(err).Warn("archive ping failed")
			status["status"] = "degraded"
			status["archive"] = "unavailable"
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		status["archive"] = "ok"
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleChat(c *gin.Context) {
	var req models.Chat_Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	switch {
	case len(req.Messages) > 0:
		s.chatStateless(c, req.Messages)
	case req.Message != nil:
		s.chatSession(c, *req.Message)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "request must contain messages or message"})
	}
}

// chatStateless answers a request that carries its whole conversation.
func (s *Server) chatStateless(c *gin.Context, messages []models.Turn) {
	for _, turn := range messages {
		if err := turn.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	last := messages[len(messages)-1]
	if last.Role != models.RoleUser {
		c.JSON(http.StatusBadRequest, gin.H{"error": "last message must come from the user"})
		return
	}

	result, err := s.Playground.Generator.Generate(c.Request.Context(), messages[:len(messages)-1], last.Content)
	if err != nil {
		s.logger.WithError(err).Error("stateless chat failed")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: GenericErrorMessage})
		return
	}

	resp := models.Chat_Response{
		ChatResponse:   result.ChatMessage,
		PlaygroundData: result.ComponentSource,
		Error:          result.Error,
	}
	if len(result.ExternalResources) > 0 {
		resp.CDNLinks = result.ExternalResources
	}
	c.JSON(http.StatusOK, resp)
}

// chatSession runs one turn against the session named by the query string.
func (s *Server) chatSession(c *gin.Context, message string) {
	id := c.Query("session")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session query parameter is required"})
		return
	}
	if strings.TrimSpace(message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message must not be empty"})
		return
	}
	session, ok := s.Playground.Sessions.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	result, err := session.RunTurn(c.Request.Context(), message)
	if err != nil {
		if errors.Is(err, sessions.ErrBusy) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		s.logger.WithFields(logrus.Fields{"session": id}).WithError(err).Error("chat turn failed")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: GenericErrorMessage})
		return
	}

	c.JSON(http.StatusOK, models.Message_Response{
		Response:   result.Reply,
		Playground: result.Playground,
	})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	session := s.Playground.Sessions.Create()
	c.JSON(http.StatusCreated, gin.H{
		"id":         session.ID,
		"playground": session.Playground.Snapshot(),
	})
}

// loadSession resolves :id and marks the session active.
func (s *Server) loadSession(c *gin.Context) {
	session, ok := s.Playground.Sessions.Get(c.Param("id"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	session.Touch()
	c.Set(sessionKey, session)
	c.Next()
}

func currentSession(c *gin.Context) *sessions.PlaygroundSession {
	return c.MustGet(sessionKey).(*sessions.PlaygroundSession)
}

func (s *Server) handleHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"history": currentSession(c).Transcript()})
}

func (s *Server) handlePlayground(c *gin.Context) {
	c.JSON(http.StatusOK, currentSession(c).Playground.Snapshot())
}

func (s *Server) handleEditSource(c *gin.Context) {
	var req models.EditSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, currentSession(c).Playground.EditSource(c.Request.Context(), req.Source))
}

func (s *Server) handleSetView(c *gin.Context) {
	var req models.SetViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	state, err := currentSession(c).Playground.SetView(req.View)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, state)
}

// handlePreview serves the document loaded into the sandboxed frame. The
// sandbox directive also applies when the document is opened directly.
func (s *Server) handlePreview(c *gin.Context) {
	doc := sandbox.Document(currentSession(c).Playground.Snapshot(), s.Document)
	c.Header("Content-Security-Policy", "sandbox "+sandbox.SandboxAttributes())
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(doc))
}

func (s *Server) handleLive(c *gin.Context) {
	session := currentSession(c)
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	if err := session.ServeLive(c.Request.Context(), conn); err != nil {
		s.logger.WithField("session", session.ID).WithError(err).Warn("live channel closed with error")
	}
}
