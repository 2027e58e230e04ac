// Package api exposes the operational HTTP surface: auth code submission,
// health and ingestion/backlog stats. It is read-only with respect to the
// pipeline's data.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"newspipe/internal/telegram"
)

// StatsProvider reports row and backlog counts.
type StatsProvider interface {
	MessageCount(ctx context.Context) (int64, error)
	BacklogCounts(ctx context.Context) (map[string]int64, error)
}

// Server holds the Gin engine and references to the Telegram client and
// stats source.
type Server struct {
	router   *gin.Engine
	tgClient *telegram.Client
	stats    StatsProvider
	logger   *zap.Logger
}

// NewServer creates a new API server instance.
func NewServer(tgClient *telegram.Client, stats StatsProvider, logger *zap.Logger) *Server {
	router := gin.Default()

	server := &Server{
		router:   router,
		tgClient: tgClient,
		stats:    stats,
		logger:   logger,
	}
	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/stats", s.handleStats)

	tg := s.router.Group("/telegram")
	{
		// Endpoint to submit the Telegram authentication code
		tg.POST("/auth/code", s.handleAuthCode)
	}
}

type authCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

func (s *Server) handleAuthCode(c *gin.Context) {
	var req authCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Error("Failed to bind JSON for auth code", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	select {
	case s.tgClient.AuthCode <- req.Code:
		c.JSON(http.StatusOK, gin.H{"message": "Authentication code received."})
	case <-c.Request.Context().Done():
		s.logger.Warn("Auth code request timed out or cancelled")
		c.JSON(http.StatusRequestTimeout, gin.H{"error": "Request timed out or cancelled."})
	case <-time.After(5 * time.Second):
		s.logger.Error("Telegram client not ready to receive code")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Telegram client not ready to receive code."})
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	messages, err := s.stats.MessageCount(ctx)
	if err != nil {
		s.logger.Error("Failed to count messages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read stats"})
		return
	}

	backlog, err := s.stats.BacklogCounts(ctx)
	if err != nil {
		s.logger.Error("Failed to count backlog", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"backlog":  backlog,
	})
}

// Start runs the API server on the specified port.
func (s *Server) Start(port string) error {
	addr := fmt.Sprintf(":%s", port)
	s.logger.Info("API server starting", zap.String("address", addr))
	return s.router.Run(addr)
}
