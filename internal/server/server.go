// Package server exposes the analytics service over HTTP for the
// dashboard.
package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/theirongolddev/agentlens/internal/service"
)

// Server provides the dashboard HTTP API.
type Server struct {
	addr      string
	svc       *service.Service
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a server bound to addr.
func NewServer(addr string, svc *service.Service) *Server {
	if addr == "" {
		addr = "127.0.0.1:8021"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:   addr,
		svc:    svc,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Server) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)
	r.GET("/api/projects", s.handleProjects)
	r.GET("/api/projects/:slug/stats", s.handleStats)
	r.GET("/api/projects/:slug/messages", s.handleMessages)
	r.POST("/api/projects/:slug/refresh", s.handleRefresh)
	r.GET("/api/global-stats", s.handleGlobalStats)
	r.GET("/api/cache/status", s.handleCacheStatus)
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Handler:           s.router(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"uptime":   time.Since(s.startTime).String(),
		"projects": len(s.svc.Projects()),
	})
}

func (s *Server) handleProjects(c *gin.Context) {
	projects := s.svc.Projects()
	out := make([]gin.H, 0, len(projects))
	for _, p := range projects {
		out = append(out, gin.H{
			"slug":          s.svc.Slug(p.LogPath),
			"dir_name":      p.DirName,
			"display_name":  p.DisplayName,
			"provider":      p.Provider,
			"file_count":    p.FileCount,
			"total_size_mb": p.TotalSizeMB,
			"last_modified": p.LastModified,
		})
	}
	c.JSON(http.StatusOK, gin.H{"projects": out})
}

func (s *Server) resolveProject(c *gin.Context) (string, bool) {
	logPath, ok := s.svc.ResolveSlug(c.Param("slug"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown project"})
		return "", false
	}
	return logPath, true
}

func (s *Server) handleStats(c *gin.Context) {
	logPath, ok := s.resolveProject(c)
	if !ok {
		return
	}
	result, err := s.svc.LoadOrBuild(c.Request.Context(), logPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result.Stats)
}

func (s *Server) handleMessages(c *gin.Context) {
	logPath, ok := s.resolveProject(c)
	if !ok {
		return
	}
	result, err := s.svc.LoadOrBuild(c.Request.Context(), logPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	messages := result.Messages
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		if limit < len(messages) {
			messages = messages[:limit]
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"total":    len(result.Messages),
		"messages": messages,
	})
}

func (s *Server) handleRefresh(c *gin.Context) {
	logPath, ok := s.resolveProject(c)
	if !ok {
		return
	}
	if err := s.svc.Invalidate(logPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	result, err := s.svc.LoadOrBuild(c.Request.Context(), logPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "refreshed",
		"total_messages": len(result.Messages),
	})
}

func (s *Server) handleGlobalStats(c *gin.Context) {
	summary, err := s.svc.GlobalSummary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleCacheStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.CacheStatus())
}
