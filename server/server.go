// Package server exposes the agent's status API (self, peers, sync
// activity) over HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"lanclip/registry"
	"lanclip/syncer"
)

// APIResponse is the common API response shape (status + data).
type APIResponse struct {
	Status string      `json:"status"` // "success" or "fail"
	Data   interface{} `json:"data"`
}

// Config for Server.
type Config struct {
	APIPrefix string
	Registry  *registry.Registry
	Engine    *syncer.Engine
	Self      func() registry.DeviceInfo
	Version   string
}

// Server serves the status API.
type Server struct {
	cfg     Config
	started time.Time
}

// New creates a Server.
func New(cfg Config) *Server {
	return &Server{cfg: cfg, started: time.Now()}
}

// Handler returns the HTTP handler for the API.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())
	api := r.Group(s.cfg.APIPrefix)
	api.GET("/self", s.handleSelf)
	api.GET("/peers", s.handlePeers)
	api.GET("/status", s.handleStatus)
	api.GET("/history", s.handleHistory)
	return r
}

func (s *Server) handleSelf(c *gin.Context) {
	c.JSON(http.StatusOK, APIResponse{Status: "success", Data: s.cfg.Self()})
}

func (s *Server) handlePeers(c *gin.Context) {
	c.JSON(http.StatusOK, APIResponse{Status: "success", Data: s.cfg.Registry.Snapshot()})
}

func (s *Server) handleStatus(c *gin.Context) {
	stats := s.cfg.Engine.CurrentStats()
	c.JSON(http.StatusOK, APIResponse{Status: "success", Data: gin.H{
		"version":        s.cfg.Version,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"peer_count":     s.cfg.Registry.Len(),
		"sent":           stats.Sent,
		"applied":        stats.Applied,
	}})
}

func (s *Server) handleHistory(c *gin.Context) {
	c.JSON(http.StatusOK, APIResponse{Status: "success", Data: s.cfg.Engine.Events()})
}
