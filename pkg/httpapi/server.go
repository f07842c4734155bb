// Package httpapi exposes the pipeline's stateless HTTP surface: one
// endpoint per invokable stage (coordinator, worker, discovery-worker,
// healer), a health check, and a Prometheus scrape endpoint. Every
// endpoint processes exactly one invocation and returns; there is no
// long-lived request-scoped state, matching the spec's "stateless,
// horizontally triggerable" invocation model.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/civic-signal/eventscraper/pkg/coordinator"
	"github.com/civic-signal/eventscraper/pkg/database"
	"github.com/civic-signal/eventscraper/pkg/discovery"
	"github.com/civic-signal/eventscraper/pkg/healer"
	"github.com/civic-signal/eventscraper/pkg/metrics"
	"github.com/civic-signal/eventscraper/pkg/store"
	"github.com/civic-signal/eventscraper/pkg/worker"
)

// SourceStore is the slice of pkg/store.Store the server itself needs
// directly, beyond what it hands to the coordinator/worker/healer/
// discovery components. Declared locally so server_test.go can fake it.
type SourceStore interface {
	SourceNames(ctx context.Context, ids []uuid.UUID) ([]store.SourceNameRow, error)
	EligibleSourceIDs(ctx context.Context, sourceIDs []uuid.UUID) ([]uuid.UUID, error)
	GetPipelineHealth(ctx context.Context) (*store.PipelineHealth, error)
}

// Server wires the pipeline's stages to HTTP handlers.
type Server struct {
	Coordinator *coordinator.Coordinator
	Worker      *worker.Worker
	Healer      *healer.Healer
	Discovery   *discovery.Worker
	Store       SourceStore
	DB          *sql.DB

	router *gin.Engine
}

// NewServer builds a Server and registers its routes. ginMode is passed
// straight to gin.SetMode (e.g. "debug"/"release"/"test").
func NewServer(s *Server, ginMode string) *Server {
	gin.SetMode(ginMode)
	s.router = gin.Default()
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealthz)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))
	s.router.POST("/coordinator", s.handleCoordinator)
	s.router.POST("/worker", s.handleWorker)
	s.router.POST("/discovery-worker", s.handleDiscoveryWorker)
	s.router.POST("/healer", s.handleHealer)
}

// Start runs the HTTP server on addr (e.g. ":8080"), blocking until the
// listener fails. Server has no Shutdown method; the listener runs until
// the process exits.
func (s *Server) Start(addr string) error {
	return s.router.Run(addr)
}

// Handler exposes the underlying gin.Engine, mainly for tests that want
// to drive the server with httptest without binding a real port.
func (s *Server) Handler() http.Handler {
	return s.router
}

type healthResponse struct {
	Status   string                  `json:"status"`
	Database *database.HealthStatus  `json:"database"`
	Pipeline *store.PipelineHealth   `json:"pipeline,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := database.Health(ctx, s.DB)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, healthResponse{
			Status:   "unhealthy",
			Database: dbHealth,
			Error:    err.Error(),
		})
		return
	}

	pipelineHealth, err := s.Store.GetPipelineHealth(ctx)
	if err != nil {
		c.JSON(http.StatusOK, healthResponse{Status: "healthy", Database: dbHealth})
		return
	}

	c.JSON(http.StatusOK, healthResponse{Status: "healthy", Database: dbHealth, Pipeline: pipelineHealth})
}
