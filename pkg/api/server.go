package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/logging"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/metadatastore"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/mlmodel"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/queue"
)

// Options carries the optional collaborators of the server
type Options struct {
	// Registry serves /api/models when set
	Registry metadatastore.MetadataStore
	// Jobs accepts /api/train requests when set
	Jobs *queue.JobQueue
	// Publisher receives every prediction event when set
	Publisher *queue.Publisher
}

// Server provides the threat detection HTTP API
type Server struct {
	predictor *mlmodel.Predictor
	registry  metadatastore.MetadataStore
	jobs      *queue.JobQueue
	publisher *queue.Publisher
	metrics   *Metrics
	hub       *Hub
	logger    *zap.Logger
	router    *gin.Engine
	http      *http.Server
}

// NewServer creates a server around a loaded predictor
func NewServer(predictor *mlmodel.Predictor, opts Options, logger *zap.Logger) (*Server, error) {
	if predictor == nil {
		return nil, errors.New("predictor is required")
	}
	logger = logging.OrNop(logger)

	metrics := NewMetrics()
	s := &Server{
		predictor: predictor,
		registry:  opts.Registry,
		jobs:      opts.Jobs,
		publisher: opts.Publisher,
		metrics:   metrics,
		hub:       NewHub(logger, func(n int) { metrics.wsClients.Set(float64(n)) }),
		logger:    logger,
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))
	s.router = router
	s.registerRoutes()
	return s, nil
}

// Router returns the internal Gin engine for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	s.router.GET("/", s.handleRoot)
	s.router.POST("/predict", s.handlePredict)
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ready", s.handleReady)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))
	s.router.GET("/ws", func(c *gin.Context) {
		s.hub.Serve(c.Writer, c.Request)
	})

	api := s.router.Group("/api")
	{
		api.GET("/models", s.handleListModels)
		api.GET("/models/:id", s.handleGetModel)
		api.POST("/train", s.handleSubmitTraining)
		api.GET("/train/:id", s.handleGetTraining)
	}
}

// Start serves on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting API server",
		zap.String("addr", addr),
		zap.String("model", string(s.predictor.Algorithm())),
		zap.Strings("classes", s.predictor.Classes()))

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
