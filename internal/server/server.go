package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sceneforge/internal/agent"
	"sceneforge/internal/bridge"
	"sceneforge/internal/config"
	"sceneforge/internal/logging"
	"sceneforge/internal/meshgen"
	"sceneforge/internal/toolregistry"
)

const (
	shutdownTimeout = 10 * time.Second
	readTimeout     = 30 * time.Second
	// A refine turn holds the response open across several model calls, so
	// the write deadline is far looser than the read deadline.
	writeTimeout = 5 * time.Minute
)

// Refiner runs refinement turns. *agent.Engine satisfies it; tests
// substitute stubs.
type Refiner interface {
	Refine(ctx context.Context, req agent.Request) (*agent.Result, error)
	ResetSession(ctx context.Context, sessionID string)
}

// Config wires the server's collaborators. Refiner is required; nil
// optional collaborators disable their endpoints rather than failing
// construction.
type Config struct {
	Server  config.ServerConfig
	Refiner Refiner
	// Registry backs the tool listing endpoint; nil yields empty listings.
	Registry *toolregistry.Registry
	// Bridge serves the renderer websocket; nil disables /ws.
	Bridge *bridge.Bridge
	// Statuses backs the generation endpoints and is swept by a GC loop
	// that runs for the lifetime of the server.
	Statuses *meshgen.StatusTable
	// StatusSweep is the GC interval; zero picks the table's default.
	StatusSweep time.Duration
	Version     string
	Logger      logging.Logger
	Debug       bool
}

// Server is the HTTP and websocket surface in front of the refinement
// engine.
type Server struct {
	cfg        Config
	engine     *gin.Engine
	httpServer *http.Server
	logger     logging.Logger
	startTime  time.Time

	gcCtx    context.Context
	gcCancel context.CancelFunc
}

// New builds the server and installs its routes.
func New(cfg Config) (*Server, error) {
	if cfg.Refiner == nil {
		return nil, fmt.Errorf("server: refiner is required")
	}
	logger := logging.OrNop(cfg.Logger)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))
	engine.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))

	gcCtx, gcCancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       cfg,
		engine:    engine,
		logger:    logger,
		startTime: time.Now(),
		gcCtx:     gcCtx,
		gcCancel:  gcCancel,
	}
	s.routes()

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      engine,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	return s, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
	cfg.AllowWebSockets = true
	return cfg
}

func (s *Server) routes() {
	api := s.engine.Group("/api")
	api.Use(jsonContentType())

	api.GET("/health", s.handleHealth)
	api.GET("/tools", s.handleListTools)

	sessions := api.Group("/sessions")
	{
		sessions.POST("/:id/refine", s.handleRefine)
		sessions.POST("/:id/reset", s.handleReset)
	}

	generations := api.Group("/generations")
	{
		generations.GET("", s.handleListGenerations)
		generations.GET("/:id", s.handleGetGeneration)
	}

	if s.cfg.Bridge != nil {
		s.engine.GET("/ws", gin.WrapH(s.cfg.Bridge))
	}
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Handler exposes the route tree for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start begins the status-table sweeper and serves HTTP until Stop is
// called or the listener fails.
func (s *Server) Start() error {
	if s.cfg.Statuses != nil {
		s.cfg.Statuses.StartGC(s.gcCtx, s.cfg.StatusSweep)
	}
	s.logger.Info("server: listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Run starts the server and blocks until ctx is cancelled or SIGINT or
// SIGTERM arrives, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		s.logger.Info("server: received %s, shutting down", sig)
	case <-ctx.Done():
		s.logger.Info("server: context cancelled, shutting down")
	}

	if err := s.Stop(); err != nil {
		return err
	}
	return <-errCh
}

// Stop halts the status-table sweeper, closes renderer connections and
// drains in-flight requests within the shutdown deadline.
func (s *Server) Stop() error {
	s.gcCancel()
	if s.cfg.Bridge != nil {
		s.cfg.Bridge.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.logger.Info("server: stopped")
	return nil
}
