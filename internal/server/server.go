// Package server is the HTTP front door of the survey tracker dashboard.
//
// It runs the access gate on page requests, owns the session cookie, and
// forwards /api calls to the REST API and everything else to the UI.
package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/surveytrack/surveytrack/internal/apiclient"
	"github.com/surveytrack/surveytrack/internal/config"
	"github.com/surveytrack/surveytrack/internal/gate"
)

// Server represents the HTTP server
type Server struct {
	router   *gin.Engine
	config   *config.Config
	logger   zerolog.Logger
	policy   *gate.Policy
	api      *apiclient.Client
	apiProxy *httputil.ReverseProxy
	uiProxy  *httputil.ReverseProxy
	now      func() time.Time
	version  string
}

// New creates a new server instance
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	policy := gate.DefaultPolicy()
	if cfg.Gate.PolicyFile != "" {
		loaded, err := gate.LoadPolicy(cfg.Gate.PolicyFile)
		if err != nil {
			return nil, err
		}
		policy = loaded
		zlog.Info().Str("file", cfg.Gate.PolicyFile).Msg("Loaded access gate policy")
	}

	apiURL, err := url.Parse(cfg.Upstream.APIURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	if err := registerValidations(); err != nil {
		return nil, err
	}

	server := &Server{
		config:  cfg,
		logger:  zlog,
		policy:  policy,
		api:     apiclient.New(cfg.Upstream.APIURL, cfg.Upstream.APITimeout),
		now:     time.Now,
		version: version,
	}
	server.apiProxy = server.newAPIProxy(apiURL)

	if cfg.Upstream.FrontendURL != "" {
		uiURL, err := url.Parse(cfg.Upstream.FrontendURL)
		if err != nil {
			return nil, fmt.Errorf("invalid frontend URL: %w", err)
		}
		server.uiProxy = server.newUIProxy(uiURL)
	} else {
		zlog.Warn().Msg("FRONTEND_URL not set - page requests will return 404")
	}

	// Setup router
	server.setupRouter()

	return server, nil
}

// registerValidations adds the custom rules used in request bindings to
// gin's validator.
func registerValidations() error {
	validate, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}

	// Letters, digits and underscores, as the user admin screen enforces
	return validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		for _, char := range fl.Field().String() {
			if !((char >= 'a' && char <= 'z') ||
				(char >= 'A' && char <= 'Z') ||
				(char >= '0' && char <= '9') ||
				char == '_') {
				return false
			}
		}
		return true
	})
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	if s.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	s.router = gin.New()

	// Add middleware
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())

	// CORS middleware
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders:    []string{"Content-Length", requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// The clock is read through s so tests can pin it
	s.router.Use(AccessGateMiddleware(s.policy, func() time.Time { return s.now() }, s.logger))

	// Health check endpoint
	s.router.GET("/health", s.healthCheck)

	// Session endpoints
	s.router.POST("/auth/login", s.login)
	s.router.POST("/auth/logout", s.logout)

	// REST API
	s.router.Any(apiPrefix+"/*path", s.proxyAPI)

	// Dashboard pages and assets
	s.router.NoRoute(s.serveUI)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "surveytrack",
		"version":   s.version,
	})
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until SIGINT or SIGTERM
func (s *Server) Start() error {
	addr := s.config.Server.Address

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("http server: %w", err)
	case <-sigChan:
		s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")
	}

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	s.logger.Info().Msg("Server shutdown complete")
	return nil
}
