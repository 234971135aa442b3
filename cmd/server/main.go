package main

import (
	"fmt"
	"os"

	"github.com/surveytrack/surveytrack/internal/config"
	"github.com/surveytrack/surveytrack/internal/logger"
	"github.com/surveytrack/surveytrack/internal/server"
)

var version = "dev" // Will be set during build with -ldflags

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	srv, err := server.New(cfg, log, version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	log.Info().
		Str("version", version).
		Str("env", cfg.Server.Environment).
		Str("api_url", cfg.Upstream.APIURL).
		Msg("Starting surveytrack front door...")

	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("Server failed to start")
	}
}
