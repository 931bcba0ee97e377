package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/insights/internal/logging"
	"github.com/GriffinCanCode/insights/internal/monitoring"
	"github.com/GriffinCanCode/insights/internal/server"
)

// Config is read from COLLECTOR_* environment variables.
type Config struct {
	Port             string `envconfig:"PORT" default:"8000"`
	Host             string `envconfig:"HOST" default:""`
	LogLevel         string `envconfig:"LOG_LEVEL" default:"info"`
	LogDev           bool   `envconfig:"LOG_DEV" default:"false"`
	RateLimitRPS     int    `envconfig:"RATE_LIMIT_RPS" default:"100"`
	RateLimitBurst   int    `envconfig:"RATE_LIMIT_BURST" default:"200"`
	RateLimitEnabled bool   `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	MemoryLimit      int    `envconfig:"MEMORY_LIMIT" default:"10000"`
}

func main() {
	var cfg Config
	if err := envconfig.Process("COLLECTOR", &cfg); err != nil {
		logging.NewDefault().Fatal("Invalid configuration", zap.Error(err))
	}

	logger := logging.ForLevel(cfg.LogLevel, cfg.LogDev || logging.IsDevelopment())
	defer logger.Sync()

	metrics := monitoring.NewMetrics()
	srv := server.NewServer(server.Config{
		Host: cfg.Host,
		Port: cfg.Port,
		RateLimit: server.RateLimitConfig{
			Enabled:           cfg.RateLimitEnabled,
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
	}, logger, metrics,
		server.NewLogSink(logger),
		server.NewMemorySink(cfg.MemoryLimit),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case <-sigChan:
		logger.Info("Shutting down gracefully")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Error during shutdown", zap.Error(err))
		}
	case err := <-errChan:
		if err != nil {
			logger.Fatal("Server error", zap.Error(err))
		}
	}
}
