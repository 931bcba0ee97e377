package main

import (
	"bufio"
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/insights/internal/bootstrap"
	"github.com/GriffinCanCode/insights/internal/config"
	"github.com/GriffinCanCode/insights/internal/host"
	"github.com/GriffinCanCode/insights/internal/logging"
	"github.com/GriffinCanCode/insights/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file (defaults to INSIGHTS_* environment)")
	page := flag.String("page", "emitter", "Page view name tracked on start")
	fetch := flag.String("fetch", "", "URL fetched through the instrumented transport")
	flag.Parse()

	logger := logging.NewDefault()
	if logging.IsDevelopment() {
		logger = logging.NewDevelopment()
	}
	defer logger.Sync()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Calls made before load are buffered and replayed in order.
	snippet := bootstrap.NewSnippet(cfg)
	_ = snippet.Call(func(ai *bootstrap.ApplicationInsights) error {
		ai.TrackPageView(telemetry.PageView{Name: *page, URI: "cli://" + *page}, nil)
		return nil
	})
	_ = snippet.Call(func(ai *bootstrap.ApplicationInsights) error {
		ai.TrackTrace(telemetry.Trace{Message: "emitter started", SeverityLevel: telemetry.Information}, nil)
		return nil
	})

	proc := host.NewProcess(logger)
	defer proc.Close()

	ai, err := bootstrap.Load(snippet, bootstrap.WithHost(proc), bootstrap.WithLogger(logger))
	if err != nil {
		logger.Fatal("Failed to load telemetry client", zap.Error(err))
	}

	if *fetch != "" {
		client := &http.Client{Transport: ai.InstrumentTransport(nil, ""), Timeout: 10 * time.Second}
		if resp, err := client.Get(*fetch); err != nil {
			logger.Warn("Probe failed", zap.Error(err))
		} else {
			resp.Body.Close()
		}
	}

	lines := make(chan struct{})
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			ai.TrackTrace(telemetry.Trace{Message: scanner.Text(), SeverityLevel: telemetry.Information}, nil)
		}
		if err := scanner.Err(); err != nil {
			ai.TrackException(telemetry.Exception{Err: err, SeverityLevel: telemetry.Error}, nil)
		}
	}()

	select {
	case <-lines:
		logger.Info("Input closed")
	case <-proc.Done():
		logger.Info("Teardown signal handled")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ai.Close(ctx); err != nil {
		logger.Error("Failed to flush telemetry", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Configuration, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
