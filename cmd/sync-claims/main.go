// Command sync-claims reconciles every filed claim of one carrier and prints
// the batch result as JSON, optionally writing an Excel report as well.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/garyjia/carrier-integration/internal/application/service"
	"github.com/garyjia/carrier-integration/internal/config"
	"github.com/garyjia/carrier-integration/internal/container"
	"github.com/garyjia/carrier-integration/internal/infrastructure/report"
	"github.com/garyjia/carrier-integration/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file (empty for env only)")
	carrierCode := flag.String("carrier", "", "carrier code to reconcile (required)")
	outDir := flag.String("out", "", "directory for an xlsx report; empty skips the report")
	attempts := flag.Int("attempts", 0, "retry attempts for retryable failures (0 uses sync.retry from config)")
	flag.Parse()

	if *carrierCode == "" {
		fmt.Fprintln(os.Stderr, "-carrier is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// JSON goes to stdout, so logs go to stderr unless a file is configured.
	output := cfg.Logger.OutputPath
	if output == "" || output == "stdout" {
		output = "stderr"
	}
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: output,
		Format:     cfg.Logger.Format,
		Service:    "sync-claims",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy := cfg.RetryPolicy()
	if *attempts > 0 {
		policy.MaxAttempts = *attempts
	}

	result, err := run(ctx, cfg, *carrierCode, policy, logger)
	if err != nil {
		logger.Error("Batch sync failed", zap.String("carrier", *carrierCode), zap.Error(err))
		os.Exit(1)
	}

	if *outDir != "" {
		path, err := writeReport(*outDir, result, logger)
		if err != nil {
			logger.Error("Failed to write report", zap.Error(err))
			os.Exit(1)
		}
		logger.Info("Report written", zap.String("path", path))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		logger.Error("Failed to encode result", zap.Error(err))
		os.Exit(1)
	}

	if result.Failed > 0 {
		os.Exit(3)
	}
}

func run(ctx context.Context, cfg *config.Config, code string, policy service.RetryPolicy, logger *zap.Logger) (*service.SyncAllResult, error) {
	containerCfg := cfg.ToContainerConfig()
	// The scheduled worker belongs to the server; this is a single pass.
	containerCfg.Sync.Enabled = false
	containerCfg.Sync.Retry = policy

	c, err := container.NewContainer(containerCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Container close failed", zap.Error(err))
		}
	}()

	return service.WithRetry(ctx, policy, func(ctx context.Context) (*service.SyncAllResult, error) {
		return c.Services().Carrier.SyncAllClaims(ctx, code)
	})
}

func writeReport(dir string, result *service.SyncAllResult, logger *zap.Logger) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, report.Filename(result))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report: %w", err)
	}
	defer f.Close()

	if err := report.NewSyncReportWriter(logger).Write(f, result); err != nil {
		return "", err
	}
	return path, f.Close()
}
