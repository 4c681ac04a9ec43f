package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/teavision/internal/config"
	"github.com/MeKo-Tech/teavision/internal/notify"
	"github.com/MeKo-Tech/teavision/internal/pipeline"
	"github.com/MeKo-Tech/teavision/internal/server"
	"github.com/MeKo-Tech/teavision/internal/store"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the teavision API",
	Long: `Start an HTTP server that provides the extraction, prediction, cropping,
account and history endpoints.

The server provides the following endpoints:
  POST /extract_features      - Feature CSV for labelled uploads
  POST /predict_region_group  - Classify feature rows
  POST /crop_reflection       - Cleaned circular cutout of a sample
  GET  /health                - Health check endpoint
  GET  /models                - List loaded model families
  GET  /ws/extract            - Streaming extraction over WebSocket
  GET  /metrics               - Prometheus metrics

Models are optional: without a readable manifest the server starts and
prediction requests answer 503.

Examples:
  teavision serve
  teavision serve --port 8080
  teavision serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	host := cfg.Server.Host
	if cmd.Flags().Changed("host") {
		host, _ = cmd.Flags().GetString("host")
	}

	port := cfg.Server.Port
	if cmd.Flags().Changed("port") {
		port, _ = cmd.Flags().GetInt("port")
	}

	corsOrigin := cfg.Server.CORSOrigin
	if cmd.Flags().Changed("cors-origin") {
		corsOrigin, _ = cmd.Flags().GetString("cors-origin")
	}

	maxUploadSize := cfg.Server.MaxUploadMB
	if cmd.Flags().Changed("max-upload-size") {
		maxUploadSize, _ = cmd.Flags().GetInt("max-upload-size")
	}

	timeout := cfg.Server.TimeoutSec
	if cmd.Flags().Changed("timeout") {
		timeout, _ = cmd.Flags().GetInt("timeout")
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if cmd.Flags().Changed("shutdown-timeout") {
		shutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
	}

	dbPath := cfg.Store.Path
	if cmd.Flags().Changed("db") {
		dbPath, _ = cmd.Flags().GetString("db")
	}

	rateLimitEnabled := cfg.Server.RateLimitEnabled
	if cmd.Flags().Changed("rate-limit-enabled") {
		rateLimitEnabled, _ = cmd.Flags().GetBool("rate-limit-enabled")
	}

	requestsPerMinute := cfg.Server.RequestsPerMinute
	if cmd.Flags().Changed("requests-per-minute") {
		requestsPerMinute, _ = cmd.Flags().GetInt("requests-per-minute")
	}

	requestsPerHour := cfg.Server.RequestsPerHour
	if cmd.Flags().Changed("requests-per-hour") {
		requestsPerHour, _ = cmd.Flags().GetInt("requests-per-hour")
	}

	maxRequestsPerDay := cfg.Server.MaxRequestsPerDay
	if cmd.Flags().Changed("max-requests-per-day") {
		maxRequestsPerDay, _ = cmd.Flags().GetInt("max-requests-per-day")
	}

	maxDataPerDay := cfg.Server.MaxDataPerDay
	if cmd.Flags().Changed("max-data-per-day") {
		maxDataPerDay, _ = cmd.Flags().GetInt64("max-data-per-day")
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", port)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.Open(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	locator, remover, err := newCropComponents(cfg)
	if err != nil {
		return err
	}
	notifier, err := newNotifier(cfg)
	if err != nil {
		return err
	}

	classifier, err := loadClassifier(cfg)
	if err != nil {
		slog.Warn("Models not loaded, prediction is disabled", "manifest", cfg.ManifestPath(), "error", err)
		classifier = nil
	}

	teaServer, err := server.NewServer(server.Config{
		CORSOrigin:        corsOrigin,
		MaxUploadMB:       int64(maxUploadSize),
		UploadDir:         cfg.Store.UploadDir,
		BatchWorkers:      cfg.Batch.Workers,
		DefaultModel:      cfg.Models.Default,
		CropSeed:          cfg.Circle.CropSeed,
		RateLimitEnabled:  rateLimitEnabled,
		RequestsPerMinute: requestsPerMinute,
		RequestsPerHour:   requestsPerHour,
		MaxRequestsPerDay: maxRequestsPerDay,
		MaxDataPerDay:     maxDataPerDay,
	}, server.Deps{
		Store:      db,
		Classifier: classifier,
		Extractor:  pipeline.NewExtractor(cfg.Features),
		Locator:    locator,
		Remover:    remover,
		Notifier:   notifier,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           teaServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(timeout) * time.Second,
		WriteTimeout:      time.Duration(timeout) * time.Second,
	}

	go func() {
		slog.Info("Starting teavision server", "host", host, "port", port,
			"store", dbPath, "models_loaded", classifier != nil)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled, initiating shutdown")
	}

	slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
	defer shutdownCancel()

	slog.Info("Shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server shutdown completed")
	}

	slog.Info("Cleaning up server resources")
	if err := teaServer.Close(); err != nil {
		slog.Error("Server cleanup error", "error", err)
	} else {
		slog.Info("Server cleanup completed")
	}

	slog.Info("Graceful shutdown completed")
	return nil
}

// newNotifier returns the SMTP relay when enabled and a log notifier
// otherwise.
func newNotifier(cfg *config.Config) (notify.Notifier, error) {
	if !cfg.Notify.Enabled {
		return notify.LogNotifier{}, nil
	}
	n, err := notify.NewSMTPNotifier(cfg.SMTPConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to configure notifications: %w", err)
	}
	return n, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 5000, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 60, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().String("db", "teavision.db", "SQLite database path")
	// Rate limiting flags
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 60, "maximum requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", 1000, "maximum requests per hour per client")
	serveCmd.Flags().Int("max-requests-per-day", 5000, "maximum requests per day per client")
	serveCmd.Flags().Int64("max-data-per-day", 500*1024*1024, "maximum data processed per day per client (bytes)")
}
