package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	apihttp "speedmeter/internal/api/http"
	"speedmeter/internal/app"
	"speedmeter/internal/metrics"
	"speedmeter/internal/ratelimit"
	"speedmeter/internal/telemetry"
	"speedmeter/internal/usecase"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "speedmeter")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "speedmeter"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Int64("maxDownloadMB", cfg.MaxDownloadMB),
		slog.Int64("rateWindowMs", cfg.RateWindowMs),
		slog.Int("rateMaxRequests", cfg.RateMaxRequests),
		slog.Bool("rateExcludeSuccess", cfg.RateExcludeSuccess),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := ratelimit.New(cfg.RateWindow(), cfg.RateMaxRequests,
		ratelimit.WithExcludeSuccess(cfg.RateExcludeSuccess))
	go limiter.RunSweeper(rootCtx, cfg.RateWindow())

	downloadUC := usecase.StreamPayload{
		Config: usecase.StreamConfig{
			MinSizeBytes: 1 << 20,
			MaxSizeBytes: cfg.MaxDownloadMB << 20,
			MinDuration:  time.Duration(cfg.MinDurationMs) * time.Millisecond,
			MaxDuration:  time.Duration(cfg.MaxDurationMs) * time.Millisecond,
			ChunkSize:    cfg.ChunkSizeBytes,
		},
		Logger: logger,
	}
	uploadUC := usecase.ReceiveUpload{}

	handler := apihttp.NewServer(downloadUC,
		apihttp.WithUpload(uploadUC),
		apihttp.WithLimiter(limiter),
		apihttp.WithLogger(logger),
		apihttp.WithAllowedOrigins(cfg.CORSAllowedOrigins),
		apihttp.WithDefaultDownloadMB(cfg.DefaultDownloadMB),
		apihttp.WithGlobalRate(cfg.GlobalRateRPS, cfg.GlobalRateBurst),
	)

	// Push live transfer stats to WebSocket clients.
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-rootCtx.Done():
				return
			case <-ticker.C:
				handler.BroadcastStats()
			}
		}
	}()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       0, // uploads may take as long as they take
		WriteTimeout:      0, // downloads stream until their own bound
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("server started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	handler.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
