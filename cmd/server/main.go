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

	apihttp "magnetstream/internal/api/http"
	"magnetstream/internal/app"
	"magnetstream/internal/engine/anacrolix"
	"magnetstream/internal/metrics"
	"magnetstream/internal/registry"
	"magnetstream/internal/telemetry"
	"magnetstream/internal/transcode"
	"magnetstream/internal/usecase"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "magnetstream")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "magnetstream"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("dataDir", cfg.DataDir),
		slog.String("ffmpegPath", cfg.FFmpegPath),
		slog.Duration("metadataTimeout", cfg.MetadataTimeout),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := anacrolix.New(anacrolix.Config{
		DataDir:         cfg.DataDir,
		MetadataTimeout: cfg.MetadataTimeout,
		Readahead:       cfg.ReadaheadBytes,
	})
	if err != nil {
		logger.Error("engine init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	sessions := registry.New()
	pipeline := transcode.NewPipeline(transcode.NewFFmpeg(cfg.FFmpegPath), logger)

	addUC := usecase.AddSession{Engine: engine, Sessions: sessions, Logger: logger}
	streamUC := usecase.StreamSession{Sessions: sessions}
	statusUC := usecase.StatusSession{Sessions: sessions}
	removeUC := usecase.RemoveSession{Sessions: sessions}

	handler := apihttp.NewServer(addUC,
		apihttp.WithLogger(logger),
		apihttp.WithStreamSession(streamUC),
		apihttp.WithStatusSession(statusUC),
		apihttp.WithRemoveSession(removeUC),
		apihttp.WithPipeline(pipeline),
		apihttp.WithSessions(sessions),
		apihttp.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	// Periodically refresh Prometheus gauges and push counters to WebSocket
	// clients.
	go publishSessionStatus(rootCtx, statusUC, handler)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		// Streams run for hours; the write timeout must stay off.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
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
	sessions.Shutdown()
	if err := engine.Close(); err != nil {
		logger.Warn("engine close error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

func publishSessionStatus(ctx context.Context, statusUC usecase.StatusSession, handler *apihttp.Server) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			states := statusUC.Snapshot()
			metrics.ActiveSessions.Set(float64(len(states)))
			var dlTotal, ulTotal, peersTotal int64
			for _, state := range states {
				dlTotal += state.DownloadRateBps
				ulTotal += state.UploadRateBps
				peersTotal += int64(state.PeerCount)
			}
			metrics.DownloadSpeedBytes.Set(float64(dlTotal))
			metrics.UploadSpeedBytes.Set(float64(ulTotal))
			metrics.PeersConnected.Set(float64(peersTotal))
			handler.BroadcastStatus(states)
		}
	}
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
