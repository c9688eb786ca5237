// Command rfqd serves the RFQ API over HTTP and gRPC and, when inbox
// directories are configured, extracts files dropped into them.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/rfq-tracker/internal/app"
	"github.com/joseph-ayodele/rfq-tracker/internal/async"
	"github.com/joseph-ayodele/rfq-tracker/internal/common"
	"github.com/joseph-ayodele/rfq-tracker/internal/ingest"
	"github.com/joseph-ayodele/rfq-tracker/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel()}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.LoadFile(os.Getenv("RFQ_CONFIG")); err != nil {
		logger.Error("rfqd.config.load_failed", "error", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("rfqd.config.invalid", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, stop, cfg, logger); err != nil {
		logger.Error("rfqd.failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg *common.Config, logger *slog.Logger) error {
	a, err := app.Build(ctx, cfg, logger, app.Options{
		Database:     true,
		Extractor:    true,
		Store:        true,
		KeepRendered: true,
	})
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	defer a.Close()

	// gRPC
	grpcLis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.GRPCAddr, err)
	}
	grpcServer, healthServer := server.NewGRPCServer(a.Service, logger)
	go func() {
		logger.Info("rfqd.grpc.listening", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(grpcLis); err != nil {
			logger.Error("rfqd.grpc.serve_failed", "error", err)
			stop()
		}
	}()

	// HTTP
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server.NewRouter(a.Service, a.DB, logger),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.LLM.Timeout + 30*time.Second,
	}
	go func() {
		logger.Info("rfqd.http.listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("rfqd.http.serve_failed", "error", err)
			stop()
		}
	}()

	// Inbox
	var queue *async.ProcessorQueue
	if len(cfg.Ingest.InboxDirs) > 0 {
		queue = async.NewProcessorQueue(
			func(ctx context.Context, job async.Job) error {
				_, err := a.Service.ExtractFile(ctx, job.Path, job.Variant, job.Tenant)
				return err
			},
			logger,
			async.WithWorkers(cfg.Ingest.Workers),
			async.WithProcessTimeout(cfg.Ingest.Timeout),
		)
		paths, _, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:    cfg.Ingest.InboxDirs,
			Debounce: 500 * time.Millisecond,
			Logger:   logger,
		})
		if err != nil {
			grpcServer.Stop()
			_ = httpServer.Close()
			return fmt.Errorf("start inbox: %w", err)
		}
		inbox := ingest.NewInbox(queue, cfg.Ingest.Variant, cfg.Ingest.Tenant, logger)
		go inbox.Run(ctx, paths)
	}

	<-ctx.Done()
	logger.Info("rfqd.shutting_down")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("rfqd.http.shutdown_failed", "error", err)
	}
	grpcServer.GracefulStop()
	if queue != nil {
		queue.Shutdown(shutdownCtx)
	}
	logger.Info("rfqd.stopped")
	return nil
}

func logLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(os.Getenv("LOG_LEVEL"))); err != nil {
		return slog.LevelInfo
	}
	return l
}
