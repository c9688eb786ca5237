// Package app builds the RFQ service and its collaborators from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/rfq-tracker/internal/common"
	"github.com/joseph-ayodele/rfq-tracker/internal/extract"
	"github.com/joseph-ayodele/rfq-tracker/internal/extract/gemini"
	"github.com/joseph-ayodele/rfq-tracker/internal/extract/openai"
	"github.com/joseph-ayodele/rfq-tracker/internal/render"
	"github.com/joseph-ayodele/rfq-tracker/internal/repository"
	"github.com/joseph-ayodele/rfq-tracker/internal/service"
	"github.com/joseph-ayodele/rfq-tracker/internal/storage"
)

// Options selects which collaborators Build connects. Commands that only
// normalize or render documents need none of them.
type Options struct {
	Database  bool
	Extractor bool
	Store     bool
	// KeepRendered stores rendered PDFs in the artifact store.
	KeepRendered bool
}

// App owns the service and the resources behind it.
type App struct {
	Config  *common.Config
	DB      *repository.DB
	Service *service.RFQService

	logger  *slog.Logger
	closers []func() error
}

// Build connects the selected collaborators. A missing model API key is not
// fatal: the service starts and extraction reports ErrExtractorSetup.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger}
	deps := service.Deps{
		Brand:          BrandFromConfig(cfg.Brand),
		TenantDefaults: cfg.TenantDefaults,
		KeepRendered:   opts.KeepRendered,
	}

	if opts.Database {
		db, err := ConnectDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		a.DB = db
		a.closers = append(a.closers, func() error { db.Close(logger); return nil })
		deps.Jobs = repository.NewExtractJobRepository(db.Driver, logger)
	}

	if opts.Store {
		store, err := NewStore(ctx, cfg.Storage, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		deps.Store = store
	}

	if opts.Extractor {
		ex, closers, err := NewExtractor(ctx, cfg.LLM, cfg.Cache, logger)
		switch {
		case errors.Is(err, common.ErrExtractorSetup):
			logger.Warn("app.extractor.disabled", "provider", cfg.LLM.Provider, "error", err)
		case err != nil:
			a.Close()
			return nil, err
		default:
			deps.Extractor = ex
			a.closers = append(a.closers, closers...)
		}
	}

	a.Service = service.NewRFQService(logger, deps)
	return a, nil
}

// Close releases every resource Build opened, newest first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("app.close_failed", "error", err)
		}
	}
	a.closers = nil
}

// ConnectDB opens the job database and checks it responds.
func ConnectDB(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repository.DB, error) {
	logger.Info("app.db.connecting", "driver", cfg.Driver)
	db, err := repository.Open(ctx, repository.Config{
		Driver:           cfg.Driver,
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("app.db.open_failed", "error", err)
		return nil, err
	}
	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		db.Close(logger)
		logger.Error("app.db.ping_failed", "error", err)
		return nil, err
	}
	logger.Info("app.db.ok", "dialect", db.Dialect())
	return db, nil
}

// NewStore returns the MinIO store when an endpoint is configured and the
// local directory store otherwise.
func NewStore(ctx context.Context, cfg common.StorageConfig, logger *slog.Logger) (storage.Store, error) {
	if cfg.Endpoint != "" {
		return storage.NewMinIOStore(ctx, storage.MinIOConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			UseSSL:    cfg.UseSSL,
		}, logger)
	}
	return storage.NewFSStore(cfg.Dir, logger)
}

// NewExtractor builds the configured model client wrapped in the rate
// limiter and, when the TTL is positive, the extraction cache. The returned
// closers release the client and cache connections.
func NewExtractor(ctx context.Context, llm common.LLMConfig, cache common.CacheConfig, logger *slog.Logger) (extract.Extractor, []func() error, error) {
	var (
		base    extract.Extractor
		closers []func() error
	)
	switch llm.Provider {
	case "", "gemini":
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:      llm.APIKey,
			Model:       llm.Model,
			Temperature: llm.Temperature,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		base = c
		closers = append(closers, c.Close)
	case "openai":
		c, err := openai.NewClient(openai.Config{
			APIKey:      llm.APIKey,
			BaseURL:     llm.BaseURL,
			Model:       llm.Model,
			Temperature: llm.Temperature,
			Timeout:     llm.Timeout,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		base = c
	default:
		return nil, nil, common.WrapError(common.ErrExtractorSetup, fmt.Sprintf("unknown provider %q", llm.Provider))
	}

	ex := extract.WithRateLimit(base, extract.PerMinute(llm.RatePerMinute))
	if cache.TTL <= 0 {
		return ex, closers, nil
	}
	if cache.RedisURL == "" {
		logger.Info("app.cache.memory", "ttl", cache.TTL)
		return extract.WithCache(ex, extract.NewMemoryCache(), cache.TTL, logger), closers, nil
	}
	rc, err := extract.NewRedisCache(ctx, cache.RedisURL)
	if err != nil {
		// extraction still works without the cache
		logger.Warn("app.cache.redis_unavailable", "error", err)
		return ex, closers, nil
	}
	logger.Info("app.cache.redis", "ttl", cache.TTL)
	closers = append(closers, rc.Close)
	return extract.WithCache(ex, rc, cache.TTL, logger), closers, nil
}

func BrandFromConfig(b common.BrandConfig) render.Brand {
	return render.Brand{
		CompanyName: b.CompanyName,
		Address:     b.Address,
		Email:       b.Email,
		Phone:       b.Phone,
		Footer:      b.Footer,
	}
}
