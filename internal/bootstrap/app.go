package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"resumind-backend/internal/analyses"
	"resumind-backend/internal/convert"
	"resumind-backend/internal/extract"
	"resumind-backend/internal/llm"
	"resumind-backend/internal/llm/anthropic"
	"resumind-backend/internal/llm/gemini"
	"resumind-backend/internal/llm/openai"
	"resumind-backend/internal/services/health"
	"resumind-backend/internal/shared/config"
	"resumind-backend/internal/shared/server"
	"resumind-backend/internal/shared/storage/db"
	"resumind-backend/internal/shared/storage/kv"
	kvpostgres "resumind-backend/internal/shared/storage/kv/postgres"
	kvredis "resumind-backend/internal/shared/storage/kv/redis"
	kvsqlite "resumind-backend/internal/shared/storage/kv/sqlite"
	"resumind-backend/internal/shared/storage/object"
	localstore "resumind-backend/internal/shared/storage/object/local"
	s3store "resumind-backend/internal/shared/storage/object/s3"
	"resumind-backend/internal/shared/telemetry"
)

// App holds shared dependencies.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	Store           object.ObjectStore
	KV              kv.Store
	Records         *analyses.RecordStore
	Provider        llm.Provider
	Converter       analyses.Converter
	Extractor       analyses.TextExtractor
	Runs            *analyses.Manager
	AnalysisHandler *analyses.Handler
	Health          *health.Service

	closers []io.Closer
}

// Build prepares shared dependencies and wires routes.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	app := &App{Config: cfg}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Store = store

	records, closer, err := buildRecordStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		app.closers = append(app.closers, closer)
	}
	app.KV = records
	app.Records = analyses.NewRecordStore(records)

	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Provider = provider
	app.Converter = convert.NewFitzConverter(cfg.PreviewDPI)
	app.Extractor = extract.New()

	app.Runs = analyses.NewManager(func(observer analyses.Observer) *analyses.Orchestrator {
		return app.NewOrchestrator(analyses.WithObserver(observer))
	}, app.Records)
	app.AnalysisHandler = analyses.NewHandler(app.Runs, app.Provider)
	app.Health = health.NewService(app.KV, app.Provider)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		AnalysisHandler: app.AnalysisHandler,
		Health:          app.Health,
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":          cfg.Env,
		"object_store": cfg.ObjectStoreType,
		"record_store": cfg.RecordStore,
		"provider":     provider.Name(),
		"model":        provider.Model(),
		"configured":   provider.IsConfigured(),
	})
	return app, nil
}

// NewOrchestrator builds an orchestrator over the shared dependencies.
func (a *App) NewOrchestrator(opts ...analyses.Option) *analyses.Orchestrator {
	return analyses.NewOrchestrator(analyses.Deps{
		Converter: a.Converter,
		Extractor: a.Extractor,
		Provider:  a.Provider,
		Records:   a.Records,
		Objects:   a.Store,
	}, opts...)
}

// Close releases database and cache connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildRecordStore(ctx context.Context, cfg config.Config) (kv.Store, io.Closer, error) {
	switch cfg.RecordStore {
	case "memory":
		return kv.NewMemory(), nil, nil
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, nil, fmt.Errorf("RECORD_STORE=postgres requires DATABASE_URL")
		}
		conn, err := db.Connect(ctx, db.DriverPostgres, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
		if err != nil {
			return nil, nil, err
		}
		if err := db.RunMigrations(ctx, conn, db.DriverPostgres); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return kvpostgres.New(conn), conn, nil
	case "redis":
		store, err := kvredis.New(ctx, kvredis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		store, err := kvsqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	}
}

func buildProvider(ctx context.Context, cfg config.Config) (llm.Provider, error) {
	switch cfg.LLMProvider {
	case "gemini":
		return gemini.New(ctx, cfg.GeminiAPIKey, cfg.LLMModel)
	case "openai":
		return openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel), nil
	case "anthropic":
		return anthropic.NewClient(cfg.AnthropicAPIKey, cfg.LLMModel), nil
	default:
		telemetry.Warn("bootstrap.provider_unknown", map[string]any{"provider": cfg.LLMProvider})
		return llm.Unconfigured{ProviderName: cfg.LLMProvider, ModelName: cfg.LLMModel}, nil
	}
}
