package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sqlpilot/sqlpilot/internal/agent"
	"github.com/sqlpilot/sqlpilot/internal/api"
	"github.com/sqlpilot/sqlpilot/internal/auth"
	"github.com/sqlpilot/sqlpilot/internal/config"
	"github.com/sqlpilot/sqlpilot/internal/dbexec"
	"github.com/sqlpilot/sqlpilot/internal/export"
	"github.com/sqlpilot/sqlpilot/internal/llm"
	"github.com/sqlpilot/sqlpilot/internal/observability"
	"github.com/sqlpilot/sqlpilot/internal/schema"
	s3store "github.com/sqlpilot/sqlpilot/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("sqlpilot-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	var executor agent.Executor
	var db *sql.DB
	dialect := dbexec.DetectDialect(cfg.Database.URL)
	schemaText := ""

	if cfg.Database.URL != "" {
		opened, detected, err := dbexec.Open(startupCtx, dbexec.DBConfig{
			URL:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open database", slog.Any("error", err))
			os.Exit(1)
		}
		db = opened
		dialect = detected
		executor = dbexec.NewExecutor(opened)

		if cfg.Schema.File == "" {
			schemaText, err = schema.Extract(startupCtx, opened, detected)
			if err != nil {
				logger.Error("failed to extract database schema", slog.Any("error", err))
				os.Exit(1)
			}
		}
	}
	if db != nil {
		defer func() { _ = db.Close() }()
	}

	if cfg.Schema.File != "" {
		schemaText, err = schema.LoadFile(cfg.Schema.File)
		if err != nil {
			logger.Error("failed to load schema file", slog.Any("error", err))
			os.Exit(1)
		}
	}
	if schemaText == "" {
		logger.Error("no schema available: set SQLPILOT_DATABASE_URL or SQLPILOT_SCHEMA_FILE")
		os.Exit(1)
	}

	completer, err := newCompleter(startupCtx, cfg)
	if err != nil {
		logger.Error("failed to initialize model backend", slog.Any("error", err))
		os.Exit(1)
	}

	queryAgent, err := agent.New(agent.Options{
		Completer:  completer,
		Executor:   executor,
		SchemaText: schemaText,
		Dialect:    string(dialect),
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to initialize query agent", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger: logger,
		Agent:  queryAgent,
		Readiness: api.CombineReadinessChecks(
			api.CheckDatabaseConfig(cfg),
			api.CheckLLMConfig(cfg),
		),
		DependencyTimeout: time.Second,
		DefaultRetries:    cfg.Agent.MaxRetries,
	}

	if cfg.Export.Enabled {
		objectStore, err := s3store.New(startupCtx, s3store.Config{
			Endpoint:         cfg.Export.Endpoint,
			Region:           cfg.Export.Region,
			Bucket:           cfg.Export.Bucket,
			AccessKeyID:      cfg.Export.AccessKeyID,
			SecretAccessKey:  cfg.Export.SecretAccessKey,
			UseSSL:           cfg.Export.UseSSL,
			Prefix:           cfg.Export.Prefix,
			AutoCreateBucket: cfg.Export.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		exporter, err := export.New(objectStore, logger)
		if err != nil {
			logger.Error("failed to initialize exporter", slog.Any("error", err))
			os.Exit(1)
		}
		deps.Exporter = exporter
	}

	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("dialect", string(dialect)),
			slog.String("model", completer.ModelID()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func newCompleter(ctx context.Context, cfg config.Config) (llm.Completer, error) {
	switch cfg.LLM.Backend {
	case config.BackendOllama:
		client, err := llm.NewOllamaClient(llm.OllamaConfig{
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		})
		if err != nil {
			return nil, err
		}
		if err := client.ValidateModel(ctx); err != nil {
			return nil, err
		}
		return client, nil
	case config.BackendOpenAI:
		return llm.NewOpenAIClient(llm.OpenAIConfig{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		})
	default:
		return nil, errors.New("unsupported model backend " + cfg.LLM.Backend)
	}
}
