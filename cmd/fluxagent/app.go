package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/fluxagent/agent"
	"github.com/BaSui01/fluxagent/config"
	"github.com/BaSui01/fluxagent/internal/database"
	"github.com/BaSui01/fluxagent/internal/history"
	"github.com/BaSui01/fluxagent/internal/metrics"
	"github.com/BaSui01/fluxagent/internal/storage/blob"
	"github.com/BaSui01/fluxagent/internal/telemetry"
	"github.com/BaSui01/fluxagent/llm/image"
	"github.com/BaSui01/fluxagent/llm/retry"
	"github.com/BaSui01/fluxagent/workspace"
)

// =============================================================================
// 🧱 组件装配
// =============================================================================

// App 持有 serve 与 generate 共用的已装配组件
type App struct {
	Config    *config.Config
	Agent     *agent.Service
	Generator *image.HuggingFaceProvider
	Store     blob.Store
	History   *history.Store
	Pool      *database.PoolManager
	Metrics   *metrics.Collector
	Telemetry *telemetry.Providers
}

// buildApp 按配置装配 agent 及其依赖；collector 可为 nil
func buildApp(ctx context.Context, cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) (*App, error) {
	app := &App{Config: cfg, Metrics: collector}
	var closers []func(context.Context) error
	built := false
	defer func() {
		if built {
			return
		}
		for _, closeFn := range closers {
			_ = closeFn(context.Background())
		}
	}()

	// 1. 遥测（失败不阻止启动）
	otelProviders, err := telemetry.Init(ctx, cfg.Telemetry, telemetry.Options{
		Version:   Version,
		AgentName: cfg.Agent.Name,
	}, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	} else {
		app.Telemetry = otelProviders
		closers = append(closers, otelProviders.Shutdown)
	}

	// 2. 本地 / 对象存储
	store, err := blob.New(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("init blob store: %w", err)
	}
	app.Store = store

	// 3. 推理提供者
	app.Generator = newGenerator(cfg, collector, logger)

	// 4. 工作区上传
	uploader, err := newUploader(cfg.Workspace, store, logger)
	if err != nil {
		return nil, err
	}

	// 5. 生成历史（可选）
	var recorder agent.HistoryRecorder
	var poolOpts []database.PoolOption
	if collector != nil {
		poolOpts = append(poolOpts, database.WithStatsReporter(collector))
	}
	pool, err := database.Open(cfg.Database, logger, poolOpts...)
	if err != nil {
		logger.Warn("database not available, generation history disabled", zap.Error(err))
	} else if pool != nil {
		app.Pool = pool
		app.History = history.NewStore(pool.DB(), logger)
		recorder = app.History
		closers = append(closers, func(context.Context) error { return pool.Close() })
	}

	deps := agent.Deps{
		Config:    cfg.Agent,
		Generator: app.Generator,
		Store:     store,
		SaveLocal: cfg.Storage.SaveLocal,
		Uploader:  uploader,
		History:   recorder,
		Closers:   closers,
		Logger:    logger,
	}
	if collector != nil {
		deps.Observer = collector
	}

	svc, err := agent.NewService(deps)
	if err != nil {
		return nil, fmt.Errorf("init agent: %w", err)
	}
	app.Agent = svc
	built = true
	return app, nil
}

// newGenerator 构造带重试的 Hugging Face 提供者
func newGenerator(cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) *image.HuggingFaceProvider {
	policy := &retry.Policy{
		MaxAttempts:         cfg.Retry.MaxAttempts,
		RateLimitDelay:      cfg.Retry.RateLimitDelay,
		FailureDelay:        cfg.Retry.FailureDelay,
		RetryUpstreamErrors: cfg.Retry.RetryUpstreamErrors,
		OnRetry: func(state retry.AttemptState, delay time.Duration) {
			logger.Info("image generation retry scheduled",
				zap.Int("attempt", state.Attempt),
				zap.Int("remaining", state.Remaining()),
				zap.Duration("delay", delay),
				zap.Error(state.LastError),
			)
		},
	}

	var opts []image.FetcherOption
	if collector != nil {
		opts = append(opts, image.WithObserver(collector))
	}
	fetcher := image.NewRetryingFetcher(retry.NewRetryer(policy, logger), logger, opts...)

	return image.NewHuggingFaceProvider(image.HuggingFaceConfig{
		APIToken: cfg.Inference.APIToken,
		BaseURL:  cfg.Inference.BaseURL,
		Model:    cfg.Inference.Model,
		Timeout:  cfg.Inference.Timeout,
	}, fetcher)
}

// newUploader 按 workspace.mode 选择上传实现
func newUploader(cfg config.WorkspaceConfig, store blob.Store, logger *zap.Logger) (workspace.Uploader, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", "http":
		return workspace.NewHTTPUploader(workspace.HTTPConfig{
			BaseURL:      cfg.BaseURL,
			APIKey:       cfg.APIKey,
			APIKeyHeader: cfg.APIKeyHeader,
			Timeout:      cfg.Timeout,
		}, nil, logger), nil
	case "blob":
		return workspace.NewBlobUploader(store, logger), nil
	case "none":
		return workspace.NopUploader{}, nil
	default:
		return nil, fmt.Errorf("unsupported workspace mode %q", cfg.Mode)
	}
}
