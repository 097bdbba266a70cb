package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/BaSui01/fluxagent/api/handlers"
	"github.com/BaSui01/fluxagent/internal/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// =============================================================================
// 🖥️ Server
// =============================================================================

// publicPaths 不需要认证的路径
var publicPaths = []string{"/health", "/healthz", "/ready", "/version"}

// Server 是 fluxagent 的主服务器：API 与 Metrics 双端口
type Server struct {
	app    *App
	logger *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager

	healthHandler     *handlers.HealthHandler
	capabilityHandler *handlers.CapabilityHandler
	generationHandler *handlers.GenerationHandler

	// 限流器与健康检查等后台任务的生命周期
	bgCancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(app *App, logger *zap.Logger) *Server {
	return &Server{
		app:    app,
		logger: logger,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动 agent 与所有 HTTP 服务器
func (s *Server) Start(ctx context.Context) error {
	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.bgCancel = cancel

	if err := s.app.Agent.Start(ctx); err != nil {
		return fmt.Errorf("failed to start agent: %w", err)
	}
	if s.app.Pool != nil {
		s.app.Pool.StartHealthCheck(bgCtx)
	}

	s.initHandlers()

	cfg := s.app.Config.Server
	s.httpManager = server.NewManager("api", s.Handler(bgCtx), server.ConfigFrom(cfg, cfg.HTTPPort), s.logger)
	if err := s.httpManager.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if cfg.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		s.metricsManager = server.NewManager("metrics", mux, server.ConfigFrom(cfg, cfg.MetricsPort), s.logger)
		if err := s.metricsManager.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("metrics_port", cfg.MetricsPort),
		zap.String("agent", s.app.Agent.Name()),
	)
	return nil
}

// initHandlers 初始化所有 handlers
func (s *Server) initHandlers() {
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewFuncCheck("agent", func(context.Context) error {
		if !s.app.Agent.Running() {
			return fmt.Errorf("agent not running")
		}
		return nil
	}))
	if s.app.Pool != nil {
		s.healthHandler.RegisterCheck(handlers.NewFuncCheck("database", s.app.Pool.Ping))
	}

	s.capabilityHandler = handlers.NewCapabilityHandler(s.app.Agent.Registry(), s.logger)

	// 显式传 nil 接口，避免 typed-nil
	var reader handlers.HistoryReader
	if s.app.History != nil {
		reader = s.app.History
	}
	s.generationHandler = handlers.NewGenerationHandler(reader, s.logger)
}

// Handler 构建路由与中间件链
func (s *Server) Handler(ctx context.Context) http.Handler {
	if s.healthHandler == nil {
		s.initHandlers()
	}

	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(handlers.VersionInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
		Agent:     s.app.Agent.Name(),
		Model:     s.app.Generator.Model(),
	}))

	// 能力与历史
	mux.HandleFunc("GET /api/v1/capabilities", s.capabilityHandler.HandleList)
	mux.HandleFunc("POST /api/v1/capabilities/{name}", s.capabilityHandler.HandleRun)
	mux.HandleFunc("GET /api/v1/generations", s.generationHandler.HandleList)
	mux.HandleFunc("GET /api/v1/generations/{id}", s.generationHandler.HandleGet)

	cfg := s.app.Config.Server
	chain := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
	}
	if s.app.Metrics != nil {
		chain = append(chain, MetricsMiddleware(s.app.Metrics))
	}
	chain = append(chain, OTelTracing())
	if cfg.RateLimitRPS > 0 {
		chain = append(chain, RateLimiter(ctx, float64(cfg.RateLimitRPS), cfg.RateLimitBurst, s.logger))
	}
	switch {
	case cfg.JWT.Enabled():
		chain = append(chain, JWTAuth(cfg.JWT, publicPaths, s.logger))
	case len(cfg.APIKeys) > 0:
		chain = append(chain, APIKeyAuth(cfg.APIKeys, publicPaths, s.logger))
	default:
		s.logger.Warn("API authentication disabled: no api_keys or jwt configured")
	}

	return Chain(mux, chain...)
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// Wait 阻塞直到收到信号、ctx 取消或服务器异常退出
func (s *Server) Wait(ctx context.Context) error {
	managers := []*server.Manager{s.httpManager}
	if s.metricsManager != nil {
		managers = append(managers, s.metricsManager)
	}
	return server.WaitForShutdown(ctx, s.logger, managers...)
}

// Shutdown 优雅关闭：先停止接收请求，再释放 agent 依赖
func (s *Server) Shutdown(ctx context.Context) {
	s.logger.Info("Starting graceful shutdown...")

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}
	if s.bgCancel != nil {
		s.bgCancel()
	}
	if err := s.app.Agent.Shutdown(ctx); err != nil {
		s.logger.Error("Agent shutdown error", zap.Error(err))
	}

	s.logger.Info("Graceful shutdown completed")
}
