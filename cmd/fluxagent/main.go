// =============================================================================
// fluxagent 主入口
// =============================================================================
// FLUX 文生图 agent：HTTP 能力服务、一次性生成命令、健康检查与 Prometheus 指标
//
// 使用方法:
//
//	fluxagent serve                                   # 启动服务
//	fluxagent serve --config config.yaml --env-file .env
//	fluxagent generate --prompt "a red fox" --out fox.png
//	fluxagent generate --prompt "a red fox" --workspace 42
//	fluxagent version                                 # 显示版本信息
//	fluxagent health --addr http://localhost:8080     # 健康检查
// =============================================================================

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/fluxagent/agent"
	"github.com/BaSui01/fluxagent/config"
	"github.com/BaSui01/fluxagent/internal/metrics"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "generate":
		err = runGenerate(os.Args[2:], os.Stdout)
	case "version":
		printVersion(os.Stdout)
	case "health":
		err = runHealthCheck(os.Args[2:], os.Stdout)
	case "help", "-h", "--help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// ⚙️ 配置加载
// =============================================================================

func loadConfig(configPath, envFile string) (*config.Config, error) {
	loader := config.NewLoader().WithValidator(func(c *config.Config) error { return c.Validate() })
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}
	if envFile != "" {
		loader = loader.WithEnvFile(envFile)
	}
	return loader.Load()
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	envFile := fs.String("env-file", ".env", "Path to .env file (ignored when missing)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath, *envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting fluxagent",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("model", cfg.Inference.Model),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, metrics.NewCollector("fluxagent", logger), logger)
	if err != nil {
		return err
	}

	srv := NewServer(app, logger)
	if err := srv.Start(ctx); err != nil {
		srv.Shutdown(context.Background())
		return err
	}

	waitErr := srv.Wait(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	srv.Shutdown(shutdownCtx)

	logger.Info("fluxagent stopped")
	return waitErr
}

// =============================================================================
// 🖼️ generate 命令
// =============================================================================

func runGenerate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	envFile := fs.String("env-file", ".env", "Path to .env file (ignored when missing)")
	prompt := fs.String("prompt", "", "Image description (required)")
	output := fs.String("out", agent.DefaultFilename, "Output file path")
	workspaceID := fs.Int("workspace", 0, "Workspace ID to upload to (0 = local only)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *prompt == "" {
		return fmt.Errorf("--prompt is required")
	}

	cfg, err := loadConfig(*configPath, *envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 输出文件由 --out 决定，始终保存本地副本
	abs, err := filepath.Abs(*output)
	if err != nil {
		return err
	}
	cfg.Storage.Driver = "local"
	cfg.Storage.SaveLocal = true
	cfg.Storage.Directory = filepath.Dir(abs)
	cfg.Database.Driver = ""

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer func() { _ = app.Agent.Shutdown(context.Background()) }()

	res, err := app.Agent.Generate(ctx, agent.GenerateImageInput{
		Prompt:      *prompt,
		WorkspaceID: *workspaceID,
		Filename:    filepath.Base(abs),
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, res.Message)
	return nil
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}

	fmt.Fprintln(out, "OK")
	return nil
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "fluxagent %s\n", Version)
	fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `fluxagent - FLUX image generation agent

Usage:
  fluxagent <command> [options]

Commands:
  serve     Start the HTTP capability server
  generate  Generate one image and save it (optionally upload to a workspace)
  version   Show version information
  health    Check server health
  help      Show this help message

Options for 'serve':
  --config <path>     Path to configuration file (YAML)
  --env-file <path>   Path to .env file (default .env)

Options for 'generate':
  --prompt <text>     Image description (required)
  --out <path>        Output file (default generated_image.png)
  --workspace <id>    Upload to this workspace as well
  --config <path>     Path to configuration file (YAML)

Environment:
  HF_ACCESS_TOKEN                Hugging Face API token
  FLUXAGENT_WORKSPACE_API_KEY    Workspace API key
  FLUXAGENT_<SECTION>_<FIELD>    Override any config field

Examples:
  fluxagent serve --config /etc/fluxagent/config.yaml
  fluxagent generate --prompt "a lighthouse at dusk, oil painting" --out lighthouse.png
  fluxagent health --addr http://localhost:8080`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      encoding == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		logger, _ = zap.NewProduction()
	}

	return logger
}
