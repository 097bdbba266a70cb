// =============================================================================
// 📦 fluxagent 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// 默认推理端点与模型
const (
	DefaultInferenceBaseURL = "https://api-inference.huggingface.co/models"
	DefaultModel            = "black-forest-labs/FLUX.1-schnell"
	DefaultWorkspaceBaseURL = "https://api.openserv.ai"
	DefaultSystemPrompt     = "You are an AI image generation agent that creates images using the FLUX.1-schnell model. " +
		"You help users generate beautiful, detailed images based on their descriptions."
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Agent:     DefaultAgentConfig(),
		Inference: DefaultInferenceConfig(),
		Retry:     DefaultRetryConfig(),
		Workspace: DefaultWorkspaceConfig(),
		Storage:   DefaultStorageConfig(),
		Database:  DefaultDatabaseConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:    8080,
		MetricsPort: 9091,
		ReadTimeout: 30 * time.Second,
		// 写超时需覆盖完整重试周期（默认 RetryBudget 为 8m10s）
		WriteTimeout:    11 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultAgentConfig 返回默认 Agent 配置
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Name:              "flux-image-agent",
		SystemPrompt:      DefaultSystemPrompt,
		CapabilityTimeout: 10 * time.Minute,
	}
}

// DefaultInferenceConfig 返回默认推理配置
func DefaultInferenceConfig() InferenceConfig {
	return InferenceConfig{
		BaseURL: DefaultInferenceBaseURL,
		Model:   DefaultModel,
		Timeout: 120 * time.Second,
	}
}

// DefaultRetryConfig 返回默认重试配置
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:         3,
		RateLimitDelay:      65 * time.Second,
		FailureDelay:        5 * time.Second,
		RetryUpstreamErrors: false,
	}
}

// DefaultWorkspaceConfig 返回默认工作区配置
func DefaultWorkspaceConfig() WorkspaceConfig {
	return WorkspaceConfig{
		Mode:         "http",
		BaseURL:      DefaultWorkspaceBaseURL,
		APIKeyHeader: "x-openserv-key",
		Timeout:      60 * time.Second,
	}
}

// DefaultStorageConfig 返回默认存储配置
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Driver:    "local",
		SaveLocal: true,
		Directory: "./output",
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "",
		Host:            "localhost",
		Port:            5432,
		User:            "fluxagent",
		Name:            "fluxagent",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{"stdout"},
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "fluxagent",
		SampleRate:   0.1,
	}
}
