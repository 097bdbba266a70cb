// =============================================================================
// 📦 fluxagent 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + .env 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvFile(".env").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// TokenEnvVar is the conventional variable holding the inference credential.
const TokenEnvVar = "HF_ACCESS_TOKEN"

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 fluxagent 的完整配置结构
type Config struct {
	Server    ServerConfig    `yaml:"server" env:"SERVER"`
	Agent     AgentConfig     `yaml:"agent" env:"AGENT"`
	Inference InferenceConfig `yaml:"inference" env:"INFERENCE"`
	Retry     RetryConfig     `yaml:"retry" env:"RETRY"`
	Workspace WorkspaceConfig `yaml:"workspace" env:"WORKSPACE"`
	Storage   StorageConfig   `yaml:"storage" env:"STORAGE"`
	Database  DatabaseConfig  `yaml:"database" env:"DATABASE"`
	Log       LogConfig       `yaml:"log" env:"LOG"`
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort     int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// API Key 列表，为空时不启用 API Key 认证
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`
	// 每个 IP 的请求速率
	RateLimitRPS   int `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// JWT 认证（配置后优先于 API Key）
	JWT JWTConfig `yaml:"jwt" env:"JWT"`
}

// JWTConfig JWT 认证配置
type JWTConfig struct {
	Secret    string `yaml:"secret" env:"SECRET"`
	PublicKey string `yaml:"public_key" env:"PUBLIC_KEY"`
	Issuer    string `yaml:"issuer" env:"ISSUER"`
	Audience  string `yaml:"audience" env:"AUDIENCE"`
}

// Enabled reports whether any verification key is configured.
func (j JWTConfig) Enabled() bool {
	return j.Secret != "" || j.PublicKey != ""
}

// AgentConfig Agent 描述信息
type AgentConfig struct {
	Name         string `yaml:"name" env:"NAME"`
	SystemPrompt string `yaml:"system_prompt" env:"SYSTEM_PROMPT"`
	// 单次能力调用超时
	CapabilityTimeout time.Duration `yaml:"capability_timeout" env:"CAPABILITY_TIMEOUT"`
}

// InferenceConfig 推理端点配置
type InferenceConfig struct {
	BaseURL  string        `yaml:"base_url" env:"BASE_URL"`
	Model    string        `yaml:"model" env:"MODEL"`
	APIToken string        `yaml:"api_token" env:"API_TOKEN"`
	Timeout  time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// RetryConfig 重试策略配置
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
	RateLimitDelay time.Duration `yaml:"rate_limit_delay" env:"RATE_LIMIT_DELAY"`
	FailureDelay   time.Duration `yaml:"failure_delay" env:"FAILURE_DELAY"`
	// 是否将 429 以外的 4xx/5xx 也视为可重试
	RetryUpstreamErrors bool `yaml:"retry_upstream_errors" env:"RETRY_UPSTREAM_ERRORS"`
}

// WorkspaceConfig 工作区上传配置
type WorkspaceConfig struct {
	// 上传方式: http, blob, none
	Mode         string        `yaml:"mode" env:"MODE"`
	BaseURL      string        `yaml:"base_url" env:"BASE_URL"`
	APIKey       string        `yaml:"api_key" env:"API_KEY"`
	APIKeyHeader string        `yaml:"api_key_header" env:"API_KEY_HEADER"`
	Timeout      time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// StorageConfig 本地/对象存储配置
type StorageConfig struct {
	// 驱动: local, s3
	Driver    string   `yaml:"driver" env:"DRIVER"`
	SaveLocal bool     `yaml:"save_local" env:"SAVE_LOCAL"`
	Directory string   `yaml:"directory" env:"DIRECTORY"`
	S3        S3Config `yaml:"s3" env:"S3"`
}

// S3Config S3 兼容存储配置
type S3Config struct {
	Bucket   string `yaml:"bucket" env:"BUCKET"`
	Prefix   string `yaml:"prefix" env:"PREFIX"`
	Region   string `yaml:"region" env:"REGION"`
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
}

// DatabaseConfig 数据库配置（生成历史）
type DatabaseConfig struct {
	// 驱动类型: postgres, mysql, sqlite；为空时不记录历史
	Driver          string        `yaml:"driver" env:"DRIVER"`
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Name            string        `yaml:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format      string   `yaml:"format" env:"FORMAT"`
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envFile    string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "FLUXAGENT",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvFile 设置 .env 文件路径；文件不存在时忽略
func (l *Loader) WithEnvFile(path string) *Loader {
	l.envFile = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// .env 不覆盖已存在的进程环境变量
	if l.envFile != "" {
		if err := godotenv.Load(l.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if cfg.Inference.APIToken == "" {
		cfg.Inference.APIToken = os.Getenv(TokenEnvVar)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 校验与辅助函数
// =============================================================================

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Inference.BaseURL == "" {
		errs = append(errs, "inference.base_url is required")
	}
	if c.Inference.Model == "" {
		errs = append(errs, "inference.model is required")
	}
	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, "retry.max_attempts must be positive")
	}
	if c.Retry.RateLimitDelay < 0 || c.Retry.FailureDelay < 0 {
		errs = append(errs, "retry delays must not be negative")
	}
	if c.Inference.Timeout < 0 {
		errs = append(errs, "inference.timeout must not be negative")
	}
	// 零值表示不限制
	if budget := c.RetryBudget(); budget > 0 {
		if c.Agent.CapabilityTimeout > 0 && c.Agent.CapabilityTimeout < budget {
			errs = append(errs, fmt.Sprintf("agent.capability_timeout %s is below the retry budget %s", c.Agent.CapabilityTimeout, budget))
		}
		if c.Server.WriteTimeout > 0 && c.Server.WriteTimeout < budget {
			errs = append(errs, fmt.Sprintf("server.write_timeout %s is below the retry budget %s", c.Server.WriteTimeout, budget))
		}
	}
	switch c.Workspace.Mode {
	case "http", "blob", "none":
	default:
		errs = append(errs, fmt.Sprintf("unsupported workspace.mode %q", c.Workspace.Mode))
	}
	switch c.Storage.Driver {
	case "local", "s3":
	default:
		errs = append(errs, fmt.Sprintf("unsupported storage.driver %q", c.Storage.Driver))
	}
	if c.Storage.Driver == "s3" && c.Storage.S3.Bucket == "" {
		errs = append(errs, "storage.s3.bucket is required for s3 storage")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// RetryBudget 返回一次生成在最坏情况下的耗时上限：
// 每次尝试都耗尽推理超时，且每次重试前都按较长的退避等待。
func (c *Config) RetryBudget() time.Duration {
	attempts := c.Retry.MaxAttempts
	if attempts <= 0 {
		return 0
	}
	perAttempt := c.Inference.Timeout
	if perAttempt <= 0 {
		perAttempt = DefaultInferenceConfig().Timeout
	}
	wait := max(c.Retry.RateLimitDelay, c.Retry.FailureDelay)
	return time.Duration(attempts)*perAttempt + time.Duration(attempts-1)*wait
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}
