// 配置加载器与默认配置测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- 默认配置测试 ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// 验证服务器默认值
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)

	// 验证推理与重试默认值
	assert.Equal(t, DefaultInferenceBaseURL, cfg.Inference.BaseURL)
	assert.Equal(t, "black-forest-labs/FLUX.1-schnell", cfg.Inference.Model)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 65*time.Second, cfg.Retry.RateLimitDelay)
	assert.Equal(t, 5*time.Second, cfg.Retry.FailureDelay)
	assert.False(t, cfg.Retry.RetryUpstreamErrors)

	// 验证工作区与存储默认值
	assert.Equal(t, "http", cfg.Workspace.Mode)
	assert.Equal(t, "x-openserv-key", cfg.Workspace.APIKeyHeader)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.True(t, cfg.Storage.SaveLocal)

	// 历史记录默认关闭
	assert.Empty(t, cfg.Database.Driver)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "flux-image-agent", cfg.Agent.Name)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s
  api_keys: ["k1", "k2"]

inference:
  model: "black-forest-labs/FLUX.1-dev"
  timeout: 90s

retry:
  max_attempts: 5
  rate_limit_delay: 10s
  retry_upstream_errors: true

storage:
  driver: s3
  s3:
    bucket: images
    endpoint: http://minio:9000

log:
  level: "debug"
  format: "console"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Server.APIKeys)

	assert.Equal(t, "black-forest-labs/FLUX.1-dev", cfg.Inference.Model)
	assert.Equal(t, 90*time.Second, cfg.Inference.Timeout)
	// 未覆盖的字段保留默认值
	assert.Equal(t, DefaultInferenceBaseURL, cfg.Inference.BaseURL)

	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Retry.RateLimitDelay)
	assert.Equal(t, 5*time.Second, cfg.Retry.FailureDelay)
	assert.True(t, cfg.Retry.RetryUpstreamErrors)

	assert.Equal(t, "s3", cfg.Storage.Driver)
	assert.Equal(t, "images", cfg.Storage.S3.Bucket)
	assert.Equal(t, "http://minio:9000", cfg.Storage.S3.Endpoint)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("FLUXAGENT_SERVER_HTTP_PORT", "7777")
	t.Setenv("FLUXAGENT_SERVER_API_KEYS", "a, b")
	t.Setenv("FLUXAGENT_INFERENCE_API_TOKEN", "hf_env")
	t.Setenv("FLUXAGENT_RETRY_FAILURE_DELAY", "250ms")
	t.Setenv("FLUXAGENT_RETRY_RETRY_UPSTREAM_ERRORS", "true")
	t.Setenv("FLUXAGENT_TELEMETRY_SAMPLE_RATE", "0.5")
	t.Setenv("FLUXAGENT_LOG_LEVEL", "warn")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.HTTPPort)
	assert.Equal(t, []string{"a", "b"}, cfg.Server.APIKeys)
	assert.Equal(t, "hf_env", cfg.Inference.APIToken)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.FailureDelay)
	assert.True(t, cfg.Retry.RetryUpstreamErrors)
	assert.Equal(t, 0.5, cfg.Telemetry.SampleRate)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
agent:
  name: "yaml-agent"
inference:
  model: "yaml-model"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	t.Setenv("FLUXAGENT_SERVER_HTTP_PORT", "9999")
	t.Setenv("FLUXAGENT_AGENT_NAME", "env-agent")

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	// 环境变量应该覆盖 YAML
	assert.Equal(t, 9999, cfg.Server.HTTPPort)
	assert.Equal(t, "env-agent", cfg.Agent.Name)
	// YAML 值应该保留（没有被环境变量覆盖）
	assert.Equal(t, "yaml-model", cfg.Inference.Model)
}

func TestLoader_TokenFallback(t *testing.T) {
	t.Setenv(TokenEnvVar, "hf_fallback")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "hf_fallback", cfg.Inference.APIToken)

	// 显式配置优先
	t.Setenv("FLUXAGENT_INFERENCE_API_TOKEN", "hf_explicit")
	cfg, err = NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "hf_explicit", cfg.Inference.APIToken)
}

func TestLoader_EnvFile(t *testing.T) {
	tmpDir := t.TempDir()
	envPath := filepath.Join(tmpDir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("FLUXAGENT_TEST_DOTENV_PORT=1\nFLUXAGENT_WORKSPACE_API_KEY=from-dotenv\n"), 0644))
	t.Cleanup(func() {
		os.Unsetenv("FLUXAGENT_TEST_DOTENV_PORT")
		os.Unsetenv("FLUXAGENT_WORKSPACE_API_KEY")
	})

	cfg, err := NewLoader().WithEnvFile(envPath).Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Workspace.APIKey)
	assert.Equal(t, "1", os.Getenv("FLUXAGENT_TEST_DOTENV_PORT"))
}

func TestLoader_MissingEnvFileIgnored(t *testing.T) {
	cfg, err := NewLoader().WithEnvFile(filepath.Join(t.TempDir(), "missing.env")).Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER_HTTP_PORT", "6666")
	t.Setenv("MYAPP_AGENT_NAME", "custom-prefix-agent")

	cfg, err := NewLoader().
		WithEnvPrefix("MYAPP").
		Load()
	require.NoError(t, err)

	assert.Equal(t, 6666, cfg.Server.HTTPPort)
	assert.Equal(t, "custom-prefix-agent", cfg.Agent.Name)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("FLUXAGENT_RETRY_MAX_ATTEMPTS", "three")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FLUXAGENT_RETRY_MAX_ATTEMPTS")
}

func TestLoader_WithValidator(t *testing.T) {
	validator := func(cfg *Config) error {
		if cfg.Server.HTTPPort < 1024 {
			return assert.AnError
		}
		return nil
	}

	t.Setenv("FLUXAGENT_SERVER_HTTP_PORT", "80")

	_, err := NewLoader().
		WithValidator(validator).
		Load()
	assert.ErrorIs(t, err, assert.AnError)
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath("/non/existent/path/config.yaml").
		Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
server:
  http_port: [invalid
  this is not valid yaml
`
	require.NoError(t, os.WriteFile(configPath, []byte(invalidYAML), 0644))

	_, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	assert.Error(t, err)
}

// --- Config 方法测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid default config", modify: func(c *Config) {}},
		{name: "invalid HTTP port (negative)", modify: func(c *Config) { c.Server.HTTPPort = -1 }, wantErr: true},
		{name: "invalid HTTP port (too large)", modify: func(c *Config) { c.Server.HTTPPort = 70000 }, wantErr: true},
		{name: "missing model", modify: func(c *Config) { c.Inference.Model = "" }, wantErr: true},
		{name: "zero attempts", modify: func(c *Config) { c.Retry.MaxAttempts = 0 }, wantErr: true},
		{name: "negative delay", modify: func(c *Config) { c.Retry.FailureDelay = -time.Second }, wantErr: true},
		{name: "zero delays allowed", modify: func(c *Config) { c.Retry.FailureDelay = 0; c.Retry.RateLimitDelay = 0 }},
		{name: "unknown workspace mode", modify: func(c *Config) { c.Workspace.Mode = "ftp" }, wantErr: true},
		{name: "s3 without bucket", modify: func(c *Config) { c.Storage.Driver = "s3" }, wantErr: true},
		{name: "s3 with bucket", modify: func(c *Config) { c.Storage.Driver = "s3"; c.Storage.S3.Bucket = "b" }},
		{name: "capability timeout below retry budget", modify: func(c *Config) { c.Agent.CapabilityTimeout = 5 * time.Minute }, wantErr: true},
		{name: "write timeout below retry budget", modify: func(c *Config) { c.Server.WriteTimeout = 5 * time.Minute }, wantErr: true},
		{name: "unbounded timeouts allowed", modify: func(c *Config) { c.Agent.CapabilityTimeout = 0; c.Server.WriteTimeout = 0 }},
		{name: "shorter inference timeout fits", modify: func(c *Config) {
			c.Inference.Timeout = 30 * time.Second
			c.Agent.CapabilityTimeout = 4 * time.Minute
			c.Server.WriteTimeout = 4 * time.Minute
		}},
		{name: "more attempts outgrow defaults", modify: func(c *Config) { c.Retry.MaxAttempts = 5 }, wantErr: true},
		{name: "negative inference timeout", modify: func(c *Config) { c.Inference.Timeout = -time.Second }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "postgres DSN",
			config: DatabaseConfig{
				Driver: "postgres", Host: "localhost", Port: 5432,
				User: "user", Password: "pass", Name: "dbname", SSLMode: "disable",
			},
			expected: "host=localhost port=5432 user=user password=pass dbname=dbname sslmode=disable",
		},
		{
			name: "mysql DSN",
			config: DatabaseConfig{
				Driver: "mysql", Host: "localhost", Port: 3306,
				User: "user", Password: "pass", Name: "dbname",
			},
			expected: "user:pass@tcp(localhost:3306)/dbname?parseTime=true",
		},
		{
			name:     "sqlite DSN",
			config:   DatabaseConfig{Driver: "sqlite", Name: "/path/to/db.sqlite"},
			expected: "/path/to/db.sqlite",
		},
		{
			name:     "disabled",
			config:   DatabaseConfig{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

func TestJWTConfig_Enabled(t *testing.T) {
	assert.False(t, JWTConfig{}.Enabled())
	assert.True(t, JWTConfig{Secret: "s"}.Enabled())
	assert.True(t, JWTConfig{PublicKey: "pem"}.Enabled())
}

// --- MustLoad 测试 ---

func TestMustLoad_Success(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  http_port: 8081\n"), 0644))

	assert.NotPanics(t, func() {
		cfg := MustLoad(configPath)
		assert.Equal(t, 8081, cfg.Server.HTTPPort)
	})
}

func TestMustLoad_Panic(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server: [unterminated"), 0644))

	assert.Panics(t, func() { MustLoad(configPath) })
}

func TestConfig_RetryBudget(t *testing.T) {
	cfg := DefaultConfig()
	// 3 次 120s 尝试，加 2 次 65s 限流等待
	assert.Equal(t, 8*time.Minute+10*time.Second, cfg.RetryBudget())
	assert.Less(t, cfg.RetryBudget(), cfg.Agent.CapabilityTimeout)
	assert.Less(t, cfg.Agent.CapabilityTimeout, cfg.Server.WriteTimeout)

	cfg.Retry.RateLimitDelay = time.Second
	assert.Equal(t, 6*time.Minute+10*time.Second, cfg.RetryBudget(), "failure delay dominates")

	cfg.Inference.Timeout = 0
	assert.Equal(t, 6*time.Minute+10*time.Second, cfg.RetryBudget(), "zero inference timeout uses the client default")

	cfg.Retry.MaxAttempts = 0
	assert.Zero(t, cfg.RetryBudget())
}
