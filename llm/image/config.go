package image

import "time"

// HuggingFaceConfig 配置 Hugging Face Inference API 提供者.
type HuggingFaceConfig struct {
	APIToken string        `json:"api_token" yaml:"api_token"`
	BaseURL  string        `json:"base_url" yaml:"base_url"`
	Model    string        `json:"model,omitempty" yaml:"model,omitempty"` // black-forest-labs/FLUX.1-schnell
	Timeout  time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultHuggingFaceConfig 返回默认 Hugging Face 配置.
func DefaultHuggingFaceConfig() HuggingFaceConfig {
	return HuggingFaceConfig{
		BaseURL: "https://api-inference.huggingface.co/models",
		Model:   "black-forest-labs/FLUX.1-schnell",
		Timeout: 120 * time.Second,
	}
}
