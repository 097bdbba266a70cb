// 包 image 提供文生图请求、图像载荷与带重试的抓取器.
package image

import (
	"context"
	"strings"

	"github.com/BaSui01/fluxagent/types"
)

// GenerationRequest 代表一次文生图请求.
type GenerationRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"` // 为空时使用 Provider 默认模型
}

// ImagePayload 是推理端点返回的原始图像字节.
// 在交给本地存储或工作区上传之前由调用方独占.
type ImagePayload struct {
	Data        []byte `json:"-"`
	ContentType string `json:"content_type"`
	Model       string `json:"model,omitempty"`
	Attempts    int    `json:"attempts"`
}

// Size 返回载荷字节数.
func (p *ImagePayload) Size() int {
	if p == nil {
		return 0
	}
	return len(p.Data)
}

// RequestSpec 描述一次出站推理调用.
type RequestSpec struct {
	URL     string
	Token   string
	Prompt  string
	Headers map[string]string
}

// Validate 在发起任何网络请求之前校验请求.
func (s RequestSpec) Validate() error {
	if strings.TrimSpace(s.Token) == "" {
		return types.NewConfigurationError("missing inference API token (set HF_ACCESS_TOKEN)")
	}
	if strings.TrimSpace(s.URL) == "" {
		return types.NewConfigurationError("missing inference endpoint URL")
	}
	if strings.TrimSpace(s.Prompt) == "" {
		return types.NewError(types.ErrInvalidRequest, "prompt must not be empty")
	}
	return nil
}

// Generator 定义了文生图提供者接口.
type Generator interface {
	// Generate 从文本提示生成图像.
	Generate(ctx context.Context, req *GenerationRequest) (*ImagePayload, error)

	// Name 返回提供者名称.
	Name() string
}
