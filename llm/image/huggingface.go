package image

import (
	"context"
	"fmt"
	"strings"
)

// HuggingFaceProvider generates images through the Hugging Face Inference API.
// Endpoint: POST {base}/{model}, bearer token, JSON body {"inputs": prompt}.
type HuggingFaceProvider struct {
	cfg     HuggingFaceConfig
	fetcher *RetryingFetcher
}

// NewHuggingFaceProvider creates a provider backed by the given fetcher.
// A non-zero cfg.Timeout replaces the fetcher client's per-attempt timeout;
// zero keeps the client as configured (120s for the default client).
func NewHuggingFaceProvider(cfg HuggingFaceConfig, fetcher *RetryingFetcher) *HuggingFaceProvider {
	defaults := DefaultHuggingFaceConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if fetcher == nil {
		fetcher = NewRetryingFetcher(nil, nil)
	}
	if cfg.Timeout > 0 && fetcher.client.Timeout != cfg.Timeout {
		c := *fetcher.client
		c.Timeout = cfg.Timeout
		fetcher = fetcher.withClient(&c)
	}

	return &HuggingFaceProvider{cfg: cfg, fetcher: fetcher}
}

func (p *HuggingFaceProvider) Name() string { return "huggingface" }

// Model returns the default model id.
func (p *HuggingFaceProvider) Model() string { return p.cfg.Model }

// RequestSpec builds the outbound request for prompt and model.
func (p *HuggingFaceProvider) RequestSpec(prompt, model string) RequestSpec {
	if model == "" {
		model = p.cfg.Model
	}
	return RequestSpec{
		URL:    fmt.Sprintf("%s/%s", strings.TrimRight(p.cfg.BaseURL, "/"), strings.TrimLeft(model, "/")),
		Token:  p.cfg.APIToken,
		Prompt: prompt,
	}
}

// Generate implements Generator.
func (p *HuggingFaceProvider) Generate(ctx context.Context, req *GenerationRequest) (*ImagePayload, error) {
	spec := p.RequestSpec(req.Prompt, req.Model)

	payload, err := p.fetcher.Fetch(ctx, spec)
	if err != nil {
		return nil, err
	}
	payload.Model = req.Model
	if payload.Model == "" {
		payload.Model = p.cfg.Model
	}
	return payload, nil
}

var _ Generator = (*HuggingFaceProvider)(nil)
