package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/BaSui01/fluxagent/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🧩 Capability Handler
// =============================================================================

// CapabilityRunner 列出并执行 agent 能力（agent.Registry 实现了它）
type CapabilityRunner interface {
	List() []types.CapabilitySchema
	Run(ctx context.Context, name string, raw json.RawMessage) (string, error)
}

// CapabilityHandler 能力列表与执行处理器
type CapabilityHandler struct {
	runner CapabilityRunner
	logger *zap.Logger
}

// RunCapabilityRequest 能力执行请求；args 为空时视为 {}
type RunCapabilityRequest struct {
	Args json.RawMessage `json:"args,omitempty"`
}

// RunCapabilityResponse 能力执行结果
type RunCapabilityResponse struct {
	types.CapabilityResult
	Duration string `json:"duration"`
}

// NewCapabilityHandler 创建能力处理器
func NewCapabilityHandler(runner CapabilityRunner, logger *zap.Logger) *CapabilityHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CapabilityHandler{
		runner: runner,
		logger: logger.With(zap.String("component", "capability_handler")),
	}
}

// HandleList 处理 GET /api/v1/capabilities
func (h *CapabilityHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, h.runner.List())
}

// HandleRun 处理 POST /api/v1/capabilities/{name}
func (h *CapabilityHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "capability name is required", h.logger)
		return
	}

	args, ok := h.readArgs(w, r)
	if !ok {
		return
	}

	start := time.Now()
	result, err := h.runner.Run(r.Context(), name, args)
	if err != nil {
		WriteErrorFrom(w, r, err, h.logger)
		return
	}

	WriteSuccess(w, r, RunCapabilityResponse{
		CapabilityResult: types.CapabilityResult{Name: name, Result: result},
		Duration:         time.Since(start).String(),
	})
}

// readArgs 读取 {"args": {...}}；空请求体等同于无参数
func (h *CapabilityHandler) readArgs(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	empty := json.RawMessage(`{}`)
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return empty, true
	}
	if !ValidateContentType(w, r, h.logger) {
		return nil, false
	}

	var req RunCapabilityRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return nil, false
	}
	if len(req.Args) == 0 || string(req.Args) == "null" {
		return empty, true
	}
	return req.Args, true
}
