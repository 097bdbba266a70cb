package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/BaSui01/fluxagent/internal/history"
	"github.com/BaSui01/fluxagent/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// =============================================================================
// 🗂️ Generation History Handler
// =============================================================================

// HistoryReader 读取生成历史（history.Store 实现了它）
type HistoryReader interface {
	List(ctx context.Context, limit int) ([]history.Generation, error)
	Get(ctx context.Context, id string) (*history.Generation, error)
}

// GenerationHandler 生成历史处理器；reader 为 nil 时表示未配置数据库
type GenerationHandler struct {
	reader HistoryReader
	logger *zap.Logger
}

// NewGenerationHandler 创建生成历史处理器
func NewGenerationHandler(reader HistoryReader, logger *zap.Logger) *GenerationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationHandler{
		reader: reader,
		logger: logger.With(zap.String("component", "generation_handler")),
	}
}

// HandleList 处理 GET /api/v1/generations?limit=N
func (h *GenerationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w, r) {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "limit must be a non-negative integer", h.logger)
			return
		}
		limit = n
	}

	items, err := h.reader.List(r.Context(), limit)
	if err != nil {
		WriteError(w, r, types.NewError(types.ErrStorage, "failed to list generations").WithCause(err), h.logger)
		return
	}
	if items == nil {
		items = []history.Generation{}
	}
	WriteSuccess(w, r, items)
}

// HandleGet 处理 GET /api/v1/generations/{id}
func (h *GenerationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w, r) {
		return
	}

	id := r.PathValue("id")
	g, err := h.reader.Get(r.Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		WriteErrorMessage(w, r, http.StatusNotFound, types.ErrInvalidRequest, "generation not found", h.logger)
		return
	}
	if err != nil {
		WriteError(w, r, types.NewError(types.ErrStorage, "failed to load generation").WithCause(err), h.logger)
		return
	}
	WriteSuccess(w, r, g)
}

func (h *GenerationHandler) enabled(w http.ResponseWriter, r *http.Request) bool {
	if h.reader != nil {
		return true
	}
	WriteErrorMessage(w, r, http.StatusNotImplemented, types.ErrConfiguration, "generation history is disabled", h.logger)
	return false
}
