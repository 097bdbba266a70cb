package workspace

import (
	"context"
	"strings"

	"github.com/BaSui01/fluxagent/types"
)

// UploadRequest is one file destined for a caller's workspace.
type UploadRequest struct {
	WorkspaceID    int
	Path           string
	Data           []byte
	ContentType    string
	SkipSummarizer bool
}

// Validate checks the request before any I/O.
func (r UploadRequest) Validate() error {
	if r.WorkspaceID <= 0 {
		return types.NewError(types.ErrInvalidRequest, "workspace id must be positive")
	}
	if strings.TrimSpace(r.Path) == "" {
		return types.NewError(types.ErrInvalidRequest, "upload path must not be empty")
	}
	if strings.Contains(r.Path, "..") {
		return types.NewError(types.ErrInvalidRequest, "upload path must not contain '..'")
	}
	return nil
}

// Uploader stores generated files in a remote workspace.
type Uploader interface {
	Upload(ctx context.Context, req UploadRequest) error
	Name() string
}

// NopUploader rejects every upload; used when workspace mode is "none".
type NopUploader struct{}

func (NopUploader) Name() string { return "none" }

func (NopUploader) Upload(ctx context.Context, req UploadRequest) error {
	return types.NewUploadError("workspace uploads are disabled", nil)
}
