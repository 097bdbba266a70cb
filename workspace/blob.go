package workspace

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/BaSui01/fluxagent/internal/storage/blob"
	"github.com/BaSui01/fluxagent/types"
	"go.uber.org/zap"
)

// BlobUploader writes workspace files into a blob.Store under
// workspaces/{id}/{path}.
type BlobUploader struct {
	store  blob.Store
	logger *zap.Logger
}

func NewBlobUploader(store blob.Store, logger *zap.Logger) *BlobUploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlobUploader{store: store, logger: logger.With(zap.String("component", "workspace_blob"))}
}

func (u *BlobUploader) Name() string { return "blob" }

// Key returns the object key for a workspace file.
func Key(workspaceID int, p string) string {
	return fmt.Sprintf("workspaces/%d/%s", workspaceID, strings.TrimPrefix(p, "/"))
}

func (u *BlobUploader) Upload(ctx context.Context, req UploadRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	key := Key(req.WorkspaceID, req.Path)
	info, err := u.store.Put(ctx, key, bytes.NewReader(req.Data), blob.PutOptions{
		ContentType: req.ContentType,
		Metadata: map[string]string{
			"workspace-id":    strconv.Itoa(req.WorkspaceID),
			"skip-summarizer": strconv.FormatBool(req.SkipSummarizer),
		},
	})
	if err != nil {
		return types.NewUploadError("store workspace file", err)
	}

	u.logger.Info("file stored in workspace bucket",
		zap.Int("workspace_id", req.WorkspaceID),
		zap.String("location", info.Location),
	)
	return nil
}
