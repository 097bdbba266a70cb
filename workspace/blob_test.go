package workspace

import (
	"context"
	"testing"

	"github.com/BaSui01/fluxagent/internal/storage/blob"
	"github.com/BaSui01/fluxagent/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBlobUploader_Upload(t *testing.T) {
	store, err := blob.NewLocal(t.TempDir())
	require.NoError(t, err)

	u := NewBlobUploader(store, zap.NewNop())
	require.NoError(t, u.Upload(context.Background(), UploadRequest{
		WorkspaceID:    5,
		Path:           "/sunset.png",
		Data:           []byte("image"),
		ContentType:    "image/png",
		SkipSummarizer: true,
	}))

	data, info, err := blob.ReadAll(context.Background(), store, "workspaces/5/sunset.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("image"), data)
	assert.Equal(t, "image/png", info.ContentType)
	assert.Equal(t, "5", info.Metadata["workspace-id"])
	assert.Equal(t, "true", info.Metadata["skip-summarizer"])
	assert.Equal(t, "blob", u.Name())
}

func TestBlobUploader_Validation(t *testing.T) {
	store, err := blob.NewLocal(t.TempDir())
	require.NoError(t, err)

	err = NewBlobUploader(store, nil).Upload(context.Background(), UploadRequest{WorkspaceID: 0, Path: "a.png"})
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "workspaces/3/a/b.png", Key(3, "/a/b.png"))
}
