// Package blob stores generated images on the local filesystem or in an
// S3-compatible bucket behind one Store interface.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/BaSui01/fluxagent/config"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("blob: object not found")

type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	Metadata    map[string]string
	// Location is a human readable address: a filesystem path or s3:// URI.
	Location string
}

type Store interface {
	Put(ctx context.Context, key string, body io.Reader, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	// Location returns where key is (or would be) stored.
	Location(key string) string
}

// New builds the backend selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "blob_store"))

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "s3":
		awsCfg, err := loadS3Config(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("load s3 config: %w", err)
		}
		logger.Info("using s3 blob store", zap.String("bucket", cfg.S3.Bucket), zap.String("prefix", cfg.S3.Prefix))
		return newS3Store(cfg.S3, awsCfg)
	case "", "local":
		logger.Info("using local blob store", zap.String("directory", cfg.Directory))
		return newLocalStore(cfg.Directory)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// ReadAll fetches key fully into memory.
func ReadAll(ctx context.Context, s Store, key string) ([]byte, ObjectInfo, error) {
	rc, info, err := s.Get(ctx, key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	if info.Size == 0 {
		info.Size = int64(len(data))
	}
	return data, info, nil
}
