// Package storage keeps generated report artifacts in a local directory or
// an S3-compatible object store.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/bill-audit/internal/common"
)

// PutObjectOptions define optional parameters for uploading objects. Size is
// the exact number of bytes, or -1 when unknown.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about a stored artifact.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// ArtifactStore stores report artifacts by key. Get of a missing key returns
// an error wrapping common.ErrNotFound.
type ArtifactStore interface {
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// New selects the backend named in cfg.
func New(cfg common.StorageConfig, logger *slog.Logger) (ArtifactStore, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocal(cfg.ReportDir)
	case "minio":
		return NewMinIO(cfg.MinIO, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
