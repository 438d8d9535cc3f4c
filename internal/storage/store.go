// Package storage writes uploaded media files to disk or to Aliyun OSS.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloudysky/internal/config"

	"github.com/google/uuid"
)

// FileStore saves an uploaded file and returns the reference stored on the
// media row.
type FileStore interface {
	Save(ctx context.Context, originalName string, r io.Reader) (string, error)
}

// New builds the store selected by MEDIA_BACKEND.
func New(cfg *config.Config) (FileStore, error) {
	switch cfg.MediaBackend {
	case config.MediaBackendOSS:
		return NewOSSStore(cfg.OSSEndpoint, cfg.OSSAccessKeyID, cfg.OSSAccessKeySecret, cfg.OSSBucket)
	case config.MediaBackendDisk, "":
		return NewDiskStore(cfg.MediaDir), nil
	default:
		return nil, fmt.Errorf("unsupported MEDIA_BACKEND %q", cfg.MediaBackend)
	}
}

// objectKey lays files out as media/YYYYMMDD/<uuid><ext>.
func objectKey(originalName string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	if len(ext) > 10 {
		ext = ""
	}
	return path.Join("media", now.Format("20060102"), uuid.NewString()+ext)
}
