package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// OSSStore uploads files to an Aliyun OSS bucket.
type OSSStore struct {
	bucket   *oss.Bucket
	endpoint string
	name     string
	now      func() time.Time
}

// NewOSSStore connects to bucket at endpoint.
func NewOSSStore(endpoint, accessKeyID, accessKeySecret, bucket string) (*OSSStore, error) {
	client, err := oss.New(endpoint, accessKeyID, accessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("oss client: %w", err)
	}
	b, err := client.Bucket(bucket)
	if err != nil {
		return nil, fmt.Errorf("oss bucket: %w", err)
	}
	return &OSSStore{bucket: b, endpoint: endpoint, name: bucket, now: time.Now}, nil
}

// Save uploads r and returns the object's public URL.
func (s *OSSStore) Save(ctx context.Context, originalName string, r io.Reader) (string, error) {
	key := objectKey(originalName, s.now())
	if err := s.bucket.PutObject(key, r, oss.WithContext(ctx)); err != nil {
		return "", fmt.Errorf("oss put %s: %w", key, err)
	}
	return fmt.Sprintf("https://%s.%s/%s", s.name, s.endpoint, key), nil
}
