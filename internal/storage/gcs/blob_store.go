// Package gcs mirrors the written dataset to a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
)

// ParquetContentType is the registered media type for Parquet files.
const ParquetContentType = "application/vnd.apache.parquet"

// Config captures the target bucket and object.
type Config struct {
	Bucket string
	Object string
}

// Mirror uploads dataset files to a configured GCS object.
type Mirror struct {
	client *storage.Client
	bucket string
	object string
}

// New creates a GCS-backed dataset mirror.
func New(client *storage.Client, cfg Config) (*Mirror, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if strings.TrimSpace(cfg.Object) == "" {
		return nil, fmt.Errorf("object name is required")
	}
	return &Mirror{
		client: client,
		bucket: cfg.Bucket,
		object: strings.TrimLeft(cfg.Object, "/"),
	}, nil
}

// Upload copies the local file to the bucket, recording the checksum as
// object metadata, and returns the gs:// URI.
func (m *Mirror) Upload(ctx context.Context, path, checksum string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return "", fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()
	return m.put(ctx, f, checksum)
}

func (m *Mirror) put(ctx context.Context, r io.Reader, checksum string) (string, error) {
	writer := m.client.Bucket(m.bucket).Object(m.object).NewWriter(ctx)
	writer.ContentType = ParquetContentType
	if checksum != "" {
		writer.Metadata = map[string]string{"sha256": checksum}
	}
	if _, err := io.Copy(writer, r); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", m.bucket, m.object), nil
}
