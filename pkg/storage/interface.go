package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"
)

var ErrNotFound = errors.New("object not found")

// StorageProvider is a read-only view over the bucket or directory holding
// model artifacts.
type StorageProvider interface {
	Download(ctx context.Context, key string) (*DownloadResponse, error)
	ListFiles(ctx context.Context, prefix string) ([]*FileInfo, error)
	FileExists(ctx context.Context, key string) (bool, error)
	GetFileInfo(ctx context.Context, key string) (*FileInfo, error)
	Name() string
}

type DownloadResponse struct {
	Reader       io.ReadCloser     `json:"-"`
	Size         int64             `json:"size"`
	ContentType  string            `json:"content_type"`
	Metadata     map[string]string `json:"metadata"`
	LastModified time.Time         `json:"last_modified"`
	ETag         string            `json:"etag"`
}

type FileInfo struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size"`
	ContentType  string            `json:"content_type"`
	LastModified time.Time         `json:"last_modified"`
	ETag         string            `json:"etag"`
	Metadata     map[string]string `json:"metadata"`
	URL          string            `json:"url"`
}

// ReadFile downloads key in full. A missing object yields an error wrapping
// ErrNotFound.
func ReadFile(ctx context.Context, provider StorageProvider, key string) ([]byte, error) {
	exists, err := provider.FileExists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}

	resp, err := provider.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer resp.Reader.Close()

	data, err := io.ReadAll(resp.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// JoinKey joins object key segments with forward slashes regardless of OS.
func JoinKey(parts ...string) string {
	return path.Join(parts...)
}
