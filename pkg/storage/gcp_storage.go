package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type GCPStorage struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewGCPStorage(ctx context.Context, bucket, prefix, credentialsFile string) (*GCPStorage, error) {
	if bucket == "" {
		return nil, errors.New("bucket cannot be empty")
	}

	var client *storage.Client
	var err error

	if credentialsFile != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(credentialsFile))
	} else {
		client, err = storage.NewClient(ctx)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create GCP storage client: %w", err)
	}

	return &GCPStorage{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

func (g *GCPStorage) Name() string {
	return "gcs"
}

func (g *GCPStorage) Download(ctx context.Context, key string) (*DownloadResponse, error) {
	object := g.client.Bucket(g.bucket).Object(g.objectKey(key))

	reader, err := object.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to create reader: %w", err)
	}

	return &DownloadResponse{
		Reader:       reader,
		Size:         reader.Attrs.Size,
		ContentType:  reader.Attrs.ContentType,
		LastModified: reader.Attrs.LastModified,
	}, nil
}

func (g *GCPStorage) ListFiles(ctx context.Context, prefix string) ([]*FileInfo, error) {
	query := &storage.Query{
		Prefix: g.objectKey(prefix),
	}

	var files []*FileInfo

	it := g.client.Bucket(g.bucket).Objects(ctx, query)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate objects: %w", err)
		}

		files = append(files, &FileInfo{
			Key:          strings.TrimPrefix(strings.TrimPrefix(attrs.Name, g.prefix), "/"),
			Size:         attrs.Size,
			ContentType:  attrs.ContentType,
			LastModified: attrs.Updated,
			ETag:         attrs.Etag,
			Metadata:     attrs.Metadata,
			URL:          g.generateURL(attrs.Name),
		})
	}

	return files, nil
}

func (g *GCPStorage) FileExists(ctx context.Context, key string) (bool, error) {
	_, err := g.client.Bucket(g.bucket).Object(g.objectKey(key)).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (g *GCPStorage) GetFileInfo(ctx context.Context, key string) (*FileInfo, error) {
	objectKey := g.objectKey(key)
	attrs, err := g.client.Bucket(g.bucket).Object(objectKey).Attrs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get object attributes: %w", err)
	}

	return &FileInfo{
		Key:          key,
		Size:         attrs.Size,
		ContentType:  attrs.ContentType,
		LastModified: attrs.Updated,
		ETag:         attrs.Etag,
		Metadata:     attrs.Metadata,
		URL:          g.generateURL(objectKey),
	}, nil
}

func (g *GCPStorage) Close() error {
	return g.client.Close()
}

func (g *GCPStorage) objectKey(key string) string {
	if g.prefix == "" {
		return key
	}
	return JoinKey(g.prefix, key)
}

func (g *GCPStorage) generateURL(objectKey string) string {
	return fmt.Sprintf("gs://%s/%s", g.bucket, objectKey)
}
