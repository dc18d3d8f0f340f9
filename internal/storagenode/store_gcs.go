package storagenode

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSStore persists chunk blobs as objects in one Google Cloud Storage
// bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStore builds a GCSStore using application-default credentials.
func NewGCSStore(ctx context.Context, bucket, prefix string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storagenode: create gcs client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, prefix: prefix}, nil
}

func (g *GCSStore) objectName(key string) string {
	return g.prefix + key
}

func (g *GCSStore) Put(ctx context.Context, key string, body io.Reader) error {
	w := g.client.Bucket(g.bucket).Object(g.objectName(key)).NewWriter(ctx)
	if _, err := io.Copy(w, body); err != nil {
		w.Close()
		return fmt.Errorf("storagenode: gcs write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("storagenode: gcs finalize %s: %w", key, err)
	}
	return nil
}

func (g *GCSStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := g.client.Bucket(g.bucket).Object(g.objectName(key)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("storagenode: gcs read %s: %w", key, err)
	}
	return r, nil
}

func (g *GCSStore) Delete(ctx context.Context, key string) error {
	err := g.client.Bucket(g.bucket).Object(g.objectName(key)).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("storagenode: gcs delete %s: %w", key, err)
	}
	return nil
}
