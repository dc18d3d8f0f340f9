package storagenode

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureStore persists chunk blobs as block blobs in one Azure Storage
// container.
type AzureStore struct {
	client    *azblob.Client
	container string
	prefix    string
}

// NewAzureStore builds an AzureStore from a full service URL (including SAS
// token or relying on a configured credential).
func NewAzureStore(serviceURL, container, prefix string) (*AzureStore, error) {
	client, err := azblob.NewClientWithNoCredential(serviceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("storagenode: create azure blob client: %w", err)
	}
	return &AzureStore{client: client, container: container, prefix: prefix}, nil
}

func (a *AzureStore) blobName(key string) string {
	return a.prefix + key
}

func (a *AzureStore) Put(ctx context.Context, key string, body io.Reader) error {
	buf, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("storagenode: buffer chunk body: %w", err)
	}
	_, err = a.client.UploadBuffer(ctx, a.container, a.blobName(key), buf, nil)
	if err != nil {
		return fmt.Errorf("storagenode: azure upload %s: %w", key, err)
	}
	return nil
}

func (a *AzureStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := a.client.DownloadStream(ctx, a.container, a.blobName(key), nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("storagenode: azure download %s: %w", key, err)
	}
	return resp.Body, nil
}

func (a *AzureStore) Delete(ctx context.Context, key string) error {
	_, err := a.client.DeleteBlob(ctx, a.container, a.blobName(key), nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("storagenode: azure delete %s: %w", key, err)
	}
	return nil
}
