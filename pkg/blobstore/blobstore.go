// Package blobstore lists and downloads documents from an Azure Blob
// Storage container.
package blobstore

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// Blob describes a listed blob.
type Blob struct {
	Name string
	Size int64
}

// Store reads blobs from one container.
type Store struct {
	client    *azblob.Client
	container string
	maxSize   int64
}

// DefaultMaxSize caps a single download.
const DefaultMaxSize = 500 << 20

// New connects to the account in connStr and scopes the store to container.
func New(connStr, container string) (*Store, error) {
	client, err := azblob.NewClientFromConnectionString(connStr, nil)
	if err != nil {
		return nil, fmt.Errorf("blobstore: connect: %w", err)
	}
	return &Store{client: client, container: container, maxSize: DefaultMaxSize}, nil
}

// List returns every blob whose name starts with prefix, in service order.
func (s *Store) List(ctx context.Context, prefix string) ([]Blob, error) {
	opts := &azblob.ListBlobsFlatOptions{}
	if prefix != "" {
		opts.Prefix = &prefix
	}
	pager := s.client.NewListBlobsFlatPager(s.container, opts)

	var out []Blob
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("blobstore: list %s/%s: %w", s.container, prefix, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			b := Blob{Name: *item.Name}
			if item.Properties != nil && item.Properties.ContentLength != nil {
				b.Size = *item.Properties.ContentLength
			}
			out = append(out, b)
		}
	}
	return out, nil
}

// Download reads the full content of a blob.
func (s *Store) Download(ctx context.Context, name string) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, name, nil)
	if err != nil {
		return nil, fmt.Errorf("blobstore: download %s: %w", name, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("blobstore: read %s: %w", name, err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("blobstore: %s exceeds %d bytes", name, s.maxSize)
	}
	return data, nil
}
