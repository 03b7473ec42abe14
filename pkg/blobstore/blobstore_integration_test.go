//go:build integration

package blobstore

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// Requires an Azurite or real account in AZ_STORAGE_STRING.
func TestListAndDownload(t *testing.T) {
	conn := os.Getenv("AZ_STORAGE_STRING")
	if conn == "" {
		t.Skip("AZ_STORAGE_STRING not set")
	}
	ctx := context.Background()
	client, err := azblob.NewClientFromConnectionString(conn, nil)
	if err != nil {
		t.Fatal(err)
	}
	container := "docsearch-it"
	_, _ = client.CreateContainer(ctx, container, nil)
	t.Cleanup(func() { _, _ = client.DeleteContainer(ctx, container, nil) })

	if _, err := client.UploadBuffer(ctx, container, "reports/q3.pdf", []byte("%PDF-1.4"), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := client.UploadBuffer(ctx, container, "reports/empty.pdf", nil, nil); err != nil {
		t.Fatal(err)
	}

	s, err := New(conn, container)
	if err != nil {
		t.Fatal(err)
	}
	blobs, err := s.List(ctx, "reports/")
	if err != nil {
		t.Fatal(err)
	}
	if len(blobs) != 2 {
		t.Fatalf("expected 2 blobs, got %+v", blobs)
	}
	data, err := s.Download(ctx, "reports/q3.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte("%PDF-1.4")) {
		t.Fatalf("unexpected content %q", data)
	}
}
