package storagenode

import (
	"bytes"
	"context"
	"io"
	"testing"
)

func TestCompressedStoreZstdRoundTrip(t *testing.T) {
	local, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	store, err := NewCompressedStore(local, CodecZstd)
	if err != nil {
		t.Fatalf("NewCompressedStore: %v", err)
	}

	ctx := context.Background()
	want := bytes.Repeat([]byte("chunk-body-data"), 1000)
	if err := store.Put(ctx, "f.chunk0", bytes.NewReader(want)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	rc, err := store.Open(ctx, "f.chunk0")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("round-tripped data does not match original")
	}

	// The on-disk blob must actually be compressed (smaller than raw).
	raw, err := local.Open(ctx, "f.chunk0")
	if err != nil {
		t.Fatalf("local Open: %v", err)
	}
	defer raw.Close()
	rawBytes, _ := io.ReadAll(raw)
	if len(rawBytes) >= len(want) {
		t.Fatalf("expected compressed blob (%d bytes) to be smaller than original (%d bytes)", len(rawBytes), len(want))
	}
}

func TestCompressedStoreBrotliRoundTrip(t *testing.T) {
	local, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	store, err := NewCompressedStore(local, CodecBrotli)
	if err != nil {
		t.Fatalf("NewCompressedStore: %v", err)
	}

	ctx := context.Background()
	want := []byte("small body")
	if err := store.Put(ctx, "f.chunk0", bytes.NewReader(want)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	rc, err := store.Open(ctx, "f.chunk0")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNewCompressedStoreNoneReturnsInnerUnchanged(t *testing.T) {
	local, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	store, err := NewCompressedStore(local, CodecNone)
	if err != nil {
		t.Fatalf("NewCompressedStore: %v", err)
	}
	if store != Store(local) {
		t.Fatal("expected CodecNone to return the inner store unchanged")
	}
}
