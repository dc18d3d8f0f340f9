package storagenode

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

func TestLocalStorePutOpenDelete(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "f.txt.chunk0", bytes.NewReader([]byte("hello"))); err != nil {
		t.Fatalf("Put: %v", err)
	}

	rc, err := store.Open(ctx, "f.txt.chunk0")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("data = %q, want hello", data)
	}

	if err := store.Delete(ctx, "f.txt.chunk0"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "f.txt.chunk0"); err != nil {
		t.Fatalf("second Delete should be idempotent, got: %v", err)
	}

	if _, err := store.Open(ctx, "f.txt.chunk0"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("Open after delete = %v, want ErrNotExist", err)
	}
}

func TestLocalStoreOpenMissingReturnsErrNotExist(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	if _, err := store.Open(context.Background(), "missing.chunk0"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("Open = %v, want ErrNotExist", err)
	}
}
