package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchFileInvokesReloadOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"version": 1, "config": {}}`), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	reloaded := make(chan string, 4)
	fw, err := WatchFile(path, nil, func(p string) error {
		reloaded <- p
		return nil
	})
	if err != nil {
		t.Fatalf("WatchFile: %v", err)
	}
	defer fw.Close()

	body := `{"version": 1, "config": {"replication_factor": 5}}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload callback")
	}
}

func TestFileWatcherCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"version": 1, "config": {}}`), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	fw, err := WatchFile(path, nil, func(string) error { return nil })
	if err != nil {
		t.Fatalf("WatchFile: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
