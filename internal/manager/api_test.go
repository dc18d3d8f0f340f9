package manager

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chunkvault/internal/bus"
)

func newTestAPIHandler(t *testing.T) (*API, *Registry, *Directory) {
	t.Helper()
	now := time.Unix(1000, 0)
	registry := NewRegistry(func() time.Time { return now })
	directory := NewDirectory(nil)
	b := bus.NewMemory(4, nil)
	t.Cleanup(func() { b.Close() })
	audit, err := NewAuditLog("", nil)
	if err != nil {
		t.Fatalf("NewAuditLog: %v", err)
	}
	cfg := DefaultConfig()
	cfg.LivenessTimeout = time.Minute
	planner := NewPlanner(registry, directory, b, audit, cfg, nil)
	api := NewAPI("127.0.0.1:0", registry, directory, planner, audit, cfg, nil)
	return api, registry, directory
}

func TestHandleUploadRequestReturnsActiveNodes(t *testing.T) {
	api, registry, _ := newTestAPIHandler(t)
	registry.Upsert("n1", "http://n1", "")
	registry.Upsert("n2", "http://n2", "")

	body, _ := json.Marshal(uploadRequest{Filename: "f.txt"})
	req := httptest.NewRequest(http.MethodPost, "/upload_request", bytes.NewReader(body))
	w := httptest.NewRecorder()
	api.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp uploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	want := []string{"http://n1", "http://n2"}
	if len(resp.NodeURLs) != len(want) {
		t.Fatalf("node_urls = %v, want %v", resp.NodeURLs, want)
	}
	for i, url := range want {
		if resp.NodeURLs[i] != url {
			t.Fatalf("node_urls = %v, want %v", resp.NodeURLs, want)
		}
	}
}

func TestHandleUploadRequestNoActiveNodes(t *testing.T) {
	api, _, _ := newTestAPIHandler(t)

	body, _ := json.Marshal(uploadRequest{Filename: "f.txt"})
	req := httptest.NewRequest(http.MethodPost, "/upload_request", bytes.NewReader(body))
	w := httptest.NewRecorder()
	api.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestHandleDownloadLocationNotFound(t *testing.T) {
	api, _, _ := newTestAPIHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/download_location/missing.txt", nil)
	w := httptest.NewRecorder()
	api.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestHandleDownloadLocationFound(t *testing.T) {
	api, registry, directory := newTestAPIHandler(t)
	registry.Upsert("n1", "http://n1", "")
	directory.Register("f.txt", 0, "http://n1", 1)

	req := httptest.NewRequest(http.MethodGet, "/download_location/f.txt", nil)
	w := httptest.NewRecorder()
	api.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp downloadLocationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Locations[0] != "http://n1" {
		t.Fatalf("unexpected locations: %+v", resp.Locations)
	}
}

func TestHandleRemoveThenDownloadLocationNotFound(t *testing.T) {
	api, registry, directory := newTestAPIHandler(t)
	registry.Upsert("n1", "http://n1", "")
	directory.Register("f.txt", 0, "http://n1", 1)

	req := httptest.NewRequest(http.MethodDelete, "/remove/f.txt", nil)
	w := httptest.NewRecorder()
	api.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("remove status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/download_location/f.txt", nil)
	w = httptest.NewRecorder()
	api.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after remove, got %d", w.Code)
	}
}

func TestHandleHealthz(t *testing.T) {
	api, _, _ := newTestAPIHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	api.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestRunRespectsContextCancellation(t *testing.T) {
	api, _, _ := newTestAPIHandler(t)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- api.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
