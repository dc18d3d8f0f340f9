package client

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestUploadGlobUploadsAllMatches(t *testing.T) {
	tc := newTestCluster(t, 1)
	c := New(Config{ManagerURL: tc.managerSrv.URL}, nil)

	root := t.TempDir()
	mustWrite := func(rel string, body string) {
		full := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(full, []byte(body), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	mustWrite("logs/a.log.gz", "aaa")
	mustWrite("logs/nested/b.log.gz", "bbb")
	mustWrite("notes.txt", "ignored")

	ctx := context.Background()
	results, err := c.UploadGlob(ctx, root, "logs/**/*.gz")
	if err != nil {
		t.Fatalf("UploadGlob: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d upload results, want 2", len(results))
	}
}
