package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// UploadGlob expands pattern (a doublestar glob rooted at root, e.g.
// "logs/**/*.gz") and uploads every matched file with UploadFile, using its
// path relative to root as the stored filename. One file's error does not
// stop the rest of the batch; all per-file errors are returned together.
func (c *Client) UploadGlob(ctx context.Context, root, pattern string) ([]UploadResult, error) {
	matches, err := doublestar.Glob(os.DirFS(root), pattern)
	if err != nil {
		return nil, fmt.Errorf("client: glob %s: %w", pattern, err)
	}

	var results []UploadResult
	var errs []error
	for _, rel := range matches {
		full := filepath.Join(root, rel)
		result, err := c.UploadFile(ctx, full, rel)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", rel, err))
			continue
		}
		results = append(results, result)
	}

	if len(errs) > 0 {
		return results, fmt.Errorf("client: %d of %d uploads failed: %w", len(errs), len(matches), errors.Join(errs...))
	}
	return results, nil
}
