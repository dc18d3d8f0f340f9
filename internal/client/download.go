package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"chunkvault/internal/chunkproto"
)

// DownloadFile reassembles filename from whatever active replicas the
// manager names, verifying every chunk's digest before it is written.
// Any integrity mismatch aborts the whole download; no partial file is
// left at destPath.
func (c *Client) DownloadFile(ctx context.Context, filename, destPath string) error {
	loc, err := c.downloadLocation(ctx, filename)
	if err != nil {
		return err
	}

	chunks := make([][]byte, loc.TotalChunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.downloadConcurrency())

	for idx, nodeURL := range loc.Locations {
		idx, nodeURL := idx, nodeURL
		g.Go(func() error {
			body, err := c.fetchChunk(gctx, nodeURL, filename, idx)
			if err != nil {
				return err
			}
			chunks[idx] = body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for idx, body := range chunks {
		if body == nil {
			return fmt.Errorf("client: no active replica for chunk %d of %s: %w", idx, filename, ErrNotFound)
		}
	}

	return writeAtomically(destPath, chunks)
}

func (c *Client) fetchChunk(ctx context.Context, nodeURL, filename string, chunkIndex int) ([]byte, error) {
	chunkFilename := fmt.Sprintf("%s.chunk%d", filename, chunkIndex)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, nodeURL+"/download/"+chunkFilename, nil)
	if err != nil {
		return nil, fmt.Errorf("client: build download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: fetch chunk %d from %s: %w", chunkIndex, nodeURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("client: chunk %d missing on %s: %w", chunkIndex, nodeURL, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("client: node %s returned status %d for chunk %d", nodeURL, resp.StatusCode, chunkIndex)
	}

	br := chunkproto.NewBodyReader(resp.Body)
	header, err := chunkproto.ReadHeader(br)
	if err != nil {
		return nil, fmt.Errorf("client: read chunk %d header: %w", chunkIndex, err)
	}

	body, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("client: read chunk %d body: %w", chunkIndex, err)
	}

	if header.MD5 != chunkproto.Digest(body) {
		return nil, fmt.Errorf("client: chunk %d of %s: %w", chunkIndex, filename, ErrIntegrityMismatch)
	}
	return body, nil
}

// writeAtomically concatenates chunks in order into a temp file alongside
// destPath and renames it into place, so a crash mid-write never leaves a
// partial file at destPath.
func writeAtomically(destPath string, chunks [][]byte) error {
	dir := filepath.Dir(destPath)
	tmp, err := os.CreateTemp(dir, ".chunkvault-download-*")
	if err != nil {
		return fmt.Errorf("client: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	for _, body := range chunks {
		if _, err := tmp.Write(body); err != nil {
			tmp.Close()
			return fmt.Errorf("client: write assembled file: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("client: close assembled file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("client: rename into place: %w", err)
	}
	return nil
}
