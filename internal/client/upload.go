package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"

	"chunkvault/internal/chunkproto"
)

// ChunkUploadError records a per-chunk upload failure: a failed chunk is
// reported but does not abort the remaining chunks.
type ChunkUploadError struct {
	ChunkIndex int
	Err        error
}

func (e *ChunkUploadError) Error() string {
	return fmt.Sprintf("chunk %d: %v", e.ChunkIndex, e.Err)
}

func (e *ChunkUploadError) Unwrap() error { return e.Err }

// chunkCount returns how many ChunkSize pieces size splits into, rounding
// the final piece up. A zero-byte file yields zero chunks.
func chunkCount(size int64) int {
	return int((size + ChunkSize - 1) / ChunkSize)
}

// UploadResult summarizes one UploadFile call.
type UploadResult struct {
	Filename    string
	TotalChunks int
	// Failed holds one *ChunkUploadError per chunk that failed to upload;
	// a non-empty Failed means the stored file is under-complete.
	Failed []error
}

// UploadFile splits path into ChunkSize chunks, asks the manager for the
// active node set, and places each chunk round-robin across it before
// uploading. A zero-byte file produces zero chunks and is not registered
// anywhere — this is intentional, not a bug.
func (c *Client) UploadFile(ctx context.Context, path, filename string) (UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return UploadResult{}, fmt.Errorf("client: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return UploadResult{}, fmt.Errorf("client: stat %s: %w", path, err)
	}

	totalChunks := chunkCount(info.Size())
	if totalChunks == 0 {
		return UploadResult{Filename: filename}, nil
	}

	nodeURLs, err := c.requestPlacement(ctx, filename)
	if err != nil {
		return UploadResult{}, err
	}
	if len(nodeURLs) == 0 {
		return UploadResult{}, ErrNoNodesAvailable
	}

	result := UploadResult{Filename: filename, TotalChunks: totalChunks}
	buf := make([]byte, ChunkSize)

	for i := 0; i < totalChunks; i++ {
		n, readErr := io.ReadFull(f, buf)
		if readErr != nil && readErr != io.ErrUnexpectedEOF && readErr != io.EOF {
			result.Failed = append(result.Failed, &ChunkUploadError{ChunkIndex: i, Err: readErr})
			continue
		}
		body := buf[:n]

		nodeURL := nodeURLs[i%len(nodeURLs)]
		if err := c.uploadChunk(ctx, nodeURL, filename, i, totalChunks, body); err != nil {
			result.Failed = append(result.Failed, &ChunkUploadError{ChunkIndex: i, Err: err})
		}
	}

	return result, nil
}

func (c *Client) uploadChunk(ctx context.Context, nodeURL, filename string, chunkIndex, totalChunks int, body []byte) error {
	var form bytes.Buffer
	w := multipart.NewWriter(&form)

	if err := w.WriteField("filename", filename); err != nil {
		return fmt.Errorf("build upload form: %w", err)
	}
	if err := w.WriteField("chunk_index", strconv.Itoa(chunkIndex)); err != nil {
		return fmt.Errorf("build upload form: %w", err)
	}

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("build upload form: %w", err)
	}
	if err := chunkproto.WriteHeader(part, chunkproto.Header{
		ChunkIndex:  chunkIndex,
		Filename:    filename,
		TotalChunks: totalChunks,
		MD5:         chunkproto.Digest(body),
	}); err != nil {
		return fmt.Errorf("write chunk header: %w", err)
	}
	if _, err := part.Write(body); err != nil {
		return fmt.Errorf("write chunk body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, nodeURL+"/upload", &form)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload to %s: %w", nodeURL, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("node %s returned status %d for chunk %d", nodeURL, resp.StatusCode, chunkIndex)
	}
	return nil
}
