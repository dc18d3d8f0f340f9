package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"chunkvault/internal/logging"
)

// Client is the chunking/assembly client library. One Client talks to
// one manager and whatever storage nodes the manager names in its
// responses.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// New builds a Client against the given Config.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.RPCTimeout <= 0 {
		cfg.RPCTimeout = DefaultConfig().RPCTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RPCTimeout},
		logger:     logging.Default(logger).With("component", "client"),
	}
}

type uploadRequestBody struct {
	Filename string `json:"filename"`
}

type uploadRequestResponse struct {
	NodeURLs []string `json:"node_urls"`
}

// requestPlacement asks the manager for the currently active node set.
// Placement is the client's own responsibility: chunk i goes to
// nodeURLs[i%len(nodeURLs)].
func (c *Client) requestPlacement(ctx context.Context, filename string) ([]string, error) {
	body, err := json.Marshal(uploadRequestBody{Filename: filename})
	if err != nil {
		return nil, fmt.Errorf("client: encode upload_request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ManagerURL+"/upload_request", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("client: build upload_request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: upload_request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusServiceUnavailable:
		return nil, ErrNoNodesAvailable
	default:
		return nil, fmt.Errorf("client: upload_request returned status %d", resp.StatusCode)
	}

	var out uploadRequestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("client: decode upload_request response: %w", err)
	}
	return out.NodeURLs, nil
}

type downloadLocationResponse struct {
	TotalChunks int            `json:"total_chunks"`
	Locations   map[int]string `json:"locations"`
}

// downloadLocation asks the manager for one active holder per chunk index
// of filename.
func (c *Client) downloadLocation(ctx context.Context, filename string) (downloadLocationResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ManagerURL+"/download_location/"+filename, nil)
	if err != nil {
		return downloadLocationResponse{}, fmt.Errorf("client: build download_location: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return downloadLocationResponse{}, fmt.Errorf("client: download_location: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return downloadLocationResponse{}, ErrNotFound
	default:
		return downloadLocationResponse{}, fmt.Errorf("client: download_location returned status %d", resp.StatusCode)
	}

	var out downloadLocationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return downloadLocationResponse{}, fmt.Errorf("client: decode download_location response: %w", err)
	}
	return out, nil
}

// ListEntry describes one file known to the manager.
type ListEntry struct {
	Filename    string `json:"filename"`
	TotalChunks int    `json:"total_chunks"`
}

// List returns every file the manager currently knows about.
func (c *Client) List(ctx context.Context) ([]ListEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ManagerURL+"/list", nil)
	if err != nil {
		return nil, fmt.Errorf("client: build list request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: list: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("client: list returned status %d", resp.StatusCode)
	}

	var entries []ListEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("client: decode list response: %w", err)
	}
	return entries, nil
}

// Remove asks the manager to drop filename's directory entry and fan out
// best-effort delete RPCs to every known replica.
func (c *Client) Remove(ctx context.Context, filename string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.cfg.ManagerURL+"/remove/"+filename, nil)
	if err != nil {
		return fmt.Errorf("client: build remove request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: remove: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("client: remove returned status %d", resp.StatusCode)
	}
}

// drainAndClose discards and closes a response body, used where only the
// status code matters.
func drainAndClose(rc io.ReadCloser) {
	io.Copy(io.Discard, rc)
	rc.Close()
}
