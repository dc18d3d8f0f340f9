// Package manager implements the control plane: the node registry, file
// directory, replication planner, liveness sweep, and the HTTP API storage
// nodes and clients talk to.
package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"chunkvault/internal/logging"
)

// API is the manager's HTTP surface:
//
//   - POST   /upload_request         -> active node set for a new file
//   - GET    /download_location/{filename} -> chunk -> node_url map
//   - GET    /list                   -> every known file and its chunk map
//   - DELETE /remove/{filename}      -> drop a file's directory entry, best-effort delete fanout
//   - GET    /healthz                -> liveness probe
//   - GET    /config                 -> current tunables, for operator inspection
type API struct {
	addr     string
	listener net.Listener
	server   *http.Server

	registry  *Registry
	directory *Directory
	planner   *Planner
	audit     *AuditLog
	cfg       Config
	tunables  *TunablesStore
	logger    *slog.Logger

	deleteClient *http.Client
}

// SetTunables attaches a live TunablesStore so /config reports the current
// hot-reloaded values instead of the values the API was started with.
func (a *API) SetTunables(store *TunablesStore) {
	a.tunables = store
}

// NewAPI builds the manager's HTTP API over the given components.
func NewAPI(addr string, registry *Registry, directory *Directory, planner *Planner, audit *AuditLog, cfg Config, logger *slog.Logger) *API {
	return &API{
		addr:      addr,
		registry:  registry,
		directory: directory,
		planner:   planner,
		audit:     audit,
		cfg:       cfg,
		logger:    logging.Default(logger).With("component", "manager", "part", "api"),
		deleteClient: &http.Client{
			Timeout: cfg.RPCTimeout,
		},
	}
}

// Handler builds the manager's HTTP routes. Exported so tests (and anything
// embedding the manager API behind its own listener) can exercise it
// directly without binding a socket.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload_request", a.handleUploadRequest)
	mux.HandleFunc("GET /download_location/{filename}", a.handleDownloadLocation)
	mux.HandleFunc("GET /list", a.handleList)
	mux.HandleFunc("DELETE /remove/{filename}", a.handleRemove)
	mux.HandleFunc("GET /healthz", a.handleHealthz)
	mux.HandleFunc("GET /config", a.handleConfig)
	return mux
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (a *API) Run(ctx context.Context) error {
	a.server = &http.Server{Handler: a.Handler()}

	var err error
	a.listener, err = net.Listen("tcp", a.addr)
	if err != nil {
		return err
	}
	a.logger.Info("manager api starting", "addr", a.listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Serve(a.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("manager api stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Addr returns the listener address. Only valid after Run has started.
func (a *API) Addr() net.Addr {
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

type uploadRequest struct {
	Filename string `json:"filename"`
}

type uploadResponse struct {
	NodeURLs []string `json:"node_urls"` // every currently active node, insertion order
}

// handleUploadRequest returns the currently active node set so the client
// can place chunk i on NodeURLs[i mod len(NodeURLs)] itself. Placement is
// stateless: the manager does not register anything here — the storage node
// that stores a chunk registers it, via the bus.
func (a *API) handleUploadRequest(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Filename == "" {
		http.Error(w, "filename is required", http.StatusBadRequest)
		return
	}

	active := a.registry.ActiveURLs(tunables(a.tunables, a.cfg).LivenessTimeout)
	if len(active) == 0 {
		http.Error(w, "no active storage nodes", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{NodeURLs: active})
}

type downloadLocationResponse struct {
	TotalChunks int            `json:"total_chunks"`
	Locations   map[int]string `json:"locations"` // chunk_index -> node_url
}

// handleDownloadLocation returns one active holder per chunk index of
// filename. 404 if the filename is unknown or every holder is inactive.
func (a *API) handleDownloadLocation(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	liveness := tunables(a.tunables, a.cfg).LivenessTimeout
	locations, totalChunks, ok := a.directory.DownloadLocations(filename, func(nodeURL string) bool {
		return a.registry.IsURLActive(nodeURL, liveness)
	})
	if !ok {
		http.Error(w, "file not found or no active replica", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, downloadLocationResponse{TotalChunks: totalChunks, Locations: locations})
}

type listEntry struct {
	Filename    string           `json:"filename"`
	TotalChunks int              `json:"total_chunks"`
	Chunks      map[int][]string `json:"chunks"` // chunk_index -> replica node_urls
}

// handleList returns every known filename, its declared chunk count, and
// its chunk map (every replica URL per chunk index, in flight or committed).
func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	snap := a.directory.List()
	entries := make([]listEntry, 0, len(snap))
	for filename, fs := range snap {
		chunks := make(map[int][]string, len(fs.Chunks))
		for idx, replicas := range fs.Chunks {
			for _, rep := range replicas {
				chunks[idx] = append(chunks[idx], rep.NodeURL)
			}
		}
		entries = append(entries, listEntry{Filename: filename, TotalChunks: fs.TotalChunks, Chunks: chunks})
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleRemove drops filename's directory entry and best-effort fans out
// one delete RPC per (chunk, replica) to every node that held a chunk of
// it. A node being unreachable does not fail the request: the directory
// entry is authoritative, and an orphaned chunk on an unreachable node is
// harmless until that node rejoins, at which point it simply serves no
// directory entry.
func (a *API) handleRemove(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	byNode, ok := a.directory.Remove(filename)
	if !ok {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	for nodeURL, indices := range byNode {
		for _, idx := range indices {
			go a.deleteOnNode(nodeURL, filename, idx)
		}
	}

	a.audit.Write("REMOVE", filename)
	w.WriteHeader(http.StatusOK)
}

func (a *API) deleteOnNode(nodeURL, filename string, chunkIndex int) {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.RPCTimeout)
	defer cancel()

	chunkFilename := fmt.Sprintf("%s.chunk%d", filename, chunkIndex)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, nodeURL+"/delete/"+chunkFilename, nil)
	if err != nil {
		a.logger.Warn("build delete RPC", "node_url", nodeURL, "chunk_filename", chunkFilename, "error", err)
		return
	}
	resp, err := a.deleteClient.Do(req)
	if err != nil {
		a.logger.Warn("delete RPC failed", "node_url", nodeURL, "chunk_filename", chunkFilename, "error", err)
		return
	}
	resp.Body.Close()
}

// handleHealthz is a plain liveness probe, independent of node/file state.
func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleConfig exposes the manager's current tunables, for operator
// inspection.
func (a *API) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg := a.cfg
	t := tunables(a.tunables, a.cfg)
	cfg.ReplicationFactor = t.ReplicationFactor
	cfg.LivenessTimeout = t.LivenessTimeout
	cfg.SweepInterval = t.SweepInterval
	cfg.GracePeriod = t.GracePeriod
	writeJSON(w, http.StatusOK, cfg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
