package storagenode

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustinkirkland/golang-petname"
	"github.com/google/uuid"
)

// LoadOrCreateNodeID returns the persisted node id under dataDir, generating
// and persisting a fresh UUIDv7 on first run. The node id must survive
// restarts so the manager's registry and the directory's replica sets keep
// referring to the same node across a redeploy.
func LoadOrCreateNodeID(dataDir string) (string, error) {
	path := filepath.Join(dataDir, "node_id")

	data, err := os.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("storagenode: read node id: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("storagenode: generate node id: %w", err)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("storagenode: create data dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id.String()+"\n"), 0644); err != nil {
		return "", fmt.Errorf("storagenode: persist node id: %w", err)
	}
	return id.String(), nil
}

// NewDisplayName generates a fresh, human-readable display name. Unlike the
// node id, the display name is not persisted: it exists purely so an
// operator scanning logs can tell nodes apart
// at a glance, and a new one each run is no worse than the old one.
func NewDisplayName() string {
	return petname.Generate(2, "-")
}
