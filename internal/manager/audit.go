package manager

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// AuditLog appends one line per control-plane event, in the format
// "YYYY-MM-DD HH:MM:SS - OP - details". No rotation, no per-line fsync:
// durability here is best-effort, matching the rest of the system's
// consistency model.
type AuditLog struct {
	mu   sync.Mutex
	w    io.WriteCloser
	now  func() time.Time
}

// NewAuditLog opens (creating/appending) the file at path. An empty path
// disables audit logging; Write becomes a no-op.
func NewAuditLog(path string, now func() time.Time) (*AuditLog, error) {
	if now == nil {
		now = time.Now
	}
	if path == "" {
		return &AuditLog{now: now}, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("manager: open audit log %s: %w", path, err)
	}
	return &AuditLog{w: f, now: now}, nil
}

// Write appends one "<timestamp> - OP - details" line. Safe for concurrent
// use; a write failure is swallowed (audit logging must never abort the
// operation it is describing).
func (a *AuditLog) Write(op, details string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.w == nil {
		return
	}
	line := fmt.Sprintf("%s - %s - %s\n", a.now().Format("2006-01-02 15:04:05"), op, details)
	_, _ = a.w.Write([]byte(line))
}

// Close closes the underlying file, if any.
func (a *AuditLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.w == nil {
		return nil
	}
	return a.w.Close()
}
