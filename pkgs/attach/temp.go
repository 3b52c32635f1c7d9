package attach

import (
	"log/slog"
	"os"
	"sync"
)

// TempRegistry tracks temp files handed to external programs so they can be
// removed even after the context that created them is gone. The registry is
// shared process-wide; the mutex only protects the list itself.
type TempRegistry struct {
	mu    sync.Mutex
	paths []string
}

// NewTempRegistry returns an empty registry.
func NewTempRegistry() *TempRegistry {
	return &TempRegistry{}
}

// Add enrolls a path for later cleanup.
func (t *TempRegistry) Add(path string) {
	if path == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paths = append(t.paths, path)
}

// Remove unlinks one enrolled path now and drops it from the registry. Paths
// never enrolled are unlinked anyway.
func (t *TempRegistry) Remove(path string) {
	t.mu.Lock()
	for i, p := range t.paths {
		if p == path {
			t.paths = append(t.paths[:i], t.paths[i+1:]...)
			break
		}
	}
	t.mu.Unlock()
	removeFile(path)
}

// Paths returns a snapshot of the enrolled paths.
func (t *TempRegistry) Paths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.paths))
	copy(out, t.paths)
	return out
}

// CleanAll unlinks every enrolled path and empties the registry.
func (t *TempRegistry) CleanAll() {
	t.mu.Lock()
	paths := t.paths
	t.paths = nil
	t.mu.Unlock()
	for _, p := range paths {
		removeFile(p)
	}
}

// removeFile makes the file owner-writable before unlinking, since mailcap
// viewers sometimes drop write permission on their input.
func removeFile(path string) {
	if err := os.Chmod(path, 0o600); err != nil && !os.IsNotExist(err) {
		slog.Debug("chmod before unlink", "path", path, "error", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Debug("unlink temp file", "path", path, "error", err)
	}
}
