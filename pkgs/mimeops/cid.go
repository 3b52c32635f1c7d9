package mimeops

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/emx-mail/mimecore/pkgs/attach"
	"github.com/emx-mail/mimecore/pkgs/mailcap"
)

// CidMap pairs one "cid:" key with the file its referenced part was saved to.
type CidMap struct {
	Cid  string
	Path string
}

// cidSaveAttachments exports every part under b that carries a Content-ID to
// its own temp file and records the mapping. Files are enrolled for cleanup
// only once fully written; a failed save leaves no mapping behind.
func (r *Runner) cidSaveAttachments(src io.ReaderAt, b *attach.Body) []CidMap {
	var maps []CidMap
	for ; b != nil; b = b.Next {
		if b.ContentID != "" {
			hint := filepath.Base(b.Filename)
			if hint == "." || hint == "/" || hint == "" {
				hint = b.ContentID
			}
			path := mktemp(mailcap.SanitizeFilename(hint, true))
			if err := r.saveAttachment(src, b, path, SaveNew); err != nil {
				r.logger.Debug("cid save failed", "cid", b.ContentID, "error", err)
				os.Remove(path)
			} else {
				r.temps.Add(path)
				maps = append(maps, CidMap{Cid: "cid:" + b.ContentID, Path: path})
			}
		}
		if b.Parts != nil {
			maps = append(maps, r.cidSaveAttachments(src, b.Parts)...)
		}
	}
	return maps
}

// CidToFilename rewrites a saved HTML file, replacing every byte-exact
// occurrence of each recorded "cid:" key with the corresponding path. The
// file's mtime is pinned to its previous value so viewers that cache by
// mtime don't rebuild.
func CidToFilename(path string, maps []CidMap) error {
	if len(maps) == 0 {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cid substitution %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cid substitution %s: %w", path, err)
	}
	for _, m := range maps {
		data = bytes.ReplaceAll(data, []byte(m.Cid), []byte(m.Path))
	}
	if err := os.WriteFile(path, data, info.Mode().Perm()); err != nil {
		return fmt.Errorf("cid substitution %s: %w", path, err)
	}
	if err := os.Chtimes(path, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("cid substitution %s: %w", path, err)
	}
	return nil
}
