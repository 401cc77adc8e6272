// Package security validates and builds filesystem paths derived from user
// input, such as cycle names embedded in plot export paths.
package security

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// WithinRoot returns an error unless path resolves to a location inside
// root. Symlinks are followed on both sides, so a link under root that
// points elsewhere does not count as inside. Paths that do not exist yet
// are resolved through their nearest existing ancestor, which stops a
// symlinked parent from redirecting a new file outside the root. The root
// itself must exist.
func WithinRoot(path, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	real, err := resolveExisting(abs)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	rel, err := filepath.Rel(realRoot, real)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path %q escapes %q", path, root)
	}
	return nil
}

// resolveExisting resolves symlinks in the longest existing prefix of the
// absolute path abs and rejoins the components that do not exist yet.
func resolveExisting(abs string) (string, error) {
	suffix := ""
	for p := abs; ; {
		resolved, err := filepath.EvalSymlinks(p)
		if err == nil {
			return filepath.Join(resolved, suffix), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(p)
		if parent == p {
			// Nothing on the path exists, not even the filesystem root.
			return abs, nil
		}
		suffix = filepath.Join(filepath.Base(p), suffix)
		p = parent
	}
}

// SanitizeFilename reduces an arbitrary string to a string safe to embed in
// a filename. Runs of characters outside [A-Za-z0-9._-] collapse to a
// single underscore, leading and trailing separators are trimmed, and the
// result is capped at 128 bytes. An input with nothing usable becomes
// "unknown".
func SanitizeFilename(s string) string {
	const maxLen = 128

	var b strings.Builder
	pendingSep := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
			pendingSep = false
		default:
			if !pendingSep {
				b.WriteByte('_')
				pendingSep = true
			}
		}
	}

	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

// ExportFilename builds a timestamped export filename from a user-provided
// identifier, sanitizing the identifier first. The extension is appended
// without a leading dot.
func ExportFilename(prefix, id, ext string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%s.%s", prefix, SanitizeFilename(id), now.UTC().Format("20060102T150405Z"), ext)
}
