// Package manifest persists the mapping from logical asset paths to their
// fingerprinted counterparts.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

// DefaultName is the file name used when none is configured.
const DefaultName = "manifest.json"

var (
	// ErrCorrupt is returned when an existing manifest is not a flat JSON object of strings.
	ErrCorrupt = ferrors.ManifestError("manifest is not a flat JSON object of strings").Build()

	// ErrWriteFailed is returned when the manifest cannot be persisted.
	ErrWriteFailed = ferrors.ManifestError("failed to write manifest").Build()
)

// Manifest maps logical paths ("images/logo.png") to fingerprinted paths
// ("images/logo.a1b2c3d4e5.png").
type Manifest map[string]string

// Keys returns the logical paths in sorted order.
func (m Manifest) Keys() []string {
	return slices.Sorted(maps.Keys(m))
}

// Equal reports whether both manifests hold the same entries.
func (m Manifest) Equal(other Manifest) bool {
	return maps.Equal(m, other)
}

// Clone returns an independent copy.
func (m Manifest) Clone() Manifest {
	out := make(Manifest, len(m))
	maps.Copy(out, m)
	return out
}

// Merge returns the union of existing and incoming. Entries from incoming win
// on conflicts; entries only present in existing are kept. Neither argument
// is modified.
func Merge(existing, incoming Manifest) Manifest {
	out := make(Manifest, len(existing)+len(incoming))
	maps.Copy(out, existing)
	maps.Copy(out, incoming)
	return out
}

// Path joins the manifest directory and file name.
func Path(dir, name string) string {
	if name == "" {
		name = DefaultName
	}
	return filepath.Join(dir, name)
}

// Read loads a manifest. A missing file yields an empty manifest.
func Read(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Manifest{}, nil
	}
	if err != nil {
		return nil, ferrors.FileSystemError("read manifest").
			WithContext("path", path).
			WithCause(err).
			Build()
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Manifest{}, nil
	}
	m := Manifest{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, ErrCorrupt.WithCause(err).WithContext("path", path)
	}
	return m, nil
}

// Encode renders m as an indented flat JSON object with sorted keys.
func Encode(m Manifest) ([]byte, error) {
	if m == nil {
		m = Manifest{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]string(m)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write persists m as dir/name, replacing any previous file atomically.
func Write(dir, name string, m Manifest) error {
	data, err := Encode(m)
	if err != nil {
		return ErrWriteFailed.WithCause(err)
	}
	target := Path(dir, name)
	if err := WriteFileAtomic(target, data, 0o644); err != nil {
		return ErrWriteFailed.WithCause(err).WithContext("path", target)
	}
	return nil
}

// MergeFile reads the manifest at dir/name, merges incoming into it and
// writes the result back. The merged manifest is returned.
func MergeFile(dir, name string, incoming Manifest) (Manifest, error) {
	existing, err := Read(Path(dir, name))
	if err != nil {
		return nil, err
	}
	merged := Merge(existing, incoming)
	if err := Write(dir, name, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// WriteFileAtomic writes data to a temporary file next to path and renames
// it into place, so readers never observe a partially written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
