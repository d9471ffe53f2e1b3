package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

func TestMerge(t *testing.T) {
	existing := Manifest{"a": "a1", "b": "b1"}
	incoming := Manifest{"b": "b2", "c": "c1"}

	merged := Merge(existing, incoming)

	require.Equal(t, Manifest{"a": "a1", "b": "b2", "c": "c1"}, merged)
	require.Equal(t, Manifest{"a": "a1", "b": "b1"}, existing, "existing must not be mutated")
	require.Equal(t, Manifest{"b": "b2", "c": "c1"}, incoming, "incoming must not be mutated")
}

func TestMergeNil(t *testing.T) {
	require.Equal(t, Manifest{"a": "a1"}, Merge(nil, Manifest{"a": "a1"}))
	require.Equal(t, Manifest{"a": "a1"}, Merge(Manifest{"a": "a1"}, nil))
	require.Empty(t, Merge(nil, nil))
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := Manifest{
		"images/logo.png":  "images/logo.a1b2c3d4e5.png",
		"styles/app.css":   "styles/app.0f1e2d3c4b.css",
		"scripts/a&b.js":   "scripts/a&b.1234567890.js",
		"fonts/icon.woff2": "fonts/icon.9f8e7d6c5b.woff2",
	}

	require.NoError(t, Write(dir, "", m))
	got, err := Read(Path(dir, ""))
	require.NoError(t, err)
	require.True(t, m.Equal(got))

	raw, err := os.ReadFile(filepath.Join(dir, DefaultName))
	require.NoError(t, err)
	require.Equal(t, `{
  "fonts/icon.woff2": "fonts/icon.9f8e7d6c5b.woff2",
  "images/logo.png": "images/logo.a1b2c3d4e5.png",
  "scripts/a&b.js": "scripts/a&b.1234567890.js",
  "styles/app.css": "styles/app.0f1e2d3c4b.css"
}
`, string(raw))
}

func TestWriteOverwritesWithoutLeavingTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(dir, "rev.json", Manifest{"a": "a1"}))
	require.NoError(t, Write(dir, "rev.json", Manifest{"b": "b1"}))

	got, err := Read(filepath.Join(dir, "rev.json"))
	require.NoError(t, err)
	require.Equal(t, Manifest{"b": "b1"}, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestReadMissingIsEmpty(t *testing.T) {
	got, err := Read(filepath.Join(t.TempDir(), "manifest.json"))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestReadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a": {"nested": true}}`), 0o644))

	_, err := Read(path)
	require.ErrorIs(t, err, ErrCorrupt)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryManifest))
}

func TestMergeFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(dir, "", Manifest{"a": "a1", "b": "b1"}))

	merged, err := MergeFile(dir, "", Manifest{"b": "b2", "c": "c1"})
	require.NoError(t, err)
	require.Equal(t, Manifest{"a": "a1", "b": "b2", "c": "c1"}, merged)

	onDisk, err := Read(Path(dir, ""))
	require.NoError(t, err)
	require.Equal(t, merged, onDisk)
}

func TestMergeFileCorruptLeavesFileUntouched(t *testing.T) {
	dir := t.TempDir()
	path := Path(dir, "")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := MergeFile(dir, "", Manifest{"a": "a1"})
	require.Error(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "not json", string(raw))
}

func TestKeysSorted(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, Manifest{"c": "", "a": "", "b": ""}.Keys())
}
