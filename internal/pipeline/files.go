package pipeline

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/assetbuilder/internal/asset"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/manifest"
)

// findOptional lists files in dir accepted by match. A missing dir yields
// no files.
func findOptional(dir string, match func(string) bool) ([]string, error) {
	files, err := asset.Find(dir, match)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, ferrors.FileSystemError("list directory").
			WithContext("path", dir).
			WithCause(err).
			Build()
	}
	return files, nil
}

// writeOutput writes data to path atomically, skipping the write when the
// file already holds identical bytes.
func writeOutput(path string, data []byte) error {
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, data) {
		return nil
	}
	if err := manifest.WriteFileAtomic(path, data, 0o644); err != nil {
		return ferrors.FileSystemError("write output file").
			WithContext("path", path).
			WithCause(err).
			Build()
	}
	return nil
}

func readInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ferrors.FileSystemError("read input file").
			WithContext("path", path).
			WithCause(err).
			Build()
	}
	return data, nil
}

// concat joins the files with a newline, in the given order.
func concat(paths []string) ([]byte, error) {
	var buf bytes.Buffer
	for i, p := range paths {
		data, err := readInput(p)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

func joinAll(dir string, rels []string) []string {
	out := make([]string, len(rels))
	for i, r := range rels {
		out[i] = filepath.Join(dir, filepath.FromSlash(r))
	}
	return out
}
