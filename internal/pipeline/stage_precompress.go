package pipeline

import (
	"bytes"
	"context"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/klauspost/compress/gzip"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/manifest"
)

// stagePrecompress writes a .gz sibling for each fingerprinted file whose
// extension and size qualify. It uses the entries of this build when
// hash-assets ran, the manifest on disk otherwise.
func stagePrecompress(ctx context.Context, bs *BuildState) error {
	cfg := bs.Config
	entries := bs.Manifest
	if entries == nil {
		m, err := manifest.Read(manifest.Path(cfg.ManifestDir(), cfg.Manifest.Name))
		if err != nil {
			return newFatalStageError(StagePrecompress, err)
		}
		entries = m
	}

	exts := make([]string, len(cfg.Compress.Extensions))
	for i, e := range cfg.Compress.Extensions {
		exts[i] = "." + strings.TrimPrefix(strings.ToLower(e), ".")
	}

	written := 0
	for _, logical := range entries.Keys() {
		if err := ctx.Err(); err != nil {
			return newCanceledStageError(StagePrecompress, err)
		}
		target := entries[logical]
		if !slices.Contains(exts, strings.ToLower(path.Ext(target))) {
			continue
		}
		file := filepath.Join(cfg.BuildRoot(), filepath.FromSlash(target))
		data, err := os.ReadFile(file)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return newFatalStageError(StagePrecompress, ferrors.FileSystemError("read fingerprinted file").
				WithContext("path", file).
				WithCause(err).
				Build())
		}
		if int64(len(data)) < cfg.Compress.MinSize {
			continue
		}
		gz, err := gzipBytes(data, path.Base(target))
		if err != nil {
			return newFatalStageError(StagePrecompress, ferrors.BuildError("gzip failed").
				WithContext("path", file).
				WithCause(err).
				Build())
		}
		if err := writeOutput(file+".gz", gz); err != nil {
			return newFatalStageError(StagePrecompress, err)
		}
		written++
	}
	bs.addAssets(StagePrecompress, "gzip", written)
	bs.Logger.Info("Precompressed assets", logfields.Count(written))
	return nil
}

func gzipBytes(data []byte, name string) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	zw.Name = name
	if _, err := zw.Write(data); err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
