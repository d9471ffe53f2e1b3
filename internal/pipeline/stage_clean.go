package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/manifest"
)

// stageClean empties the dist tree. The manifest is kept when it lives in
// the dist root so that later fingerprinting merges into it.
func stageClean(_ context.Context, bs *BuildState) error {
	root := bs.Config.DistRoot()
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return newFatalStageError(StageClean, ferrors.FileSystemError("read dist directory").
			WithContext("path", root).
			WithCause(err).
			Build())
	}

	keep := manifest.Path(bs.Config.ManifestDir(), bs.Config.Manifest.Name)
	removed := 0
	for _, e := range entries {
		p := filepath.Join(root, e.Name())
		if p == keep {
			continue
		}
		if err := os.RemoveAll(p); err != nil {
			return newFatalStageError(StageClean, ferrors.FileSystemError("remove dist entry").
				WithContext("path", p).
				WithCause(err).
				Build())
		}
		removed++
	}
	bs.Logger.Info("Cleaned dist directory", logfields.Path(root), logfields.Count(removed))
	return nil
}
