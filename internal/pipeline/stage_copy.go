package pipeline

import (
	"context"
	"log/slog"
	"path"
	"path/filepath"

	"git.home.luguber.info/inful/assetbuilder/internal/asset"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
)

func stageAppFonts(ctx context.Context, bs *BuildState) error {
	return copyApp(ctx, bs, StageAppFonts, asset.Fonts)
}

func stageAppImages(ctx context.Context, bs *BuildState) error {
	return copyApp(ctx, bs, StageAppImages, asset.Images)
}

func stagePluginsFonts(ctx context.Context, bs *BuildState) error {
	return copyVendor(ctx, bs, StagePluginsFonts, asset.Fonts)
}

func stagePluginsImages(ctx context.Context, bs *BuildState) error {
	return copyVendor(ctx, bs, StagePluginsImages, asset.Images)
}

// copyApp mirrors the category's source tree into dist.
func copyApp(ctx context.Context, bs *BuildState, stage StageName, cat asset.Category) error {
	src := bs.Config.SourcePath(cat)
	files, err := findOptional(src, cat.Matches)
	if err != nil {
		return newFatalStageError(stage, err)
	}
	dst := bs.Config.DistPath(cat)
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return newCanceledStageError(stage, err)
		}
		if err := copyFile(filepath.Join(src, filepath.FromSlash(rel)), filepath.Join(dst, filepath.FromSlash(rel))); err != nil {
			return newFatalStageError(stage, err)
		}
	}
	bs.addAssets(stage, string(cat), len(files))
	return nil
}

// copyVendor copies matching vendor files into dist, flattened to their
// base names. Later vendor directories win on name clashes.
func copyVendor(ctx context.Context, bs *BuildState, stage StageName, cat asset.Category) error {
	dst := bs.Config.DistPath(cat)
	written := map[string]string{}
	var missing []string
	for _, dir := range bs.Config.VendorDirs() {
		if err := asset.CheckDir(dir); err != nil {
			missing = append(missing, dir)
			continue
		}
		files, err := findOptional(dir, cat.Matches)
		if err != nil {
			return newFatalStageError(stage, err)
		}
		for _, rel := range files {
			if err := ctx.Err(); err != nil {
				return newCanceledStageError(stage, err)
			}
			name := path.Base(rel)
			if prev, dup := written[name]; dup {
				bs.Logger.Warn("Vendor file overrides another with the same name",
					logfields.Asset(name), logfields.Path(dir), slog.String("previous", prev))
			}
			if err := copyFile(filepath.Join(dir, filepath.FromSlash(rel)), filepath.Join(dst, name)); err != nil {
				return newFatalStageError(stage, err)
			}
			written[name] = dir
		}
	}
	bs.addAssets(stage, string(cat), len(written))
	if len(missing) > 0 {
		return newWarnStageError(stage, ferrors.NotFoundError("vendor directory missing").
			WithContext("paths", missing).
			Build())
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := readInput(src)
	if err != nil {
		return err
	}
	return writeOutput(dst, data)
}
