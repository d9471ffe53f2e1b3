package pipeline

import (
	"context"
	"path/filepath"

	"git.home.luguber.info/inful/assetbuilder/internal/asset"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
)

// transformCategory is the dist category each external transform works on.
var transformCategory = map[StageName]asset.Category{
	StageStylesDeploy:   asset.Styles,
	StageStylesMinify:   asset.Styles,
	StageScriptsMinify:  asset.Scripts,
	StageImagesCompress: asset.Images,
}

func stageStylesDeploy(ctx context.Context, bs *BuildState) error {
	return runTransform(ctx, bs, StageStylesDeploy)
}

func stageStylesMinify(ctx context.Context, bs *BuildState) error {
	return runTransform(ctx, bs, StageStylesMinify)
}

func stageScriptsMinify(ctx context.Context, bs *BuildState) error {
	return runTransform(ctx, bs, StageScriptsMinify)
}

func stageImagesCompress(ctx context.Context, bs *BuildState) error {
	return runTransform(ctx, bs, StageImagesCompress)
}

// runTransform runs the configured command once per matching dist file,
// in place. An unconfigured transform is a no-op.
func runTransform(ctx context.Context, bs *BuildState, stage StageName) error {
	argv := bs.Config.Transforms[string(stage)]
	if len(argv) == 0 {
		bs.Logger.Debug("Transform not configured", logfields.Stage(string(stage)))
		return nil
	}
	cat := transformCategory[stage]
	dir := bs.Config.DistPath(cat)
	files, err := findOptional(dir, cat.Matches)
	if err != nil {
		return newFatalStageError(stage, err)
	}
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return newCanceledStageError(stage, err)
		}
		file := filepath.Join(dir, filepath.FromSlash(rel))
		cmd := expandArgs(argv, map[string]string{"{file}": file})
		out, err := bs.Commands.Run(ctx, cmd)
		if err != nil {
			if ctx.Err() != nil {
				return newCanceledStageError(stage, ctx.Err())
			}
			return bs.toolFailure(stage, toolError(string(stage)+" failed", cmd, out, err))
		}
	}
	bs.addAssets(stage, string(cat), len(files))
	return nil
}
