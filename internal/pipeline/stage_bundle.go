package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/assetbuilder/internal/asset"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/reference"
)

// Bundle file names written to dist.
const (
	AppScriptsBundle     = "app.js"
	PluginsScriptsBundle = "plugins.js"
	AppStylesBundle      = "app.css"
	PluginsStylesBundle  = "plugins.css"
)

func stageAppScripts(_ context.Context, bs *BuildState) error {
	src := bs.Config.SourcePath(asset.Scripts)
	files, err := findOptional(src, asset.Scripts.Matches)
	if err != nil {
		return newFatalStageError(StageAppScripts, err)
	}
	return writeBundle(bs, StageAppScripts, asset.Scripts, AppScriptsBundle, joinAll(src, files), nil)
}

func stagePluginsScripts(_ context.Context, bs *BuildState) error {
	files, err := vendorFiles(bs, asset.Scripts)
	if err != nil {
		return newFatalStageError(StagePluginsScripts, err)
	}
	return writeBundle(bs, StagePluginsScripts, asset.Scripts, PluginsScriptsBundle, files, nil)
}

func stagePluginsStyles(_ context.Context, bs *BuildState) error {
	files, err := vendorFiles(bs, asset.Styles)
	if err != nil {
		return newFatalStageError(StagePluginsStyles, err)
	}
	layout := bs.Config.ReferenceLayout()
	layout.Flatten = true
	return writeBundle(bs, StagePluginsStyles, asset.Styles, PluginsStylesBundle, files, func(b []byte) []byte {
		return reference.Relocate(b, layout)
	})
}

// stageAppStyles compiles the styles entry with the configured compiler, or
// concatenates plain CSS when none is configured, then relocates references.
func stageAppStyles(ctx context.Context, bs *BuildState) error {
	cfg := bs.Config
	layout := cfg.ReferenceLayout()
	relocate := func(b []byte) []byte { return reference.Relocate(b, layout) }

	if len(cfg.Styles.Compiler) == 0 {
		src := cfg.SourcePath(asset.Styles)
		files, err := findOptional(src, asset.Styles.Matches)
		if err != nil {
			return newFatalStageError(StageAppStyles, err)
		}
		return writeBundle(bs, StageAppStyles, asset.Styles, AppStylesBundle, joinAll(src, files), relocate)
	}

	input := filepath.Join(cfg.SourcePath(asset.Styles), filepath.FromSlash(cfg.Styles.Entry))
	if _, err := os.Stat(input); err != nil {
		bs.Logger.Debug("No styles entry, skipping compile", logfields.Path(input))
		return nil
	}

	tmp, err := os.MkdirTemp("", "assetbuilder-styles-*")
	if err != nil {
		return newFatalStageError(StageAppStyles, ferrors.FileSystemError("create temp directory").WithCause(err).Build())
	}
	defer func() { _ = os.RemoveAll(tmp) }()
	output := filepath.Join(tmp, AppStylesBundle)

	argv := expandArgs(cfg.Styles.Compiler, map[string]string{"{input}": input, "{output}": output})
	if out, err := bs.Commands.Run(ctx, argv); err != nil {
		if ctx.Err() != nil {
			return newCanceledStageError(StageAppStyles, ctx.Err())
		}
		return bs.toolFailure(StageAppStyles, toolError("styles compiler failed", argv, out, err))
	}
	return writeBundle(bs, StageAppStyles, asset.Styles, AppStylesBundle, []string{output}, relocate)
}

// writeBundle concatenates files, applies transform and writes the result as
// name inside the category's dist directory. Empty inputs write nothing.
func writeBundle(bs *BuildState, stage StageName, cat asset.Category, name string, files []string, transform func([]byte) []byte) error {
	if len(files) == 0 {
		bs.Logger.Debug("No input files", logfields.Stage(string(stage)))
		return nil
	}
	data, err := concat(files)
	if err != nil {
		return newFatalStageError(stage, err)
	}
	if transform != nil {
		data = transform(data)
	}
	if err := writeOutput(filepath.Join(bs.Config.DistPath(cat), name), data); err != nil {
		return newFatalStageError(stage, err)
	}
	bs.addAssets(stage, string(cat), 1)
	return nil
}

// vendorFiles lists vendor files of cat, vendor order first, then lexical.
// Missing vendor directories are skipped; the copy stages report them.
func vendorFiles(bs *BuildState, cat asset.Category) ([]string, error) {
	var out []string
	for _, dir := range bs.Config.VendorDirs() {
		files, err := findOptional(dir, cat.Matches)
		if err != nil {
			return nil, err
		}
		out = append(out, joinAll(dir, files)...)
	}
	return out, nil
}

// expandArgs substitutes placeholders in every argument.
func expandArgs(argv []string, values map[string]string) []string {
	out := make([]string, len(argv))
	for i, a := range argv {
		for k, v := range values {
			a = strings.ReplaceAll(a, k, v)
		}
		out[i] = a
	}
	return out
}

func toolError(msg string, argv []string, output []byte, err error) error {
	b := ferrors.TransformError(msg).
		WithContext("command", strings.Join(argv, " ")).
		WithCause(err)
	if o := strings.TrimSpace(string(output)); o != "" {
		b = b.WithContext("output", o)
	}
	return b.Build()
}
