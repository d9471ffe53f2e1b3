package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"

	"git.home.luguber.info/inful/assetbuilder/internal/asset"
	"git.home.luguber.info/inful/assetbuilder/internal/fingerprint"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/manifest"
	"git.home.luguber.info/inful/assetbuilder/internal/reference"
)

type hashedAsset struct {
	asset.Asset
	target  string // fingerprinted logical path
	content []byte // bytes written, rewritten for stylesheets
}

// stageHashAssets fingerprints every dist asset into the build tree and
// merges the resulting entries into the manifest. Stylesheets are rewritten
// to reference fingerprinted images and fonts before they are hashed
// themselves. Nothing is written unless the whole dist tree could be read,
// and the manifest is only touched once every output file is in place.
func stageHashAssets(ctx context.Context, bs *BuildState) error {
	cfg := bs.Config
	assets, err := asset.Collect(cfg.DistRoot(), cfg.Layout())
	if err != nil {
		return newFatalStageError(StageHashAssets, err)
	}
	manifestPath := manifest.Path(cfg.ManifestDir(), cfg.Manifest.Name)

	entries := manifest.Manifest{}
	var plain, styles []asset.Asset
	for _, a := range assets {
		if a.Path == manifestPath {
			continue
		}
		if a.Category == asset.Styles && asset.Styles.Matches(a.Name()) {
			styles = append(styles, a)
			continue
		}
		plain = append(plain, a)
	}

	hashed := make([]hashedAsset, 0, len(plain)+len(styles))
	for _, a := range plain {
		h := hashOne(bs.Hasher, a, a.Content)
		entries[a.Logical] = h.target
		hashed = append(hashed, h)
	}
	for _, a := range styles {
		table := reference.NewPathTable(a.Dir(), entries)
		h := hashOne(bs.Hasher, a, reference.RewriteReferences(a.Content, table))
		hashed = append(hashed, h)
	}
	for _, h := range hashed[len(plain):] {
		entries[h.Logical] = h.target
	}

	buildRoot := cfg.BuildRoot()
	for _, h := range hashed {
		if err := ctx.Err(); err != nil {
			return newCanceledStageError(StageHashAssets, err)
		}
		if err := writeOutput(filepath.Join(buildRoot, filepath.FromSlash(h.target)), h.content); err != nil {
			return newFatalStageError(StageHashAssets, err)
		}
		bs.Report.Assets[string(h.Category)]++
		bs.Logger.Debug("Fingerprinted asset", logfields.Asset(h.Logical), logfields.Path(h.target))
	}

	merged, err := manifest.MergeFile(cfg.ManifestDir(), cfg.Manifest.Name, entries)
	if err != nil {
		return newFatalStageError(StageHashAssets, err)
	}

	bs.Manifest = entries
	bs.Report.Fingerprinted = len(hashed)
	bs.Report.ManifestEntries = len(merged)
	bs.Report.ManifestPath = manifestPath
	for _, cat := range asset.Categories() {
		bs.addAssets(StageHashAssets, string(cat), bs.Report.Assets[string(cat)])
	}
	bs.Recorder.SetManifestEntries(len(merged))
	bs.Logger.Info("Assets fingerprinted",
		logfields.Count(len(hashed)),
		logfields.Path(manifestPath),
		slog.String("algorithm", string(bs.Hasher.Algorithm())))
	return nil
}

func hashOne(h *fingerprint.Hasher, a asset.Asset, content []byte) hashedAsset {
	fp := h.Compute(content)
	return hashedAsset{Asset: a, target: fingerprint.Name(a.Logical, fp), content: content}
}
