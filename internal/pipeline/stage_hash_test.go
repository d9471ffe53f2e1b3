package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetbuilder/internal/fingerprint"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/manifest"
)

const appCSS = `.logo { background: url(../images/logo.png) no-repeat; }
@font-face { src: url('../fonts/icon.woff2?v=2') format('woff2'); }
.remote { background: url(https://cdn.example.com/x.png); }
`

func distFixture(t *testing.T, dist string) {
	t.Helper()
	writeFiles(t, dist, map[string]string{
		"images/logo.png":    "PNGDATA",
		"images/.DS_Store":   "ignored",
		"fonts/icon.woff2":   "WOFF2DATA",
		"scripts/app.js":     "console.log('app');\n",
		"styles/app.css":     appCSS,
		"styles/sprite.png":  "SPRITE",
		"unrelated/file.txt": "not a category",
	})
}

func TestHashAssets_FingerprintsAndRewritesStyles(t *testing.T) {
	cfg := testConfig(t)
	distFixture(t, cfg.DistRoot())

	report, err := newTestRunner(cfg).Run(t.Context(), HashPlan())
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, report.Outcome)

	h, err := cfg.Hasher()
	require.NoError(t, err)
	logo := fingerprint.Name("images/logo.png", h.Compute([]byte("PNGDATA")))
	icon := fingerprint.Name("fonts/icon.woff2", h.Compute([]byte("WOFF2DATA")))

	m, err := manifest.Read(filepath.Join(cfg.DistRoot(), "manifest.json"))
	require.NoError(t, err)
	require.Equal(t, []string{"fonts/icon.woff2", "images/logo.png", "scripts/app.js", "styles/app.css", "styles/sprite.png"}, m.Keys())
	require.Equal(t, logo, m["images/logo.png"])
	require.Equal(t, icon, m["fonts/icon.woff2"])

	css := readFile(t, filepath.Join(cfg.BuildRoot(), filepath.FromSlash(m["styles/app.css"])))
	require.Contains(t, css, "url(../"+logo+")")
	require.Contains(t, css, "url('../"+icon+"?v=2')")
	require.Contains(t, css, "url(https://cdn.example.com/x.png)")
	require.Equal(t, fingerprint.Name("styles/app.css", h.Compute([]byte(css))), m["styles/app.css"],
		"stylesheet fingerprint must cover the rewritten bytes")

	require.Equal(t, "PNGDATA", readFile(t, filepath.Join(cfg.BuildRoot(), filepath.FromSlash(logo))))
	require.Equal(t, 5, report.Fingerprinted)
	require.Equal(t, 5, report.ManifestEntries)
	require.Equal(t, 2, report.Assets["styles"])
	require.Equal(t, 5, report.StageAssets[StageHashAssets])
}

func TestHashAssets_RerunIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	distFixture(t, cfg.DistRoot())
	runner := newTestRunner(cfg)
	manifestPath := filepath.Join(cfg.DistRoot(), "manifest.json")

	_, err := runner.Run(t.Context(), HashPlan())
	require.NoError(t, err)
	first := readFile(t, manifestPath)
	firstFiles := listFiles(t, cfg.BuildRoot())

	_, err = runner.Run(t.Context(), HashPlan())
	require.NoError(t, err)
	require.Equal(t, first, readFile(t, manifestPath))
	require.Equal(t, firstFiles, listFiles(t, cfg.BuildRoot()))
}

func TestHashAssets_ChangedImageChangesReferencingStylesheet(t *testing.T) {
	cfg := testConfig(t)
	distFixture(t, cfg.DistRoot())
	runner := newTestRunner(cfg)
	manifestPath := filepath.Join(cfg.DistRoot(), "manifest.json")

	_, err := runner.Run(t.Context(), HashPlan())
	require.NoError(t, err)
	before, err := manifest.Read(manifestPath)
	require.NoError(t, err)

	writeFiles(t, cfg.DistRoot(), map[string]string{"images/logo.png": "PNGDATA v2"})
	_, err = runner.Run(t.Context(), HashPlan())
	require.NoError(t, err)
	after, err := manifest.Read(manifestPath)
	require.NoError(t, err)

	require.NotEqual(t, before["images/logo.png"], after["images/logo.png"])
	require.NotEqual(t, before["styles/app.css"], after["styles/app.css"])
	require.Equal(t, before["scripts/app.js"], after["scripts/app.js"])

	// prior outputs are kept
	require.FileExists(t, filepath.Join(cfg.BuildRoot(), filepath.FromSlash(before["images/logo.png"])))
	require.FileExists(t, filepath.Join(cfg.BuildRoot(), filepath.FromSlash(after["images/logo.png"])))
}

func TestHashAssets_MergesExistingManifest(t *testing.T) {
	cfg := testConfig(t)
	distFixture(t, cfg.DistRoot())
	require.NoError(t, manifest.Write(cfg.DistRoot(), "manifest.json", manifest.Manifest{
		"images/retired.png": "images/retired.0123456789.png",
		"images/logo.png":    "images/logo.stale00000.png",
	}))

	_, err := newTestRunner(cfg).Run(t.Context(), HashPlan())
	require.NoError(t, err)

	m, err := manifest.Read(filepath.Join(cfg.DistRoot(), "manifest.json"))
	require.NoError(t, err)
	require.Equal(t, "images/retired.0123456789.png", m["images/retired.png"])
	require.NotEqual(t, "images/logo.stale00000.png", m["images/logo.png"])
	require.Len(t, m, 6)
}

func TestHashAssets_MissingDistFailsBeforeWriting(t *testing.T) {
	cfg := testConfig(t)

	report, err := newTestRunner(cfg).Run(t.Context(), HashPlan())
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryFileSystem), "got %v", err)
	require.Equal(t, OutcomeFailed, report.Outcome)
	require.Equal(t, StageHashAssets, report.FailedStage())

	require.NoDirExists(t, cfg.DistRoot())
	require.NoDirExists(t, cfg.BuildRoot())
}

func TestHashAssets_CustomManifestLocationAndAlgorithm(t *testing.T) {
	cfg := testConfig(t)
	cfg.Manifest.Dir = "public"
	cfg.Manifest.Name = "rev.json"
	cfg.Fingerprint.Algorithm = "sha256"
	cfg.Fingerprint.Length = 8
	writeFiles(t, cfg.DistRoot(), map[string]string{"scripts/app.js": ""})

	_, err := newTestRunner(cfg).Run(t.Context(), HashPlan())
	require.NoError(t, err)

	m, err := manifest.Read(filepath.Join(cfg.BaseDir, "public", "rev.json"))
	require.NoError(t, err)
	require.Equal(t, "scripts/app.e3b0c442.js", m["scripts/app.js"])
	_, err = os.Stat(filepath.Join(cfg.DistRoot(), "manifest.json"))
	require.True(t, os.IsNotExist(err))
}

func TestHashAssets_ManifestInsideCategoryDirIsSkipped(t *testing.T) {
	cfg := testConfig(t)
	cfg.Manifest.Dir = filepath.Join(cfg.Paths.Dist, "scripts")
	writeFiles(t, cfg.DistRoot(), map[string]string{"scripts/app.js": "x"})

	runner := newTestRunner(cfg)
	_, err := runner.Run(t.Context(), HashPlan())
	require.NoError(t, err)
	_, err = runner.Run(t.Context(), HashPlan())
	require.NoError(t, err)

	m, err := manifest.Read(filepath.Join(cfg.DistPath("scripts"), "manifest.json"))
	require.NoError(t, err)
	require.Equal(t, []string{"scripts/app.js"}, m.Keys())
	for _, f := range listFiles(t, cfg.BuildRoot()) {
		require.False(t, strings.Contains(f, "manifest"), f)
	}
}

func TestBuildPlan_NestedImageReferenceResolvesInBuildTree(t *testing.T) {
	cfg := testConfig(t)
	writeFiles(t, cfg.SourceRoot(), map[string]string{
		"images/icons/arrow.gif": "GIF89a",
		"styles/main.css":        ".arrow { background: url(../images/icons/arrow.gif); }\n",
	})

	_, err := newTestRunner(cfg).Run(t.Context(), BuildPlan(cfg))
	require.NoError(t, err)

	m, err := manifest.Read(filepath.Join(cfg.DistRoot(), "manifest.json"))
	require.NoError(t, err)
	arrow := m["images/icons/arrow.gif"]
	require.True(t, strings.HasPrefix(arrow, "images/icons/arrow."), arrow)

	cssPath := filepath.Join(cfg.BuildRoot(), filepath.FromSlash(m["styles/app.css"]))
	css := readFile(t, cssPath)
	require.Contains(t, css, "url(../"+arrow+")")

	ref := filepath.Join(filepath.Dir(cssPath), "..", filepath.FromSlash(arrow))
	require.Equal(t, "GIF89a", readFile(t, ref))
}
