package config

import (
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/assetbuilder/internal/asset"
	"git.home.luguber.info/inful/assetbuilder/internal/fingerprint"
	"git.home.luguber.info/inful/assetbuilder/internal/reference"
)

// Resolve anchors p at BaseDir unless it is already absolute.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.BaseDir == "" {
		return p
	}
	return filepath.Join(c.BaseDir, p)
}

// AssetDir returns the configured subdirectory name for cat.
func (c *Config) AssetDir(cat asset.Category) string {
	return c.Layout().Dir(cat)
}

// Layout maps categories to their configured subdirectories.
func (c *Config) Layout() asset.Layout {
	cats := c.Paths.Categories
	return asset.Layout{
		asset.Images:  cats.Images,
		asset.Scripts: cats.Scripts,
		asset.Styles:  cats.Styles,
		asset.Fonts:   cats.Fonts,
	}
}

// SourceRoot is the application asset tree.
func (c *Config) SourceRoot() string { return c.Resolve(c.Paths.Source) }

// DistRoot is the intermediate tree written by copy and compile stages.
func (c *Config) DistRoot() string { return c.Resolve(c.Paths.Dist) }

// BuildRoot is the fingerprinted output tree.
func (c *Config) BuildRoot() string { return c.Resolve(c.Paths.Build) }

// TemplatesRoot is the watched template tree, empty when unset.
func (c *Config) TemplatesRoot() string { return c.Resolve(c.Paths.Templates) }

// SourcePath returns the source directory of cat.
func (c *Config) SourcePath(cat asset.Category) string {
	return filepath.Join(c.SourceRoot(), filepath.FromSlash(c.AssetDir(cat)))
}

// DistPath returns the dist directory of cat.
func (c *Config) DistPath(cat asset.Category) string {
	return filepath.Join(c.DistRoot(), filepath.FromSlash(c.AssetDir(cat)))
}

// BuildPath returns the build directory of cat.
func (c *Config) BuildPath(cat asset.Category) string {
	return filepath.Join(c.BuildRoot(), filepath.FromSlash(c.AssetDir(cat)))
}

// VendorDirs returns the vendor directories anchored at BaseDir.
func (c *Config) VendorDirs() []string {
	out := make([]string, 0, len(c.Vendor))
	for _, v := range c.Vendor {
		out = append(out, c.Resolve(v))
	}
	return out
}

// ManifestDir is where the manifest is read from and written to.
func (c *Config) ManifestDir() string {
	if c.Manifest.Dir == "" {
		return c.DistRoot()
	}
	return c.Resolve(c.Manifest.Dir)
}

// HistoryPath is the build history database, empty when disabled.
func (c *Config) HistoryPath() string { return c.Resolve(c.History.Path) }

// Hasher builds the configured fingerprint hasher.
func (c *Config) Hasher() (*fingerprint.Hasher, error) {
	return fingerprint.NewHasher(fingerprint.Algorithm(c.Fingerprint.Algorithm), c.Fingerprint.Length)
}

// ReferenceLayout describes where relocated stylesheet references point.
func (c *Config) ReferenceLayout() reference.Layout {
	return reference.Layout{
		Prefix:    c.References.Prefix,
		ImagesDir: c.AssetDir(asset.Images),
		FontsDir:  c.AssetDir(asset.Fonts),
	}
}

// CoalesceWindow returns the watch quiet window and max delay.
func (c *Config) CoalesceWindow() (quiet, maxDelay time.Duration) {
	return c.Watch.QuietWindow, c.Watch.MaxDelay
}
