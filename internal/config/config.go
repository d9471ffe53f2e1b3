// Package config loads and validates assetbuilder.yaml.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

// DefaultFile is the configuration file looked up when -c is not given.
const DefaultFile = "assetbuilder.yaml"

// Config is the complete assetbuilder configuration.
type Config struct {
	Paths       PathsConfig         `yaml:"paths"`
	Vendor      []string            `yaml:"vendor,omitempty"`
	Styles      StylesConfig        `yaml:"styles"`
	References  ReferencesConfig    `yaml:"references"`
	Fingerprint FingerprintConfig   `yaml:"fingerprint"`
	Manifest    ManifestConfig      `yaml:"manifest"`
	Transforms  map[string][]string `yaml:"transforms,omitempty"`
	Compress    CompressConfig      `yaml:"compress"`
	Dev         DevConfig           `yaml:"dev"`
	Watch       WatchConfig         `yaml:"watch"`
	Metrics     MetricsConfig       `yaml:"metrics"`
	History     HistoryConfig       `yaml:"history"`

	// BaseDir anchors relative paths. Load sets it to the directory of the
	// configuration file.
	BaseDir string `yaml:"-"`
}

// PathsConfig locates the source, dist and build trees.
type PathsConfig struct {
	Source     string           `yaml:"source"`
	Dist       string           `yaml:"dist"`
	Build      string           `yaml:"build"`
	Templates  string           `yaml:"templates,omitempty"`
	Categories CategoriesConfig `yaml:"categories"`
}

// CategoriesConfig names the per-category subdirectory used in every tree.
type CategoriesConfig struct {
	Images  string `yaml:"images"`
	Scripts string `yaml:"scripts"`
	Styles  string `yaml:"styles"`
	Fonts   string `yaml:"fonts"`
}

// StylesConfig controls how app stylesheets are produced.
type StylesConfig struct {
	Entry    string   `yaml:"entry"`
	Compiler []string `yaml:"compiler,omitempty"` // argv with {input} and {output}
}

// ReferencesConfig controls reference relocation inside stylesheets.
type ReferencesConfig struct {
	Prefix string `yaml:"prefix"`
}

// FingerprintConfig selects the digest and its length.
type FingerprintConfig struct {
	Algorithm string `yaml:"algorithm"`
	Length    int    `yaml:"length"`
}

// ManifestConfig locates the manifest file. An empty Dir means the dist root.
type ManifestConfig struct {
	Name string `yaml:"name"`
	Dir  string `yaml:"dir,omitempty"`
}

// CompressConfig enables gzip siblings for fingerprinted files.
type CompressConfig struct {
	Enabled    bool     `yaml:"enabled"`
	MinSize    int64    `yaml:"min_size"`
	Extensions []string `yaml:"extensions"`
}

// DevConfig configures the development server.
type DevConfig struct {
	Listen      string        `yaml:"listen"`
	Proxy       string        `yaml:"proxy,omitempty"`
	ReloadDelay time.Duration `yaml:"reload_delay"`
}

// WatchConfig tunes change coalescing in watch mode.
type WatchConfig struct {
	QuietWindow         time.Duration `yaml:"quiet_window"`
	MaxDelay            time.Duration `yaml:"max_delay"`
	FullRebuildInterval time.Duration `yaml:"full_rebuild_interval,omitempty"`
	TemplateExtensions  []string      `yaml:"template_extensions"`
}

// MetricsConfig toggles Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// HistoryConfig locates the build history database. Empty disables it.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"`
}

// Load reads, expands, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	loadEnvFiles(filepath.Dir(path))

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ferrors.ConfigError("configuration file not found").
			WithContext("path", path).
			Build()
	}
	if err != nil {
		return nil, ferrors.ConfigError("failed to read configuration file").
			WithContext("path", path).
			WithCause(err).
			Build()
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, ferrors.ConfigError("resolve configuration directory").WithCause(err).Build()
	}
	cfg.BaseDir = abs
	return cfg, nil
}

// Parse decodes YAML content with ${VAR} expansion, applies defaults and
// validates the result. Relative paths are anchored at the working directory
// until BaseDir is set.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, ferrors.ConfigError("failed to parse configuration").WithCause(err).Build()
	}
	if err := ApplyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration populated with defaults only.
func Default() *Config {
	cfg := &Config{}
	_ = ApplyDefaults(cfg)
	return cfg
}

// Init writes an example configuration file.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("path", path).
			Build()
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0o644); err != nil {
		return ferrors.FileSystemError("failed to write configuration file").
			WithContext("path", path).
			WithCause(err).
			Build()
	}
	return nil
}

const exampleConfig = `# assetbuilder configuration
paths:
  source: app/assets
  dist: dist
  build: build
  templates: app/templates
  categories:
    images: images
    scripts: scripts
    styles: styles
    fonts: fonts

# Third-party packages whose files become the plugins.* bundles.
vendor: []

styles:
  entry: main.scss
  # compiler: [sass, --no-source-map, "{input}", "{output}"]

references:
  prefix: "../"

fingerprint:
  algorithm: blake3
  length: 10

manifest:
  name: manifest.json

transforms: {}
  # styles-deploy: [postcss, "{file}", --use, autoprefixer, -r]
  # styles-minify: [cleancss, -o, "{file}", "{file}"]
  # scripts-minify: [uglifyjs, "{file}", -o, "{file}"]
  # images-compress: [optipng, -quiet, "{file}"]

compress:
  enabled: false
  min_size: 1024
  extensions: [.css, .js, .svg]

dev:
  listen: 127.0.0.1:3000
  proxy: ${DEV_URL}
  reload_delay: 250ms

watch:
  quiet_window: 300ms
  max_delay: 2s
  template_extensions: [.php, .twig, .html]

metrics:
  enabled: false

history:
  path: .assetbuilder/history.db
`
