package config

import (
	"time"

	"git.home.luguber.info/inful/assetbuilder/internal/fingerprint"
	"git.home.luguber.info/inful/assetbuilder/internal/manifest"
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

type pathsDefaults struct{}

func (pathsDefaults) Domain() string { return "paths" }

func (pathsDefaults) ApplyDefaults(cfg *Config) error {
	p := &cfg.Paths
	setDefault(&p.Source, "app/assets")
	setDefault(&p.Dist, "dist")
	setDefault(&p.Build, "build")
	setDefault(&p.Categories.Images, "images")
	setDefault(&p.Categories.Scripts, "scripts")
	setDefault(&p.Categories.Styles, "styles")
	setDefault(&p.Categories.Fonts, "fonts")
	return nil
}

type stylesDefaults struct{}

func (stylesDefaults) Domain() string { return "styles" }

func (stylesDefaults) ApplyDefaults(cfg *Config) error {
	setDefault(&cfg.Styles.Entry, "main.scss")
	setDefault(&cfg.References.Prefix, "../")
	return nil
}

type fingerprintDefaults struct{}

func (fingerprintDefaults) Domain() string { return "fingerprint" }

func (fingerprintDefaults) ApplyDefaults(cfg *Config) error {
	setDefault(&cfg.Fingerprint.Algorithm, string(fingerprint.BLAKE3))
	if cfg.Fingerprint.Length == 0 {
		cfg.Fingerprint.Length = fingerprint.DefaultLength
	}
	setDefault(&cfg.Manifest.Name, manifest.DefaultName)
	return nil
}

type compressDefaults struct{}

func (compressDefaults) Domain() string { return "compress" }

func (compressDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Compress.MinSize <= 0 {
		cfg.Compress.MinSize = 1024
	}
	if len(cfg.Compress.Extensions) == 0 {
		cfg.Compress.Extensions = []string{".css", ".js", ".svg"}
	}
	return nil
}

type devDefaults struct{}

func (devDefaults) Domain() string { return "dev" }

func (devDefaults) ApplyDefaults(cfg *Config) error {
	setDefault(&cfg.Dev.Listen, "127.0.0.1:3000")
	if cfg.Dev.ReloadDelay == 0 {
		cfg.Dev.ReloadDelay = 250 * time.Millisecond
	}
	if cfg.Watch.QuietWindow <= 0 {
		cfg.Watch.QuietWindow = 300 * time.Millisecond
	}
	if cfg.Watch.MaxDelay <= 0 {
		cfg.Watch.MaxDelay = 2 * time.Second
	}
	if len(cfg.Watch.TemplateExtensions) == 0 {
		cfg.Watch.TemplateExtensions = []string{".php", ".twig", ".html"}
	}
	return nil
}

var defaultAppliers = []DefaultApplier{
	pathsDefaults{},
	stylesDefaults{},
	fingerprintDefaults{},
	compressDefaults{},
	devDefaults{},
}

// ApplyDefaults fills every unset field with its default.
func ApplyDefaults(cfg *Config) error {
	for _, a := range defaultAppliers {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
