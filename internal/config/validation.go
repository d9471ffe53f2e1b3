package config

import (
	"path/filepath"
	"slices"
	"strings"

	"git.home.luguber.info/inful/assetbuilder/internal/asset"
	"git.home.luguber.info/inful/assetbuilder/internal/fingerprint"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

// TransformStages lists the stages that accept an external command under
// transforms.
var TransformStages = []string{"styles-deploy", "styles-minify", "scripts-minify", "images-compress"}

// ValidateConfig checks a defaulted configuration.
func ValidateConfig(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	return v.validate()
}

type configurationValidator struct {
	config *Config
}

func (cv *configurationValidator) validate() error {
	for _, check := range []func() error{
		cv.validatePaths,
		cv.validateFingerprint,
		cv.validateTransforms,
		cv.validateStyles,
		cv.validateWatch,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (cv *configurationValidator) validatePaths() error {
	p := cv.config.Paths
	if filepath.Clean(p.Dist) == filepath.Clean(p.Build) {
		return ferrors.ConfigError("paths.dist and paths.build must differ").
			WithContext("dist", p.Dist).
			Build()
	}
	seen := map[string]asset.Category{}
	for _, cat := range asset.Categories() {
		dir := cv.config.AssetDir(cat)
		if err := validateCategoryDir(dir); err != nil {
			return ferrors.ConfigError("invalid category directory").
				WithContext("category", string(cat)).
				WithContext("dir", dir).
				WithCause(err).
				Build()
		}
		if other, dup := seen[dir]; dup {
			return ferrors.ConfigError("categories share a directory").
				WithContext("category", string(cat)).
				WithContext("other", string(other)).
				WithContext("dir", dir).
				Build()
		}
		seen[dir] = cat
	}
	return nil
}

func validateCategoryDir(dir string) error {
	if filepath.IsAbs(dir) || strings.HasPrefix(dir, "/") {
		return ferrors.ValidationError("must be relative").Build()
	}
	clean := filepath.ToSlash(filepath.Clean(dir))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return ferrors.ValidationError("must stay inside the tree root").Build()
	}
	return nil
}

func (cv *configurationValidator) validateFingerprint() error {
	if _, err := fingerprint.NewHasher(fingerprint.Algorithm(cv.config.Fingerprint.Algorithm), cv.config.Fingerprint.Length); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid fingerprint settings").Fatal().Build()
	}
	if strings.ContainsAny(cv.config.Manifest.Name, `/\`) {
		return ferrors.ConfigError("manifest.name must be a file name").
			WithContext("name", cv.config.Manifest.Name).
			Build()
	}
	return nil
}

func (cv *configurationValidator) validateTransforms() error {
	for stage, argv := range cv.config.Transforms {
		if !slices.Contains(TransformStages, stage) {
			return ferrors.ConfigError("unknown transform stage").
				WithContext("stage", stage).
				Build()
		}
		if len(argv) == 0 || argv[0] == "" {
			return ferrors.ConfigError("transform command is empty").
				WithContext("stage", stage).
				Build()
		}
		if !slices.ContainsFunc(argv, func(a string) bool { return strings.Contains(a, "{file}") }) {
			return ferrors.ConfigError("transform command must reference {file}").
				WithContext("stage", stage).
				Build()
		}
	}
	return nil
}

func (cv *configurationValidator) validateStyles() error {
	argv := cv.config.Styles.Compiler
	if len(argv) == 0 {
		return nil
	}
	joined := strings.Join(argv, " ")
	if !strings.Contains(joined, "{input}") || !strings.Contains(joined, "{output}") {
		return ferrors.ConfigError("styles.compiler must reference {input} and {output}").Build()
	}
	return nil
}

func (cv *configurationValidator) validateWatch() error {
	w := cv.config.Watch
	if w.MaxDelay < w.QuietWindow {
		return ferrors.ConfigError("watch.max_delay must not be shorter than watch.quiet_window").Build()
	}
	if w.FullRebuildInterval < 0 || cv.config.Dev.ReloadDelay < 0 {
		return ferrors.ConfigError("durations must not be negative").Build()
	}
	return nil
}
