package pipeline

import (
	"context"
	"log/slog"
	"os/exec"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	"git.home.luguber.info/inful/assetbuilder/internal/fingerprint"
	"git.home.luguber.info/inful/assetbuilder/internal/manifest"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
)

// CommandRunner executes an external tool. Output is the combined
// stdout/stderr, used for error reporting.
type CommandRunner interface {
	Run(ctx context.Context, argv []string) ([]byte, error)
}

// ExecRunner runs commands with os/exec. The context kills the process.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, argv []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // argv comes from the project configuration
	return cmd.CombinedOutput()
}

// BuildState carries configuration and results across the stages of one build.
type BuildState struct {
	Config   *config.Config
	Plan     Plan
	Report   *BuildReport
	Hasher   *fingerprint.Hasher
	Logger   *slog.Logger
	Commands CommandRunner
	Recorder metrics.Recorder

	// Manifest holds the entries produced by hash-assets in this build,
	// before merging with the manifest on disk.
	Manifest manifest.Manifest
}

// addAssets records n assets written by stage for category.
func (bs *BuildState) addAssets(stage StageName, category string, n int) {
	if n == 0 {
		return
	}
	bs.Report.StageAssets[stage] += n
	bs.Recorder.AddAssets(string(stage), category, n)
}

// toolFailure classifies an external tool error according to the plan:
// lenient plans keep going with a warning.
func (bs *BuildState) toolFailure(stage StageName, err error) error {
	if bs.Plan.Lenient {
		return newWarnStageError(stage, err)
	}
	return newFatalStageError(stage, err)
}
