package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetbuilder/internal/buildlock"
	"git.home.luguber.info/inful/assetbuilder/internal/eventstore"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
)

type outcomeRecorder struct {
	metrics.NoopRecorder
	mu       sync.Mutex
	outcomes []metrics.BuildOutcomeLabel
	results  map[string]metrics.ResultLabel
}

func (r *outcomeRecorder) IncBuildOutcome(o metrics.BuildOutcomeLabel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *outcomeRecorder) IncStageResult(stage string, res metrics.ResultLabel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = map[string]metrics.ResultLabel{}
	}
	r.results[stage] = res
}

func stubStage(err error) Stage {
	return func(context.Context, *BuildState) error { return err }
}

func TestRunner_WarningContinuesFatalStops(t *testing.T) {
	cfg := testConfig(t)
	rec := &outcomeRecorder{}
	var ran []StageName
	track := func(name StageName, err error) Option {
		return WithStage(name, func(context.Context, *BuildState) error {
			ran = append(ran, name)
			return err
		})
	}
	runner := newTestRunner(cfg,
		WithRecorder(rec),
		track(StageAppFonts, newWarnStageError(StageAppFonts, errors.New("soft"))),
		track(StageAppScripts, errors.New("boom")),
		track(StageAppStyles, nil),
	)

	report, err := runner.Run(t.Context(), Plan{Name: "t", Stages: []StageName{StageAppFonts, StageAppScripts, StageAppStyles}})
	require.Error(t, err)
	require.Equal(t, []StageName{StageAppFonts, StageAppScripts}, ran)
	require.Equal(t, OutcomeFailed, report.Outcome)
	require.Equal(t, StageAppScripts, report.FailedStage())
	require.Len(t, report.Warnings, 1)
	require.Len(t, report.Errors, 1)
	require.Equal(t, 1, report.StageCounts[StageAppFonts].Warning)
	require.Equal(t, 1, report.StageCounts[StageAppScripts].Fatal)

	require.Equal(t, []metrics.BuildOutcomeLabel{metrics.BuildOutcomeFailed}, rec.outcomes)
	require.Equal(t, metrics.ResultWarning, rec.results["app-fonts"])
	require.Equal(t, metrics.ResultFatal, rec.results["app-scripts"])
}

func TestRunner_CanceledContext(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(t.Context())
	runner := newTestRunner(cfg,
		WithStage(StageAppFonts, func(context.Context, *BuildState) error {
			cancel()
			return nil
		}),
		WithStage(StageAppScripts, stubStage(nil)),
	)

	report, err := runner.Run(ctx, Plan{Name: "t", Stages: []StageName{StageAppFonts, StageAppScripts}})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, OutcomeCanceled, report.Outcome)
	require.Equal(t, []StageName{StageAppFonts}, report.StageOrder)
	require.Equal(t, 1, report.StageCounts[StageAppScripts].Canceled)
}

func TestRunner_UnknownStage(t *testing.T) {
	cfg := testConfig(t)
	report, err := newTestRunner(cfg).Run(t.Context(), Plan{Name: "t", Stages: []StageName{"deploy"}})
	require.Nil(t, report)
	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	require.Equal(t, ferrors.CategoryValidation, ce.Category())
}

func TestRunner_InvalidFingerprintConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Fingerprint.Algorithm = "crc32"
	_, err := newTestRunner(cfg).Run(t.Context(), HashPlan())
	require.Error(t, err)
}

func TestRunner_RefusesConcurrentBuildOnSameDist(t *testing.T) {
	cfg := testConfig(t)
	held := buildlock.New(cfg.DistRoot())
	require.NoError(t, held.Acquire())

	_, err := newTestRunner(cfg, WithStage(StageClean, stubStage(nil))).
		Run(t.Context(), Plan{Name: "t", Stages: []StageName{StageClean}})
	require.ErrorIs(t, err, buildlock.ErrBuildLocked)

	require.NoError(t, held.Release())
	_, err = newTestRunner(cfg, WithStage(StageClean, stubStage(nil))).
		Run(t.Context(), Plan{Name: "t", Stages: []StageName{StageClean}})
	require.NoError(t, err)
}

func TestRunner_RecordsHistory(t *testing.T) {
	cfg := testConfig(t)
	store, err := eventstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	writeFiles(t, cfg.DistRoot(), map[string]string{
		"images/a.png":   "A",
		"scripts/app.js": "B",
	})
	runner := newTestRunner(cfg, WithHistory(store), WithTrigger("watch"))

	ok, err := runner.Run(t.Context(), HashPlan())
	require.NoError(t, err)

	failing := newTestRunner(cfg, WithHistory(store),
		WithStage(StageAppFonts, stubStage(ferrors.BuildError("broken").Build())))
	bad, err := failing.Run(t.Context(), Plan{Name: PlanDev, Stages: []StageName{StageAppFonts}})
	require.Error(t, err)

	projection := eventstore.NewBuildHistoryProjection(store, 10)
	require.NoError(t, projection.Rebuild(t.Context()))
	require.Len(t, projection.GetHistory(), 2)

	first, found := projection.GetBuild(ok.BuildID)
	require.True(t, found)
	require.Equal(t, eventstore.StatusSuccess, first.Status)
	require.Equal(t, PlanHash, first.Plan)
	require.Equal(t, "watch", first.Trigger)
	require.Equal(t, 1, first.StagesRun)
	require.Equal(t, 2, first.ManifestEntries)
	require.NotNil(t, first.ReportData)
	require.Equal(t, map[string]int{"images": 1, "scripts": 1}, first.ReportData.Assets)

	second, found := projection.GetBuild(bad.BuildID)
	require.True(t, found)
	require.Equal(t, eventstore.StatusFailed, second.Status)
	require.Equal(t, "app-fonts", second.ErrorStage)
	require.Contains(t, second.ErrorMessage, "broken")
	require.Equal(t, "cli", second.Trigger)
}

func TestBuildReport_Summary(t *testing.T) {
	r := newBuildReport("id", PlanBuild)
	r.StageOrder = []StageName{StageClean}
	r.StageAssets[StageAppImages] = 3
	r.Warnings = append(r.Warnings, errors.New("w"))
	r.finish()

	require.Equal(t, OutcomeWarning, r.Outcome)
	require.Contains(t, r.Summary(), "plan=build stages=1 assets=3")
	require.Contains(t, r.Summary(), "outcome=warning")
	require.Equal(t, "warning", r.HistoryData().Outcome)
}
