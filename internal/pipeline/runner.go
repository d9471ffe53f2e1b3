package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/assetbuilder/internal/buildlock"
	"git.home.luguber.info/inful/assetbuilder/internal/config"
	"git.home.luguber.info/inful/assetbuilder/internal/eventstore"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
)

// Runner executes plans against one configuration.
type Runner struct {
	cfg      *config.Config
	recorder metrics.Recorder
	store    eventstore.Store
	logger   *slog.Logger
	commands CommandRunner
	trigger  string
	stages   map[StageName]Stage
}

// Option configures a Runner.
type Option func(*Runner)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(rn *Runner) {
		if r != nil {
			rn.recorder = r
		}
	}
}

// WithHistory records build events in store. Recording is best effort.
func WithHistory(store eventstore.Store) Option {
	return func(rn *Runner) { rn.store = store }
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(rn *Runner) {
		if l != nil {
			rn.logger = l
		}
	}
}

// WithCommandRunner replaces the executor of external tools.
func WithCommandRunner(c CommandRunner) Option {
	return func(rn *Runner) {
		if c != nil {
			rn.commands = c
		}
	}
}

// WithTrigger labels builds in history (cli, watch, scheduled).
func WithTrigger(trigger string) Option {
	return func(rn *Runner) { rn.trigger = trigger }
}

// WithStage overrides the implementation of a stage.
func WithStage(name StageName, fn Stage) Option {
	return func(rn *Runner) { rn.stages[name] = fn }
}

// NewRunner creates a runner wired with the built-in stages.
func NewRunner(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{
		cfg:      cfg,
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
		commands: ExecRunner{},
		trigger:  "cli",
		stages:   defaultStages(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func defaultStages() map[StageName]Stage {
	return map[StageName]Stage{
		StageClean:          stageClean,
		StageAppFonts:       stageAppFonts,
		StageAppScripts:     stageAppScripts,
		StageAppStyles:      stageAppStyles,
		StageAppImages:      stageAppImages,
		StagePluginsFonts:   stagePluginsFonts,
		StagePluginsScripts: stagePluginsScripts,
		StagePluginsStyles:  stagePluginsStyles,
		StagePluginsImages:  stagePluginsImages,
		StageStylesDeploy:   stageStylesDeploy,
		StageStylesMinify:   stageStylesMinify,
		StageScriptsMinify:  stageScriptsMinify,
		StageImagesCompress: stageImagesCompress,
		StageHashAssets:     stageHashAssets,
		StagePrecompress:    stagePrecompress,
	}
}

// Run executes the plan under the build lock. The report is returned even
// when the build fails.
func (r *Runner) Run(ctx context.Context, plan Plan) (*BuildReport, error) {
	defs := make([]StageDef, 0, len(plan.Stages))
	for _, name := range plan.Stages {
		fn, ok := r.stages[name]
		if !ok {
			return nil, ferrors.ValidationError("unknown stage").
				WithContext("stage", string(name)).
				WithContext("plan", plan.Name).
				Build()
		}
		defs = append(defs, StageDef{Name: name, Fn: fn})
	}

	hasher, err := r.cfg.Hasher()
	if err != nil {
		return nil, err
	}

	lock := buildlock.New(r.cfg.DistRoot())
	if err := lock.Acquire(); err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			r.logger.Warn("Failed to release build lock", logfields.Path(lock.Path()), logfields.Error(err))
		}
	}()

	buildID := uuid.NewString()
	report := newBuildReport(buildID, plan.Name)
	logger := r.logger.With(logfields.BuildID(buildID), logfields.Plan(plan.Name))
	bs := &BuildState{
		Config:   r.cfg,
		Plan:     plan,
		Report:   report,
		Hasher:   hasher,
		Logger:   logger,
		Commands: r.commands,
		Recorder: r.recorder,
	}

	logger.Info("Build started", logfields.Count(len(defs)))
	r.record(ctx, logger, func() (eventstore.Event, error) {
		return eventstore.NewBuildStarted(buildID, plan.Name, plan.StageStrings(), r.trigger)
	})

	runErr := r.runStages(ctx, bs, defs)
	report.finish()

	r.recorder.ObserveBuildDuration(plan.Name, report.Duration())
	r.recorder.IncBuildOutcome(metrics.BuildOutcomeLabel(report.Outcome))
	r.recordOutcome(ctx, logger, report)

	if runErr != nil {
		logger.Error("Build failed",
			logfields.Stage(string(report.FailedStage())),
			logfields.DurationMS(float64(report.Duration().Milliseconds())),
			logfields.Error(runErr))
		return report, runErr
	}
	logger.Info("Build finished",
		slog.String("outcome", string(report.Outcome)),
		logfields.Count(report.TotalAssets()),
		logfields.DurationMS(float64(report.Duration().Milliseconds())))
	return report, nil
}

// runStages executes stages in order, recording timing and stopping on the
// first fatal or canceled stage.
func (r *Runner) runStages(ctx context.Context, bs *BuildState, defs []StageDef) error {
	for _, st := range defs {
		select {
		case <-ctx.Done():
			se := newCanceledStageError(st.Name, ctx.Err())
			bs.Report.Errors = append(bs.Report.Errors, se)
			bs.Report.recordStageResult(st.Name, metrics.ResultCanceled, r.recorder)
			return se
		default:
		}

		bs.Report.StageOrder = append(bs.Report.StageOrder, st.Name)
		t0 := time.Now()
		err := st.Fn(ctx, bs)
		dur := time.Since(t0)
		bs.Report.StageDurations[st.Name] = dur
		r.recorder.ObserveStageDuration(string(st.Name), dur)

		result := metrics.ResultSuccess
		var se *StageError
		if err != nil {
			se = classify(st.Name, err)
			switch se.Kind {
			case StageErrorWarning:
				result = metrics.ResultWarning
			case StageErrorCanceled:
				result = metrics.ResultCanceled
			default:
				result = metrics.ResultFatal
			}
		}
		bs.Report.recordStageResult(st.Name, result, r.recorder)
		r.record(ctx, bs.Logger, func() (eventstore.Event, error) {
			return eventstore.NewStageCompleted(bs.Report.BuildID, string(st.Name), string(result), bs.Report.StageAssets[st.Name], dur)
		})

		attrs := []any{
			logfields.Stage(string(st.Name)),
			logfields.Count(bs.Report.StageAssets[st.Name]),
			logfields.DurationMS(float64(dur.Microseconds()) / 1000),
		}
		if se == nil {
			bs.Logger.Debug("Stage finished", attrs...)
			continue
		}
		if se.Kind == StageErrorWarning {
			bs.Report.Warnings = append(bs.Report.Warnings, se)
			bs.Logger.Warn("Stage finished with warning", append(attrs, logfields.Error(se.Err))...)
			continue
		}
		bs.Report.Errors = append(bs.Report.Errors, se)
		return se
	}
	return nil
}

func (r *Runner) recordOutcome(ctx context.Context, logger *slog.Logger, report *BuildReport) {
	id := report.BuildID
	if report.ManifestPath != "" {
		r.record(ctx, logger, func() (eventstore.Event, error) {
			return eventstore.NewAssetsFingerprinted(id, report.Fingerprinted, report.ManifestEntries, report.ManifestPath)
		})
	}
	r.record(ctx, logger, func() (eventstore.Event, error) {
		return eventstore.NewBuildReportGenerated(id, report.HistoryData())
	})
	switch report.Outcome {
	case OutcomeSuccess, OutcomeWarning:
		r.record(ctx, logger, func() (eventstore.Event, error) {
			return eventstore.NewBuildCompleted(id, string(report.Outcome), report.Duration())
		})
	default:
		msg := ""
		if len(report.Errors) > 0 {
			msg = report.Errors[0].Error()
		}
		r.record(ctx, logger, func() (eventstore.Event, error) {
			return eventstore.NewBuildFailed(id, string(report.FailedStage()), msg, report.Outcome == OutcomeCanceled)
		})
	}
}

// record appends a history event. Failures are logged, never returned.
func (r *Runner) record(ctx context.Context, logger *slog.Logger, build func() (eventstore.Event, error)) {
	if r.store == nil {
		return
	}
	evt, err := build()
	if err == nil {
		err = eventstore.AppendEvent(context.WithoutCancel(ctx), r.store, evt)
	}
	if err != nil {
		logger.Warn("Failed to record build history", logfields.Error(err))
	}
}
