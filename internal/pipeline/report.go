package pipeline

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"git.home.luguber.info/inful/assetbuilder/internal/eventstore"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
)

// BuildOutcome is the typed enumeration of final build result states.
type BuildOutcome string

const (
	OutcomeSuccess  BuildOutcome = "success"
	OutcomeWarning  BuildOutcome = "warning"
	OutcomeFailed   BuildOutcome = "failed"
	OutcomeCanceled BuildOutcome = "canceled"
)

// StageCount aggregates outcomes recorded for a stage.
type StageCount struct {
	Success  int
	Warning  int
	Fatal    int
	Canceled int
}

// BuildReport captures what a build did.
type BuildReport struct {
	BuildID         string
	Plan            string
	Start           time.Time
	End             time.Time
	StageOrder      []StageName
	StageDurations  map[StageName]time.Duration
	StageCounts     map[StageName]StageCount
	StageAssets     map[StageName]int
	Assets          map[string]int // category -> assets fingerprinted
	Fingerprinted   int            // assets fingerprinted in this build
	ManifestEntries int            // entries in the manifest after merge
	ManifestPath    string
	Errors          []error // fatal or canceled, at most one
	Warnings        []error
	Outcome         BuildOutcome
}

func newBuildReport(buildID, plan string) *BuildReport {
	return &BuildReport{
		BuildID:        buildID,
		Plan:           plan,
		Start:          time.Now(),
		StageDurations: make(map[StageName]time.Duration),
		StageCounts:    make(map[StageName]StageCount),
		StageAssets:    make(map[StageName]int),
		Assets:         make(map[string]int),
	}
}

// Duration is the wall time of the build.
func (r *BuildReport) Duration() time.Duration {
	if r.End.IsZero() {
		return time.Since(r.Start)
	}
	return r.End.Sub(r.Start)
}

// TotalAssets sums assets written across stages.
func (r *BuildReport) TotalAssets() int {
	n := 0
	for _, c := range r.StageAssets {
		n += c
	}
	return n
}

// Summary returns a human-readable single-line summary.
func (r *BuildReport) Summary() string {
	return fmt.Sprintf("plan=%s stages=%d assets=%d manifest=%d duration=%s errors=%d warnings=%d outcome=%s",
		r.Plan, len(r.StageOrder), r.TotalAssets(), r.ManifestEntries,
		r.Duration().Truncate(time.Millisecond), len(r.Errors), len(r.Warnings), r.Outcome)
}

// FailedStage returns the stage that aborted the build, if any.
func (r *BuildReport) FailedStage() StageName {
	for _, err := range r.Errors {
		var se *StageError
		if errors.As(err, &se) {
			return se.Stage
		}
	}
	return ""
}

func (r *BuildReport) finish() {
	r.End = time.Now()
	r.deriveOutcome()
}

func (r *BuildReport) deriveOutcome() {
	switch {
	case len(r.Errors) > 0:
		r.Outcome = OutcomeFailed
		for _, e := range r.Errors {
			var se *StageError
			if errors.As(e, &se) && se.Kind == StageErrorCanceled {
				r.Outcome = OutcomeCanceled
			}
		}
	case len(r.Warnings) > 0:
		r.Outcome = OutcomeWarning
	default:
		r.Outcome = OutcomeSuccess
	}
}

// recordStageResult updates counters and emits the stage metric.
func (r *BuildReport) recordStageResult(stage StageName, res metrics.ResultLabel, recorder metrics.Recorder) {
	sc := r.StageCounts[stage]
	switch res {
	case metrics.ResultSuccess:
		sc.Success++
	case metrics.ResultWarning:
		sc.Warning++
	case metrics.ResultFatal:
		sc.Fatal++
	case metrics.ResultCanceled:
		sc.Canceled++
	}
	r.StageCounts[stage] = sc
	recorder.IncStageResult(string(stage), res)
}

// HistoryData converts the report to its build history form.
func (r *BuildReport) HistoryData() eventstore.BuildReportData {
	durations := make(map[string]int64, len(r.StageDurations))
	for k, v := range r.StageDurations {
		durations[string(k)] = v.Milliseconds()
	}
	data := eventstore.BuildReportData{
		Outcome:         string(r.Outcome),
		Summary:         r.Summary(),
		Assets:          maps.Clone(r.Assets),
		ManifestEntries: r.ManifestEntries,
		StageDurations:  durations,
	}
	for _, e := range r.Errors {
		data.Errors = append(data.Errors, e.Error())
	}
	for _, w := range r.Warnings {
		data.Warnings = append(data.Warnings, w.Error())
	}
	return data
}

// SortedCategories returns the categories with fingerprinted assets.
func (r *BuildReport) SortedCategories() []string {
	return slices.Sorted(maps.Keys(r.Assets))
}
