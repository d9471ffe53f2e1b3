package eventstore

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

// Event type names.
const (
	TypeBuildStarted         = "BuildStarted"
	TypeStageCompleted       = "StageCompleted"
	TypeAssetsFingerprinted  = "AssetsFingerprinted"
	TypeBuildCompleted       = "BuildCompleted"
	TypeBuildFailed          = "BuildFailed"
	TypeBuildReportGenerated = "BuildReportGenerated"
)

func newBaseEvent(buildID, eventType string, payload any) (BaseEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return BaseEvent{}, errors.EventStoreError("failed to marshal "+eventType+" payload").
			WithCause(err).
			WithContext("build_id", buildID).
			Build()
	}
	return BaseEvent{
		EventBuildID:   buildID,
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   data,
	}, nil
}

// BuildStarted is emitted when the runner starts a plan.
type BuildStarted struct {
	BaseEvent
	Plan    string   `json:"plan"`
	Stages  []string `json:"stages"`
	Trigger string   `json:"trigger,omitempty"` // cli, watch or scheduled
}

// NewBuildStarted creates a BuildStarted event.
func NewBuildStarted(buildID, plan string, stages []string, trigger string) (*BuildStarted, error) {
	e := &BuildStarted{Plan: plan, Stages: stages, Trigger: trigger}
	base, err := newBaseEvent(buildID, TypeBuildStarted, map[string]any{
		"plan":    plan,
		"stages":  stages,
		"trigger": trigger,
	})
	if err != nil {
		return nil, err
	}
	e.BaseEvent = base
	return e, nil
}

// StageCompleted is emitted after each stage, whatever its result.
type StageCompleted struct {
	BaseEvent
	Stage    string        `json:"stage"`
	Result   string        `json:"result"`
	Assets   int           `json:"assets"`
	Duration time.Duration `json:"duration_ms"`
}

// NewStageCompleted creates a StageCompleted event.
func NewStageCompleted(buildID, stage, result string, assets int, duration time.Duration) (*StageCompleted, error) {
	base, err := newBaseEvent(buildID, TypeStageCompleted, map[string]any{
		"stage":       stage,
		"result":      result,
		"assets":      assets,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		return nil, err
	}
	return &StageCompleted{BaseEvent: base, Stage: stage, Result: result, Assets: assets, Duration: duration}, nil
}

// AssetsFingerprinted is emitted when the fingerprinting stage wrote its manifest.
type AssetsFingerprinted struct {
	BaseEvent
	Assets          int    `json:"assets"`
	ManifestEntries int    `json:"manifest_entries"`
	ManifestPath    string `json:"manifest_path"`
}

// NewAssetsFingerprinted creates an AssetsFingerprinted event.
func NewAssetsFingerprinted(buildID string, assets, entries int, manifestPath string) (*AssetsFingerprinted, error) {
	base, err := newBaseEvent(buildID, TypeAssetsFingerprinted, map[string]any{
		"assets":           assets,
		"manifest_entries": entries,
		"manifest_path":    manifestPath,
	})
	if err != nil {
		return nil, err
	}
	return &AssetsFingerprinted{BaseEvent: base, Assets: assets, ManifestEntries: entries, ManifestPath: manifestPath}, nil
}

// BuildCompleted is emitted when a build finishes without a fatal error.
type BuildCompleted struct {
	BaseEvent
	Status   string        `json:"status"`
	Duration time.Duration `json:"duration_ms"`
}

// NewBuildCompleted creates a BuildCompleted event. Status is success or warning.
func NewBuildCompleted(buildID, status string, duration time.Duration) (*BuildCompleted, error) {
	base, err := newBaseEvent(buildID, TypeBuildCompleted, map[string]any{
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		return nil, err
	}
	return &BuildCompleted{BaseEvent: base, Status: status, Duration: duration}, nil
}

// BuildFailed is emitted when a build aborts.
type BuildFailed struct {
	BaseEvent
	Stage    string `json:"stage"`
	Error    string `json:"error"`
	Canceled bool   `json:"canceled,omitempty"`
}

// NewBuildFailed creates a BuildFailed event.
func NewBuildFailed(buildID, stage, errorMsg string, canceled bool) (*BuildFailed, error) {
	base, err := newBaseEvent(buildID, TypeBuildFailed, map[string]any{
		"stage":    stage,
		"error":    errorMsg,
		"canceled": canceled,
	})
	if err != nil {
		return nil, err
	}
	return &BuildFailed{BaseEvent: base, Stage: stage, Error: errorMsg, Canceled: canceled}, nil
}

// BuildReportData is the part of a build report kept in history.
type BuildReportData struct {
	Outcome         string           `json:"outcome"`
	Summary         string           `json:"summary"`
	Assets          map[string]int   `json:"assets"` // category -> count
	ManifestEntries int              `json:"manifest_entries"`
	StageDurations  map[string]int64 `json:"stage_durations_ms"`
	Errors          []string         `json:"errors,omitempty"`
	Warnings        []string         `json:"warnings,omitempty"`
}

// BuildReportGenerated carries the final report of a build.
type BuildReportGenerated struct {
	BaseEvent
	Report BuildReportData `json:"report"`
}

// NewBuildReportGenerated creates a BuildReportGenerated event.
func NewBuildReportGenerated(buildID string, report BuildReportData) (*BuildReportGenerated, error) {
	base, err := newBaseEvent(buildID, TypeBuildReportGenerated, report)
	if err != nil {
		return nil, err
	}
	return &BuildReportGenerated{BaseEvent: base, Report: report}, nil
}
