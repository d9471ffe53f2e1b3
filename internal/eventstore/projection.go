package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

const (
	StatusRunning  = "running"
	StatusSuccess  = "success"
	StatusWarning  = "warning"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
)

// BuildSummary is the read model of one build.
type BuildSummary struct {
	BuildID         string           `json:"build_id"`
	Plan            string           `json:"plan"`
	Trigger         string           `json:"trigger,omitempty"`
	Status          string           `json:"status"`
	StartedAt       time.Time        `json:"started_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	Duration        time.Duration    `json:"duration,omitempty"`
	StagesRun       int              `json:"stages_run"`
	AssetCount      int              `json:"asset_count"`
	ManifestEntries int              `json:"manifest_entries"`
	ErrorStage      string           `json:"error_stage,omitempty"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	ReportData      *BuildReportData `json:"report_data,omitempty"`
}

// Finished reports whether the build reached a terminal status.
func (s *BuildSummary) Finished() bool { return s.Status != StatusRunning }

// BuildHistoryProjection maintains an in-memory view of build history,
// reconstructed from the events in a Store.
type BuildHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	builds   map[string]*BuildSummary
	history  []*BuildSummary // finished builds, newest first
	maxSize  int
	lastSync time.Time
}

// NewBuildHistoryProjection creates a projection keeping at most
// maxHistorySize finished builds (100 when <= 0).
func NewBuildHistoryProjection(store Store, maxHistorySize int) *BuildHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &BuildHistoryProjection{
		store:   store,
		builds:  make(map[string]*BuildSummary),
		history: make([]*BuildSummary, 0, maxHistorySize),
		maxSize: maxHistorySize,
	}
}

// Rebuild reconstructs the projection from every event in the store.
func (p *BuildHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.builds = make(map[string]*BuildSummary)
	p.history = make([]*BuildSummary, 0, p.maxSize)
	for _, event := range events {
		p.applyEventLocked(event)
	}
	sort.SliceStable(p.history, func(i, j int) bool {
		return p.history[i].StartedAt.After(p.history[j].StartedAt)
	})
	p.trimLocked()
	p.lastSync = time.Now()
	return nil
}

// Apply processes a single event.
func (p *BuildHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventLocked(event)
}

func (p *BuildHistoryProjection) applyEventLocked(event Event) {
	buildID := event.BuildID()
	if buildID == "" {
		return
	}

	summary, exists := p.builds[buildID]
	if !exists {
		summary = &BuildSummary{BuildID: buildID, Status: StatusRunning, StartedAt: event.Timestamp()}
		p.builds[buildID] = summary
	}

	switch event.Type() {
	case TypeBuildStarted:
		var payload struct {
			Plan    string `json:"plan"`
			Trigger string `json:"trigger"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Plan = payload.Plan
			summary.Trigger = payload.Trigger
		}
		summary.StartedAt = event.Timestamp()

	case TypeStageCompleted:
		summary.StagesRun++
		var payload struct {
			Assets int `json:"assets"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.AssetCount += payload.Assets
		}

	case TypeAssetsFingerprinted:
		var payload struct {
			Entries int `json:"manifest_entries"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.ManifestEntries = payload.Entries
		}

	case TypeBuildCompleted:
		p.finishLocked(summary, event.Timestamp(), StatusSuccess)
		var payload struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil && payload.Status != "" {
			summary.Status = payload.Status
		}

	case TypeBuildFailed:
		p.finishLocked(summary, event.Timestamp(), StatusFailed)
		var payload struct {
			Stage    string `json:"stage"`
			Error    string `json:"error"`
			Canceled bool   `json:"canceled"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.ErrorStage = payload.Stage
			summary.ErrorMessage = payload.Error
			if payload.Canceled {
				summary.Status = StatusCanceled
			}
		}

	case TypeBuildReportGenerated:
		var report BuildReportData
		if err := json.Unmarshal(event.Payload(), &report); err == nil {
			summary.ReportData = &report
		}
	}
}

func (p *BuildHistoryProjection) finishLocked(summary *BuildSummary, at time.Time, status string) {
	summary.CompletedAt = &at
	summary.Duration = at.Sub(summary.StartedAt)
	summary.Status = status
	for _, h := range p.history {
		if h.BuildID == summary.BuildID {
			return
		}
	}
	p.history = append([]*BuildSummary{summary}, p.history...)
	p.trimLocked()
}

// trimLocked bounds history and drops finished builds that fell out of it.
func (p *BuildHistoryProjection) trimLocked() {
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	keep := make(map[string]struct{}, len(p.history))
	for _, h := range p.history {
		keep[h.BuildID] = struct{}{}
	}
	for id, s := range p.builds {
		if !s.Finished() {
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(p.builds, id)
		}
	}
}

// GetHistory returns copies of the finished builds, newest first.
func (p *BuildHistoryProjection) GetHistory() []BuildSummary {
	return p.Recent(0)
}

// Recent returns up to limit finished builds, newest first. A limit <= 0
// returns the whole history.
func (p *BuildHistoryProjection) Recent(limit int) []BuildSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	n := len(p.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]BuildSummary, n)
	for i := range n {
		out[i] = *p.history[i]
	}
	return out
}

// GetBuild returns the summary for a specific build.
func (p *BuildHistoryProjection) GetBuild(buildID string) (BuildSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.builds[buildID]
	if !ok {
		return BuildSummary{}, false
	}
	return *s, true
}

// GetLastCompletedBuild returns the most recently finished build.
func (p *BuildHistoryProjection) GetLastCompletedBuild() (BuildSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.history) == 0 {
		return BuildSummary{}, false
	}
	return *p.history[0], true
}

// LastSyncTime returns when the projection was last rebuilt.
func (p *BuildHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}
