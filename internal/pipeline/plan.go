package pipeline

import (
	"slices"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

// Plan names.
const (
	PlanBuild = "build"
	PlanDev   = "dev"
	PlanHash  = "hash"
	PlanClean = "clean"
)

// Plan is an explicit ordered list of stages. Lenient plans downgrade
// external tool failures to warnings so watch mode keeps running.
type Plan struct {
	Name    string
	Stages  []StageName
	Lenient bool
}

var copyStages = []StageName{
	StageAppFonts, StageAppScripts, StageAppStyles, StageAppImages,
	StagePluginsFonts, StagePluginsScripts, StagePluginsStyles, StagePluginsImages,
}

// BuildPlan runs every stage; precompress only when enabled.
func BuildPlan(cfg *config.Config) Plan {
	stages := []StageName{StageClean}
	stages = append(stages, copyStages...)
	stages = append(stages, StageStylesDeploy, StageStylesMinify, StageScriptsMinify, StageImagesCompress, StageHashAssets)
	if cfg.Compress.Enabled {
		stages = append(stages, StagePrecompress)
	}
	return Plan{Name: PlanBuild, Stages: stages}
}

// DevPlan cleans and rebuilds the dist tree without production transforms.
func DevPlan() Plan {
	return Plan{Name: PlanDev, Stages: append([]StageName{StageClean}, copyStages...), Lenient: true}
}

// HashPlan only fingerprints an existing dist tree.
func HashPlan() Plan {
	return Plan{Name: PlanHash, Stages: []StageName{StageHashAssets}}
}

// CleanPlan only empties the dist tree.
func CleanPlan() Plan {
	return Plan{Name: PlanClean, Stages: []StageName{StageClean}}
}

// PlanByName resolves one of the built-in plans.
func PlanByName(name string, cfg *config.Config) (Plan, error) {
	switch name {
	case PlanBuild, "":
		return BuildPlan(cfg), nil
	case PlanDev:
		return DevPlan(), nil
	case PlanHash:
		return HashPlan(), nil
	case PlanClean:
		return CleanPlan(), nil
	default:
		return Plan{}, ferrors.ValidationError("unknown plan").
			WithContext("plan", name).
			Build()
	}
}

// Subset keeps the stages of p that appear in names, preserving plan order.
func (p Plan) Subset(names []StageName) Plan {
	out := Plan{Name: p.Name, Lenient: p.Lenient}
	for _, s := range p.Stages {
		if slices.Contains(names, s) {
			out.Stages = append(out.Stages, s)
		}
	}
	return out
}

// Contains reports whether the plan runs stage s.
func (p Plan) Contains(s StageName) bool {
	return slices.Contains(p.Stages, s)
}

// StageStrings returns the stage names as strings.
func (p Plan) StageStrings() []string {
	out := make([]string, len(p.Stages))
	for i, s := range p.Stages {
		out[i] = string(s)
	}
	return out
}
