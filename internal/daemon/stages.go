package daemon

import (
	"slices"

	"git.home.luguber.info/inful/assetbuilder/internal/events"
	"git.home.luguber.info/inful/assetbuilder/internal/pipeline"
)

// scopeStages lists the dev stages a change in each scope invalidates.
// Template changes only need a browser reload.
var scopeStages = map[events.Scope][]pipeline.StageName{
	events.ScopeScripts: {pipeline.StageAppScripts},
	events.ScopeStyles:  {pipeline.StageAppStyles},
	events.ScopeImages:  {pipeline.StageAppImages},
	events.ScopeFonts:   {pipeline.StageAppFonts},
	events.ScopeVendor: {
		pipeline.StagePluginsFonts, pipeline.StagePluginsScripts,
		pipeline.StagePluginsStyles, pipeline.StagePluginsImages,
	},
	events.ScopeTemplates: nil,
}

// StagesFor returns the stages affected by scopes, in dev plan order and
// without duplicates.
func StagesFor(scopes []events.Scope) []pipeline.StageName {
	var want []pipeline.StageName
	for _, s := range scopes {
		want = append(want, scopeStages[s]...)
	}
	return pipeline.DevPlan().Subset(want).Stages
}

func stageStrings(names []pipeline.StageName) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}

func sortedScopes(set map[events.Scope]struct{}) []events.Scope {
	out := make([]events.Scope, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}
