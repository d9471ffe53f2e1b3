package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

func TestBuildPlan_Order(t *testing.T) {
	cfg := config.Default()

	plan := BuildPlan(cfg)
	require.False(t, plan.Lenient)
	require.Equal(t, AllStages()[:len(AllStages())-1], plan.Stages)

	cfg.Compress.Enabled = true
	require.Equal(t, AllStages(), BuildPlan(cfg).Stages)
}

func TestDevPlan(t *testing.T) {
	plan := DevPlan()
	require.True(t, plan.Lenient)
	require.Equal(t, StageClean, plan.Stages[0])
	require.Len(t, plan.Stages, 9)
	require.False(t, plan.Contains(StageHashAssets))
	require.False(t, plan.Contains(StageScriptsMinify))
}

func TestPlanByName(t *testing.T) {
	cfg := config.Default()
	for _, name := range []string{"", PlanBuild, PlanDev, PlanHash, PlanClean} {
		p, err := PlanByName(name, cfg)
		require.NoError(t, err, name)
		require.NotEmpty(t, p.Stages)
	}

	_, err := PlanByName("deploy", cfg)
	require.Error(t, err)
	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	require.Equal(t, ferrors.CategoryValidation, ce.Category())
}

func TestPlanSubsetKeepsPlanOrder(t *testing.T) {
	sub := DevPlan().Subset([]StageName{StageAppImages, StageAppScripts, StageHashAssets})
	require.Equal(t, []StageName{StageAppScripts, StageAppImages}, sub.Stages)
	require.True(t, sub.Lenient)
	require.Equal(t, PlanDev, sub.Name)
	require.Equal(t, []string{"app-scripts", "app-images"}, sub.StageStrings())
}

func TestParseStageName(t *testing.T) {
	for _, s := range AllStages() {
		got, ok := ParseStageName(string(s))
		require.True(t, ok)
		require.Equal(t, s, got)
	}
	_, ok := ParseStageName("minify")
	require.False(t, ok)
}
