package pipeline

// StageName is a strongly-typed identifier for a build stage.
type StageName string

// Canonical stage names, in full build order.
const (
	StageClean          StageName = "clean"
	StageAppFonts       StageName = "app-fonts"
	StageAppScripts     StageName = "app-scripts"
	StageAppStyles      StageName = "app-styles"
	StageAppImages      StageName = "app-images"
	StagePluginsFonts   StageName = "plugins-fonts"
	StagePluginsScripts StageName = "plugins-scripts"
	StagePluginsStyles  StageName = "plugins-styles"
	StagePluginsImages  StageName = "plugins-images"
	StageStylesDeploy   StageName = "styles-deploy"
	StageStylesMinify   StageName = "styles-minify"
	StageScriptsMinify  StageName = "scripts-minify"
	StageImagesCompress StageName = "images-compress"
	StageHashAssets     StageName = "hash-assets"
	StagePrecompress    StageName = "precompress"
)

// AllStages lists every stage in canonical order.
func AllStages() []StageName {
	return []StageName{
		StageClean,
		StageAppFonts, StageAppScripts, StageAppStyles, StageAppImages,
		StagePluginsFonts, StagePluginsScripts, StagePluginsStyles, StagePluginsImages,
		StageStylesDeploy, StageStylesMinify, StageScriptsMinify, StageImagesCompress,
		StageHashAssets, StagePrecompress,
	}
}

// ParseStageName validates a stage name.
func ParseStageName(s string) (StageName, bool) {
	for _, n := range AllStages() {
		if string(n) == s {
			return n, true
		}
	}
	return "", false
}

// StageDef pairs a stage name with its executing function.
type StageDef struct {
	Name StageName
	Fn   Stage
}
