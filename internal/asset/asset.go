package asset

import "path"

// Asset is a discrete output file: a script bundle, style bundle, image or font.
type Asset struct {
	// Logical is the slash-separated path relative to the tree root,
	// e.g. "styles/app.css". Manifest keys are logical paths.
	Logical  string
	Path     string // absolute path on disk
	Category Category
	Content  []byte
}

// Dir returns the logical directory of the asset.
func (a Asset) Dir() string {
	return path.Dir(a.Logical)
}

// Name returns the base file name.
func (a Asset) Name() string {
	return path.Base(a.Logical)
}
