// Package asset models the static files handled by the pipeline and knows how
// to find them on disk.
package asset

import (
	"path"
	"strings"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

// Category groups assets by kind. The value doubles as the default
// subdirectory name in source, dist and build trees.
type Category string

const (
	Images  Category = "images"
	Scripts Category = "scripts"
	Styles  Category = "styles"
	Fonts   Category = "fonts"
)

var extensions = map[Category][]string{
	Images:  {"gif", "png", "jpg", "jpeg"},
	Scripts: {"js"},
	Styles:  {"css"},
	Fonts:   {"eot", "svg", "woff", "woff2", "ttf", "otf"},
}

// Categories returns every category in hashing order.
func Categories() []Category {
	return []Category{Images, Scripts, Styles, Fonts}
}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := extensions[c]; !ok {
		return "", ferrors.ValidationError("unknown asset category").
			WithContext("category", s).
			Build()
	}
	return c, nil
}

// Extensions returns the lowercase extensions (without dot) belonging to c.
func (c Category) Extensions() []string {
	return append([]string(nil), extensions[c]...)
}

// Matches reports whether name carries one of the category's extensions.
func (c Category) Matches(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	if ext == "" {
		return false
	}
	for _, e := range extensions[c] {
		if e == ext {
			return true
		}
	}
	return false
}

// Kind is the singular form used in reports: script, style, image or font.
func (c Category) Kind() string {
	return strings.TrimSuffix(string(c), "s")
}
