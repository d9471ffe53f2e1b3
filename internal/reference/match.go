// Package reference finds and rewrites asset references embedded in
// stylesheets: url(...) and src(...) functions pointing at images or fonts.
package reference

import "strings"

// Kind distinguishes the two recognised reference families.
type Kind int

const (
	KindImage Kind = iota + 1
	KindFont
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindFont:
		return "font"
	default:
		return "unknown"
	}
}

var (
	imageExtensions = []string{"gif", "png", "jpg", "jpeg"}
	fontExtensions  = []string{"eot", "svg", "woff", "woff2", "ttf", "otf"}
)

// Match is one parsed reference. Rendering a Match with String reproduces the
// original text exactly, so callers rewrite by editing fields.
type Match struct {
	Start, End int // byte span of the whole function call within its line

	Func   string // "url" or "src"
	Quote  string // "'", "\"" or "" for unquoted
	Prefix string // directory part without the trailing slash, e.g. "../images"
	Name   string // file name without extension, e.g. "logo"
	Ext    string // extension as written, without the dot
	Suffix string // query string or fragment, fonts only, e.g. "?v=2"
	Kind   Kind
}

// File returns the referenced file name, e.g. "logo.png".
func (m Match) File() string {
	return m.Name + "." + m.Ext
}

// Path returns the referenced path without suffix, e.g. "../images/logo.png".
func (m Match) Path() string {
	return m.Prefix + "/" + m.File()
}

// String renders the reference back into stylesheet syntax.
func (m Match) String() string {
	var b strings.Builder
	b.Grow(len(m.Func) + len(m.Prefix) + len(m.Name) + len(m.Ext) + len(m.Suffix) + 6)
	b.WriteString(m.Func)
	b.WriteByte('(')
	b.WriteString(m.Quote)
	b.WriteString(m.Path())
	b.WriteString(m.Suffix)
	b.WriteString(m.Quote)
	b.WriteByte(')')
	return b.String()
}

// WithFile returns a copy of m pointing at file (a name with extension).
func (m Match) WithFile(file string) Match {
	if i := strings.LastIndexByte(file, '.'); i > 0 {
		m.Name, m.Ext = file[:i], file[i+1:]
	} else {
		m.Name, m.Ext = file, ""
	}
	return m
}

func kindOf(ext string) Kind {
	ext = strings.ToLower(ext)
	for _, e := range imageExtensions {
		if e == ext {
			return KindImage
		}
	}
	for _, e := range fontExtensions {
		if e == ext {
			return KindFont
		}
	}
	return 0
}
