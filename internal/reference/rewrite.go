package reference

import (
	"bytes"
	"path"
	"slices"
	"strings"
)

// Replace applies fn to every reference, line by line. When fn returns false
// the reference is left untouched. Content without references is returned
// unchanged (same bytes).
func Replace(content []byte, fn func(Match) (Match, bool)) []byte {
	var out bytes.Buffer
	changed := false
	rest := content
	for len(rest) > 0 {
		line := rest
		if k := bytes.IndexByte(rest, '\n'); k >= 0 {
			line = rest[:k+1]
		}
		rest = rest[len(line):]

		matches := FindAll(line)
		if len(matches) == 0 {
			out.Write(line)
			continue
		}
		last := 0
		for _, m := range matches {
			repl, ok := fn(m)
			if !ok {
				continue
			}
			out.Write(line[last:m.Start])
			out.WriteString(repl.String())
			last = m.End
			changed = true
		}
		out.Write(line[last:])
	}
	if !changed {
		return content
	}
	return out.Bytes()
}

// Table resolves a reference to the reference it should be rewritten to.
// Implementations change the file name and, when the target lives in a
// different directory, the prefix.
type Table interface {
	Lookup(m Match) (Match, bool)
}

// NameTable maps bare file names to fingerprinted file names,
// e.g. "logo.png" -> "logo.a1b2c3.png".
type NameTable map[string]string

// Lookup implements Table.
func (t NameTable) Lookup(m Match) (Match, bool) {
	v, ok := t[m.File()]
	if !ok {
		return m, false
	}
	return m.WithFile(v), true
}

// PathTable resolves references against logical paths. Entries maps logical
// paths ("images/logo.png") to fingerprinted logical paths; From is the
// logical directory of the stylesheet being rewritten ("styles"). When the
// resolved path is not known the bare file name is tried, provided it is
// unique among the entries and the prefix names the entry's top-level
// directory, so the prefix can be pointed at the entry's directory.
type PathTable struct {
	From    string
	Entries map[string]string

	byName map[string][]string
}

// NewPathTable builds a PathTable for a stylesheet in directory from.
func NewPathTable(from string, entries map[string]string) *PathTable {
	t := &PathTable{From: from, Entries: entries, byName: make(map[string][]string, len(entries))}
	for logical := range entries {
		base := path.Base(logical)
		t.byName[base] = append(t.byName[base], logical)
	}
	return t
}

// Lookup implements Table.
func (t *PathTable) Lookup(m Match) (Match, bool) {
	resolved := path.Join(t.From, m.Prefix, m.File())
	if strings.HasPrefix(m.Prefix, "/") {
		resolved = strings.TrimPrefix(path.Clean(m.Path()), "/")
	}
	if v, ok := t.Entries[resolved]; ok {
		return m.WithFile(path.Base(v)), true
	}
	candidates := t.byName[m.File()]
	if len(candidates) != 1 {
		return m, false
	}
	target := t.Entries[candidates[0]]
	prefix, ok := retarget(m.Prefix, path.Dir(target))
	if !ok {
		return m, false
	}
	m.Prefix = prefix
	return m.WithFile(path.Base(target)), true
}

// retarget points prefix at the logical directory dir ("images/icons") by
// replacing everything from the last segment equal to dir's top-level
// directory: "../images" becomes "../images/icons".
func retarget(prefix, dir string) (string, bool) {
	top, _, _ := strings.Cut(dir, "/")
	segs := strings.Split(prefix, "/")
	i := slices.LastIndex(segs, top)
	if i < 0 {
		return "", false
	}
	return strings.Join(append(segs[:i:i], dir), "/"), true
}

// RewriteReferences points every image and font reference found in content
// at its fingerprinted file. Function, quoting and suffix are preserved, and
// so is the prefix unless the file lives in another directory. References
// the table does not know are passed through.
func RewriteReferences(content []byte, table Table) []byte {
	return Replace(content, func(m Match) (Match, bool) {
		repl, ok := table.Lookup(m)
		if !ok || repl.String() == m.String() {
			return m, false
		}
		return repl, true
	})
}

// Layout describes where references should point once assets are copied
// into the output tree: Prefix + category directory.
type Layout struct {
	Prefix    string // relative path from stylesheets to the tree root, e.g. "../"
	ImagesDir string
	FontsDir  string

	// Flatten drops any subdirectory below the category directory. Vendor
	// files are copied flat, app files keep their tree.
	Flatten bool
}

// PrefixFor returns the directory prefix used for references of kind k.
func (l Layout) PrefixFor(k Kind) string {
	return strings.TrimSuffix(l.Prefix+l.dir(k), "/")
}

func (l Layout) dir(k Kind) string {
	if k == KindFont {
		return strings.Trim(l.FontsDir, "/")
	}
	return strings.Trim(l.ImagesDir, "/")
}

// Relocate rewrites the directory part of every reference to the output
// layout, keeping the file name, quoting and suffix:
// url("../../vendor/img/x.png") becomes url("../images/x.png"). Unless the
// layout flattens, the path below a category directory already named in the
// prefix is kept: url(../images/icons/x.png) stays below images/icons.
func Relocate(content []byte, layout Layout) []byte {
	return Replace(content, func(m Match) (Match, bool) {
		prefix := layout.PrefixFor(m.Kind)
		if prefix == "" {
			return m, false
		}
		if !layout.Flatten {
			if sub := subdirBelow(m.Prefix, layout.dir(m.Kind)); sub != "" {
				prefix += "/" + sub
			}
		}
		if prefix == m.Prefix {
			return m, false
		}
		m.Prefix = prefix
		return m, true
	})
}

// subdirBelow returns the part of prefix after its last segment equal to dir.
func subdirBelow(prefix, dir string) string {
	if dir == "" {
		return ""
	}
	segs := strings.Split(prefix, "/")
	i := slices.LastIndex(segs, dir)
	if i < 0 {
		return ""
	}
	return strings.Join(segs[i+1:], "/")
}
