package asset

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

// ErrRootMissing is returned when the tree to collect from does not exist.
var ErrRootMissing = ferrors.FileSystemError("asset directory missing or unreadable").Build()

// Layout maps each category to its subdirectory below a tree root.
type Layout map[Category]string

// Dir returns the subdirectory for c, defaulting to the category name.
func (l Layout) Dir(c Category) string {
	if d, ok := l[c]; ok && d != "" {
		return d
	}
	return string(c)
}

// Collect reads every regular file below the category subdirectories of root.
// Missing category directories are skipped, a missing or unreadable root is
// fatal. Assets are returned sorted by logical path.
func Collect(root string, layout Layout) ([]Asset, error) {
	if err := CheckDir(root); err != nil {
		return nil, err
	}

	var assets []Asset
	for _, cat := range Categories() {
		dir := filepath.Join(root, filepath.FromSlash(layout.Dir(cat)))
		files, err := Find(dir, nil)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, ferrors.FileSystemError("read category directory").
				WithContext("path", dir).
				WithCause(err).
				Build()
		}
		for _, rel := range files {
			abs := filepath.Join(dir, filepath.FromSlash(rel))
			content, err := os.ReadFile(abs)
			if err != nil {
				return nil, ferrors.FileSystemError("read asset").
					WithContext("path", abs).
					WithCause(err).
					Build()
			}
			assets = append(assets, Asset{
				Logical:  layout.Dir(cat) + "/" + rel,
				Path:     abs,
				Category: cat,
				Content:  content,
			})
		}
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Logical < assets[j].Logical })
	return assets, nil
}

// CheckDir fails unless dir exists, is a directory and can be listed.
func CheckDir(dir string) error {
	st, err := os.Stat(dir)
	if err != nil {
		return ErrRootMissing.WithCause(err).WithContext("path", dir)
	}
	if !st.IsDir() {
		return ErrRootMissing.WithContext("path", dir).WithContext("reason", "not a directory")
	}
	f, err := os.Open(dir)
	if err != nil {
		return ErrRootMissing.WithCause(err).WithContext("path", dir)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.ReadDir(1); err != nil && !errors.Is(err, io.EOF) {
		return ErrRootMissing.WithCause(err).WithContext("path", dir)
	}
	return nil
}

// Find walks dir and returns slash-separated paths, relative to dir, of the
// regular files accepted by match (all files when match is nil). Hidden files
// and directories are skipped. The result is sorted lexically. A missing dir
// yields an error wrapping fs.ErrNotExist.
func Find(dir string, match func(name string) bool) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}
	var out []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return ferrors.FileSystemError("walk asset directory").
				WithContext("path", p).
				WithCause(err).
				Build()
		}
		name := d.Name()
		if p != dir && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if match != nil && !match(name) {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
