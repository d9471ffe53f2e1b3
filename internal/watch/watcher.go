// Package watch turns filesystem notifications under the source trees into
// events.SourceChanged events on the bus.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/assetbuilder/internal/asset"
	"git.home.luguber.info/inful/assetbuilder/internal/config"
	"git.home.luguber.info/inful/assetbuilder/internal/events"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
)

// Root is a watched directory tree and the scope its changes belong to.
// When Extensions is set only files with one of them are reported.
type Root struct {
	Dir        string
	Scope      events.Scope
	Extensions []string
}

func (r Root) accepts(path string) bool {
	if len(r.Extensions) == 0 {
		return true
	}
	ext := filepath.Ext(path)
	return slices.ContainsFunc(r.Extensions, func(e string) bool {
		return strings.EqualFold(e, ext)
	})
}

// Roots lists the trees watched for cfg: the source category directories,
// every vendor directory and the templates directory when configured.
func Roots(cfg *config.Config) []Root {
	roots := []Root{
		{Dir: cfg.SourcePath(asset.Images), Scope: events.ScopeImages},
		{Dir: cfg.SourcePath(asset.Scripts), Scope: events.ScopeScripts},
		{Dir: cfg.SourcePath(asset.Styles), Scope: events.ScopeStyles},
		{Dir: cfg.SourcePath(asset.Fonts), Scope: events.ScopeFonts},
	}
	for _, dir := range cfg.VendorDirs() {
		roots = append(roots, Root{Dir: dir, Scope: events.ScopeVendor})
	}
	if t := cfg.TemplatesRoot(); t != "" {
		roots = append(roots, Root{Dir: t, Scope: events.ScopeTemplates, Extensions: cfg.Watch.TemplateExtensions})
	}
	return roots
}

// Watcher publishes SourceChanged events for files below its roots.
type Watcher struct {
	bus    *events.Bus
	roots  []Root
	fs     *fsnotify.Watcher
	logger *slog.Logger
}

// New starts watching every existing root recursively. Missing roots are
// skipped; it fails when none of them exists.
func New(bus *events.Bus, roots []Root, logger *slog.Logger) (*Watcher, error) {
	if bus == nil {
		return nil, ferrors.ValidationError("bus is required").Build()
	}
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.RuntimeError("create filesystem watcher").WithCause(err).Build()
	}

	w := &Watcher{bus: bus, fs: fw, logger: logger}
	for _, r := range roots {
		r.Dir = filepath.Clean(r.Dir)
		if fi, err := os.Stat(r.Dir); err != nil || !fi.IsDir() {
			logger.Debug("Watch root missing, skipping", logfields.Path(r.Dir), logfields.Scope(string(r.Scope)))
			continue
		}
		w.roots = append(w.roots, r)
		w.addRecursive(r.Dir)
	}
	if len(w.roots) == 0 {
		_ = fw.Close()
		return nil, ferrors.NotFoundError("no watchable source directory").
			WithContext("roots", len(roots)).
			Build()
	}
	// Longest directory first so nested roots win in rootFor.
	slices.SortFunc(w.roots, func(a, b Root) int { return len(b.Dir) - len(a.Dir) })
	return w, nil
}

// WatchList returns the directories currently watched.
func (w *Watcher) WatchList() []string {
	return w.fs.WatchList()
}

// Run forwards filesystem events until ctx ends, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fs.Close() }()
	w.logger.Info("Watching source trees", logfields.Count(len(w.roots)))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if ShouldIgnore(ev.Name) {
		return
	}
	op, ok := opOf(ev.Op)
	if !ok {
		return
	}
	root, ok := w.rootFor(ev.Name)
	if !ok {
		return
	}
	if op == events.OpCreate {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			w.addRecursive(ev.Name)
			if len(root.Extensions) > 0 {
				return
			}
		}
	}
	if !root.accepts(ev.Name) {
		return
	}
	scope := root.Scope

	evt := events.SourceChanged{Scope: scope, Path: ev.Name, Op: op, At: time.Now()}
	w.logger.Debug("Source change detected", logfields.Path(ev.Name), logfields.Scope(string(scope)), logfields.Op(string(op)))
	if err := w.bus.Publish(ctx, evt); err != nil && ctx.Err() == nil {
		w.logger.Warn("Failed to publish source change", logfields.Error(err))
	}
}

func (w *Watcher) rootFor(path string) (Root, bool) {
	for _, r := range w.roots {
		if path == r.Dir || strings.HasPrefix(path, r.Dir+string(filepath.Separator)) {
			return r, true
		}
	}
	return Root{}, false
}

func (w *Watcher) addRecursive(root string) {
	_ = filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fs.Add(p); err != nil {
			w.logger.Warn("Watch add failed", logfields.Path(p), logfields.Error(err))
		}
		return nil
	})
}

func opOf(op fsnotify.Op) (events.Op, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return events.OpCreate, true
	case op.Has(fsnotify.Write):
		return events.OpWrite, true
	case op.Has(fsnotify.Remove):
		return events.OpRemove, true
	case op.Has(fsnotify.Rename):
		return events.OpRename, true
	default:
		return "", false
	}
}

// ShouldIgnore reports whether a changed path is noise: hidden files, editor
// swap and backup files, OS metadata.
func ShouldIgnore(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "."):
		return true
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasSuffix(base, ".tmp"):
		return true
	case strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	case base == "Thumbs.db", base == "4913":
		return true
	}
	return false
}
