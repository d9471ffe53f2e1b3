// Package buildlock serialises builds that share an output tree across
// processes.
package buildlock

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

// Suffix is appended to the hidden lock file created next to the dist tree.
const Suffix = ".lock"

// ErrBuildLocked is returned when another process already holds the lock.
var ErrBuildLocked = ferrors.RuntimeError("another build is already running for this output tree").Build()

// Lock is an exclusive advisory lock on a dist tree.
type Lock struct {
	path string
	fl   *flock.Flock
}

// New returns an unlocked Lock for the given dist directory. The lock file
// sits beside the directory ("dist" locks ".dist.lock") so that cleaning
// the tree never unlinks a held lock and locking never creates the tree.
func New(distDir string) *Lock {
	clean := filepath.Clean(distDir)
	path := filepath.Join(filepath.Dir(clean), "."+filepath.Base(clean)+Suffix)
	return &Lock{path: path, fl: flock.New(path)}
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// Acquire takes the lock without blocking. It fails with ErrBuildLocked when
// another holder exists.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return ferrors.FileSystemError("create lock directory").
			WithContext("path", l.path).
			WithCause(err).
			Build()
	}
	ok, err := l.fl.TryLock()
	if err != nil {
		return ferrors.RuntimeError("acquire build lock").
			WithContext("path", l.path).
			WithCause(err).
			Build()
	}
	if !ok {
		return ErrBuildLocked.WithContext("path", l.path)
	}
	return nil
}

// Release drops the lock. Releasing an unheld lock is a no-op.
func (l *Lock) Release() error {
	if !l.fl.Locked() {
		return nil
	}
	return l.fl.Unlock()
}
