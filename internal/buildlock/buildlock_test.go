package buildlock

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "dist")
	l := New(dir + "/")
	require.Equal(t, filepath.Join(root, ".dist.lock"), l.Path())

	require.NoError(t, l.Acquire())
	require.FileExists(t, l.Path())
	require.NoDirExists(t, dir, "locking must not create the dist tree")
	require.NoError(t, l.Release())
	require.NoError(t, l.Release())
}

func TestSecondHolderIsRejected(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dist")
	first := New(dir)
	require.NoError(t, first.Acquire())
	t.Cleanup(func() { _ = first.Release() })

	second := New(dir)
	err := second.Acquire()
	require.ErrorIs(t, err, ErrBuildLocked)

	require.NoError(t, first.Release())
	require.NoError(t, second.Acquire())
	require.NoError(t, second.Release())
}
