package security

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustTempDir(t *testing.T) string {
	t.Helper()
	d := t.TempDir()
	// Ensure real path (EvalSymlinks on macOS can change /var -> /private/var)
	real, err := filepath.EvalSymlinks(d)
	require.NoError(t, err)
	return real
}

func TestNewManager_ValidateConfig(t *testing.T) {
	dir := mustTempDir(t)
	m, err := NewManager([]string{dir, "  "}, nil)
	require.NoError(t, err)
	require.NoError(t, m.ValidateConfig())
	require.Equal(t, []string{dir}, m.AllowedDirectories())

	empty, err := NewManager(nil, nil)
	require.NoError(t, err)
	require.Error(t, empty.ValidateConfig())

	_, err = NewManager([]string{dir}, []string{"csv"})
	require.Error(t, err)
	_, err = NewManager([]string{filepath.Join(dir, "missing")}, nil)
	require.Error(t, err)
}

func TestValidateOpenPath_AllowsWithinRoot(t *testing.T) {
	root := mustTempDir(t)
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	for _, name := range []string{"dataset_final.csv", "cluster_2022.xlsx"} {
		fpath := filepath.Join(sub, name)
		require.NoError(t, os.WriteFile(fpath, []byte("test"), 0o644))

		m, err := NewManager([]string{root}, nil)
		require.NoError(t, err)
		got, err := m.ValidateOpenPath(fpath)
		require.NoError(t, err)
		require.True(t, filepath.IsAbs(got))
	}
}

func TestValidateOpenPath_Denials(t *testing.T) {
	root := mustTempDir(t)
	outsideDir := mustTempDir(t)
	outside := filepath.Join(outsideDir, "escape.csv")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))
	bad := filepath.Join(root, "bad.txt")
	require.NoError(t, os.WriteFile(bad, []byte("x"), 0o644))

	m, err := NewManager([]string{root}, nil)
	require.NoError(t, err)

	_, err = m.ValidateOpenPath(outside)
	require.ErrorIs(t, err, ErrNotAllowed)
	_, err = m.ValidateOpenPath(bad)
	require.ErrorIs(t, err, ErrUnsupportedExtension)
	_, err = m.ValidateOpenPath(filepath.Join(root, "missing.csv"))
	require.ErrorIs(t, err, ErrNotFound)
	_, err = m.ValidateOpenPath("")
	require.ErrorIs(t, err, ErrNotAllowed)
}

func TestValidateOpenPath_SymlinkEscapeDenied(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test skipped on Windows")
	}
	root := mustTempDir(t)
	outsideDir := mustTempDir(t)
	target := filepath.Join(outsideDir, "target.csv")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))
	link := filepath.Join(root, "link.csv")
	require.NoError(t, os.Symlink(target, link))

	m, err := NewManager([]string{root}, nil)
	require.NoError(t, err)
	_, err = m.ValidateOpenPath(link)
	require.ErrorIs(t, err, ErrNotAllowed)
}

func TestValidateOutputDir(t *testing.T) {
	root := mustTempDir(t)
	out := filepath.Join(root, "out")
	require.NoError(t, os.Mkdir(out, 0o755))

	m, err := NewManager([]string{root}, nil)
	require.NoError(t, err)

	got, err := m.ValidateOutputDir(root)
	require.NoError(t, err)
	require.Equal(t, root, got)
	got, err = m.ValidateOutputDir(out)
	require.NoError(t, err)
	require.Equal(t, out, got)

	_, err = m.ValidateOutputDir(mustTempDir(t))
	require.ErrorIs(t, err, ErrNotAllowed)
	_, err = m.ValidateOutputDir(filepath.Join(root, "nope"))
	require.ErrorIs(t, err, ErrNotFound)
}
