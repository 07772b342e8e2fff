package archive_test

import (
	"archive/zip"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elyterrax/elyctl/pkg/archive"
)

func fixedClock(s string) func() time.Time {
	ts, err := time.Parse("20060102_150405", s)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return ts }
}

func archivedNames(t *testing.T, path string) []string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()
	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names
}

func memArchivedNames(t *testing.T, fs afero.Fs, path string) []string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	f, err := afero.TempFile(afero.NewOsFs(), t.TempDir(), "archive")
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return archivedNames(t, f.Name())
}

func TestFallbackHonorsIgnorePatterns(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := "/work/elyterra-backend"
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "a.txt"), []byte("keep"), 0644))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "b.log"), []byte("drop"), 0644))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "sub", "c.go"), []byte("keep"), 0644))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "tmp", "junk"), []byte("drop"), 0644))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, ".gitignore"), []byte("# logs\n*.log\n\ntmp/\n"), 0644))

	res, err := archive.Create(archive.Options{
		Dir: dir,
		Fs:  fs,
		Now: fixedClock("20260830_120000"),
	}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, res.FromVCS)
	assert.Equal(t, "/work/elyterra-backend_20260830_120000.zip", res.Path)
	assert.Greater(t, res.Size, int64(0))

	names := memArchivedNames(t, fs, res.Path)
	assert.Contains(t, names, "a.txt")
	assert.Contains(t, names, "sub/c.go")
	assert.Contains(t, names, ".gitignore")
	assert.NotContains(t, names, "b.log")
	assert.NotContains(t, names, "tmp/junk")
}

func TestFallbackFixedExclusions(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := "/work/proj"
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "keep.txt"), []byte("x"), 0644))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "old.zip"), []byte("x"), 0644))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, ".DS_Store"), []byte("x"), 0644))

	res, err := archive.Create(archive.Options{
		Dir: dir,
		Fs:  fs,
		Now: fixedClock("20260830_120000"),
	}, zap.NewNop())
	require.NoError(t, err)

	names := memArchivedNames(t, fs, res.Path)
	assert.Equal(t, []string{"keep.txt"}, names)
}

func TestSameSecondRerunOverwritesDeterministically(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := "/work/proj"
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "a.txt"), []byte("v1"), 0644))

	clock := fixedClock("20260830_120000")
	first, err := archive.Create(archive.Options{Dir: dir, Fs: fs, Now: clock}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "b.txt"), []byte("v2"), 0644))
	second, err := archive.Create(archive.Options{Dir: dir, Fs: fs, Now: clock}, zap.NewNop())
	require.NoError(t, err)

	// Same name, newer content: the second run wins.
	assert.Equal(t, first.Path, second.Path)
	names := memArchivedNames(t, fs, second.Path)
	assert.Contains(t, names, "b.txt")
}

func TestGitEnumerationRespectsIgnores(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := filepath.Join(t.TempDir(), "tracked-proj")
	runGit := func(args ...string) {
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}

	fs := afero.NewOsFs()
	require.NoError(t, fs.MkdirAll(dir, 0755))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "a.txt"), []byte("tracked"), 0644))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "b.log"), []byte("ignored"), 0644))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, ".gitignore"), []byte("*.log\n"), 0644))
	runGit("init", "-q")
	runGit("add", "a.txt", ".gitignore")

	res, err := archive.Create(archive.Options{
		Dir: dir,
		Now: fixedClock("20260830_120000"),
	}, zap.NewNop())
	require.NoError(t, err)

	assert.True(t, res.FromVCS)
	names := archivedNames(t, res.Path)
	assert.Contains(t, names, "a.txt")
	assert.NotContains(t, names, "b.log")
}
