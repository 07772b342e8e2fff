package envfile_test

import (
	"errors"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elyterrax/elyctl/pkg/envfile"
)

func TestLoadParsesWellFormedLines(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := "# database settings\n" +
		"POSTGRES_HOST=localhost\n" +
		"POSTGRES_PORT=5432\n" +
		"\n" +
		"SECRET_KEY=change-me\n"
	require.NoError(t, afero.WriteFile(fs, ".env", []byte(content), 0644))

	res, err := envfile.Load(fs, ".env", ".env.example")
	require.NoError(t, err)
	assert.False(t, res.FromTemplate)
	assert.Equal(t, map[string]string{
		"POSTGRES_HOST": "localhost",
		"POSTGRES_PORT": "5432",
		"SECRET_KEY":    "change-me",
	}, res.Values)
}

func TestLoadIgnoresCommentsAndBlanks(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := "\n\n# only comments here\n# KEY=VALUE\n\n"
	require.NoError(t, afero.WriteFile(fs, ".env", []byte(content), 0644))

	res, err := envfile.Load(fs, ".env", "")
	require.NoError(t, err)
	assert.Empty(t, res.Values)
}

func TestLoadFallsBackToTemplate(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, ".env.example", []byte("ENV=development\n"), 0644))

	res, err := envfile.Load(fs, ".env", ".env.example")
	require.NoError(t, err)
	assert.True(t, res.FromTemplate)
	assert.Equal(t, "development", res.Values["ENV"])

	// The template was copied into place.
	copied, err := afero.Exists(fs, ".env")
	require.NoError(t, err)
	assert.True(t, copied)
}

func TestLoadFailsWithoutFileOrTemplate(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := envfile.Load(fs, ".env", ".env.example")
	require.Error(t, err)
	assert.True(t, errors.Is(err, envfile.ErrMissing))
}

func TestExportPublishesToProcessEnvironment(t *testing.T) {
	t.Setenv("ELYCTL_TEST_EXPORT", "stale")

	err := envfile.Export(map[string]string{"ELYCTL_TEST_EXPORT": "fresh"})
	require.NoError(t, err)
	assert.Equal(t, "fresh", os.Getenv("ELYCTL_TEST_EXPORT"))
}
