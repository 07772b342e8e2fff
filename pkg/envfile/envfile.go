// Package envfile loads KEY=VALUE environment files with a template
// fallback, mirroring the conventional .env / .env.example pair.
package envfile

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
)

// ErrMissing is returned when neither the environment file nor its template exists.
var ErrMissing = errors.New("environment file not found")

// Result reports what was loaded.
type Result struct {
	// Values holds every variable parsed from the file.
	Values map[string]string

	// Path is the file the values were read from.
	Path string

	// FromTemplate is true when the file was first seeded from the template.
	FromTemplate bool
}

// Load reads the environment file at path. When the file is absent and a
// template exists, the template is copied into place first; when neither
// exists, ErrMissing is wrapped in the returned error.
//
// Comment and blank lines contribute nothing. Parsed variables are returned
// to the caller; they are not exported. Use Export for that.
func Load(fsys afero.Fs, path, template string) (Result, error) {
	res := Result{Path: path}

	exists, err := afero.Exists(fsys, path)
	if err != nil {
		return res, fmt.Errorf("checking %s: %w", path, err)
	}
	if !exists {
		tplExists, err := afero.Exists(fsys, template)
		if err != nil {
			return res, fmt.Errorf("checking %s: %w", template, err)
		}
		if template == "" || !tplExists {
			return res, fmt.Errorf("%w: %s (no template %s to fall back on)", ErrMissing, path, template)
		}
		data, err := afero.ReadFile(fsys, template)
		if err != nil {
			return res, fmt.Errorf("reading template %s: %w", template, err)
		}
		if err := afero.WriteFile(fsys, path, data, 0644); err != nil {
			return res, fmt.Errorf("seeding %s from %s: %w", path, template, err)
		}
		res.FromTemplate = true
	}

	f, err := fsys.Open(path)
	if err != nil {
		return res, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	values, err := godotenv.Parse(f)
	if err != nil {
		return res, fmt.Errorf("parsing %s: %w", path, err)
	}
	res.Values = values
	return res, nil
}

// Export writes every value into the process environment so child processes
// and in-process lookups observe them. Existing variables are overwritten,
// matching shell `export $(cat .env)` behavior.
func Export(values map[string]string) error {
	for k, v := range values {
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("exporting %s: %w", k, err)
		}
	}
	return nil
}
