// Package archive snapshots a project tree into a timestamped zip bundle,
// honoring version-control ignore rules when available.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Fixed exclusions applied in fallback mode on top of the ignore file.
var alwaysExcluded = []string{".git", "*.zip", ".DS_Store"}

// Options configure a snapshot.
type Options struct {
	// Dir is the project directory to archive. Defaults to the working directory.
	Dir string

	// IgnoreFile holds glob exclusion patterns for fallback mode.
	// Defaults to ".gitignore".
	IgnoreFile string

	// Now supplies the timestamp for the archive name. Defaults to time.Now.
	// Two runs within the same second overwrite the same archive.
	Now func() time.Time

	// Fs is the filesystem used for fallback enumeration and output.
	// Defaults to the OS filesystem.
	Fs afero.Fs
}

// Result describes a created archive.
type Result struct {
	Path  string
	Files int
	Size  int64

	// FromVCS is true when the file list came from version control.
	FromVCS bool
}

// Create writes <dir-basename>_<YYYYMMDD_HHMMSS>.zip into the parent of the
// project directory and verifies the result exists.
func Create(opts Options, log *zap.Logger) (Result, error) {
	if opts.Dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Result{}, err
		}
		opts.Dir = wd
	}
	if opts.IgnoreFile == "" {
		opts.IgnoreFile = ".gitignore"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}

	absDir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return Result{}, err
	}

	stamp := opts.Now().Format("20060102_150405")
	outPath := filepath.Join(filepath.Dir(absDir), fmt.Sprintf("%s_%s.zip", filepath.Base(absDir), stamp))

	files, fromVCS, err := selectFiles(opts, absDir)
	if err != nil {
		return Result{}, err
	}
	if fromVCS {
		log.Info("using version-control file enumeration", zap.Int("files", len(files)))
	} else {
		log.Info("using ignore-pattern fallback", zap.Int("files", len(files)))
	}

	if err := writeZip(opts.Fs, absDir, outPath, files); err != nil {
		return Result{}, err
	}

	// Post-condition: the bundle must exist and be reportable.
	fi, err := opts.Fs.Stat(outPath)
	if err != nil {
		return Result{}, fmt.Errorf("archive was not created at %s: %w", outPath, err)
	}

	res := Result{Path: outPath, Files: len(files), Size: fi.Size(), FromVCS: fromVCS}
	log.Info("archive created",
		zap.String("path", res.Path),
		zap.Int("files", res.Files),
		zap.Int64("bytes", res.Size),
	)
	return res, nil
}

// selectFiles returns relative paths to include, preferring git enumeration.
func selectFiles(opts Options, dir string) ([]string, bool, error) {
	if gitAvailable(opts.Fs, dir) {
		files, err := gitFiles(dir)
		if err == nil {
			return files, true, nil
		}
		// Fall through to manual exclusion when git enumeration fails.
	}
	files, err := walkFiles(opts.Fs, dir, loadIgnorePatterns(opts.Fs, filepath.Join(dir, opts.IgnoreFile)))
	return files, false, err
}

func gitAvailable(fsys afero.Fs, dir string) bool {
	if _, err := exec.LookPath("git"); err != nil {
		return false
	}
	ok, err := afero.DirExists(fsys, filepath.Join(dir, ".git"))
	return err == nil && ok
}

// gitFiles enumerates tracked plus untracked-but-not-ignored files,
// delegating ignore evaluation to git itself.
func gitFiles(dir string) ([]string, error) {
	cmd := exec.Command("git", "-C", dir, "ls-files", "--cached", "--others", "--exclude-standard")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}
	var files []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// Entries may have been deleted but not yet staged.
		if _, err := os.Stat(filepath.Join(dir, line)); err == nil {
			files = append(files, line)
		}
	}
	return files, nil
}

// loadIgnorePatterns reads the ignore file: blank and comment lines are
// skipped, trailing path separators stripped.
func loadIgnorePatterns(fsys afero.Fs, path string) []string {
	patterns := append([]string{}, alwaysExcluded...)
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return patterns
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, strings.TrimRight(line, "/"))
	}
	return patterns
}

func walkFiles(fsys afero.Fs, dir string, patterns []string) ([]string, error) {
	var files []string
	err := afero.Walk(fsys, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if excluded(rel, patterns) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			files = append(files, rel)
		}
		return nil
	})
	return files, err
}

// excluded reports whether any pattern matches the relative path, its base
// name, or any of its path segments.
func excluded(rel string, patterns []string) bool {
	segments := strings.Split(filepath.ToSlash(rel), "/")
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, rel); ok {
			return true
		}
		for _, seg := range segments {
			if seg == p {
				return true
			}
			if ok, _ := filepath.Match(p, seg); ok {
				return true
			}
		}
	}
	return false
}

func writeZip(fsys afero.Fs, dir, outPath string, files []string) error {
	out, err := fsys.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}

	zw := zip.NewWriter(out)
	for _, rel := range files {
		if err := addFile(fsys, zw, dir, rel); err != nil {
			_ = zw.Close()
			_ = out.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		_ = out.Close()
		return fmt.Errorf("finalizing %s: %w", outPath, err)
	}
	return out.Close()
}

func addFile(fsys afero.Fs, zw *zip.Writer, dir, rel string) error {
	src := filepath.Join(dir, rel)
	fi, err := fsys.Stat(src)
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(fi)
	if err != nil {
		return err
	}
	hdr.Name = filepath.ToSlash(rel)
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	f, err := fsys.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
