package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrNoDescription is returned when a new revision is requested without a message.
var ErrNoDescription = errors.New("a revision description is required")

// CreateMigration creates a new pair of revision files (do/undo).
// description: a human-readable message that will be kebab-cased for the filename.
// mode: "int" for integer increment (default) or "timestamp" to use the Unix timestamp.
func CreateMigration(cfg Config, description string, mode string) (string, string, error) {
	if strings.TrimSpace(description) == "" {
		return "", "", ErrNoDescription
	}

	// Determine the revision folder from the migration pattern.
	migFolder := filepath.Dir(cfg.MigrationPattern)

	// Get the next revision number as a string.
	var nextNumber string
	files, err := filepath.Glob(cfg.MigrationPattern)
	if err != nil {
		return "", "", fmt.Errorf("failed to scan revision files: %w", err)
	}
	if strings.ToLower(mode) == "timestamp" {
		nextNumber = strconv.FormatInt(time.Now().Unix(), 10)
	} else {
		// Default: integer mode with triple zero-padding.
		max := 0
		for _, file := range files {
			base := filepath.Base(file)
			parts := strings.Split(base, ".")
			if len(parts) < 2 {
				continue
			}
			num, err := strconv.Atoi(parts[0])
			if err != nil {
				continue
			}
			if num > max {
				max = num
			}
		}
		nextNumber = fmt.Sprintf("%03d", max+1)
	}

	kebabDesc := kebabCase(description)

	doFilePath := filepath.Join(migFolder, fmt.Sprintf("%s.do.%s.sql", nextNumber, kebabDesc))
	undoFilePath := filepath.Join(migFolder, fmt.Sprintf("%s.undo.%s.sql", nextNumber, kebabDesc))

	doContent := []byte("-- Write your migration SQL here\n")
	undoContent := []byte("-- Write your rollback SQL here\n")

	if err := os.WriteFile(doFilePath, doContent, 0644); err != nil {
		return "", "", fmt.Errorf("failed to create revision file %s: %w", doFilePath, err)
	}
	if err := os.WriteFile(undoFilePath, undoContent, 0644); err != nil {
		return "", "", fmt.Errorf("failed to create revision file %s: %w", undoFilePath, err)
	}

	return doFilePath, undoFilePath, nil
}

// kebabCase converts a string to kebab-case.
func kebabCase(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	// Replace any non-alphanumeric sequence with a single hyphen.
	re := regexp.MustCompile("[^a-z0-9]+")
	s = re.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// CreateMigration is the method form, using the orchestrator's configuration.
func (o *Orchestrator) CreateMigration(description, mode string) (string, string, error) {
	return CreateMigration(o.cfg, description, mode)
}
