package migrate_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/elyterrax/elyctl/pkg/migrate"
)

// writeRevisions populates dir with n do/undo pairs that create and drop
// simple tables, and returns a config pointing at them.
func writeRevisions(t *testing.T, dir string, n int) migrate.Config {
	t.Helper()
	for i := 1; i <= n; i++ {
		do := filepath.Join(dir, fmt.Sprintf("%03d.do.create-t%d.sql", i, i))
		undo := filepath.Join(dir, fmt.Sprintf("%03d.undo.create-t%d.sql", i, i))
		doSQL := fmt.Sprintf("CREATE TABLE t%d (id INTEGER PRIMARY KEY);", i)
		undoSQL := fmt.Sprintf("DROP TABLE t%d;", i)
		if err := os.WriteFile(do, []byte(doSQL), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", do, err)
		}
		if err := os.WriteFile(undo, []byte(undoSQL), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", undo, err)
		}
	}
	return migrate.Config{
		Driver:           "sqlite3",
		MigrationPattern: filepath.Join(dir, "*.sql"),
		SchemaTable:      "schemaversion",
	}
}

func newTestOrchestrator(t *testing.T, revisions int) (*migrate.Orchestrator, *sql.DB) {
	t.Helper()
	dir := t.TempDir()
	cfg := writeRevisions(t, dir, revisions)

	dbFile := filepath.Join(t.TempDir(), "migrate_test.db")
	db, err := sql.Open("sqlite3", dbFile)
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	o, err := migrate.New(cfg, db)
	if err != nil {
		t.Fatalf("failed to create orchestrator: %v", err)
	}
	return o, db
}

func TestUpAppliesFullChain(t *testing.T) {
	ctx := context.Background()
	o, _ := newTestOrchestrator(t, 3)

	applied, err := o.Up(ctx)
	if err != nil {
		t.Fatalf("Up failed: %v", err)
	}
	if len(applied) != 3 {
		t.Fatalf("expected 3 applied revisions, got %d", len(applied))
	}

	ver, err := o.Current(ctx)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if ver != 3 {
		t.Fatalf("expected version 3, got %d", ver)
	}

	// A second Up is a no-op.
	applied, err = o.Up(ctx)
	if err != nil {
		t.Fatalf("second Up failed: %v", err)
	}
	if len(applied) != 0 {
		t.Fatalf("expected no revisions on repeat Up, got %d", len(applied))
	}
}

func TestDownDefaultsToOneStep(t *testing.T) {
	ctx := context.Background()
	o, _ := newTestOrchestrator(t, 3)

	if _, err := o.Up(ctx); err != nil {
		t.Fatalf("Up failed: %v", err)
	}

	reverted, err := o.Down(ctx, 1)
	if err != nil {
		t.Fatalf("Down failed: %v", err)
	}
	if len(reverted) != 1 {
		t.Fatalf("expected 1 reverted revision, got %d", len(reverted))
	}

	ver, err := o.Current(ctx)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if ver != 2 {
		t.Fatalf("expected version 2 after Down, got %d", ver)
	}
}

func TestDownClampsAtBase(t *testing.T) {
	ctx := context.Background()
	o, _ := newTestOrchestrator(t, 3)

	if _, err := o.Up(ctx); err != nil {
		t.Fatalf("Up failed: %v", err)
	}

	// Revert more steps than are applied: stops at the empty base state.
	reverted, err := o.Down(ctx, 5)
	if err != nil {
		t.Fatalf("Down past base failed: %v", err)
	}
	if len(reverted) != 3 {
		t.Fatalf("expected 3 reverted revisions, got %d", len(reverted))
	}

	ver, err := o.Current(ctx)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if ver != 0 {
		t.Fatalf("expected base version 0, got %d", ver)
	}
}

func TestDownRejectsNonPositiveSteps(t *testing.T) {
	ctx := context.Background()
	o, _ := newTestOrchestrator(t, 1)

	if _, err := o.Down(ctx, 0); err == nil {
		t.Fatal("expected error for step count 0")
	}
}

func TestHistoryReportsAppliedState(t *testing.T) {
	ctx := context.Background()
	o, _ := newTestOrchestrator(t, 3)

	if _, err := o.Up(ctx); err != nil {
		t.Fatalf("Up failed: %v", err)
	}
	if _, err := o.Down(ctx, 1); err != nil {
		t.Fatalf("Down failed: %v", err)
	}

	entries, err := o.History(ctx)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 history entries, got %d", len(entries))
	}
	for i, e := range entries {
		if e.Version != i+1 {
			t.Errorf("entry %d: expected version %d, got %d", i, i+1, e.Version)
		}
	}
	if !entries[0].Applied || !entries[1].Applied {
		t.Errorf("expected revisions 1 and 2 to be applied: %+v", entries)
	}
	if entries[2].Applied {
		t.Errorf("expected revision 3 to be unapplied after Down: %+v", entries)
	}
	if entries[0].RunAt == "" {
		t.Errorf("expected a run timestamp for applied revision 1")
	}
}

func TestHistoryOnUninitializedDatabase(t *testing.T) {
	ctx := context.Background()
	o, _ := newTestOrchestrator(t, 2)

	entries, err := o.History(ctx)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Applied {
			t.Errorf("expected no applied revisions, got %+v", e)
		}
	}
}

func TestResetDeclinedLeavesVersionUnchanged(t *testing.T) {
	ctx := context.Background()
	o, _ := newTestOrchestrator(t, 3)

	if _, err := o.Up(ctx); err != nil {
		t.Fatalf("Up failed: %v", err)
	}

	decline := func(plan []migrate.Migration) (bool, error) {
		if len(plan) != 3 {
			t.Errorf("expected plan of 3 revisions, got %d", len(plan))
		}
		return false, nil
	}

	_, err := o.Reset(ctx, decline)
	if !errors.Is(err, migrate.ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}

	ver, err := o.Current(ctx)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if ver != 3 {
		t.Fatalf("expected version 3 after declined reset, got %d", ver)
	}
}

func TestResetConfirmedRevertsToBase(t *testing.T) {
	ctx := context.Background()
	o, db := newTestOrchestrator(t, 3)

	if _, err := o.Up(ctx); err != nil {
		t.Fatalf("Up failed: %v", err)
	}

	accept := func(plan []migrate.Migration) (bool, error) { return true, nil }

	reverted, err := o.Reset(ctx, accept)
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if len(reverted) != 3 {
		t.Fatalf("expected 3 reverted revisions, got %d", len(reverted))
	}

	ver, err := o.Current(ctx)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if ver != 0 {
		t.Fatalf("expected base version 0 after reset, got %d", ver)
	}

	// The revision tables are really gone.
	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='t1'`).Scan(&name)
	if err != sql.ErrNoRows {
		t.Fatalf("expected t1 to be dropped, got %v (%s)", err, name)
	}
}

func TestResetOnEmptyChainIsNoop(t *testing.T) {
	ctx := context.Background()
	o, _ := newTestOrchestrator(t, 2)

	accept := func(plan []migrate.Migration) (bool, error) {
		if len(plan) != 0 {
			t.Errorf("expected empty plan, got %d revisions", len(plan))
		}
		return true, nil
	}

	reverted, err := o.Reset(ctx, accept)
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if len(reverted) != 0 {
		t.Fatalf("expected no reverted revisions, got %d", len(reverted))
	}
}

func TestMigrateToSpecificVersion(t *testing.T) {
	ctx := context.Background()
	o, _ := newTestOrchestrator(t, 4)

	applied, err := o.Migrate(ctx, "002")
	if err != nil {
		t.Fatalf("Migrate to 002 failed: %v", err)
	}
	if len(applied) != 2 {
		t.Fatalf("expected 2 applied revisions, got %d", len(applied))
	}

	max, err := o.GetMaxVersion()
	if err != nil {
		t.Fatalf("GetMaxVersion failed: %v", err)
	}
	if max != 4 {
		t.Fatalf("expected max version 4, got %d", max)
	}
}

// TestChecksumValidationOnByDefault verifies that a config which never
// mentions checksums still refuses to run against a tampered revision file.
func TestChecksumValidationOnByDefault(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := writeRevisions(t, dir, 2)

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "checksum_test.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	o, err := migrate.New(cfg, db)
	if err != nil {
		t.Fatalf("failed to create orchestrator: %v", err)
	}
	if _, err := o.Up(ctx); err != nil {
		t.Fatalf("Up failed: %v", err)
	}

	// Rewrite an already-applied revision file.
	tampered := filepath.Join(dir, "001.do.create-t1.sql")
	altered := []byte("CREATE TABLE t1 (id INTEGER PRIMARY KEY, extra TEXT);")
	if err := os.WriteFile(tampered, altered, 0644); err != nil {
		t.Fatalf("failed to rewrite %s: %v", tampered, err)
	}

	_, err = o.Up(ctx)
	if err == nil || !strings.Contains(err.Error(), "checksum") {
		t.Fatalf("expected a checksum validation error, got %v", err)
	}
}
