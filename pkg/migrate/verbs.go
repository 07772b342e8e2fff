package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// ErrCanceled is returned by Reset when the confirmation predicate declines.
// Cancellation is a deliberate no-op, not a failure.
var ErrCanceled = errors.New("reset canceled")

// ConfirmFunc decides whether a planned reset may proceed. It receives the
// revisions that would be reverted, in the order they would run.
type ConfirmFunc func(plan []Migration) (bool, error)

// HistoryEntry describes one forward revision and whether it has been applied.
type HistoryEntry struct {
	Version int
	Name    string
	Applied bool
	RunAt   string
}

// Up applies every unapplied revision up to the chain head.
func (o *Orchestrator) Up(ctx context.Context) ([]Migration, error) {
	return o.Migrate(ctx, "max")
}

// Down reverts the most recently applied n revisions. Reverting more
// revisions than are applied stops at the empty base state.
func (o *Orchestrator) Down(ctx context.Context, n int) ([]Migration, error) {
	if n < 1 {
		return nil, fmt.Errorf("step count must be at least 1, got %d", n)
	}
	current, err := o.GetDatabaseVersion(ctx)
	if err != nil {
		return nil, err
	}
	target := current - n
	if target < 0 {
		target = 0
	}
	return o.Migrate(ctx, strconv.Itoa(target))
}

// Current reports the currently applied revision pointer. No mutation.
func (o *Orchestrator) Current(ctx context.Context) (int, error) {
	return o.GetDatabaseVersion(ctx)
}

// History lists every forward revision in chain order together with its
// applied state. No mutation.
func (o *Orchestrator) History(ctx context.Context) ([]HistoryEntry, error) {
	if _, err := o.LoadMigrations(); err != nil {
		return nil, err
	}

	applied := map[int]string{}
	initialized, err := o.client.HasVersionTable(ctx)
	if err != nil {
		return nil, err
	}
	if initialized {
		rows, err := o.client.RunQuery(ctx, o.client.GetAppliedVersionsSql())
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		for rows.Next() {
			var version int
			var runAt sql.NullString
			if err := rows.Scan(&version, &runAt); err != nil {
				return nil, err
			}
			applied[version] = runAt.String
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	var forward []Migration
	for _, m := range o.migrations {
		if m.Action == "do" {
			forward = append(forward, m)
		}
	}
	sortMigrationsAsc(forward)

	entries := make([]HistoryEntry, 0, len(forward))
	for _, m := range forward {
		runAt, ok := applied[m.Version]
		entries = append(entries, HistoryEntry{
			Version: m.Version,
			Name:    m.Name,
			Applied: ok,
			RunAt:   runAt,
		})
	}
	return entries, nil
}

// PlanReset computes the revisions a reset would revert, most recent first.
// It performs no mutation.
func (o *Orchestrator) PlanReset(ctx context.Context) ([]Migration, error) {
	if _, err := o.LoadMigrations(); err != nil {
		return nil, err
	}
	current, err := o.GetDatabaseVersion(ctx)
	if err != nil {
		return nil, err
	}
	return o.GetRunnableMigrations(current, 0)
}

// Reset reverts every applied revision back to the empty base state.
// The confirm predicate gates the destructive step: it sees the plan and
// must return true for anything to run. A declined confirmation returns
// ErrCanceled with no side effects.
func (o *Orchestrator) Reset(ctx context.Context, confirm ConfirmFunc) ([]Migration, error) {
	plan, err := o.PlanReset(ctx)
	if err != nil {
		return nil, err
	}
	ok, err := confirm(plan)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCanceled
	}
	if len(plan) == 0 {
		return nil, nil
	}
	return o.Migrate(ctx, "0")
}
