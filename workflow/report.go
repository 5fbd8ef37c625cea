package workflow

import (
	"fmt"
	"time"
)

type Operation string

const (
	OperationMigrate   Operation = "migrate"
	OperationReconcile Operation = "reconcile"
)

// Scope selects the crews a maintenance run touches: one named crew when
// CrewID is set, otherwise all crews (optionally restricted to active ones).
type Scope struct {
	CrewID     string `json:"crewId,omitempty"`
	ActiveOnly bool   `json:"activeOnly,omitempty"`
}

type MigrationResult struct {
	Migrated         int `json:"migrated"`
	LegacyDeleted    int `json:"legacyDeleted"`
	SkippedAggregate int `json:"skippedAggregate"`
	Invalid          int `json:"invalid"`
	AmbiguousLookups int `json:"ambiguousLookups"`
	Failed           int `json:"failed"`
}

type ReconciliationResult struct {
	TypesUpdated  int `json:"typesUpdated"`
	TotalAssigned int `json:"totalAssigned"`
	Zeroed        int `json:"zeroed"`
}

// CrewOutcome is one crew's row in the final report. A failed crew keeps a
// row with whatever partial results it produced plus the error text.
type CrewOutcome struct {
	CrewID         string                `json:"crewId"`
	Migration      *MigrationResult      `json:"migration,omitempty"`
	Reconciliation *ReconciliationResult `json:"reconciliation,omitempty"`
	Error          string                `json:"error,omitempty"`
}

type MaintenanceReport struct {
	DryRun     bool          `json:"dryRun"`
	Rows       []CrewOutcome `json:"rows"`
	Log        []string      `json:"log"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
}

// Merge folds another report into this one, matching rows by crew id, so an
// operator can run migrate now, reconcile later and read one table. Later
// results win per operation; log lines append.
func (r *MaintenanceReport) Merge(other MaintenanceReport) {
	byCrew := make(map[string]int, len(r.Rows))
	for i, row := range r.Rows {
		byCrew[row.CrewID] = i
	}
	for _, row := range other.Rows {
		i, ok := byCrew[row.CrewID]
		if !ok {
			r.Rows = append(r.Rows, row)
			continue
		}
		if row.Migration != nil {
			r.Rows[i].Migration = row.Migration
		}
		if row.Reconciliation != nil {
			r.Rows[i].Reconciliation = row.Reconciliation
		}
		if row.Error != "" {
			r.Rows[i].Error = row.Error
		}
	}
	r.Log = append(r.Log, other.Log...)
	if r.StartedAt.IsZero() || (!other.StartedAt.IsZero() && other.StartedAt.Before(r.StartedAt)) {
		r.StartedAt = other.StartedAt
	}
	if other.FinishedAt.After(r.FinishedAt) {
		r.FinishedAt = other.FinishedAt
	}
	r.DryRun = r.DryRun && other.DryRun
}

// RunLog collects per-record log lines. The orchestrator owns it; executors
// only append, which keeps them free of shared report state.
type RunLog struct {
	lines []string
}

func (l *RunLog) Appendf(format string, args ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *RunLog) Lines() []string {
	return l.lines
}
