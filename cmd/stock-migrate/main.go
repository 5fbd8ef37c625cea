package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"bitbucket.org/redfibra/fieldops_backend/config"
	"bitbucket.org/redfibra/fieldops_backend/models"
	"bitbucket.org/redfibra/fieldops_backend/utils"
	"bitbucket.org/redfibra/fieldops_backend/workflow"
)

func main() {
	crewID := flag.String("crew", "", "Optional: process only this crew id (e.g. c_K13_MOTO)")
	activeOnly := flag.Bool("active-only", true, "Process only crews with status=active (ignored when -crew is set)")
	migrate := flag.Bool("migrate", true, "Run the stock migration pass")
	reconcile := flag.Bool("reconcile", true, "Run the counter reconcile pass")
	dryRun := flag.Bool("dry-run", true, "Simulate: classify and report, issue no writes")
	verbose := flag.Bool("verbose", false, "Print the per-record operation log")
	flag.Parse()

	if !*migrate && !*reconcile {
		fmt.Fprintln(os.Stderr, "nothing to do: enable -migrate and/or -reconcile")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, config.ErrDBNotInitialized)
		os.Exit(1)
	}
	logger := logrus.New()

	var ops []workflow.Operation
	if *migrate {
		ops = append(ops, workflow.OperationMigrate)
	}
	if *reconcile {
		ops = append(ops, workflow.OperationReconcile)
	}

	req := workflow.MaintenanceRequest{
		Scope:      workflow.Scope{CrewID: strings.TrimSpace(*crewID), ActiveOnly: *activeOnly},
		Operations: ops,
		DryRun:     *dryRun,
		ZeroStale:  config.ZeroStaleCounters(),
	}

	mode := "APPLY"
	if *dryRun {
		mode = "DRY-RUN"
	}
	fmt.Printf("Running stock maintenance (%s) ops=%v crew=%q activeOnly=%v\n", mode, ops, *crewID, *activeOnly)

	report, err := workflow.RunStockMaintenance(context.Background(), models.NewStore(db), logger, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		for _, line := range report.Log {
			fmt.Println(line)
		}
	}

	fmt.Printf("%-20s %9s %9s %9s %9s %9s %9s\n", "CREW", "MIGRATED", "DELETED", "AGGR", "AMBIG", "TYPES", "ASSIGNED")
	for _, row := range report.Rows {
		m := utils.DereferencePtr(row.Migration)
		rec := utils.DereferencePtr(row.Reconciliation)
		fmt.Printf("%-20s %9d %9d %9d %9d %9d %9d\n",
			row.CrewID, m.Migrated, m.LegacyDeleted, m.SkippedAggregate, m.AmbiguousLookups, rec.TypesUpdated, rec.TotalAssigned)
		if row.Error != "" {
			fmt.Printf("%-20s   ERROR: %s\n", "", row.Error)
		}
	}
	fmt.Printf("Done in %s (%d crews)\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond), len(report.Rows))
}
