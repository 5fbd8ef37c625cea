package workflow

import (
	"context"

	"github.com/sirupsen/logrus"

	"bitbucket.org/redfibra/fieldops_backend/config"
	"bitbucket.org/redfibra/fieldops_backend/models"
)

// MaintenanceRequest describes one operator-triggered run. Operations run in
// a fixed order (migrate, then reconcile) regardless of request order; an
// empty Operations list means both.
type MaintenanceRequest struct {
	Scope      Scope       `json:"scope"`
	Operations []Operation `json:"operations"`
	DryRun     bool        `json:"dryRun"`
	ZeroStale  bool        `json:"zeroStale"`
	// LookupConcurrency overrides the configured registry fan-out bound.
	LookupConcurrency int `json:"-"`
}

func (r MaintenanceRequest) wants(op Operation) bool {
	if len(r.Operations) == 0 {
		return true
	}
	for _, o := range r.Operations {
		if o == op {
			return true
		}
	}
	return false
}

// RunStockMaintenance resolves the crew scope, then runs the requested
// passes over each crew sequentially. Crew processing is bulkheaded: a
// failure inside one crew is recorded on its report row and the run moves
// on. Only scope resolution errors abort the whole run, before any ledger
// is touched.
func RunStockMaintenance(ctx context.Context, stores LedgerStores, logger *logrus.Logger, req MaintenanceRequest) (MaintenanceReport, error) {
	report := MaintenanceReport{DryRun: req.DryRun, StartedAt: nowFunc()}

	crews, err := resolveScope(ctx, stores, req.Scope)
	if err != nil {
		return report, err
	}

	runLog := &RunLog{}
	for _, crew := range crews {
		outcome := CrewOutcome{CrewID: crew.ID}

		if req.wants(OperationMigrate) {
			res, err := MigrateCrewStock(ctx, stores, logger, runLog, crew.ID, MigrateOptions{
				DryRun:            req.DryRun,
				LookupConcurrency: req.LookupConcurrency,
			})
			outcome.Migration = &res
			if err != nil {
				outcome.Error = err.Error()
				config.LogError(logger, "stockMaintenance.go", "RunStockMaintenance", "migrating crew "+crew.ID, nil, err)
				runLog.Appendf("[%s] migration aborted: %v", crew.ID, err)
				report.Rows = append(report.Rows, outcome)
				continue
			}
		}

		if req.wants(OperationReconcile) {
			res, err := ReconcileCrewCounters(ctx, stores, logger, runLog, crew.ID, ReconcileOptions{
				DryRun:    req.DryRun,
				ZeroStale: req.ZeroStale,
			})
			outcome.Reconciliation = &res
			if err != nil {
				outcome.Error = err.Error()
				config.LogError(logger, "stockMaintenance.go", "RunStockMaintenance", "reconciling crew "+crew.ID, nil, err)
				runLog.Appendf("[%s] reconcile aborted: %v", crew.ID, err)
			}
		}

		report.Rows = append(report.Rows, outcome)
	}

	report.Log = runLog.Lines()
	report.FinishedAt = nowFunc()
	return report, nil
}

func resolveScope(ctx context.Context, stores CrewDirectory, scope Scope) ([]models.Crew, error) {
	if scope.CrewID != "" {
		crew, err := stores.GetCrew(ctx, scope.CrewID)
		if err != nil {
			return nil, err
		}
		return []models.Crew{*crew}, nil
	}
	return stores.ListCrews(ctx, scope.ActiveOnly)
}
