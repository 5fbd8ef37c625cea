package workflow

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"bitbucket.org/redfibra/fieldops_backend/config"
	"bitbucket.org/redfibra/fieldops_backend/models"
)

// MigratedFromLegacyStock tags assigned entries produced by the stock
// migration pass.
const MigratedFromLegacyStock = "legacy_stock"

// DefaultAssignedStatus is applied when neither the stock record nor the
// registry knows the unit's operational state.
const DefaultAssignedStatus = "field"

var nowFunc = time.Now

type MigrateOptions struct {
	DryRun bool
	// LookupConcurrency bounds the registry-lookup fan-out; <=0 falls back
	// to the configured default.
	LookupConcurrency int
}

type migrationItem struct {
	key       string
	detail    models.DetailRecord
	needs     bool
	registry  *models.EquipmentRecord
	matches   int
	lookupErr error
}

// MigrateCrewStock moves every detail-shaped record of one crew's legacy
// stock sub-ledger into the canonical assigned sub-ledger, keyed by serial.
// Aggregate counters are left in place; the reconcile pass regenerates them.
// The pass is idempotent: re-running over a partially migrated snapshot
// re-merges the same data and deletes what the first run could not.
func MigrateCrewStock(ctx context.Context, stores LedgerStores, logger *logrus.Logger, runLog *RunLog, crewID string, opts MigrateOptions) (MigrationResult, error) {
	var res MigrationResult

	entries, err := stores.CrewStock(ctx, crewID)
	if err != nil {
		return res, err
	}
	if len(entries) == 0 {
		runLog.Appendf("[%s] stock is empty, nothing to migrate", crewID)
		return res, nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	items := make([]*migrationItem, 0, len(entries))
	for _, entry := range entries {
		kind, err := models.ClassifyStockRecord(entry.Data)
		if err != nil {
			if errors.Is(err, models.ErrInvalidRecordShape) {
				res.Invalid++
				runLog.Appendf("[%s] %s: skipping malformed stock record", crewID, entry.Key)
				continue
			}
			return res, err
		}
		if kind == models.StockRecordAggregate {
			res.SkippedAggregate++
			runLog.Appendf("[%s] %s: aggregate counter left in place", crewID, entry.Key)
			continue
		}
		detail := models.DetailFromRaw(entry.Key, entry.Data)
		items = append(items, &migrationItem{
			key:    entry.Key,
			detail: detail,
			needs:  detail.Type == "" || detail.Status == "" || detail.Description == "" || detail.InstallDate == nil,
		})
	}

	// Each record targets a distinct assigned document, so lookups can fan
	// out; writes below stay sequential in key order to keep the log stable.
	concurrency := opts.LookupConcurrency
	if concurrency <= 0 {
		concurrency = config.LookupConcurrency()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, item := range items {
		if !item.needs {
			continue
		}
		item := item
		g.Go(func() error {
			item.registry, item.matches, item.lookupErr = stores.LookupBySerial(gctx, item.detail.Serial)
			return nil
		})
	}
	_ = g.Wait()

	for _, item := range items {
		if item.lookupErr != nil {
			res.Failed++
			config.LogError(logger, "stockMigration.go", "MigrateCrewStock", "registry lookup", item.detail.Serial, item.lookupErr)
			runLog.Appendf("[%s] %s: lookup failed, record left for retry: %v", crewID, item.key, item.lookupErr)
			continue
		}
		if item.matches > 1 {
			res.AmbiguousLookups++
			logger.WithFields(logrus.Fields{
				"crew":   crewID,
				"serial": item.detail.Serial,
			}).Warn("registry holds duplicate records for serial; using first match")
			runLog.Appendf("[%s] %s: duplicate registry records, first match used", crewID, item.key)
		}

		target := enrichDetail(item.detail, item.registry)
		if target.Status == "" {
			target.Status = DefaultAssignedStatus
		}
		if target.InstallDate == nil {
			now := nowFunc()
			target.InstallDate = &now
		}
		migratedAt := nowFunc()
		entry := models.AssignedEquipment{
			CrewID:       crewID,
			Serial:       target.Serial,
			Type:         target.Type,
			Description:  target.Description,
			Status:       target.Status,
			InstallDate:  target.InstallDate,
			MigratedFrom: MigratedFromLegacyStock,
			MigratedAt:   &migratedAt,
		}

		if opts.DryRun {
			res.Migrated++
			res.LegacyDeleted++
			runLog.Appendf("[%s] %s: (dry-run) would migrate as %s", crewID, item.key, entry.Serial)
			continue
		}

		if err := stores.UpsertAssigned(ctx, crewID, entry); err != nil {
			res.Failed++
			config.LogError(logger, "stockMigration.go", "MigrateCrewStock", "upserting assigned entry", entry.Serial, err)
			runLog.Appendf("[%s] %s: write failed, record left for retry: %v", crewID, item.key, err)
			continue
		}
		res.Migrated++

		// Delete failures are non-fatal: the leftover stock record re-merges
		// to the same assigned document on the next run.
		if err := stores.DeleteStockEntry(ctx, crewID, item.key); err != nil {
			config.LogError(logger, "stockMigration.go", "MigrateCrewStock", "deleting legacy stock record", item.key, err)
			runLog.Appendf("[%s] %s: migrated but legacy record not deleted: %v", crewID, item.key, err)
			continue
		}
		res.LegacyDeleted++
		runLog.Appendf("[%s] %s: migrated", crewID, item.key)
	}

	return res, nil
}

// enrichDetail fills fields the stock record is missing from the registry.
// It never overwrites a field the record already carries.
func enrichDetail(d models.DetailRecord, registry *models.EquipmentRecord) models.DetailRecord {
	if registry == nil {
		return d
	}
	if d.Type == "" {
		d.Type = registry.Type
	}
	if d.Description == "" {
		d.Description = registry.Description
	}
	if d.Status == "" {
		d.Status = registry.Status
	}
	if d.InstallDate == nil {
		d.InstallDate = registry.InstallDate
	}
	return d
}
