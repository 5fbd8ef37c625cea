package workflow

import (
	"context"
	"sort"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"bitbucket.org/redfibra/fieldops_backend/config"
	"bitbucket.org/redfibra/fieldops_backend/models"
)

// UnspecifiedType buckets assigned entries whose equipment type is blank.
const UnspecifiedType = "unspecified"

type ReconcileOptions struct {
	DryRun bool
	// ZeroStale resets counters of types with no remaining assigned units to
	// 0. Counters are never deleted.
	ZeroStale bool
}

// ReconcileCrewCounters recomputes one crew's per-type counters from the
// assigned sub-ledger. This is a full recompute from source, not an
// incremental update: right after a run, each counter equals the number of
// assigned entries of that type.
func ReconcileCrewCounters(ctx context.Context, stores LedgerStores, logger *logrus.Logger, runLog *RunLog, crewID string, opts ReconcileOptions) (ReconciliationResult, error) {
	var res ReconciliationResult

	entries, err := stores.CrewAssigned(ctx, crewID)
	if err != nil {
		return res, err
	}
	res.TotalAssigned = len(entries)

	counts := lo.CountValuesBy(entries, func(e models.AssignedEquipment) string {
		if e.Type == "" {
			return UnspecifiedType
		}
		return e.Type
	})
	types := lo.Keys(counts)
	sort.Strings(types)

	now := nowFunc()
	for _, equipType := range types {
		if opts.DryRun {
			res.TypesUpdated++
			runLog.Appendf("[%s] (dry-run) would set counter %s=%d", crewID, equipType, counts[equipType])
			continue
		}
		if err := stores.UpsertCounter(ctx, crewID, equipType, counts[equipType], now); err != nil {
			config.LogError(logger, "stockReconcile.go", "ReconcileCrewCounters", "upserting counter", equipType, err)
			runLog.Appendf("[%s] counter %s not updated: %v", crewID, equipType, err)
			continue
		}
		res.TypesUpdated++
		runLog.Appendf("[%s] counter %s=%d", crewID, equipType, counts[equipType])
	}

	if opts.ZeroStale {
		zeroed, err := zeroStaleCounters(ctx, stores, runLog, crewID, counts, opts.DryRun)
		if err != nil {
			config.LogError(logger, "stockReconcile.go", "ReconcileCrewCounters", "zeroing stale counters", crewID, err)
		}
		res.Zeroed = zeroed
	}

	return res, nil
}

func zeroStaleCounters(ctx context.Context, stores CounterStore, runLog *RunLog, crewID string, counts map[string]int, dryRun bool) (int, error) {
	existing, err := stores.CrewCounters(ctx, crewID)
	if err != nil {
		return 0, err
	}
	sort.Slice(existing, func(i, j int) bool { return existing[i].Type < existing[j].Type })

	zeroed := 0
	now := nowFunc()
	for _, counter := range existing {
		if counter.Count == 0 {
			continue
		}
		if _, live := counts[counter.Type]; live {
			continue
		}
		if dryRun {
			zeroed++
			runLog.Appendf("[%s] (dry-run) would zero stale counter %s", crewID, counter.Type)
			continue
		}
		if err := stores.UpsertCounter(ctx, crewID, counter.Type, 0, now); err != nil {
			return zeroed, err
		}
		zeroed++
		runLog.Appendf("[%s] zeroed stale counter %s", crewID, counter.Type)
	}
	return zeroed, nil
}
