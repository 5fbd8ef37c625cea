package workflow

import (
	"context"
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"bitbucket.org/redfibra/fieldops_backend/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func fixedNow(t *testing.T, at time.Time) {
	t.Helper()
	prev := nowFunc
	nowFunc = func() time.Time { return at }
	t.Cleanup(func() { nowFunc = prev })
}

func TestMigrateCrewStock(t *testing.T) {
	fixedNow(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	stores := newFakeStores()
	stores.registry = []models.EquipmentRecord{
		{ID: "eq-1", Serial: "S1", Type: "MESH", Description: "mesh repeater"},
	}
	stores.addStock("crew-1", "S1", models.RawStockRecord{"serial": "S1"})
	stores.addStock("crew-1", "ont", models.RawStockRecord{"type": "ONT", "count": 3})
	stores.addStock("crew-1", "S2", models.RawStockRecord{"serial": "S2", "type": "BOX"})

	runLog := &RunLog{}
	res, err := MigrateCrewStock(context.Background(), stores, testLogger(), runLog, "crew-1", MigrateOptions{})
	if err != nil {
		t.Fatalf("MigrateCrewStock: %v", err)
	}
	if res.Migrated != 2 || res.LegacyDeleted != 2 {
		t.Errorf("migrated=%d deleted=%d, want 2/2", res.Migrated, res.LegacyDeleted)
	}
	if res.SkippedAggregate != 1 {
		t.Errorf("skippedAggregate=%d, want 1", res.SkippedAggregate)
	}
	if res.Failed != 0 || res.Invalid != 0 || res.AmbiguousLookups != 0 {
		t.Errorf("unexpected failure counters: %+v", res)
	}

	// Only the aggregate counter stays behind in the legacy ledger.
	if got := len(stores.stock["crew-1"]); got != 1 {
		t.Fatalf("stock has %d records, want 1", got)
	}
	if _, ok := stores.stock["crew-1"]["ont"]; !ok {
		t.Error("aggregate counter was removed from stock")
	}

	s1 := stores.assigned["crew-1"]["S1"]
	if s1.Type != "MESH" || s1.Description != "mesh repeater" {
		t.Errorf("S1 not enriched from registry: %+v", s1)
	}
	if s1.Status != DefaultAssignedStatus {
		t.Errorf("S1 status=%q, want %q", s1.Status, DefaultAssignedStatus)
	}
	if s1.MigratedFrom != MigratedFromLegacyStock || s1.MigratedAt == nil {
		t.Errorf("S1 missing migration provenance: %+v", s1)
	}
	s2 := stores.assigned["crew-1"]["S2"]
	if s2.Type != "BOX" {
		t.Errorf("S2 type=%q, want BOX", s2.Type)
	}
	if s2.InstallDate == nil || !s2.InstallDate.Equal(nowFunc()) {
		t.Errorf("S2 installDate=%v, want defaulted to now", s2.InstallDate)
	}
}

func TestMigrateCrewStockIdempotent(t *testing.T) {
	fixedNow(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	stores := newFakeStores()
	stores.addStock("crew-1", "S1", models.RawStockRecord{"serial": "S1", "type": "ONT", "status": "field"})
	stores.addStock("crew-1", "S2", models.RawStockRecord{"serial": "S2", "type": "BOX", "status": "field"})
	stores.failDelete["crew-1/S2"] = true

	ctx := context.Background()
	first, err := MigrateCrewStock(ctx, stores, testLogger(), &RunLog{}, "crew-1", MigrateOptions{})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Migrated != 2 || first.LegacyDeleted != 1 {
		t.Fatalf("first run migrated=%d deleted=%d, want 2/1", first.Migrated, first.LegacyDeleted)
	}
	_, snapAssigned, _ := stores.snapshot()

	// The leftover S2 record re-merges and its delete succeeds this time.
	stores.failDelete = map[string]bool{}
	second, err := MigrateCrewStock(ctx, stores, testLogger(), &RunLog{}, "crew-1", MigrateOptions{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Migrated != 1 || second.LegacyDeleted != 1 {
		t.Errorf("second run migrated=%d deleted=%d, want 1/1", second.Migrated, second.LegacyDeleted)
	}
	if len(stores.stock["crew-1"]) != 0 {
		t.Errorf("stock not drained: %v", stores.stock["crew-1"])
	}
	a1 := snapAssigned["crew-1"]["S2"]
	a2 := stores.assigned["crew-1"]["S2"]
	a1.MigratedAt, a2.MigratedAt = nil, nil
	if !reflect.DeepEqual(a1, a2) {
		t.Errorf("re-run changed assigned entry: %+v vs %+v", a1, a2)
	}
}

func TestMigrateCrewStockDryRun(t *testing.T) {
	stores := newFakeStores()
	stores.addStock("crew-1", "S1", models.RawStockRecord{"serial": "S1", "type": "ONT"})
	stores.addStock("crew-1", "ont", models.RawStockRecord{"type": "ONT", "count": 4})
	beforeStock, beforeAssigned, beforeCounters := stores.snapshot()

	res, err := MigrateCrewStock(context.Background(), stores, testLogger(), &RunLog{}, "crew-1", MigrateOptions{DryRun: true})
	if err != nil {
		t.Fatalf("MigrateCrewStock: %v", err)
	}
	if res.Migrated != 1 || res.LegacyDeleted != 1 || res.SkippedAggregate != 1 {
		t.Errorf("dry-run result: %+v", res)
	}

	afterStock, afterAssigned, afterCounters := stores.snapshot()
	if !reflect.DeepEqual(beforeStock, afterStock) {
		t.Error("dry-run mutated stock")
	}
	if !reflect.DeepEqual(beforeAssigned, afterAssigned) {
		t.Error("dry-run mutated assigned")
	}
	if !reflect.DeepEqual(beforeCounters, afterCounters) {
		t.Error("dry-run mutated counters")
	}
}

func TestMigrateCrewStockEnrichmentIsAdditive(t *testing.T) {
	stores := newFakeStores()
	stores.registry = []models.EquipmentRecord{
		{ID: "eq-1", Serial: "S1", Type: "BOX", Status: "warehouse", Description: "from registry"},
	}
	stores.addStock("crew-1", "S1", models.RawStockRecord{"serial": "S1", "type": "ONT"})

	_, err := MigrateCrewStock(context.Background(), stores, testLogger(), &RunLog{}, "crew-1", MigrateOptions{})
	if err != nil {
		t.Fatalf("MigrateCrewStock: %v", err)
	}
	got := stores.assigned["crew-1"]["S1"]
	if got.Type != "ONT" {
		t.Errorf("registry overwrote record type: %q", got.Type)
	}
	if got.Status != "warehouse" || got.Description != "from registry" {
		t.Errorf("missing fields not filled from registry: %+v", got)
	}
}

func TestMigrateCrewStockAmbiguousSerial(t *testing.T) {
	stores := newFakeStores()
	stores.registry = []models.EquipmentRecord{
		{ID: "eq-2", Serial: "S1", Type: "BOX"},
		{ID: "eq-1", Serial: "S1", Type: "ONT"},
	}
	stores.addStock("crew-1", "S1", models.RawStockRecord{"serial": "S1"})

	res, err := MigrateCrewStock(context.Background(), stores, testLogger(), &RunLog{}, "crew-1", MigrateOptions{})
	if err != nil {
		t.Fatalf("MigrateCrewStock: %v", err)
	}
	if res.AmbiguousLookups != 1 {
		t.Errorf("ambiguousLookups=%d, want 1", res.AmbiguousLookups)
	}
	if res.Migrated != 1 {
		t.Errorf("migrated=%d, want 1", res.Migrated)
	}
	// First match in id order is eq-1.
	if got := stores.assigned["crew-1"]["S1"].Type; got != "ONT" {
		t.Errorf("type=%q, want first registry match ONT", got)
	}
}

func TestMigrateCrewStockWriteFailureLeavesRecord(t *testing.T) {
	stores := newFakeStores()
	stores.addStock("crew-1", "S1", models.RawStockRecord{"serial": "S1", "type": "ONT"})
	stores.failUpsertAssigned["crew-1"] = true

	res, err := MigrateCrewStock(context.Background(), stores, testLogger(), &RunLog{}, "crew-1", MigrateOptions{})
	if err != nil {
		t.Fatalf("MigrateCrewStock: %v", err)
	}
	if res.Failed != 1 || res.Migrated != 0 {
		t.Errorf("failed=%d migrated=%d, want 1/0", res.Failed, res.Migrated)
	}
	if _, ok := stores.stock["crew-1"]["S1"]; !ok {
		t.Error("failed record was deleted from stock")
	}
}

func TestMigrateCrewStockEmpty(t *testing.T) {
	stores := newFakeStores()
	runLog := &RunLog{}
	res, err := MigrateCrewStock(context.Background(), stores, testLogger(), runLog, "crew-1", MigrateOptions{})
	if err != nil {
		t.Fatalf("MigrateCrewStock: %v", err)
	}
	if !reflect.DeepEqual(res, MigrationResult{}) {
		t.Errorf("result not zero: %+v", res)
	}
	if len(runLog.Lines()) != 1 {
		t.Errorf("log lines: %v", runLog.Lines())
	}
}

func TestMigrateCrewStockMalformedRecord(t *testing.T) {
	stores := newFakeStores()
	stores.addStock("crew-1", "S1", models.RawStockRecord{"serial": "S1"})
	stores.stock["crew-1"]["bogus"] = nil // classifies as empty detail, key becomes serial

	res, err := MigrateCrewStock(context.Background(), stores, testLogger(), &RunLog{}, "crew-1", MigrateOptions{})
	if err != nil {
		t.Fatalf("MigrateCrewStock: %v", err)
	}
	if res.Migrated != 2 {
		t.Errorf("migrated=%d, want 2", res.Migrated)
	}
	if got := stores.assigned["crew-1"]["bogus"].Serial; got != "bogus" {
		t.Errorf("keyed serial=%q, want storage key fallback", got)
	}
}
