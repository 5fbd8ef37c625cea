package workflow

import (
	"context"
	"reflect"
	"testing"

	"bitbucket.org/redfibra/fieldops_backend/models"
)

func TestSyncEquipmentLocations(t *testing.T) {
	stores := newFakeStores()
	stores.crews = []models.Crew{
		{ID: "crew-1", Name: "North Crew", Status: models.CrewStatusActive},
		{ID: "crew-2", Name: "South Crew", Status: "disbanded"},
	}
	stores.registry = []models.EquipmentRecord{
		{ID: "eq-1", Serial: "S1", Type: "ONT", Location: "  NORTH crew "},
		{ID: "eq-2", Serial: "S2", Type: "BOX", Location: "south crew"},
		{ID: "eq-3", Serial: "S3", Type: "BOX", Location: "warehouse 4"},
		{ID: "eq-4", Serial: "S4", Type: "BOX"},
	}

	runLog := &RunLog{}
	res, err := SyncEquipmentLocations(context.Background(), stores, testLogger(), runLog, false)
	if err != nil {
		t.Fatalf("SyncEquipmentLocations: %v", err)
	}
	// S4 has no location and is never scanned.
	if res.Scanned != 3 || res.Updated != 2 || res.Unmatched != 1 || res.Failed != 0 {
		t.Errorf("result: %+v", res)
	}
	if _, ok := stores.stock["crew-1"]["S1"]; !ok {
		t.Error("S1 not synced into matching crew")
	}
	// Inactive crews still receive their equipment.
	if _, ok := stores.stock["crew-2"]["S2"]; !ok {
		t.Error("S2 not synced into inactive crew")
	}
	if len(stores.stock["crew-1"]) != 1 {
		t.Errorf("crew-1 stock: %v", stores.stock["crew-1"])
	}
}

func TestSyncEquipmentLocationsDryRun(t *testing.T) {
	stores := newFakeStores()
	stores.crews = []models.Crew{{ID: "crew-1", Name: "North", Status: models.CrewStatusActive}}
	stores.registry = []models.EquipmentRecord{
		{ID: "eq-1", Serial: "S1", Type: "ONT", Location: "north"},
	}
	before, _, _ := stores.snapshot()

	res, err := SyncEquipmentLocations(context.Background(), stores, testLogger(), &RunLog{}, true)
	if err != nil {
		t.Fatalf("SyncEquipmentLocations: %v", err)
	}
	if res.Updated != 1 {
		t.Errorf("updated=%d, want 1", res.Updated)
	}
	after, _, _ := stores.snapshot()
	if !reflect.DeepEqual(before, after) {
		t.Error("dry-run mutated stock")
	}
}

func TestSyncEquipmentLocationsDuplicateCrewName(t *testing.T) {
	stores := newFakeStores()
	stores.crews = []models.Crew{
		{ID: "crew-1", Name: "North", Status: models.CrewStatusActive},
		{ID: "crew-2", Name: "north ", Status: models.CrewStatusActive},
	}
	stores.registry = []models.EquipmentRecord{
		{ID: "eq-1", Serial: "S1", Type: "ONT", Location: "North"},
	}

	if _, err := SyncEquipmentLocations(context.Background(), stores, testLogger(), &RunLog{}, false); err != nil {
		t.Fatalf("SyncEquipmentLocations: %v", err)
	}
	// First crew in directory order wins the name.
	if _, ok := stores.stock["crew-1"]["S1"]; !ok {
		t.Error("S1 not synced into first matching crew")
	}
	if len(stores.stock["crew-2"]) != 0 {
		t.Errorf("duplicate-name crew received stock: %v", stores.stock["crew-2"])
	}
}
