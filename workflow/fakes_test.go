package workflow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"bitbucket.org/redfibra/fieldops_backend/models"
)

// NOTE: These tests are intentionally DB-free. fakeStores mirrors the
// merge-upsert semantics of the Mongo store so the executors can be
// exercised against in-memory ledgers, including injected write failures.

var errInjected = errors.New("injected store failure")

type fakeStores struct {
	mu sync.Mutex

	crews    []models.Crew
	registry []models.EquipmentRecord

	stock    map[string]map[string]models.RawStockRecord    // crew -> key -> raw
	assigned map[string]map[string]models.AssignedEquipment // crew -> serial
	counters map[string]map[string]models.TypeCounter       // crew -> type

	failStockFetch     map[string]bool // crew
	failUpsertAssigned map[string]bool // crew
	failDelete         map[string]bool // crew/key
	lookupCalls        int
}

func newFakeStores() *fakeStores {
	return &fakeStores{
		stock:              map[string]map[string]models.RawStockRecord{},
		assigned:           map[string]map[string]models.AssignedEquipment{},
		counters:           map[string]map[string]models.TypeCounter{},
		failStockFetch:     map[string]bool{},
		failUpsertAssigned: map[string]bool{},
		failDelete:         map[string]bool{},
	}
}

func (f *fakeStores) addStock(crewID, key string, raw models.RawStockRecord) {
	if f.stock[crewID] == nil {
		f.stock[crewID] = map[string]models.RawStockRecord{}
	}
	f.stock[crewID][key] = raw
}

func (f *fakeStores) CrewStock(ctx context.Context, crewID string) ([]models.StockDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStockFetch[crewID] {
		return nil, errInjected
	}
	var docs []models.StockDocument
	for key, raw := range f.stock[crewID] {
		docs = append(docs, models.StockDocument{Key: key, Data: raw})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Key < docs[j].Key })
	return docs, nil
}

func (f *fakeStores) UpsertStockDetail(ctx context.Context, crewID string, d models.DetailRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw := models.RawStockRecord{
		models.FieldSerial:      d.Serial,
		models.FieldType:        d.Type,
		models.FieldDescription: d.Description,
		models.FieldStatus:      d.Status,
	}
	if d.InstallDate != nil {
		raw[models.FieldInstallDate] = *d.InstallDate
	}
	f.addStock(crewID, d.Serial, raw)
	return nil
}

func (f *fakeStores) DeleteStockEntry(ctx context.Context, crewID, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete[crewID+"/"+key] {
		return errInjected
	}
	delete(f.stock[crewID], key)
	return nil
}

func (f *fakeStores) CrewAssigned(ctx context.Context, crewID string) ([]models.AssignedEquipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var entries []models.AssignedEquipment
	for _, e := range f.assigned[crewID] {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Serial < entries[j].Serial })
	return entries, nil
}

// UpsertAssigned mirrors the merge semantics of the real store: only the
// fields present on the incoming entry replace stored ones.
func (f *fakeStores) UpsertAssigned(ctx context.Context, crewID string, entry models.AssignedEquipment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpsertAssigned[crewID] {
		return errInjected
	}
	if f.assigned[crewID] == nil {
		f.assigned[crewID] = map[string]models.AssignedEquipment{}
	}
	existing := f.assigned[crewID][entry.Serial]
	existing.CrewID = crewID
	existing.Serial = entry.Serial
	if entry.Type != "" {
		existing.Type = entry.Type
	}
	if entry.Description != "" {
		existing.Description = entry.Description
	}
	if entry.Status != "" {
		existing.Status = entry.Status
	}
	if entry.InstallDate != nil {
		existing.InstallDate = entry.InstallDate
	}
	if entry.MigratedFrom != "" {
		existing.MigratedFrom = entry.MigratedFrom
	}
	if entry.MigratedAt != nil {
		existing.MigratedAt = entry.MigratedAt
	}
	f.assigned[crewID][entry.Serial] = existing
	return nil
}

func (f *fakeStores) CrewCounters(ctx context.Context, crewID string) ([]models.TypeCounter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var counters []models.TypeCounter
	for _, c := range f.counters[crewID] {
		counters = append(counters, c)
	}
	sort.Slice(counters, func(i, j int) bool { return counters[i].Type < counters[j].Type })
	return counters, nil
}

func (f *fakeStores) UpsertCounter(ctx context.Context, crewID, equipType string, count int, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counters[crewID] == nil {
		f.counters[crewID] = map[string]models.TypeCounter{}
	}
	f.counters[crewID][equipType] = models.TypeCounter{CrewID: crewID, Type: equipType, Count: count, UpdatedAt: at}
	return nil
}

func (f *fakeStores) LookupBySerial(ctx context.Context, serial string) (*models.EquipmentRecord, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookupCalls++
	var matches []models.EquipmentRecord
	for _, r := range f.registry {
		if r.Serial == serial {
			matches = append(matches, r)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	if len(matches) == 0 {
		return nil, 0, nil
	}
	n := len(matches)
	if n > 2 {
		n = 2
	}
	return &matches[0], n, nil
}

func (f *fakeStores) EquipmentWithLocation(ctx context.Context) ([]models.EquipmentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EquipmentRecord
	for _, r := range f.registry {
		if r.Location != "" {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Serial < out[j].Serial })
	return out, nil
}

func (f *fakeStores) ListCrews(ctx context.Context, activeOnly bool) ([]models.Crew, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Crew
	for _, c := range f.crews {
		if activeOnly && !c.IsActive() {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeStores) GetCrew(ctx context.Context, id string) (*models.Crew, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.crews {
		if c.ID == id {
			crew := c
			return &crew, nil
		}
	}
	return nil, models.ErrCrewNotFound
}

// snapshot deep-copies the mutable ledgers so tests can assert that a
// dry-run left them byte-identical.
func (f *fakeStores) snapshot() (map[string]map[string]models.RawStockRecord, map[string]map[string]models.AssignedEquipment, map[string]map[string]models.TypeCounter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stock := map[string]map[string]models.RawStockRecord{}
	for crew, docs := range f.stock {
		stock[crew] = map[string]models.RawStockRecord{}
		for k, v := range docs {
			raw := models.RawStockRecord{}
			for kk, vv := range v {
				raw[kk] = vv
			}
			stock[crew][k] = raw
		}
	}
	assigned := map[string]map[string]models.AssignedEquipment{}
	for crew, docs := range f.assigned {
		assigned[crew] = map[string]models.AssignedEquipment{}
		for k, v := range docs {
			assigned[crew][k] = v
		}
	}
	counters := map[string]map[string]models.TypeCounter{}
	for crew, docs := range f.counters {
		counters[crew] = map[string]models.TypeCounter{}
		for k, v := range docs {
			counters[crew][k] = v
		}
	}
	return stock, assigned, counters
}
