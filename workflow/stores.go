package workflow

import (
	"context"
	"time"

	"bitbucket.org/redfibra/fieldops_backend/models"
)

// The executors are pure transformations over fetched snapshots; every side
// effect goes through these interfaces. *models.Store satisfies all of them;
// tests use in-memory fakes.

type StockStore interface {
	CrewStock(ctx context.Context, crewID string) ([]models.StockDocument, error)
	UpsertStockDetail(ctx context.Context, crewID string, d models.DetailRecord) error
	DeleteStockEntry(ctx context.Context, crewID, key string) error
}

type AssignedStore interface {
	CrewAssigned(ctx context.Context, crewID string) ([]models.AssignedEquipment, error)
	UpsertAssigned(ctx context.Context, crewID string, entry models.AssignedEquipment) error
}

type CounterStore interface {
	CrewCounters(ctx context.Context, crewID string) ([]models.TypeCounter, error)
	UpsertCounter(ctx context.Context, crewID, equipType string, count int, at time.Time) error
}

type EquipmentRegistry interface {
	// LookupBySerial returns the first registry match in _id order plus the
	// number of matches seen (capped at 2; >1 flags a duplicate serial).
	LookupBySerial(ctx context.Context, serial string) (*models.EquipmentRecord, int, error)
	EquipmentWithLocation(ctx context.Context) ([]models.EquipmentRecord, error)
}

type CrewDirectory interface {
	ListCrews(ctx context.Context, activeOnly bool) ([]models.Crew, error)
	GetCrew(ctx context.Context, id string) (*models.Crew, error)
}

// LedgerStores bundles everything the orchestrator needs.
type LedgerStores interface {
	StockStore
	AssignedStore
	CounterStore
	EquipmentRegistry
	CrewDirectory
}
