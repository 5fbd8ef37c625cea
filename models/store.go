package models

import (
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Collection names. The crew_* collections keep the per-crew sub-ledger
// layout of the legacy system: documents are partitioned by crew_id and
// keyed by a composite _id of "<crewID>/<docKey>".
const (
	CollectionEquipment    = "equipment"
	CollectionCrews        = "crews"
	CollectionCrewStock    = "crew_stock"
	CollectionCrewAssigned = "crew_assigned"
	CollectionCrewCounters = "crew_counters"
)

// Store is the Mongo-backed access layer for the equipment ledgers.
type Store struct {
	db *mongo.Database
}

func NewStore(db *mongo.Database) *Store {
	return &Store{db: db}
}

func (s *Store) stock() *mongo.Collection     { return s.db.Collection(CollectionCrewStock) }
func (s *Store) assigned() *mongo.Collection  { return s.db.Collection(CollectionCrewAssigned) }
func (s *Store) counters() *mongo.Collection  { return s.db.Collection(CollectionCrewCounters) }
func (s *Store) equipment() *mongo.Collection { return s.db.Collection(CollectionEquipment) }
func (s *Store) crews() *mongo.Collection     { return s.db.Collection(CollectionCrews) }

func crewDocID(crewID, key string) string {
	return crewID + "/" + key
}
