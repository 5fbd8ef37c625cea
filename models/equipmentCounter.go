package models

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// TypeCounter is the per-crew, per-type aggregate derived from the assigned
// sub-ledger. It is recomputed from source on every reconcile run rather
// than maintained incrementally.
type TypeCounter struct {
	CrewID    string    `bson:"crew_id" json:"crewId"`
	Type      string    `bson:"type" json:"type"`
	Count     int       `bson:"count" json:"count"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

func (s *Store) CrewCounters(ctx context.Context, crewID string) ([]TypeCounter, error) {
	const op = "models.CrewCounters"

	cur, err := s.counters().Find(ctx, bson.M{FieldCrewID: crewID},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var counters []TypeCounter
	if err := cur.All(ctx, &counters); err != nil {
		return nil, fmt.Errorf("%s decode: %w", op, err)
	}
	return counters, nil
}

// UpsertCounter merge-upserts one counter keyed by equipment type. Unrelated
// fields an operator may have added to the counter document are preserved.
func (s *Store) UpsertCounter(ctx context.Context, crewID, equipType string, count int, at time.Time) error {
	const op = "models.UpsertCounter"

	_, err := s.counters().UpdateOne(ctx,
		bson.M{FieldDocID: crewDocID(crewID, equipType)},
		bson.M{"$set": bson.M{
			FieldCrewID:    crewID,
			FieldType:      equipType,
			FieldCount:     count,
			FieldUpdatedAt: at,
		}},
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
