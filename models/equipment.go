package models

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// EquipmentRecord is the global registry view of one physical unit. The
// registry is created by bulk intake and updated by dispatch/install/return
// flows; the reconciliation engine only reads it.
type EquipmentRecord struct {
	ID          string     `bson:"_id,omitempty" json:"id,omitempty"`
	Serial      string     `bson:"serial" json:"serial"`
	Type        string     `bson:"type,omitempty" json:"type,omitempty"`
	Description string     `bson:"description,omitempty" json:"description,omitempty"`
	Status      string     `bson:"status,omitempty" json:"status,omitempty"`
	InstallDate *time.Time `bson:"install_date,omitempty" json:"installDate,omitempty"`
	Location    string     `bson:"location,omitempty" json:"location,omitempty"`
}

// LookupBySerial resolves a registry record by serial number. matches
// reports how many live records share the serial (capped at 2): 0 means not
// found, anything above 1 means the registry holds duplicates and the first
// record in _id order was picked.
func (s *Store) LookupBySerial(ctx context.Context, serial string) (*EquipmentRecord, int, error) {
	const op = "models.LookupBySerial"

	cur, err := s.equipment().Find(ctx, bson.M{FieldSerial: serial},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetLimit(2))
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	var records []EquipmentRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, 0, fmt.Errorf("%s decode: %w", op, err)
	}
	if len(records) == 0 {
		return nil, 0, nil
	}
	return &records[0], len(records), nil
}

// EquipmentWithLocation returns registry records that carry a free-text
// location, used by the location sync pass to rebuild crew stock.
func (s *Store) EquipmentWithLocation(ctx context.Context) ([]EquipmentRecord, error) {
	const op = "models.EquipmentWithLocation"

	cur, err := s.equipment().Find(ctx, bson.M{"location": bson.M{"$nin": bson.A{nil, ""}}},
		options.Find().SetSort(bson.D{{Key: FieldSerial, Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var records []EquipmentRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("%s decode: %w", op, err)
	}
	return records, nil
}

// SearchEquipment lists registry records, optionally filtered by exact
// serial, newest first, capped by limit.
func (s *Store) SearchEquipment(ctx context.Context, serial string, limit int64) ([]EquipmentRecord, error) {
	const op = "models.SearchEquipment"

	filter := bson.M{}
	if serial != "" {
		filter[FieldSerial] = serial
	}
	if limit <= 0 {
		limit = 100
	}
	cur, err := s.equipment().Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "_id", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var records []EquipmentRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("%s decode: %w", op, err)
	}
	return records, nil
}
