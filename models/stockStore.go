package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CrewStock fetches every stock document of one crew, raw. No shape is
// enforced here; classification happens at the ingestion boundary of the
// migration pass.
func (s *Store) CrewStock(ctx context.Context, crewID string) ([]StockDocument, error) {
	const op = "models.CrewStock"

	cur, err := s.stock().Find(ctx, bson.M{FieldCrewID: crewID},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var rawDocs []bson.M
	if err := cur.All(ctx, &rawDocs); err != nil {
		return nil, fmt.Errorf("%s decode: %w", op, err)
	}

	docs := make([]StockDocument, 0, len(rawDocs))
	for _, raw := range rawDocs {
		docs = append(docs, stockDocumentFromRaw(crewID, raw))
	}
	return docs, nil
}

func stockDocumentFromRaw(crewID string, raw bson.M) StockDocument {
	key, _ := raw[FieldDocKey].(string)
	if key == "" {
		if id, ok := raw[FieldDocID].(string); ok {
			key = strings.TrimPrefix(id, crewID+"/")
		}
	}
	data := make(RawStockRecord, len(raw))
	for k, v := range raw {
		switch k {
		case FieldDocID, FieldCrewID, FieldDocKey:
		default:
			data[k] = v
		}
	}
	return StockDocument{Key: key, Data: data}
}

// UpsertStockDetail writes a full detail record into a crew's stock
// sub-ledger, keyed by serial. Used by the location sync pass.
func (s *Store) UpsertStockDetail(ctx context.Context, crewID string, d DetailRecord) error {
	const op = "models.UpsertStockDetail"

	set := bson.M{
		FieldCrewID:      crewID,
		FieldDocKey:      d.Serial,
		FieldSerial:      d.Serial,
		FieldType:        d.Type,
		FieldDescription: d.Description,
		FieldStatus:      d.Status,
	}
	if d.InstallDate != nil {
		set[FieldInstallDate] = *d.InstallDate
	} else {
		set[FieldInstallDate] = nil
	}
	_, err := s.stock().UpdateOne(ctx,
		bson.M{FieldDocID: crewDocID(crewID, d.Serial)},
		bson.M{"$set": set},
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) DeleteStockEntry(ctx context.Context, crewID, key string) error {
	const op = "models.DeleteStockEntry"

	_, err := s.stock().DeleteOne(ctx, bson.M{FieldDocID: crewDocID(crewID, key)})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// AssignedEquipment is the canonical per-crew record of one serialized unit.
// At most one document exists per (crew, serial).
type AssignedEquipment struct {
	CrewID       string     `bson:"crew_id" json:"crewId"`
	Serial       string     `bson:"serial" json:"serial"`
	Type         string     `bson:"type,omitempty" json:"type,omitempty"`
	Description  string     `bson:"description,omitempty" json:"description,omitempty"`
	Status       string     `bson:"status,omitempty" json:"status,omitempty"`
	InstallDate  *time.Time `bson:"install_date,omitempty" json:"installDate,omitempty"`
	MigratedFrom string     `bson:"migrated_from,omitempty" json:"migratedFrom,omitempty"`
	MigratedAt   *time.Time `bson:"migrated_at,omitempty" json:"migratedAt,omitempty"`
}

func (s *Store) CrewAssigned(ctx context.Context, crewID string) ([]AssignedEquipment, error) {
	const op = "models.CrewAssigned"

	cur, err := s.assigned().Find(ctx, bson.M{FieldCrewID: crewID},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var entries []AssignedEquipment
	if err := cur.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("%s decode: %w", op, err)
	}
	return entries, nil
}

// UpsertAssigned merge-upserts one assigned entry keyed by serial. Only the
// fields present on the entry are written; fields already on the stored
// document stay untouched, which is what makes re-migration a no-op.
func (s *Store) UpsertAssigned(ctx context.Context, crewID string, entry AssignedEquipment) error {
	const op = "models.UpsertAssigned"

	set := bson.M{
		FieldCrewID: crewID,
		FieldSerial: entry.Serial,
	}
	if entry.Type != "" {
		set[FieldType] = entry.Type
	}
	if entry.Description != "" {
		set[FieldDescription] = entry.Description
	}
	if entry.Status != "" {
		set[FieldStatus] = entry.Status
	}
	if entry.InstallDate != nil {
		set[FieldInstallDate] = *entry.InstallDate
	}
	if entry.MigratedFrom != "" {
		set["migrated_from"] = entry.MigratedFrom
	}
	if entry.MigratedAt != nil {
		set["migrated_at"] = *entry.MigratedAt
	}

	_, err := s.assigned().UpdateOne(ctx,
		bson.M{FieldDocID: crewDocID(crewID, entry.Serial)},
		bson.M{"$set": set},
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
