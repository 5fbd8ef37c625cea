package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Raw stock documents carry no schema: aggregate counters and per-serial
// detail records coexist in the same collection, and legacy detail records
// may hold any subset of fields (including none at all).

// ErrInvalidRecordShape is returned when a stock document's payload is not a
// key-value object.
var ErrInvalidRecordShape = errors.New("invalid stock record shape")

// Field names shared by the stock, assigned and counter sub-ledgers.
const (
	FieldSerial      = "serial"
	FieldType        = "type"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldInstallDate = "install_date"
	FieldCount       = "count"
	FieldUpdatedAt   = "updated_at"
)

// Reserved document keys that belong to storage bookkeeping, not the record.
const (
	FieldDocID  = "_id"
	FieldCrewID = "crew_id"
	FieldDocKey = "doc_key"
)

// RawStockRecord is a stock document's payload exactly as read from storage,
// with the reserved bookkeeping keys already stripped.
type RawStockRecord map[string]any

// StockDocument pairs a raw record with its storage key. For legacy detail
// records the storage key is the serial number.
type StockDocument struct {
	Key  string
	Data RawStockRecord
}

type StockRecordKind int

const (
	// StockRecordDetail is a single serialized unit. Ambiguous legacy shapes
	// (empty documents, partial fields) land here so they get migrated.
	StockRecordDetail StockRecordKind = iota
	// StockRecordAggregate is a per-type counter ({type, count, updated_at}).
	StockRecordAggregate
)

func (k StockRecordKind) String() string {
	if k == StockRecordAggregate {
		return "aggregate"
	}
	return "detail"
}

var detailOnlyFields = []string{FieldSerial, FieldDescription, FieldStatus, FieldInstallDate}

// ClassifyStockRecord decides whether a raw stock document is an aggregate
// counter or a detail record. A record is an aggregate only when it has a
// numeric count, its keys are a subset of {count, type, updated_at} and no
// serial-specific key is present. Everything else, including the empty
// record, is a detail record.
func ClassifyStockRecord(value any) (StockRecordKind, error) {
	raw, err := asRawStockRecord(value)
	if err != nil {
		return StockRecordDetail, err
	}
	if len(raw) == 0 {
		return StockRecordDetail, nil
	}

	for _, field := range detailOnlyFields {
		if _, ok := raw[field]; ok {
			return StockRecordDetail, nil
		}
	}

	_, hasCount := numericValue(raw[FieldCount])
	if !hasCount {
		return StockRecordDetail, nil
	}
	for key := range raw {
		switch key {
		case FieldCount, FieldType, FieldUpdatedAt:
		default:
			return StockRecordDetail, nil
		}
	}
	return StockRecordAggregate, nil
}

func asRawStockRecord(value any) (RawStockRecord, error) {
	switch v := value.(type) {
	case nil:
		return RawStockRecord{}, nil
	case RawStockRecord:
		return v, nil
	case map[string]any:
		return RawStockRecord(v), nil
	case bson.M:
		return RawStockRecord(v), nil
	default:
		return nil, ErrInvalidRecordShape
	}
}

// numericValue accepts the numeric BSON encodings a loose writer may have
// produced for a counter.
func numericValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// DetailRecord is the normalized view of a detail-shaped stock document.
type DetailRecord struct {
	Serial      string
	Type        string
	Description string
	Status      string
	InstallDate *time.Time
}

// DetailFromRaw extracts the detail fields present on a raw record. The
// serial comes from the record itself when set, otherwise from the storage
// key.
func DetailFromRaw(key string, raw RawStockRecord) DetailRecord {
	d := DetailRecord{
		Serial:      stringValue(raw[FieldSerial]),
		Type:        stringValue(raw[FieldType]),
		Description: stringValue(raw[FieldDescription]),
		Status:      stringValue(raw[FieldStatus]),
		InstallDate: timeValue(raw[FieldInstallDate]),
	}
	if d.Serial == "" {
		d.Serial = key
	}
	return d
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func timeValue(v any) *time.Time {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return nil
		}
		return &t
	case bson.DateTime:
		parsed := t.Time()
		return &parsed
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return &parsed
		}
		if parsed, err := time.Parse("2006-01-02", t); err == nil {
			return &parsed
		}
		return nil
	default:
		return nil
	}
}
