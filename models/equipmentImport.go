package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"bitbucket.org/redfibra/fieldops_backend/utils"
)

// Bulk registry intake from warehouse spreadsheets. Rows are header-mapped
// (column order varies between providers), validated, deduplicated against
// the registry in serial batches and inserted in chunks.

const importChunkSize = 450

type EquipmentImportRow struct {
	Serial      string `validate:"required"`
	Type        string
	Description string
	Status      string
	InstallDate *time.Time
	Location    string
}

type ImportSummary struct {
	TotalRows  int      `json:"totalRows"`
	Imported   int      `json:"imported"`
	Duplicates int      `json:"duplicates"`
	Invalid    int      `json:"invalid"`
	Errors     []string `json:"errors,omitempty"`
}

// Accepted spreadsheet header spellings, normalized to lowercase.
var importHeaderAliases = map[string]string{
	"serial":       FieldSerial,
	"sn":           FieldSerial,
	"serial no":    FieldSerial,
	"type":         FieldType,
	"equipment":    FieldType,
	"description":  FieldDescription,
	"status":       FieldStatus,
	"install date": FieldInstallDate,
	"install_date": FieldInstallDate,
	"location":     "location",
	"crew":         "location",
}

// ImportEquipmentFromXlsx reads an .xlsx stream and inserts new registry
// records. Serials already present in the registry are reported as
// duplicates and skipped; rows without a serial are reported as invalid.
// Nothing is ever updated or deleted by an import.
func (s *Store) ImportEquipmentFromXlsx(ctx context.Context, r io.Reader) (*ImportSummary, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %v", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("unable to read sheet: %v", err)
	}
	if len(rows) < 2 {
		return nil, errors.New("spreadsheet has no data rows")
	}

	columns, err := mapImportHeader(rows[0])
	if err != nil {
		return nil, err
	}

	summary := &ImportSummary{TotalRows: len(rows) - 1}
	parsed := make([]EquipmentImportRow, 0, len(rows)-1)
	for idx, row := range rows[1:] {
		imported, rowErrs := populateImportRow(columns, row)
		if len(rowErrs) > 0 {
			summary.Invalid++
			for field, problem := range rowErrs {
				summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: %s %s", idx+2, field, problem))
			}
			continue
		}
		parsed = append(parsed, imported)
	}

	existing, err := s.existingSerials(ctx, serialsOf(parsed))
	if err != nil {
		return nil, err
	}

	var docs []any
	seen := make(map[string]bool, len(parsed))
	for _, row := range parsed {
		if existing[row.Serial] || seen[row.Serial] {
			summary.Duplicates++
			summary.Errors = append(summary.Errors, fmt.Sprintf("duplicate serial %s", row.Serial))
			continue
		}
		seen[row.Serial] = true
		docs = append(docs, EquipmentRecord{
			Serial:      row.Serial,
			Type:        row.Type,
			Description: row.Description,
			Status:      row.Status,
			InstallDate: row.InstallDate,
			Location:    row.Location,
		})
	}

	for _, chunk := range utils.ChunkSlice(docs, importChunkSize) {
		if _, err := s.equipment().InsertMany(ctx, chunk, options.InsertMany().SetOrdered(false)); err != nil {
			return summary, fmt.Errorf("failed to insert equipment batch: %w", err)
		}
		summary.Imported += len(chunk)
	}
	return summary, nil
}

func mapImportHeader(header []string) (map[int]string, error) {
	columns := make(map[int]string)
	for i, cell := range header {
		name := utils.NormalizeName(cell)
		if field, ok := importHeaderAliases[name]; ok {
			columns[i] = field
		}
	}
	for _, field := range columns {
		if field == FieldSerial {
			return columns, nil
		}
	}
	return nil, errors.New("spreadsheet is missing a serial column")
}

func populateImportRow(columns map[int]string, row []string) (EquipmentImportRow, map[string]string) {
	var out EquipmentImportRow
	for i, cell := range row {
		field, ok := columns[i]
		if !ok {
			continue
		}
		value := strings.TrimSpace(cell)
		switch field {
		case FieldSerial:
			out.Serial = value
		case FieldType:
			out.Type = strings.ToUpper(value)
		case FieldDescription:
			out.Description = value
		case FieldStatus:
			out.Status = value
		case FieldInstallDate:
			out.InstallDate = timeValue(value)
		case "location":
			out.Location = value
		}
	}
	return out, utils.ValidateStruct(out)
}

func serialsOf(rows []EquipmentImportRow) []string {
	serials := make([]string, 0, len(rows))
	for _, r := range rows {
		serials = append(serials, r.Serial)
	}
	return utils.UniqueSlice(serials)
}

// existingSerials checks the registry for the given serials in batches, so
// arbitrarily large imports never build one unbounded $in query.
func (s *Store) existingSerials(ctx context.Context, serials []string) (map[string]bool, error) {
	const op = "models.existingSerials"

	existing := make(map[string]bool)
	for _, chunk := range utils.ChunkSlice(serials, importChunkSize) {
		cur, err := s.equipment().Find(ctx,
			bson.M{FieldSerial: bson.M{"$in": chunk}},
			options.Find().SetProjection(bson.M{FieldSerial: 1}))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		var found []EquipmentRecord
		if err := cur.All(ctx, &found); err != nil {
			return nil, fmt.Errorf("%s decode: %w", op, err)
		}
		for _, rec := range found {
			existing[rec.Serial] = true
		}
	}
	return existing, nil
}
