package reports

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"bitbucket.org/redfibra/fieldops_backend/models"
)

// ExportAssignedStock renders one crew's assigned sub-ledger as a
// spreadsheet for warehouse/BI consumption.
func ExportAssignedStock(crewID string, entries []models.AssignedEquipment) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	// Add headers
	f.SetCellValue(sheet, "A1", "Crew")
	f.SetCellValue(sheet, "B1", "Serial")
	f.SetCellValue(sheet, "C1", "Type")
	f.SetCellValue(sheet, "D1", "Description")
	f.SetCellValue(sheet, "E1", "Status")
	f.SetCellValue(sheet, "F1", "InstallDate")
	f.SetCellValue(sheet, "G1", "MigratedAt")

	// Add data
	for i, e := range entries {
		row := fmt.Sprint(i + 2)
		f.SetCellValue(sheet, "A"+row, crewID)
		f.SetCellValue(sheet, "B"+row, e.Serial)
		f.SetCellValue(sheet, "C"+row, e.Type)
		f.SetCellValue(sheet, "D"+row, e.Description)
		f.SetCellValue(sheet, "E"+row, e.Status)
		if e.InstallDate != nil {
			f.SetCellValue(sheet, "F"+row, e.InstallDate.Format("2006-01-02"))
		}
		if e.MigratedAt != nil {
			f.SetCellValue(sheet, "G"+row, e.MigratedAt.Format("2006-01-02 15:04:05"))
		}
	}
	return f, nil
}
