package workflow

import (
	"context"

	"github.com/sirupsen/logrus"

	"bitbucket.org/redfibra/fieldops_backend/config"
	"bitbucket.org/redfibra/fieldops_backend/models"
	"bitbucket.org/redfibra/fieldops_backend/utils"
)

type LocationSyncResult struct {
	Scanned   int `json:"scanned"`
	Updated   int `json:"updated"`
	Unmatched int `json:"unmatched"`
	Failed    int `json:"failed"`
}

// SyncEquipmentLocations rebuilds crew stock records from the registry's
// free-text location field. Locations and crew names are matched after
// normalization (trim + lowercase); equipment whose location matches no crew
// is reported, not written anywhere.
func SyncEquipmentLocations(ctx context.Context, stores LedgerStores, logger *logrus.Logger, runLog *RunLog, dryRun bool) (LocationSyncResult, error) {
	var res LocationSyncResult

	crews, err := stores.ListCrews(ctx, false)
	if err != nil {
		return res, err
	}
	crewByName := make(map[string]string, len(crews))
	for _, crew := range crews {
		name := utils.NormalizeName(crew.Name)
		if name == "" {
			continue
		}
		if _, dup := crewByName[name]; !dup {
			crewByName[name] = crew.ID
		}
	}

	records, err := stores.EquipmentWithLocation(ctx)
	if err != nil {
		return res, err
	}
	res.Scanned = len(records)

	for _, record := range records {
		crewID, ok := crewByName[utils.NormalizeName(record.Location)]
		if !ok {
			res.Unmatched++
			logger.WithFields(logrus.Fields{
				"serial":   record.Serial,
				"location": record.Location,
			}).Warn("equipment location matches no crew")
			runLog.Appendf("%s: location %q matches no crew", record.Serial, record.Location)
			continue
		}

		if dryRun {
			res.Updated++
			runLog.Appendf("%s: (dry-run) would sync into crew %s", record.Serial, crewID)
			continue
		}

		detail := models.DetailRecord{
			Serial:      record.Serial,
			Type:        record.Type,
			Description: record.Description,
			Status:      record.Status,
			InstallDate: record.InstallDate,
		}
		if err := stores.UpsertStockDetail(ctx, crewID, detail); err != nil {
			res.Failed++
			config.LogError(logger, "locationSync.go", "SyncEquipmentLocations", "upserting stock record", record.Serial, err)
			runLog.Appendf("%s: sync into crew %s failed: %v", record.Serial, crewID, err)
			continue
		}
		res.Updated++
		runLog.Appendf("%s: synced into crew %s", record.Serial, crewID)
	}

	return res, nil
}
