package scheduler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/EDDataAPI/eddata-collector/internal/backup"
	"github.com/EDDataAPI/eddata-collector/internal/database"
	"github.com/EDDataAPI/eddata-collector/internal/ingest"
	"github.com/EDDataAPI/eddata-collector/internal/snapshot"
	"github.com/EDDataAPI/eddata-collector/internal/stats"
)

// MaintenanceWindowStartJob fires at the configured weekly window start
// (default day 4, hour 7 UTC). It holds the write-lock for the duration
// of the retention sweep, vacuum/analyze, and the online backup
// (spec.md §4.8).
type MaintenanceWindowStartJob struct {
	Engines  map[string]*database.Engine
	Trade    backup.TradeRepository
	Stations backup.StationsRepository
	Horizons backup.RetentionHorizons
	Backup   *backup.Runner
	Lock     *ingest.WriteLock
	TempDir  string
	Log      zerolog.Logger
}

// Name identifies the job for scheduler logging.
func (j *MaintenanceWindowStartJob) Name() string { return "maintenance_window_start" }

// Run sweeps expired trade rows, vacuums and analyzes every store, then
// performs an online backup, all under the write-lock.
func (j *MaintenanceWindowStartJob) Run() error {
	j.Lock.Set()
	defer j.Lock.Clear()

	if j.Trade != nil && j.Stations != nil {
		if err := backup.SweepRetention(j.Trade, j.Stations, j.Horizons, j.Log); err != nil {
			j.Log.Error().Err(err).Msg("maintenance window: retention sweep failed")
		}
	}

	for name, engine := range j.Engines {
		restore, err := engine.SetTempStoreOnDisk(j.TempDir)
		if err != nil {
			j.Log.Error().Err(err).Str("store", name).Msg("maintenance window: set temp store failed")
			continue
		}
		if err := engine.Vacuum(); err != nil {
			j.Log.Error().Err(err).Str("store", name).Msg("maintenance window: vacuum failed")
		}
		if err := engine.Analyze(); err != nil {
			j.Log.Error().Err(err).Str("store", name).Msg("maintenance window: analyze failed")
		}
		restore()
	}

	if _, err := j.Backup.Run(context.Background()); err != nil {
		j.Log.Error().Err(err).Msg("maintenance window: backup failed")
		return err
	}
	return nil
}

// MaintenanceWindowEndJob fires at the configured weekly window end
// (default same day, hour 9 UTC). It regenerates the per-commodity
// aggregate reports (spec.md §4.8) against the snapshot copies, opened
// read-only, like every other C8 generator (spec.md §4.6, §5).
type MaintenanceWindowEndJob struct {
	Snapshot *snapshot.Manager
	Writer   *stats.JSONWriter
	Log      zerolog.Logger
}

// Name identifies the job for scheduler logging.
func (j *MaintenanceWindowEndJob) Name() string { return "maintenance_window_end" }

// Run regenerates every per-commodity aggregate plus the combined
// commodities.json.
func (j *MaintenanceWindowEndJob) Run() error {
	if err := j.Snapshot.Refresh(); err != nil {
		j.Log.Warn().Err(err).Msg("snapshot refresh failed, retrying once")
		if err := j.Snapshot.Refresh(); err != nil {
			return fmt.Errorf("refresh snapshots (after retry): %w", err)
		}
	}

	conns, closeAll, err := j.Snapshot.OpenReadOnly()
	if err != nil {
		return fmt.Errorf("open snapshot connections: %w", err)
	}
	defer closeAll()

	aggregates, err := stats.GenerateAllCommodityAggregates(conns["trade"])
	if err != nil {
		return err
	}
	if err := j.Writer.Write("commodities", aggregates); err != nil {
		return err
	}
	j.Log.Info().Int("count", len(aggregates)).Msg("commodity aggregates regenerated")
	return nil
}
