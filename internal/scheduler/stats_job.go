package scheduler

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/EDDataAPI/eddata-collector/internal/snapshot"
	"github.com/EDDataAPI/eddata-collector/internal/stats"
	"github.com/EDDataAPI/eddata-collector/internal/stores/systems"
)

// defaultRegionalRadiusLY and defaultRegionalMinVolume are the regional
// report parameters spec.md §4.6 names as defaults.
const (
	defaultRegionalRadiusLY   = 500
	defaultRegionalMinVolume  = 1000
)

// StatsJob fires every 6 hours. It regenerates database totals, the
// ticker, and the regional reports, skipping the work when the
// snapshots backing it are still fresh and the cache is newer than the
// freshness threshold (spec.md §4.8).
type StatsJob struct {
	Snapshot                           *snapshot.Manager
	Writer                             *stats.JSONWriter
	OriginSystemName, ColonySystemName string
	SkipRegionalReports                bool
	FreshnessThreshold                 time.Duration
	Log                                zerolog.Logger
}

// Name identifies the job for scheduler logging.
func (j *StatsJob) Name() string { return "stats_job" }

// Run regenerates totals.json, ticker.json, and regional_<system>.json
// unless both the snapshots and the existing cache are still fresh. All
// queries run against the snapshot copies, opened read-only, never the
// live stores (spec.md §4.6, §5).
func (j *StatsJob) Run() error {
	if j.Snapshot.AreFresh() && j.cacheIsFresh() {
		j.Log.Debug().Msg("stats job skipped: snapshots and cache are both fresh")
		return nil
	}

	if err := j.refreshSnapshot(); err != nil {
		return err
	}

	conns, closeAll, err := j.Snapshot.OpenReadOnly()
	if err != nil {
		return fmt.Errorf("open snapshot connections: %w", err)
	}
	defer closeAll()

	totals, err := stats.GenerateTotals(conns["systems"], conns["locations"], conns["stations"], conns["trade"])
	if err != nil {
		return fmt.Errorf("generate totals: %w", err)
	}
	if err := j.Writer.Write("totals", totals); err != nil {
		return err
	}

	ticker, err := stats.GenerateTicker(conns["trade"])
	if err != nil {
		return fmt.Errorf("generate ticker: %w", err)
	}
	if err := j.Writer.Write("ticker", ticker); err != nil {
		return err
	}

	if !j.SkipRegionalReports {
		snapSystems := systems.NewRepository(conns["systems"], j.Log)
		for _, name := range []string{j.OriginSystemName, j.ColonySystemName} {
			if err := j.generateRegional(snapSystems, conns["stations"], conns["trade"], name); err != nil {
				j.Log.Error().Err(err).Str("system", name).Msg("regional report generation failed")
			}
		}
	}

	j.Log.Info().Msg("combined stats regenerated")
	return nil
}

// refreshSnapshot refreshes the snapshot copies, retrying once on failure
// before aborting this cycle (spec.md §7 "stats generators retry once,
// else abort this cycle").
func (j *StatsJob) refreshSnapshot() error {
	err := j.Snapshot.Refresh()
	if err == nil {
		return nil
	}
	j.Log.Warn().Err(err).Msg("snapshot refresh failed, retrying once")
	if err := j.Snapshot.Refresh(); err != nil {
		return fmt.Errorf("refresh snapshots (after retry): %w", err)
	}
	return nil
}

func (j *StatsJob) generateRegional(snapSystems *systems.Repository, stationsDB, tradeDB *sql.DB, referenceSystem string) error {
	sys, err := snapSystems.GetByName(referenceSystem)
	if err != nil {
		return fmt.Errorf("look up reference system %s: %w", referenceSystem, err)
	}

	var x, y, z float64
	found := sys != nil
	if found {
		x, y, z = sys.SystemX, sys.SystemY, sys.SystemZ
	}

	report, err := stats.GenerateRegionalReport(stationsDB, tradeDB, referenceSystem, x, y, z,
		defaultRegionalRadiusLY, defaultRegionalMinVolume, found, j.Log)
	if err != nil {
		return err
	}
	if report == nil {
		return nil
	}
	return j.Writer.Write("regional_"+referenceSystem, report)
}

// cacheIsFresh reports whether the existing totals/ticker cache files are
// newer than FreshnessThreshold.
func (j *StatsJob) cacheIsFresh() bool {
	if j.FreshnessThreshold <= 0 {
		return false
	}
	newest := j.Writer.NewestModTime("totals", "ticker")
	if newest == 0 {
		return false
	}
	return time.Since(time.Unix(newest, 0)) < j.FreshnessThreshold
}
