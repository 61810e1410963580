package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/EDDataAPI/eddata-collector/internal/backup"
	"github.com/EDDataAPI/eddata-collector/internal/database"
	"github.com/EDDataAPI/eddata-collector/internal/ingest"
)

// WeeklyVacuumJob fires weekly (default Sunday 03:00 UTC). It rebuilds
// the trade database to reclaim deleted pages, holding the write-lock
// for the duration (spec.md §4.8, §4.7 "Vacuum").
type WeeklyVacuumJob struct {
	TradeEngine *database.Engine
	Lock        *ingest.WriteLock
	TempDir     string
	Log         zerolog.Logger
}

// Name identifies the job for scheduler logging.
func (j *WeeklyVacuumJob) Name() string { return "weekly_vacuum" }

// Run vacuums and re-analyzes the trade store under the write-lock.
func (j *WeeklyVacuumJob) Run() error {
	return backup.WeeklyVacuum(j.TradeEngine, j.Lock, j.TempDir, j.Log)
}
