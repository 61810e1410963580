package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/EDDataAPI/eddata-collector/internal/backup"
	"github.com/EDDataAPI/eddata-collector/internal/config"
	"github.com/EDDataAPI/eddata-collector/internal/database"
	"github.com/EDDataAPI/eddata-collector/internal/handlers"
	"github.com/EDDataAPI/eddata-collector/internal/ingest"
	"github.com/EDDataAPI/eddata-collector/internal/ingest/feed"
	"github.com/EDDataAPI/eddata-collector/internal/scheduler"
	"github.com/EDDataAPI/eddata-collector/internal/sector"
	"github.com/EDDataAPI/eddata-collector/internal/server"
	"github.com/EDDataAPI/eddata-collector/internal/snapshot"
	"github.com/EDDataAPI/eddata-collector/internal/statementcache"
	"github.com/EDDataAPI/eddata-collector/internal/stats"
	"github.com/EDDataAPI/eddata-collector/internal/stores/locations"
	"github.com/EDDataAPI/eddata-collector/internal/stores/stations"
	"github.com/EDDataAPI/eddata-collector/internal/stores/systems"
	"github.com/EDDataAPI/eddata-collector/internal/stores/trade"
	"github.com/EDDataAPI/eddata-collector/pkg/logger"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	logger.SetGlobalLogger(log)

	log.Info().Msg("starting eddata-collector")

	for _, dir := range []string{cfg.DataDir, cfg.CacheDir, cfg.BackupDir, cfg.DownloadsDir, cfg.SnapshotDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("failed to create directory")
		}
	}

	engines, err := openStores(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open stores")
	}
	defer closeEngines(engines, log)

	cache := statementcache.New()
	hasher := sector.New(cfg.SectorGridSizeLY, cfg.SectorHashLength)

	systemsRepo := systems.NewRepository(engines["systems"].Conn(), log)
	locationsRepo := locations.NewRepository(engines["locations"].Conn(), engines["locations"].Path(), cache, log)
	stationsRepo := stations.NewRepository(engines["stations"].Conn(), engines["stations"].Path(), cache, log)
	tradeRepo := trade.NewRepository(engines["trade"].Conn(), engines["trade"].Path(), cache, log)

	deps := &handlers.Deps{
		Systems:          systemsRepo,
		Locations:        locationsRepo,
		Stations:         stationsRepo,
		Trade:            tradeRepo,
		Sector:           hasher,
		OriginSystemName: cfg.OriginSystemName,
		ColonySystemName: cfg.ColonySystemName,
		Log:              log,
	}

	subscriber := feed.New(cfg.FeedURL, log)
	writeLock := ingest.NewWriteLock()
	spoolPath := fmt.Sprintf("%s/deadletter.spool", cfg.CacheDir)
	deadLetter := ingest.NewDeadLetterBuffer(spoolPath, log)
	dedup := ingest.NewDedupSet(cfg.DedupSoftCap)
	ingestor := ingest.New(subscriber, writeLock, deadLetter, dedup, deps, log)

	snapMgr := snapshot.New(cfg.SnapshotDir(), cfg.SnapshotFreshness, engines, log)
	if err := snapMgr.Refresh(); err != nil {
		log.Error().Err(err).Msg("initial snapshot refresh failed")
	}

	jsonWriter := stats.NewJSONWriter(cfg.CacheDir)
	backupRunner := backup.New(engines, cfg.BackupDir, log)

	if !backupRunner.HasRunBefore() && !cfg.SkipStartupMaintenance {
		log.Info().Msg("no prior backup found, performing an immediate backup before serving traffic")
		if _, err := backupRunner.Run(context.Background()); err != nil {
			log.Error().Err(err).Msg("startup backup failed")
		}
	}

	sched := scheduler.New(log)
	registerJobs(sched, cfg, engines, tradeRepo, stationsRepo, backupRunner, writeLock, snapMgr, jsonWriter, log)
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Log:                 log,
		Port:                cfg.Port,
		Version:             version,
		DefaultCacheControl: cfg.DefaultCacheControl,
		StartedAt:           time.Now(),
		Lock:                writeLock,
		Writer:              jsonWriter,
		ProcessedCount:      ingestor.ProcessedCount,
		DedupSize:           ingestor.DedupSize,
	})

	if err := subscriber.Start(); err != nil {
		log.Error().Err(err).Msg("feed subscriber failed to start")
	}

	ctx, cancel := context.WithCancel(context.Background())
	go ingestor.Run(ctx)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("control-surface server failed")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("eddata-collector started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()
	_ = subscriber.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("eddata-collector stopped")
}

func openStores(cfg *config.Config, log zerolog.Logger) (map[string]*database.Engine, error) {
	schemas := map[string]string{
		"systems":   systems.Schema,
		"locations": locations.Schema,
		"stations":  stations.Schema,
		"trade":     trade.Schema,
	}

	additive := map[string][]string{
		"stations": stations.AdditiveMigrations,
	}
	if !cfg.SkipExpensiveIndexes {
		additive["stations"] = append(additive["stations"], stations.DeferredIndexMigrations...)
		additive["trade"] = append(additive["trade"], trade.DeferredIndexMigrations...)
	} else {
		log.Info().Msg("skipping expensive index creation on startup")
	}

	engines := make(map[string]*database.Engine, len(schemas))
	for _, name := range snapshot.StoreNames {
		engine, err := database.Open(database.Config{
			Path: cfg.DBPath(name),
			Name: name,
		})
		if err != nil {
			closeEngines(engines, log)
			return nil, fmt.Errorf("open %s store: %w", name, err)
		}
		if err := engine.Migrate(schemas[name], additive[name]...); err != nil {
			closeEngines(engines, log)
			return nil, fmt.Errorf("migrate %s store: %w", name, err)
		}
		engines[name] = engine
	}
	return engines, nil
}

func closeEngines(engines map[string]*database.Engine, log zerolog.Logger) {
	for name, engine := range engines {
		if err := engine.Close(); err != nil {
			log.Warn().Err(err).Str("store", name).Msg("error closing store")
		}
	}
}

func registerJobs(
	sched *scheduler.Scheduler,
	cfg *config.Config,
	engines map[string]*database.Engine,
	tradeRepo *trade.Repository,
	stationsRepo *stations.Repository,
	backupRunner *backup.Runner,
	writeLock *ingest.WriteLock,
	snapMgr *snapshot.Manager,
	jsonWriter *stats.JSONWriter,
	log zerolog.Logger,
) {
	tempDir := os.TempDir()

	startJob := &scheduler.MaintenanceWindowStartJob{
		Engines:  engines,
		Trade:    tradeRepo,
		Stations: stationsRepo,
		Horizons: backup.RetentionHorizons{
			TradeDays:        cfg.RetentionTradeDays,
			RescueShipDays:   cfg.RetentionRescueShipDays,
			FleetCarrierDays: cfg.RetentionFleetCarrierDays,
		},
		Backup:  backupRunner,
		Lock:    writeLock,
		TempDir: tempDir,
		Log:     log,
	}
	startSchedule := fmt.Sprintf("0 0 %d * * %d", cfg.MaintenanceStartHour, int(cfg.MaintenanceDay))
	if err := sched.AddJob(startSchedule, startJob); err != nil {
		log.Error().Err(err).Msg("failed to register maintenance window start job")
	}

	endJob := &scheduler.MaintenanceWindowEndJob{
		Snapshot: snapMgr,
		Writer:   jsonWriter,
		Log:      log,
	}
	endSchedule := fmt.Sprintf("0 0 %d * * %d", cfg.MaintenanceEndHour, int(cfg.MaintenanceDay))
	if err := sched.AddJob(endSchedule, endJob); err != nil {
		log.Error().Err(err).Msg("failed to register maintenance window end job")
	}

	statsJob := &scheduler.StatsJob{
		Snapshot:            snapMgr,
		Writer:              jsonWriter,
		OriginSystemName:    cfg.OriginSystemName,
		ColonySystemName:    cfg.ColonySystemName,
		SkipRegionalReports: cfg.SkipRegionalReports,
		FreshnessThreshold:  cfg.SnapshotFreshness,
		Log:                 log,
	}
	if err := sched.AddJob("0 0 */6 * * *", statsJob); err != nil {
		log.Error().Err(err).Msg("failed to register stats job")
	}

	vacuumJob := &scheduler.WeeklyVacuumJob{
		TradeEngine: engines["trade"],
		Lock:        writeLock,
		TempDir:     tempDir,
		Log:         log,
	}
	vacuumSchedule := fmt.Sprintf("0 0 %d * * %d", cfg.WeeklyVacuumHour, int(cfg.WeeklyVacuumDay))
	if err := sched.AddJob(vacuumSchedule, vacuumJob); err != nil {
		log.Error().Err(err).Msg("failed to register weekly vacuum job")
	}
}
