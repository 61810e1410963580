// Package config resolves the ingestion service's settings from the
// process environment and an optional config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting spec.md §6 names.
type Config struct {
	FeedURL string // upstream publish/subscribe endpoint

	Port int // control-surface listen port

	DataDir      string
	CacheDir     string
	BackupDir    string
	DownloadsDir string

	MaintenanceDay        time.Weekday // default Thursday (day 4, 0=Sunday)
	MaintenanceStartHour  int          // UTC hour, default 7
	MaintenanceEndHour    int          // UTC hour, default 9
	WeeklyVacuumDay       time.Weekday // default Sunday
	WeeklyVacuumHour      int          // default 3

	RetentionTradeDays        int // default 90
	RetentionRescueShipDays   int // default 7
	RetentionFleetCarrierDays int // default 90

	SectorGridSizeLY  float64 // default 100
	SectorHashLength  int     // hex chars, default 16

	SkipStartupMaintenance bool
	SkipRegionalReports    bool
	SkipExpensiveIndexes   bool

	DefaultCacheControl string

	LogLevel string
	DevMode  bool

	OriginSystemName string // designated origin system, default "Sol"
	ColonySystemName string // second reference system for regional reports, default "Colonia"

	SnapshotFreshness time.Duration // default 2h
	FrameDecodeDeadline time.Duration // default 5s
	DedupSoftCap        int           // default 50000

	MinGameVersionMajor int    // default 4
	CAPILivePrefix      string // "CAPI-Live-"
}

// Load reads configuration from the environment, optionally seeded by a
// config file (/etc/<name>.config, <name>.config next to the executable,
// or .env in the working directory).
func Load() (*Config, error) {
	loadConfigFile()

	dataDir := getEnv("DATA_DIR", "./data")

	cfg := &Config{
		FeedURL: getEnv("FEED_URL", "tcp://eddn.edcd.io:9500"),
		Port:    getEnvAsInt("PORT", 8500),

		DataDir:      dataDir,
		CacheDir:     getEnv("CACHE_DIR", filepath.Join(dataDir, "cache")),
		BackupDir:    getEnv("BACKUP_DIR", "./backup"),
		DownloadsDir: getEnv("DOWNLOADS_DIR", "./downloads"),

		MaintenanceDay:       time.Weekday(getEnvAsInt("MAINTENANCE_DAY", 4)),
		MaintenanceStartHour: getEnvAsInt("MAINTENANCE_START_HOUR", 7),
		MaintenanceEndHour:   getEnvAsInt("MAINTENANCE_END_HOUR", 9),
		WeeklyVacuumDay:      time.Weekday(getEnvAsInt("WEEKLY_VACUUM_DAY", 0)),
		WeeklyVacuumHour:     getEnvAsInt("WEEKLY_VACUUM_HOUR", 3),

		RetentionTradeDays:        getEnvAsInt("RETENTION_TRADE_DAYS", 90),
		RetentionRescueShipDays:   getEnvAsInt("RETENTION_RESCUE_SHIP_DAYS", 7),
		RetentionFleetCarrierDays: getEnvAsInt("RETENTION_FLEET_CARRIER_DAYS", 90),

		SectorGridSizeLY: getEnvAsFloat("SECTOR_GRID_SIZE_LY", 100),
		SectorHashLength: getEnvAsInt("SECTOR_HASH_LENGTH", 16),

		SkipStartupMaintenance: getEnvAsBool("SKIP_STARTUP_MAINTENANCE", false),
		SkipRegionalReports:    getEnvAsBool("SKIP_REGIONAL_REPORTS", false),
		SkipExpensiveIndexes:   getEnvAsBool("SKIP_EXPENSIVE_INDEXES", false),

		DefaultCacheControl: getEnv("DEFAULT_CACHE_CONTROL",
			"public, max-age=900, stale-while-revalidate=3600, stale-if-error=3600"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		OriginSystemName: getEnv("ORIGIN_SYSTEM_NAME", "Sol"),
		ColonySystemName: getEnv("COLONY_SYSTEM_NAME", "Colonia"),

		SnapshotFreshness:   time.Duration(getEnvAsInt("SNAPSHOT_FRESHNESS_MINUTES", 120)) * time.Minute,
		FrameDecodeDeadline: time.Duration(getEnvAsInt("FRAME_DECODE_DEADLINE_SECONDS", 5)) * time.Second,
		DedupSoftCap:        getEnvAsInt("DEDUP_SOFT_CAP", 50000),

		MinGameVersionMajor: getEnvAsInt("MIN_GAME_VERSION_MAJOR", 4),
		CAPILivePrefix:      getEnv("CAPI_LIVE_PREFIX", "CAPI-Live-"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks for required configuration.
func (c *Config) Validate() error {
	if c.FeedURL == "" {
		return fmt.Errorf("FEED_URL is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if c.Port <= 0 {
		return fmt.Errorf("PORT must be positive")
	}
	return nil
}

// DBPath returns the absolute path of one of the four store files.
func (c *Config) DBPath(name string) string {
	return filepath.Join(c.DataDir, name+".db")
}

// SnapshotDir returns the directory holding point-in-time copies.
func (c *Config) SnapshotDir() string {
	return filepath.Join(c.DataDir, ".snapshots")
}

// loadConfigFile loads the first config file found, trying
// /etc/<name>.config, then <name>.config next to the binary, then .env
// in the working directory.
func loadConfigFile() {
	candidates := []string{"/etc/eddata-collector.config"}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "eddata-collector.config"))
	}
	candidates = append(candidates, ".env")

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			_ = godotenv.Load(candidate)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
