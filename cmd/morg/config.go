package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/franz/mp3-organizer/internal/report"
	"github.com/franz/mp3-organizer/internal/store"
	"github.com/franz/mp3-organizer/internal/util"
	"github.com/spf13/viper"
)

const (
	defaultDBPath      = "morg-state.db"
	defaultConcurrency = 4
	defaultEventsDir   = "artifacts"
)

var envKeyReplacer = strings.NewReplacer("-", "_")

// GetConfigString retrieves a string config value with proper precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (MORG_*)
// 3. Config file
// 4. Default value
func GetConfigString(key string, defaultValue string) string {
	val := viper.GetString(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// GetConfigInt retrieves an int config value with proper precedence
func GetConfigInt(key string, defaultValue int) int {
	val := viper.GetInt(key)
	if val <= 0 {
		return defaultValue
	}
	return val
}

// GetConfigBool retrieves a bool config value
func GetConfigBool(key string) bool {
	return viper.GetBool(key)
}

// GetConfigStringSlice retrieves a string slice config value. A single
// comma-separated string, as set through the environment, is split.
func GetConfigStringSlice(key string) []string {
	vals := viper.GetStringSlice(key)
	var out []string
	for _, v := range vals {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// openStore opens the catalog named by the db key. A catalog on a network
// share is opened without WAL.
func openStore() (*store.Store, error) {
	dbPath := GetConfigString("db", defaultDBPath)
	util.DebugLog("Opening database: %s", dbPath)

	opts := &store.OpenOptions{}
	if info, err := util.DetectNetworkFilesystem(filepath.Dir(dbPath)); err == nil && info.IsNetwork {
		opts.NetworkSafe = true
		util.WarnLog("Catalog is on a network share (%s); a local disk is faster and safer", info.Protocol)
	}

	db, err := store.OpenWithOptions(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// nasModeOverride returns the nas-mode setting when it was given explicitly
func nasModeOverride() *bool {
	if !viper.IsSet("nas-mode") {
		return nil
	}
	v := viper.GetBool("nas-mode")
	return &v
}

// tuneForFolder picks worker count and write retries for the music folder at path
func tuneForFolder(path string) *util.NASSettings {
	return util.TuneForPath(path, nasModeOverride(), GetConfigInt("concurrency", defaultConcurrency))
}

// openEventLogger creates the JSONL audit log, falling back to a null logger
// when it is disabled or cannot be created
func openEventLogger() *report.EventLogger {
	dir := viper.GetString("events-dir")
	if dir == "" {
		return report.NullLogger()
	}

	logLevel := report.LevelInfo
	if GetConfigBool("quiet") {
		logLevel = report.LevelWarning
	} else if GetConfigBool("verbose") {
		logLevel = report.LevelDebug
	}

	logger, err := report.NewEventLogger(dir, logLevel)
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		return report.NullLogger()
	}

	util.DebugLog("Event log: %s", logger.Path())
	return logger
}
