package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/franz/mp3-organizer/internal/scan"
	"github.com/franz/mp3-organizer/internal/store"
	"github.com/franz/mp3-organizer/internal/util"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor [dir]",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure morg can operate correctly.

This command checks:
- SQLite version
- Catalog accessibility and integrity
- Music folder readability and writability (tags are rewritten in place)
- Network shares under the music folder and the catalog
- Event log directory
- Disk space on the music folder

Use this command to troubleshoot issues before running apply or clear.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	util.InfoLog("=== morg doctor - System Diagnostics ===")
	util.InfoLog("")

	results := []checkResult{}

	results = append(results, checkSQLite())
	dbPath := GetConfigString("db", defaultDBPath)
	results = append(results, checkDatabase(dbPath))
	results = append(results, checkCatalogFilesystem(dbPath))

	if len(args) == 1 {
		results = append(results, checkMusicFolder(args[0]))
		results = append(results, checkMusicFilesystem(args[0]))
		results = append(results, checkDiskSpace(args[0], "music folder"))
	}

	if dir := GetConfigString("events-dir", ""); dir != "" {
		results = append(results, checkEventsDirectory(dir))
	}

	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("❌ Some critical checks failed. Please resolve errors before running morg.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("⚠️  Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("✅ All checks passed!")
	}

	return nil
}

// checkSQLite verifies SQLite version
func checkSQLite() checkResult {
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}

	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkDatabase verifies catalog accessibility and integrity
func checkDatabase(dbPath string) checkResult {
	if dbPath == "" {
		return checkResult{
			name:    "Catalog",
			warning: true,
			message: "no database path specified (use --db flag or config)",
		}
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Catalog",
				message: fmt.Sprintf("%s (will be created on first scan)", dbPath),
			}
		}
		return checkResult{
			name:    "Catalog",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", dbPath, err),
		}
	}

	if !info.Mode().IsRegular() {
		return checkResult{
			name:    "Catalog",
			error:   true,
			message: fmt.Sprintf("%s is not a regular file", dbPath),
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return checkResult{
			name:    "Catalog",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", dbPath, err),
		}
	}
	defer db.Close()

	if err := db.CheckIntegrity(); err != nil {
		return checkResult{
			name:    "Catalog",
			error:   true,
			message: fmt.Sprintf("integrity check failed: %v", err),
		}
	}

	fileCount, _ := db.CountFiles()
	journal, _ := db.JournalMode()

	return checkResult{
		name:    "Catalog",
		message: fmt.Sprintf("%s (%s, %d files, journal %s)", dbPath, humanize.Bytes(uint64(info.Size())), fileCount, journal),
	}
}

// checkMusicFolder verifies the folder can be listed and written, since tags
// are rewritten in place
func checkMusicFolder(path string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		return checkResult{
			name:    "Music folder",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}

	if !info.IsDir() {
		return checkResult{
			name:    "Music folder",
			error:   true,
			message: fmt.Sprintf("%s is not a directory", path),
		}
	}

	if _, err := os.ReadDir(path); err != nil {
		return checkResult{
			name:    "Music folder",
			error:   true,
			message: fmt.Sprintf("cannot read %s: %v", path, err),
		}
	}

	files, err := scan.DiscoverFiles(context.Background(), path, scan.ExtensionSet(GetConfigStringSlice("extensions")))
	if err != nil {
		return checkResult{
			name:    "Music folder",
			error:   true,
			message: fmt.Sprintf("cannot walk %s: %v", path, err),
		}
	}

	testFile := filepath.Join(path, ".morg_write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return checkResult{
			name:    "Music folder",
			warning: true,
			message: fmt.Sprintf("%s (%d MP3 files, read-only: tags cannot be written)", path, len(files)),
		}
	}
	f.Close()
	os.Remove(testFile)

	if len(files) == 0 {
		return checkResult{
			name:    "Music folder",
			warning: true,
			message: fmt.Sprintf("%s (no MP3 files found)", path),
		}
	}

	return checkResult{
		name:    "Music folder",
		message: fmt.Sprintf("%s (%d MP3 files, writable)", path, len(files)),
	}
}

// checkMusicFilesystem reports whether the music folder is on a network share
// and the worker and retry settings that apply there
func checkMusicFilesystem(path string) checkResult {
	if _, err := util.DetectNetworkFilesystem(path); err != nil {
		return checkResult{
			name:    "Music filesystem",
			warning: true,
			message: fmt.Sprintf("cannot determine filesystem: %v", err),
		}
	}

	tuning := util.TuneForPath(path, nasModeOverride(), GetConfigInt("concurrency", defaultConcurrency))
	return checkResult{
		name:    "Music filesystem",
		message: tuning.String(),
	}
}

// checkCatalogFilesystem warns when the catalog lives on a network share
func checkCatalogFilesystem(dbPath string) checkResult {
	if dbPath == "" {
		return checkResult{name: "Catalog filesystem", warning: true, message: "no database path specified"}
	}

	info, err := util.DetectNetworkFilesystem(filepath.Dir(dbPath))
	if err != nil {
		return checkResult{
			name:    "Catalog filesystem",
			warning: true,
			message: fmt.Sprintf("cannot determine filesystem: %v", err),
		}
	}

	if info.IsNetwork {
		return checkResult{
			name:    "Catalog filesystem",
			warning: true,
			message: fmt.Sprintf("network share (%s at %s); WAL is disabled, a local disk is recommended", info.Protocol, info.MountPath),
		}
	}

	return checkResult{
		name:    "Catalog filesystem",
		message: "local",
	}
}

// checkEventsDirectory verifies the event log directory can be created
func checkEventsDirectory(path string) checkResult {
	if err := os.MkdirAll(path, 0755); err != nil {
		return checkResult{
			name:    "Event logs",
			warning: true,
			message: fmt.Sprintf("cannot create %s: %v (event logging will be disabled)", path, err),
		}
	}
	return checkResult{
		name:    "Event logs",
		message: path,
	}
}

// checkDiskSpace verifies available disk space
func checkDiskSpace(path string, label string) checkResult {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return checkResult{
			name:    fmt.Sprintf("Disk space (%s)", label),
			warning: true,
			message: fmt.Sprintf("cannot determine disk space: %v", err),
		}
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	totalBytes := stat.Blocks * uint64(stat.Bsize)
	usedBytes := totalBytes - (stat.Bfree * uint64(stat.Bsize))

	usedPercent := 0.0
	if totalBytes > 0 {
		usedPercent = float64(usedBytes) / float64(totalBytes) * 100
	}

	// Rewriting a tag needs room for a temporary copy of the file
	warning := false
	warningMsg := ""
	if availBytes < 100*humanize.MByte {
		warning = true
		warningMsg = " (low space!)"
	} else if usedPercent > 98 {
		warning = true
		warningMsg = " (>98% used)"
	}

	return checkResult{
		name:    fmt.Sprintf("Disk space (%s)", label),
		warning: warning,
		message: fmt.Sprintf("%s available%s", humanize.Bytes(availBytes), warningMsg),
	}
}
