package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/franz/mp3-organizer/internal/scan"
	"github.com/franz/mp3-organizer/internal/store"
	"github.com/franz/mp3-organizer/internal/util"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "Catalog the MP3 files of a folder and their tags",
	Long: `Scan a folder tree for MP3 files and record each file and its current
ID3 tags in the catalog.

Files whose size and modification time are unchanged since the last scan
are not read again unless --force is given. Files that disappeared from
the folder are removed from the catalog.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Bool("force", false, "Re-read tags of unchanged files")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	source := args[0]
	if _, err := os.Stat(source); os.IsNotExist(err) {
		return fmt.Errorf("source directory does not exist: %s", source)
	}

	force, _ := cmd.Flags().GetBool("force")
	tuning := tuneForFolder(source)

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	logger := openEventLogger()
	defer logger.Close()

	util.InfoLog("=== Scanning %s ===", source)

	scanner := scan.New(&scan.Config{
		Store:       db,
		Extensions:  GetConfigStringSlice("extensions"),
		Concurrency: tuning.Concurrency,
		Force:       force,
		Logger:      logger,
	})

	util.InfoLog("Extensions: %s", strings.Join(scanner.GetSupportedExtensions(), ", "))
	util.InfoLog("Concurrency: %d", tuning.Concurrency)

	startTime := time.Now()

	result, err := scanner.Scan(ctx, source)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	util.SuccessLog("Scan complete in %v", time.Since(startTime).Round(time.Millisecond))
	util.InfoLog("  Files found: %d", result.FilesFound)
	util.InfoLog("  New: %d", result.FilesNew)
	util.InfoLog("  Updated: %d", result.FilesUpdated)
	util.InfoLog("  Unchanged: %d", result.FilesCached)
	if result.FilesPruned > 0 {
		util.InfoLog("  Removed from catalog: %d", result.FilesPruned)
	}
	if result.TagErrors > 0 {
		util.WarnLog("  Unreadable tags: %d", result.TagErrors)
	}
	if len(result.Errors) > 0 {
		util.WarnLog("  Errors: %d", len(result.Errors))
		for _, e := range result.Errors {
			util.DebugLog("    %v", e)
		}
	}

	total, _ := db.CountFiles()
	completeness, err := db.GetTagCompleteness()
	if err == nil && total > 0 {
		util.InfoLog("")
		util.InfoLog("Catalog: %d files", total)
		util.InfoLog("  Missing title: %d", completeness.MissingTitle)
		util.InfoLog("  Missing artist: %d", completeness.MissingArtist)
		util.InfoLog("  Missing album: %d", completeness.MissingAlbum)
	}

	if applied, _ := db.CountFilesByStatus(store.StatusApplied); applied < total {
		util.InfoLog("")
		util.InfoLog("Next step: morg apply --dry-run")
	}

	return nil
}
