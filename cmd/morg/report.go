package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/franz/mp3-organizer/internal/report"
	"github.com/franz/mp3-organizer/internal/store"
	"github.com/franz/mp3-organizer/internal/util"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a summary report of the catalog",
	Long: `Generate a summary report in Markdown format.

The report includes:
- Catalog size and file statuses
- Tag completeness (files missing title, artist, album or track)
- Which filename layouts tagged how many files
- Recent apply, clear and edit runs
- Unrecognized filenames and the most common errors

The report is saved to artifacts/reports/<timestamp>/summary.md`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("out", "", "Output directory for report (default: artifacts/reports/<timestamp>)")
	reportCmd.Flags().String("event-log", "", "Path to event log file to reference (optional)")
}

func runReport(cmd *cobra.Command, args []string) error {
	dbPath := GetConfigString("db", defaultDBPath)

	util.InfoLog("=== Generating Summary Report ===")
	util.InfoLog("Database: %s", dbPath)

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	eventLogPath, _ := cmd.Flags().GetString("event-log")

	summaryReport, err := report.GenerateSummaryReport(db, eventLogPath)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	summaryReport.DatabasePath = dbPath

	outputDir, _ := cmd.Flags().GetString("out")
	if outputDir == "" {
		timestamp := time.Now().Format("20060102-150405")
		outputDir = filepath.Join(GetConfigString("events-dir", defaultEventsDir), "reports", timestamp)
	}
	outputPath := filepath.Join(outputDir, "summary.md")

	util.InfoLog("Writing report to: %s", outputPath)
	if err := report.WriteMarkdownReport(summaryReport, outputPath); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	util.SuccessLog("Report generated successfully!")
	util.InfoLog("")
	util.InfoLog("Summary:")
	util.InfoLog("  Files cataloged: %s (%s)",
		humanize.Comma(int64(summaryReport.FilesCataloged)),
		humanize.Bytes(uint64(summaryReport.TotalBytes)))
	c := summaryReport.Completeness
	if c.Total > 0 {
		util.InfoLog("  Missing title/artist/album: %d/%d/%d", c.MissingTitle, c.MissingArtist, c.MissingAlbum)
	}
	if n := summaryReport.StatusCounts[store.StatusUnrecognized]; n > 0 {
		util.WarnLog("  Unrecognized filenames: %d", n)
	}
	if len(summaryReport.TopErrors) > 0 {
		util.WarnLog("  Distinct errors: %d", len(summaryReport.TopErrors))
	}

	return nil
}
