package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/franz/mp3-organizer/internal/store"
)

// SummaryReport represents a complete summary of the catalog
type SummaryReport struct {
	GeneratedAt time.Time

	// Catalog statistics
	FilesCataloged int
	TotalBytes     int64
	StatusCounts   map[string]int

	// Tag completeness
	Completeness store.TagCompleteness

	// Runs
	RecentRuns []*store.Run
	RuleUsage  []RuleCount

	// Details
	TopErrors    []ErrorSummary
	Unrecognized []string

	// Metadata
	DatabasePath string
	EventLogPath string
}

// RuleCount is how many files a parse rule has tagged
type RuleCount struct {
	Rule  string
	Count int
}

// ErrorSummary represents an error with its count
type ErrorSummary struct {
	Error string
	Count int
}

var reportStatuses = []string{
	store.StatusDiscovered,
	store.StatusTagsOK,
	store.StatusTagError,
	store.StatusApplied,
	store.StatusUnrecognized,
	store.StatusWriteError,
	store.StatusCleared,
}

// GenerateSummaryReport creates a summary report from the catalog
func GenerateSummaryReport(db *store.Store, eventLogPath string) (*SummaryReport, error) {
	report := &SummaryReport{
		GeneratedAt:  time.Now(),
		EventLogPath: eventLogPath,
		StatusCounts: make(map[string]int),
		TopErrors:    make([]ErrorSummary, 0),
		Unrecognized: make([]string, 0),
	}

	files, err := db.GetAllFiles()
	if err != nil {
		return nil, err
	}
	report.FilesCataloged = len(files)

	errorCounts := make(map[string]int)
	for _, f := range files {
		report.TotalBytes += f.SizeBytes
		report.StatusCounts[f.Status]++
		if f.Error != "" {
			errorCounts[f.Error]++
		}
		if f.Status == store.StatusUnrecognized && len(report.Unrecognized) < 20 {
			report.Unrecognized = append(report.Unrecognized, f.Path)
		}
	}
	report.TopErrors = topErrors(errorCounts, 10)

	completeness, err := db.GetTagCompleteness()
	if err != nil {
		return nil, err
	}
	report.Completeness = *completeness

	runs, err := db.ListRuns(10)
	if err != nil {
		return nil, err
	}
	report.RecentRuns = runs

	usage, err := db.CountRuleUsage()
	if err != nil {
		return nil, err
	}
	for rule, count := range usage {
		report.RuleUsage = append(report.RuleUsage, RuleCount{Rule: rule, Count: count})
	}
	sort.Slice(report.RuleUsage, func(i, j int) bool {
		if report.RuleUsage[i].Count != report.RuleUsage[j].Count {
			return report.RuleUsage[i].Count > report.RuleUsage[j].Count
		}
		return report.RuleUsage[i].Rule < report.RuleUsage[j].Rule
	})

	return report, nil
}

// topErrors returns the most common errors
func topErrors(counts map[string]int, limit int) []ErrorSummary {
	errors := make([]ErrorSummary, 0, len(counts))
	for err, count := range counts {
		errors = append(errors, ErrorSummary{Error: err, Count: count})
	}

	sort.Slice(errors, func(i, j int) bool {
		if errors[i].Count != errors[j].Count {
			return errors[i].Count > errors[j].Count
		}
		return errors[i].Error < errors[j].Error
	})

	if len(errors) > limit {
		errors = errors[:limit]
	}
	return errors
}

// WriteMarkdownReport writes the summary report as Markdown
func WriteMarkdownReport(report *SummaryReport, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(outputPath, []byte(RenderMarkdown(report)), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// RenderMarkdown formats the summary report as Markdown
func RenderMarkdown(report *SummaryReport) string {
	var md strings.Builder

	md.WriteString("# MP3 Organizer - Summary Report\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))

	if report.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", report.DatabasePath))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}

	md.WriteString("---\n\n")

	// Overview
	md.WriteString("## 📊 Catalog\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Files Cataloged | %s |\n", humanize.Comma(int64(report.FilesCataloged))))
	md.WriteString(fmt.Sprintf("| Total Size | %s |\n", humanize.Bytes(uint64(report.TotalBytes))))
	for _, status := range reportStatuses {
		if n := report.StatusCounts[status]; n > 0 {
			md.WriteString(fmt.Sprintf("| %s | %s |\n", statusLabel(status), humanize.Comma(int64(n))))
		}
	}
	md.WriteString("\n")

	// Completeness
	c := report.Completeness
	if c.Total > 0 {
		md.WriteString("## 🏷️ Tag Completeness\n\n")
		md.WriteString("| Field | Missing | Complete |\n")
		md.WriteString("|-------|---------|----------|\n")
		writeCompleteness(&md, "Title", c.MissingTitle, c.Total)
		writeCompleteness(&md, "Artist", c.MissingArtist, c.Total)
		writeCompleteness(&md, "Album", c.MissingAlbum, c.Total)
		writeCompleteness(&md, "Track", c.MissingTrack, c.Total)
		md.WriteString("\n")
	}

	// Rules
	if len(report.RuleUsage) > 0 {
		md.WriteString("## 🔍 Filename Rules\n\n")
		md.WriteString("| Rule | Files Tagged |\n")
		md.WriteString("|------|--------------|\n")
		for _, r := range report.RuleUsage {
			md.WriteString(fmt.Sprintf("| %s | %s |\n", r.Rule, humanize.Comma(int64(r.Count))))
		}
		md.WriteString("\n")
	}

	// Runs
	if len(report.RecentRuns) > 0 {
		md.WriteString("## ⚡ Recent Runs\n\n")
		md.WriteString("| Started | Kind | Root | Succeeded | Skipped | Failed |\n")
		md.WriteString("|---------|------|------|-----------|---------|--------|\n")
		for _, run := range report.RecentRuns {
			kind := run.Kind
			if run.DryRun {
				kind += " (dry run)"
			}
			md.WriteString(fmt.Sprintf("| %s | %s | `%s` | %d | %d | %d |\n",
				humanize.Time(run.StartedAt), kind, truncatePath(run.Root, 40),
				run.Succeeded, run.Skipped, run.Failed))
		}
		md.WriteString("\n")
	}

	// Unrecognized
	if len(report.Unrecognized) > 0 {
		md.WriteString("## ❓ Unrecognized Filenames\n\n")
		md.WriteString("*These names matched none of the filename rules*\n\n")
		for _, path := range report.Unrecognized {
			md.WriteString(fmt.Sprintf("- `%s`\n", truncatePath(path, 80)))
		}
		md.WriteString("\n")
	}

	// Errors
	if len(report.TopErrors) > 0 {
		md.WriteString("## ⚠️ Top Errors\n\n")
		md.WriteString("| Count | Error |\n")
		md.WriteString("|-------|-------|\n")
		for _, err := range report.TopErrors {
			md.WriteString(fmt.Sprintf("| %d | %s |\n", err.Count, err.Error))
		}
		md.WriteString("\n")
	}

	md.WriteString("---\n\n")
	md.WriteString("*Generated by morg - MP3 Organizer*\n")

	return md.String()
}

func writeCompleteness(md *strings.Builder, field string, missing, total int) {
	pct := float64(total-missing) / float64(total) * 100
	md.WriteString(fmt.Sprintf("| %s | %d | %.1f%% |\n", field, missing, pct))
}

func statusLabel(status string) string {
	switch status {
	case store.StatusDiscovered:
		return "Discovered"
	case store.StatusTagsOK:
		return "Tags Read"
	case store.StatusTagError:
		return "Tag Read Errors"
	case store.StatusApplied:
		return "Tagged From Filename"
	case store.StatusUnrecognized:
		return "Unrecognized"
	case store.StatusWriteError:
		return "Write Errors"
	case store.StatusCleared:
		return "Cleared"
	}
	return status
}

// truncatePath truncates a file path to a maximum length
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	// Truncate from the middle, keeping start and end
	start := maxLen/2 - 2
	end := len(path) - (maxLen/2 - 2)
	return path[:start] + "..." + path[end:]
}
