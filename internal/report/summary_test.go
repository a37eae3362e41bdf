package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/franz/mp3-organizer/internal/store"
)

func setupTestData(t *testing.T, db *store.Store) {
	t.Helper()

	files := []struct {
		path   string
		status string
		errMsg string
		tags   *store.Tags
	}{
		{"/music/Album/01 - One - Band.mp3", store.StatusApplied, "", &store.Tags{Title: "One", Artist: "Band", Album: "Album", TrackNumber: "01"}},
		{"/music/Album/02 - Two - Band.mp3", store.StatusApplied, "", &store.Tags{Title: "Two", Artist: "Band", Album: "Album", TrackNumber: "02"}},
		{"/music/Album/Two.mp3", store.StatusTagsOK, "", &store.Tags{Title: "Two"}},
		{"/music/Album/(intro).mp3", store.StatusUnrecognized, "", nil},
		{"/music/Album/broken.mp3", store.StatusTagError, "failed to read tags", nil},
	}

	for _, f := range files {
		file := &store.File{
			Path:      f.path,
			FileKey:   "key-" + f.path,
			SizeBytes: 1000,
			MtimeUnix: time.Now().Unix(),
			Status:    f.status,
			Error:     f.errMsg,
		}
		if err := db.SaveFileWithTags(file, f.tags); err != nil {
			t.Fatalf("Failed to save %s: %v", f.path, err)
		}
	}

	run, err := db.StartRun(store.RunApply, "/music/Album", false)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	results := []*store.RunResult{
		{RunID: run.ID, Path: files[0].path, Outcome: store.OutcomeUpdated, Rule: "track-title-artist"},
		{RunID: run.ID, Path: files[1].path, Outcome: store.OutcomeUpdated, Rule: "track-title-artist"},
		{RunID: run.ID, Path: files[3].path, Outcome: store.OutcomeUnrecognized},
	}
	for _, r := range results {
		if err := db.AddRunResult(r); err != nil {
			t.Fatalf("AddRunResult failed: %v", err)
		}
	}
	run.Succeeded, run.Skipped = 2, 1
	if err := db.FinishRun(run); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}
}

func TestGenerateSummaryReport(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	setupTestData(t, db)

	report, err := GenerateSummaryReport(db, "test-events.jsonl")
	if err != nil {
		t.Fatalf("GenerateSummaryReport failed: %v", err)
	}

	if report.FilesCataloged != 5 {
		t.Errorf("Expected 5 files cataloged, got %d", report.FilesCataloged)
	}
	if report.TotalBytes != 5000 {
		t.Errorf("Expected 5000 bytes, got %d", report.TotalBytes)
	}
	if report.StatusCounts[store.StatusApplied] != 2 {
		t.Errorf("Expected 2 applied files, got %d", report.StatusCounts[store.StatusApplied])
	}
	if report.Completeness.MissingArtist != 3 || report.Completeness.MissingTitle != 2 {
		t.Errorf("Unexpected completeness: %+v", report.Completeness)
	}
	if len(report.RecentRuns) != 1 || report.RecentRuns[0].Succeeded != 2 {
		t.Errorf("Expected one run with 2 succeeded, got %+v", report.RecentRuns)
	}
	if len(report.RuleUsage) != 1 || report.RuleUsage[0] != (RuleCount{Rule: "track-title-artist", Count: 2}) {
		t.Errorf("Unexpected rule usage: %+v", report.RuleUsage)
	}
	if len(report.Unrecognized) != 1 || report.Unrecognized[0] != "/music/Album/(intro).mp3" {
		t.Errorf("Unexpected unrecognized list: %v", report.Unrecognized)
	}
	if len(report.TopErrors) != 1 || report.TopErrors[0].Error != "failed to read tags" {
		t.Errorf("Unexpected top errors: %+v", report.TopErrors)
	}
	if report.EventLogPath != "test-events.jsonl" {
		t.Errorf("Expected event log path 'test-events.jsonl', got '%s'", report.EventLogPath)
	}
	if report.GeneratedAt.IsZero() {
		t.Error("Expected GeneratedAt to be set")
	}
}

func TestGenerateSummaryReportEmpty(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	report, err := GenerateSummaryReport(db, "")
	if err != nil {
		t.Fatalf("GenerateSummaryReport failed: %v", err)
	}
	if report.FilesCataloged != 0 || len(report.RecentRuns) != 0 || len(report.RuleUsage) != 0 {
		t.Errorf("Expected an empty report, got %+v", report)
	}

	md := RenderMarkdown(report)
	if strings.Contains(md, "Tag Completeness") {
		t.Error("Empty catalog should not render a completeness table")
	}
}

func TestWriteMarkdownReport(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "reports", "summary.md")

	report := &SummaryReport{
		GeneratedAt:    time.Now(),
		FilesCataloged: 1200,
		TotalBytes:     500 * 1000 * 1000,
		StatusCounts: map[string]int{
			store.StatusApplied:      1100,
			store.StatusUnrecognized: 95,
			store.StatusWriteError:   5,
		},
		Completeness: store.TagCompleteness{Total: 1200, MissingTitle: 0, MissingArtist: 600},
		RecentRuns: []*store.Run{
			{Kind: store.RunApply, Root: "/music", DryRun: true, StartedAt: time.Now(), Succeeded: 1100, Skipped: 95, Failed: 5},
		},
		RuleUsage:    []RuleCount{{Rule: "track-title-artist", Count: 1100}},
		TopErrors:    []ErrorSummary{{Error: "permission denied", Count: 5}},
		Unrecognized: []string{"/music/Live/(encore).mp3"},
		DatabasePath: "/test/database.db",
		EventLogPath: "/test/events.jsonl",
	}

	if err := WriteMarkdownReport(report, outputPath); err != nil {
		t.Fatalf("WriteMarkdownReport failed: %v", err)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read report file: %v", err)
	}
	md := string(content)

	expected := []string{
		"# MP3 Organizer - Summary Report",
		"## 📊 Catalog",
		"| Files Cataloged | 1,200 |",
		"| Total Size | 500 MB |",
		"| Tagged From Filename | 1,100 |",
		"| Write Errors | 5 |",
		"## 🏷️ Tag Completeness",
		"| Artist | 600 | 50.0% |",
		"| Title | 0 | 100.0% |",
		"| track-title-artist | 1,100 |",
		"apply (dry run)",
		"`/music/Live/(encore).mp3`",
		"## ⚠️ Top Errors",
		"permission denied",
		"/test/database.db",
	}
	for _, want := range expected {
		if !strings.Contains(md, want) {
			t.Errorf("Report missing %q", want)
		}
	}

	if strings.Contains(md, "| Cleared |") {
		t.Error("Statuses with no files should be omitted")
	}
}

func TestTopErrors(t *testing.T) {
	counts := map[string]int{
		"failed to read tags": 3,
		"file not found":      2,
		"permission denied":   2,
		"disk full":           1,
	}

	errs := topErrors(counts, 3)
	if len(errs) != 3 {
		t.Fatalf("Expected 3 errors, got %d", len(errs))
	}
	expected := []string{"failed to read tags", "file not found", "permission denied"}
	for i, want := range expected {
		if errs[i].Error != want {
			t.Errorf("errs[%d] = %q, expected %q", i, errs[i].Error, want)
		}
	}
}

func TestTruncatePath(t *testing.T) {
	testCases := []struct {
		name   string
		path   string
		maxLen int
	}{
		{"Short path - no truncation", "/music/song.mp3", 50},
		{"Long path - truncate middle", "/very/long/path/to/some/music/collection/artist/album/song.mp3", 30},
		{"Exactly at limit", "/music/test.mp3", 16},
		{"Very long path", "/extremely/long/path/that/needs/significant/truncation/to/fit/within/limits/file.mp3", 40},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := truncatePath(tc.path, tc.maxLen)

			if len(result) > tc.maxLen {
				t.Errorf("Result length %d exceeds maxLen %d", len(result), tc.maxLen)
			}
			if len(tc.path) > tc.maxLen && !strings.Contains(result, "...") {
				t.Error("Expected truncated path to contain '...'")
			}
			if len(tc.path) <= tc.maxLen && result != tc.path {
				t.Errorf("Expected %s, got %s", tc.path, result)
			}
		})
	}
}
