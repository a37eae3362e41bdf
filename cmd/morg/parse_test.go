package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/franz/mp3-organizer/internal/store"
)

func TestPrintParse(t *testing.T) {
	tests := []struct {
		name     string
		expected []string
		absent   []string
	}{
		{
			name: "/music/Forró/03a - MUSICA - ARTISTA.mp3",
			expected: []string{
				"03a - MUSICA - ARTISTA.mp3",
				"Rule:   track-title-artist",
				"Track:  03a",
				"Title:  MUSICA",
				"Artist: ARTISTA",
				"Album:  Forró",
			},
		},
		{
			name: "40- Footloose",
			expected: []string{
				"Rule:   track-title",
				"Track:  40",
				"Title:  Footloose",
				"Artist: (empty)",
			},
			absent: []string{"Album:"},
		},
		{
			name:     "Intro.mp3",
			expected: []string{"Intro.mp3", "format not recognized"},
			absent:   []string{"Rule:"},
		},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		printParse(&buf, tt.name)
		out := buf.String()

		for _, want := range tt.expected {
			if !strings.Contains(out, want) {
				t.Errorf("printParse(%q) missing %q:\n%s", tt.name, want, out)
			}
		}
		for _, unwanted := range tt.absent {
			if strings.Contains(out, unwanted) {
				t.Errorf("printParse(%q) should not contain %q:\n%s", tt.name, unwanted, out)
			}
		}
	}
}

func sampleResults() []*store.FileWithTags {
	return []*store.FileWithTags{
		{
			File: &store.File{ID: 1, Path: "/music/Album/01 - One - Band.mp3", SizeBytes: 2048, Status: store.StatusApplied},
			Tags: &store.Tags{Title: "One", Artist: "Band", Album: "Album", TrackNumber: "01"},
		},
		{
			File: &store.File{ID: 2, Path: "/music/Album/intro.mp3", SizeBytes: 1024, Status: store.StatusUnrecognized},
			Tags: &store.Tags{},
		},
	}
}

func TestOutputCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := outputCSV(&buf, sampleResults()); err != nil {
		t.Fatalf("outputCSV failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header and 2 rows, got %d records", len(records))
	}

	header := records[0]
	if header[0] != "path" || header[1] != "title" || header[len(header)-1] != "size_bytes" {
		t.Errorf("unexpected header: %v", header)
	}
	if records[1][1] != "One" || records[1][4] != "01" {
		t.Errorf("unexpected first row: %v", records[1])
	}
	if records[2][len(header)-2] != store.StatusUnrecognized {
		t.Errorf("unexpected status in second row: %v", records[2])
	}
}

func TestOutputJSONL(t *testing.T) {
	var buf bytes.Buffer
	if err := outputJSONL(&buf, sampleResults()); err != nil {
		t.Fatalf("outputJSONL failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &obj); err != nil {
		t.Fatalf("invalid JSON line: %v", err)
	}
	if obj["artist"] != "Band" || obj["tracknumber"] != "01" {
		t.Errorf("unexpected object: %v", obj)
	}
}

func TestOutputHuman(t *testing.T) {
	var buf bytes.Buffer
	if err := outputHuman(&buf, sampleResults(), &store.QueryOptions{Artist: "band"}); err != nil {
		t.Fatalf("outputHuman failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Found: 2 files", "Artist: band", "Track:    01", "Title:    (empty)", "Total Size: 3.1 kB"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestGetConfigStringSlice(t *testing.T) {
	t.Setenv("MORG_TEST_EXTS", ".mp3, .MP2,,")
	initConfig()

	got := GetConfigStringSlice("test-exts")
	if len(got) != 2 || got[0] != ".mp3" || got[1] != ".MP2" {
		t.Errorf("GetConfigStringSlice = %v", got)
	}
}
