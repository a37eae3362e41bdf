package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/franz/mp3-organizer/internal/store"
	"github.com/franz/mp3-organizer/internal/util"
)

func TestCheckSQLite(t *testing.T) {
	result := checkSQLite()

	if result.error {
		t.Errorf("SQLite check failed: %s", result.message)
	}

	if result.message == "" {
		t.Error("expected version information in message")
	}
}

func TestCheckDatabase_NonExistent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nonexistent.db")

	result := checkDatabase(dbPath)

	// Should not error - database will be created on first run
	if result.error {
		t.Errorf("non-existent database check should not error: %s", result.message)
	}

	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Error("the check should not create the database")
	}
}

func TestCheckDatabase_Existing(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	file := &store.File{
		Path:      "/test/path.mp3",
		FileKey:   "test-key",
		SizeBytes: 1024,
		Status:    store.StatusTagsOK,
	}
	if err := db.UpsertFile(file); err != nil {
		t.Fatalf("failed to insert test file: %v", err)
	}
	db.Close()

	result := checkDatabase(dbPath)

	if result.error {
		t.Errorf("database check failed: %s", result.message)
	}

	if result.message == "" {
		t.Error("expected message with database info")
	}
}

func TestCheckDatabase_NotAFile(t *testing.T) {
	result := checkDatabase(t.TempDir())

	if !result.error {
		t.Error("expected error when the database path is a directory")
	}
}

func TestCheckDatabase_Empty(t *testing.T) {
	result := checkDatabase("")

	if !result.warning {
		t.Error("expected warning for empty database path")
	}
}

func TestCheckMusicFolder(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "01 - Song - Band.mp3"), []byte("data"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	result := checkMusicFolder(dir)

	if result.error || result.warning {
		t.Errorf("music folder check failed: %s", result.message)
	}
	if _, err := os.Stat(filepath.Join(dir, ".morg_write_test")); !os.IsNotExist(err) {
		t.Error("write test file was left behind")
	}
}

func TestCheckMusicFolder_Empty(t *testing.T) {
	result := checkMusicFolder(t.TempDir())

	if result.error {
		t.Errorf("empty folder should not error: %s", result.message)
	}
	if !result.warning {
		t.Error("expected warning for a folder without MP3 files")
	}
}

func TestCheckMusicFolder_NonExistent(t *testing.T) {
	result := checkMusicFolder("/nonexistent/path/that/does/not/exist")

	if !result.error {
		t.Error("expected error for non-existent directory")
	}
}

func TestCheckMusicFolder_File(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(filePath, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	result := checkMusicFolder(filePath)

	if !result.error {
		t.Error("expected error when path is a file, not a directory")
	}
}

func TestCheckMusicFilesystem(t *testing.T) {
	dir := t.TempDir()
	result := checkMusicFilesystem(dir)

	if result.error || result.warning {
		t.Errorf("filesystem check failed: %s", result.message)
	}
	if !util.IsNetworkPath(dir) && !strings.HasPrefix(result.message, "local filesystem") {
		t.Errorf("expected a local filesystem message, got %q", result.message)
	}

	if missing := checkMusicFilesystem("/nonexistent/path/that/does/not/exist"); !missing.warning {
		t.Error("expected warning for non-existent path")
	}
}

func TestCheckCatalogFilesystem(t *testing.T) {
	dir := t.TempDir()
	result := checkCatalogFilesystem(filepath.Join(dir, "morg-state.db"))

	if result.error {
		t.Errorf("catalog filesystem check failed: %s", result.message)
	}
	if result.warning != util.IsNetworkPath(dir) {
		t.Errorf("warning = %v, expected it only on a network share: %s", result.warning, result.message)
	}

	if empty := checkCatalogFilesystem(""); !empty.warning {
		t.Error("expected warning for empty database path")
	}
}

func TestFolderOf(t *testing.T) {
	tests := []struct {
		args     []string
		paths    []string
		expected string
	}{
		{[]string{"/music"}, []string{"/music/a/1.mp3"}, "/music"},
		{nil, []string{"/music/a/1.mp3", "/music/b/2.mp3"}, "/music/a"},
		{nil, nil, ""},
	}

	for _, tt := range tests {
		if got := folderOf(tt.args, tt.paths); got != tt.expected {
			t.Errorf("folderOf(%v, %v) = %q, expected %q", tt.args, tt.paths, got, tt.expected)
		}
	}
}

func TestCheckEventsDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")

	result := checkEventsDirectory(dir)

	if result.error || result.warning {
		t.Errorf("events directory check failed: %s", result.message)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Error("expected directory to be created")
	}
}

func TestCheckDiskSpace(t *testing.T) {
	result := checkDiskSpace(t.TempDir(), "test")

	if result.error {
		t.Errorf("disk space check failed: %s", result.message)
	}

	if result.message == "" {
		t.Error("expected message with disk space info")
	}
}

func TestCheckDiskSpace_NonExistent(t *testing.T) {
	result := checkDiskSpace("/nonexistent/path", "test")

	if !result.warning {
		t.Error("expected warning for non-existent path")
	}
}
