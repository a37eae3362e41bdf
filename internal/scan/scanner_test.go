package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/franz/mp3-organizer/internal/store"
)

// fakeReader returns a title derived from the filename and counts calls
type fakeReader struct {
	calls atomic.Int64
	fail  map[string]bool
}

func (r *fakeReader) ReadTags(path string) (*store.Tags, error) {
	r.calls.Add(1)
	if r.fail[filepath.Base(path)] {
		return nil, errors.New("corrupt header")
	}
	return &store.Tags{Title: filepath.Base(path)}, nil
}

func createFiles(t *testing.T, paths ...string) {
	t.Helper()
	for _, path := range paths {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
	}
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestIsMusicFile(t *testing.T) {
	scanner := New(&Config{Extensions: []string{".mp3", "MP2"}})

	tests := []struct {
		path     string
		expected bool
	}{
		{"test.mp3", true},
		{"test.MP3", true},
		{"test.mp2", true},
		{"test.flac", false},
		{"test.txt", false},
		{"test", false},
		{".mp3", true},
	}

	for _, tt := range tests {
		if result := scanner.isMusicFile(tt.path); result != tt.expected {
			t.Errorf("isMusicFile(%s) = %v, expected %v", tt.path, result, tt.expected)
		}
	}
}

func TestExtensionSetDefaults(t *testing.T) {
	set := ExtensionSet(nil)
	if len(set) != 1 || !set[".mp3"] {
		t.Errorf("expected only .mp3 by default, got %v", set)
	}
}

func TestScannerWithRealFiles(t *testing.T) {
	tmpDir := t.TempDir()
	albumDir := filepath.Join(tmpDir, "Artist", "Album")

	createFiles(t,
		filepath.Join(albumDir, "01 - Track One - Band.mp3"),
		filepath.Join(albumDir, "02 - Track Two - Band.MP3"),
		filepath.Join(tmpDir, "Artist", "single.mp3"),
		filepath.Join(albumDir, "cover.jpg"),
		filepath.Join(tmpDir, "README.txt"),
	)

	db := openStore(t)
	reader := &fakeReader{}
	scanner := New(&Config{Store: db, Concurrency: 2, Reader: reader})

	result, err := scanner.Scan(context.Background(), tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if result.FilesFound != 3 || result.FilesNew != 3 {
		t.Errorf("Expected 3 files found and new, got %+v", result)
	}

	files, err := db.GetAllFiles()
	if err != nil {
		t.Fatalf("Failed to get files from database: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("Expected 3 files in database, got %d", len(files))
	}

	for _, f := range files {
		if f.Status != store.StatusTagsOK {
			t.Errorf("%s: expected status %s, got %s", f.Path, store.StatusTagsOK, f.Status)
		}
		tags, err := db.GetTags(f.ID)
		if err != nil || tags == nil {
			t.Fatalf("%s: expected tags row: %v", f.Path, err)
		}
		if tags.Title != filepath.Base(f.Path) {
			t.Errorf("%s: unexpected title %q", f.Path, tags.Title)
		}
	}
}

func TestScannerIdempotency(t *testing.T) {
	tmpDir := t.TempDir()
	createFiles(t, filepath.Join(tmpDir, "test.mp3"))

	db := openStore(t)
	reader := &fakeReader{}
	scanner := New(&Config{Store: db, Concurrency: 1, Reader: reader})

	ctx := context.Background()
	result1, err := scanner.Scan(ctx, tmpDir)
	if err != nil {
		t.Fatalf("First scan failed: %v", err)
	}
	result2, err := scanner.Scan(ctx, tmpDir)
	if err != nil {
		t.Fatalf("Second scan failed: %v", err)
	}

	if result1.FilesNew != 1 {
		t.Errorf("First scan: expected 1 new file, got %d", result1.FilesNew)
	}
	if result2.FilesNew != 0 || result2.FilesCached != 1 {
		t.Errorf("Second scan: expected 1 cached file, got %+v", result2)
	}
	if reader.calls.Load() != 1 {
		t.Errorf("Expected tags to be read once, got %d reads", reader.calls.Load())
	}

	forced := New(&Config{Store: db, Concurrency: 1, Reader: reader, Force: true})
	result3, err := forced.Scan(ctx, tmpDir)
	if err != nil {
		t.Fatalf("Forced scan failed: %v", err)
	}
	if result3.FilesUpdated != 1 {
		t.Errorf("Forced scan: expected 1 updated file, got %+v", result3)
	}

	files, err := db.GetAllFiles()
	if err != nil {
		t.Fatalf("Failed to get files: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("Expected 1 file in database after three scans, got %d", len(files))
	}
}

func TestScannerPrunesMissing(t *testing.T) {
	tmpDir := t.TempDir()
	keep := filepath.Join(tmpDir, "keep.mp3")
	gone := filepath.Join(tmpDir, "gone.mp3")
	createFiles(t, keep, gone)

	db := openStore(t)
	scanner := New(&Config{Store: db, Reader: &fakeReader{}})

	if _, err := scanner.Scan(context.Background(), tmpDir); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if err := os.Remove(gone); err != nil {
		t.Fatalf("remove: %v", err)
	}

	result, err := scanner.Scan(context.Background(), tmpDir)
	if err != nil {
		t.Fatalf("Rescan failed: %v", err)
	}
	if result.FilesPruned != 1 {
		t.Errorf("Expected 1 pruned file, got %d", result.FilesPruned)
	}

	f, _ := db.GetFileByPath(gone)
	if f != nil {
		t.Errorf("Expected %s to be removed from catalog", gone)
	}
}

func TestScannerKeepsUnreadableFolder(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}

	tmpDir := t.TempDir()
	locked := filepath.Join(tmpDir, "Locked")
	inside := filepath.Join(locked, "01 - A - B.mp3")
	createFiles(t, filepath.Join(tmpDir, "top.mp3"), inside)

	db := openStore(t)
	scanner := New(&Config{Store: db, Reader: &fakeReader{}})

	if _, err := scanner.Scan(context.Background(), tmpDir); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if err := os.Chmod(locked, 0); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	result, err := scanner.Scan(context.Background(), tmpDir)
	if err != nil {
		t.Fatalf("Rescan failed: %v", err)
	}
	if len(result.Errors) == 0 {
		t.Error("expected an access error for the locked folder")
	}
	if result.FilesPruned != 0 {
		t.Errorf("Expected nothing pruned, got %d", result.FilesPruned)
	}
	if f, _ := db.GetFileByPath(inside); f == nil {
		t.Errorf("Expected %s to stay in the catalog", inside)
	}
}

func TestKeepUnreadable(t *testing.T) {
	tmpDir := t.TempDir()
	sub := filepath.Join(tmpDir, "Sub")
	inside := filepath.Join(sub, "a.mp3")
	sibling := filepath.Join(tmpDir, "SubOther", "b.mp3")
	createFiles(t, inside, sibling)

	db := openStore(t)
	scanner := New(&Config{Store: db, Reader: &fakeReader{}})
	if _, err := scanner.Scan(context.Background(), tmpDir); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	seen := make(map[string]bool)
	if err := scanner.keepUnreadable(seen, []string{sub}); err != nil {
		t.Fatalf("keepUnreadable failed: %v", err)
	}
	if !seen[inside] {
		t.Errorf("Expected %s to be kept", inside)
	}
	if seen[sibling] {
		t.Errorf("Did not expect %s to be kept", sibling)
	}

	pruned, err := db.PruneMissing(tmpDir, seen)
	if err != nil {
		t.Fatalf("PruneMissing failed: %v", err)
	}
	if pruned != 1 {
		t.Errorf("Expected only the sibling to be pruned, got %d", pruned)
	}
}

func TestScannerTagErrors(t *testing.T) {
	tmpDir := t.TempDir()
	createFiles(t, filepath.Join(tmpDir, "good.mp3"), filepath.Join(tmpDir, "bad.mp3"))

	db := openStore(t)
	scanner := New(&Config{
		Store:  db,
		Reader: &fakeReader{fail: map[string]bool{"bad.mp3": true}},
	})

	result, err := scanner.Scan(context.Background(), tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if result.FilesNew != 2 || result.TagErrors != 1 {
		t.Errorf("Expected 2 new files with 1 tag error, got %+v", result)
	}

	bad, err := db.GetFileByPath(filepath.Join(tmpDir, "bad.mp3"))
	if err != nil || bad == nil {
		t.Fatalf("expected bad.mp3 in catalog: %v", err)
	}
	if bad.Status != store.StatusTagError || bad.Error == "" {
		t.Errorf("unexpected status for bad.mp3: %s (%s)", bad.Status, bad.Error)
	}
}

func TestScannerMissingRoot(t *testing.T) {
	db := openStore(t)
	scanner := New(&Config{Store: db, Reader: &fakeReader{}})

	if _, err := scanner.Scan(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestScannerCancelled(t *testing.T) {
	tmpDir := t.TempDir()
	createFiles(t, filepath.Join(tmpDir, "a.mp3"))

	db := openStore(t)
	scanner := New(&Config{Store: db, Reader: &fakeReader{}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := scanner.Scan(ctx, tmpDir); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDiscover(t *testing.T) {
	tmpDir := t.TempDir()
	createFiles(t,
		filepath.Join(tmpDir, "b", "02.mp3"),
		filepath.Join(tmpDir, "a", "01.mp3"),
		filepath.Join(tmpDir, "a", "notes.txt"),
	)

	scanner := New(&Config{})
	paths, err := scanner.Discover(context.Background(), tmpDir)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	expected := []string{
		filepath.Join(tmpDir, "a", "01.mp3"),
		filepath.Join(tmpDir, "b", "02.mp3"),
	}
	if len(paths) != len(expected) {
		t.Fatalf("expected %d paths, got %v", len(expected), paths)
	}
	for i := range expected {
		if paths[i] != expected[i] {
			t.Errorf("path %d = %s, expected %s", i, paths[i], expected[i])
		}
	}
}
