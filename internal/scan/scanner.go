package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/franz/mp3-organizer/internal/meta"
	"github.com/franz/mp3-organizer/internal/report"
	"github.com/franz/mp3-organizer/internal/store"
	"github.com/franz/mp3-organizer/internal/util"
	"github.com/schollz/progressbar/v3"
)

// DefaultExtensions are the file extensions cataloged when none are configured
var DefaultExtensions = []string{".mp3"}

// Scanner catalogs the MP3 files of a directory tree and their tags
type Scanner struct {
	store       *store.Store
	extensions  map[string]bool
	concurrency int
	force       bool
	logger      *report.EventLogger
	reader      meta.TagReader
}

// Config holds scanner configuration
type Config struct {
	Store       *store.Store
	Extensions  []string
	Concurrency int
	Force       bool // re-read files whose size and mtime are unchanged
	Logger      *report.EventLogger
	Reader      meta.TagReader
}

// New creates a new Scanner
func New(cfg *Config) *Scanner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Reader == nil {
		cfg.Reader = meta.FileTagReader{}
	}

	return &Scanner{
		store:       cfg.Store,
		extensions:  ExtensionSet(cfg.Extensions),
		concurrency: cfg.Concurrency,
		force:       cfg.Force,
		logger:      cfg.Logger,
		reader:      cfg.Reader,
	}
}

// ExtensionSet builds a lower-cased lookup of extensions, adding the leading
// dot when missing. An empty list yields DefaultExtensions.
func ExtensionSet(exts []string) map[string]bool {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	return set
}

// Result represents a scan result
type Result struct {
	FilesFound   int
	FilesNew     int
	FilesUpdated int
	FilesCached  int
	FilesPruned  int
	TagErrors    int
	Errors       []error
}

type outcome int

const (
	outcomeNew outcome = iota
	outcomeUpdated
	outcomeCached
)

// Scan walks root, reads the tags of every matching file and records them in
// the catalog. Files that disappeared from under root are pruned.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	// An unreachable root would otherwise look like an empty folder and prune everything
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", root, err)
	}

	util.InfoLog("Starting scan of: %s", root)

	result := &Result{}
	var resultMu sync.Mutex
	addError := func(err error) {
		resultMu.Lock()
		result.Errors = append(result.Errors, err)
		resultMu.Unlock()
	}

	filePaths := make(chan string, 100)
	seen := make(map[string]bool)
	var unreadable []string

	var filesFound atomic.Int64
	var filesNew atomic.Int64
	var filesUpdated atomic.Int64
	var filesCached atomic.Int64
	var tagErrors atomic.Int64

	var bar *progressbar.ProgressBar
	if util.ShowProgress() {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Scanning"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("files"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}

	var wg sync.WaitGroup
	for i := 0; i < s.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range filePaths {
				if ctx.Err() != nil {
					continue
				}

				out, tagErr, err := s.processFile(path)
				if bar != nil {
					bar.Add(1)
				}

				if err != nil {
					util.ErrorLog("Failed to process %s: %v", path, err)
					s.logger.LogError(report.EventScan, path, err)
					addError(err)
					continue
				}
				if tagErr {
					tagErrors.Add(1)
				}

				switch out {
				case outcomeNew:
					filesNew.Add(1)
				case outcomeUpdated:
					filesUpdated.Add(1)
				case outcomeCached:
					filesCached.Add(1)
				}
			}
		}()
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err != nil {
			util.WarnLog("Error accessing path %s: %v", path, err)
			addError(fmt.Errorf("access error: %s: %w", path, err))
			unreadable = append(unreadable, path)
			return nil
		}

		if d.IsDir() || !s.isMusicFile(path) {
			return nil
		}

		filesFound.Add(1)
		seen[path] = true
		select {
		case filePaths <- path:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	close(filePaths)
	wg.Wait()

	if bar != nil {
		bar.Finish()
	}

	result.FilesFound = int(filesFound.Load())
	result.FilesNew = int(filesNew.Load())
	result.FilesUpdated = int(filesUpdated.Load())
	result.FilesCached = int(filesCached.Load())
	result.TagErrors = int(tagErrors.Load())

	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			return result, walkErr
		}
		return result, fmt.Errorf("walk error: %w", walkErr)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	if err := s.keepUnreadable(seen, unreadable); err != nil {
		return result, err
	}

	pruned, err := s.store.PruneMissing(root, seen)
	if err != nil {
		return result, fmt.Errorf("failed to prune catalog: %w", err)
	}
	result.FilesPruned = pruned

	util.SuccessLog("Scan complete: %d files found, %d new, %d updated, %d cached, %d pruned, %d errors",
		result.FilesFound, result.FilesNew, result.FilesUpdated, result.FilesCached, result.FilesPruned, len(result.Errors))

	return result, nil
}

// keepUnreadable marks the cataloged files at or under each unreadable path as
// seen, so a folder that could not be listed this time is not pruned
func (s *Scanner) keepUnreadable(seen map[string]bool, unreadable []string) error {
	for _, path := range unreadable {
		seen[path] = true
		files, err := s.store.GetFilesUnder(path)
		if err != nil {
			return fmt.Errorf("failed to check catalog under %s: %w", path, err)
		}
		for _, f := range files {
			seen[f.Path] = true
		}
		if len(files) > 0 {
			util.WarnLog("Keeping %d cataloged files under unreadable %s", len(files), path)
		}
	}
	return nil
}

// processFile catalogs one file. tagErr reports that the file was cataloged
// but its tags could not be read.
func (s *Scanner) processFile(path string) (out outcome, tagErr bool, err error) {
	info, err := util.StatFile(path)
	if err != nil {
		return 0, false, err
	}

	existing, err := s.store.GetFileByPath(path)
	if err != nil {
		return 0, false, fmt.Errorf("failed to check existing file: %w", err)
	}

	if existing != nil && !s.force &&
		existing.SizeBytes == info.SizeBytes && existing.MtimeUnix == info.MtimeUnix {
		util.DebugLog("Unchanged since last scan: %s", path)
		s.logger.LogScan(path, info.SizeBytes, true)
		return outcomeCached, false, nil
	}

	file := &store.File{
		Path:      path,
		FileKey:   info.Key,
		SizeBytes: info.SizeBytes,
		MtimeUnix: info.MtimeUnix,
		Status:    store.StatusTagsOK,
	}

	tags, readErr := s.reader.ReadTags(path)
	if readErr != nil {
		util.WarnLog("Failed to read tags of %s: %v", path, readErr)
		s.logger.LogError(report.EventScan, path, readErr)
		file.Status = store.StatusTagError
		file.Error = readErr.Error()
		tags = nil
	}

	if err := s.store.SaveFileWithTags(file, tags); err != nil {
		return 0, false, err
	}

	s.logger.LogScan(path, info.SizeBytes, false)

	if existing != nil {
		return outcomeUpdated, readErr != nil, nil
	}
	util.DebugLog("Cataloged: %s", path)
	return outcomeNew, readErr != nil, nil
}

// Discover returns the sorted paths of matching files under root without
// touching the catalog
func (s *Scanner) Discover(ctx context.Context, root string) ([]string, error) {
	return DiscoverFiles(ctx, root, s.extensions)
}

// DiscoverFiles walks root and returns the sorted paths whose extension is in exts.
// Unreadable entries are logged and skipped.
func DiscoverFiles(ctx context.Context, root string, exts map[string]bool) ([]string, error) {
	var paths []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			util.WarnLog("Error accessing path %s: %v", path, err)
			return nil
		}
		if !d.IsDir() && exts[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)
	return paths, nil
}

func (s *Scanner) isMusicFile(path string) bool {
	return s.extensions[strings.ToLower(filepath.Ext(path))]
}

// GetSupportedExtensions returns the list of supported extensions
func (s *Scanner) GetSupportedExtensions() []string {
	exts := make([]string, 0, len(s.extensions))
	for ext := range s.extensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
