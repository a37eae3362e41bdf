// Package tagger derives tags from filenames and writes them back to the files.
package tagger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/franz/mp3-organizer/internal/meta"
	"github.com/franz/mp3-organizer/internal/report"
	"github.com/franz/mp3-organizer/internal/store"
	"github.com/franz/mp3-organizer/internal/util"
	"github.com/schollz/progressbar/v3"
	"github.com/sourcegraph/conc/pool"
)

// Applier runs the bulk metadata operations over a set of files
type Applier struct {
	store       *store.Store
	reader      meta.TagReader
	writer      meta.TagWriter
	concurrency int
	dryRun      bool
	logger      *report.EventLogger
}

// Config holds applier configuration. Store may be nil, in which case nothing
// is cataloged and no run is recorded.
type Config struct {
	Store       *store.Store
	Reader      meta.TagReader
	Writer      meta.TagWriter
	Concurrency int
	DryRun      bool
	Logger      *report.EventLogger
}

// New creates a new Applier
func New(cfg *Config) *Applier {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Reader == nil {
		cfg.Reader = meta.FileTagReader{}
	}
	if cfg.Writer == nil {
		cfg.Writer = meta.NewFileTagWriter()
	}

	return &Applier{
		store:       cfg.Store,
		reader:      cfg.Reader,
		writer:      cfg.Writer,
		concurrency: cfg.Concurrency,
		dryRun:      cfg.DryRun,
		logger:      cfg.Logger,
	}
}

// Outcome is what happened to one file
type Outcome struct {
	Path   string
	Status string // one of the store.Outcome* values
	Parsed *meta.FilenameMeta
	Before *store.Tags
	After  *store.Tags
	Err    error
}

// Changed lists the fields that differ between Before and After
func (o *Outcome) Changed() []string {
	if o.Before == nil || o.After == nil {
		return nil
	}
	var fields []string
	for _, f := range store.TagFields {
		b, _ := o.Before.Get(f)
		a, _ := o.After.Get(f)
		if b != a {
			fields = append(fields, f)
		}
	}
	return fields
}

// Result summarizes a batch
type Result struct {
	RunID     string
	DryRun    bool
	Succeeded int
	Skipped   int
	Failed    int
	Duration  time.Duration
	Outcomes  []*Outcome
}

// Summary renders the counts the way the CLI reports them
func (r *Result) Summary() string {
	s := fmt.Sprintf("%d succeeded, %d skipped, %d failed", r.Succeeded, r.Skipped, r.Failed)
	if r.DryRun {
		s += " (dry run)"
	}
	return s
}

func (r *Result) add(o *Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case store.OutcomeUpdated, store.OutcomeCleared:
		r.Succeeded++
	case store.OutcomeUnrecognized:
		r.Skipped++
	default:
		r.Failed++
	}
}

// Merge returns current with the parsed filename fields laid over it. Only
// non-empty parsed values replace existing ones; album is set to the given
// folder name when it is not empty. current is not modified.
func Merge(current *store.Tags, parsed *meta.FilenameMeta, album string) *store.Tags {
	merged := current.Clone()
	if parsed == nil {
		return merged
	}

	if parsed.Title != "" {
		merged.Title = parsed.Title
	}
	if parsed.HasArtist() {
		merged.Artist = parsed.Artist
	}
	if parsed.HasTrack() {
		merged.TrackNumber = parsed.Track
	}
	if album = strings.TrimSpace(album); album != "" {
		merged.Album = album
	}
	return merged
}

// Apply derives tags from the filename of each path and writes them. Files
// whose names match no rule are skipped; per-file failures are counted and
// never stop the batch.
func (a *Applier) Apply(ctx context.Context, paths []string) (*Result, error) {
	return a.runBatch(ctx, store.RunApply, "Applying", paths, a.applyFile)
}

// ApplyOne applies a single file. The returned error is the file's failure, if any.
func (a *Applier) ApplyOne(ctx context.Context, path string) (*Outcome, error) {
	result, err := a.Apply(ctx, []string{path})
	if err != nil {
		return nil, err
	}
	if len(result.Outcomes) == 0 {
		return nil, ctx.Err()
	}
	out := result.Outcomes[0]
	return out, out.Err
}

// Clear removes every tag from each path
func (a *Applier) Clear(ctx context.Context, paths []string) (*Result, error) {
	return a.runBatch(ctx, store.RunClear, "Clearing", paths, a.clearFile)
}

type fileFunc func(ctx context.Context, runID, path string) *Outcome

func (a *Applier) runBatch(ctx context.Context, kind, label string, paths []string, fn fileFunc) (*Result, error) {
	start := time.Now()
	result := &Result{DryRun: a.dryRun}

	run, err := a.startRun(kind, paths)
	if err != nil {
		return nil, err
	}
	if run != nil {
		result.RunID = run.ID
	}

	var bar *progressbar.ProgressBar
	if util.ShowProgress() && len(paths) > 1 {
		bar = progressbar.NewOptions(len(paths),
			progressbar.OptionSetDescription(label),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	// Outcomes keep input order regardless of completion order
	outcomes := make([]*Outcome, len(paths))
	var mu sync.Mutex

	p := pool.New().WithContext(ctx).WithMaxGoroutines(a.concurrency)
	for i, path := range paths {
		i, path := i, path
		p.Go(func(ctx context.Context) error {
			if ctx.Err() != nil {
				return nil
			}
			out := fn(ctx, result.RunID, path)
			mu.Lock()
			outcomes[i] = out
			mu.Unlock()
			if bar != nil {
				bar.Add(1)
			}
			return nil
		})
	}
	p.Wait()

	if bar != nil {
		bar.Finish()
	}

	for _, out := range outcomes {
		if out != nil {
			result.add(out)
		}
	}
	result.Duration = time.Since(start)

	if run != nil {
		run.Succeeded = result.Succeeded
		run.Skipped = result.Skipped
		run.Failed = result.Failed
		if err := a.store.FinishRun(run); err != nil {
			util.WarnLog("Failed to record run: %v", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (a *Applier) startRun(kind string, paths []string) (*store.Run, error) {
	if a.store == nil {
		return nil, nil
	}
	run, err := a.store.StartRun(kind, commonDir(paths), a.dryRun)
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	return run, nil
}

func (a *Applier) applyFile(ctx context.Context, runID, path string) *Outcome {
	out := &Outcome{Path: path}

	parsed := meta.ParsePath(path)
	out.Parsed = parsed
	if parsed == nil {
		out.Status = store.OutcomeUnrecognized
		out.Err = util.ErrUnrecognized
		util.DebugLog("Skipped %s: %v", path, util.ErrUnrecognized)
		a.logger.LogSkip(runID, path, util.ErrUnrecognized.Error())
		if !a.dryRun {
			a.markStatus(path, store.StatusUnrecognized, "")
		}
		a.recordResult(runID, out)
		return out
	}

	a.logger.LogParse(path, parsed.Rule.String(), parsed.Track, parsed.Title, parsed.Artist)

	current, err := a.reader.ReadTags(path)
	if err != nil {
		return a.fail(runID, out, report.EventApply, fmt.Errorf("failed to read tags: %w", err))
	}
	out.Before = current
	out.After = Merge(current, parsed, meta.AlbumFromPath(path))

	if !a.dryRun {
		if err := a.writer.WriteTags(ctx, path, out.After); err != nil {
			a.markStatus(path, store.StatusWriteError, err.Error())
			return a.fail(runID, out, report.EventApply, err)
		}
		a.catalog(path, store.StatusApplied, out.After)
	}

	out.Status = store.OutcomeUpdated
	util.DebugLog("Applied %s via %s", path, parsed.Rule)
	a.logger.LogApply(runID, path, parsed.Rule.String(), a.dryRun, nil)
	a.recordResult(runID, out)
	return out
}

func (a *Applier) clearFile(ctx context.Context, runID, path string) *Outcome {
	out := &Outcome{Path: path, After: &store.Tags{}}

	if current, err := a.reader.ReadTags(path); err == nil {
		out.Before = current
	}

	if !a.dryRun {
		if err := a.writer.ClearTags(ctx, path); err != nil {
			a.markStatus(path, store.StatusWriteError, err.Error())
			return a.fail(runID, out, report.EventClear, err)
		}
		a.catalog(path, store.StatusCleared, &store.Tags{})
	}

	out.Status = store.OutcomeCleared
	a.logger.LogClear(runID, path, a.dryRun, nil)
	a.recordResult(runID, out)
	return out
}

// SetField changes one tag field of one file
func (a *Applier) SetField(ctx context.Context, path, field, value string) (*Outcome, error) {
	field = strings.ToLower(strings.TrimSpace(field))
	if !store.ValidField(field) {
		return nil, fmt.Errorf("%q (valid: %s): %w", field, strings.Join(store.TagFields, ", "), util.ErrInvalidField)
	}

	out := &Outcome{Path: path}
	current, err := a.reader.ReadTags(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}
	out.Before = current
	out.After = current.Clone()
	out.After.Set(field, value)

	before, _ := current.Get(field)

	if !a.dryRun {
		if err := a.writer.WriteTags(ctx, path, out.After); err != nil {
			a.logger.LogEdit(path, field, before, value, err)
			return nil, err
		}
		a.catalog(path, store.StatusTagsOK, out.After)
	}

	out.Status = store.OutcomeUpdated
	a.logger.LogEdit(path, field, before, value, nil)

	if a.store != nil {
		run, err := a.store.StartRun(store.RunEdit, filepath.Dir(path), a.dryRun)
		if err != nil {
			util.WarnLog("Failed to record edit of %s: %v", path, err)
			return out, nil
		}
		a.recordResult(run.ID, out)
		run.Succeeded = 1
		if err := a.store.FinishRun(run); err != nil {
			util.WarnLog("Failed to record run: %v", err)
		}
	}

	return out, nil
}

func (a *Applier) fail(runID string, out *Outcome, event report.EventType, err error) *Outcome {
	out.Status = store.OutcomeFailed
	out.Err = err
	util.ErrorLog("%s: %v", out.Path, err)
	a.logger.LogError(event, out.Path, err)
	a.recordResult(runID, out)
	return out
}

func (a *Applier) recordResult(runID string, out *Outcome) {
	if a.store == nil || runID == "" {
		return
	}

	r := &store.RunResult{RunID: runID, Path: out.Path, Outcome: out.Status}
	if out.Parsed != nil {
		r.Rule = out.Parsed.Rule.String()
	}
	if out.Err != nil {
		r.Detail = out.Err.Error()
	} else if changed := out.Changed(); len(changed) > 0 {
		r.Detail = strings.Join(changed, ",")
	}

	if err := a.store.AddRunResult(r); err != nil {
		util.WarnLog("Failed to record result for %s: %v", out.Path, err)
	}
}

// catalog stores the tags just written, along with the file's new size and mtime
func (a *Applier) catalog(path, status string, tags *store.Tags) {
	if a.store == nil {
		return
	}

	info, err := util.StatFile(path)
	if err != nil {
		util.WarnLog("Failed to stat %s after write: %v", path, err)
		return
	}

	f := &store.File{
		Path:      path,
		FileKey:   info.Key,
		SizeBytes: info.SizeBytes,
		MtimeUnix: info.MtimeUnix,
		Status:    status,
	}
	t := tags.Clone()
	if err := a.store.SaveFileWithTags(f, t); err != nil {
		util.WarnLog("Failed to update catalog for %s: %v", path, err)
	}
}

// markStatus updates the status of an already cataloged file
func (a *Applier) markStatus(path, status, detail string) {
	if a.store == nil {
		return
	}
	f, err := a.store.GetFileByPath(path)
	if err != nil || f == nil {
		return
	}
	if err := a.store.UpdateFileStatus(f.ID, status, detail); err != nil {
		util.WarnLog("Failed to update status of %s: %v", path, err)
	}
}

// commonDir returns the deepest directory containing every path
func commonDir(paths []string) string {
	if len(paths) == 0 {
		return ""
	}

	dir := filepath.Dir(paths[0])
	for _, p := range paths[1:] {
		for !isWithin(p, dir) {
			parent := filepath.Dir(dir)
			if parent == dir {
				return dir
			}
			dir = parent
		}
	}
	return dir
}

func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// IsUnrecognized reports whether err marks a filename that matched no rule
func IsUnrecognized(err error) bool {
	return errors.Is(err, util.ErrUnrecognized)
}
