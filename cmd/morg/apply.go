package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/franz/mp3-organizer/internal/meta"
	"github.com/franz/mp3-organizer/internal/report"
	"github.com/franz/mp3-organizer/internal/scan"
	"github.com/franz/mp3-organizer/internal/store"
	"github.com/franz/mp3-organizer/internal/tagger"
	"github.com/franz/mp3-organizer/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var applyCmd = &cobra.Command{
	Use:   "apply [dir]",
	Short: "Derive tags from filenames and write them",
	Long: `Derive title, artist, track number and album from each filename and
write them into the file's ID3 tags.

Recognized filename layouts, tried in order:
  03 - Title - Artist
  03 - Title   Artist      (two or more spaces before the artist)
  03 - Title
  Title - Artist

The album is set to the name of the folder holding the file. Existing tags
are kept where the filename has nothing to say. Files whose names match no
layout are skipped and left untouched.

Without a folder argument every cataloged file is processed; use --file for
individual files.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runApply,
}

var setCmd = &cobra.Command{
	Use:   "set <file> <field> <value>",
	Short: "Edit one tag field of one file",
	Long: `Set a single tag field and write it to the file. An empty value removes
the field.

Fields: title, artist, album, tracknumber, genre, date, albumartist, composer`,
	Args: cobra.ExactArgs(3),
	RunE: runSet,
}

var clearCmd = &cobra.Command{
	Use:   "clear [dir]",
	Short: "Remove all tags from files",
	Long: `Remove every ID3v2 frame and any trailing ID3v1 tag from the files of a
folder, or of the whole catalog when no folder is given. Requires --yes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClear,
}

func init() {
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(clearCmd)

	applyCmd.Flags().StringSlice("file", nil, "Apply to these files only (repeatable)")
	applyCmd.Flags().Bool("dry-run", false, "Show what would change without writing")
	applyCmd.Flags().Bool("no-catalog", false, "Do not read or update the catalog")
	viper.BindPFlag("dry-run", applyCmd.Flags().Lookup("dry-run"))

	clearCmd.Flags().Bool("yes", false, "Confirm removing all tags")
	clearCmd.Flags().Bool("dry-run", false, "List the files that would be cleared")
}

func newApplier(db *store.Store, logger *report.EventLogger, dryRun bool, tuning *util.NASSettings) *tagger.Applier {
	return tagger.New(&tagger.Config{
		Store:       db,
		Writer:      &meta.FileTagWriter{Retry: tuning.Retry},
		Concurrency: tuning.Concurrency,
		DryRun:      dryRun,
		Logger:      logger,
	})
}

// folderOf names the folder to tune for: the folder argument, or the folder
// of the first file
func folderOf(args []string, paths []string) string {
	if len(args) == 1 {
		return args[0]
	}
	if len(paths) > 0 {
		return filepath.Dir(paths[0])
	}
	return ""
}

// resolvePaths picks the files to work on: explicit files, the files under
// dir, or every cataloged file
func resolvePaths(ctx context.Context, db *store.Store, files []string, args []string) ([]string, error) {
	if len(files) > 0 {
		paths := make([]string, 0, len(files))
		for _, f := range files {
			abs, err := filepath.Abs(f)
			if err != nil {
				return nil, err
			}
			if _, err := os.Stat(abs); os.IsNotExist(err) {
				return nil, fmt.Errorf("%s: %w", f, util.ErrNotFound)
			} else if err != nil {
				return nil, fmt.Errorf("cannot access %s: %w", f, err)
			}
			paths = append(paths, abs)
		}
		return paths, nil
	}

	if len(args) == 1 {
		dir, err := filepath.Abs(args[0])
		if err != nil {
			return nil, err
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return nil, fmt.Errorf("not a directory: %s", args[0])
		}
		scanner := scan.New(&scan.Config{Extensions: GetConfigStringSlice("extensions")})
		return scanner.Discover(ctx, dir)
	}

	if db == nil {
		return nil, fmt.Errorf("a folder or --file is required with --no-catalog")
	}
	cataloged, err := db.GetAllFiles()
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(cataloged))
	for _, f := range cataloged {
		paths = append(paths, f.Path)
	}
	return paths, nil
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	files, _ := cmd.Flags().GetStringSlice("file")
	noCatalog, _ := cmd.Flags().GetBool("no-catalog")
	dryRun := GetConfigBool("dry-run")

	var db *store.Store
	if !noCatalog {
		var err error
		if db, err = openStore(); err != nil {
			return err
		}
		defer db.Close()
	}

	logger := openEventLogger()
	defer logger.Close()

	paths, err := resolvePaths(ctx, db, files, args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		util.WarnLog("No files to process. Run 'morg scan <dir>' first or pass a folder.")
		return nil
	}

	if dryRun {
		util.InfoLog("=== Dry run: no files will be modified ===")
	}
	util.InfoLog("Processing %d files", len(paths))

	applier := newApplier(db, logger, dryRun, tuneForFolder(folderOf(args, paths)))
	result, err := applier.Apply(ctx, paths)
	if result != nil {
		printOutcomes(result, dryRun)
		util.SuccessLog("Done in %v: %s", result.Duration.Round(time.Millisecond), result.Summary())
	}
	if err != nil {
		return fmt.Errorf("apply interrupted: %w", err)
	}
	return nil
}

// printOutcomes lists what changed, or would change on a dry run
func printOutcomes(result *tagger.Result, dryRun bool) {
	for _, out := range result.Outcomes {
		switch out.Status {
		case store.OutcomeUpdated:
			changed := out.Changed()
			if len(changed) == 0 {
				util.DebugLog("%s: already up to date", out.Path)
				continue
			}
			if !dryRun && !util.IsVerbose() {
				continue
			}
			util.InfoLog("%s", out.Path)
			for _, field := range changed {
				before, _ := out.Before.Get(field)
				after, _ := out.After.Get(field)
				util.InfoLog("    %-12s %q -> %q", field, before, after)
			}
		case store.OutcomeUnrecognized:
			util.WarnLog("%s: %v", filepath.Base(out.Path), util.ErrUnrecognized)
		}
	}
}

func runSet(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	field := strings.ToLower(args[1])
	value := args[2]

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	logger := openEventLogger()
	defer logger.Close()

	applier := newApplier(db, logger, false, tuneForFolder(filepath.Dir(path)))
	out, err := applier.SetField(ctx, path, field, value)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", field, err)
	}

	before, _ := out.Before.Get(field)
	util.SuccessLog("%s: %s %q -> %q", filepath.Base(path), field, before, strings.TrimSpace(value))
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	yes, _ := cmd.Flags().GetBool("yes")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	paths, err := resolvePaths(ctx, db, nil, args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		util.WarnLog("No files to clear")
		return nil
	}

	if !yes && !dryRun {
		return fmt.Errorf("refusing to remove all tags from %d files without --yes", len(paths))
	}

	logger := openEventLogger()
	defer logger.Close()

	util.InfoLog("Clearing tags of %d files", len(paths))
	applier := newApplier(db, logger, dryRun, tuneForFolder(folderOf(args, paths)))
	result, err := applier.Clear(ctx, paths)
	if result != nil {
		if dryRun {
			for _, out := range result.Outcomes {
				util.InfoLog("would clear %s", out.Path)
			}
		}
		util.SuccessLog("Done in %v: %s", result.Duration.Round(time.Millisecond), result.Summary())
	}
	if err != nil {
		return fmt.Errorf("clear interrupted: %w", err)
	}
	return nil
}
