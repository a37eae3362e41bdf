package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/franz/mp3-organizer/internal/tagger"
	"github.com/franz/mp3-organizer/internal/util"
	"github.com/franz/mp3-organizer/internal/watch"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Tag files from their names as they are dropped into a folder",
	Long: `Watch a folder tree and apply filename tags to every new or rewritten MP3
once it has stopped changing for the debounce interval. Folders created or
moved in while watching are picked up as well.

Stop with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "Quiet time before a changed file is tagged")
	watchCmd.Flags().Bool("dry-run", false, "Report what would change without writing")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	root, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return fmt.Errorf("not a directory: %s", args[0])
	}

	debounce, _ := cmd.Flags().GetDuration("debounce")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	logger := openEventLogger()
	defer logger.Close()

	var applied, skipped, failed int
	w := watch.New(&watch.Config{
		Applier:    newApplier(db, logger, dryRun, tuneForFolder(root)),
		Extensions: GetConfigStringSlice("extensions"),
		Debounce:   debounce,
		OnApply: func(path string, _ *tagger.Outcome, err error) {
			switch {
			case err == nil:
				applied++
			case tagger.IsUnrecognized(err):
				skipped++
			default:
				failed++
			}
		},
	})

	if err := w.Run(ctx, root); err != nil {
		return err
	}

	util.InfoLog("")
	util.SuccessLog("Stopped watching: %d succeeded, %d skipped, %d failed", applied, skipped, failed)
	return nil
}
