package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/franz/mp3-organizer/internal/store"
	"github.com/franz/mp3-organizer/internal/util"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List cataloged files with their tags",
	Long: `List the cataloged files and their tags.

Text filters match substrings, ignoring case and accents, so --artist bjork
finds "Björk".

Examples:
  morg list --artist "radiohead" --sort track
  morg list --empty-title
  morg list --output csv > tags.csv`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	// Filter flags
	listCmd.Flags().String("artist", "", "Filter by artist")
	listCmd.Flags().String("album", "", "Filter by album")
	listCmd.Flags().String("title", "", "Filter by title")
	listCmd.Flags().String("path", "", "Filter by path")
	listCmd.Flags().String("status", "", "Filter by catalog status (e.g. unrecognized, write_error)")
	listCmd.Flags().Bool("empty-title", false, "Show files with missing title tag")
	listCmd.Flags().Bool("empty-artist", false, "Show files with missing artist tag")
	listCmd.Flags().Bool("empty-album", false, "Show files with missing album tag")

	// Output flags
	listCmd.Flags().StringP("output", "o", "human", "Output format: human, jsonl, csv")
	listCmd.Flags().IntP("limit", "l", 0, "Limit number of results (0 = no limit)")
	listCmd.Flags().String("sort", "path", "Sort by: path, title, artist, album, track")
	listCmd.Flags().Bool("desc", false, "Sort descending")
}

func runList(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	// Build query options from flags
	opts := &store.QueryOptions{}

	opts.Artist, _ = cmd.Flags().GetString("artist")
	opts.Album, _ = cmd.Flags().GetString("album")
	opts.Title, _ = cmd.Flags().GetString("title")
	opts.Path, _ = cmd.Flags().GetString("path")
	opts.Status, _ = cmd.Flags().GetString("status")
	opts.EmptyTitle, _ = cmd.Flags().GetBool("empty-title")
	opts.EmptyArtist, _ = cmd.Flags().GetBool("empty-artist")
	opts.EmptyAlbum, _ = cmd.Flags().GetBool("empty-album")
	opts.Limit, _ = cmd.Flags().GetInt("limit")
	opts.SortBy, _ = cmd.Flags().GetString("sort")
	opts.Descending, _ = cmd.Flags().GetBool("desc")

	results, err := db.QueryFilesWithTags(opts)
	if err != nil {
		return fmt.Errorf("failed to query catalog: %w", err)
	}

	outputFormat, _ := cmd.Flags().GetString("output")

	switch outputFormat {
	case "jsonl":
		return outputJSONL(os.Stdout, results)
	case "csv":
		return outputCSV(os.Stdout, results)
	case "human", "":
		return outputHuman(os.Stdout, results, opts)
	default:
		return fmt.Errorf("unknown output format %q: %w", outputFormat, util.ErrInvalidConfig)
	}
}

func outputHuman(w io.Writer, results []*store.FileWithTags, opts *store.QueryOptions) error {
	if len(results) == 0 {
		util.InfoLog("No files found matching criteria")
		return nil
	}

	fmt.Fprintf(w, "\n=== Catalog ===\n")
	if opts.Artist != "" {
		fmt.Fprintf(w, "Artist: %s\n", opts.Artist)
	}
	if opts.Album != "" {
		fmt.Fprintf(w, "Album: %s\n", opts.Album)
	}
	if opts.EmptyTitle {
		fmt.Fprintf(w, "Filter: Empty titles only\n")
	}
	fmt.Fprintf(w, "Found: %d files\n\n", len(results))

	var totalSize int64
	for i, r := range results {
		f, t := r.File, r.Tags

		fmt.Fprintf(w, "[%d] %s\n", i+1, f.Path)
		fmt.Fprintf(w, "    Title:    %s\n", formatStringOrEmpty(t.Title))
		fmt.Fprintf(w, "    Artist:   %s\n", formatStringOrEmpty(t.Artist))
		fmt.Fprintf(w, "    Album:    %s\n", formatStringOrEmpty(t.Album))
		if t.TrackNumber != "" {
			fmt.Fprintf(w, "    Track:    %s\n", t.TrackNumber)
		}
		if t.Genre != "" {
			fmt.Fprintf(w, "    Genre:    %s\n", t.Genre)
		}
		if t.Date != "" {
			fmt.Fprintf(w, "    Date:     %s\n", t.Date)
		}
		if t.AlbumArtist != "" {
			fmt.Fprintf(w, "    Album artist: %s\n", t.AlbumArtist)
		}
		if t.Composer != "" {
			fmt.Fprintf(w, "    Composer: %s\n", t.Composer)
		}
		fmt.Fprintf(w, "    Size:     %s\n", humanize.Bytes(uint64(f.SizeBytes)))
		status := f.Status
		if f.Error != "" {
			status += " (" + f.Error + ")"
		}
		fmt.Fprintf(w, "    Status:   %s, updated %s\n", status, humanize.Time(f.LastUpdate))
		fmt.Fprintln(w)

		totalSize += f.SizeBytes
	}

	fmt.Fprintf(w, "=== Summary ===\n")
	fmt.Fprintf(w, "Files: %s\n", humanize.Comma(int64(len(results))))
	fmt.Fprintf(w, "Total Size: %s\n\n", humanize.Bytes(uint64(totalSize)))

	return nil
}

func outputJSONL(w io.Writer, results []*store.FileWithTags) error {
	encoder := json.NewEncoder(w)

	for _, r := range results {
		obj := map[string]interface{}{
			"file_id":     r.File.ID,
			"path":        r.File.Path,
			"size_bytes":  r.File.SizeBytes,
			"status":      r.File.Status,
			"title":       r.Tags.Title,
			"artist":      r.Tags.Artist,
			"album":       r.Tags.Album,
			"tracknumber": r.Tags.TrackNumber,
			"genre":       r.Tags.Genre,
			"date":        r.Tags.Date,
			"albumartist": r.Tags.AlbumArtist,
			"composer":    r.Tags.Composer,
		}

		if err := encoder.Encode(obj); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
	}

	return nil
}

func outputCSV(w io.Writer, results []*store.FileWithTags) error {
	writer := csv.NewWriter(w)

	header := append([]string{"path"}, store.TagFields...)
	header = append(header, "status", "size_bytes")
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, r := range results {
		row := []string{r.File.Path}
		for _, field := range store.TagFields {
			v, _ := r.Tags.Get(field)
			row = append(row, v)
		}
		row = append(row, r.File.Status, fmt.Sprintf("%d", r.File.SizeBytes))

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatStringOrEmpty(s string) string {
	if s == "" {
		return "(empty)"
	}
	return s
}
