package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/franz/mp3-organizer/internal/meta"
	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse <name>...",
	Short: "Show how filenames would be turned into tags",
	Long: `Run the filename parser on each argument and print the rule that matched
along with the track, title and artist it produced. Nothing is written.

Arguments may be bare names or paths; a trailing extension is ignored.

Example:
  morg parse "03 - Song Title - Artist.mp3" "Title - Artist"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	for _, name := range args {
		printParse(os.Stdout, name)
	}
	return nil
}

func printParse(w io.Writer, name string) {
	base := filepath.Base(name)
	m := meta.ParseFilename(meta.TrimExtension(base))

	fmt.Fprintf(w, "%s\n", base)
	if m == nil {
		fmt.Fprintf(w, "    format not recognized\n\n")
		return
	}

	fmt.Fprintf(w, "    Rule:   %s\n", m.Rule)
	fmt.Fprintf(w, "    Track:  %s\n", formatStringOrEmpty(m.Track))
	fmt.Fprintf(w, "    Title:  %s\n", m.Title)
	fmt.Fprintf(w, "    Artist: %s\n", formatStringOrEmpty(m.Artist))
	if album := meta.AlbumFromPath(name); album != "" {
		fmt.Fprintf(w, "    Album:  %s\n", album)
	}
	fmt.Fprintln(w)
}
