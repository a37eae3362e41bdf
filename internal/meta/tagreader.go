package meta

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
	"github.com/franz/mp3-organizer/internal/store"
)

// TagReader reads the editable tag fields of a file
type TagReader interface {
	ReadTags(path string) (*store.Tags, error)
}

// FileTagReader reads tags from disk with dhowden/tag
type FileTagReader struct{}

// ReadTags implements TagReader
func (FileTagReader) ReadTags(path string) (*store.Tags, error) {
	return ReadTags(path)
}

// ReadTags reads ID3 tags from path. A file without any tag block yields
// empty Tags and no error.
func ReadTags(path string) (*store.Tags, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if errors.Is(err, tag.ErrNoTagsFound) {
		return &store.Tags{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}

	raw := m.Raw()
	t := &store.Tags{
		Title:       strings.TrimSpace(m.Title()),
		Artist:      strings.TrimSpace(m.Artist()),
		Album:       strings.TrimSpace(m.Album()),
		Genre:       strings.TrimSpace(m.Genre()),
		AlbumArtist: strings.TrimSpace(m.AlbumArtist()),
		Composer:    strings.TrimSpace(m.Composer()),
	}

	// Keep the track text verbatim so suffixed tracks like "03a" survive
	t.TrackNumber = rawText(raw, "TRCK", "TRK")
	if t.TrackNumber == "" {
		if n, _ := m.Track(); n > 0 {
			t.TrackNumber = strconv.Itoa(n)
		}
	}

	t.Date = rawText(raw, "TDRC", "TYER", "TYE")
	if t.Date == "" && m.Year() > 0 {
		t.Date = strconv.Itoa(m.Year())
	}

	return t, nil
}

// rawText returns the first non-empty string frame among keys
func rawText(raw map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := raw[k].(string); ok {
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		}
	}
	return ""
}
