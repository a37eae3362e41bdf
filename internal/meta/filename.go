package meta

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Rule identifies the filename pattern that produced a parse
type Rule int

const (
	RuleNone Rule = iota
	RuleTrackTitleArtist
	RuleTrackTitleGapArtist
	RuleTrackTitle
	RuleTitleArtist
)

func (r Rule) String() string {
	switch r {
	case RuleTrackTitleArtist:
		return "track-title-artist"
	case RuleTrackTitleGapArtist:
		return "track-title-gap-artist"
	case RuleTrackTitle:
		return "track-title"
	case RuleTitleArtist:
		return "title-artist"
	default:
		return "none"
	}
}

// FilenameMeta holds the tags guessed from a filename.
// Track and Artist are empty when the filename does not carry them.
type FilenameMeta struct {
	Track  string
	Title  string
	Artist string
	Rule   Rule
}

// HasTrack reports whether a track token was found
func (m *FilenameMeta) HasTrack() bool {
	return m != nil && m.Track != ""
}

// HasArtist reports whether an artist segment was found
func (m *FilenameMeta) HasArtist() bool {
	return m != nil && m.Artist != ""
}

// Building blocks shared by the patterns below. Whitespace includes Unicode
// space separators so a no-break space around a hyphen still counts, and track
// digits may come from any script ("٠٣").
const (
	trackToken = `(\p{Nd}+[a-zA-Z]?)`
	ws         = `[\s\p{Zs}]`
	separator  = ws + `*-` + ws + `*`
)

// filenamePatterns are tried in order; the first one that matches wins.
var filenamePatterns = []struct {
	rule  Rule
	re    *regexp.Regexp
	parse func(*FilenameMeta, []string)
}{
	{
		// "03a - MUSICA - ARTISTA"
		rule: RuleTrackTitleArtist,
		re:   regexp.MustCompile(`^` + trackToken + separator + `(.+?)` + separator + `(.+)$`),
		parse: func(m *FilenameMeta, groups []string) {
			m.Track = groups[1]
			m.Title = groups[2]
			m.Artist = groups[3]
		},
	},
	{
		// "50 - SERTANEJA   DINO FRANCO E MOURAI"
		rule: RuleTrackTitleGapArtist,
		re:   regexp.MustCompile(`^` + trackToken + separator + `(.+?)` + ws + `{2,}(.+)$`),
		parse: func(m *FilenameMeta, groups []string) {
			m.Track = groups[1]
			m.Title = groups[2]
			m.Artist = groups[3]
		},
	},
	{
		// "40- Footloose"
		rule: RuleTrackTitle,
		re:   regexp.MustCompile(`^` + trackToken + separator + `(.+)$`),
		parse: func(m *FilenameMeta, groups []string) {
			m.Track = groups[1]
			m.Title = groups[2]
		},
	},
	{
		// "SANTANA O CANTADOR - XOTE PE DE SERRA"
		rule: RuleTitleArtist,
		re:   regexp.MustCompile(`^(.+?)` + separator + `(.+)$`),
		parse: func(m *FilenameMeta, groups []string) {
			m.Title = groups[1]
			m.Artist = groups[2]
		},
	},
}

// ParseFilename guesses track, title and artist from a filename whose
// extension has already been removed. It returns nil when no pattern matches.
//
// Patterns are evaluated strictly in order and the first structural match is
// final, so a title that itself contains " - " is split at its first hyphen.
// When that match leaves no title ("02 - "), the name is unrecognized; later
// patterns are not consulted.
func ParseFilename(name string) *FilenameMeta {
	for _, p := range filenamePatterns {
		groups := p.re.FindStringSubmatch(name)
		if groups == nil {
			continue
		}

		m := &FilenameMeta{Rule: p.rule}
		p.parse(m, groups)
		m.Track = strings.TrimSpace(m.Track)
		m.Title = strings.TrimSpace(m.Title)
		m.Artist = strings.TrimSpace(m.Artist)

		if m.Title == "" {
			return nil
		}
		return m
	}
	return nil
}

// ParsePath runs ParseFilename on the base name of path, minus its extension
func ParsePath(path string) *FilenameMeta {
	return ParseFilename(TrimExtension(filepath.Base(path)))
}

// TrimExtension drops everything from the last "." on. A name without a dot
// is returned unchanged.
func TrimExtension(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}

// AlbumFromPath returns the name of the directory that contains path.
// It is empty when path has no parent directory component.
func AlbumFromPath(path string) string {
	dir := filepath.Dir(path)
	if dir == "." || dir == string(filepath.Separator) {
		return ""
	}
	return filepath.Base(dir)
}
