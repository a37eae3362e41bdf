package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// TagFields lists the editable tag fields in display order.
// The names double as the column names of the tags table.
var TagFields = []string{
	"title",
	"artist",
	"album",
	"tracknumber",
	"genre",
	"date",
	"albumartist",
	"composer",
}

// ValidField reports whether name is one of TagFields
func ValidField(name string) bool {
	for _, f := range TagFields {
		if f == name {
			return true
		}
	}
	return false
}

func (t *Tags) field(name string) *string {
	switch name {
	case "title":
		return &t.Title
	case "artist":
		return &t.Artist
	case "album":
		return &t.Album
	case "tracknumber":
		return &t.TrackNumber
	case "genre":
		return &t.Genre
	case "date":
		return &t.Date
	case "albumartist":
		return &t.AlbumArtist
	case "composer":
		return &t.Composer
	}
	return nil
}

// Get returns the value of a field by name
func (t *Tags) Get(name string) (string, bool) {
	p := t.field(name)
	if p == nil {
		return "", false
	}
	return *p, true
}

// Set assigns a field by name. It returns false for unknown fields.
func (t *Tags) Set(name, value string) bool {
	p := t.field(name)
	if p == nil {
		return false
	}
	*p = value
	return true
}

// Clone returns a copy of t
func (t *Tags) Clone() *Tags {
	if t == nil {
		return &Tags{}
	}
	c := *t
	return &c
}

// IsEmpty reports whether every field is blank
func (t *Tags) IsEmpty() bool {
	for _, name := range TagFields {
		if v, _ := t.Get(name); strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// UpsertTags inserts or replaces the tags of a file
func (s *Store) UpsertTags(t *Tags) error {
	_, err := s.db.Exec(`
		INSERT INTO tags (file_id, title, artist, album, tracknumber, genre, date, albumartist, composer)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			tracknumber = excluded.tracknumber,
			genre = excluded.genre,
			date = excluded.date,
			albumartist = excluded.albumartist,
			composer = excluded.composer
	`, t.FileID, t.Title, t.Artist, t.Album, t.TrackNumber, t.Genre, t.Date, t.AlbumArtist, t.Composer)
	if err != nil {
		return fmt.Errorf("failed to upsert tags: %w", err)
	}
	return nil
}

// GetTags retrieves the tags of a file, or nil if none were recorded
func (s *Store) GetTags(fileID int64) (*Tags, error) {
	t := &Tags{}
	err := s.db.QueryRow(`
		SELECT file_id, title, artist, album, tracknumber, genre, date, albumartist, composer
		FROM tags WHERE file_id = ?
	`, fileID).Scan(&t.FileID, &t.Title, &t.Artist, &t.Album, &t.TrackNumber, &t.Genre, &t.Date, &t.AlbumArtist, &t.Composer)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}
	return t, nil
}

// SaveFileWithTags upserts a file and then its tags
func (s *Store) SaveFileWithTags(f *File, t *Tags) error {
	if err := s.UpsertFile(f); err != nil {
		return err
	}
	if t == nil {
		return nil
	}
	t.FileID = f.ID
	return s.UpsertTags(t)
}

// QueryOptions filters and orders a catalog listing
type QueryOptions struct {
	Artist      string // substring, case and accent insensitive
	Album       string
	Title       string
	Path        string
	Status      string
	EmptyTitle  bool
	EmptyArtist bool
	EmptyAlbum  bool
	SortBy      string // path, title, artist, album, track
	Descending  bool
	Limit       int
}

var sortColumns = map[string]string{
	"path":   "f.path",
	"title":  "fold(t.title), f.path",
	"artist": "fold(t.artist), fold(t.album), CAST(t.tracknumber AS INTEGER), f.path",
	"album":  "fold(t.album), CAST(t.tracknumber AS INTEGER), f.path",
	"track":  "CAST(t.tracknumber AS INTEGER), t.tracknumber, f.path",
}

// QueryFilesWithTags lists cataloged files with their tags
func (s *Store) QueryFilesWithTags(opts *QueryOptions) ([]*FileWithTags, error) {
	if opts == nil {
		opts = &QueryOptions{}
	}

	var where []string
	var args []any

	contains := func(column, value string) {
		if value == "" {
			return
		}
		where = append(where, fmt.Sprintf("instr(fold(%s), fold(?)) > 0", column))
		args = append(args, value)
	}
	contains("COALESCE(t.artist, '')", opts.Artist)
	contains("COALESCE(t.album, '')", opts.Album)
	contains("COALESCE(t.title, '')", opts.Title)
	contains("f.path", opts.Path)

	if opts.Status != "" {
		where = append(where, "f.status = ?")
		args = append(args, opts.Status)
	}
	if opts.EmptyTitle {
		where = append(where, "TRIM(COALESCE(t.title, '')) = ''")
	}
	if opts.EmptyArtist {
		where = append(where, "TRIM(COALESCE(t.artist, '')) = ''")
	}
	if opts.EmptyAlbum {
		where = append(where, "TRIM(COALESCE(t.album, '')) = ''")
	}

	query := `
		SELECT f.id, f.path, f.file_key, f.size_bytes, f.mtime_unix,
		       f.status, COALESCE(f.error, ''), f.first_seen_at, f.last_update_at,
		       COALESCE(t.title, ''), COALESCE(t.artist, ''), COALESCE(t.album, ''),
		       COALESCE(t.tracknumber, ''), COALESCE(t.genre, ''), COALESCE(t.date, ''),
		       COALESCE(t.albumartist, ''), COALESCE(t.composer, '')
		FROM files f
		LEFT JOIN tags t ON t.file_id = f.id`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}

	order, ok := sortColumns[opts.SortBy]
	if !ok {
		order = sortColumns["path"]
	}
	if opts.Descending {
		// Only the leading key flips; ties keep a stable ascending order
		parts := strings.SplitN(order, ", ", 2)
		parts[0] += " DESC"
		order = strings.Join(parts, ", ")
	}
	query += "\n\t\tORDER BY " + order

	if opts.Limit > 0 {
		query += fmt.Sprintf("\n\t\tLIMIT %d", opts.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer rows.Close()

	var results []*FileWithTags
	for rows.Next() {
		f := &File{}
		t := &Tags{}
		err := rows.Scan(
			&f.ID, &f.Path, &f.FileKey, &f.SizeBytes, &f.MtimeUnix,
			&f.Status, &f.Error, &f.FirstSeenAt, &f.LastUpdate,
			&t.Title, &t.Artist, &t.Album, &t.TrackNumber, &t.Genre, &t.Date,
			&t.AlbumArtist, &t.Composer,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan catalog row: %w", err)
		}
		t.FileID = f.ID
		results = append(results, &FileWithTags{File: f, Tags: t})
	}

	return results, rows.Err()
}

// TagCompleteness counts files missing the fields the filename parser fills in
type TagCompleteness struct {
	Total         int
	MissingTitle  int
	MissingArtist int
	MissingAlbum  int
	MissingTrack  int
}

// GetTagCompleteness returns catalog-wide counts of blank tag fields
func (s *Store) GetTagCompleteness() (*TagCompleteness, error) {
	c := &TagCompleteness{}
	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN TRIM(COALESCE(t.title, '')) = '' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN TRIM(COALESCE(t.artist, '')) = '' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN TRIM(COALESCE(t.album, '')) = '' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN TRIM(COALESCE(t.tracknumber, '')) = '' THEN 1 ELSE 0 END), 0)
		FROM files f
		LEFT JOIN tags t ON t.file_id = f.id
	`).Scan(&c.Total, &c.MissingTitle, &c.MissingArtist, &c.MissingAlbum, &c.MissingTrack)
	if err != nil {
		return nil, fmt.Errorf("failed to count tag completeness: %w", err)
	}
	return c, nil
}
