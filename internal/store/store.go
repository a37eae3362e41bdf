package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const (
	currentSchemaVersion = 1
)

// File statuses
const (
	StatusDiscovered   = "discovered"
	StatusTagsOK       = "tags_ok"
	StatusTagError     = "tag_error"
	StatusApplied      = "applied"
	StatusUnrecognized = "unrecognized"
	StatusWriteError   = "write_error"
	StatusCleared      = "cleared"
)

// Store is the catalog of scanned files and their tags
type Store struct {
	db *sql.DB
}

// OpenOptions holds options for opening a catalog
type OpenOptions struct {
	// NetworkSafe selects a rollback journal instead of WAL. WAL needs shared
	// memory, which SMB and NFS mounts do not provide.
	NetworkSafe bool
}

// Open opens or creates a SQLite catalog at the given path with default options
func Open(path string) (*Store, error) {
	return OpenWithOptions(path, nil)
}

// OpenWithOptions opens or creates a SQLite catalog with the given options
func OpenWithOptions(path string, opts *OpenOptions) (*Store, error) {
	if opts == nil {
		opts = &OpenOptions{}
	}

	journal := "WAL"
	if opts.NetworkSafe {
		journal = "DELETE"
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(%s)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path, journal)
	if opts.NetworkSafe {
		// Fewer round trips to the share
		dsn += "&_pragma=temp_store(MEMORY)&_pragma=cache_size(-64000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return store, nil
}

// JournalMode returns the catalog's journal mode, e.g. "wal" or "delete"
func (s *Store) JournalMode() (string, error) {
	var mode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		return "", fmt.Errorf("failed to read journal mode: %w", err)
	}
	return strings.ToLower(mode), nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SQLiteVersion returns the SQLite version string
func SQLiteVersion() string {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return ""
	}
	defer db.Close()

	var version string
	if err := db.QueryRow("SELECT sqlite_version()").Scan(&version); err != nil {
		return ""
	}
	return version
}

// CheckIntegrity runs PRAGMA integrity_check on the database
func (s *Store) CheckIntegrity() error {
	var result string
	err := s.db.QueryRow("PRAGMA integrity_check").Scan(&result)
	if err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}

	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	return nil
}

// migrate applies database migrations
func (s *Store) migrate() error {
	version, err := s.getSchemaVersion()
	if err != nil {
		return err
	}

	if version >= currentSchemaVersion {
		return nil
	}

	return s.Transaction(func(tx *sql.Tx) error {
		if version < 1 {
			if _, err := tx.Exec(schemaV1); err != nil {
				return fmt.Errorf("failed to apply schema v1: %w", err)
			}
			if err := setSchemaVersion(tx, 1); err != nil {
				return fmt.Errorf("failed to set schema version: %w", err)
			}
		}
		return nil
	})
}

// getSchemaVersion returns the current schema version
func (s *Store) getSchemaVersion() (int, error) {
	var exists int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&exists)
	if err != nil {
		return 0, err
	}

	if exists == 0 {
		return 0, nil
	}

	var version int
	err = s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, err
	}

	return version, nil
}

func setSchemaVersion(tx *sql.Tx, version int) error {
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

// Transaction executes a function within a transaction
func (s *Store) Transaction(fn func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// File is a cataloged MP3 file
type File struct {
	ID          int64
	Path        string
	FileKey     string
	SizeBytes   int64
	MtimeUnix   int64
	Status      string
	Error       string
	FirstSeenAt time.Time
	LastUpdate  time.Time
}

// Tags are the editable ID3 text fields of a file
type Tags struct {
	FileID      int64
	Title       string
	Artist      string
	Album       string
	TrackNumber string
	Genre       string
	Date        string
	AlbumArtist string
	Composer    string
}

// FileWithTags joins a file with its current tags
type FileWithTags struct {
	File *File
	Tags *Tags
}

// Run records one apply, clear or edit invocation
type Run struct {
	ID         string
	Kind       string
	Root       string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Succeeded  int
	Skipped    int
	Failed     int
}

// RunResult is the outcome of a run for one file
type RunResult struct {
	RunID     string
	Path      string
	Outcome   string
	Rule      string
	Detail    string
	CreatedAt time.Time
}
