package store

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const fileColumns = `id, path, file_key, size_bytes, mtime_unix,
		status, COALESCE(error, ''), first_seen_at, last_update_at`

// UpsertFile inserts a file or refreshes the row with the same path.
// f.ID is set on return.
func (s *Store) UpsertFile(f *File) error {
	if f.Status == "" {
		f.Status = StatusDiscovered
	}

	err := s.db.QueryRow(`
		INSERT INTO files (path, file_key, size_bytes, mtime_unix, status, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			file_key = excluded.file_key,
			size_bytes = excluded.size_bytes,
			mtime_unix = excluded.mtime_unix,
			status = excluded.status,
			error = excluded.error,
			last_update_at = CURRENT_TIMESTAMP
		RETURNING id
	`, f.Path, f.FileKey, f.SizeBytes, f.MtimeUnix, f.Status, f.Error).Scan(&f.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}

	return nil
}

func scanFile(row interface{ Scan(...any) error }) (*File, error) {
	f := &File{}
	err := row.Scan(
		&f.ID, &f.Path, &f.FileKey, &f.SizeBytes, &f.MtimeUnix,
		&f.Status, &f.Error, &f.FirstSeenAt, &f.LastUpdate,
	)
	return f, err
}

// GetFileByPath retrieves a file by its path. It returns nil when the path is not cataloged.
func (s *Store) GetFileByPath(path string) (*File, error) {
	f, err := scanFile(s.db.QueryRow(`SELECT `+fileColumns+` FROM files WHERE path = ?`, path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return f, nil
}

// GetFileByID retrieves a file by its ID
func (s *Store) GetFileByID(id int64) (*File, error) {
	f, err := scanFile(s.db.QueryRow(`SELECT `+fileColumns+` FROM files WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return f, nil
}

// GetAllFiles retrieves all files ordered by path
func (s *Store) GetAllFiles() ([]*File, error) {
	return s.queryFiles(`SELECT ` + fileColumns + ` FROM files ORDER BY path`)
}

// GetFilesUnder retrieves the files whose path lies inside root
func (s *Store) GetFilesUnder(root string) ([]*File, error) {
	return s.queryFiles(`SELECT `+fileColumns+` FROM files WHERE path = ? OR instr(path, ?) = 1 ORDER BY path`,
		root, dirPrefix(root))
}

func (s *Store) queryFiles(query string, args ...any) ([]*File, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, f)
	}

	return files, rows.Err()
}

// UpdateFileStatus updates the status of a file
func (s *Store) UpdateFileStatus(fileID int64, status string, errorMsg string) error {
	_, err := s.db.Exec(`
		UPDATE files SET status = ?, error = ?, last_update_at = ?
		WHERE id = ?
	`, status, errorMsg, time.Now(), fileID)
	if err != nil {
		return fmt.Errorf("failed to update file status: %w", err)
	}
	return nil
}

// CountFilesByStatus returns the number of files with a given status
func (s *Store) CountFilesByStatus(status string) (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM files WHERE status = ?", status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return count, nil
}

// CountFiles returns the number of cataloged files
func (s *Store) CountFiles() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM files").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return count, nil
}

// PruneMissing deletes files under root that are not in seen and returns how many were removed
func (s *Store) PruneMissing(root string, seen map[string]bool) (int, error) {
	files, err := s.GetFilesUnder(root)
	if err != nil {
		return 0, err
	}

	removed := 0
	err = s.Transaction(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare("DELETE FROM files WHERE id = ?")
		if err != nil {
			return fmt.Errorf("failed to prepare delete: %w", err)
		}
		defer stmt.Close()

		for _, f := range files {
			if seen[f.Path] {
				continue
			}
			if _, err := stmt.Exec(f.ID); err != nil {
				return fmt.Errorf("failed to delete %s: %w", f.Path, err)
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return removed, nil
}

// dirPrefix returns root with exactly one trailing separator
func dirPrefix(root string) string {
	sep := string(filepath.Separator)
	return strings.TrimRight(root, sep) + sep
}
