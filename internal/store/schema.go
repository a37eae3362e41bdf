package store

// schemaV1 is the initial catalog schema
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- MP3 files found under a scanned folder
CREATE TABLE IF NOT EXISTS files (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  path TEXT UNIQUE NOT NULL,
  file_key TEXT NOT NULL,
  size_bytes INTEGER,
  mtime_unix INTEGER,
  status TEXT NOT NULL DEFAULT 'discovered',
  error TEXT,
  first_seen_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  last_update_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_files_status ON files(status);

-- Current tag values, one row per file
CREATE TABLE IF NOT EXISTS tags (
  file_id INTEGER PRIMARY KEY REFERENCES files(id) ON DELETE CASCADE,
  title TEXT NOT NULL DEFAULT '',
  artist TEXT NOT NULL DEFAULT '',
  album TEXT NOT NULL DEFAULT '',
  tracknumber TEXT NOT NULL DEFAULT '',
  genre TEXT NOT NULL DEFAULT '',
  date TEXT NOT NULL DEFAULT '',
  albumartist TEXT NOT NULL DEFAULT '',
  composer TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_tags_artist ON tags(artist);
CREATE INDEX IF NOT EXISTS idx_tags_album ON tags(album);

-- One row per apply/clear/edit invocation
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  root TEXT,
  dry_run INTEGER DEFAULT 0,
  started_at DATETIME,
  finished_at DATETIME,
  succeeded INTEGER DEFAULT 0,
  skipped INTEGER DEFAULT 0,
  failed INTEGER DEFAULT 0
);

-- Per-file outcome of a run
CREATE TABLE IF NOT EXISTS run_results (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  path TEXT NOT NULL,
  outcome TEXT NOT NULL,
  rule TEXT,
  detail TEXT,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_run_results_run ON run_results(run_id, outcome);
`
