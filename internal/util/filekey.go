package util

import (
	"crypto/sha1"
	"fmt"
	"os"
	"syscall"
)

// FileInfo is the filesystem state the catalog uses to detect changed files
type FileInfo struct {
	Key       string
	SizeBytes int64
	MtimeUnix int64
}

// StatFile returns the size, mtime and change key of path.
// The key is SHA1 of (dev, inode, size, mtime) so a rewrite of the tags changes it.
func StatFile(path string) (*FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	fi := &FileInfo{
		SizeBytes: info.Size(),
		MtimeUnix: info.ModTime().Unix(),
	}

	h := sha1.New()
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		fmt.Fprintf(h, "%d:%d:%d:%d", stat.Dev, stat.Ino, fi.SizeBytes, info.ModTime().UnixNano())
	} else {
		fmt.Fprintf(h, "%d:%d", fi.SizeBytes, info.ModTime().UnixNano())
	}
	fi.Key = fmt.Sprintf("%x", h.Sum(nil))

	return fi, nil
}
