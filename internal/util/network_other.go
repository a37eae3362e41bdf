//go:build !linux && !darwin

package util

import "syscall"

// Network mounts are not detected here; everything counts as local
func detectPlatformNetwork(path string, stat *syscall.Statfs_t) (*NetworkInfo, error) {
	return &NetworkInfo{}, nil
}
