package util

import (
	"fmt"
	"path/filepath"
	"strings"
	"syscall"
)

// NetworkInfo describes the filesystem a path lives on
type NetworkInfo struct {
	IsNetwork bool
	Protocol  string // filesystem type such as "cifs", "nfs4" or "smbfs"; empty when local
	MountPath string
}

// Filesystem type names, or fragments of them, that denote a network mount
var networkFSTypes = []string{
	"nfs",
	"cifs",
	"smb",
	"afpfs",
	"webdav",
	"ncpfs",
	"osxfuse",
	"fuse.sshfs",
	"fuse.rclone",
}

func isNetworkFSType(fsType string) bool {
	fsType = strings.ToLower(fsType)
	for _, t := range networkFSTypes {
		if strings.Contains(fsType, t) {
			return true
		}
	}
	return false
}

// DetectNetworkFilesystem reports whether path is on an SMB/CIFS, NFS or
// similar network mount. The path must exist.
func DetectNetworkFilesystem(path string) (*NetworkInfo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(absPath, &stat); err != nil {
		return nil, fmt.Errorf("failed to stat filesystem: %w", err)
	}

	return detectPlatformNetwork(absPath, &stat)
}

// IsNetworkPath is DetectNetworkFilesystem without the details. Errors count as local.
func IsNetworkPath(path string) bool {
	info, err := DetectNetworkFilesystem(path)
	if err != nil {
		return false
	}
	return info.IsNetwork
}
