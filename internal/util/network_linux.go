//go:build linux

package util

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// Kernel superblock magic numbers of network filesystems
var networkMagic = map[uint32]string{
	0x6969:     "nfs",
	0xff534d42: "cifs",
	0xfe534d42: "smb2",
	0x517b:     "smb",
	0x564c:     "ncp",
}

type mountEntry struct {
	point  string
	fsType string
}

func detectPlatformNetwork(path string, stat *syscall.Statfs_t) (*NetworkInfo, error) {
	info := &NetworkInfo{}

	if proto, ok := networkMagic[uint32(stat.Type)]; ok {
		info.IsNetwork = true
		info.Protocol = proto
	}

	// The mount table names FUSE-based shares the magic number cannot tell apart
	mounts, err := readMounts("/proc/mounts")
	if err != nil {
		return info, nil
	}

	if m := mountFor(path, mounts); m != nil {
		info.MountPath = m.point
		if isNetworkFSType(m.fsType) {
			info.IsNetwork = true
			info.Protocol = strings.ToLower(m.fsType)
		}
	}

	return info, nil
}

// The kernel escapes these characters in mount points
var mountUnescaper = strings.NewReplacer(`\040`, " ", `\011`, "\t", `\012`, "\n", `\134`, `\`)

// readMounts parses a mounts table in /proc/mounts format
func readMounts(path string) ([]mountEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var mounts []mountEntry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		// device mountpoint fstype options dump pass
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		mounts = append(mounts, mountEntry{
			point:  mountUnescaper.Replace(fields[1]),
			fsType: fields[2],
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return mounts, nil
}

// mountFor returns the deepest mount containing path. A later entry for the
// same mount point shadows an earlier one.
func mountFor(path string, mounts []mountEntry) *mountEntry {
	path = filepath.Clean(path)

	var best *mountEntry
	for i := range mounts {
		m := &mounts[i]
		if !underMount(path, m.point) {
			continue
		}
		if best == nil || len(m.point) >= len(best.point) {
			best = m
		}
	}
	return best
}

func underMount(path, point string) bool {
	if point == "/" || path == point {
		return true
	}
	return strings.HasPrefix(path, strings.TrimRight(point, "/")+"/")
}
