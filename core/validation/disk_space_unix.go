//go:build !windows

package validation

import "syscall"

// getDiskSpace uses statfs; free is the space available to unprivileged
// users (Bavail).
func getDiskSpace(path string) (total, free int64, err error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	return int64(stat.Blocks) * int64(stat.Bsize), int64(stat.Bavail) * int64(stat.Bsize), nil
}
