//go:build !windows

package util

import "syscall"

// DiskUsedPercent returns the percentage of disk space used at path's
// filesystem, or an error if the filesystem cannot be statted.
func DiskUsedPercent(path string) (float64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, WrapError("statfs "+path, err)
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	if total == 0 {
		return 0, nil
	}
	used := total - free
	return float64(used) / float64(total) * 100, nil
}
