//go:build darwin

package walker

import (
	"os"
	"syscall"
	"time"
)

// createTime returns the birth time from the stat structure.
func createTime(_ string, info os.FileInfo) time.Time {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime()
	}
	return time.Unix(stat.Birthtimespec.Sec, stat.Birthtimespec.Nsec)
}
