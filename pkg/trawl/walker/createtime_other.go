//go:build !darwin && !linux

package walker

import (
	"os"
	"time"
)

// createTime falls back to the modification time.
func createTime(_ string, info os.FileInfo) time.Time {
	return info.ModTime()
}
