//go:build darwin

package tuner

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Detect detects CPU cores and total memory via sysctl hw.memsize.
// Available RAM is estimated as half of the total.
func Detect() (SystemResources, error) {
	resources := SystemResources{
		CPUCores: runtime.NumCPU(),
	}

	memsize, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		resources.TotalRAM = defaultTotalRAM
		resources.AvailableRAM = defaultTotalRAM / 2
		return resources, fmt.Errorf("sysctl hw.memsize: %w", err)
	}

	resources.TotalRAM = int64(memsize)
	resources.AvailableRAM = resources.TotalRAM / 2
	return resources, nil
}
