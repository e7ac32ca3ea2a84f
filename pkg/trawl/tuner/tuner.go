// Package tuner detects system resources and derives the worker count and
// batch size for a search when the user does not set them.
package tuner

// SystemResources contains detected system resources.
type SystemResources struct {
	// CPUCores is the number of logical CPU cores available.
	CPUCores int

	// TotalRAM is the total physical RAM in bytes.
	TotalRAM int64

	// AvailableRAM is the available RAM in bytes. It may be an estimate.
	AvailableRAM int64
}

// defaultTotalRAM is assumed when memory cannot be detected.
const defaultTotalRAM = 8 * 1024 * 1024 * 1024
