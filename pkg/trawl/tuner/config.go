package tuner

// Worker limits.
const (
	// minThreads keeps some parallelism on single-core machines, since
	// directory reads spend most of their time waiting on the filesystem.
	minThreads = 2

	// maxThreads caps the pool to avoid excessive context switching.
	maxThreads = 64

	// threadsPerCore is the oversubscription factor for I/O bound workers.
	threadsPerCore = 2
)

// Batch sizing.
const (
	// DefaultBatchSize is the number of directories handed to one job when
	// memory cannot inform the choice.
	DefaultBatchSize = 100

	minBatchSize = 10
	maxBatchSize = 1000

	// ramPerBatchUnit is the available RAM that buys one more directory
	// per batch. Larger batches keep more paths and results in flight.
	ramPerBatchUnit = 40 * 1024 * 1024
)

// OptimalConfig is the tuned search configuration.
type OptimalConfig struct {
	// Threads is the number of pool workers.
	Threads int

	// BatchSize is the number of directories per pool job.
	BatchSize int
}

// Calculate derives a configuration from resources.
//
//   - Threads: NumCPU * 2, clamped to [2, 64].
//   - BatchSize: one directory per 40 MiB of available RAM, clamped to
//     [10, 1000]; unknown RAM yields DefaultBatchSize.
func Calculate(resources SystemResources) OptimalConfig {
	threads := resources.CPUCores * threadsPerCore
	threads = max(threads, minThreads)
	threads = min(threads, maxThreads)

	return OptimalConfig{
		Threads:   threads,
		BatchSize: calculateBatchSize(resources.AvailableRAM),
	}
}

// CalculateWithOverrides applies user overrides to the calculated config.
// Values of 0 or below keep the calculated value; positive values are used
// as given, without clamping.
func CalculateWithOverrides(resources SystemResources, threads, batchSize int) OptimalConfig {
	cfg := Calculate(resources)

	if threads > 0 {
		cfg.Threads = threads
	}
	if batchSize > 0 {
		cfg.BatchSize = batchSize
	}
	return cfg
}

func calculateBatchSize(availableRAM int64) int {
	if availableRAM <= 0 {
		return DefaultBatchSize
	}
	size := int(availableRAM / ramPerBatchUnit)
	size = max(size, minBatchSize)
	size = min(size, maxBatchSize)
	return size
}
