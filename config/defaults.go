package config

import "time"

// Default runtime limits and guardrails for the biofarmaka analytics server.
// They are referenced by internal/runtime and internal/ingest and can be
// overridden through Load (environment, .env file) or CLI flags.

const (
	// Concurrency
	DefaultMaxConcurrentRequests = 10
	DefaultMaxConcurrentLoads    = 1

	// Row limits
	DefaultPreviewRowLimit = 10 // First 10 rows by default
	DefaultMaxPageSize     = 500
	DefaultTopN            = 10
)

const (
	// Timeouts
	DefaultOperationTimeout      = 30 * time.Second
	DefaultAcquireRequestTimeout = 2 * time.Second
	DefaultShutdownTimeout       = 5 * time.Second
)

const (
	// Snapshot cache
	DefaultSnapshotIdleTTL       = 30 * time.Minute
	DefaultSnapshotCleanupPeriod = time.Minute
)

const (
	// Sources
	DefaultDataDir      = "data"
	DefaultHTTPAddr     = ":8080"
	DefaultLogLevel     = "info"
	PrimarySourceName   = "dataset_final"
	ClusterSourcePrefix = "cluster_"
)

// DefaultClusterYears lists the yearly cluster sources loaded alongside the primary table.
var DefaultClusterYears = []int{2022, 2023, 2024}
