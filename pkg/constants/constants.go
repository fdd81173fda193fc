// Package constants provides shared constants for the goal-probability application.
package constants

import "time"

// DateTimeLayout is the format expected in config files and request payloads for
// goal target dates and is also the output date format.
const DateTimeLayout = "2006-01"

// Financial constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// DecimalPrecision is the precision for currency rounding (2 decimal places)
	DecimalPrecision = 100

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0

	// CurrencyTolerance is the tolerance for currency comparisons (1 cent)
	CurrencyTolerance = 0.01

	// WeightTolerance is the allowed drift of allocation weights from 1.0
	WeightTolerance = 0.001
)

// Simulation defaults
const (
	// DefaultIterations is the number of trajectories per evaluation. Fewer than
	// MinStableIterations produce unstable probability estimates.
	DefaultIterations = 500

	// MinStableIterations is the smallest iteration count accepted without a
	// configuration warning.
	MinStableIterations = 300

	// DefaultSeed is the base random seed used when none is supplied.
	DefaultSeed int64 = 42

	// DefaultParallelThreshold is the iteration count above which batches fan out.
	DefaultParallelThreshold = 200

	// DefaultSuccessThreshold is the share of target that counts as partial success.
	DefaultSuccessThreshold = 0.8

	// DefaultRiskProfile selects the parameter row when none is configured.
	DefaultRiskProfile = "moderate"
)

// Cache defaults
const (
	// DefaultCacheEntries bounds the in-memory result cache.
	DefaultCacheEntries = 256

	// DefaultCacheTTL is the lifetime of a cached simulation result.
	DefaultCacheTTL = time.Hour

	// DefaultJanitorSchedule is the cron spec for purging expired entries.
	DefaultJanitorSchedule = "@every 5m"

	// DefaultRedisPrefix namespaces persisted cache keys.
	DefaultRedisPrefix = "goalprob"
)

// Ranking defaults
const (
	// DefaultMaxCandidates bounds the adjustment catalogue per ranking call.
	DefaultMaxCandidates = 16

	// DefaultRankingConcurrency bounds concurrent candidate evaluations.
	DefaultRankingConcurrency = 4
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON is the JSON output format
	OutputFormatJSON = "json"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix prefixes environment overrides of configuration keys.
	EnvPrefix = "GOALPROB"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the API
	DefaultServerAddress = ":8080"

	// DefaultMaxBodyBytes is the default maximum request body size (256 KB)
	DefaultMaxBodyBytes int64 = 256 * 1024

	// DefaultShutdownTimeout is how long in-flight requests get to finish on shutdown.
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultRankRatePerSecond limits ranking requests, each of which runs many simulations.
	DefaultRankRatePerSecond = 2.0

	// DefaultRankBurst is the burst allowance for ranking requests.
	DefaultRankBurst = 4
)
