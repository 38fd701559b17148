package config

// Scheduler defaults
const (
	DefaultRecheckIntervalSeconds = 3600
	DefaultMinRecheckSeconds      = 20
	DefaultJitterSeconds          = 0
	DefaultScanIntervalSeconds    = 1
	DefaultQueueCeiling           = 2000
)

// Worker defaults
const (
	DefaultWorkerCount  = 10
	DefaultPoolStrategy = "threads"
)

// Fetch defaults
const (
	DefaultFetchBackend       = "http"
	DefaultFetchTimeoutSecs   = 45
	DefaultUserAgent          = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultMaxRedirects       = 10
	DefaultEnableHTTP2        = true
	DefaultInsecureSkipVerify = false
)

// Browser backend defaults
const (
	DefaultBrowserPoolSize        = 2
	DefaultPageLoadTimeoutSecs    = 60
	DefaultBrowserWindowWidth     = 1280
	DefaultBrowserWindowHeight    = 1024
	DefaultCaptureScreenshots     = true
	DefaultExtraWaitSeconds       = 2
)

// Storage defaults
const (
	DefaultDatabasePath     = "data/driftwatch.db"
	DefaultSnapshotBasePath = "data/history"
	DefaultCompressionCodec = "zstd"
)

// Notification defaults
const (
	DefaultNotificationFormat      = "text"
	DefaultNotificationQueueSize   = 256
	DefaultDeliveryTimeoutSeconds  = 20
	DefaultNotificationDebugLines  = 100
)

// API defaults
const (
	DefaultAPIListenAddr = "127.0.0.1:5000"
)

// Environment variable overrides consumed at load time.
const (
	EnvConfigPath         = "DRIFTWATCH_CONFIG_PATH"
	EnvMinRecheckSeconds  = "DRIFTWATCH_MIN_RECHECK_SECONDS"
	EnvWorkerCount        = "DRIFTWATCH_WORKER_COUNT"
)
