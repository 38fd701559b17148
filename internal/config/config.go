package config

import (
	"github.com/aleister1102/driftwatch/internal/logger"
	"github.com/aleister1102/driftwatch/internal/models"
)

// GlobalConfig is the root configuration loaded from YAML or JSON.
type GlobalConfig struct {
	Log          logger.Config      `json:"log_config,omitempty" yaml:"log_config,omitempty"`
	Scheduler    SchedulerConfig    `json:"scheduler_config,omitempty" yaml:"scheduler_config,omitempty"`
	Worker       WorkerConfig       `json:"worker_config,omitempty" yaml:"worker_config,omitempty"`
	Fetch        FetchConfig        `json:"fetch_config,omitempty" yaml:"fetch_config,omitempty"`
	Browser      BrowserConfig      `json:"browser_config,omitempty" yaml:"browser_config,omitempty"`
	Storage      StorageConfig      `json:"storage_config,omitempty" yaml:"storage_config,omitempty"`
	Notification NotificationConfig `json:"notification_config,omitempty" yaml:"notification_config,omitempty"`
	API          APIConfig          `json:"api_config,omitempty" yaml:"api_config,omitempty"`
	Limiter      LimiterConfig      `json:"resource_limiter_config,omitempty" yaml:"resource_limiter_config,omitempty"`

	// Proxy table: name -> descriptor. The scheduler enforces each
	// descriptor's reuse_time_minimum between dispatches.
	Proxies      []models.ProxyDescriptor `json:"proxies,omitempty" yaml:"proxies,omitempty" validate:"omitempty,dive"`
	DefaultProxy string                   `json:"default_proxy,omitempty" yaml:"default_proxy,omitempty"`
}

// SchedulerConfig tunes the due-set scan loop.
type SchedulerConfig struct {
	RecheckIntervalSeconds int `json:"recheck_interval_seconds,omitempty" yaml:"recheck_interval_seconds,omitempty" validate:"omitempty,min=1"`
	MinRecheckSeconds      int `json:"min_recheck_seconds,omitempty" yaml:"min_recheck_seconds,omitempty" validate:"omitempty,min=1"`
	JitterSeconds          int `json:"jitter_seconds,omitempty" yaml:"jitter_seconds,omitempty" validate:"omitempty,min=0"`
	ScanIntervalSeconds    int `json:"scan_interval_seconds,omitempty" yaml:"scan_interval_seconds,omitempty" validate:"omitempty,min=1"`
	QueueCeiling           int `json:"queue_ceiling,omitempty" yaml:"queue_ceiling,omitempty" validate:"omitempty,min=1"`
}

// NewDefaultSchedulerConfig creates default scheduler configuration.
func NewDefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		RecheckIntervalSeconds: DefaultRecheckIntervalSeconds,
		MinRecheckSeconds:      DefaultMinRecheckSeconds,
		JitterSeconds:          DefaultJitterSeconds,
		ScanIntervalSeconds:    DefaultScanIntervalSeconds,
		QueueCeiling:           DefaultQueueCeiling,
	}
}

// WorkerConfig tunes the check worker pool.
type WorkerConfig struct {
	Count        int    `json:"count,omitempty" yaml:"count,omitempty" validate:"omitempty,min=1"`
	PoolStrategy string `json:"pool_strategy,omitempty" yaml:"pool_strategy,omitempty" validate:"omitempty,oneof=threads tasks"`
}

// NewDefaultWorkerConfig creates default worker configuration.
func NewDefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Count:        DefaultWorkerCount,
		PoolStrategy: DefaultPoolStrategy,
	}
}

// FetchConfig tunes the plain HTTP fetch backend.
type FetchConfig struct {
	DefaultBackend     string `json:"default_backend,omitempty" yaml:"default_backend,omitempty" validate:"omitempty,oneof=http browser"`
	TimeoutSeconds     int    `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty" validate:"omitempty,min=1"`
	UserAgent          string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	MaxRedirects       int    `json:"max_redirects,omitempty" yaml:"max_redirects,omitempty" validate:"omitempty,min=0"`
	EnableHTTP2        bool   `json:"enable_http2" yaml:"enable_http2"`
	InsecureSkipVerify bool   `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// NewDefaultFetchConfig creates default fetch configuration.
func NewDefaultFetchConfig() FetchConfig {
	return FetchConfig{
		DefaultBackend:     DefaultFetchBackend,
		TimeoutSeconds:     DefaultFetchTimeoutSecs,
		UserAgent:          DefaultUserAgent,
		MaxRedirects:       DefaultMaxRedirects,
		EnableHTTP2:        DefaultEnableHTTP2,
		InsecureSkipVerify: DefaultInsecureSkipVerify,
	}
}

// BrowserConfig tunes the headless browser fetch backend.
type BrowserConfig struct {
	Enabled             bool   `json:"enabled" yaml:"enabled"`
	ChromePath          string `json:"chrome_path,omitempty" yaml:"chrome_path,omitempty"`
	PoolSize            int    `json:"pool_size,omitempty" yaml:"pool_size,omitempty" validate:"omitempty,min=1"`
	PageLoadTimeoutSecs int    `json:"page_load_timeout_seconds,omitempty" yaml:"page_load_timeout_seconds,omitempty" validate:"omitempty,min=1"`
	WindowWidth         int    `json:"window_width,omitempty" yaml:"window_width,omitempty"`
	WindowHeight        int    `json:"window_height,omitempty" yaml:"window_height,omitempty"`
	CaptureScreenshots  bool   `json:"capture_screenshots" yaml:"capture_screenshots"`
	ExtraWaitSeconds    int    `json:"extra_wait_seconds,omitempty" yaml:"extra_wait_seconds,omitempty"`
}

// NewDefaultBrowserConfig creates default browser configuration.
func NewDefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Enabled:             false,
		PoolSize:            DefaultBrowserPoolSize,
		PageLoadTimeoutSecs: DefaultPageLoadTimeoutSecs,
		WindowWidth:         DefaultBrowserWindowWidth,
		WindowHeight:        DefaultBrowserWindowHeight,
		CaptureScreenshots:  DefaultCaptureScreenshots,
		ExtraWaitSeconds:    DefaultExtraWaitSeconds,
	}
}

// StorageConfig tunes the watch database and snapshot history store.
type StorageConfig struct {
	DatabasePath     string `json:"database_path,omitempty" yaml:"database_path,omitempty"`
	SnapshotBasePath string `json:"snapshot_base_path,omitempty" yaml:"snapshot_base_path,omitempty"`
	CompressionCodec string `json:"compression_codec,omitempty" yaml:"compression_codec,omitempty" validate:"omitempty,oneof=zstd gzip snappy none"`
}

// NewDefaultStorageConfig creates default storage configuration.
func NewDefaultStorageConfig() StorageConfig {
	return StorageConfig{
		DatabasePath:     DefaultDatabasePath,
		SnapshotBasePath: DefaultSnapshotBasePath,
		CompressionCodec: DefaultCompressionCodec,
	}
}

// NotificationConfig tunes the dispatch queue and webhook delivery.
type NotificationConfig struct {
	DefaultDestinations    []string `json:"default_destinations,omitempty" yaml:"default_destinations,omitempty" validate:"omitempty,dive,url"`
	Format                 string   `json:"format,omitempty" yaml:"format,omitempty" validate:"omitempty,oneof=text markdown html"`
	QueueSize              int      `json:"queue_size,omitempty" yaml:"queue_size,omitempty" validate:"omitempty,min=1"`
	DeliveryTimeoutSeconds int      `json:"delivery_timeout_seconds,omitempty" yaml:"delivery_timeout_seconds,omitempty" validate:"omitempty,min=1"`
}

// NewDefaultNotificationConfig creates default notification configuration.
func NewDefaultNotificationConfig() NotificationConfig {
	return NotificationConfig{
		Format:                 DefaultNotificationFormat,
		QueueSize:              DefaultNotificationQueueSize,
		DeliveryTimeoutSeconds: DefaultDeliveryTimeoutSeconds,
	}
}

// APIConfig tunes the ops/status HTTP surface.
type APIConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
}

// NewDefaultAPIConfig creates default API configuration.
func NewDefaultAPIConfig() APIConfig {
	return APIConfig{
		Enabled:    true,
		ListenAddr: DefaultAPIListenAddr,
	}
}

// LimiterConfig tunes the resource watchdog feeding scheduler backpressure.
type LimiterConfig struct {
	Enabled              bool    `json:"enabled" yaml:"enabled"`
	MaxMemoryMB          int     `json:"max_memory_mb,omitempty" yaml:"max_memory_mb,omitempty" validate:"omitempty,min=1"`
	MemoryThreshold      float64 `json:"memory_threshold,omitempty" yaml:"memory_threshold,omitempty" validate:"omitempty,gt=0,lte=1"`
	CPUThreshold         float64 `json:"cpu_threshold,omitempty" yaml:"cpu_threshold,omitempty" validate:"omitempty,gt=0,lte=1"`
	CheckIntervalSeconds int     `json:"check_interval_seconds,omitempty" yaml:"check_interval_seconds,omitempty" validate:"omitempty,min=1"`
}

// NewDefaultLimiterConfig creates default resource limiter configuration.
func NewDefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		Enabled:              false,
		MaxMemoryMB:          1024,
		MemoryThreshold:      0.8,
		CPUThreshold:         0.9,
		CheckIntervalSeconds: 30,
	}
}

// NewDefaultGlobalConfig creates the full default configuration.
func NewDefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		Log:          logger.NewDefaultConfig(),
		Scheduler:    NewDefaultSchedulerConfig(),
		Worker:       NewDefaultWorkerConfig(),
		Fetch:        NewDefaultFetchConfig(),
		Browser:      NewDefaultBrowserConfig(),
		Storage:      NewDefaultStorageConfig(),
		Notification: NewDefaultNotificationConfig(),
		API:          NewDefaultAPIConfig(),
		Limiter:      NewDefaultLimiterConfig(),
	}
}

// ProxyByName looks up a proxy descriptor, returning nil when absent.
func (gc *GlobalConfig) ProxyByName(name string) *models.ProxyDescriptor {
	for i := range gc.Proxies {
		if gc.Proxies[i].Name == name {
			return &gc.Proxies[i]
		}
	}
	return nil
}
