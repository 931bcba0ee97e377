package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "INSIGHTS"

// Configuration is the caller-supplied, possibly partial configuration.
// Every field may be absent; Resolve turns it into a Resolved value.
type Configuration struct {
	InstrumentationKey string `yaml:"instrumentationKey" envconfig:"INSTRUMENTATION_KEY"`
	EndpointURL        string `yaml:"endpointUrl" envconfig:"ENDPOINT_URL"`

	SessionRenewalMs    Number `yaml:"sessionRenewalMs" envconfig:"SESSION_RENEWAL_MS"`
	SessionExpirationMs Number `yaml:"sessionExpirationMs" envconfig:"SESSION_EXPIRATION_MS"`

	EnableDebug           Flag   `yaml:"enableDebug" envconfig:"ENABLE_DEBUG"`
	ConsoleLoggingLevel   Number `yaml:"consoleLoggingLevel" envconfig:"CONSOLE_LOGGING_LEVEL"`
	TelemetryLoggingLevel Number `yaml:"telemetryLoggingLevel" envconfig:"TELEMETRY_LOGGING_LEVEL"`
	DiagnosticLogInterval Number `yaml:"diagnosticLogInterval" envconfig:"DIAGNOSTIC_LOG_INTERVAL"`

	DisableExceptionTracking Flag   `yaml:"disableExceptionTracking" envconfig:"DISABLE_EXCEPTION_TRACKING"`
	AutoTrackPageVisitTime   Flag   `yaml:"autoTrackPageVisitTime" envconfig:"AUTO_TRACK_PAGE_VISIT_TIME"`
	SamplingPercentage       Number `yaml:"samplingPercentage" envconfig:"SAMPLING_PERCENTAGE"`

	DisableAjaxTracking Flag   `yaml:"disableAjaxTracking" envconfig:"DISABLE_AJAX_TRACKING"`
	MaxAjaxCallsPerView Number `yaml:"maxAjaxCallsPerView" envconfig:"MAX_AJAX_CALLS_PER_VIEW"`

	DisableCorrelationHeaders        Flag     `yaml:"disableCorrelationHeaders" envconfig:"DISABLE_CORRELATION_HEADERS"`
	CorrelationHeaderExcludedDomains []string `yaml:"correlationHeaderExcludedDomains" envconfig:"CORRELATION_HEADER_EXCLUDED_DOMAINS"`
	EnableCorsCorrelation            Flag     `yaml:"enableCorsCorrelation" envconfig:"ENABLE_CORS_CORRELATION"`

	DisableFlushOnBeforeUnload   Flag `yaml:"disableFlushOnBeforeUnload" envconfig:"DISABLE_FLUSH_ON_BEFORE_UNLOAD"`
	IsCookieUseDisabled          Flag `yaml:"isCookieUseDisabled" envconfig:"IS_COOKIE_USE_DISABLED"`
	IsStorageUseDisabled         Flag `yaml:"isStorageUseDisabled" envconfig:"IS_STORAGE_USE_DISABLED"`
	IsBrowserLinkTrackingEnabled Flag `yaml:"isBrowserLinkTrackingEnabled" envconfig:"IS_BROWSER_LINK_TRACKING_ENABLED"`

	MaxBatchSizeInBytes Number `yaml:"maxBatchSizeInBytes" envconfig:"MAX_BATCH_SIZE_IN_BYTES"`
	MaxBatchInterval    Number `yaml:"maxBatchInterval" envconfig:"MAX_BATCH_INTERVAL"`
	DisableTelemetry    Flag   `yaml:"disableTelemetry" envconfig:"DISABLE_TELEMETRY"`
	StorageDir          string `yaml:"storageDir" envconfig:"STORAGE_DIR"`
}

// Resolved is a fully populated configuration. Every boolean-like field holds
// a concrete bool and SamplingPercentage is within (0, 100].
type Resolved struct {
	InstrumentationKey string
	EndpointURL        string

	SessionRenewal    time.Duration
	SessionExpiration time.Duration

	EnableDebug           bool
	ConsoleLoggingLevel   int
	TelemetryLoggingLevel int
	DiagnosticLogInterval time.Duration

	DisableExceptionTracking bool
	AutoTrackPageVisitTime   bool
	SamplingPercentage       float64

	DisableAjaxTracking bool
	MaxAjaxCallsPerView int

	DisableCorrelationHeaders        bool
	CorrelationHeaderExcludedDomains []string
	EnableCorsCorrelation            bool

	DisableFlushOnBeforeUnload   bool
	IsCookieUseDisabled          bool
	IsStorageUseDisabled         bool
	IsBrowserLinkTrackingEnabled bool

	MaxBatchSizeInBytes int
	MaxBatchInterval    time.Duration
	DisableTelemetry    bool
	StorageDir          string
}

// Load reads the configuration from INSIGHTS_* environment variables.
func Load() (*Configuration, error) {
	var cfg Configuration
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadFile reads the configuration from a YAML document.
func LoadFile(path string) (*Configuration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML document.
func Parse(raw []byte) (*Configuration, error) {
	var cfg Configuration
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// LoadResolved loads from the file at path when non-empty, otherwise from the
// environment, and resolves defaults.
func LoadResolved(path string) (*Resolved, error) {
	var (
		cfg *Configuration
		err error
	)
	if path != "" {
		cfg, err = LoadFile(path)
	} else {
		cfg, err = Load()
	}
	if err != nil {
		return nil, err
	}
	return Resolve(cfg), nil
}
