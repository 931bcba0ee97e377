package config

import (
	"os"
	"path/filepath"
	"time"
)

// Documented defaults. Consumers rely on these exact values.
const (
	DefaultEndpointURL           = "https://dc.services.visualstudio.com/v2/track"
	DefaultSessionRenewal        = 30 * time.Minute
	DefaultSessionExpiration     = 24 * time.Hour
	DefaultConsoleLoggingLevel   = 1 // critical only
	DefaultTelemetryLoggingLevel = 0 // send nothing
	DefaultDiagnosticLogInterval = 10 * time.Second
	DefaultSamplingPercentage    = 100
	DefaultMaxAjaxCallsPerView   = 500
	DefaultMaxBatchSizeInBytes   = 102400
	DefaultMaxBatchInterval      = 15 * time.Second
)

// DefaultCorrelationHeaderExcludedDomains are the cloud blob-storage endpoints
// that never receive correlation headers.
func DefaultCorrelationHeaderExcludedDomains() []string {
	return []string{
		"*.blob.core.windows.net",
		"*.blob.core.chinacloudapi.cn",
		"*.blob.core.cloudapi.de",
		"*.blob.core.usgovcloudapi.net",
	}
}

// DefaultStorageDir is where session and user records live when unset.
func DefaultStorageDir() string {
	return filepath.Join(os.TempDir(), "insights")
}

// Resolve applies defaults and coercions to a possibly nil configuration.
// It never fails and never mutates its input.
func Resolve(partial *Configuration) *Resolved {
	var in Configuration
	if partial != nil {
		in = *partial
	}

	out := &Resolved{
		InstrumentationKey: in.InstrumentationKey,
		EndpointURL:        in.EndpointURL,
		StorageDir:         in.StorageDir,
	}
	if out.EndpointURL == "" {
		out.EndpointURL = DefaultEndpointURL
	}
	if out.StorageDir == "" {
		out.StorageDir = DefaultStorageDir()
	}

	// Session durations honour a positive caller value rather than always
	// resetting; see DESIGN.md.
	out.SessionRenewal = millisOr(in.SessionRenewalMs, DefaultSessionRenewal)
	out.SessionExpiration = millisOr(in.SessionExpirationMs, DefaultSessionExpiration)

	out.EnableDebug = in.EnableDebug.BoolOr(false)
	out.DisableExceptionTracking = in.DisableExceptionTracking.BoolOr(false)
	out.AutoTrackPageVisitTime = in.AutoTrackPageVisitTime.BoolOr(false)
	out.DisableAjaxTracking = in.DisableAjaxTracking.BoolOr(false)
	out.DisableCorrelationHeaders = in.DisableCorrelationHeaders.BoolOr(false)
	out.DisableFlushOnBeforeUnload = in.DisableFlushOnBeforeUnload.BoolOr(false)
	out.IsCookieUseDisabled = in.IsCookieUseDisabled.BoolOr(false)
	out.IsStorageUseDisabled = in.IsStorageUseDisabled.BoolOr(false)
	out.IsBrowserLinkTrackingEnabled = in.IsBrowserLinkTrackingEnabled.BoolOr(false)
	out.EnableCorsCorrelation = in.EnableCorsCorrelation.BoolOr(false)
	out.DisableTelemetry = in.DisableTelemetry.BoolOr(false)

	// Zero counts as absent for these three, matching `value || default`.
	out.ConsoleLoggingLevel = nonZeroOr(in.ConsoleLoggingLevel, DefaultConsoleLoggingLevel)
	out.TelemetryLoggingLevel = nonZeroOr(in.TelemetryLoggingLevel, DefaultTelemetryLoggingLevel)
	out.DiagnosticLogInterval = millisOr(in.DiagnosticLogInterval, DefaultDiagnosticLogInterval)

	out.SamplingPercentage = DefaultSamplingPercentage
	if v, ok := in.SamplingPercentage.Value(); ok && v > 0 && v < 100 {
		out.SamplingPercentage = v
	}

	out.MaxAjaxCallsPerView = DefaultMaxAjaxCallsPerView
	if v, ok := in.MaxAjaxCallsPerView.Value(); ok {
		out.MaxAjaxCallsPerView = int(v)
	}

	if in.CorrelationHeaderExcludedDomains != nil {
		out.CorrelationHeaderExcludedDomains = append([]string(nil), in.CorrelationHeaderExcludedDomains...)
	} else {
		out.CorrelationHeaderExcludedDomains = DefaultCorrelationHeaderExcludedDomains()
	}

	out.MaxBatchSizeInBytes = nonZeroOr(in.MaxBatchSizeInBytes, DefaultMaxBatchSizeInBytes)
	out.MaxBatchInterval = millisOr(in.MaxBatchInterval, DefaultMaxBatchInterval)

	return out
}

func nonZeroOr(n Number, def int) int {
	if v, ok := n.Value(); ok && v != 0 {
		return int(v)
	}
	return def
}

func millisOr(n Number, def time.Duration) time.Duration {
	if v, ok := n.Value(); ok && v > 0 {
		return time.Duration(v * float64(time.Millisecond))
	}
	return def
}
