package metrics

import (
	"time"

	"github.com/namelens/tubelens/internal/observability"
)

// Metric names. The exporter prefixes each with the telemetry namespace.
const (
	ResolverAttemptsTotal    = "resolver_attempts_total"
	ResolverDuration         = "resolver_duration_ms"
	ResolutionsTotal         = "resolutions_total"
	RateLimitRejectionsTotal = "rate_limit_rejections_total"
	MetadataLookupsTotal     = "metadata_lookups_total"
	HealthCheckTotal         = "app_health_check_total"
	HealthCheckDuration      = "app_health_check_duration_ms"
	ServerStartTime          = "app_server_start_time_seconds"
)

func count(name string, labels map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Counter(name, 1, labels)
	}
}

func observe(name string, d time.Duration, labels map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Histogram(name, d, labels)
	}
}

func label(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

// RecordResolverAttempt records one upstream call and its latency.
func RecordResolverAttempt(resolver string, success bool, duration time.Duration) {
	count(ResolverAttemptsTotal, map[string]string{
		"resolver": resolver,
		"outcome":  label(success, "success", "failure"),
	})
	observe(ResolverDuration, duration, map[string]string{"resolver": resolver})
}

// RecordResolution records a completed resolution by link source (api or generated).
func RecordResolution(source string) {
	count(ResolutionsTotal, map[string]string{"source": source})
}

// RecordRateLimited records a rejected admission.
func RecordRateLimited() {
	count(RateLimitRejectionsTotal, nil)
}

// RecordMetadataLookup records whether the oEmbed lookup produced data.
func RecordMetadataLookup(found bool) {
	count(MetadataLookupsTotal, map[string]string{"status": label(found, "found", "missing")})
}

// RecordHealthCheck records one checker run.
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	count(HealthCheckTotal, map[string]string{
		"check":  checkName,
		"status": label(healthy, "healthy", "unhealthy"),
	})
	observe(HealthCheckDuration, duration, map[string]string{"check": checkName})
}

// SetServerStartTime records the server start time as a Unix timestamp.
func SetServerStartTime(timestamp int64) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Gauge(ServerStartTime, float64(timestamp), nil)
	}
}
