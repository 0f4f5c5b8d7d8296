package internaldefs

import (
	"github.com/ledgerlane/sessionkit"
)

// CounterDef names one counter for exporters.
type CounterDef struct {
	ID   sessionkit.MetricID
	Name string
	Help string
}

// HistogramDef names one histogram for exporters.
type HistogramDef struct {
	ID   sessionkit.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: sessionkit.MetricBootAuthenticated, Name: "sessionkit_boot_authenticated_total", Help: "Boots that ended signed in."},
	{ID: sessionkit.MetricBootUnauthenticated, Name: "sessionkit_boot_unauthenticated_total", Help: "Boots that ended signed out."},
	{ID: sessionkit.MetricLoginSuccess, Name: "sessionkit_login_success_total", Help: "Successful logins."},
	{ID: sessionkit.MetricLoginFailure, Name: "sessionkit_login_failure_total", Help: "Failed logins."},
	{ID: sessionkit.MetricRegisterSuccess, Name: "sessionkit_register_success_total", Help: "Successful registrations."},
	{ID: sessionkit.MetricRegisterFailure, Name: "sessionkit_register_failure_total", Help: "Failed registrations."},
	{ID: sessionkit.MetricLogout, Name: "sessionkit_logout_total", Help: "Explicit logouts."},
	{ID: sessionkit.MetricAuthorizationFailure, Name: "sessionkit_authorization_failure_total", Help: "Sessions torn down after the server rejected the credential."},
	{ID: sessionkit.MetricRemoteLogout, Name: "sessionkit_remote_logout_total", Help: "Logouts observed from another instance."},
	{ID: sessionkit.MetricRemoteLogin, Name: "sessionkit_remote_login_total", Help: "Sessions adopted from another instance."},
	{ID: sessionkit.MetricReconcileSuccess, Name: "sessionkit_reconcile_success_total", Help: "Profile reconciliations applied."},
	{ID: sessionkit.MetricReconcileFailure, Name: "sessionkit_reconcile_failure_total", Help: "Profile reconciliations that failed."},
	{ID: sessionkit.MetricReconcileDiscarded, Name: "sessionkit_reconcile_discarded_total", Help: "Profile reconciliations superseded by a newer write."},
	{ID: sessionkit.MetricIdentityUpdated, Name: "sessionkit_identity_updated_total", Help: "Identity updates committed."},
	{ID: sessionkit.MetricSnapshotCorrupt, Name: "sessionkit_snapshot_corrupt_total", Help: "Persisted profiles that could not be decoded."},
	{ID: sessionkit.MetricExpiredCredential, Name: "sessionkit_expired_credential_total", Help: "Expired credentials dropped at boot."},
	{ID: sessionkit.MetricRefreshThrottled, Name: "sessionkit_refresh_throttled_total", Help: "Manual refreshes refused by the throttle."},
}

// HistogramDefs lists every histogram.
var HistogramDefs = []HistogramDef{
	{ID: sessionkit.MetricReconcileLatency, Name: "sessionkit_reconcile_latency_seconds", Help: "Profile fetch latency."},
}

// EventsDroppedName is the counter for events shed by the dispatcher.
const EventsDroppedName = "sessionkit_events_dropped_total"

// HistogramBounds are the bucket upper bounds in seconds, matching
// sessionkit.LatencyBucketBounds.
var HistogramBounds = []string{
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds in a form usable in metric names.
var HistogramBoundSuffix = []string{
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
