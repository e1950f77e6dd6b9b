// Package count implements line-crossing counting over the tracker's
// output: per-track previous-position comparison against one or more
// ordered boundary thresholds with hysteresis, a history-based fallback
// for boundary skips, and a periodic catch-up sweep.
//
// The counter maintains its own state keyed by track identity and is
// independent of tracking internals; the only tracker field it writes
// is the Counted marker.
package count
