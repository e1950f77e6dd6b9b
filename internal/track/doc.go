// Package track owns multi-object tracking: per-frame association of
// detections to persistent identities via a constant-velocity Kalman
// motion model, two-stage cost-matrix matching (IoU then position
// distance), a greedy threshold-bounded assignment solver with an
// optional exact Hungarian solver, an explicit track lifecycle
// (tracked, lost, removed) with a pre-identity potential stage, camera
// motion compensation, and bounded-size housekeeping.
//
// The tracker is pure in-memory computation invoked synchronously once
// per frame; it owns no I/O, wire protocol, or CLI. Downstream
// consumers (the line-crossing counter in internal/count) read the
// returned track list and may set only the Counted marker.
package track
