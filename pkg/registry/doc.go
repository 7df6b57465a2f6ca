// Package registry keeps the local view of in-flight scans.
//
// The Registry maps task ids to their last known ScanRecord, preserving the
// order in which ids were first seen. Every operation is idempotent so that
// duplicated or out of order events delivered by the live channel cannot
// corrupt the view: re-inserting an id overwrites it and completing an unknown
// id is a no-op.
//
// Tails is the per-scan output extension point. It keeps the last lines of
// output for each task in a bounded, expiring cache and never touches the
// Registry.
package registry
