// Package types defines the shared data model for the storycache engine:
// content categories, cache entries and their metadata, per-tier statistics,
// and the snapshot types exchanged with telemetry sinks.
package types
