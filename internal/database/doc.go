// Package database opens the PostgreSQL pool used by the activity sink
// when telemetry is written directly instead of posted to the collector.
package database
