// Package ledger persists conversion run history in SQLite.
//
// Each run is one row in runs, keyed by its UUID. The workflow manager upserts
// every job after each wave barrier; a status change also appends a row to
// job_events so the history command can show how a job moved through the
// stages. Schema changes bump schemaVersion in schema.go; users delete the
// ledger file to adopt a new schema.
package ledger
