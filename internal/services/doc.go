// Package services defines shared utilities consumed by the workflow stages
// and the external converter clients.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, job sequence numbers, source paths,
//     stage names, and chunk indexes for logging.
//   - Structured error markers plus the Wrap helper, and Kind which maps a
//     failure to the name shown in reports and the ledger.
//   - The Executor abstraction that makes external command execution testable.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
