// Package services defines shared utilities consumed by the pipeline stages and
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp the catalog unit index, stage names, and the
//     batch run identifier for logging.
//   - Structured error markers plus the Wrap helper, and StageError, which the
//     scheduler treats as fatal for the whole batch.
//
// Use these helpers when wiring new stage logic so error reporting stays
// uniform across the pipeline.
package services
