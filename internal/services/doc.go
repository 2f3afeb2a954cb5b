// Package services defines shared utilities consumed by the analysis stages
// and the orchestrator.
//
// Key responsibilities:
//   - Context helpers that stamp song IDs, batch IDs, model names, session
//     and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     (decode, feature extraction, model init/prediction, timeout) so the
//     orchestrator can pick the right fallback and log consistent details.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
