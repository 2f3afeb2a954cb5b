// Package features computes log-mel feature bundles on a background worker.
//
// The Extractor is pure computation. Stage wraps it in worker handles so the
// orchestrator can request features for many songs at once and receive each
// answer tagged with the song it belongs to.
package features
