// Package worker provides isolated, message-only execution units.
//
// A Handle runs a Program on its own goroutine. The caller and the program
// share nothing but tagged Message values passed through unbounded mailboxes,
// so Post never blocks the caller and a slow program never stalls the
// orchestrator. Every message carries the song id it belongs to; routing
// responses back to the right song is the receiver's job.
package worker
