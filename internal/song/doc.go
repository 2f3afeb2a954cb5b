// Package song holds the per-file analysis record and its state machine.
//
// A Record moves pending → processing → completed|error and never leaves a
// terminal state. It owns the open source file, the decoded buffer and the
// analysis timer; every exit path clears the timer.
package song
