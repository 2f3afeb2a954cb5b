// Package main hosts the songlens CLI entrypoint and command graph.
//
// Commands resolve configuration once per invocation, build a logger from
// the [logging] section and hand the real work to internal/workflow,
// internal/export and internal/watch. Keep this package thin: add behavior to
// the internal packages first and surface it through a command or flag here.
package main
