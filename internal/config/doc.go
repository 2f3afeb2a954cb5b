// Package config loads, normalizes, and validates songlens configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SONGLENS_MODELS_DIR and the S3 credential variables. The Config type
// centralizes every knob the CLI, the orchestrator and its stages need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
