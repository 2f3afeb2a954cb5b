// Package export writes analysis results as CSV and optionally uploads the
// file to S3-compatible object storage.
package export
