// Package workflow coordinates song analysis sessions.
//
// The Manager owns the long-lived feature extraction stage and inference
// pool and shares them across batches and sessions. Analyze expands the
// input into audio files, opens a session and drives every song through
// decode, preprocessing, key/BPM estimation, feature extraction and model
// fan-out via the batch scheduler. Worker replies are routed back to song
// records by song id through one dispatcher per stage; replies for unknown
// or settled records are dropped.
//
// The query surface (Current, Select, Records, Record, Status) reads the
// active session and stays valid after batches rotate, although decoded
// buffers are released as soon as a batch settles.
package workflow
