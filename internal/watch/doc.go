// Package watch turns a drop folder into analysis batches. New or rewritten
// audio files are collected until the folder has been quiet for the
// debounce period and then handed over together.
package watch
