package keybpm

import "fmt"

// Result is the key and tempo attached to a song.
type Result struct {
	Key   string
	Scale string
	BPM   float64
}

// Sentinel is the value reported when key or tempo cannot be estimated.
func Sentinel() Result {
	return Result{Key: "?", Scale: "?", BPM: 0}
}

// IsSentinel reports whether r carries no estimate.
func (r Result) IsSentinel() bool {
	return r == Sentinel()
}

// KeyLabel formats "A major", or "" when the key is unknown.
func (r Result) KeyLabel() string {
	if r.Key == "" || r.Key == "?" {
		return ""
	}
	return fmt.Sprintf("%s %s", r.Key, r.Scale)
}
