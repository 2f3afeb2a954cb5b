package audio

import "time"

// PCM is interleaved 32-bit float audio.
type PCM struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames (samples per channel).
func (p PCM) Frames() int {
	if p.Channels <= 0 {
		return len(p.Samples)
	}
	return len(p.Samples) / p.Channels
}

// Duration returns the playback length of the buffer.
func (p PCM) Duration() time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(p.Frames()) / float64(p.SampleRate) * float64(time.Second))
}

// Empty reports whether the buffer carries no samples.
func (p PCM) Empty() bool {
	return len(p.Samples) == 0
}
