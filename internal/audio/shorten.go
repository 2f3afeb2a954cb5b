package audio

import "math"

const (
	minKeepRatio  = 0.15
	maxKeepRatio  = 0.66
	trimEndsRatio = 0.1
)

// ShortenAudio keeps roughly keepRatio of the signal as evenly spaced chunks
// of patchSamples each. The ratio is clamped to [0.15, 0.66]. With trimEnds,
// the first and last 10% are discarded before chunking. The result never
// aliases in.
func ShortenAudio(in []float32, keepRatio float64, trimEnds bool, patchSamples int) []float32 {
	if keepRatio < minKeepRatio {
		keepRatio = minKeepRatio
	} else if keepRatio > maxKeepRatio {
		keepRatio = maxKeepRatio
	}
	if trimEnds {
		discard := int(math.Floor(trimEndsRatio * float64(len(in))))
		in = in[discard : len(in)-discard]
	}
	if len(in) == 0 {
		return nil
	}
	if patchSamples <= 0 {
		patchSamples = len(in)
	}

	keep := int(math.Ceil(float64(len(in)) * keepRatio))
	patches := int(math.Ceil(float64(keep) / float64(patchSamples)))
	if patches < 1 {
		patches = 1
	}
	skip := 0
	if patches > 1 {
		skip = (len(in) - keep) / (patches - 1)
	}

	out := make([]float32, 0, patches*patchSamples)
	start := 0
	for i := 0; i < patches && start < len(in); i++ {
		end := start + patchSamples
		if end > len(in) {
			end = len(in)
		}
		out = append(out, in[start:end]...)
		start = end + skip
	}
	return out
}
