package keybpm

import "math"

const (
	tempoFrameSize = 1024
	tempoHopSize   = 128
	minBPM         = 50.0
	maxBPM         = 210.0
	preferredBPM   = 120.0
)

// onsetEnvelope is the half-wave rectified spectral flux of log magnitudes,
// mean-removed.
func onsetEnvelope(frames [][]float64) []float64 {
	if len(frames) < 2 {
		return nil
	}
	env := make([]float64, len(frames)-1)
	var mean float64
	for f := 1; f < len(frames); f++ {
		var flux float64
		for bin := range frames[f] {
			d := math.Log1p(100*frames[f][bin]) - math.Log1p(100*frames[f-1][bin])
			if d > 0 {
				flux += d
			}
		}
		env[f-1] = flux
		mean += flux
	}
	mean /= float64(len(env))
	for i := range env {
		env[i] -= mean
	}
	return env
}

// estimateBPM autocorrelates the onset envelope over the lags that map to
// the accepted tempo range. Candidates are weighted toward 120 BPM on a log
// scale to settle octave ambiguity and the peak lag is refined by parabolic
// interpolation.
func estimateBPM(env []float64, framesPerSecond float64) (float64, bool) {
	minLag := int(math.Floor(60 * framesPerSecond / maxBPM))
	maxLag := int(math.Ceil(60 * framesPerSecond / minBPM))
	if minLag < 1 {
		minLag = 1
	}
	if maxLag+1 >= len(env) {
		return 0, false
	}

	ac := make([]float64, maxLag+2)
	for lag := minLag - 1; lag <= maxLag+1; lag++ {
		if lag < 0 {
			continue
		}
		var sum float64
		for i := 0; i+lag < len(env); i++ {
			sum += env[i] * env[i+lag]
		}
		ac[lag] = sum
	}

	bestLag, bestScore := 0, 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		if ac[lag] <= 0 {
			continue
		}
		bpm := 60 * framesPerSecond / float64(lag)
		octaves := math.Log2(bpm / preferredBPM)
		score := ac[lag] * math.Exp(-0.5*octaves*octaves)
		if score > bestScore {
			bestLag, bestScore = lag, score
		}
	}
	if bestLag == 0 {
		return 0, false
	}

	lag := float64(bestLag)
	if bestLag > 0 && bestLag+1 < len(ac) {
		a, b, c := ac[bestLag-1], ac[bestLag], ac[bestLag+1]
		if denom := a - 2*b + c; denom < 0 {
			lag += 0.5 * (a - c) / denom
		}
	}
	bpm := 60 * framesPerSecond / lag
	if bpm < minBPM || bpm > maxBPM || math.IsNaN(bpm) {
		return 0, false
	}
	return bpm, true
}
