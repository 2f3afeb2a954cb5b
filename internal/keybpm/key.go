package keybpm

import "math"

const (
	keyFrameSize = 4096
	keyHopSize   = 2048
	minPitchHz   = 55.0
	maxPitchHz   = 5000.0
)

var pitchNames = [12]string{"C", "C#", "D", "Eb", "E", "F", "F#", "G", "Ab", "A", "Bb", "B"}

// Krumhansl-Kessler probe-tone ratings, tonic first.
var (
	majorProfile = [12]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	minorProfile = [12]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

// chromagram folds spectral energy into 12 pitch classes with C at index 0.
func chromagram(frames [][]float64, sampleRate, frameSize int) ([12]float64, bool) {
	var chroma [12]float64
	binHz := float64(sampleRate) / float64(frameSize)
	for _, mags := range frames {
		for bin := 1; bin < len(mags); bin++ {
			hz := float64(bin) * binHz
			if hz < minPitchHz || hz > maxPitchHz {
				continue
			}
			midi := 69 + 12*math.Log2(hz/440)
			pc := int(math.Round(midi)) % 12
			if pc < 0 {
				pc += 12
			}
			chroma[pc] += mags[bin] * mags[bin]
		}
	}
	var total float64
	for _, v := range chroma {
		total += v
	}
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return chroma, false
	}
	return chroma, true
}

// estimateKey picks the tonic and mode whose rotated profile correlates best
// with chroma.
func estimateKey(chroma [12]float64) (key, scale string, ok bool) {
	best := math.Inf(-1)
	for tonic := 0; tonic < 12; tonic++ {
		for _, mode := range []struct {
			name    string
			profile *[12]float64
		}{{"major", &majorProfile}, {"minor", &minorProfile}} {
			var rotated [12]float64
			for i := range rotated {
				rotated[i] = mode.profile[(i-tonic+12)%12]
			}
			r := pearson(chroma[:], rotated[:])
			if r > best {
				best = r
				key, scale = pitchNames[tonic], mode.name
			}
		}
	}
	if math.IsNaN(best) || math.IsInf(best, 0) {
		return "", "", false
	}
	return key, scale, true
}

func pearson(x, y []float64) float64 {
	n := float64(len(x))
	var mx, my float64
	for i := range x {
		mx += x[i]
		my += y[i]
	}
	mx /= n
	my /= n
	var sxy, sxx, syy float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN()
	}
	return sxy / math.Sqrt(sxx*syy)
}
