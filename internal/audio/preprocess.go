package audio

import "math"

// Preprocess downmixes pcm to mono, resamples it to targetRate and scales it
// down when the peak exceeds full scale. The input is not modified.
func Preprocess(pcm PCM, targetRate int) []float32 {
	mono := Downmix(pcm)
	if targetRate > 0 && pcm.SampleRate > 0 && targetRate != pcm.SampleRate {
		mono = Resample(mono, pcm.SampleRate, targetRate)
	}
	normalizePeak(mono)
	return mono
}

// Downmix averages interleaved channels into a new mono slice.
func Downmix(pcm PCM) []float32 {
	channels := pcm.Channels
	if channels <= 1 {
		out := make([]float32, len(pcm.Samples))
		copy(out, pcm.Samples)
		return out
	}
	frames := len(pcm.Samples) / channels
	out := make([]float32, frames)
	scale := 1 / float32(channels)
	for i := 0; i < frames; i++ {
		var sum float32
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += pcm.Samples[base+c]
		}
		out[i] = sum * scale
	}
	return out
}

// Resample converts mono samples from rateIn to rateOut. Downsampling
// averages every input sample that falls into an output slot; upsampling
// interpolates linearly.
func Resample(in []float32, rateIn, rateOut int) []float32 {
	if rateIn <= 0 || rateOut <= 0 || rateIn == rateOut || len(in) == 0 {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}
	ratio := float64(rateIn) / float64(rateOut)
	n := int(math.Round(float64(len(in)) / ratio))
	if n == 0 {
		return nil
	}
	out := make([]float32, n)
	if ratio < 1 {
		for i := range out {
			pos := float64(i) * ratio
			j := int(pos)
			if j >= len(in)-1 {
				out[i] = in[len(in)-1]
				continue
			}
			frac := float32(pos - float64(j))
			out[i] = in[j]*(1-frac) + in[j+1]*frac
		}
		return out
	}
	start := 0
	for i := range out {
		end := int(math.Round(float64(i+1) * ratio))
		if end > len(in) {
			end = len(in)
		}
		var sum float32
		count := 0
		for k := start; k < end; k++ {
			sum += in[k]
			count++
		}
		if count > 0 {
			out[i] = sum / float32(count)
		} else if start > 0 {
			out[i] = in[start-1]
		}
		start = end
	}
	return out
}

func normalizePeak(samples []float32) {
	var peak float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	if peak <= 1 {
		return
	}
	scale := 1 / peak
	for i := range samples {
		samples[i] *= scale
	}
}
