package keybpm

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// spectrogram returns magnitude spectra of hann-windowed frames. Input
// shorter than one frame yields no frames.
func spectrogram(pcm []float32, frameSize, hop int) [][]float64 {
	if len(pcm) < frameSize || hop <= 0 {
		return nil
	}
	window := make([]float64, frameSize)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(frameSize-1)))
	}
	fft := fourier.NewFFT(frameSize)
	frame := make([]float64, frameSize)
	coeffs := make([]complex128, frameSize/2+1)

	count := 1 + (len(pcm)-frameSize)/hop
	out := make([][]float64, count)
	for f := 0; f < count; f++ {
		start := f * hop
		for i := range frame {
			frame[i] = float64(pcm[start+i]) * window[i]
		}
		coeffs = fft.Coefficients(coeffs, frame)
		mags := make([]float64, len(coeffs))
		for i, c := range coeffs {
			mags[i] = cmplx.Abs(c)
		}
		out[f] = mags
	}
	return out
}
