package features

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"songlens/internal/config"
)

// Bundle is the model input derived from one song: one row of MelBandsSize
// log-compressed mel energies per analysis frame.
type Bundle struct {
	MelSpectrum  [][]float32
	FrameSize    int
	MelBandsSize int
	PatchSize    int
}

// Patches returns how many model patches the bundle spans, rounding up.
func (b Bundle) Patches() int {
	if b.PatchSize <= 0 || len(b.MelSpectrum) == 0 {
		return 0
	}
	return (len(b.MelSpectrum) + b.PatchSize - 1) / b.PatchSize
}

// Params sizes the extractor.
type Params struct {
	SampleRate int
	FrameSize  int
	HopSize    int
	MelBands   int
	PatchSize  int
}

// ParamsFromConfig reads extraction parameters from cfg.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		SampleRate: cfg.Analysis.SampleRate,
		FrameSize:  cfg.Extraction.FrameSize,
		HopSize:    cfg.Extraction.HopSize,
		MelBands:   cfg.Extraction.MelBands,
		PatchSize:  cfg.Extraction.PatchSize,
	}
}

// PatchSamples is the number of input samples covered by one model patch.
func (p Params) PatchSamples() int {
	return p.PatchSize * p.HopSize
}

// Extractor computes frame-wise log-mel spectra. It reuses internal buffers
// and must not be shared between goroutines.
type Extractor struct {
	params  Params
	window  []float64
	fft     *fourier.FFT
	filters [][]melWeight
	frame   []float64
	coeffs  []complex128
}

type melWeight struct {
	bin    int
	weight float64
}

// NewExtractor validates params and precomputes the window and filterbank.
func NewExtractor(p Params) (*Extractor, error) {
	switch {
	case p.SampleRate <= 0:
		return nil, fmt.Errorf("sample rate must be positive, got %d", p.SampleRate)
	case p.FrameSize < 2:
		return nil, fmt.Errorf("frame size must be at least 2, got %d", p.FrameSize)
	case p.HopSize <= 0:
		return nil, fmt.Errorf("hop size must be positive, got %d", p.HopSize)
	case p.MelBands <= 0:
		return nil, fmt.Errorf("mel bands must be positive, got %d", p.MelBands)
	case p.MelBands > p.FrameSize/2:
		return nil, fmt.Errorf("mel bands (%d) exceed spectrum bins for frame size %d", p.MelBands, p.FrameSize)
	case p.PatchSize <= 0:
		return nil, fmt.Errorf("patch size must be positive, got %d", p.PatchSize)
	}
	return &Extractor{
		params:  p,
		window:  hann(p.FrameSize),
		fft:     fourier.NewFFT(p.FrameSize),
		filters: melFilterbank(p.MelBands, p.FrameSize, p.SampleRate),
		frame:   make([]float64, p.FrameSize),
		coeffs:  make([]complex128, p.FrameSize/2+1),
	}, nil
}

// Params returns the parameters the extractor was built with.
func (e *Extractor) Params() Params {
	return e.params
}

// ComputeFrameWise slides a window over pcm every hopSize samples and returns
// one log-mel row per frame. Input shorter than a frame yields a single
// zero-padded frame.
func (e *Extractor) ComputeFrameWise(pcm []float32, hopSize int) (Bundle, error) {
	if len(pcm) == 0 {
		return Bundle{}, errors.New("empty audio buffer")
	}
	if hopSize <= 0 {
		hopSize = e.params.HopSize
	}
	n := e.params.FrameSize
	frames := 1
	if len(pcm) > n {
		frames += (len(pcm) - n) / hopSize
	}

	mel := make([][]float32, frames)
	mags := make([]float64, n/2+1)
	for i := 0; i < frames; i++ {
		start := i * hopSize
		for k := 0; k < n; k++ {
			if start+k < len(pcm) {
				e.frame[k] = float64(pcm[start+k]) * e.window[k]
			} else {
				e.frame[k] = 0
			}
		}
		e.coeffs = e.fft.Coefficients(e.coeffs, e.frame)
		for k, c := range e.coeffs {
			mags[k] = cmplx.Abs(c)
		}
		row := make([]float32, len(e.filters))
		for b, filter := range e.filters {
			var energy float64
			for _, w := range filter {
				energy += mags[w.bin] * w.weight
			}
			v := math.Log10(1 + 10000*energy)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return Bundle{}, fmt.Errorf("non-finite mel energy at frame %d band %d", i, b)
			}
			row[b] = float32(v)
		}
		mel[i] = row
	}

	return Bundle{
		MelSpectrum:  mel,
		FrameSize:    frames,
		MelBandsSize: e.params.MelBands,
		PatchSize:    e.params.PatchSize,
	}, nil
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// melFilterbank builds unit-height triangular filters spaced evenly on the
// mel scale between 0 Hz and Nyquist.
func melFilterbank(bands, frameSize, sampleRate int) [][]melWeight {
	bins := frameSize/2 + 1
	nyquist := float64(sampleRate) / 2
	maxMel := hzToMel(nyquist)
	edges := make([]float64, bands+2)
	for i := range edges {
		edges[i] = melToHz(maxMel * float64(i) / float64(bands+1))
	}
	binHz := float64(sampleRate) / float64(frameSize)

	filters := make([][]melWeight, bands)
	for b := 0; b < bands; b++ {
		lo, mid, hi := edges[b], edges[b+1], edges[b+2]
		var filter []melWeight
		for k := 0; k < bins; k++ {
			f := float64(k) * binHz
			var w float64
			switch {
			case f > lo && f <= mid:
				w = (f - lo) / (mid - lo)
			case f > mid && f < hi:
				w = (hi - f) / (hi - mid)
			}
			if w > 0 {
				filter = append(filter, melWeight{bin: k, weight: w})
			}
		}
		if len(filter) == 0 {
			// Narrow low bands can fall between FFT bins; use the nearest one.
			k := int(math.Round(mid / binHz))
			if k >= bins {
				k = bins - 1
			}
			filter = []melWeight{{bin: k, weight: 1}}
		}
		filters[b] = filter
	}
	return filters
}
