package features_test

import (
	"math"
	"testing"

	"songlens/internal/features"
)

func defaultParams() features.Params {
	return features.Params{SampleRate: 16000, FrameSize: 512, HopSize: 256, MelBands: 96, PatchSize: 187}
}

func sine(freq float64, rate, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestComputeFrameWiseShapes(t *testing.T) {
	ext, err := features.NewExtractor(defaultParams())
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	bundle, err := ext.ComputeFrameWise(sine(440, 16000, 16000), 256)
	if err != nil {
		t.Fatalf("ComputeFrameWise: %v", err)
	}
	wantFrames := 1 + (16000-512)/256
	if bundle.FrameSize != wantFrames || len(bundle.MelSpectrum) != wantFrames {
		t.Fatalf("expected %d frames, got %d/%d", wantFrames, bundle.FrameSize, len(bundle.MelSpectrum))
	}
	if bundle.MelBandsSize != 96 || len(bundle.MelSpectrum[0]) != 96 {
		t.Fatalf("unexpected band count %d", len(bundle.MelSpectrum[0]))
	}
	if bundle.Patches() != 1 {
		t.Fatalf("expected 1 patch, got %d", bundle.Patches())
	}

	// The band containing 440 Hz should carry more energy than the top band.
	row := bundle.MelSpectrum[10]
	peak := 0
	for i, v := range row {
		if v > row[peak] {
			peak = i
		}
	}
	if peak > 40 {
		t.Fatalf("expected a low-band peak for 440 Hz, got band %d", peak)
	}
}

func TestComputeFrameWiseShortInputPads(t *testing.T) {
	ext, err := features.NewExtractor(defaultParams())
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	bundle, err := ext.ComputeFrameWise([]float32{0.1, 0.2, 0.3}, 0)
	if err != nil {
		t.Fatalf("ComputeFrameWise: %v", err)
	}
	if len(bundle.MelSpectrum) != 1 {
		t.Fatalf("expected one padded frame, got %d", len(bundle.MelSpectrum))
	}
}

func TestComputeFrameWiseRejectsEmpty(t *testing.T) {
	ext, err := features.NewExtractor(defaultParams())
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	if _, err := ext.ComputeFrameWise(nil, 256); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestNewExtractorValidates(t *testing.T) {
	cases := []features.Params{
		{SampleRate: 0, FrameSize: 512, HopSize: 256, MelBands: 96, PatchSize: 187},
		{SampleRate: 16000, FrameSize: 1, HopSize: 256, MelBands: 96, PatchSize: 187},
		{SampleRate: 16000, FrameSize: 512, HopSize: 0, MelBands: 96, PatchSize: 187},
		{SampleRate: 16000, FrameSize: 64, HopSize: 32, MelBands: 96, PatchSize: 187},
		{SampleRate: 16000, FrameSize: 512, HopSize: 256, MelBands: 96, PatchSize: 0},
	}
	for i, p := range cases {
		if _, err := features.NewExtractor(p); err == nil {
			t.Fatalf("case %d: expected validation error for %+v", i, p)
		}
	}
}
