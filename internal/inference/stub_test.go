package inference_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"songlens/internal/features"
	"songlens/internal/inference"
)

// stubBackend scores a bundle as FrameSize/100 on the first class and the
// complement on the second.
type stubBackend struct {
	initErr    error
	loadDelay  time.Duration
	failModels map[string]error
	predictErr error
	panicOn    int
	panicLoad  bool

	mu    sync.Mutex
	loads int
}

func (b *stubBackend) Init(context.Context) error { return b.initErr }

func (b *stubBackend) Load(ctx context.Context, model string) (inference.Predictor, error) {
	b.mu.Lock()
	b.loads++
	b.mu.Unlock()
	if b.panicLoad {
		panic("corrupt model file " + model)
	}
	if b.loadDelay > 0 {
		select {
		case <-time.After(b.loadDelay):
		case <-ctx.Done():
		}
	}
	if err := b.failModels[model]; err != nil {
		return nil, err
	}
	return &stubPredictor{backend: b}, nil
}

func (b *stubBackend) loadCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loads
}

type stubPredictor struct {
	backend *stubBackend
}

func (p *stubPredictor) Predict(_ context.Context, bundle features.Bundle, zeroPad bool) ([][]float64, error) {
	if !zeroPad {
		return [][]float64{{0.5, 0.5}}, nil
	}
	if p.backend.predictErr != nil {
		return nil, p.backend.predictErr
	}
	if p.backend.panicOn > 0 && bundle.FrameSize == p.backend.panicOn {
		panic("stub predictor exploded")
	}
	v := float64(bundle.FrameSize) / 100
	return [][]float64{{v, 1 - v}}, nil
}

func (p *stubPredictor) Close() error { return nil }

func bundleFor(frames int) features.Bundle {
	mel := make([][]float32, frames)
	for i := range mel {
		mel[i] = make([]float32, 4)
	}
	return features.Bundle{MelSpectrum: mel, FrameSize: frames, MelBandsSize: 4, PatchSize: 4}
}

func testOptions() inference.ProgramOptions {
	return inference.ProgramOptions{
		LoadTimeout:   2 * time.Second,
		WarmupTimeout: 2 * time.Second,
		PatchSize:     4,
		MelBands:      4,
	}
}

var errStubInit = errors.New("runtime missing")
