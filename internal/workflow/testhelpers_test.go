package workflow

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"songlens/internal/audio"
	"songlens/internal/batch"
	"songlens/internal/config"
	"songlens/internal/features"
	"songlens/internal/inference"
	"songlens/internal/keybpm"
	"songlens/internal/logging"
	"songlens/internal/song"
	"songlens/internal/testsupport"
)

var errBadAudio = errors.New("stub decoder: unsupported stream")

// fakeDecoder returns one second of a 440 Hz tone at the analysis rate for
// any source that does not start with "BAD". A non-nil hold blocks every
// decode until it is closed.
type fakeDecoder struct {
	rate int
	hold chan struct{}

	mu    sync.Mutex
	calls int
}

func (d *fakeDecoder) Decode(_ context.Context, src io.Reader) (audio.PCM, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if d.hold != nil {
		<-d.hold
	}
	raw, err := io.ReadAll(src)
	if err != nil {
		return audio.PCM{}, err
	}
	if bytes.HasPrefix(raw, []byte("BAD")) {
		return audio.PCM{}, errBadAudio
	}
	samples := make([]float32, d.rate)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(d.rate)))
	}
	return audio.PCM{Samples: samples, SampleRate: d.rate, Channels: 1}, nil
}

type fakeKeys struct{}

func (fakeKeys) Compute([]float32) keybpm.Result {
	return keybpm.Result{Key: "A", Scale: "major", BPM: 120}
}

// stubBackend loads a predictor that scores every patch 0.8 on both classes.
type stubBackend struct {
	failModels map[string]error
}

func (b *stubBackend) Init(context.Context) error { return nil }

func (b *stubBackend) Load(_ context.Context, model string) (inference.Predictor, error) {
	if err := b.failModels[model]; err != nil {
		return nil, err
	}
	return stubPredictor{}, nil
}

type stubPredictor struct{}

func (stubPredictor) Predict(context.Context, features.Bundle, bool) ([][]float64, error) {
	return [][]float64{{0.8, 0.8}}, nil
}

func (stubPredictor) Close() error { return nil }

// recordingDisplay counts display calls.
type recordingDisplay struct {
	mu        sync.Mutex
	results   []song.View
	errors    []string
	alerts    []string
	progress  []batch.Progress
	summaries [][]song.View
	resets    int
}

func (d *recordingDisplay) DisplayResults(v song.View) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results = append(d.results, v)
}

func (d *recordingDisplay) DisplayErrorState(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errors = append(d.errors, msg)
}

func (d *recordingDisplay) ResetDisplay() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets++
}

func (d *recordingDisplay) Alert(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerts = append(d.alerts, msg)
}

func (d *recordingDisplay) DisplayProgress(p batch.Progress) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.progress = append(d.progress, p)
}

func (d *recordingDisplay) DisplaySummary(views []song.View) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.summaries = append(d.summaries, views)
}

func (d *recordingDisplay) alertCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.alerts)
}

func testConfig(t *testing.T, opts ...testsupport.ConfigOption) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Extraction.MelBands = 16
	cfg.Extraction.PatchSize = 8
	cfg.Analysis.SongTimeoutSeconds = 10
	return cfg
}

type harness struct {
	manager *Manager
	display *recordingDisplay
	decoder *fakeDecoder
}

func newHarness(t *testing.T, cfg *config.Config, backend inference.Backend, extra ...ManagerOption) *harness {
	t.Helper()
	h := &harness{
		display: &recordingDisplay{},
		decoder: &fakeDecoder{rate: cfg.Analysis.SampleRate},
	}
	opts := append([]ManagerOption{
		WithDecoder(h.decoder),
		WithBackend(backend),
		WithKeyEngine(fakeKeys{}),
		WithDisplay(h.display),
	}, extra...)
	m, err := NewManager(cfg, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	h.manager = m
	return h
}

func analyze(t *testing.T, m *Manager, paths []string) Summary {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	summary, err := m.Analyze(ctx, paths)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	return summary
}

func writeBadFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("BAD stream"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
