package keybpm

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"songlens/internal/logging"
)

// Engine computes key and tempo for mono PCM at a fixed sample rate.
type Engine struct {
	sampleRate int
	logger     *slog.Logger
	loaded     bool
}

// NewEngine prepares an engine for sampleRate. An engine built with an
// unusable rate stays unloaded and answers every request with the sentinel.
func NewEngine(sampleRate int, logger *slog.Logger) *Engine {
	e := &Engine{
		sampleRate: sampleRate,
		logger:     logging.NewComponentLogger(logger, "keybpm"),
	}
	if sampleRate < 8000 {
		logging.WarnWithContext(e.logger, "key/bpm engine unavailable", "keybpm_init_failed",
			logging.Int("sample_rate", sampleRate),
			logging.String(logging.FieldErrorHint, "analysis.sample_rate must be at least 8000"),
			logging.String(logging.FieldImpact, "key and bpm will show as unknown"),
		)
		return e
	}
	e.loaded = true
	return e
}

// Loaded reports whether the engine can produce estimates.
func (e *Engine) Loaded() bool {
	return e != nil && e.loaded
}

// Compute estimates key and tempo. It never fails; problems yield the
// sentinel, or a partial result when only one estimate is possible.
func (e *Engine) Compute(pcm []float32) (res Result) {
	res = Sentinel()
	if !e.Loaded() {
		return res
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = Sentinel()
			logging.WarnWithContext(e.logger, "key/bpm computation panicked", "keybpm_failed",
				logging.Error(fmt.Errorf("%v", r)),
				logging.String(logging.FieldImpact, "key and bpm will show as unknown"),
			)
		}
	}()
	if len(pcm) == 0 {
		return res
	}
	for _, v := range pcm {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			e.logger.Debug("key/bpm skipped non-finite input")
			return res
		}
	}

	if frames := spectrogram(pcm, keyFrameSize, keyHopSize); len(frames) > 0 {
		if chroma, ok := chromagram(frames, e.sampleRate, keyFrameSize); ok {
			if key, scale, ok := estimateKey(chroma); ok {
				res.Key, res.Scale = key, scale
			}
		}
	}
	if frames := spectrogram(pcm, tempoFrameSize, tempoHopSize); len(frames) > 0 {
		fps := float64(e.sampleRate) / tempoHopSize
		if bpm, ok := estimateBPM(onsetEnvelope(frames), fps); ok {
			res.BPM = bpm
		}
	}

	e.logger.Debug("key/bpm computed",
		logging.String("key", res.Key),
		logging.String("scale", res.Scale),
		logging.Float64("bpm", res.BPM),
		logging.Duration("duration", time.Since(start)),
	)
	return res
}
