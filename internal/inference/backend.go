package inference

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"songlens/internal/config"
	"songlens/internal/features"
	"songlens/internal/services"
)

// Predictor runs one loaded model. zeroPad controls whether a trailing
// partial patch is padded with zeros and scored or dropped.
type Predictor interface {
	Predict(ctx context.Context, bundle features.Bundle, zeroPad bool) ([][]float64, error)
	Close() error
}

// Backend prepares the runtime and loads models by name.
type Backend interface {
	Init(ctx context.Context) error
	Load(ctx context.Context, model string) (Predictor, error)
}

// NewBackend selects the backend named in the [inference] section.
func NewBackend(cfg *config.Config, logger *slog.Logger) (Backend, error) {
	switch cfg.Inference.Backend {
	case "onnx", "":
		return NewONNXBackend(cfg, logger), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "inference", "select backend",
			fmt.Sprintf("unsupported inference backend %q", cfg.Inference.Backend), nil)
	}
}

// ProgramOptions bounds the initialization steps of an inference worker.
type ProgramOptions struct {
	LoadTimeout   time.Duration
	WarmupTimeout time.Duration
	PatchSize     int
	MelBands      int
}

// ProgramOptionsFromConfig reads worker bounds from cfg.
func ProgramOptionsFromConfig(cfg *config.Config) ProgramOptions {
	return ProgramOptions{
		LoadTimeout:   cfg.ModelLoadTimeout(),
		WarmupTimeout: cfg.WarmupTimeout(),
		PatchSize:     cfg.Extraction.PatchSize,
		MelBands:      cfg.Extraction.MelBands,
	}
}

// zeroBundle is the warm-up input: one patch of silence.
func (o ProgramOptions) zeroBundle() features.Bundle {
	mel := make([][]float32, o.PatchSize)
	for i := range mel {
		mel[i] = make([]float32, o.MelBands)
	}
	return features.Bundle{
		MelSpectrum:  mel,
		FrameSize:    o.PatchSize,
		MelBandsSize: o.MelBands,
		PatchSize:    o.PatchSize,
	}
}
