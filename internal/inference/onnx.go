package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"songlens/internal/config"
	"songlens/internal/features"
	"songlens/internal/logging"
)

// ortMu serializes environment setup. A failed load is not remembered, so a
// slot recreated after Recycle tries again.
var ortMu sync.Mutex

// ModelFileName returns the ONNX file expected for model.
func ModelFileName(model string) string {
	return model + "-musicnn-msd-2.onnx"
}

// ONNXBackend loads MusiCNN classifiers exported to ONNX. The runtime
// environment is process-wide and stays up once it loads.
type ONNXBackend struct {
	modelsDir   string
	libraryPath string
	logger      *slog.Logger
}

// NewONNXBackend builds the backend from the [paths] and [inference] sections.
func NewONNXBackend(cfg *config.Config, logger *slog.Logger) *ONNXBackend {
	return &ONNXBackend{
		modelsDir:   cfg.Paths.ModelsDir,
		libraryPath: cfg.Inference.ONNXLibraryPath,
		logger:      logging.NewComponentLogger(logger, "onnx-backend"),
	}
}

// Init loads the onnxruntime shared library.
func (b *ONNXBackend) Init(context.Context) error {
	ortMu.Lock()
	defer ortMu.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	lib := resolveLibraryPath(b.libraryPath)
	b.logger.Debug("initializing onnxruntime", logging.String("library", lib))
	ort.SetSharedLibraryPath(lib)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime from %s: %w", lib, err)
	}
	return nil
}

// ModelPath returns where the backend looks for model.
func (b *ONNXBackend) ModelPath(model string) string {
	return filepath.Join(b.modelsDir, ModelFileName(model))
}

// Load opens an inference session for model.
func (b *ONNXBackend) Load(_ context.Context, model string) (Predictor, error) {
	path := b.ModelPath(model)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model file %s: %w", path, err)
	}
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("read model info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model %s declares no inputs or outputs", path)
	}
	session, err := ort.NewDynamicAdvancedSession(path,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &onnxPredictor{session: session, model: model}, nil
}

type onnxPredictor struct {
	session *ort.DynamicAdvancedSession
	model   string
}

// Predict reshapes the bundle into [patches, patch_size, mel_bands] and
// returns one row of class scores per patch.
func (p *onnxPredictor) Predict(_ context.Context, bundle features.Bundle, zeroPad bool) ([][]float64, error) {
	data, patches, err := patchify(bundle, zeroPad)
	if err != nil {
		return nil, err
	}
	input, err := ort.NewTensor(ort.NewShape(int64(patches), int64(bundle.PatchSize), int64(bundle.MelBandsSize)), data)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := p.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("run %s: %w", p.model, err)
	}
	if outputs[0] == nil {
		return nil, errors.New("model produced no output")
	}
	defer outputs[0].Destroy()

	shape := outputs[0].GetShape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("unexpected output shape %v", shape)
	}
	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.New("unexpected output tensor type")
	}
	raw := tensor.GetData()
	n, k := int(shape[0]), int(shape[1])
	if len(raw) < n*k {
		return nil, fmt.Errorf("output holds %d values, shape %v needs %d", len(raw), shape, n*k)
	}
	rows := make([][]float64, n)
	for i := range rows {
		row := make([]float64, k)
		for j := range row {
			row[j] = float64(raw[i*k+j])
		}
		rows[i] = row
	}
	return rows, nil
}

func (p *onnxPredictor) Close() error {
	return p.session.Destroy()
}

// patchify flattens mel frames into whole patches. A trailing partial patch
// is zero padded when zeroPad is set, or when it is the only patch.
func patchify(bundle features.Bundle, zeroPad bool) ([]float32, int, error) {
	frames := len(bundle.MelSpectrum)
	if frames == 0 || bundle.PatchSize <= 0 || bundle.MelBandsSize <= 0 {
		return nil, 0, fmt.Errorf("malformed feature bundle (%d frames, patch %d, bands %d)",
			frames, bundle.PatchSize, bundle.MelBandsSize)
	}
	patches := frames / bundle.PatchSize
	if frames%bundle.PatchSize != 0 && (zeroPad || patches == 0) {
		patches++
	}
	bands := bundle.MelBandsSize
	data := make([]float32, patches*bundle.PatchSize*bands)
	limit := patches * bundle.PatchSize
	if limit > frames {
		limit = frames
	}
	for i := 0; i < limit; i++ {
		row := bundle.MelSpectrum[i]
		if len(row) != bands {
			return nil, 0, fmt.Errorf("frame %d has %d bands, want %d", i, len(row), bands)
		}
		copy(data[i*bands:], row)
	}
	return data, patches, nil
}

func resolveLibraryPath(configured string) string {
	if configured != "" {
		return configured
	}
	candidates := []string{
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/opt/homebrew/lib/libonnxruntime.dylib",
		"/usr/local/lib/libonnxruntime.dylib",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return "onnxruntime"
}
