package workflow

import (
	"log/slog"
	"sync"

	"songlens/internal/audio"
	"songlens/internal/config"
	"songlens/internal/display"
	"songlens/internal/features"
	"songlens/internal/inference"
	"songlens/internal/keybpm"
	"songlens/internal/logging"
	"songlens/internal/store"
	"songlens/internal/worker"
)

// KeyEngine estimates key and tempo for preprocessed PCM.
type KeyEngine interface {
	Compute(pcm []float32) keybpm.Result
}

// Manager runs analysis sessions against shared workers.
type Manager struct {
	cfg      *config.Config
	logger   *slog.Logger
	models   []string
	params   features.Params
	decoder  audio.Decoder
	keys     KeyEngine
	features *features.Stage
	pool     *inference.Pool
	store    *store.Store
	display  display.Display
	batchSz  int

	analyzeMu sync.Mutex

	mu      sync.RWMutex
	session *session
	nextID  int
	closed  bool

	dispatchers sync.WaitGroup
}

// ManagerOption configures optional Manager collaborators.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	decoder   audio.Decoder
	backend   inference.Backend
	keys      KeyEngine
	store     *store.Store
	display   display.Display
	batchSize int
}

// WithDecoder replaces the ffmpeg decoder.
func WithDecoder(d audio.Decoder) ManagerOption {
	return func(o *managerOptions) { o.decoder = d }
}

// WithBackend replaces the configured inference backend.
func WithBackend(b inference.Backend) ManagerOption {
	return func(o *managerOptions) { o.backend = b }
}

// WithKeyEngine replaces the key/BPM engine.
func WithKeyEngine(k KeyEngine) ManagerOption {
	return func(o *managerOptions) { o.keys = k }
}

// WithStore persists settled records. The manager closes the store in Close.
func WithStore(s *store.Store) ManagerOption {
	return func(o *managerOptions) { o.store = s }
}

// WithDisplay sets the presentation surface. The default discards output.
func WithDisplay(d display.Display) ManagerOption {
	return func(o *managerOptions) { o.display = d }
}

// WithBatchSize overrides analysis.batch_size.
func WithBatchSize(n int) ManagerOption {
	return func(o *managerOptions) { o.batchSize = n }
}

// NewManager constructs a manager and starts its message dispatchers.
func NewManager(cfg *config.Config, logger *slog.Logger, opts ...ManagerOption) (*Manager, error) {
	options := &managerOptions{}
	for _, opt := range opts {
		opt(options)
	}
	base := logger
	if base == nil {
		base = logging.NewNop()
	}

	backend := options.backend
	if backend == nil {
		b, err := inference.NewBackend(cfg, base)
		if err != nil {
			return nil, err
		}
		backend = b
	}
	decoder := options.decoder
	if decoder == nil {
		decoder = audio.NewFFmpegDecoder(cfg)
	}
	keys := options.keys
	if keys == nil {
		keys = keybpm.NewEngine(cfg.Analysis.SampleRate, base)
	}
	disp := options.display
	if disp == nil {
		disp = display.Nop{}
	}

	programOpts := inference.ProgramOptionsFromConfig(cfg)
	m := &Manager{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(base, "workflow-manager"),
		models:   cfg.ModelNames(),
		params:   features.ParamsFromConfig(cfg),
		decoder:  decoder,
		keys:     keys,
		features: features.NewStage(cfg, base),
		pool: inference.NewPool(func(string) worker.Program {
			return inference.NewProgram(backend, programOpts, base)
		}, base),
		store:   options.store,
		display: disp,
		batchSz: options.batchSize,
	}

	m.dispatchers.Add(2)
	go m.dispatchFeatures()
	go m.dispatchOutcomes()
	return m, nil
}

// Close terminates all workers, waits for the dispatchers and closes the
// store.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sess := m.session
	m.mu.Unlock()

	if sess != nil {
		sess.dispose()
	}
	m.features.Close()
	m.pool.Close()
	m.dispatchers.Wait()
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}
