package features

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"songlens/internal/config"
	"songlens/internal/logging"
	"songlens/internal/services"
	"songlens/internal/stage"
	"songlens/internal/worker"
)

const stageName = "features"

// Stage runs feature extraction on worker handles. Depending on
// configuration it keeps one worker that serves requests in order, or spawns
// a fresh worker per request. Either way every reply carries the song id of
// the request that produced it.
type Stage struct {
	params  Params
	reuse   bool
	logger  *slog.Logger
	initErr error

	results *worker.Mailbox[worker.Message]

	mu     sync.Mutex
	shared *tracked
	active map[*tracked]struct{}
	closed bool
}

// tracked is one live extraction worker and the songs it still owes.
type tracked struct {
	handle    *worker.Handle
	inflight  map[int]int
	discarded bool
}

// NewStage validates extraction parameters and prepares the stage. Invalid
// parameters do not fail construction; every request is answered with the
// initialization error instead.
func NewStage(cfg *config.Config, logger *slog.Logger) *Stage {
	params := ParamsFromConfig(cfg)
	s := &Stage{
		params:  params,
		reuse:   cfg.Extraction.ReuseWorker,
		logger:  logging.NewComponentLogger(logger, "feature-stage"),
		results: worker.NewMailbox[worker.Message](nil),
		active:  make(map[*tracked]struct{}),
	}
	if _, err := NewExtractor(params); err != nil {
		s.initErr = services.Wrap(services.ErrFeatureExtraction, stageName, "initialize extractor",
			"Feature extractor not initialized", err)
		logging.ErrorWithContext(s.logger, "feature extractor failed to initialize", "feature_init_failed",
			logging.String(logging.FieldErrorHint, "check the [extraction] configuration section"),
			logging.Error(err),
		)
	}
	return s
}

// Results delivers KindFeatures and KindError messages. The channel closes
// after Close.
func (s *Stage) Results() <-chan worker.Message {
	return s.results.C()
}

// Extract queues pcm for songID and returns immediately.
func (s *Stage) Extract(pcm []float32, songID int) {
	if s.initErr != nil {
		s.results.Push(worker.ErrorMessage(songID, "", s.initErr))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.results.Push(worker.ErrorMessage(songID, "", services.Wrap(services.ErrFeatureExtraction,
			stageName, "extract", "Feature extraction stage closed", nil)))
		return
	}

	var w *tracked
	if s.reuse {
		if s.shared == nil {
			s.shared = s.spawnLocked(false)
		}
		w = s.shared
	} else {
		w = s.spawnLocked(true)
	}
	w.inflight[songID]++
	msg := worker.Message{Kind: worker.KindAudio, SongID: songID, Payload: pcm}
	if !w.handle.Post(msg) {
		w.inflight[songID]--
		s.results.Push(worker.ErrorMessage(songID, "", services.Wrap(services.ErrFeatureExtraction,
			stageName, "post audio", "Feature extraction worker unavailable", nil)))
	}
}

func (s *Stage) spawnLocked(single bool) *tracked {
	name := "feature-extractor"
	ext, _ := NewExtractor(s.params)
	w := &tracked{
		handle:   worker.Spawn(name, extractionProgram(ext, s.params.HopSize, s.logger), s.logger),
		inflight: make(map[int]int),
	}
	s.active[w] = struct{}{}
	go s.forward(w, single)
	return w
}

func (s *Stage) forward(w *tracked, single bool) {
	for msg := range w.handle.Messages() {
		if msg.SongID == worker.NoSong {
			s.logger.Warn("feature worker reported a failure without a song",
				logging.String(logging.FieldEventType, "feature_worker_crash"),
				logging.String(logging.FieldErrorHint, "pending songs will receive extraction errors"),
				logging.Error(msg.Err),
			)
			continue
		}
		s.mu.Lock()
		discarded := w.discarded
		if w.inflight[msg.SongID] > 0 {
			w.inflight[msg.SongID]--
		}
		s.mu.Unlock()
		if !discarded {
			s.results.Push(msg)
		}
		if single {
			w.handle.Terminate()
			break
		}
	}

	s.mu.Lock()
	delete(s.active, w)
	if s.shared == w {
		s.shared = nil
	}
	var orphans []int
	if !w.discarded {
		for id, n := range w.inflight {
			for ; n > 0; n-- {
				orphans = append(orphans, id)
			}
		}
	}
	s.mu.Unlock()

	for _, id := range orphans {
		s.results.Push(worker.ErrorMessage(id, "", services.Wrap(services.ErrFeatureExtraction,
			stageName, "extract", "Feature extraction worker stopped", nil)))
	}
}

// Reset terminates every worker. Replies still owed by those workers are
// dropped; the stage stays usable and spawns fresh workers on demand.
func (s *Stage) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for w := range s.active {
		w.discarded = true
		w.handle.Terminate()
	}
	s.active = make(map[*tracked]struct{})
	s.shared = nil
}

// Close terminates all workers and closes Results.
func (s *Stage) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.Reset()
	s.results.Close()
}

// HealthCheck reports whether the extractor could be initialized.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s.initErr != nil {
		return stage.Unhealthy(stageName, services.UserMessage(s.initErr))
	}
	mode := "per-request workers"
	if s.reuse {
		mode = "shared worker"
	}
	return stage.Health{Name: stageName, Ready: true, Detail: fmt.Sprintf("%s, %d mel bands", mode, s.params.MelBands)}
}

func extractionProgram(ext *Extractor, hopSize int, logger *slog.Logger) worker.Program {
	return func(ctx context.Context, inbox <-chan worker.Message, post func(worker.Message)) {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-inbox:
				if !ok {
					return
				}
				if msg.Kind != worker.KindAudio {
					logger.Debug("feature worker ignored message", logging.String("kind", string(msg.Kind)))
					continue
				}
				post(computeFeatures(ext, hopSize, msg))
			}
		}
	}
}

func computeFeatures(ext *Extractor, hopSize int, msg worker.Message) worker.Message {
	fail := func(operation string, err error) worker.Message {
		return worker.ErrorMessage(msg.SongID, "", services.Wrap(services.ErrFeatureExtraction,
			stageName, operation, "Feature extraction failed", err))
	}
	pcm, _ := msg.Payload.([]float32)
	if len(pcm) == 0 {
		return fail("validate input", fmt.Errorf("empty audio buffer received"))
	}
	bundle, err := ext.ComputeFrameWise(pcm, hopSize)
	if err != nil {
		return fail("compute frame-wise", err)
	}
	if len(bundle.MelSpectrum) == 0 {
		return fail("compute frame-wise", fmt.Errorf("feature computation returned no mel spectrum"))
	}
	return worker.Message{Kind: worker.KindFeatures, SongID: msg.SongID, Payload: bundle}
}
