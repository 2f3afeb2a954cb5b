package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"songlens/internal/features"
	"songlens/internal/logging"
	"songlens/internal/services"
	"songlens/internal/stage"
	"songlens/internal/worker"
)

// SlotStatus is the lifecycle position of one model's worker.
type SlotStatus string

const (
	SlotPending      SlotStatus = "pending"
	SlotInitializing SlotStatus = "initializing"
	SlotReady        SlotStatus = "ready"
	SlotFailed       SlotStatus = "failed"
)

// Outcome is one model's answer for one song.
type Outcome struct {
	Model   string
	SongID  int
	Value   float64
	IsError bool
	Err     error
}

// Factory builds the worker program for a model.
type Factory func(model string) worker.Program

type slot struct {
	model    string
	handle   *worker.Handle
	status   SlotStatus
	err      error
	inflight map[int]int

	discarded  bool
	settled    chan struct{}
	settleOnce sync.Once
}

func (s *slot) settle() {
	s.settleOnce.Do(func() { close(s.settled) })
}

// Pool keeps one long-lived inference worker per model name. Slots are
// created on first use and survive across batches and sessions until they
// fail or the pool is reset.
type Pool struct {
	factory Factory
	logger  *slog.Logger
	results *worker.Mailbox[Outcome]

	mu     sync.Mutex
	slots  map[string]*slot
	closed bool
}

// NewPool constructs an empty pool.
func NewPool(factory Factory, logger *slog.Logger) *Pool {
	return &Pool{
		factory: factory,
		logger:  logging.NewComponentLogger(logger, "inference-pool"),
		results: worker.NewMailbox[Outcome](nil),
		slots:   make(map[string]*slot),
	}
}

// Results delivers exactly one Outcome per dispatched request.
func (p *Pool) Results() <-chan Outcome {
	return p.results.C()
}

// Status reports the slot status for model, or SlotPending when no slot
// exists yet.
func (p *Pool) Status(model string) SlotStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.slots[model]; ok {
		return s.status
	}
	return SlotPending
}

// Dispatch asks model to score bundle for songID. It never blocks.
func (p *Pool) Dispatch(model string, bundle features.Bundle, songID int) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.results.Push(fallbackOutcome(model, songID, services.Wrap(services.ErrModelPrediction,
			stageName, "dispatch", "Inference pool closed", nil)))
		return
	}
	s := p.ensureLocked(model)
	if s.status == SlotFailed {
		err := s.err
		p.mu.Unlock()
		p.results.Push(fallbackOutcome(model, songID, err))
		return
	}
	s.inflight[songID]++
	posted := s.handle.Post(worker.Message{Kind: worker.KindFeatures, SongID: songID, ModelName: model, Payload: bundle})
	if !posted {
		s.inflight[songID]--
	}
	p.mu.Unlock()

	if !posted {
		p.results.Push(fallbackOutcome(model, songID, services.Wrap(services.ErrModelPrediction,
			stageName, "dispatch", fmt.Sprintf("Inference worker for %s unavailable", model), nil)))
	}
}

func (p *Pool) ensureLocked(model string) *slot {
	if s, ok := p.slots[model]; ok {
		return s
	}
	s := &slot{
		model:    model,
		status:   SlotPending,
		inflight: make(map[int]int),
		settled:  make(chan struct{}),
	}
	s.handle = worker.Spawn("inference-"+model, p.factory(model), p.logger)
	p.slots[model] = s
	go p.listen(s)

	if s.handle.Post(worker.Message{Kind: worker.KindInit, ModelName: model, SongID: worker.NoSong}) {
		s.status = SlotInitializing
		p.logger.Debug("inference slot created", logging.String(logging.FieldModel, model))
	}
	return s
}

func (p *Pool) listen(s *slot) {
	for msg := range s.handle.Messages() {
		switch msg.Kind {
		case worker.KindStatus:
			if msg.Status == worker.StatusInitialized {
				p.mu.Lock()
				if s.status != SlotFailed {
					s.status = SlotReady
				}
				p.mu.Unlock()
				s.settle()
				p.logger.Info("inference worker ready",
					logging.String(logging.FieldModel, s.model),
					logging.String(logging.FieldEventType, "model_ready"),
				)
				continue
			}
			p.fail(s, msg.Err)
		case worker.KindPrediction:
			value, _ := msg.Payload.(float64)
			p.deliver(s, Outcome{Model: s.model, SongID: msg.SongID, Value: value})
		case worker.KindError:
			if msg.SongID == worker.NoSong {
				p.fail(s, msg.Err)
				continue
			}
			value, ok := msg.Payload.(float64)
			if !ok {
				value = FallbackValue
			}
			p.deliver(s, Outcome{Model: s.model, SongID: msg.SongID, Value: value, IsError: true, Err: msg.Err})
		}
	}
	p.fail(s, services.Wrap(services.ErrModelPrediction, stageName, "listen",
		fmt.Sprintf("Inference worker for %s stopped", s.model), nil))
}

// deliver forwards an outcome only if the slot still owes that song a
// reply, which keeps the one-reply-per-request count exact after a failure
// has already answered on the worker's behalf.
func (p *Pool) deliver(s *slot, out Outcome) {
	p.mu.Lock()
	owed := !s.discarded && s.inflight[out.SongID] > 0
	if s.inflight[out.SongID] > 0 {
		s.inflight[out.SongID]--
		if s.inflight[out.SongID] == 0 {
			delete(s.inflight, out.SongID)
		}
	}
	p.mu.Unlock()
	if !owed {
		p.logger.Debug("dropping unowed inference reply",
			logging.String(logging.FieldModel, s.model),
			logging.Int(logging.FieldSongID, out.SongID),
		)
		return
	}
	p.results.Push(out)
}

// fail marks the slot failed, stops its worker and answers every song still
// waiting on it with the fallback value.
func (p *Pool) fail(s *slot, err error) {
	if err == nil {
		err = errors.New("inference worker failed")
	}
	p.mu.Lock()
	if s.status == SlotFailed || s.discarded {
		p.mu.Unlock()
		s.settle()
		return
	}
	s.status = SlotFailed
	s.err = err
	var orphans []int
	for id, n := range s.inflight {
		for ; n > 0; n-- {
			orphans = append(orphans, id)
		}
	}
	s.inflight = make(map[int]int)
	p.mu.Unlock()

	s.settle()
	s.handle.Terminate()
	sort.Ints(orphans)
	logging.WarnWithContext(p.logger, "inference worker failed", "model_failed",
		logging.String(logging.FieldModel, s.model),
		logging.Int("pending_songs", len(orphans)),
		logging.String(logging.FieldErrorHint, "check model files and onnxruntime installation"),
		logging.String(logging.FieldImpact, "scores for this model fall back to 0.5"),
		logging.Error(err),
	)
	for _, id := range orphans {
		p.results.Push(fallbackOutcome(s.model, id, err))
	}
}

// Recycle discards failed slots so the next request builds a fresh worker.
func (p *Pool) Recycle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, s := range p.slots {
		if s.status == SlotFailed {
			s.discarded = true
			delete(p.slots, name)
		}
	}
}

// Reset terminates every worker. Replies still owed are dropped.
func (p *Pool) Reset() {
	p.mu.Lock()
	slots := p.slots
	p.slots = make(map[string]*slot)
	for _, s := range slots {
		s.discarded = true
	}
	p.mu.Unlock()
	for _, s := range slots {
		s.handle.Terminate()
		s.settle()
	}
}

// Close terminates every worker and closes Results.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	p.Reset()
	p.results.Close()
}

// Warm initializes a slot for each model and waits until every one is ready
// or failed. Failed models are reported in the returned error.
func (p *Pool) Warm(ctx context.Context, models []string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return services.Wrap(services.ErrModelInit, stageName, "warm", "Inference pool closed", nil)
	}
	waiting := make([]*slot, 0, len(models))
	for _, m := range models {
		waiting = append(waiting, p.ensureLocked(m))
	}
	p.mu.Unlock()

	for _, s := range waiting {
		select {
		case <-s.settled:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var errs []error
	p.mu.Lock()
	for _, s := range waiting {
		if s.status == SlotFailed {
			errs = append(errs, fmt.Errorf("%s: %w", s.model, s.err))
		}
	}
	p.mu.Unlock()
	return errors.Join(errs...)
}

// Health reports one record per slot, ordered by model name.
func (p *Pool) Health() []stage.Health {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.slots))
	for name := range p.slots {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]stage.Health, 0, len(names))
	for _, name := range names {
		s := p.slots[name]
		switch s.status {
		case SlotReady:
			out = append(out, stage.Healthy(name))
		case SlotFailed:
			out = append(out, stage.Unhealthy(name, services.UserMessage(s.err)))
		default:
			out = append(out, stage.Health{Name: name, Detail: string(s.status)})
		}
	}
	return out
}

func fallbackOutcome(model string, songID int, err error) Outcome {
	return Outcome{Model: model, SongID: songID, Value: FallbackValue, IsError: true, Err: err}
}
