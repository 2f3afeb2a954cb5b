package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"songlens/internal/features"
	"songlens/internal/logging"
	"songlens/internal/services"
	"songlens/internal/worker"
)

const stageName = "inference"

type initResult struct {
	predictor Predictor
	err       error
}

// runner is the state owned by one inference worker goroutine.
type runner struct {
	backend Backend
	opts    ProgramOptions
	logger  *slog.Logger
	post    func(worker.Message)

	model       string
	initStarted bool
	initDone    bool
	initErr     error
	predictor   Predictor
	queued      []worker.Message
}

// NewProgram returns the worker body for one classifier. The first Init
// message starts initialization; later ones are ignored. Feature requests
// that arrive during initialization wait for it and are answered in order.
func NewProgram(backend Backend, opts ProgramOptions, logger *slog.Logger) worker.Program {
	return func(ctx context.Context, inbox <-chan worker.Message, post func(worker.Message)) {
		r := &runner{
			backend: backend,
			opts:    opts,
			logger:  logging.NewComponentLogger(logger, "inference-worker"),
			post:    post,
		}
		defer r.close()

		var results chan initResult
		for {
			select {
			case <-ctx.Done():
				return
			case res := <-results:
				results = nil
				r.finishInit(res)
				for _, msg := range r.queued {
					r.post(r.answer(ctx, msg))
				}
				r.queued = nil
			case msg, ok := <-inbox:
				if !ok {
					return
				}
				switch msg.Kind {
				case worker.KindInit:
					if ch := r.startInit(ctx, msg); ch != nil {
						results = ch
					}
				case worker.KindFeatures:
					switch {
					case !r.initStarted:
						r.post(r.fallback(msg.SongID, services.Wrap(services.ErrModelInit, stageName, "predict",
							fmt.Sprintf("Model %q was never initialized", msg.ModelName), nil)))
					case !r.initDone:
						r.queued = append(r.queued, msg)
					default:
						r.post(r.answer(ctx, msg))
					}
				default:
					r.logger.Debug("inference worker ignored message", logging.String("kind", string(msg.Kind)))
				}
			}
		}
	}
}

func (r *runner) startInit(ctx context.Context, msg worker.Message) chan initResult {
	if r.initStarted {
		r.logger.Warn("init ignored; model already initializing or initialized",
			logging.String(logging.FieldModel, r.model),
			logging.String("requested_model", msg.ModelName),
			logging.String(logging.FieldEventType, "model_init_repeat"),
		)
		return nil
	}
	if msg.ModelName == "" {
		r.post(worker.Message{
			Kind:   worker.KindStatus,
			Status: worker.StatusInitFailed,
			SongID: msg.SongID,
			Err: services.Wrap(services.ErrModelInit, stageName, "init",
				"Initialization command missing model name", nil),
		})
		return nil
	}
	r.model = msg.ModelName
	r.initStarted = true
	r.logger = r.logger.With(logging.String(logging.FieldModel, r.model))
	r.logger.Info("model initialization started",
		logging.String(logging.FieldEventType, "model_init_start"),
		logging.Int(logging.FieldSongID, msg.SongID),
	)
	ch := make(chan initResult, 1)
	go func() {
		p, err := r.initialize(ctx)
		ch <- initResult{predictor: p, err: err}
	}()
	return ch
}

func (r *runner) initialize(ctx context.Context) (Predictor, error) {
	start := time.Now()
	if _, err := guarded(ctx, "backend init", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.backend.Init(ctx)
	}); err != nil {
		return nil, services.Wrap(services.ErrModelInit, stageName, "backend init", "Inference backend failed to initialize", err)
	}

	p, err := withTimeout(ctx, r.opts.LoadTimeout, func(ctx context.Context) (Predictor, error) {
		return r.backend.Load(ctx, r.model)
	}, func(late Predictor) {
		if late != nil {
			_ = late.Close()
		}
	})
	if err != nil {
		return nil, services.Wrap(services.ErrModelInit, stageName, "load model", fmt.Sprintf("Model %s failed to load", r.model), err)
	}

	warm := r.opts.zeroBundle()
	if _, err := withTimeout(ctx, r.opts.WarmupTimeout, func(ctx context.Context) ([][]float64, error) {
		return safePredict(ctx, p, warm, false)
	}, nil); err != nil {
		_ = p.Close()
		return nil, services.Wrap(services.ErrModelInit, stageName, "warm up", fmt.Sprintf("Model %s warm-up failed", r.model), err)
	}

	r.logger.Info("model initialized",
		logging.String(logging.FieldEventType, "model_init_complete"),
		logging.Duration("init_duration", time.Since(start)),
	)
	return p, nil
}

func (r *runner) finishInit(res initResult) {
	r.initDone = true
	if res.err != nil {
		r.initErr = res.err
		logging.ErrorWithContext(r.logger, "model initialization failed", "model_init_failed",
			logging.String(logging.FieldErrorHint, services.Details(res.err).Hint),
			logging.Error(res.err),
		)
		r.post(worker.Message{Kind: worker.KindStatus, Status: worker.StatusInitFailed, ModelName: r.model, SongID: worker.NoSong, Err: res.err})
		return
	}
	r.predictor = res.predictor
	r.post(worker.Message{Kind: worker.KindStatus, Status: worker.StatusInitialized, ModelName: r.model, SongID: worker.NoSong})
}

// answer produces the single reply owed for a features request.
func (r *runner) answer(ctx context.Context, msg worker.Message) worker.Message {
	if r.initErr != nil {
		return r.fallback(msg.SongID, services.Wrap(services.ErrModelInit, stageName, "predict",
			fmt.Sprintf("Model %q failed to initialize", r.model), r.initErr))
	}
	bundle, ok := msg.Payload.(features.Bundle)
	if !ok {
		return r.fallback(msg.SongID, services.Wrap(services.ErrModelPrediction, stageName, "predict",
			"Feature payload missing", nil))
	}
	start := time.Now()
	rows, err := safePredict(ctx, r.predictor, bundle, true)
	if err != nil {
		return r.fallback(msg.SongID, services.Wrap(services.ErrModelPrediction, stageName, "predict",
			"Prediction execution error", err))
	}
	value, err := Reduce(r.model, rows)
	if err != nil {
		return r.fallback(msg.SongID, services.Wrap(services.ErrModelPrediction, stageName, "summarize",
			"Prediction execution error", err))
	}
	value = CoercePrediction(value, r.logger, r.model, msg.SongID)
	r.logger.Debug("prediction complete",
		logging.Int(logging.FieldSongID, msg.SongID),
		logging.Float64("value", value),
		logging.Duration("inference_duration", time.Since(start)),
	)
	return worker.Message{Kind: worker.KindPrediction, SongID: msg.SongID, ModelName: r.model, Payload: value}
}

func (r *runner) fallback(songID int, err error) worker.Message {
	r.logger.Warn("prediction replaced with fallback",
		logging.Int(logging.FieldSongID, songID),
		logging.String(logging.FieldEventType, "prediction_fallback"),
		logging.String(logging.FieldErrorHint, services.Details(err).Hint),
		logging.Error(err),
	)
	msg := worker.ErrorMessage(songID, r.model, err)
	msg.Payload = FallbackValue
	return msg
}

func (r *runner) close() {
	if r.predictor != nil {
		if err := r.predictor.Close(); err != nil {
			r.logger.Debug("close predictor", logging.Error(err))
		}
		r.predictor = nil
	}
}

func safePredict(ctx context.Context, p Predictor, bundle features.Bundle, zeroPad bool) (rows [][]float64, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("predictor panicked: %v", rec)
		}
	}()
	return p.Predict(ctx, bundle, zeroPad)
}

// guarded runs fn and turns a panic into an error so a broken model file
// fails only its own slot.
func guarded[T any](ctx context.Context, what string, fn func(context.Context) (T, error)) (v T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			var zero T
			v = zero
			err = fmt.Errorf("%s panicked: %v", what, rec)
		}
	}()
	return fn(ctx)
}

// withTimeout runs fn on its own goroutine and gives up after d. A result
// that arrives after the deadline is handed to onLate.
func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error), onLate func(T)) (T, error) {
	var zero T
	if d <= 0 {
		return guarded(ctx, "model call", fn)
	}
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	cctx, cancel := context.WithTimeout(ctx, d)
	go func() {
		defer cancel()
		v, err := guarded(cctx, "model call", fn)
		ch <- result{v, err}
	}()
	timer := time.NewTimer(d)
	defer timer.Stop()
	var err error
	select {
	case res := <-ch:
		return res.v, res.err
	case <-timer.C:
		err = services.Wrap(services.ErrTimeout, stageName, "wait", fmt.Sprintf("timed out after %s", d), errors.New("deadline exceeded"))
	case <-ctx.Done():
		err = ctx.Err()
	}
	if onLate != nil {
		go func() {
			res := <-ch
			if res.err == nil {
				onLate(res.v)
			}
		}()
	}
	return zero, err
}
