package workflow

import (
	"context"
	"errors"
	"fmt"

	"songlens/internal/audio"
	"songlens/internal/batch"
	"songlens/internal/features"
	"songlens/internal/inference"
	"songlens/internal/logging"
	"songlens/internal/services"
	"songlens/internal/song"
	"songlens/internal/worker"
)

// pipeline adapts the manager to one session for the batch scheduler.
type pipeline struct {
	m    *Manager
	sess *session
}

var _ batch.Pipeline = (*pipeline)(nil)

func (p *pipeline) Register(rec *song.Record) {
	p.sess.add(rec)
	rec.OnSettle(func(r *song.Record) { p.m.onSettled(p.sess, r) })
}

func (p *pipeline) Start(ctx context.Context, rec *song.Record) {
	go p.m.analyzeSong(ctx, p.sess, rec)
}

func (p *pipeline) BatchSettled(ctx context.Context, b batch.Batch, records []*song.Record) {
	p.m.persist(ctx, p.sess, records)
}

// analyzeSong runs the in-process part of the pipeline and hands the
// shortened signal to the feature stage. Everything after that arrives
// through the dispatchers.
func (m *Manager) analyzeSong(ctx context.Context, sess *session, rec *song.Record) {
	logger := songLogger(ctx, sess, rec, "decode")
	if err := rec.Begin(m.cfg.SongTimeout()); err != nil {
		logger.Debug("song not started", logging.Error(err))
		return
	}

	src, err := rec.Open()
	if err != nil {
		if !song.IsDisposed(err) {
			rec.Fail(services.Wrap(services.ErrDecode, "decode", "open source", "Failed to open audio file", err))
		}
		return
	}
	pcm, err := m.decoder.Decode(ctx, src)
	if err != nil {
		if !errors.Is(err, services.ErrDecode) {
			err = services.Wrap(services.ErrDecode, "decode", "decode audio", "Failed to decode audio", err)
		}
		rec.Fail(err)
		return
	}
	if pcm.Empty() {
		rec.Fail(services.Wrap(services.ErrDecode, "decode", "decode audio", "Decoded audio is empty", nil))
		return
	}
	logger.Debug("audio decoded",
		logging.Int("channels", pcm.Channels),
		logging.Int("sample_rate", pcm.SampleRate),
		logging.Duration("audio_duration", pcm.Duration()),
	)

	samples := audio.Preprocess(pcm, m.cfg.Analysis.SampleRate)
	if !rec.SetAudio(samples) {
		return
	}
	analysis := m.keys.Compute(samples)
	if !rec.SetAnalysis(analysis) {
		return
	}
	logger.Debug("key and tempo estimated",
		logging.String("key", analysis.KeyLabel()),
		logging.Float64("bpm", analysis.BPM),
	)

	short := audio.ShortenAudio(samples, m.cfg.Analysis.KeepFraction, m.cfg.Analysis.TrimEnds, m.params.PatchSamples())
	m.features.Extract(short, rec.ID())
}

func (m *Manager) dispatchFeatures() {
	defer m.dispatchers.Done()
	for msg := range m.features.Results() {
		m.handleFeatureMessage(msg)
	}
}

func (m *Manager) handleFeatureMessage(msg worker.Message) {
	rec, ok := m.activeRecord(msg.SongID)
	if !ok {
		m.logger.Debug("feature message dropped",
			logging.Int(logging.FieldSongID, msg.SongID),
			logging.String("kind", string(msg.Kind)),
		)
		return
	}
	switch msg.Kind {
	case worker.KindFeatures:
		bundle, ok := msg.Payload.(features.Bundle)
		if !ok {
			rec.FailWithFallback(services.Wrap(services.ErrFeatureExtraction, "features", "receive",
				"Feature worker returned an unexpected payload", fmt.Errorf("payload %T", msg.Payload)), inference.FallbackValue)
			return
		}
		for _, model := range rec.Models() {
			m.pool.Dispatch(model, bundle, rec.ID())
		}
	case worker.KindError:
		rec.FailWithFallback(msg.Err, inference.FallbackValue)
	default:
		m.logger.Debug("unexpected feature message", logging.String("message", msg.String()))
	}
}

func (m *Manager) dispatchOutcomes() {
	defer m.dispatchers.Done()
	for out := range m.pool.Results() {
		m.handleOutcome(out)
	}
}

func (m *Manager) handleOutcome(out inference.Outcome) {
	rec, ok := m.activeRecord(out.SongID)
	if !ok {
		m.logger.Debug("model outcome dropped",
			logging.Int(logging.FieldSongID, out.SongID),
			logging.String(logging.FieldModel, out.Model),
		)
		return
	}
	message := ""
	if out.IsError && out.Err != nil {
		message = services.UserMessage(out.Err)
	}
	rec.StoreResult(out.Model, out.Value, out.IsError, message)
}

// activeRecord finds a record of the current session that still accepts
// results.
func (m *Manager) activeRecord(id int) (*song.Record, bool) {
	m.mu.RLock()
	sess := m.session
	m.mu.RUnlock()
	if sess == nil {
		return nil, false
	}
	rec, ok := sess.lookup(id)
	if !ok || rec.Status().Terminal() {
		return nil, false
	}
	return rec, true
}
