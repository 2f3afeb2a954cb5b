package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"songlens/internal/audio"
	"songlens/internal/batch"
	"songlens/internal/logging"
	"songlens/internal/services"
	"songlens/internal/song"
)

// Analyze expands paths into audio files and analyzes them as a new session.
// Prior session records are disposed first. The summary is returned even
// when ctx is cancelled part way.
func (m *Manager) Analyze(ctx context.Context, paths []string) (Summary, error) {
	m.analyzeMu.Lock()
	defer m.analyzeMu.Unlock()

	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return Summary{}, services.Wrap(services.ErrConfiguration, "workflow", "analyze", "Manager is closed", nil)
	}

	files, err := audio.Collect(paths)
	if err != nil {
		err = services.Wrap(services.ErrValidation, "workflow", "collect", "Failed to read input paths", err)
		m.display.DisplayErrorState(services.UserMessage(err))
		return Summary{}, err
	}
	if len(files) == 0 {
		err := services.Wrap(services.ErrNoAudio, "workflow", "collect", "No audio files found", nil)
		m.display.DisplayErrorState("No audio files found. Drop mp3, wav, flac, ogg or m4a files.")
		return Summary{}, err
	}

	sess := m.resetSession(len(files))
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, sess.logger)
	logger.Info("analysis session started",
		logging.String(logging.FieldEventType, "session_start"),
		logging.Int("files", len(files)),
		logging.Int("models", len(m.models)),
	)

	if m.store != nil {
		if err := m.store.CreateSession(ctx, sess.id, len(files)); err != nil {
			logging.WarnWithContext(logger, "failed to record session", "session_persist_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "results of this run will not be exportable"),
			)
		}
	}

	opts := []batch.Option{
		batch.WithIDBase(m.reserveIDs(len(files))),
		batch.WithProgress(m.display.DisplayProgress),
	}
	if m.batchSz > 0 {
		opts = append(opts, batch.WithBatchSize(m.batchSz))
	}
	scheduler := batch.NewScheduler(m.cfg, sess.logger, opts...)
	records, runErr := scheduler.Run(ctx, files, &pipeline{m: m, sess: sess})

	summary := m.finalize(ctx, sess, records)
	summary.Batches = len(batch.Partition(files, m.batchSize()))

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			logging.WarnWithContext(logger, "analysis session interrupted", "session_cancelled",
				logging.Int("settled", summary.Completed+summary.Failed),
				logging.Int("files", summary.Total),
			)
		}
		return summary, runErr
	}
	logger.Info("analysis session finished",
		logging.String(logging.FieldEventType, "session_complete"),
		logging.Int("completed", summary.Completed),
		logging.Int("failed", summary.Failed),
		logging.Duration("session_duration", summary.Duration),
	)
	return summary, nil
}

// resetSession disposes the previous session and clears stage state that
// could leak into the new one.
func (m *Manager) resetSession(files int) *session {
	m.mu.Lock()
	prev := m.session
	sess := newSession(uuid.NewString(), files, m.logger)
	m.session = sess
	m.mu.Unlock()

	if prev != nil {
		prev.dispose()
	}
	m.pool.Recycle()
	m.features.Reset()
	m.display.ResetDisplay()
	return sess
}

func (m *Manager) reserveIDs(n int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	base := m.nextID
	m.nextID += n
	return base
}

func (m *Manager) batchSize() int {
	if m.batchSz > 0 {
		return m.batchSz
	}
	return m.cfg.Analysis.BatchSize
}

// finalize selects the first record, shows the summary and closes the
// session row.
func (m *Manager) finalize(ctx context.Context, sess *session, records []*song.Record) Summary {
	summary := Summary{SessionID: sess.id, Total: sess.files, Duration: time.Since(sess.startedAt)}
	views := make([]song.View, 0, len(records))
	for _, rec := range records {
		switch rec.Status() {
		case song.StatusCompleted:
			summary.Completed++
		case song.StatusError:
			summary.Failed++
		}
		views = append(views, rec.View())
	}
	if len(records) > 0 && sess.selectID(records[0].ID()) {
		m.display.DisplayResults(views[0])
	}
	m.display.DisplaySummary(views)

	if m.store != nil {
		if err := m.store.FinishSession(context.WithoutCancel(ctx), sess.id, summary.Completed, summary.Failed); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, sess.logger), "failed to finish session record", "session_persist_failed",
				logging.Error(err),
			)
		}
	}
	return summary
}
