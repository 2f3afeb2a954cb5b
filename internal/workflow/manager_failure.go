package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"songlens/internal/logging"
	"songlens/internal/services"
	"songlens/internal/song"
)

// onSettled runs once per record when it first reaches a terminal state.
func (m *Manager) onSettled(sess *session, rec *song.Record) {
	if rec.Disposed() {
		return
	}
	if rec.Status() == song.StatusError {
		m.handleSongFailure(sess, rec)
	}
	if percent, ok := sess.markSettled(rec.BatchID()); ok {
		sess.logger.Info("analysis progress",
			logging.String(logging.FieldEventType, "session_progress"),
			logging.Int(logging.FieldBatchID, rec.BatchID()),
			logging.Float64("percent", percent),
		)
	}
	if sess.isSelected(rec.ID()) {
		m.display.DisplayResults(rec.View())
	}
}

func (m *Manager) handleSongFailure(sess *session, rec *song.Record) {
	err := rec.Err()
	if song.IsDisposed(err) {
		return
	}
	details := services.Details(err)
	logger := songLogger(context.Background(), sess, rec, details.Stage)
	message := classifySongFailure(details, err)

	attrs := []logging.Attr{
		logging.String("error_message", message),
		logging.String("error_kind", details.Kind),
		logging.String("error_operation", details.Operation),
		logging.String(logging.FieldErrorHint, details.Hint),
		logging.Alert("song_failure"),
	}
	if details.Cause != nil {
		attrs = append(attrs, logging.Error(details.Cause))
	} else if err != nil {
		attrs = append(attrs, logging.Error(err))
	}
	logging.ErrorWithContext(logger, "song analysis failed", "song_failure", attrs...)

	// A single file gets an alert; larger sessions report failures in the
	// summary.
	if sess.files == 1 {
		m.display.Alert(fmt.Sprintf("%s: %s", rec.FileName(), message))
	}
}

func classifySongFailure(details services.ErrorDetails, err error) string {
	if err == nil {
		return "analysis failed without error detail"
	}
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = strings.TrimSpace(err.Error())
	}
	if message == "" {
		message = "analysis failed"
	}
	return message
}

// persist stores settled records. Store failures are logged and never fail
// the session.
func (m *Manager) persist(ctx context.Context, sess *session, records []*song.Record) {
	if m.store == nil {
		return
	}
	logger := logging.WithContext(ctx, sess.logger)
	for _, rec := range records {
		if err := m.store.SaveRecord(ctx, sess.id, rec.View()); err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Debug("shutting down, record not persisted", logging.Int(logging.FieldSongID, rec.ID()))
				continue
			}
			logging.WarnWithContext(logger, "failed to persist song record", "record_persist_failed",
				logging.Int(logging.FieldSongID, rec.ID()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check state_dir permissions and free space"),
				logging.String(logging.FieldImpact, "result will be missing from export"),
			)
		}
	}
}
