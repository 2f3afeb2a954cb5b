package workflow

import (
	"context"
	"log/slog"

	"songlens/internal/logging"
	"songlens/internal/services"
	"songlens/internal/song"
)

// songContext tags ctx with the identifiers of rec.
func songContext(ctx context.Context, rec *song.Record, stageName string) context.Context {
	ctx = services.WithSongID(ctx, rec.ID())
	ctx = services.WithBatchID(ctx, rec.BatchID())
	if stageName != "" {
		ctx = services.WithStage(ctx, stageName)
	}
	return ctx
}

func songLogger(ctx context.Context, sess *session, rec *song.Record, stageName string) *slog.Logger {
	logger := logging.WithContext(songContext(ctx, rec, stageName), sess.logger)
	return logger.With(logging.String("file", rec.FileName()))
}
