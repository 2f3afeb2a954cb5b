package services

import "context"

type contextKey string

const (
	songIDKey    contextKey = "song_id"
	batchIDKey   contextKey = "batch_id"
	modelKey     contextKey = "model"
	stageKey     contextKey = "stage"
	sessionIDKey contextKey = "session_id"
	requestIDKey contextKey = "request_id"
)

// WithSongID annotates context with the song correlation identifier.
func WithSongID(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, songIDKey, id)
}

// SongIDFromContext extracts the song identifier if present.
func SongIDFromContext(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(songIDKey).(int)
	return v, ok
}

// WithBatchID annotates context with the batch the song belongs to.
func WithBatchID(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, batchIDKey, id)
}

// BatchIDFromContext extracts the batch identifier if present.
func BatchIDFromContext(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(batchIDKey).(int)
	return v, ok
}

// WithModel annotates context with an inference model name.
func WithModel(ctx context.Context, model string) context.Context {
	if model == "" {
		return ctx
	}
	return context.WithValue(ctx, modelKey, model)
}

// ModelFromContext returns the model name if present.
func ModelFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(modelKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(stageKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithSessionID annotates context with the upload session identifier.
func WithSessionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext returns the session identifier if present.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(sessionIDKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
