package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"songlens/internal/config"
	"songlens/internal/logging"
	"songlens/internal/services"
)

func TestNewFromConfigWritesRotatingFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("analysis started", logging.String("event_type", "analysis_start"))

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", content, err)
	}
	if entry["msg"] != "analysis started" || entry["event_type"] != "analysis_start" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Output: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message without caller")
	if strings.Contains(buf.String(), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", buf.String())
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", Output: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message with caller")
	if !strings.Contains(buf.String(), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", buf.String())
	}
}

func TestConsoleLoggerPrefixesComponentAndSong(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Output: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger = logging.NewComponentLogger(logger, "inference")
	logger.Info("prediction stored", logging.Int(logging.FieldSongID, 7), logging.String(logging.FieldModel, "mood_sad"))

	line := buf.String()
	if !strings.Contains(line, "inference: [song 7] prediction stored") {
		t.Fatalf("unexpected console line %q", line)
	}
	if !strings.Contains(line, "model=mood_sad") {
		t.Fatalf("expected model attribute in %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "prediction coerced", "prediction_coerced", logging.Error(errors.New("NaN")))

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{logging.FieldEventType, logging.FieldErrorHint, logging.FieldImpact} {
		if _, ok := entry[key]; !ok {
			t.Fatalf("expected %s in %v", key, entry)
		}
	}
	if entry[logging.FieldEventType] != "prediction_coerced" {
		t.Fatalf("unexpected event type %v", entry[logging.FieldEventType])
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithSongID(ctx, 12)
	ctx = services.WithBatchID(ctx, 2)
	ctx = services.WithModel(ctx, "danceability")
	ctx = services.WithRequestID(ctx, "req-xyz")

	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WithContext(ctx, logger).Info("contextual log")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry[logging.FieldSongID] != float64(12) {
		t.Fatalf("song_id = %v", entry[logging.FieldSongID])
	}
	if entry[logging.FieldBatchID] != float64(2) {
		t.Fatalf("batch_id = %v", entry[logging.FieldBatchID])
	}
	if entry[logging.FieldModel] != "danceability" {
		t.Fatalf("model = %v", entry[logging.FieldModel])
	}
	if entry[logging.FieldCorrelationID] != "req-xyz" {
		t.Fatalf("correlation_id = %v", entry[logging.FieldCorrelationID])
	}
}

func TestWithSessionStampsRecords(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WithSession(logger, "sess-1").With(logging.String("k", "v")).Info("hello")
	if !strings.Contains(buf.String(), `"session_id":"sess-1"`) {
		t.Fatalf("expected session id in %q", buf.String())
	}
}

func TestProgressSamplerBuckets(t *testing.T) {
	sampler := logging.NewProgressSampler(25)
	steps := []struct {
		done  int
		batch int
		want  bool
	}{
		{0, 1, true},
		{1, 1, false},
		{3, 1, true},
		{3, 2, true},
		{4, 2, false},
		{10, 3, true},
	}
	for i, step := range steps {
		if _, got := sampler.Observe(step.done, 10, step.batch); got != step.want {
			t.Fatalf("step %d: Observe(%d, 10, %d) emit = %v, want %v", i, step.done, step.batch, got, step.want)
		}
	}
	if percent, _ := sampler.Observe(5, 10, 3); percent != 50 {
		t.Fatalf("expected 50%%, got %v", percent)
	}
	sampler.Reset()
	if _, emit := sampler.Observe(0, 10, 1); !emit {
		t.Fatal("expected emit after reset")
	}
	if _, emit := sampler.Observe(1, 0, 1); emit {
		t.Fatal("empty totals never emit")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), 8) {
		t.Fatal("expected nop logger to be disabled")
	}
}
