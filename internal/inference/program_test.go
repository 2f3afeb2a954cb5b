package inference_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"songlens/internal/inference"
	"songlens/internal/services"
	"songlens/internal/worker"
)

func spawnProgram(t *testing.T, backend inference.Backend, opts inference.ProgramOptions) *worker.Handle {
	t.Helper()
	h := worker.Spawn("test-inference", inference.NewProgram(backend, opts, nil), nil)
	t.Cleanup(h.Terminate)
	return h
}

func next(t *testing.T, h *worker.Handle) worker.Message {
	t.Helper()
	select {
	case msg, ok := <-h.Messages():
		if !ok {
			t.Fatal("worker closed unexpectedly")
		}
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for worker message")
	}
	return worker.Message{}
}

func sendFeatures(h *worker.Handle, model string, songID, frames int) {
	h.Post(worker.Message{Kind: worker.KindFeatures, SongID: songID, ModelName: model, Payload: bundleFor(frames)})
}

func TestProgramQueuesFeaturesBehindInit(t *testing.T) {
	backend := &stubBackend{loadDelay: 50 * time.Millisecond}
	h := spawnProgram(t, backend, testOptions())

	h.Post(worker.Message{Kind: worker.KindInit, ModelName: "mood_happy", SongID: worker.NoSong})
	sendFeatures(h, "mood_happy", 1, 20)
	sendFeatures(h, "mood_happy", 2, 40)

	if msg := next(t, h); msg.Kind != worker.KindStatus || msg.Status != worker.StatusInitialized {
		t.Fatalf("expected initialized status, got %v", msg)
	}
	for _, want := range []struct {
		id    int
		value float64
	}{{1, 0.2}, {2, 0.4}} {
		msg := next(t, h)
		if msg.Kind != worker.KindPrediction || msg.SongID != want.id || msg.ModelName != "mood_happy" {
			t.Fatalf("unexpected reply %v", msg)
		}
		if v := msg.Payload.(float64); math.Abs(v-want.value) > 1e-9 {
			t.Fatalf("song %d: got %v, want %v", want.id, v, want.value)
		}
	}
}

func TestProgramIgnoresRepeatedInit(t *testing.T) {
	backend := &stubBackend{}
	h := spawnProgram(t, backend, testOptions())

	h.Post(worker.Message{Kind: worker.KindInit, ModelName: "mood_sad", SongID: worker.NoSong})
	h.Post(worker.Message{Kind: worker.KindInit, ModelName: "mood_sad", SongID: worker.NoSong})
	sendFeatures(h, "mood_sad", 7, 30)

	if msg := next(t, h); msg.Status != worker.StatusInitialized {
		t.Fatalf("expected initialized, got %v", msg)
	}
	msg := next(t, h)
	if msg.Kind != worker.KindPrediction || msg.SongID != 7 {
		t.Fatalf("expected prediction for song 7, got %v", msg)
	}
	if v := msg.Payload.(float64); math.Abs(v-0.7) > 1e-9 {
		t.Fatalf("mood_sad reads the second class, got %v", v)
	}
	if n := backend.loadCount(); n != 1 {
		t.Fatalf("expected one model load, got %d", n)
	}
}

func TestProgramFeaturesWithoutInitFallBack(t *testing.T) {
	h := spawnProgram(t, &stubBackend{}, testOptions())
	sendFeatures(h, "danceability", 3, 10)

	msg := next(t, h)
	if msg.Kind != worker.KindError || msg.SongID != 3 {
		t.Fatalf("expected error for song 3, got %v", msg)
	}
	if msg.Payload.(float64) != inference.FallbackValue {
		t.Fatalf("expected fallback payload, got %v", msg.Payload)
	}
	if !errors.Is(msg.Err, services.ErrModelInit) {
		t.Fatalf("expected model init error, got %v", msg.Err)
	}
}

func TestProgramInitWithoutModelName(t *testing.T) {
	h := spawnProgram(t, &stubBackend{}, testOptions())
	h.Post(worker.Message{Kind: worker.KindInit, SongID: worker.NoSong})

	msg := next(t, h)
	if msg.Kind != worker.KindStatus || msg.Status != worker.StatusInitFailed {
		t.Fatalf("expected init_failed, got %v", msg)
	}
}

func TestProgramLoadTimeoutFailsQueuedSongs(t *testing.T) {
	backend := &stubBackend{loadDelay: time.Second}
	opts := testOptions()
	opts.LoadTimeout = 20 * time.Millisecond
	h := spawnProgram(t, backend, opts)

	h.Post(worker.Message{Kind: worker.KindInit, ModelName: "mood_relaxed", SongID: worker.NoSong})
	sendFeatures(h, "mood_relaxed", 9, 10)

	status := next(t, h)
	if status.Status != worker.StatusInitFailed {
		t.Fatalf("expected init_failed, got %v", status)
	}
	if !errors.Is(status.Err, services.ErrModelInit) || !errors.Is(status.Err, services.ErrTimeout) {
		t.Fatalf("expected wrapped timeout, got %v", status.Err)
	}
	reply := next(t, h)
	if reply.Kind != worker.KindError || reply.SongID != 9 || reply.Payload.(float64) != inference.FallbackValue {
		t.Fatalf("expected fallback error for song 9, got %v", reply)
	}
}

func TestProgramPredictionErrorFallsBack(t *testing.T) {
	backend := &stubBackend{predictErr: errors.New("bad tensor")}
	h := spawnProgram(t, backend, testOptions())
	h.Post(worker.Message{Kind: worker.KindInit, ModelName: "mood_aggressive", SongID: worker.NoSong})
	sendFeatures(h, "mood_aggressive", 4, 10)

	next(t, h)
	msg := next(t, h)
	if msg.Kind != worker.KindError || msg.SongID != 4 || msg.ModelName != "mood_aggressive" {
		t.Fatalf("unexpected reply %v", msg)
	}
	if !errors.Is(msg.Err, services.ErrModelPrediction) {
		t.Fatalf("expected prediction error, got %v", msg.Err)
	}
}
