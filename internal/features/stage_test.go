package features_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"songlens/internal/features"
	"songlens/internal/services"
	"songlens/internal/testsupport"
	"songlens/internal/worker"
)

func collect(t *testing.T, s *features.Stage, n int) map[int]worker.Message {
	t.Helper()
	got := make(map[int]worker.Message, n)
	deadline := time.After(10 * time.Second)
	for len(got) < n {
		select {
		case msg := <-s.Results():
			if _, dup := got[msg.SongID]; dup {
				t.Fatalf("duplicate reply for song %d", msg.SongID)
			}
			got[msg.SongID] = msg
		case <-deadline:
			t.Fatalf("timed out with %d of %d replies", len(got), n)
		}
	}
	return got
}

func TestStageCorrelatesConcurrentRequests(t *testing.T) {
	for _, reuse := range []bool{true, false} {
		cfg := testsupport.NewConfig(t)
		cfg.Extraction.ReuseWorker = reuse
		s := features.NewStage(cfg, nil)
		t.Cleanup(s.Close)

		// Each song gets a distinct length so its bundle identifies it.
		var wg sync.WaitGroup
		for id := 0; id < 8; id++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				s.Extract(make([]float32, 512+256*id), id)
			}(id)
		}
		wg.Wait()

		got := collect(t, s, 8)
		for id := 0; id < 8; id++ {
			msg := got[id]
			if msg.Kind != worker.KindFeatures {
				t.Fatalf("reuse=%v song %d: expected features, got %s (%v)", reuse, id, msg.Kind, msg.Err)
			}
			bundle := msg.Payload.(features.Bundle)
			if bundle.FrameSize != id+1 {
				t.Fatalf("reuse=%v song %d: bundle belongs to another song (%d frames)", reuse, id, bundle.FrameSize)
			}
		}
	}
}

func TestStageRejectsEmptyBuffer(t *testing.T) {
	s := features.NewStage(testsupport.NewConfig(t), nil)
	t.Cleanup(s.Close)

	s.Extract(nil, 4)
	msg := collect(t, s, 1)[4]
	if msg.Kind != worker.KindError {
		t.Fatalf("expected error, got %s", msg.Kind)
	}
	if !errors.Is(msg.Err, services.ErrFeatureExtraction) {
		t.Fatalf("expected feature extraction error, got %v", msg.Err)
	}
}

func TestStageInitFailureAnswersImmediately(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Extraction.MelBands = 10000
	s := features.NewStage(cfg, nil)
	t.Cleanup(s.Close)

	if s.HealthCheck(context.Background()).Ready {
		t.Fatal("expected unhealthy stage")
	}
	s.Extract(make([]float32, 1024), 9)
	msg := collect(t, s, 1)[9]
	if msg.Kind != worker.KindError || !errors.Is(msg.Err, services.ErrFeatureExtraction) {
		t.Fatalf("unexpected reply %+v", msg)
	}
}

func TestStageResetDropsOwedReplies(t *testing.T) {
	s := features.NewStage(testsupport.NewConfig(t), nil)
	t.Cleanup(s.Close)

	for id := 0; id < 20; id++ {
		s.Extract(make([]float32, 16000*5), id)
	}
	s.Reset()
	s.Extract(make([]float32, 1024), 100)

	deadline := time.After(10 * time.Second)
	for {
		select {
		case msg := <-s.Results():
			if msg.SongID == 100 {
				if msg.Kind != worker.KindFeatures {
					t.Fatalf("expected features for new request, got %s", msg.Kind)
				}
				return
			}
			if msg.Kind == worker.KindError {
				t.Fatalf("reset must not synthesize errors for dropped song %d", msg.SongID)
			}
		case <-deadline:
			t.Fatal("timed out waiting for post-reset reply")
		}
	}
}
