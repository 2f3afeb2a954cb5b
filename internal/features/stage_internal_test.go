package features

import (
	"errors"
	"testing"
	"time"

	"songlens/internal/services"
	"songlens/internal/testsupport"
	"songlens/internal/worker"
)

func TestExtractOnClosedStageAnswersWithError(t *testing.T) {
	s := NewStage(testsupport.NewConfig(t), nil)
	t.Cleanup(s.results.Close)

	// Closed but with the mailbox still draining, as during shutdown.
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.Extract(make([]float32, 2048), 12)
	select {
	case msg := <-s.Results():
		if msg.SongID != 12 || msg.Kind != worker.KindError || !errors.Is(msg.Err, services.ErrFeatureExtraction) {
			t.Fatalf("unexpected reply %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("closed stage dropped the request")
	}
	if len(s.active) != 0 {
		t.Fatalf("closed stage spawned %d workers", len(s.active))
	}
}
