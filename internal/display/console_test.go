package display_test

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"songlens/internal/batch"
	"songlens/internal/display"
	"songlens/internal/keybpm"
	"songlens/internal/song"
)

func view() song.View {
	return song.View{
		ID:       4,
		FileName: "tune.mp3",
		Status:   song.StatusCompleted,
		Analysis: keybpm.Result{Key: "Eb", Scale: "minor", BPM: 127.6},
		Models:   []string{"mood_happy", "danceability"},
		Results: map[string]song.Result{
			"mood_happy":   {Value: 0.734},
			"danceability": {Value: 0.5, IsError: true},
		},
	}
}

func TestModelLabel(t *testing.T) {
	if got := display.ModelLabel("mood_aggressive"); got != "Mood Aggressive" {
		t.Fatalf("unexpected label %q", got)
	}
}

func TestModelLabelConcurrent(t *testing.T) {
	models := []string{"mood_happy", "mood_sad", "mood_relaxed", "danceability"}
	want := []string{"Mood Happy", "Mood Sad", "Mood Relaxed", "Danceability"}
	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				idx := i % len(models)
				if got := display.ModelLabel(models[idx]); got != want[idx] {
					errs <- got
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for got := range errs {
		t.Fatalf("unexpected label %q", got)
	}
}

func TestSentinelRendersQuestionMarks(t *testing.T) {
	v := view()
	v.Analysis = keybpm.Sentinel()
	if display.KeyText(v) != "?" || display.BPMText(v) != "?" {
		t.Fatalf("expected ? for sentinel, got %q %q", display.KeyText(v), display.BPMText(v))
	}
	if display.BPMText(view()) != "128" {
		t.Fatalf("expected rounded bpm, got %q", display.BPMText(view()))
	}
}

func TestConsoleDisplayResults(t *testing.T) {
	var buf bytes.Buffer
	c := display.NewConsole(&buf)
	c.DisplayResults(view())

	out := buf.String()
	for _, want := range []string{"tune.mp3", "Eb minor", "128", "Mood Happy", "73%", "error"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Fatal("non-terminal writers must not receive color codes")
	}
}

func TestConsoleSummaryMarksFailures(t *testing.T) {
	failed := view()
	failed.ID = 5
	failed.FileName = "broken.wav"
	failed.Status = song.StatusError
	failed.Analysis = keybpm.Sentinel()

	var buf bytes.Buffer
	c := display.NewConsole(&buf)
	c.DisplaySummary([]song.View{view(), failed})
	c.DisplayProgress(batch.Progress{Batch: batch.Batch{ID: 0, Paths: []string{"a", "b"}}, Batches: 2, Settled: true, Completed: 1, Failed: 1})

	out := buf.String()
	if !strings.Contains(out, "⚠ broken.wav") {
		t.Fatalf("failed song not marked:\n%s", out)
	}
	if !strings.Contains(out, "Batch 1/2: 1 completed, 1 failed") {
		t.Fatalf("progress line missing:\n%s", out)
	}
}
