package worker_test

import (
	"context"
	"testing"
	"time"

	"songlens/internal/worker"
)

func echoProgram(ctx context.Context, inbox <-chan worker.Message, post func(worker.Message)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-inbox:
			if !ok {
				return
			}
			post(worker.Message{Kind: worker.KindPrediction, SongID: msg.SongID, Payload: msg.Payload})
		}
	}
}

func receive(t *testing.T, h *worker.Handle) worker.Message {
	t.Helper()
	select {
	case msg, ok := <-h.Messages():
		if !ok {
			t.Fatal("messages channel closed unexpectedly")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for worker message")
	}
	return worker.Message{}
}

func TestPostDoesNotBlockWithoutReader(t *testing.T) {
	h := worker.Spawn("echo", echoProgram, nil)
	defer h.Terminate()

	start := time.Now()
	for i := 0; i < 500; i++ {
		if !h.Post(worker.Message{Kind: worker.KindAudio, SongID: i}) {
			t.Fatalf("post %d rejected", i)
		}
	}
	if time.Since(start) > time.Second {
		t.Fatal("posting should not wait for the worker")
	}
	for i := 0; i < 500; i++ {
		msg := receive(t, h)
		if msg.SongID != i {
			t.Fatalf("expected FIFO order: got song %d at position %d", msg.SongID, i)
		}
	}
}

func TestTerminateIsIdempotentAndRejectsPosts(t *testing.T) {
	h := worker.Spawn("echo", echoProgram, nil)
	h.Terminate()
	h.Terminate()

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after terminate")
	}
	if h.Post(worker.Message{Kind: worker.KindAudio}) {
		t.Fatal("expected post after terminate to be rejected")
	}
	for range h.Messages() {
	}
}

func TestPanicSurfacesAsErrorMessage(t *testing.T) {
	h := worker.Spawn("crashy", func(ctx context.Context, inbox <-chan worker.Message, post func(worker.Message)) {
		<-inbox
		panic("boom")
	}, nil)
	defer h.Terminate()

	h.Post(worker.Message{Kind: worker.KindAudio, SongID: 3})
	msg := receive(t, h)
	if msg.Kind != worker.KindError || msg.SongID != worker.NoSong || msg.Err == nil {
		t.Fatalf("unexpected crash message %+v", msg)
	}
	select {
	case _, ok := <-h.Messages():
		if ok {
			t.Fatal("expected messages channel to close after crash")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("messages channel not closed after crash")
	}
	if h.Post(worker.Message{Kind: worker.KindAudio}) {
		t.Fatal("expected post to crashed worker to be rejected")
	}
}

func TestMessageString(t *testing.T) {
	msg := worker.Message{Kind: worker.KindPrediction, SongID: 4, ModelName: "mood_sad"}
	if got := msg.String(); got != "prediction(song=4 model=mood_sad)" {
		t.Fatalf("unexpected string %q", got)
	}
}

func TestMailboxDrainsAfterClose(t *testing.T) {
	box := worker.NewMailbox[worker.Message](nil)
	for i := 0; i < 3; i++ {
		box.Push(worker.Message{Kind: worker.KindStatus, SongID: i})
	}
	box.Close()
	if box.Push(worker.Message{}) {
		t.Fatal("expected push after close to be rejected")
	}
	var got []int
	for msg := range box.C() {
		got = append(got, msg.SongID)
	}
	if len(got) != 3 || got[0] != 0 || got[2] != 2 {
		t.Fatalf("unexpected drained messages %v", got)
	}
}
