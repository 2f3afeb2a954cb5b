package batch_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"songlens/internal/batch"
	"songlens/internal/services"
	"songlens/internal/song"
	"songlens/internal/testsupport"
)

func paths(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("/music/track-%03d.mp3", i)
	}
	return out
}

// stubPipeline completes every record on its own goroutine after a short,
// id-dependent delay so records of a batch settle out of order.
type stubPipeline struct {
	mu        sync.Mutex
	registry  map[int]*song.Record
	started   []int
	settled   []batch.Batch
	violation string
	hold      bool
}

func newStubPipeline() *stubPipeline {
	return &stubPipeline{registry: make(map[int]*song.Record)}
}

func (p *stubPipeline) Register(rec *song.Record) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registry[rec.ID()] = rec
}

func (p *stubPipeline) Start(_ context.Context, rec *song.Record) {
	p.mu.Lock()
	for id, other := range p.registry {
		if other.BatchID() < rec.BatchID() && !other.Status().Terminal() {
			p.violation = fmt.Sprintf("song %d started while song %d of an earlier batch was %s", rec.ID(), id, other.Status())
		}
	}
	p.started = append(p.started, rec.ID())
	hold := p.hold
	p.mu.Unlock()

	if err := rec.Begin(time.Minute); err != nil {
		return
	}
	if hold {
		return
	}
	go func() {
		time.Sleep(time.Duration(rec.ID()%7) * time.Millisecond)
		for _, m := range rec.Models() {
			rec.StoreResult(m, 0.5, rec.ID()%5 == 0, "")
		}
	}()
}

func (p *stubPipeline) BatchSettled(_ context.Context, b batch.Batch, records []*song.Record) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, rec := range records {
		if !rec.Status().Terminal() {
			p.violation = fmt.Sprintf("batch %d settled with song %d %s", b.ID, rec.ID(), rec.Status())
		}
	}
	p.settled = append(p.settled, b)
}

func TestPartition(t *testing.T) {
	got := batch.Partition(paths(45), 20)
	if len(got) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(got))
	}
	sizes := []int{20, 20, 5}
	for i, b := range got {
		if len(b.Paths) != sizes[i] || b.ID != i || b.Offset != i*20 {
			t.Fatalf("batch %d: unexpected %+v", i, b)
		}
	}
	if got[2].SongID(4) != 44 {
		t.Fatalf("expected global id 44, got %d", got[2].SongID(4))
	}
	if n := len(batch.Partition(paths(41), 0)); n != 3 {
		t.Fatalf("default size should give 3 batches for 41 files, got %d", n)
	}
	if n := len(batch.Partition(nil, 20)); n != 0 {
		t.Fatalf("expected no batches, got %d", n)
	}
}

func TestRunSettlesBatchesInOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBatchSize(20))
	var progress []batch.Progress
	s := batch.NewScheduler(cfg, nil, batch.WithProgress(func(p batch.Progress) {
		progress = append(progress, p)
	}))
	p := newStubPipeline()

	records, err := s.Run(context.Background(), paths(45), p)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p.violation != "" {
		t.Fatal(p.violation)
	}
	if len(records) != 45 {
		t.Fatalf("expected 45 records, got %d", len(records))
	}
	for i, rec := range records {
		if rec.ID() != i {
			t.Fatalf("records not sorted: index %d has id %d", i, rec.ID())
		}
		if !rec.Status().Terminal() {
			t.Fatalf("record %d left %s", i, rec.Status())
		}
		if rec.Samples() != nil {
			t.Fatalf("record %d kept its buffer after settlement", i)
		}
	}
	if len(p.settled) != 3 {
		t.Fatalf("expected 3 settled batches, got %d", len(p.settled))
	}
	if len(progress) != 6 || !progress[5].Settled || progress[5].Batches != 3 {
		t.Fatalf("unexpected progress events %+v", progress)
	}
}

func TestRunAppliesIDBase(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBatchSize(2))
	s := batch.NewScheduler(cfg, nil, batch.WithIDBase(100))
	records, err := s.Run(context.Background(), paths(3), newStubPipeline())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, rec := range records {
		if rec.ID() != 100+i {
			t.Fatalf("expected id %d, got %d", 100+i, rec.ID())
		}
	}
}

func TestRunRejectsEmptySet(t *testing.T) {
	s := batch.NewScheduler(testsupport.NewConfig(t), nil)
	if _, err := s.Run(context.Background(), nil, newStubPipeline()); !errors.Is(err, services.ErrNoAudio) {
		t.Fatalf("expected ErrNoAudio, got %v", err)
	}
}

func TestRunCancellationDisposesUnsettledRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBatchSize(5))
	s := batch.NewScheduler(cfg, nil)
	p := newStubPipeline()
	p.hold = true

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()
	records, err := s.Run(ctx, paths(12), p)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("only the first batch should have been created, got %d", len(records))
	}
	for _, rec := range records {
		if !rec.Disposed() || rec.Status() != song.StatusError {
			t.Fatalf("record %d not disposed: %s", rec.ID(), rec.Status())
		}
	}
}
