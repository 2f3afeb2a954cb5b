package batch

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"songlens/internal/config"
	"songlens/internal/logging"
	"songlens/internal/services"
	"songlens/internal/song"
)

// Pipeline is the orchestrator side of a scheduler run.
type Pipeline interface {
	// Register makes rec reachable for incoming worker messages before any
	// work for it starts.
	Register(rec *song.Record)
	// Start begins analysis of rec. It must not block on the analysis.
	Start(ctx context.Context, rec *song.Record)
	// BatchSettled is called once every record of b is terminal and its
	// transient resources have been released.
	BatchSettled(ctx context.Context, b Batch, records []*song.Record)
}

// Progress describes a batch transition.
type Progress struct {
	Batch      Batch
	Batches    int
	TotalSongs int
	Settled    bool
	Completed  int
	Failed     int
}

// Scheduler partitions paths and runs one batch at a time.
type Scheduler struct {
	size     int
	yield    time.Duration
	timeout  time.Duration
	models   []string
	idBase   int
	logger   *slog.Logger
	progress func(Progress)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithBatchSize overrides the configured batch size.
func WithBatchSize(size int) Option {
	return func(s *Scheduler) {
		if size > 0 {
			s.size = size
		}
	}
}

// WithIDBase offsets every song id by base so ids stay unique across runs
// that share the same workers.
func WithIDBase(base int) Option {
	return func(s *Scheduler) { s.idBase = base }
}

// WithProgress registers a callback for batch start and settle events.
func WithProgress(fn func(Progress)) Option {
	return func(s *Scheduler) { s.progress = fn }
}

// WithYield overrides the pause between batches.
func WithYield(d time.Duration) Option {
	return func(s *Scheduler) { s.yield = d }
}

// NewScheduler reads batch size, pause, song timeout and model names from
// cfg.
func NewScheduler(cfg *config.Config, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		size:    cfg.Analysis.BatchSize,
		yield:   cfg.BatchYield(),
		timeout: cfg.SongTimeout(),
		models:  append([]string(nil), cfg.Analysis.Models...),
		logger:  logging.NewComponentLogger(logger, "batch-scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.size <= 0 {
		s.size = DefaultSize
	}
	return s
}

// Run processes paths batch by batch and returns every record sorted by id.
// On cancellation the records of the active batch that have not settled are
// disposed and the context error is returned with the records created so far.
func (s *Scheduler) Run(ctx context.Context, paths []string, p Pipeline) ([]*song.Record, error) {
	if len(paths) == 0 {
		return nil, services.Wrap(services.ErrNoAudio, "batch", "run", "No audio files to analyze", nil)
	}
	batches := Partition(paths, s.size)
	all := make([]*song.Record, 0, len(paths))
	start := time.Now()

	for i, b := range batches {
		b.Offset += s.idBase
		batchCtx := services.WithBatchID(ctx, b.ID)
		logger := logging.WithContext(batchCtx, s.logger)

		records := make([]*song.Record, len(b.Paths))
		gate := newLatch(len(records))
		for j, path := range b.Paths {
			rec := song.New(b.SongID(j), path, b.ID, s.models)
			p.Register(rec)
			rec.OnSettle(func(*song.Record) { gate.Done() })
			records[j] = rec
		}
		all = append(all, records...)

		logger.Info("batch started",
			logging.String(logging.FieldEventType, "batch_start"),
			logging.Int("batch", i+1),
			logging.Int("batches", len(batches)),
			logging.Int("songs", len(records)),
		)
		s.report(Progress{Batch: b, Batches: len(batches), TotalSongs: len(paths)})

		batchStart := time.Now()
		for _, rec := range records {
			p.Start(batchCtx, rec)
		}

		if err := gate.Wait(ctx); err != nil {
			for _, rec := range records {
				rec.Dispose()
			}
			logging.WarnWithContext(logger, "batch cancelled", "batch_cancelled",
				logging.Int("unsettled", gate.Remaining()),
				logging.String(logging.FieldErrorHint, "run analyze again to resume"),
				logging.String(logging.FieldImpact, "remaining songs were not analyzed"),
			)
			sortRecords(all)
			return all, err
		}

		completed, failed := 0, 0
		for _, rec := range records {
			if rec.Status() == song.StatusCompleted {
				completed++
			} else {
				failed++
			}
			rec.Release()
		}
		p.BatchSettled(batchCtx, b, records)
		logger.Info("batch settled",
			logging.String(logging.FieldEventType, "batch_settled"),
			logging.Int("completed", completed),
			logging.Int("failed", failed),
			logging.Duration("batch_duration", time.Since(batchStart)),
		)
		s.report(Progress{Batch: b, Batches: len(batches), TotalSongs: len(paths), Settled: true, Completed: completed, Failed: failed})

		if i < len(batches)-1 && s.yield > 0 {
			select {
			case <-time.After(s.yield):
			case <-ctx.Done():
				sortRecords(all)
				return all, ctx.Err()
			}
		}
	}

	s.logger.Info("all batches settled",
		logging.String(logging.FieldEventType, "batches_complete"),
		logging.Int("songs", len(all)),
		logging.Int("batches", len(batches)),
		logging.Duration("total_duration", time.Since(start)),
	)
	sortRecords(all)
	return all, nil
}

func (s *Scheduler) report(p Progress) {
	if s.progress != nil {
		s.progress(p)
	}
}

func sortRecords(records []*song.Record) {
	sort.Slice(records, func(i, j int) bool { return records[i].ID() < records[j].ID() })
}
