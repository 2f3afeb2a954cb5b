package workflow

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"songlens/internal/logging"
	"songlens/internal/song"
	"songlens/internal/stage"
)

// Summary describes a finished Analyze call.
type Summary struct {
	SessionID string
	Total     int
	Completed int
	Failed    int
	Batches   int
	Duration  time.Duration
}

// StatusSummary captures the manager's current state for diagnostics.
type StatusSummary struct {
	SessionID string
	Songs     int
	Settled   int
	Current   int
	Stages    []stage.Health
}

// session is the set of records created by one Analyze call. Records stay
// reachable for queries after their batch settles.
type session struct {
	id        string
	startedAt time.Time
	files     int
	logger    *slog.Logger

	mu      sync.RWMutex
	records map[int]*song.Record
	current int
	settled int
	sampler *logging.ProgressSampler
}

func newSession(id string, files int, logger *slog.Logger) *session {
	return &session{
		id:        id,
		startedAt: time.Now(),
		files:     files,
		logger:    logging.WithSession(logger, id),
		records:   make(map[int]*song.Record),
		current:   -1,
		sampler:   logging.NewProgressSampler(10),
	}
}

// markSettled counts a settled record and reports the session percentage
// and whether it crossed a sampling bucket.
func (s *session) markSettled(batchID int) (float64, bool) {
	s.mu.Lock()
	s.settled++
	done := s.settled
	s.mu.Unlock()
	return s.sampler.Observe(done, s.files, batchID)
}

func (s *session) add(rec *song.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID()] = rec
	if s.current < 0 {
		s.current = rec.ID()
	}
}

func (s *session) lookup(id int) (*song.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}

func (s *session) selected() (*song.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[s.current]
	return rec, ok
}

func (s *session) isSelected(id int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current == id
}

func (s *session) selectID(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return false
	}
	s.current = id
	return true
}

// sorted returns every record ordered by id.
func (s *session) sorted() []*song.Record {
	s.mu.RLock()
	out := make([]*song.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (s *session) dispose() {
	for _, rec := range s.sorted() {
		rec.Dispose()
	}
}
