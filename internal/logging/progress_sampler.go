package logging

import "sync"

// ProgressSampler thins session progress logs to one line per completion
// bucket, plus one whenever work moves to a new batch. It is safe for
// concurrent use.
type ProgressSampler struct {
	step float64

	mu     sync.Mutex
	batch  int
	bucket int
}

// NewProgressSampler builds a sampler with buckets of step percent
// (default 10).
func NewProgressSampler(step float64) *ProgressSampler {
	if step <= 0 {
		step = 10
	}
	return &ProgressSampler{step: step, bucket: -1}
}

// Observe records done of total finished items in batch and returns the
// completion percentage and whether it deserves a log line.
func (s *ProgressSampler) Observe(done, total, batch int) (float64, bool) {
	if total <= 0 {
		return 0, false
	}
	percent := 100 * float64(done) / float64(total)
	if percent > 100 {
		percent = 100
	}
	if s == nil {
		return percent, true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	emit := false
	if batch > 0 && batch != s.batch {
		s.batch = batch
		emit = true
	}
	if b := int(percent / s.step); b > s.bucket {
		s.bucket = b
		emit = true
	}
	return percent, emit
}

// Reset forgets the last batch and bucket.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.batch = 0
	s.bucket = -1
	s.mu.Unlock()
}
