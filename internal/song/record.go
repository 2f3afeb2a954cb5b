package song

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"songlens/internal/keybpm"
	"songlens/internal/services"
)

// Status is the lifecycle position of a record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether s is completed or error.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Result is one model's answer for a song.
type Result struct {
	Value   float64 `json:"value"`
	IsError bool    `json:"is_error"`
	Message string  `json:"message,omitempty"`
}

// Record tracks one song through decode, analysis and inference.
type Record struct {
	id       int
	path     string
	fileName string
	batchID  int
	models   []string

	mu        sync.Mutex
	status    Status
	source    *os.File
	samples   []float32
	analysis  keybpm.Result
	results   map[string]Result
	err       error
	timer     *time.Timer
	disposed  bool
	startedAt time.Time
	settledAt time.Time
	hooks     []func(*Record)
}

// New creates a pending record for path. models is the set of model names
// that must all answer before the record completes.
func New(id int, path string, batchID int, models []string) *Record {
	return &Record{
		id:       id,
		path:     path,
		fileName: filepath.Base(path),
		batchID:  batchID,
		models:   append([]string(nil), models...),
		status:   StatusPending,
		analysis: keybpm.Sentinel(),
		results:  make(map[string]Result, len(models)),
	}
}

func (r *Record) ID() int          { return r.id }
func (r *Record) Path() string     { return r.path }
func (r *Record) FileName() string { return r.fileName }
func (r *Record) BatchID() int     { return r.batchID }

// Models returns the model names this record waits for.
func (r *Record) Models() []string {
	return append([]string(nil), r.models...)
}

// Status returns the current status.
func (r *Record) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Err returns the error that moved the record to StatusError, if any.
func (r *Record) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// OnSettle registers fn to run once when the record first reaches a
// terminal state. Hooks registered after settlement run immediately.
func (r *Record) OnSettle(fn func(*Record)) {
	r.mu.Lock()
	if r.status.Terminal() {
		r.mu.Unlock()
		fn(r)
		return
	}
	r.hooks = append(r.hooks, fn)
	r.mu.Unlock()
}

// Begin moves a pending record to processing and arms the analysis timer.
// When the timer fires while the record is still processing, the record
// fails with a timeout error.
func (r *Record) Begin(timeout time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return services.ErrDisposed
	}
	if r.status != StatusPending {
		return fmt.Errorf("song %d: cannot begin from %s", r.id, r.status)
	}
	r.status = StatusProcessing
	r.startedAt = time.Now()
	if timeout > 0 {
		r.timer = time.AfterFunc(timeout, func() {
			r.Fail(services.Wrap(services.ErrTimeout, "song", "analyze",
				fmt.Sprintf("Analysis timed out after %s", timeout), nil))
		})
	}
	return nil
}

// Open opens the source file and keeps the handle until Release.
func (r *Record) Open() (io.Reader, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return nil, services.ErrDisposed
	}
	if r.source != nil {
		if _, err := r.source.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		return r.source, nil
	}
	f, err := os.Open(r.path)
	if err != nil {
		return nil, err
	}
	r.source = f
	return f, nil
}

// SetAudio stores the decoded buffer while the record is processing.
func (r *Record) SetAudio(samples []float32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusProcessing || r.disposed {
		return false
	}
	r.samples = samples
	return true
}

// Samples returns the decoded buffer, or nil after Release.
func (r *Record) Samples() []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.samples
}

// SetAnalysis records the key/BPM estimate while the record is processing.
func (r *Record) SetAnalysis(a keybpm.Result) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusProcessing || r.disposed {
		return false
	}
	r.analysis = a
	return true
}

// Analysis returns the key/BPM estimate, the sentinel until set.
func (r *Record) Analysis() keybpm.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.analysis
}

// HasResult reports whether model has answered.
func (r *Record) HasResult(model string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.results[model]
	return ok
}

// StoreResult records a model's answer. It is ignored unless the record is
// processing. The record completes once every configured model has an
// entry. The return value reports whether the result was applied.
func (r *Record) StoreResult(model string, value float64, isError bool, message string) bool {
	r.mu.Lock()
	if r.status != StatusProcessing || r.disposed {
		r.mu.Unlock()
		return false
	}
	r.results[model] = Result{Value: value, IsError: isError, Message: message}
	hooks := r.checkCompleteLocked()
	r.mu.Unlock()
	r.run(hooks)
	return true
}

// checkCompleteLocked completes the record when all models have answered.
// Calling it on a terminal record does nothing.
func (r *Record) checkCompleteLocked() []func(*Record) {
	if r.status != StatusProcessing {
		return nil
	}
	for _, m := range r.models {
		if _, ok := r.results[m]; !ok {
			return nil
		}
	}
	return r.settleLocked(StatusCompleted, nil)
}

// Fail moves a processing record to error. Results stay as they are.
func (r *Record) Fail(err error) bool {
	r.mu.Lock()
	if r.status != StatusProcessing || r.disposed {
		r.mu.Unlock()
		return false
	}
	hooks := r.settleLocked(StatusError, err)
	r.mu.Unlock()
	r.run(hooks)
	return true
}

// FailWithFallback answers every missing model with the fallback value as an
// error and then fails the record.
func (r *Record) FailWithFallback(err error, fallback float64) bool {
	r.mu.Lock()
	if r.status != StatusProcessing || r.disposed {
		r.mu.Unlock()
		return false
	}
	msg := services.UserMessage(err)
	for _, m := range r.models {
		if _, ok := r.results[m]; !ok {
			r.results[m] = Result{Value: fallback, IsError: true, Message: msg}
		}
	}
	hooks := r.settleLocked(StatusError, err)
	r.mu.Unlock()
	r.run(hooks)
	return true
}

func (r *Record) settleLocked(status Status, err error) []func(*Record) {
	r.status = status
	r.err = err
	r.settledAt = time.Now()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	hooks := r.hooks
	r.hooks = nil
	return hooks
}

func (r *Record) run(hooks []func(*Record)) {
	for _, fn := range hooks {
		fn(r)
	}
}

// Release frees the decoded buffer and closes the source handle. Analysis
// and results remain readable.
func (r *Record) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseLocked()
}

func (r *Record) releaseLocked() {
	r.samples = nil
	if r.source != nil {
		_ = r.source.Close()
		r.source = nil
	}
}

// Dispose clears the timer, releases resources and turns a record that has
// not settled into an error. Every later mutation is ignored.
func (r *Record) Dispose() {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	var hooks []func(*Record)
	if !r.status.Terminal() {
		hooks = r.settleLocked(StatusError, services.ErrDisposed)
	} else if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.disposed = true
	r.releaseLocked()
	r.mu.Unlock()
	r.run(hooks)
}

// Disposed reports whether Dispose has run.
func (r *Record) Disposed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disposed
}

// IsDisposed reports whether err came from touching a disposed record.
func IsDisposed(err error) bool {
	return errors.Is(err, services.ErrDisposed)
}
