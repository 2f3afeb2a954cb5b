package song

import (
	"time"

	"songlens/internal/keybpm"
	"songlens/internal/services"
)

// View is an immutable snapshot of a record for display, export and
// persistence.
type View struct {
	ID        int
	FileName  string
	Path      string
	BatchID   int
	Status    Status
	Analysis  keybpm.Result
	Results   map[string]Result
	Models    []string
	Error     string
	StartedAt time.Time
	SettledAt time.Time
}

// View captures the record's current state.
func (r *Record) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	results := make(map[string]Result, len(r.results))
	for k, v := range r.results {
		results[k] = v
	}
	v := View{
		ID:        r.id,
		FileName:  r.fileName,
		Path:      r.path,
		BatchID:   r.batchID,
		Status:    r.status,
		Analysis:  r.analysis,
		Results:   results,
		Models:    append([]string(nil), r.models...),
		StartedAt: r.startedAt,
		SettledAt: r.settledAt,
	}
	if r.err != nil {
		v.Error = services.UserMessage(r.err)
	}
	return v
}

// Score returns the model's value when it answered without error.
func (v View) Score(model string) (float64, bool) {
	res, ok := v.Results[model]
	if !ok || res.IsError {
		return 0, false
	}
	return res.Value, true
}

// Duration is the wall time from Begin to settlement, or zero.
func (v View) Duration() time.Duration {
	if v.StartedAt.IsZero() || v.SettledAt.IsZero() {
		return 0
	}
	return v.SettledAt.Sub(v.StartedAt)
}
