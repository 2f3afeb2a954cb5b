package workflow

import (
	"context"

	"songlens/internal/services"
	"songlens/internal/song"
	"songlens/internal/stage"
)

// SessionID returns the id of the active session, or "" before the first
// Analyze.
func (m *Manager) SessionID() string {
	sess := m.activeSession()
	if sess == nil {
		return ""
	}
	return sess.id
}

// Current returns the selected record of the active session.
func (m *Manager) Current() (song.View, bool) {
	sess := m.activeSession()
	if sess == nil {
		return song.View{}, false
	}
	rec, ok := sess.selected()
	if !ok {
		return song.View{}, false
	}
	return rec.View(), true
}

// Select makes id the current record and displays it.
func (m *Manager) Select(id int) error {
	sess := m.activeSession()
	if sess == nil || !sess.selectID(id) {
		return services.Wrap(services.ErrValidation, "workflow", "select", "Unknown song", nil)
	}
	if rec, ok := sess.lookup(id); ok {
		m.display.DisplayResults(rec.View())
	}
	return nil
}

// Records returns every record of the active session ordered by id.
func (m *Manager) Records() []song.View {
	sess := m.activeSession()
	if sess == nil {
		return nil
	}
	records := sess.sorted()
	out := make([]song.View, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.View())
	}
	return out
}

// Record returns one record of the active session.
func (m *Manager) Record(id int) (song.View, bool) {
	sess := m.activeSession()
	if sess == nil {
		return song.View{}, false
	}
	rec, ok := sess.lookup(id)
	if !ok {
		return song.View{}, false
	}
	return rec.View(), true
}

// Status reports session counters and the health of every stage.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	summary := StatusSummary{Current: -1}
	if sess := m.activeSession(); sess != nil {
		summary.SessionID = sess.id
		for _, rec := range sess.sorted() {
			summary.Songs++
			if rec.Status().Terminal() {
				summary.Settled++
			}
		}
		if rec, ok := sess.selected(); ok {
			summary.Current = rec.ID()
		}
	}
	summary.Stages = append(stage.Collect(ctx, m.features), m.pool.Health()...)
	return summary
}

// WarmModels initializes every configured model ahead of the first song.
func (m *Manager) WarmModels(ctx context.Context) error {
	return m.pool.Warm(ctx, m.models)
}

func (m *Manager) activeSession() *session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}
