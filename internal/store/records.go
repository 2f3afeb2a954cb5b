package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"songlens/internal/keybpm"
	"songlens/internal/song"
)

// ErrNoSessions is returned by LatestSession on an empty database.
var ErrNoSessions = errors.New("no analysis sessions recorded")

// Session is one Analyze run.
type Session struct {
	ID         string
	FileCount  int
	CreatedAt  time.Time
	FinishedAt *time.Time
	Completed  int
	Failed     int
}

// CreateSession records the start of an analysis run.
func (s *Store) CreateSession(ctx context.Context, id string, fileCount int) error {
	err := s.exec(ctx,
		`INSERT INTO sessions (id, file_count, created_at) VALUES (?, ?, ?)`,
		id, fileCount, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// FinishSession stores the final counts of a run.
func (s *Store) FinishSession(ctx context.Context, id string, completed, failed int) error {
	err := s.exec(ctx,
		`UPDATE sessions SET finished_at = ?, completed = ?, failed = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), completed, failed, id,
	)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	return nil
}

// SaveRecord upserts the snapshot of one song.
func (s *Store) SaveRecord(ctx context.Context, sessionID string, v song.View) error {
	results, err := json.Marshal(v.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	models, err := json.Marshal(v.Models)
	if err != nil {
		return fmt.Errorf("marshal models: %w", err)
	}
	err = s.exec(ctx,
		`INSERT INTO records (
            session_id, song_id, file_name, path, batch_id, status,
            key_name, scale, bpm, error_message, models_json, results_json,
            started_at, settled_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(session_id, song_id) DO UPDATE SET
            status = excluded.status,
            key_name = excluded.key_name,
            scale = excluded.scale,
            bpm = excluded.bpm,
            error_message = excluded.error_message,
            results_json = excluded.results_json,
            started_at = excluded.started_at,
            settled_at = excluded.settled_at,
            updated_at = excluded.updated_at`,
		sessionID, v.ID, v.FileName, v.Path, v.BatchID, string(v.Status),
		v.Analysis.Key, v.Analysis.Scale, v.Analysis.BPM, nullableString(v.Error),
		string(models), string(results),
		nullableTime(v.StartedAt), nullableTime(v.SettledAt), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save record %d: %w", v.ID, err)
	}
	return nil
}

// ListRecords returns every record of a session ordered by song id.
func (s *Store) ListRecords(ctx context.Context, sessionID string) ([]song.View, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT song_id, file_name, path, batch_id, status, key_name, scale, bpm,
                error_message, models_json, results_json, started_at, settled_at
         FROM records WHERE session_id = ? ORDER BY song_id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []song.View
	for rows.Next() {
		var (
			v                      song.View
			status                 string
			errMsg                 sql.NullString
			modelsRaw, resRaw      string
			startedRaw, settledRaw sql.NullString
		)
		if err := rows.Scan(&v.ID, &v.FileName, &v.Path, &v.BatchID, &status,
			&v.Analysis.Key, &v.Analysis.Scale, &v.Analysis.BPM,
			&errMsg, &modelsRaw, &resRaw, &startedRaw, &settledRaw); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		v.Status = song.Status(status)
		v.Error = errMsg.String
		if err := json.Unmarshal([]byte(modelsRaw), &v.Models); err != nil {
			return nil, fmt.Errorf("decode models for song %d: %w", v.ID, err)
		}
		v.Results = make(map[string]song.Result)
		if err := json.Unmarshal([]byte(resRaw), &v.Results); err != nil {
			return nil, fmt.Errorf("decode results for song %d: %w", v.ID, err)
		}
		v.StartedAt = parseTime(startedRaw)
		v.SettledAt = parseTime(settledRaw)
		if v.Analysis.Key == "" {
			v.Analysis = keybpm.Sentinel()
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// LatestSession returns the most recently created session.
func (s *Store) LatestSession(ctx context.Context) (Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, file_count, created_at, finished_at, completed, failed
         FROM sessions ORDER BY rowid DESC LIMIT 1`)
	return scanSession(row)
}

// GetSession looks up a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, file_count, created_at, finished_at, completed, failed
         FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// ListSessions returns up to limit sessions, newest first. A limit of zero
// or less returns every session.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_count, created_at, finished_at, completed, failed
         FROM sessions ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var (
		sess        Session
		createdRaw  string
		finishedRaw sql.NullString
	)
	err := row.Scan(&sess.ID, &sess.FileCount, &createdRaw, &finishedRaw, &sess.Completed, &sess.Failed)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNoSessions
	}
	if err != nil {
		return Session{}, fmt.Errorf("scan session: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		sess.CreatedAt = t
	}
	if finishedRaw.Valid {
		if t, err := time.Parse(time.RFC3339Nano, finishedRaw.String); err == nil {
			sess.FinishedAt = &t
		}
	}
	return sess, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw sql.NullString) time.Time {
	if !raw.Valid {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
