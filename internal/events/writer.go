package events

import (
	"context"
	"database/sql"
	"time"

	"prepx/internal/domain"
)

// timestampLayout matches the clock format shown in the progress feed.
const timestampLayout = "03:04:05 PM"

// Log is the per-run append-only progress log. Single writer (the
// pipeline), any number of readers.
type Log struct {
	DB  *sql.DB
	Now func() time.Time
}

// Append stores one event and returns it with its id and timestamp set.
func (l Log) Append(ctx context.Context, runID string, ev domain.ProgressEvent) (domain.ProgressEvent, error) {
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	if ev.Timestamp == "" {
		ev.Timestamp = now().Format(timestampLayout)
	}
	done := 0
	if ev.Done {
		done = 1
	}
	res, err := l.DB.ExecContext(ctx,
		`INSERT INTO events(run_id,agent,message,status,ts,done) VALUES (?,?,?,?,?,?)`,
		runID, ev.Agent, ev.Message, string(ev.Status), ev.Timestamp, done)
	if err != nil {
		return ev, err
	}
	ev.ID, _ = res.LastInsertId()
	return ev, nil
}

// Snapshot returns the full log for a run in append order.
func (l Log) Snapshot(ctx context.Context, runID string) ([]domain.ProgressEvent, error) {
	rows, err := l.DB.QueryContext(ctx,
		`SELECT id,agent,message,status,ts,done FROM events WHERE run_id=? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ProgressEvent
	for rows.Next() {
		var ev domain.ProgressEvent
		var status string
		var done int
		if err := rows.Scan(&ev.ID, &ev.Agent, &ev.Message, &status, &ev.Timestamp, &done); err != nil {
			return nil, err
		}
		ev.Status = domain.EventStatus(status)
		ev.Done = done != 0
		out = append(out, ev)
	}
	return out, rows.Err()
}
