package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// #region log-event
// LogEvent writes a run event to the run_log table.
func LogEvent(db *sql.DB, ev RunEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if ev.Level == "" {
		ev.Level = "info"
	}

	_, err := db.Exec(
		`INSERT INTO run_log (run_id, event, level, detail_json, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		nullIfEmpty(ev.RunID),
		ev.Event,
		ev.Level,
		nullIfEmpty(ev.DetailJSON),
		ev.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log event: %w", err)
	}
	return nil
}

// LogDetail marshals detail into DetailJSON and writes the event.
func LogDetail(db *sql.DB, runID, event string, detail interface{}) error {
	b, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal %s detail: %w", event, err)
	}
	return LogEvent(db, RunEvent{RunID: runID, Event: event, DetailJSON: string(b)})
}

// ReadEvents returns the events of a run in the order they were written.
func ReadEvents(db *sql.DB, runID string) ([]RunEvent, error) {
	rows, err := db.Query(
		`SELECT run_id, event, level, detail_json, created_at FROM run_log WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	defer rows.Close()

	var out []RunEvent
	for rows.Next() {
		var ev RunEvent
		var id, detail sql.NullString
		var createdStr string
		if err := rows.Scan(&id, &ev.Event, &ev.Level, &detail, &createdStr); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.RunID = id.String
		ev.DetailJSON = detail.String
		ev.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// #endregion log-event

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
