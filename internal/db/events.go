package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// RecordEvent appends an entry to a plan's audit log
func (d *DB) RecordEvent(planID, eventType string, details map[string]interface{}) error {
	var detailsJSON string
	if details != nil {
		b, err := json.Marshal(details)
		if err == nil {
			detailsJSON = string(b)
		}
	}

	_, err := d.conn.Exec(`
		INSERT INTO plan_events (plan_id, event_type, details)
		VALUES (?, ?, ?)
	`, planID, eventType, nullString(detailsJSON))
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}

	return nil
}

// GetPlanEvents returns events for a plan, oldest first
func (d *DB) GetPlanEvents(planID string, limit int) ([]*PlanEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := d.conn.Query(`
		SELECT id, plan_id, event_type, details, timestamp
		FROM plan_events
		WHERE plan_id = ?
		ORDER BY id ASC
		LIMIT ?
	`, planID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query plan events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*PlanEvent, error) {
	var events []*PlanEvent
	for rows.Next() {
		var event PlanEvent
		var details sql.NullString

		err := rows.Scan(&event.ID, &event.PlanID, &event.EventType, &details, &event.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		event.Details = details.String

		events = append(events, &event)
	}

	return events, rows.Err()
}
