package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrAmbiguous is returned when an id prefix matches more than one plan
var ErrAmbiguous = errors.New("ambiguous plan id")

// SavePlan stores a new plan. An empty ID gets a random UUID and a zero
// CreatedAt the current time; both are written back to plan.
func (d *DB) SavePlan(plan *Plan) error {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}

	_, err := d.conn.Exec(`
		INSERT INTO plans (id, device, table_type, sector_size, disk_sectors, partition_count, descriptor_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, plan.ID, plan.Device, plan.TableType, plan.SectorSize, plan.DiskSectors,
		plan.PartitionCount, plan.DescriptorJSON, plan.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}

	return nil
}

// GetPlan returns the plan whose id equals or starts with id.
// It returns nil when nothing matches and ErrAmbiguous when a prefix is
// shared by several plans.
func (d *DB) GetPlan(id string) (*Plan, error) {
	if id == "" {
		return nil, nil
	}

	rows, err := d.conn.Query(`
		SELECT id, device, table_type, sector_size, disk_sectors, partition_count, descriptor_json, created_at
		FROM plans
		WHERE id = ? OR substr(id, 1, ?) = ?
		ORDER BY (id = ?) DESC
		LIMIT 2
	`, id, len(id), id, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query plan: %w", err)
	}
	defer rows.Close()

	plans, err := scanPlans(rows)
	if err != nil {
		return nil, err
	}
	switch {
	case len(plans) == 0:
		return nil, nil
	case plans[0].ID == id, len(plans) == 1:
		return plans[0], nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrAmbiguous, id)
	}
}

// ListPlans returns saved plans, newest first. An empty device lists plans
// for every device.
func (d *DB) ListPlans(device string, limit int) ([]*Plan, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := d.conn.Query(`
		SELECT id, device, table_type, sector_size, disk_sectors, partition_count, descriptor_json, created_at
		FROM plans
		WHERE ? = '' OR device = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, device, device, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	return scanPlans(rows)
}

// DeletePlan removes a plan and its events. It reports whether a plan
// was deleted.
func (d *DB) DeletePlan(id string) (bool, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to delete plan: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM plan_events WHERE plan_id = ?", id); err != nil {
		tx.Rollback()
		return false, fmt.Errorf("failed to delete plan events: %w", err)
	}
	result, err := tx.Exec("DELETE FROM plans WHERE id = ?", id)
	if err != nil {
		tx.Rollback()
		return false, fmt.Errorf("failed to delete plan: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to delete plan: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanPlans(rows *sql.Rows) ([]*Plan, error) {
	var plans []*Plan
	for rows.Next() {
		var plan Plan
		err := rows.Scan(
			&plan.ID, &plan.Device, &plan.TableType, &plan.SectorSize, &plan.DiskSectors,
			&plan.PartitionCount, &plan.DescriptorJSON, &plan.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, &plan)
	}

	return plans, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
