package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/queryon/queryon/store"
)

// CreateCalendarResource creates a bookable resource row.
func (d *DB) CreateCalendarResource(ctx context.Context, create *store.CalendarResource) (*store.CalendarResource, error) {
	hoursJSON, err := json.Marshal(orEmptyHours(create.WorkingHours))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal working_hours: %w", err)
	}
	durationsJSON, err := json.Marshal(orEmptyDurations(create.ServiceDurations))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal service_durations: %w", err)
	}
	var credentialsJSON any
	if create.Credentials != nil {
		buf, err := json.Marshal(create.Credentials)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal credentials: %w", err)
		}
		credentialsJSON = buf
	}

	query := `
		INSERT INTO calendar_resources (
			name, resource_type, resource_name, calendar_type, working_hours,
			service_durations, external_id, credentials, created_ts, updated_ts
		) VALUES (` + placeholders(10) + `)
		RETURNING id
	`

	if err := d.db.QueryRowContext(ctx, query,
		create.Name,
		create.ResourceType,
		create.ResourceName,
		string(create.CalendarType),
		hoursJSON,
		durationsJSON,
		create.ExternalID,
		credentialsJSON,
		create.CreatedTs,
		create.UpdatedTs,
	).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create calendar resource: %w", err)
	}

	return create, nil
}

func (d *DB) ListCalendarResources(ctx context.Context, find *store.FindCalendarResource) ([]*store.CalendarResource, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.ResourceName != nil {
		where, args = append(where, "resource_name = "+placeholder(len(args)+1)), append(args, *find.ResourceName)
	}
	if find.CalendarType != nil {
		where, args = append(where, "calendar_type = "+placeholder(len(args)+1)), append(args, string(*find.CalendarType))
	}

	query := `
		SELECT id, name, resource_type, resource_name, calendar_type, working_hours,
		       service_durations, external_id, credentials, created_ts, updated_ts
		FROM calendar_resources
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY id ASC
	`
	if find.Limit != nil {
		query += fmt.Sprintf(" LIMIT %d", *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar resources: %w", err)
	}
	defer rows.Close()

	list := make([]*store.CalendarResource, 0)
	for rows.Next() {
		resource, err := scanCalendarResource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan calendar resource: %w", err)
		}
		list = append(list, resource)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate calendar resources: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateCalendarResource(ctx context.Context, update *store.UpdateCalendarResource) (*store.CalendarResource, error) {
	set, args := []string{}, []any{}

	if update.Name != nil {
		set, args = append(set, "name = "+placeholder(len(args)+1)), append(args, *update.Name)
	}
	if update.ResourceType != nil {
		set, args = append(set, "resource_type = "+placeholder(len(args)+1)), append(args, *update.ResourceType)
	}
	if update.ResourceName != nil {
		set, args = append(set, "resource_name = "+placeholder(len(args)+1)), append(args, *update.ResourceName)
	}
	if update.CalendarType != nil {
		set, args = append(set, "calendar_type = "+placeholder(len(args)+1)), append(args, string(*update.CalendarType))
	}
	if update.WorkingHours != nil {
		buf, err := json.Marshal(orEmptyHours(*update.WorkingHours))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal working_hours: %w", err)
		}
		set, args = append(set, "working_hours = "+placeholder(len(args)+1)), append(args, buf)
	}
	if update.ServiceDurations != nil {
		buf, err := json.Marshal(orEmptyDurations(*update.ServiceDurations))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal service_durations: %w", err)
		}
		set, args = append(set, "service_durations = "+placeholder(len(args)+1)), append(args, buf)
	}
	if update.ExternalID != nil {
		set, args = append(set, "external_id = "+placeholder(len(args)+1)), append(args, *update.ExternalID)
	}
	if update.Credentials != nil {
		buf, err := json.Marshal(*update.Credentials)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal credentials: %w", err)
		}
		set, args = append(set, "credentials = "+placeholder(len(args)+1)), append(args, buf)
	}
	if update.UpdatedTs != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *update.UpdatedTs)
	}

	if len(set) == 0 {
		return d.getCalendarResource(ctx, update.ID)
	}

	args = append(args, update.ID)
	query := `UPDATE calendar_resources SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args))

	result, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update calendar resource: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, store.ErrNotFound
	}

	return d.getCalendarResource(ctx, update.ID)
}

func (d *DB) DeleteCalendarResource(ctx context.Context, delete *store.DeleteCalendarResource) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM calendar_resources WHERE id = $1`, delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete calendar resource: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (d *DB) getCalendarResource(ctx context.Context, id int32) (*store.CalendarResource, error) {
	list, err := d.ListCalendarResources(ctx, &store.FindCalendarResource{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, store.ErrNotFound
	}
	return list[0], nil
}

func scanCalendarResource(rows *sql.Rows) (*store.CalendarResource, error) {
	var resource store.CalendarResource
	var calendarType string
	var hoursJSON, durationsJSON, credentialsJSON []byte

	if err := rows.Scan(
		&resource.ID,
		&resource.Name,
		&resource.ResourceType,
		&resource.ResourceName,
		&calendarType,
		&hoursJSON,
		&durationsJSON,
		&resource.ExternalID,
		&credentialsJSON,
		&resource.CreatedTs,
		&resource.UpdatedTs,
	); err != nil {
		return nil, err
	}

	resource.CalendarType = store.CalendarType(calendarType)
	if err := json.Unmarshal(hoursJSON, &resource.WorkingHours); err != nil {
		return nil, fmt.Errorf("failed to unmarshal working_hours: %w", err)
	}
	if err := json.Unmarshal(durationsJSON, &resource.ServiceDurations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal service_durations: %w", err)
	}
	if credentialsJSON != nil {
		if err := json.Unmarshal(credentialsJSON, &resource.Credentials); err != nil {
			return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
		}
	}
	return &resource, nil
}

// CreateCalendarBlock creates a busy interval on a resource calendar.
func (d *DB) CreateCalendarBlock(ctx context.Context, create *store.CalendarBlock) (*store.CalendarBlock, error) {
	query := `
		INSERT INTO calendar_blocks (
			resource_id, date, start_time, end_time, block_type, appointment_id, created_ts
		) VALUES (` + placeholders(7) + `)
		RETURNING id
	`

	if err := d.db.QueryRowContext(ctx, query,
		create.ResourceID,
		create.Date,
		create.StartTime,
		create.EndTime,
		string(create.BlockType),
		create.AppointmentID,
		create.CreatedTs,
	).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create calendar block: %w", err)
	}

	return create, nil
}

func (d *DB) ListCalendarBlocks(ctx context.Context, find *store.FindCalendarBlock) ([]*store.CalendarBlock, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.ResourceID != nil {
		where, args = append(where, "resource_id = "+placeholder(len(args)+1)), append(args, *find.ResourceID)
	}
	if find.Date != nil {
		where, args = append(where, "date = "+placeholder(len(args)+1)), append(args, *find.Date)
	}
	if find.AppointmentID != nil {
		where, args = append(where, "appointment_id = "+placeholder(len(args)+1)), append(args, *find.AppointmentID)
	}
	if find.BlockType != nil {
		where, args = append(where, "block_type = "+placeholder(len(args)+1)), append(args, string(*find.BlockType))
	}

	query := `
		SELECT id, resource_id, date, start_time, end_time, block_type, appointment_id, created_ts
		FROM calendar_blocks
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY date ASC, start_time ASC
	`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar blocks: %w", err)
	}
	defer rows.Close()

	list := make([]*store.CalendarBlock, 0)
	for rows.Next() {
		block, err := scanCalendarBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan calendar block: %w", err)
		}
		list = append(list, block)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate calendar blocks: %w", err)
	}

	return list, nil
}

func (d *DB) DeleteCalendarBlock(ctx context.Context, delete *store.DeleteCalendarBlock) error {
	where, args := []string{}, []any{}

	if delete.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *delete.ID)
	}
	if delete.AppointmentID != nil {
		where, args = append(where, "appointment_id = "+placeholder(len(args)+1)), append(args, *delete.AppointmentID)
	}
	if len(where) == 0 {
		return fmt.Errorf("delete calendar block requires id or appointment_id")
	}

	result, err := d.db.ExecContext(ctx, `DELETE FROM calendar_blocks WHERE `+strings.Join(where, " AND "), args...)
	if err != nil {
		return fmt.Errorf("failed to delete calendar blocks: %w", err)
	}
	// Deleting by appointment is a no-op when the appointment never held a
	// block, so only the by-id form reports missing rows.
	if rows, _ := result.RowsAffected(); rows == 0 && delete.ID != nil {
		return store.ErrNotFound
	}
	return nil
}

func scanCalendarBlock(rows *sql.Rows) (*store.CalendarBlock, error) {
	var block store.CalendarBlock
	var blockType string

	if err := rows.Scan(
		&block.ID,
		&block.ResourceID,
		&block.Date,
		&block.StartTime,
		&block.EndTime,
		&blockType,
		&block.AppointmentID,
		&block.CreatedTs,
	); err != nil {
		return nil, err
	}

	block.BlockType = store.BlockType(blockType)
	return &block, nil
}

func orEmptyHours(m map[string]store.DaySchedule) map[string]store.DaySchedule {
	if m == nil {
		return map[string]store.DaySchedule{}
	}
	return m
}

func orEmptyDurations(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}
