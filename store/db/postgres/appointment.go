package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/queryon/queryon/store"
)

// CreateAppointment inserts an appointment and assigns its reference number
// inside the same transaction. The number is PREFIX-YYYY-NNNN where NNNN
// restarts at 0001 each year; the previous maximum row is locked so two
// concurrent bookings cannot mint the same number, and the unique index on
// appt_number catches anything that slips through.
func (d *DB) CreateAppointment(ctx context.Context, create *store.Appointment, numberPrefix string) (*store.Appointment, error) {
	var extraJSON any
	if create.ExtraFields != nil {
		buf, err := json.Marshal(create.ExtraFields)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal extra_fields: %w", err)
		}
		extraJSON = buf
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	year := time.Unix(create.CreatedTs, 0).UTC().Year()
	likePattern := fmt.Sprintf("%s-%d-%%", numberPrefix, year)

	var lastNumber sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT appt_number FROM appointments
		WHERE appt_number LIKE $1
		ORDER BY appt_number DESC
		LIMIT 1
		FOR UPDATE
	`, likePattern).Scan(&lastNumber)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to read last appointment number: %w", err)
	}

	seq := 1
	if lastNumber.Valid {
		parts := strings.Split(lastNumber.String, "-")
		if n, err := fmt.Sscanf(parts[len(parts)-1], "%d", &seq); n == 1 && err == nil {
			seq++
		}
	}
	create.ApptNumber = fmt.Sprintf("%s-%d-%04d", numberPrefix, year, seq)

	query := `
		INSERT INTO appointments (
			appt_number, conversation_id, status, contact_name, contact_phone,
			contact_email, service, location, artist, event_date, event_time,
			notes, summary, extra_fields, created_ts, updated_ts
		) VALUES (` + placeholders(16) + `)
		RETURNING id
	`

	if err := tx.QueryRowContext(ctx, query,
		create.ApptNumber,
		create.ConversationID,
		string(create.Status),
		create.ContactName,
		create.ContactPhone,
		create.ContactEmail,
		create.Service,
		create.Location,
		create.Artist,
		create.EventDate,
		create.EventTime,
		create.Notes,
		create.Summary,
		extraJSON,
		create.CreatedTs,
		create.UpdatedTs,
	).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit appointment: %w", err)
	}

	return create, nil
}

func (d *DB) ListAppointments(ctx context.Context, find *store.FindAppointment) ([]*store.Appointment, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.ApptNumber != nil {
		where, args = append(where, "appt_number = "+placeholder(len(args)+1)), append(args, *find.ApptNumber)
	}
	if find.ConversationID != nil {
		where, args = append(where, "conversation_id = "+placeholder(len(args)+1)), append(args, *find.ConversationID)
	}
	if find.Status != nil {
		where, args = append(where, "status = "+placeholder(len(args)+1)), append(args, string(*find.Status))
	}
	if find.Artist != nil {
		where, args = append(where, "artist = "+placeholder(len(args)+1)), append(args, *find.Artist)
	}
	if find.EventDate != nil {
		where, args = append(where, "event_date = "+placeholder(len(args)+1)), append(args, *find.EventDate)
	}
	if find.EventDateFrom != nil {
		where, args = append(where, "event_date >= "+placeholder(len(args)+1)), append(args, *find.EventDateFrom)
	}
	if find.EventDateTo != nil {
		where, args = append(where, "event_date <= "+placeholder(len(args)+1)), append(args, *find.EventDateTo)
	}

	query := `
		SELECT id, appt_number, conversation_id, status, contact_name, contact_phone,
		       contact_email, service, location, artist, event_date, event_time,
		       notes, summary, extra_fields, created_ts, updated_ts
		FROM appointments
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC, id DESC
	`
	if find.Limit != nil {
		query += fmt.Sprintf(" LIMIT %d", *find.Limit)
		if find.Offset != nil {
			query += fmt.Sprintf(" OFFSET %d", *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Appointment, 0)
	for rows.Next() {
		appointment, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		list = append(list, appointment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate appointments: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateAppointment(ctx context.Context, update *store.UpdateAppointment) (*store.Appointment, error) {
	set, args := []string{}, []any{}

	if update.Status != nil {
		set, args = append(set, "status = "+placeholder(len(args)+1)), append(args, string(*update.Status))
	}
	if update.ContactName != nil {
		set, args = append(set, "contact_name = "+placeholder(len(args)+1)), append(args, *update.ContactName)
	}
	if update.ContactPhone != nil {
		set, args = append(set, "contact_phone = "+placeholder(len(args)+1)), append(args, *update.ContactPhone)
	}
	if update.ContactEmail != nil {
		set, args = append(set, "contact_email = "+placeholder(len(args)+1)), append(args, *update.ContactEmail)
	}
	if update.Service != nil {
		set, args = append(set, "service = "+placeholder(len(args)+1)), append(args, *update.Service)
	}
	if update.Location != nil {
		set, args = append(set, "location = "+placeholder(len(args)+1)), append(args, *update.Location)
	}
	if update.Artist != nil {
		set, args = append(set, "artist = "+placeholder(len(args)+1)), append(args, *update.Artist)
	}
	if update.EventDate != nil {
		set, args = append(set, "event_date = "+placeholder(len(args)+1)), append(args, *update.EventDate)
	}
	if update.EventTime != nil {
		set, args = append(set, "event_time = "+placeholder(len(args)+1)), append(args, *update.EventTime)
	}
	if update.Notes != nil {
		set, args = append(set, "notes = "+placeholder(len(args)+1)), append(args, *update.Notes)
	}
	if update.Summary != nil {
		set, args = append(set, "summary = "+placeholder(len(args)+1)), append(args, *update.Summary)
	}
	if update.ExtraFields != nil {
		buf, err := json.Marshal(*update.ExtraFields)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal extra_fields: %w", err)
		}
		set, args = append(set, "extra_fields = "+placeholder(len(args)+1)), append(args, buf)
	}
	if update.UpdatedTs != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *update.UpdatedTs)
	}

	if len(set) == 0 {
		return d.getAppointment(ctx, update.ID)
	}

	args = append(args, update.ID)
	query := `UPDATE appointments SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args))

	result, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update appointment: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, store.ErrNotFound
	}

	return d.getAppointment(ctx, update.ID)
}

func (d *DB) DeleteAppointment(ctx context.Context, delete *store.DeleteAppointment) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (d *DB) getAppointment(ctx context.Context, id int32) (*store.Appointment, error) {
	list, err := d.ListAppointments(ctx, &store.FindAppointment{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, store.ErrNotFound
	}
	return list[0], nil
}

func scanAppointment(rows *sql.Rows) (*store.Appointment, error) {
	var appointment store.Appointment
	var status string
	var extraJSON []byte

	if err := rows.Scan(
		&appointment.ID,
		&appointment.ApptNumber,
		&appointment.ConversationID,
		&status,
		&appointment.ContactName,
		&appointment.ContactPhone,
		&appointment.ContactEmail,
		&appointment.Service,
		&appointment.Location,
		&appointment.Artist,
		&appointment.EventDate,
		&appointment.EventTime,
		&appointment.Notes,
		&appointment.Summary,
		&extraJSON,
		&appointment.CreatedTs,
		&appointment.UpdatedTs,
	); err != nil {
		return nil, err
	}

	appointment.Status = store.RecordStatus(status)
	if extraJSON != nil {
		if err := json.Unmarshal(extraJSON, &appointment.ExtraFields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal extra_fields: %w", err)
		}
	}
	return &appointment, nil
}

// CreateOrder creates a new order row.
func (d *DB) CreateOrder(ctx context.Context, create *store.Order) (*store.Order, error) {
	var extraJSON any
	if create.ExtraFields != nil {
		buf, err := json.Marshal(create.ExtraFields)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal extra_fields: %w", err)
		}
		extraJSON = buf
	}

	query := `
		INSERT INTO orders (
			conversation_id, status, contact_name, contact_phone, contact_email,
			service, location, event_date, event_time, notes, summary,
			extra_fields, created_ts, updated_ts
		) VALUES (` + placeholders(14) + `)
		RETURNING id
	`

	if err := d.db.QueryRowContext(ctx, query,
		create.ConversationID,
		string(create.Status),
		create.ContactName,
		create.ContactPhone,
		create.ContactEmail,
		create.Service,
		create.Location,
		create.EventDate,
		create.EventTime,
		create.Notes,
		create.Summary,
		extraJSON,
		create.CreatedTs,
		create.UpdatedTs,
	).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	return create, nil
}

func (d *DB) ListOrders(ctx context.Context, find *store.FindOrder) ([]*store.Order, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.ConversationID != nil {
		where, args = append(where, "conversation_id = "+placeholder(len(args)+1)), append(args, *find.ConversationID)
	}
	if find.Status != nil {
		where, args = append(where, "status = "+placeholder(len(args)+1)), append(args, string(*find.Status))
	}

	query := `
		SELECT id, conversation_id, status, contact_name, contact_phone, contact_email,
		       service, location, event_date, event_time, notes, summary,
		       extra_fields, created_ts, updated_ts
		FROM orders
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC, id DESC
	`
	if find.Limit != nil {
		query += fmt.Sprintf(" LIMIT %d", *find.Limit)
		if find.Offset != nil {
			query += fmt.Sprintf(" OFFSET %d", *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		list = append(list, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateOrder(ctx context.Context, update *store.UpdateOrder) (*store.Order, error) {
	set, args := []string{}, []any{}

	if update.Status != nil {
		set, args = append(set, "status = "+placeholder(len(args)+1)), append(args, string(*update.Status))
	}
	if update.ContactName != nil {
		set, args = append(set, "contact_name = "+placeholder(len(args)+1)), append(args, *update.ContactName)
	}
	if update.ContactPhone != nil {
		set, args = append(set, "contact_phone = "+placeholder(len(args)+1)), append(args, *update.ContactPhone)
	}
	if update.ContactEmail != nil {
		set, args = append(set, "contact_email = "+placeholder(len(args)+1)), append(args, *update.ContactEmail)
	}
	if update.Service != nil {
		set, args = append(set, "service = "+placeholder(len(args)+1)), append(args, *update.Service)
	}
	if update.Location != nil {
		set, args = append(set, "location = "+placeholder(len(args)+1)), append(args, *update.Location)
	}
	if update.EventDate != nil {
		set, args = append(set, "event_date = "+placeholder(len(args)+1)), append(args, *update.EventDate)
	}
	if update.EventTime != nil {
		set, args = append(set, "event_time = "+placeholder(len(args)+1)), append(args, *update.EventTime)
	}
	if update.Notes != nil {
		set, args = append(set, "notes = "+placeholder(len(args)+1)), append(args, *update.Notes)
	}
	if update.Summary != nil {
		set, args = append(set, "summary = "+placeholder(len(args)+1)), append(args, *update.Summary)
	}
	if update.ExtraFields != nil {
		buf, err := json.Marshal(*update.ExtraFields)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal extra_fields: %w", err)
		}
		set, args = append(set, "extra_fields = "+placeholder(len(args)+1)), append(args, buf)
	}
	if update.UpdatedTs != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *update.UpdatedTs)
	}

	if len(set) == 0 {
		return d.getOrder(ctx, update.ID)
	}

	args = append(args, update.ID)
	query := `UPDATE orders SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args))

	result, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, store.ErrNotFound
	}

	return d.getOrder(ctx, update.ID)
}

func (d *DB) DeleteOrder(ctx context.Context, delete *store.DeleteOrder) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (d *DB) getOrder(ctx context.Context, id int32) (*store.Order, error) {
	list, err := d.ListOrders(ctx, &store.FindOrder{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, store.ErrNotFound
	}
	return list[0], nil
}

func scanOrder(rows *sql.Rows) (*store.Order, error) {
	var order store.Order
	var status string
	var extraJSON []byte

	if err := rows.Scan(
		&order.ID,
		&order.ConversationID,
		&status,
		&order.ContactName,
		&order.ContactPhone,
		&order.ContactEmail,
		&order.Service,
		&order.Location,
		&order.EventDate,
		&order.EventTime,
		&order.Notes,
		&order.Summary,
		&extraJSON,
		&order.CreatedTs,
		&order.UpdatedTs,
	); err != nil {
		return nil, err
	}

	order.Status = store.RecordStatus(status)
	if extraJSON != nil {
		if err := json.Unmarshal(extraJSON, &order.ExtraFields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal extra_fields: %w", err)
		}
	}
	return &order, nil
}
