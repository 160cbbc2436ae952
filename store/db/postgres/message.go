package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/queryon/queryon/store"
)

// CreateMessage creates a new message row.
func (d *DB) CreateMessage(ctx context.Context, create *store.Message) (*store.Message, error) {
	var sourcesJSON, metadataJSON any
	if create.Sources != nil {
		buf, err := json.Marshal(create.Sources)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal sources: %w", err)
		}
		sourcesJSON = buf
	}
	if create.ExtraMetadata != nil {
		buf, err := json.Marshal(create.ExtraMetadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal extra_metadata: %w", err)
		}
		metadataJSON = buf
	}

	query := `
		INSERT INTO messages (
			conversation_id, role, content, intent, confidence, classifier_layer,
			rule_matched, tool_called, fallback_used, needs_clarification, total_ms,
			sources, extra_metadata, created_ts
		) VALUES (` + placeholders(14) + `)
		RETURNING id
	`

	if err := d.db.QueryRowContext(ctx, query,
		create.ConversationID,
		string(create.Role),
		create.Content,
		create.Intent,
		create.Confidence,
		create.ClassifierLayer,
		create.RuleMatched,
		create.ToolCalled,
		create.FallbackUsed,
		create.NeedsClarification,
		create.TotalMs,
		sourcesJSON,
		metadataJSON,
		create.CreatedTs,
	).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	return create, nil
}

func (d *DB) ListMessages(ctx context.Context, find *store.FindMessage) ([]*store.Message, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.ConversationID != nil {
		where, args = append(where, "conversation_id = "+placeholder(len(args)+1)), append(args, *find.ConversationID)
	}
	if find.Role != nil {
		where, args = append(where, "role = "+placeholder(len(args)+1)), append(args, string(*find.Role))
	}

	order := "created_ts ASC, id ASC"
	if find.OrderDesc {
		order = "created_ts DESC, id DESC"
	}

	query := `
		SELECT id, conversation_id, role, content, intent, confidence, classifier_layer,
		       rule_matched, tool_called, fallback_used, needs_clarification, total_ms,
		       sources, extra_metadata, created_ts
		FROM messages
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY ` + order
	if find.Limit != nil {
		query += fmt.Sprintf(" LIMIT %d", *find.Limit)
		if find.Offset != nil {
			query += fmt.Sprintf(" OFFSET %d", *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Message, 0)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		list = append(list, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return list, nil
}

func (d *DB) DeleteMessage(ctx context.Context, delete *store.DeleteMessage) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM messages WHERE id = $1`, delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CreateMessageEvents inserts the whole batch of events logged for one turn.
func (d *DB) CreateMessageEvents(ctx context.Context, events []*store.MessageEvent) error {
	if len(events) == 0 {
		return nil
	}

	values, args := []string{}, []any{}
	for _, event := range events {
		var dataJSON any
		if event.Data != nil {
			buf, err := json.Marshal(event.Data)
			if err != nil {
				return fmt.Errorf("failed to marshal event data: %w", err)
			}
			dataJSON = buf
		}
		n := len(args)
		values = append(values, fmt.Sprintf("(%s, %s, %s, %s)",
			placeholder(n+1), placeholder(n+2), placeholder(n+3), placeholder(n+4)))
		args = append(args, event.MessageID, string(event.EventType), dataJSON, event.CreatedTs)
	}

	query := `INSERT INTO message_events (message_id, event_type, data, created_ts) VALUES ` +
		strings.Join(values, ", ")
	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create message events: %w", err)
	}
	return nil
}

func (d *DB) ListMessageEvents(ctx context.Context, find *store.FindMessageEvent) ([]*store.MessageEvent, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.MessageID != nil {
		where, args = append(where, "message_id = "+placeholder(len(args)+1)), append(args, *find.MessageID)
	}
	if find.EventType != nil {
		where, args = append(where, "event_type = "+placeholder(len(args)+1)), append(args, string(*find.EventType))
	}

	query := `
		SELECT id, message_id, event_type, data, created_ts
		FROM message_events
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY id ASC
	`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list message events: %w", err)
	}
	defer rows.Close()

	list := make([]*store.MessageEvent, 0)
	for rows.Next() {
		var event store.MessageEvent
		var dataJSON []byte
		if err := rows.Scan(&event.ID, &event.MessageID, &event.EventType, &dataJSON, &event.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan message event: %w", err)
		}
		if dataJSON != nil {
			if err := json.Unmarshal(dataJSON, &event.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
			}
		}
		list = append(list, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message events: %w", err)
	}

	return list, nil
}

func scanMessage(rows *sql.Rows) (*store.Message, error) {
	var message store.Message
	var sourcesJSON, metadataJSON []byte

	if err := rows.Scan(
		&message.ID,
		&message.ConversationID,
		&message.Role,
		&message.Content,
		&message.Intent,
		&message.Confidence,
		&message.ClassifierLayer,
		&message.RuleMatched,
		&message.ToolCalled,
		&message.FallbackUsed,
		&message.NeedsClarification,
		&message.TotalMs,
		&sourcesJSON,
		&metadataJSON,
		&message.CreatedTs,
	); err != nil {
		return nil, err
	}

	if sourcesJSON != nil {
		if err := json.Unmarshal(sourcesJSON, &message.Sources); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
		}
	}
	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &message.ExtraMetadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal extra_metadata: %w", err)
		}
	}
	return &message, nil
}
