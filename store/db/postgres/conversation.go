package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/queryon/queryon/store"
)

// CreateConversation creates a new conversation.
func (d *DB) CreateConversation(ctx context.Context, create *store.Conversation) (*store.Conversation, error) {
	var flowStateJSON any
	if create.FlowState != nil {
		buf, err := json.Marshal(create.FlowState)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal flow_state: %w", err)
		}
		flowStateJSON = buf
	}

	query := `
		INSERT INTO conversations (
			uid, platform, channel_id, name, surname, phone, email, username,
			status, flow_state, message_count, last_message_at, created_ts, updated_ts
		) VALUES (` + placeholders(14) + `)
		RETURNING id
	`

	if err := d.db.QueryRowContext(ctx, query,
		create.UID,
		string(create.Platform),
		create.ChannelID,
		create.Name,
		create.Surname,
		create.Phone,
		create.Email,
		create.Username,
		string(create.Status),
		flowStateJSON,
		create.MessageCount,
		create.LastMessageAt,
		create.CreatedTs,
		create.UpdatedTs,
	).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return create, nil
}

func (d *DB) ListConversations(ctx context.Context, find *store.FindConversation) ([]*store.Conversation, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}
	if find.Platform != nil {
		where, args = append(where, "platform = "+placeholder(len(args)+1)), append(args, string(*find.Platform))
	}
	if find.ChannelID != nil {
		where, args = append(where, "channel_id = "+placeholder(len(args)+1)), append(args, *find.ChannelID)
	}
	if find.Status != nil {
		where, args = append(where, "status = "+placeholder(len(args)+1)), append(args, string(*find.Status))
	}

	query := `
		SELECT id, uid, platform, channel_id, name, surname, phone, email, username,
		       status, flow_state, message_count, last_message_at, created_ts, updated_ts
		FROM conversations
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY last_message_at DESC, id DESC
	`
	if find.Limit != nil {
		query += fmt.Sprintf(" LIMIT %d", *find.Limit)
		if find.Offset != nil {
			query += fmt.Sprintf(" OFFSET %d", *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Conversation, 0)
	for rows.Next() {
		conversation, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		list = append(list, conversation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateConversation(ctx context.Context, update *store.UpdateConversation) (*store.Conversation, error) {
	set, args := []string{}, []any{}

	if update.Name != nil {
		set, args = append(set, "name = "+placeholder(len(args)+1)), append(args, *update.Name)
	}
	if update.Surname != nil {
		set, args = append(set, "surname = "+placeholder(len(args)+1)), append(args, *update.Surname)
	}
	if update.Phone != nil {
		set, args = append(set, "phone = "+placeholder(len(args)+1)), append(args, *update.Phone)
	}
	if update.Email != nil {
		set, args = append(set, "email = "+placeholder(len(args)+1)), append(args, *update.Email)
	}
	if update.Username != nil {
		set, args = append(set, "username = "+placeholder(len(args)+1)), append(args, *update.Username)
	}
	if update.Status != nil {
		set, args = append(set, "status = "+placeholder(len(args)+1)), append(args, string(*update.Status))
	}
	if update.FlowState != nil {
		if *update.FlowState == nil {
			set = append(set, "flow_state = NULL")
		} else {
			buf, err := json.Marshal(*update.FlowState)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal flow_state: %w", err)
			}
			set, args = append(set, "flow_state = "+placeholder(len(args)+1)), append(args, buf)
		}
	}
	if update.LastMessageAt != nil {
		set, args = append(set, "last_message_at = "+placeholder(len(args)+1)), append(args, *update.LastMessageAt)
	}
	if update.UpdatedTs != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *update.UpdatedTs)
	}

	if len(set) == 0 {
		return d.getConversation(ctx, update.ID)
	}

	args = append(args, update.ID)
	query := `UPDATE conversations SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args))

	result, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, store.ErrNotFound
	}

	return d.getConversation(ctx, update.ID)
}

func (d *DB) DeleteConversation(ctx context.Context, delete *store.DeleteConversation) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

// IncrementMessageCount bumps the counter and stamps the last activity in a
// single statement.
func (d *DB) IncrementMessageCount(ctx context.Context, conversationID int32, lastMessageAt int64) error {
	result, err := d.db.ExecContext(ctx, `
		UPDATE conversations
		SET message_count = message_count + 1, last_message_at = $1, updated_ts = $1
		WHERE id = $2
	`, lastMessageAt, conversationID)
	if err != nil {
		return fmt.Errorf("failed to increment message count: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (d *DB) getConversation(ctx context.Context, id int32) (*store.Conversation, error) {
	list, err := d.ListConversations(ctx, &store.FindConversation{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, store.ErrNotFound
	}
	return list[0], nil
}

func scanConversation(rows *sql.Rows) (*store.Conversation, error) {
	var conversation store.Conversation
	var flowStateJSON []byte

	if err := rows.Scan(
		&conversation.ID,
		&conversation.UID,
		&conversation.Platform,
		&conversation.ChannelID,
		&conversation.Name,
		&conversation.Surname,
		&conversation.Phone,
		&conversation.Email,
		&conversation.Username,
		&conversation.Status,
		&flowStateJSON,
		&conversation.MessageCount,
		&conversation.LastMessageAt,
		&conversation.CreatedTs,
		&conversation.UpdatedTs,
	); err != nil {
		return nil, err
	}

	if flowStateJSON != nil {
		if err := json.Unmarshal(flowStateJSON, &conversation.FlowState); err != nil {
			return nil, fmt.Errorf("failed to unmarshal flow_state: %w", err)
		}
	}
	return &conversation, nil
}
