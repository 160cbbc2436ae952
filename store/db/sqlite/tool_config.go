package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/queryon/queryon/store"
)

// CreateToolConfig creates a tool row. Names are unique; a duplicate surfaces
// store.ErrAlreadyExists.
func (d *DB) CreateToolConfig(ctx context.Context, create *store.ToolConfig) (*store.ToolConfig, error) {
	existing, err := d.ListToolConfigs(ctx, &store.FindToolConfig{Name: &create.Name})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, store.ErrAlreadyExists
	}

	var schemaJSON any
	if create.Schema != nil {
		buf, err := json.Marshal(create.Schema)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal schema: %w", err)
		}
		schemaJSON = string(buf)
	}
	triggersJSON, err := json.Marshal(orEmptySlice(create.Triggers))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal triggers: %w", err)
	}

	query := `
		INSERT INTO tool_configs (
			name, description, endpoint, schema, triggers, enabled, created_ts, updated_ts
		) VALUES (` + placeholders(8) + `)
		RETURNING id
	`

	if err := d.db.QueryRowContext(ctx, query,
		create.Name,
		create.Description,
		create.Endpoint,
		schemaJSON,
		string(triggersJSON),
		create.Enabled,
		create.CreatedTs,
		create.UpdatedTs,
	).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create tool config: %w", err)
	}

	return create, nil
}

func (d *DB) ListToolConfigs(ctx context.Context, find *store.FindToolConfig) ([]*store.ToolConfig, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.Name != nil {
		where, args = append(where, "name = "+placeholder(len(args)+1)), append(args, *find.Name)
	}
	if find.Enabled != nil {
		where, args = append(where, "enabled = "+placeholder(len(args)+1)), append(args, *find.Enabled)
	}

	query := `
		SELECT id, name, description, endpoint, schema, triggers, enabled, created_ts, updated_ts
		FROM tool_configs
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY id ASC
	`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tool configs: %w", err)
	}
	defer rows.Close()

	list := make([]*store.ToolConfig, 0)
	for rows.Next() {
		tool, err := scanToolConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tool config: %w", err)
		}
		list = append(list, tool)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tool configs: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateToolConfig(ctx context.Context, update *store.UpdateToolConfig) (*store.ToolConfig, error) {
	set, args := []string{}, []any{}

	if update.Description != nil {
		set, args = append(set, "description = "+placeholder(len(args)+1)), append(args, *update.Description)
	}
	if update.Endpoint != nil {
		set, args = append(set, "endpoint = "+placeholder(len(args)+1)), append(args, *update.Endpoint)
	}
	if update.Schema != nil {
		buf, err := json.Marshal(*update.Schema)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal schema: %w", err)
		}
		set, args = append(set, "schema = "+placeholder(len(args)+1)), append(args, string(buf))
	}
	if update.Triggers != nil {
		buf, err := json.Marshal(orEmptySlice(*update.Triggers))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal triggers: %w", err)
		}
		set, args = append(set, "triggers = "+placeholder(len(args)+1)), append(args, string(buf))
	}
	if update.Enabled != nil {
		set, args = append(set, "enabled = "+placeholder(len(args)+1)), append(args, *update.Enabled)
	}
	if update.UpdatedTs != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *update.UpdatedTs)
	}

	if len(set) == 0 {
		return d.getToolConfig(ctx, update.ID)
	}

	args = append(args, update.ID)
	query := `UPDATE tool_configs SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args))

	result, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update tool config: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, store.ErrNotFound
	}

	return d.getToolConfig(ctx, update.ID)
}

func (d *DB) DeleteToolConfig(ctx context.Context, delete *store.DeleteToolConfig) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM tool_configs WHERE id = ?`, delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete tool config: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (d *DB) getToolConfig(ctx context.Context, id int32) (*store.ToolConfig, error) {
	list, err := d.ListToolConfigs(ctx, &store.FindToolConfig{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, store.ErrNotFound
	}
	return list[0], nil
}

func scanToolConfig(rows *sql.Rows) (*store.ToolConfig, error) {
	var tool store.ToolConfig
	var schemaJSON sql.NullString
	var triggersJSON string

	if err := rows.Scan(
		&tool.ID,
		&tool.Name,
		&tool.Description,
		&tool.Endpoint,
		&schemaJSON,
		&triggersJSON,
		&tool.Enabled,
		&tool.CreatedTs,
		&tool.UpdatedTs,
	); err != nil {
		return nil, err
	}

	if schemaJSON.Valid && schemaJSON.String != "" {
		if err := json.Unmarshal([]byte(schemaJSON.String), &tool.Schema); err != nil {
			return nil, fmt.Errorf("failed to unmarshal schema: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(triggersJSON), &tool.Triggers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal triggers: %w", err)
	}
	return &tool, nil
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
