package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/queryon/queryon/store"
)

// CreateRule creates a new rule row.
func (d *DB) CreateRule(ctx context.Context, create *store.Rule) (*store.Rule, error) {
	patternsJSON, err := json.Marshal(create.TriggerPatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trigger_patterns: %w", err)
	}
	variablesJSON, err := json.Marshal(orEmptyMap(create.Variables))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal variables: %w", err)
	}
	var nextStepsJSON any
	if create.NextSteps != nil {
		buf, err := json.Marshal(create.NextSteps)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal next_steps: %w", err)
		}
		nextStepsJSON = buf
	}

	query := `
		INSERT INTO rules (
			name, description, trigger_patterns, response_template, variables,
			priority, is_active, flow_id, step_key, required_step, next_steps,
			created_ts, updated_ts
		) VALUES (` + placeholders(13) + `)
		RETURNING id
	`

	if err := d.db.QueryRowContext(ctx, query,
		create.Name,
		create.Description,
		patternsJSON,
		create.ResponseTemplate,
		variablesJSON,
		create.Priority,
		create.IsActive,
		create.FlowID,
		create.StepKey,
		create.RequiredStep,
		nextStepsJSON,
		create.CreatedTs,
		create.UpdatedTs,
	).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}

	return create, nil
}

func (d *DB) ListRules(ctx context.Context, find *store.FindRule) ([]*store.Rule, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.Name != nil {
		where, args = append(where, "name = "+placeholder(len(args)+1)), append(args, *find.Name)
	}
	if find.IsActive != nil {
		where, args = append(where, "is_active = "+placeholder(len(args)+1)), append(args, *find.IsActive)
	}
	if find.FlowID != nil {
		where, args = append(where, "flow_id = "+placeholder(len(args)+1)), append(args, *find.FlowID)
	}

	query := `
		SELECT id, name, description, trigger_patterns, response_template, variables,
		       priority, is_active, flow_id, step_key, required_step, next_steps,
		       created_ts, updated_ts
		FROM rules
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY priority DESC, id ASC
	`
	if find.Limit != nil {
		query += fmt.Sprintf(" LIMIT %d", *find.Limit)
		if find.Offset != nil {
			query += fmt.Sprintf(" OFFSET %d", *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Rule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		list = append(list, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateRule(ctx context.Context, update *store.UpdateRule) (*store.Rule, error) {
	set, args := []string{}, []any{}

	if update.Name != nil {
		set, args = append(set, "name = "+placeholder(len(args)+1)), append(args, *update.Name)
	}
	if update.Description != nil {
		set, args = append(set, "description = "+placeholder(len(args)+1)), append(args, *update.Description)
	}
	if update.TriggerPatterns != nil {
		buf, err := json.Marshal(*update.TriggerPatterns)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal trigger_patterns: %w", err)
		}
		set, args = append(set, "trigger_patterns = "+placeholder(len(args)+1)), append(args, buf)
	}
	if update.ResponseTemplate != nil {
		set, args = append(set, "response_template = "+placeholder(len(args)+1)), append(args, *update.ResponseTemplate)
	}
	if update.Variables != nil {
		buf, err := json.Marshal(orEmptyMap(*update.Variables))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal variables: %w", err)
		}
		set, args = append(set, "variables = "+placeholder(len(args)+1)), append(args, buf)
	}
	if update.Priority != nil {
		set, args = append(set, "priority = "+placeholder(len(args)+1)), append(args, *update.Priority)
	}
	if update.IsActive != nil {
		set, args = append(set, "is_active = "+placeholder(len(args)+1)), append(args, *update.IsActive)
	}
	if update.FlowID != nil {
		set, args = append(set, "flow_id = "+placeholder(len(args)+1)), append(args, *update.FlowID)
	}
	if update.StepKey != nil {
		set, args = append(set, "step_key = "+placeholder(len(args)+1)), append(args, *update.StepKey)
	}
	if update.RequiredStep != nil {
		set, args = append(set, "required_step = "+placeholder(len(args)+1)), append(args, *update.RequiredStep)
	}
	if update.NextSteps != nil {
		buf, err := json.Marshal(*update.NextSteps)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal next_steps: %w", err)
		}
		set, args = append(set, "next_steps = "+placeholder(len(args)+1)), append(args, buf)
	}
	if update.UpdatedTs != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *update.UpdatedTs)
	}

	if len(set) == 0 {
		return d.getRule(ctx, update.ID)
	}

	args = append(args, update.ID)
	query := `UPDATE rules SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args))

	result, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, store.ErrNotFound
	}

	return d.getRule(ctx, update.ID)
}

func (d *DB) DeleteRule(ctx context.Context, delete *store.DeleteRule) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM rules WHERE id = $1`, delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (d *DB) getRule(ctx context.Context, id int32) (*store.Rule, error) {
	list, err := d.ListRules(ctx, &store.FindRule{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, store.ErrNotFound
	}
	return list[0], nil
}

func scanRule(rows *sql.Rows) (*store.Rule, error) {
	var rule store.Rule
	var patternsJSON, variablesJSON, nextStepsJSON []byte

	if err := rows.Scan(
		&rule.ID,
		&rule.Name,
		&rule.Description,
		&patternsJSON,
		&rule.ResponseTemplate,
		&variablesJSON,
		&rule.Priority,
		&rule.IsActive,
		&rule.FlowID,
		&rule.StepKey,
		&rule.RequiredStep,
		&nextStepsJSON,
		&rule.CreatedTs,
		&rule.UpdatedTs,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(patternsJSON, &rule.TriggerPatterns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger_patterns: %w", err)
	}
	if err := json.Unmarshal(variablesJSON, &rule.Variables); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variables: %w", err)
	}
	if nextStepsJSON != nil {
		if err := json.Unmarshal(nextStepsJSON, &rule.NextSteps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal next_steps: %w", err)
		}
	}
	return &rule, nil
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
