package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/queryon/queryon/store"
)

// CreateLLMConfig creates an LLM config row.
func (d *DB) CreateLLMConfig(ctx context.Context, create *store.LLMConfig) (*store.LLMConfig, error) {
	query := `
		INSERT INTO llms (
			name, provider, model, api_key, base_url, temperature, max_tokens,
			is_active, created_ts, updated_ts
		) VALUES (` + placeholders(10) + `)
		RETURNING id
	`

	if err := d.db.QueryRowContext(ctx, query,
		create.Name,
		create.Provider,
		create.Model,
		create.APIKey,
		create.BaseURL,
		create.Temperature,
		create.MaxTokens,
		create.IsActive,
		create.CreatedTs,
		create.UpdatedTs,
	).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create llm config: %w", err)
	}

	return create, nil
}

func (d *DB) ListLLMConfigs(ctx context.Context, find *store.FindLLMConfig) ([]*store.LLMConfig, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.IsActive != nil {
		where, args = append(where, "is_active = "+placeholder(len(args)+1)), append(args, *find.IsActive)
	}

	query := `
		SELECT id, name, provider, model, api_key, base_url, temperature, max_tokens,
		       is_active, created_ts, updated_ts
		FROM llms
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY id ASC
	`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list llm configs: %w", err)
	}
	defer rows.Close()

	list := make([]*store.LLMConfig, 0)
	for rows.Next() {
		var config store.LLMConfig
		if err := rows.Scan(
			&config.ID,
			&config.Name,
			&config.Provider,
			&config.Model,
			&config.APIKey,
			&config.BaseURL,
			&config.Temperature,
			&config.MaxTokens,
			&config.IsActive,
			&config.CreatedTs,
			&config.UpdatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan llm config: %w", err)
		}
		list = append(list, &config)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate llm configs: %w", err)
	}

	return list, nil
}

// UpdateLLMConfig updates one row. Activating a row deactivates every other
// row in the same transaction so exactly one config stays active.
func (d *DB) UpdateLLMConfig(ctx context.Context, update *store.UpdateLLMConfig) (*store.LLMConfig, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if update.IsActive != nil && *update.IsActive {
		if _, err := tx.ExecContext(ctx, `UPDATE llms SET is_active = FALSE WHERE id != ?`, update.ID); err != nil {
			return nil, fmt.Errorf("failed to deactivate llm configs: %w", err)
		}
	}

	set, args := []string{}, []any{}
	if update.Name != nil {
		set, args = append(set, "name = "+placeholder(len(args)+1)), append(args, *update.Name)
	}
	if update.Provider != nil {
		set, args = append(set, "provider = "+placeholder(len(args)+1)), append(args, *update.Provider)
	}
	if update.Model != nil {
		set, args = append(set, "model = "+placeholder(len(args)+1)), append(args, *update.Model)
	}
	if update.APIKey != nil {
		set, args = append(set, "api_key = "+placeholder(len(args)+1)), append(args, *update.APIKey)
	}
	if update.BaseURL != nil {
		set, args = append(set, "base_url = "+placeholder(len(args)+1)), append(args, *update.BaseURL)
	}
	if update.Temperature != nil {
		set, args = append(set, "temperature = "+placeholder(len(args)+1)), append(args, *update.Temperature)
	}
	if update.MaxTokens != nil {
		set, args = append(set, "max_tokens = "+placeholder(len(args)+1)), append(args, *update.MaxTokens)
	}
	if update.IsActive != nil {
		set, args = append(set, "is_active = "+placeholder(len(args)+1)), append(args, *update.IsActive)
	}
	if update.UpdatedTs != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *update.UpdatedTs)
	}

	if len(set) > 0 {
		args = append(args, update.ID)
		query := `UPDATE llms SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args))
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to update llm config: %w", err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return nil, store.ErrNotFound
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit llm config update: %w", err)
	}

	list, err := d.ListLLMConfigs(ctx, &store.FindLLMConfig{ID: &update.ID})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, store.ErrNotFound
	}
	return list[0], nil
}

func (d *DB) DeleteLLMConfig(ctx context.Context, delete *store.DeleteLLMConfig) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM llms WHERE id = ?`, delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete llm config: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CreateEmbeddingModelConfig creates an embedding model config row.
func (d *DB) CreateEmbeddingModelConfig(ctx context.Context, create *store.EmbeddingModelConfig) (*store.EmbeddingModelConfig, error) {
	query := `
		INSERT INTO embedding_model_configs (
			name, provider, model, api_key, base_url, vector_size,
			is_active, created_ts, updated_ts
		) VALUES (` + placeholders(9) + `)
		RETURNING id
	`

	if err := d.db.QueryRowContext(ctx, query,
		create.Name,
		create.Provider,
		create.Model,
		create.APIKey,
		create.BaseURL,
		create.VectorSize,
		create.IsActive,
		create.CreatedTs,
		create.UpdatedTs,
	).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create embedding model config: %w", err)
	}

	return create, nil
}

func (d *DB) ListEmbeddingModelConfigs(ctx context.Context, find *store.FindEmbeddingModelConfig) ([]*store.EmbeddingModelConfig, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.IsActive != nil {
		where, args = append(where, "is_active = "+placeholder(len(args)+1)), append(args, *find.IsActive)
	}

	query := `
		SELECT id, name, provider, model, api_key, base_url, vector_size,
		       is_active, created_ts, updated_ts
		FROM embedding_model_configs
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY id ASC
	`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list embedding model configs: %w", err)
	}
	defer rows.Close()

	list := make([]*store.EmbeddingModelConfig, 0)
	for rows.Next() {
		var config store.EmbeddingModelConfig
		if err := rows.Scan(
			&config.ID,
			&config.Name,
			&config.Provider,
			&config.Model,
			&config.APIKey,
			&config.BaseURL,
			&config.VectorSize,
			&config.IsActive,
			&config.CreatedTs,
			&config.UpdatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan embedding model config: %w", err)
		}
		list = append(list, &config)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate embedding model configs: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateEmbeddingModelConfig(ctx context.Context, update *store.UpdateEmbeddingModelConfig) (*store.EmbeddingModelConfig, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if update.IsActive != nil && *update.IsActive {
		if _, err := tx.ExecContext(ctx, `UPDATE embedding_model_configs SET is_active = FALSE WHERE id != ?`, update.ID); err != nil {
			return nil, fmt.Errorf("failed to deactivate embedding model configs: %w", err)
		}
	}

	set, args := []string{}, []any{}
	if update.Name != nil {
		set, args = append(set, "name = "+placeholder(len(args)+1)), append(args, *update.Name)
	}
	if update.Provider != nil {
		set, args = append(set, "provider = "+placeholder(len(args)+1)), append(args, *update.Provider)
	}
	if update.Model != nil {
		set, args = append(set, "model = "+placeholder(len(args)+1)), append(args, *update.Model)
	}
	if update.APIKey != nil {
		set, args = append(set, "api_key = "+placeholder(len(args)+1)), append(args, *update.APIKey)
	}
	if update.BaseURL != nil {
		set, args = append(set, "base_url = "+placeholder(len(args)+1)), append(args, *update.BaseURL)
	}
	if update.VectorSize != nil {
		set, args = append(set, "vector_size = "+placeholder(len(args)+1)), append(args, *update.VectorSize)
	}
	if update.IsActive != nil {
		set, args = append(set, "is_active = "+placeholder(len(args)+1)), append(args, *update.IsActive)
	}
	if update.UpdatedTs != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *update.UpdatedTs)
	}

	if len(set) > 0 {
		args = append(args, update.ID)
		query := `UPDATE embedding_model_configs SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args))
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to update embedding model config: %w", err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return nil, store.ErrNotFound
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit embedding model config update: %w", err)
	}

	list, err := d.ListEmbeddingModelConfigs(ctx, &store.FindEmbeddingModelConfig{ID: &update.ID})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, store.ErrNotFound
	}
	return list[0], nil
}

// GetRAGConfig reads the single retrieval config row.
func (d *DB) GetRAGConfig(ctx context.Context) (*store.RAGConfig, error) {
	var config store.RAGConfig
	if err := d.db.QueryRowContext(ctx, `
		SELECT id, top_k, min_score, answer_prompt, updated_ts
		FROM rag_config
		WHERE id = 1
	`).Scan(
		&config.ID,
		&config.TopK,
		&config.MinScore,
		&config.AnswerPrompt,
		&config.UpdatedTs,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get rag config: %w", err)
	}
	return &config, nil
}

func (d *DB) UpdateRAGConfig(ctx context.Context, update *store.UpdateRAGConfig) (*store.RAGConfig, error) {
	set, args := []string{}, []any{}

	if update.TopK != nil {
		set, args = append(set, "top_k = "+placeholder(len(args)+1)), append(args, *update.TopK)
	}
	if update.MinScore != nil {
		set, args = append(set, "min_score = "+placeholder(len(args)+1)), append(args, *update.MinScore)
	}
	if update.AnswerPrompt != nil {
		set, args = append(set, "answer_prompt = "+placeholder(len(args)+1)), append(args, *update.AnswerPrompt)
	}
	if update.UpdatedTs != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *update.UpdatedTs)
	}

	if len(set) == 0 {
		return d.GetRAGConfig(ctx)
	}

	query := `UPDATE rag_config SET ` + strings.Join(set, ", ") + ` WHERE id = 1`
	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to update rag config: %w", err)
	}

	return d.GetRAGConfig(ctx)
}
