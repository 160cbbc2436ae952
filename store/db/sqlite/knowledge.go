package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/queryon/queryon/store"
)

// CreateKnowledgeDocument creates a knowledge document row.
func (d *DB) CreateKnowledgeDocument(ctx context.Context, create *store.KnowledgeDocument) (*store.KnowledgeDocument, error) {
	query := `
		INSERT INTO knowledge_documents (title, source_name, mime_type, chunk_count, created_ts)
		VALUES (` + placeholders(5) + `)
		RETURNING id
	`

	if err := d.db.QueryRowContext(ctx, query,
		create.Title,
		create.SourceName,
		create.MimeType,
		create.ChunkCount,
		create.CreatedTs,
	).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create knowledge document: %w", err)
	}

	return create, nil
}

func (d *DB) ListKnowledgeDocuments(ctx context.Context, find *store.FindKnowledgeDocument) ([]*store.KnowledgeDocument, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.Title != nil {
		where, args = append(where, "title = "+placeholder(len(args)+1)), append(args, *find.Title)
	}

	query := `
		SELECT id, title, source_name, mime_type, chunk_count, created_ts
		FROM knowledge_documents
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC, id DESC
	`
	if find.Limit != nil {
		query += fmt.Sprintf(" LIMIT %d", *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge documents: %w", err)
	}
	defer rows.Close()

	list := make([]*store.KnowledgeDocument, 0)
	for rows.Next() {
		var doc store.KnowledgeDocument
		if err := rows.Scan(
			&doc.ID,
			&doc.Title,
			&doc.SourceName,
			&doc.MimeType,
			&doc.ChunkCount,
			&doc.CreatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge document: %w", err)
		}
		list = append(list, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate knowledge documents: %w", err)
	}

	return list, nil
}

func (d *DB) DeleteKnowledgeDocument(ctx context.Context, delete *store.DeleteKnowledgeDocument) error {
	// Chunks cascade via the foreign key.
	result, err := d.db.ExecContext(ctx, `DELETE FROM knowledge_documents WHERE id = ?`, delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete knowledge document: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CreateDocumentChunks batch-inserts chunks. The embedding is stored as a
// JSON array for inspection only; SQLite cannot search it.
func (d *DB) CreateDocumentChunks(ctx context.Context, chunks []*store.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	values, args := []string{}, []any{}
	for _, chunk := range chunks {
		embeddingJSON, err := json.Marshal(chunk.Embedding)
		if err != nil {
			return fmt.Errorf("failed to marshal embedding: %w", err)
		}
		values = append(values, "(?, ?, ?, ?, ?)")
		args = append(args,
			chunk.DocumentID,
			chunk.ChunkIndex,
			chunk.Content,
			string(embeddingJSON),
			chunk.CreatedTs,
		)
	}

	query := `
		INSERT INTO document_chunks (document_id, chunk_index, content, embedding, created_ts)
		VALUES ` + strings.Join(values, ", ")

	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create document chunks: %w", err)
	}
	return nil
}

// SearchDocumentChunks is unavailable on SQLite; callers degrade to the
// no-knowledge-base path.
func (d *DB) SearchDocumentChunks(ctx context.Context, opts *store.ChunkSearchOptions) ([]*store.ChunkWithScore, error) {
	return nil, store.ErrVectorUnsupported
}
