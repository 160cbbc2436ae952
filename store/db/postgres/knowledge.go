package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"

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
	result, err := d.db.ExecContext(ctx, `DELETE FROM knowledge_documents WHERE id = $1`, delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete knowledge document: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CreateDocumentChunks batch-inserts embedded chunks.
func (d *DB) CreateDocumentChunks(ctx context.Context, chunks []*store.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	values, args := []string{}, []any{}
	for i, chunk := range chunks {
		base := i * 5
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5))
		args = append(args,
			chunk.DocumentID,
			chunk.ChunkIndex,
			chunk.Content,
			pgvector.NewVector(chunk.Embedding),
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

// SearchDocumentChunks runs a cosine similarity search over all chunks.
// The <=> operator is cosine distance, so score = 1 - distance and ordering
// by distance ascending returns the most similar chunks first.
func (d *DB) SearchDocumentChunks(ctx context.Context, opts *store.ChunkSearchOptions) ([]*store.ChunkWithScore, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = 4
	}

	query := `
		SELECT c.id, c.document_id, c.chunk_index, c.content, d.title,
		       1 - (c.embedding <=> $1) AS score
		FROM document_chunks c
		INNER JOIN knowledge_documents d ON d.id = c.document_id
		ORDER BY c.embedding <=> $2
		LIMIT $3
	`

	vector := pgvector.NewVector(opts.Vector)
	rows, err := d.db.QueryContext(ctx, query, vector, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search document chunks: %w", err)
	}
	defer rows.Close()

	results := make([]*store.ChunkWithScore, 0)
	for rows.Next() {
		var hit store.ChunkWithScore
		var chunk store.DocumentChunk
		if err := rows.Scan(
			&chunk.ID,
			&chunk.DocumentID,
			&chunk.ChunkIndex,
			&chunk.Content,
			&hit.Title,
			&hit.Score,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chunk search result: %w", err)
		}
		if hit.Score < opts.MinScore {
			continue
		}
		hit.Chunk = &chunk
		results = append(results, &hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chunk search results: %w", err)
	}

	return results, nil
}
