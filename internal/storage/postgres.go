package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/Rhinks/Breadcrumbs/internal/apperr"
	"github.com/Rhinks/Breadcrumbs/internal/models"
)

// PostgresStorage is the pgvector-backed gateway for shared deployments.
// Similarity runs inside the database with the cosine distance operator, so
// only the top results cross the wire.
type PostgresStorage struct {
	pool       *pgxpool.Pool
	dimensions int
}

// NewPostgresStorage connects to databaseURL and ensures the schema. Requires
// the pgvector extension to be installable by the connecting role.
func NewPostgresStorage(ctx context.Context, databaseURL string, dimensions int) (*PostgresStorage, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &PostgresStorage{pool: pool, dimensions: dimensions}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStorage) ensureSchema(ctx context.Context) error {
	schema := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS conversations (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	source      TEXT NOT NULL,
	source_url  TEXT NOT NULL DEFAULT '',
	user_id     TEXT NOT NULL DEFAULT '',
	project_id  TEXT NOT NULL DEFAULT '',
	metadata    JSONB NOT NULL DEFAULT '{}',
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	position        INTEGER NOT NULL,
	metadata        JSONB NOT NULL DEFAULT '{}',
	created_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, position);

CREATE TABLE IF NOT EXISTS conversation_chunks (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	chunk_index     INTEGER NOT NULL,
	message_ids     JSONB NOT NULL DEFAULT '[]',
	content         TEXT NOT NULL,
	start_message   INTEGER NOT NULL,
	end_message     INTEGER NOT NULL,
	embedding       vector(%d),
	created_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_conversation ON conversation_chunks(conversation_id, chunk_index);

CREATE TABLE IF NOT EXISTS message_embeddings (
	message_id      TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	content         TEXT NOT NULL,
	position        INTEGER NOT NULL DEFAULT 0,
	embedding       vector(%d) NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
);
`, s.dimensions, s.dimensions)

	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// CreateConversation inserts a conversation row.
func (s *PostgresStorage) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	meta, err := marshalMetadata(conv.Metadata)
	if err != nil {
		return &apperr.PersistenceError{Op: "create conversation", Err: err}
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO conversations (id, title, source, source_url, user_id, project_id, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		conv.ID, conv.Title, string(conv.Source), conv.SourceURL, conv.UserID, conv.ProjectID, meta, conv.CreatedAt)
	if err != nil {
		return &apperr.PersistenceError{Op: "create conversation", Err: err}
	}
	return nil
}

// GetConversation returns a conversation and its messages ordered by position.
func (s *PostgresStorage) GetConversation(ctx context.Context, id string) (*models.Conversation, []models.Message, error) {
	var conv models.Conversation
	var source, meta string
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, source, source_url, user_id, project_id, metadata::text, created_at
		 FROM conversations WHERE id = $1`, id).
		Scan(&conv.ID, &conv.Title, &source, &conv.SourceURL, &conv.UserID, &conv.ProjectID, &meta, &conv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, &apperr.NotFoundError{Resource: "conversation", ID: id}
	}
	if err != nil {
		return nil, nil, &apperr.PersistenceError{Op: "get conversation", Err: err}
	}
	conv.Source = models.Source(source)
	if conv.Metadata, err = unmarshalMetadata(meta); err != nil {
		return nil, nil, &apperr.PersistenceError{Op: "get conversation", Err: err}
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, role, content, position, metadata::text, created_at
		 FROM messages WHERE conversation_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, nil, &apperr.PersistenceError{Op: "get conversation messages", Err: err}
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		var role, mmeta string
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &m.Position, &mmeta, &m.CreatedAt); err != nil {
			return nil, nil, &apperr.PersistenceError{Op: "get conversation messages", Err: err}
		}
		m.Role = models.Role(role)
		if m.Metadata, err = unmarshalMetadata(mmeta); err != nil {
			return nil, nil, &apperr.PersistenceError{Op: "get conversation messages", Err: err}
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, &apperr.PersistenceError{Op: "get conversation messages", Err: err}
	}
	return &conv, msgs, nil
}

// ListConversations returns conversation summaries newest-first.
func (s *PostgresStorage) ListConversations(ctx context.Context, limit, offset int) ([]models.ConversationSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, c.title, c.source, c.project_id, c.created_at,
		        (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		 FROM conversations c
		 ORDER BY c.created_at DESC, c.id
		 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, &apperr.PersistenceError{Op: "list conversations", Err: err}
	}
	defer rows.Close()

	summaries := []models.ConversationSummary{}
	for rows.Next() {
		var sum models.ConversationSummary
		var source string
		if err := rows.Scan(&sum.ID, &sum.Title, &source, &sum.ProjectID, &sum.CreatedAt, &sum.MessageCount); err != nil {
			return nil, &apperr.PersistenceError{Op: "list conversations", Err: err}
		}
		sum.Source = models.Source(source)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, &apperr.PersistenceError{Op: "list conversations", Err: err}
	}
	return summaries, nil
}

// CreateMessages inserts all messages in one transaction.
func (s *PostgresStorage) CreateMessages(ctx context.Context, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &apperr.PersistenceError{Op: "create messages", Err: err}
	}
	defer tx.Rollback(ctx)

	for _, m := range msgs {
		meta, err := marshalMetadata(m.Metadata)
		if err != nil {
			return &apperr.PersistenceError{Op: "create messages", Err: err}
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO messages (id, conversation_id, role, content, position, metadata, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			m.ID, m.ConversationID, string(m.Role), m.Content, m.Position, meta, m.CreatedAt)
		if err != nil {
			return &apperr.PersistenceError{Op: "create messages", Err: err}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return &apperr.PersistenceError{Op: "create messages", Err: err}
	}
	return nil
}

// CreateChunks inserts all chunks in one transaction.
func (s *PostgresStorage) CreateChunks(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &apperr.PersistenceError{Op: "create chunks", Err: err}
	}
	defer tx.Rollback(ctx)

	for _, c := range chunks {
		ids, err := json.Marshal(c.MessageIDs)
		if err != nil {
			return &apperr.PersistenceError{Op: "create chunks", Err: err}
		}
		var vec interface{}
		if c.Embedding != nil {
			if len(c.Embedding) != s.dimensions {
				return &apperr.DimensionMismatchError{Want: s.dimensions, Got: len(c.Embedding)}
			}
			vec = pgvector.NewVector(c.Embedding)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO conversation_chunks (id, conversation_id, chunk_index, message_ids, content, start_message, end_message, embedding, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			c.ID, c.ConversationID, c.ChunkIndex, string(ids), c.Content, c.StartMessage, c.EndMessage, vec, c.CreatedAt)
		if err != nil {
			return &apperr.PersistenceError{Op: "create chunks", Err: err}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return &apperr.PersistenceError{Op: "create chunks", Err: err}
	}
	return nil
}

// GetChunksByConversationID returns a conversation's chunks ordered by chunk index.
func (s *PostgresStorage) GetChunksByConversationID(ctx context.Context, conversationID string) ([]*models.Chunk, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, chunk_index, message_ids::text, content, start_message, end_message, embedding, created_at
		 FROM conversation_chunks WHERE conversation_id = $1 ORDER BY chunk_index`, conversationID)
	if err != nil {
		return nil, &apperr.PersistenceError{Op: "get chunks", Err: err}
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		var c models.Chunk
		var ids string
		var vec *pgvector.Vector
		if err := rows.Scan(&c.ID, &c.ConversationID, &c.ChunkIndex, &ids, &c.Content, &c.StartMessage, &c.EndMessage, &vec, &c.CreatedAt); err != nil {
			return nil, &apperr.PersistenceError{Op: "get chunks", Err: err}
		}
		if err := json.Unmarshal([]byte(ids), &c.MessageIDs); err != nil {
			return nil, &apperr.PersistenceError{Op: "get chunks", Err: err}
		}
		if vec != nil {
			c.Embedding = vec.Slice()
		}
		chunks = append(chunks, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, &apperr.PersistenceError{Op: "get chunks", Err: err}
	}
	return chunks, nil
}

// DeleteChunksByConversationID removes all chunks for a conversation.
func (s *PostgresStorage) DeleteChunksByConversationID(ctx context.Context, conversationID string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM conversation_chunks WHERE conversation_id = $1`, conversationID); err != nil {
		return &apperr.PersistenceError{Op: "delete chunks", Err: err}
	}
	return nil
}

// UpdateChunkEmbedding stores the embedding vector for one chunk.
func (s *PostgresStorage) UpdateChunkEmbedding(ctx context.Context, chunkID string, embedding []float32) error {
	if len(embedding) != s.dimensions {
		return &apperr.DimensionMismatchError{Want: s.dimensions, Got: len(embedding)}
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversation_chunks SET embedding = $1 WHERE id = $2`,
		pgvector.NewVector(embedding), chunkID)
	if err != nil {
		return &apperr.PersistenceError{Op: "update chunk embedding", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &apperr.NotFoundError{Resource: "chunk", ID: chunkID}
	}
	return nil
}

// SearchChunks runs cosine similarity inside Postgres over both chunk and
// legacy per-message embeddings, returning the top matches above threshold.
func (s *PostgresStorage) SearchChunks(ctx context.Context, query []float32, limit int, threshold float64, filter SearchFilter) ([]models.SearchResult, error) {
	if len(query) != s.dimensions {
		return nil, &apperr.DimensionMismatchError{Want: s.dimensions, Got: len(query)}
	}

	filterSQL := ""
	args := []interface{}{pgvector.NewVector(query), threshold}
	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID)
		filterSQL += fmt.Sprintf(" AND c.project_id = $%d", len(args))
	}
	if filter.Source != "" {
		args = append(args, string(filter.Source))
		filterSQL += fmt.Sprintf(" AND c.source = $%d", len(args))
	}
	args = append(args, limit)

	q := fmt.Sprintf(`
SELECT * FROM (
	SELECT ch.id, ch.conversation_id, c.title, ch.content, ch.chunk_index,
	       1 - (ch.embedding <=> $1) AS score, c.source
	FROM conversation_chunks ch
	JOIN conversations c ON c.id = ch.conversation_id
	WHERE ch.embedding IS NOT NULL%[1]s
	UNION ALL
	SELECT me.message_id, me.conversation_id, c.title, me.content, me.position,
	       1 - (me.embedding <=> $1) AS score, c.source
	FROM message_embeddings me
	JOIN conversations c ON c.id = me.conversation_id
	WHERE true%[1]s
) hits
WHERE score >= $2
ORDER BY score DESC
LIMIT $%[2]d`, filterSQL, len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, &apperr.PersistenceError{Op: "search chunks", Err: err}
	}
	defer rows.Close()

	results := []models.SearchResult{}
	for rows.Next() {
		var r models.SearchResult
		var source string
		if err := rows.Scan(&r.ChunkID, &r.ConversationID, &r.ConversationTitle, &r.ChunkContent, &r.ChunkIndex, &r.Score, &source); err != nil {
			return nil, &apperr.PersistenceError{Op: "search chunks", Err: err}
		}
		r.Source = models.Source(source)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &apperr.PersistenceError{Op: "search chunks", Err: err}
	}
	return results, nil
}

// CountConversations returns the number of stored conversations.
func (s *PostgresStorage) CountConversations(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&n); err != nil {
		return 0, &apperr.PersistenceError{Op: "count conversations", Err: err}
	}
	return n, nil
}

// CountChunks returns the number of stored chunks.
func (s *PostgresStorage) CountChunks(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM conversation_chunks`).Scan(&n); err != nil {
		return 0, &apperr.PersistenceError{Op: "count chunks", Err: err}
	}
	return n, nil
}

// Close closes the connection pool.
func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}
