package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Rhinks/Breadcrumbs/internal/apperr"
	"github.com/Rhinks/Breadcrumbs/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS conversations (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	source      TEXT NOT NULL,
	source_url  TEXT NOT NULL DEFAULT '',
	user_id     TEXT NOT NULL DEFAULT '',
	project_id  TEXT NOT NULL DEFAULT '',
	metadata    TEXT NOT NULL DEFAULT '{}',
	created_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	position        INTEGER NOT NULL,
	metadata        TEXT NOT NULL DEFAULT '{}',
	created_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, position);

CREATE TABLE IF NOT EXISTS conversation_chunks (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	chunk_index     INTEGER NOT NULL,
	message_ids     TEXT NOT NULL DEFAULT '[]',
	content         TEXT NOT NULL,
	start_message   INTEGER NOT NULL,
	end_message     INTEGER NOT NULL,
	embedding       BLOB,
	created_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_conversation ON conversation_chunks(conversation_id, chunk_index);

-- Legacy per-message embeddings from before chunked storage. Read-only: the
-- search path still surfaces these rows, nothing writes here anymore.
CREATE TABLE IF NOT EXISTS message_embeddings (
	message_id      TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	content         TEXT NOT NULL,
	position        INTEGER NOT NULL DEFAULT 0,
	embedding       BLOB NOT NULL,
	created_at      TIMESTAMP NOT NULL
);
`

// SQLiteStorage is the default persistence gateway, backed by a local SQLite
// file with embeddings stored as little-endian float32 BLOBs. Similarity is
// computed in-process over candidate rows.
type SQLiteStorage struct {
	db         *sql.DB
	dimensions int
}

// NewSQLiteStorage opens (creating if needed) the database at dbPath and
// ensures the schema. dimensions is the expected embedding length; vectors of
// any other length are rejected on write.
func NewSQLiteStorage(dbPath string, dimensions int) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStorage{db: db, dimensions: dimensions}, nil
}

// CreateConversation inserts a conversation row. The caller assigns the ID.
func (s *SQLiteStorage) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	meta, err := marshalMetadata(conv.Metadata)
	if err != nil {
		return &apperr.PersistenceError{Op: "create conversation", Err: err}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, source, source_url, user_id, project_id, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.Title, string(conv.Source), conv.SourceURL, conv.UserID, conv.ProjectID, meta, conv.CreatedAt)
	if err != nil {
		return &apperr.PersistenceError{Op: "create conversation", Err: err}
	}
	return nil
}

// GetConversation returns a conversation and its messages ordered by position.
func (s *SQLiteStorage) GetConversation(ctx context.Context, id string) (*models.Conversation, []models.Message, error) {
	var conv models.Conversation
	var source, meta string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, source, source_url, user_id, project_id, metadata, created_at
		 FROM conversations WHERE id = ?`, id).
		Scan(&conv.ID, &conv.Title, &source, &conv.SourceURL, &conv.UserID, &conv.ProjectID, &meta, &conv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, &apperr.NotFoundError{Resource: "conversation", ID: id}
	}
	if err != nil {
		return nil, nil, &apperr.PersistenceError{Op: "get conversation", Err: err}
	}
	conv.Source = models.Source(source)
	if conv.Metadata, err = unmarshalMetadata(meta); err != nil {
		return nil, nil, &apperr.PersistenceError{Op: "get conversation", Err: err}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, position, metadata, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY position`, id)
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
func (s *SQLiteStorage) ListConversations(ctx context.Context, limit, offset int) ([]models.ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.title, c.source, c.project_id, c.created_at,
		        (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		 FROM conversations c
		 ORDER BY c.created_at DESC, c.id
		 LIMIT ? OFFSET ?`, limit, offset)
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
func (s *SQLiteStorage) CreateMessages(ctx context.Context, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &apperr.PersistenceError{Op: "create messages", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, position, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return &apperr.PersistenceError{Op: "create messages", Err: err}
	}
	defer stmt.Close()

	for _, m := range msgs {
		meta, err := marshalMetadata(m.Metadata)
		if err != nil {
			return &apperr.PersistenceError{Op: "create messages", Err: err}
		}
		if _, err := stmt.ExecContext(ctx, m.ID, m.ConversationID, string(m.Role), m.Content, m.Position, meta, m.CreatedAt); err != nil {
			return &apperr.PersistenceError{Op: "create messages", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &apperr.PersistenceError{Op: "create messages", Err: err}
	}
	return nil
}

// CreateChunks inserts all chunks in one transaction. Embeddings are stored
// when present on the chunk, otherwise left null for a later update.
func (s *SQLiteStorage) CreateChunks(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &apperr.PersistenceError{Op: "create chunks", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO conversation_chunks (id, conversation_id, chunk_index, message_ids, content, start_message, end_message, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return &apperr.PersistenceError{Op: "create chunks", Err: err}
	}
	defer stmt.Close()

	for _, c := range chunks {
		ids, err := json.Marshal(c.MessageIDs)
		if err != nil {
			return &apperr.PersistenceError{Op: "create chunks", Err: err}
		}
		var blob interface{}
		if c.Embedding != nil {
			if len(c.Embedding) != s.dimensions {
				return &apperr.DimensionMismatchError{Want: s.dimensions, Got: len(c.Embedding)}
			}
			blob = float32SliceToBytes(c.Embedding)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.ConversationID, c.ChunkIndex, string(ids), c.Content, c.StartMessage, c.EndMessage, blob, c.CreatedAt); err != nil {
			return &apperr.PersistenceError{Op: "create chunks", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &apperr.PersistenceError{Op: "create chunks", Err: err}
	}
	return nil
}

// GetChunksByConversationID returns a conversation's chunks ordered by chunk index.
func (s *SQLiteStorage) GetChunksByConversationID(ctx context.Context, conversationID string) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, chunk_index, message_ids, content, start_message, end_message, embedding, created_at
		 FROM conversation_chunks WHERE conversation_id = ? ORDER BY chunk_index`, conversationID)
	if err != nil {
		return nil, &apperr.PersistenceError{Op: "get chunks", Err: err}
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		var c models.Chunk
		var ids string
		var blob []byte
		if err := rows.Scan(&c.ID, &c.ConversationID, &c.ChunkIndex, &ids, &c.Content, &c.StartMessage, &c.EndMessage, &blob, &c.CreatedAt); err != nil {
			return nil, &apperr.PersistenceError{Op: "get chunks", Err: err}
		}
		if err := json.Unmarshal([]byte(ids), &c.MessageIDs); err != nil {
			return nil, &apperr.PersistenceError{Op: "get chunks", Err: err}
		}
		if blob != nil {
			if c.Embedding, err = bytesToFloat32Slice(blob); err != nil {
				return nil, &apperr.PersistenceError{Op: "get chunks", Err: err}
			}
		}
		chunks = append(chunks, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, &apperr.PersistenceError{Op: "get chunks", Err: err}
	}
	return chunks, nil
}

// DeleteChunksByConversationID removes all chunks for a conversation.
func (s *SQLiteStorage) DeleteChunksByConversationID(ctx context.Context, conversationID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_chunks WHERE conversation_id = ?`, conversationID); err != nil {
		return &apperr.PersistenceError{Op: "delete chunks", Err: err}
	}
	return nil
}

// UpdateChunkEmbedding stores the embedding vector for one chunk.
func (s *SQLiteStorage) UpdateChunkEmbedding(ctx context.Context, chunkID string, embedding []float32) error {
	if len(embedding) != s.dimensions {
		return &apperr.DimensionMismatchError{Want: s.dimensions, Got: len(embedding)}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversation_chunks SET embedding = ? WHERE id = ?`,
		float32SliceToBytes(embedding), chunkID)
	if err != nil {
		return &apperr.PersistenceError{Op: "update chunk embedding", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &apperr.PersistenceError{Op: "update chunk embedding", Err: err}
	}
	if n == 0 {
		return &apperr.NotFoundError{Resource: "chunk", ID: chunkID}
	}
	return nil
}

// SearchChunks scores all embedded chunks (and legacy per-message embeddings)
// against the query vector in-process, then applies threshold, ordering, and
// limit. Fine at local-first scale; the Postgres backend pushes this into the
// database.
func (s *SQLiteStorage) SearchChunks(ctx context.Context, query []float32, limit int, threshold float64, filter SearchFilter) ([]models.SearchResult, error) {
	if len(query) != s.dimensions {
		return nil, &apperr.DimensionMismatchError{Want: s.dimensions, Got: len(query)}
	}

	results, err := s.scoreChunks(ctx, query, filter)
	if err != nil {
		return nil, err
	}
	legacy, err := s.scoreLegacy(ctx, query, filter)
	if err != nil {
		return nil, err
	}
	results = append(results, legacy...)

	filtered := results[:0]
	for _, r := range results {
		if r.Score >= threshold {
			filtered = append(filtered, r)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Score > filtered[j].Score })
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	out := make([]models.SearchResult, len(filtered))
	copy(out, filtered)
	return out, nil
}

func (s *SQLiteStorage) scoreChunks(ctx context.Context, query []float32, filter SearchFilter) ([]models.SearchResult, error) {
	q := `SELECT ch.id, ch.conversation_id, c.title, ch.content, ch.chunk_index, ch.embedding, c.source
	      FROM conversation_chunks ch
	      JOIN conversations c ON c.id = ch.conversation_id
	      WHERE ch.embedding IS NOT NULL`
	args := []interface{}{}
	if filter.ProjectID != "" {
		q += ` AND c.project_id = ?`
		args = append(args, filter.ProjectID)
	}
	if filter.Source != "" {
		q += ` AND c.source = ?`
		args = append(args, string(filter.Source))
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, &apperr.PersistenceError{Op: "search chunks", Err: err}
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		var blob []byte
		var source string
		if err := rows.Scan(&r.ChunkID, &r.ConversationID, &r.ConversationTitle, &r.ChunkContent, &r.ChunkIndex, &blob, &source); err != nil {
			return nil, &apperr.PersistenceError{Op: "search chunks", Err: err}
		}
		vec, err := bytesToFloat32Slice(blob)
		if err != nil {
			return nil, &apperr.PersistenceError{Op: "search chunks", Err: err}
		}
		r.Score = CosineSimilarity(query, vec)
		r.Source = models.Source(source)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &apperr.PersistenceError{Op: "search chunks", Err: err}
	}
	return results, nil
}

// scoreLegacy surfaces pre-chunking per-message embeddings as single-message
// results, with the message id standing in as the chunk id.
func (s *SQLiteStorage) scoreLegacy(ctx context.Context, query []float32, filter SearchFilter) ([]models.SearchResult, error) {
	q := `SELECT me.message_id, me.conversation_id, c.title, me.content, me.position, me.embedding, c.source
	      FROM message_embeddings me
	      JOIN conversations c ON c.id = me.conversation_id`
	args := []interface{}{}
	where := ""
	if filter.ProjectID != "" {
		where += ` AND c.project_id = ?`
		args = append(args, filter.ProjectID)
	}
	if filter.Source != "" {
		where += ` AND c.source = ?`
		args = append(args, string(filter.Source))
	}
	if where != "" {
		q += ` WHERE` + where[4:]
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, &apperr.PersistenceError{Op: "search legacy embeddings", Err: err}
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		var blob []byte
		var source string
		if err := rows.Scan(&r.ChunkID, &r.ConversationID, &r.ConversationTitle, &r.ChunkContent, &r.ChunkIndex, &blob, &source); err != nil {
			return nil, &apperr.PersistenceError{Op: "search legacy embeddings", Err: err}
		}
		vec, err := bytesToFloat32Slice(blob)
		if err != nil {
			return nil, &apperr.PersistenceError{Op: "search legacy embeddings", Err: err}
		}
		if len(vec) != len(query) {
			continue
		}
		r.Score = CosineSimilarity(query, vec)
		r.Source = models.Source(source)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &apperr.PersistenceError{Op: "search legacy embeddings", Err: err}
	}
	return results, nil
}

// CountConversations returns the number of stored conversations.
func (s *SQLiteStorage) CountConversations(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&n); err != nil {
		return 0, &apperr.PersistenceError{Op: "count conversations", Err: err}
	}
	return n, nil
}

// CountChunks returns the number of stored chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversation_chunks`).Scan(&n); err != nil {
		return 0, &apperr.PersistenceError{Op: "count chunks", Err: err}
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func marshalMetadata(m map[string]interface{}) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalMetadata(s string) (map[string]interface{}, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}
