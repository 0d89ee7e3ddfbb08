package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/sohamgugale/finrag/internal/model"
)

// PgStore persists documents, chunks and chat history in Postgres.
// Chunk embeddings live in a pgvector column and stay NULL when the
// dense retrieval path is disabled.
type PgStore struct {
	db *sql.DB
}

func NewPgStore(conn string, embedDim int) (*PgStore, error) {
	db, err := sql.Open("postgres", conn)
	if err != nil {
		return nil, err
	}
	if err := ensureSchema(db, embedDim); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PgStore{db: db}, nil
}

// AddDocument records an ingested file. Re-uploading a file replaces
// its previous chunks.
func (s *PgStore) AddDocument(name string, pages int) error {
	if _, err := s.db.Exec(`DELETE FROM chunks WHERE doc_name = $1`, name); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO documents (name, pages)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET pages = EXCLUDED.pages, uploaded_at = now()
	`, name, pages)
	return err
}

// AddChunk inserts one chunk; emb may be nil.
func (s *PgStore) AddChunk(c model.Chunk, emb []float32) error {
	var vec interface{}
	if len(emb) > 0 {
		vec = floatsToPgVectorLiteral(emb)
	}
	_, err := s.db.Exec(`
		INSERT INTO chunks (doc_name, page, chunk_id, text, embedding)
		VALUES ($1, $2, $3, $4, $5::vector)
	`, c.DocName, c.Page, c.ID, c.Text, vec)
	return err
}

// AllChunks returns the whole corpus in insertion order, for rebuilding
// the in-memory index.
func (s *PgStore) AllChunks() ([]model.Chunk, error) {
	rows, err := s.db.Query(`SELECT chunk_id, doc_name, page, text FROM chunks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []model.Chunk
	for rows.Next() {
		var c model.Chunk
		if err := rows.Scan(&c.ID, &c.DocName, &c.Page, &c.Text); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// SearchDense returns the k chunks nearest to the query vector.
func (s *PgStore) SearchDense(q []float32, k int) ([]model.SearchResult, error) {
	vec := floatsToPgVectorLiteral(q)
	rows, err := s.db.Query(`
		SELECT chunk_id, doc_name, page, text, embedding <-> $1::vector AS dist
		FROM chunks
		WHERE embedding IS NOT NULL
		ORDER BY dist
		LIMIT $2
	`, vec, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []model.SearchResult
	for rows.Next() {
		var r model.SearchResult
		var dist float64
		if err := rows.Scan(&r.Chunk.ID, &r.Chunk.DocName, &r.Chunk.Page, &r.Chunk.Text, &dist); err != nil {
			return nil, err
		}
		r.Score = 1 / (1 + dist)
		res = append(res, r)
	}
	return res, rows.Err()
}

// Documents summarizes the corpus per file.
func (s *PgStore) Documents() ([]model.DocumentInfo, error) {
	rows, err := s.db.Query(`
		SELECT d.name, d.pages, COUNT(c.id)
		FROM documents d
		LEFT JOIN chunks c ON c.doc_name = d.name
		GROUP BY d.name, d.pages, d.uploaded_at
		ORDER BY d.uploaded_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []model.DocumentInfo
	for rows.Next() {
		var d model.DocumentInfo
		if err := rows.Scan(&d.Name, &d.Pages, &d.Chunks); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// DeleteAll clears the corpus and every chat session.
func (s *PgStore) DeleteAll() error {
	_, err := s.db.Exec(`TRUNCATE chunks, documents, chat_messages`)
	return err
}

// AppendMessage stores one chat turn.
func (s *PgStore) AppendMessage(sessionID string, m model.ChatMessage) error {
	var sources interface{}
	if len(m.Sources) > 0 {
		b, err := json.Marshal(m.Sources)
		if err != nil {
			return fmt.Errorf("marshal sources: %w", err)
		}
		sources = b
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO chat_messages (session_id, role, content, sources, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, sessionID, m.Role, m.Content, sources, m.CreatedAt)
	return err
}

// History returns a session's messages in order.
func (s *PgStore) History(sessionID string) ([]model.ChatMessage, error) {
	rows, err := s.db.Query(`
		SELECT role, content, sources, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		var sources []byte
		if err := rows.Scan(&m.Role, &m.Content, &sources, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &m.Sources); err != nil {
				return nil, fmt.Errorf("unmarshal sources: %w", err)
			}
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// DeleteSession drops one session's history.
func (s *PgStore) DeleteSession(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM chat_messages WHERE session_id = $1`, sessionID)
	return err
}

func floatsToPgVectorLiteral(v []float32) string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, f := range v {
		sb.WriteString(fmt.Sprintf("%.6f", float64(f)))
		if i < len(v)-1 {
			sb.WriteString(",")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
