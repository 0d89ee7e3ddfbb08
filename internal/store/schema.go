package store

import (
	"database/sql"
	"fmt"
)

// ensureSchema creates the pgvector extension, tables and index.
func ensureSchema(db *sql.DB, embedDim int) error {
	if embedDim <= 0 {
		embedDim = 768
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS documents (
			name TEXT PRIMARY KEY,
			pages INT NOT NULL,
			uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id SERIAL PRIMARY KEY,
			doc_name TEXT NOT NULL,
			page INT NOT NULL,
			chunk_id TEXT NOT NULL,
			text TEXT NOT NULL,
			embedding vector(%d)
		)`, embedDim),
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id SERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			sources JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS chat_messages_session_idx ON chat_messages (session_id, id)`,
		`DO $$
		BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM pg_class c
				JOIN pg_namespace n ON n.oid=c.relnamespace
				WHERE c.relname='chunks_embedding_ivfflat_idx'
			) THEN
				EXECUTE 'CREATE INDEX chunks_embedding_ivfflat_idx ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists=100)';
			END IF;
		END $$;`,
	}

	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}

	// ANALYZE keeps the ivfflat planner honest
	_, _ = db.Exec(`ANALYZE chunks`)
	return nil
}
