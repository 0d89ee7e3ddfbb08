package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings. Everything comes from the
// environment (optionally seeded from a .env file); ANTHROPIC_API_KEY
// is the only setting without a default.
type Config struct {
	ServerAddr string
	PgConn     string
	UploadDir  string
	LogMode    string

	AnthropicAPIKey string
	ChatModel       string
	MaxTokens       int

	// Optional OpenAI-compatible embeddings endpoint. Dense retrieval
	// stays off until EMBED_BASE_URL is set.
	EmbedBaseURL string
	EmbedAPIKey  string
	EmbedModel   string
	EmbedDim     int

	TopK              int
	SentencesPerChunk int
	ChunkMinChars     int
	ChunkMaxChars     int
	SnippetChars      int
	ContextChars      int
	ExcerptChars      int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerAddr: getenv("SERVER_ADDR", ":8080"),
		PgConn:     getenv("PG_CONN", "host=localhost port=5432 user=postgres password=postgres dbname=finrag sslmode=disable"),
		UploadDir:  getenv("UPLOAD_DIR", filepath.Join("data", "pdfs")),
		LogMode:    getenv("LOG_MODE", "dev"),

		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		ChatModel:       getenv("CHAT_MODEL", "claude-3-5-sonnet-20241022"),
		MaxTokens:       getenvInt("MAX_TOKENS", 1024),

		EmbedBaseURL: os.Getenv("EMBED_BASE_URL"),
		EmbedAPIKey:  getenv("EMBED_API_KEY", "not-needed"),
		EmbedModel:   getenv("EMBED_MODEL", "text-embedding-nomic-embed-text-v1.5"),
		EmbedDim:     getenvInt("EMBED_DIM", 768),

		TopK:              getenvInt("TOP_K", 3),
		SentencesPerChunk: getenvInt("CHUNK_SENTENCES", 3),
		ChunkMinChars:     getenvInt("CHUNK_MIN_CHARS", 50),
		ChunkMaxChars:     getenvInt("CHUNK_MAX_CHARS", 500),
		SnippetChars:      getenvInt("CONTEXT_SNIPPET_CHARS", 300),
		ContextChars:      getenvInt("CONTEXT_MAX_CHARS", 3000),
		ExcerptChars:      getenvInt("SOURCE_EXCERPT_CHARS", 200),
	}

	if cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}
	return cfg, nil
}

// EmbeddingsEnabled reports whether a dense retrieval endpoint is configured.
func (c *Config) EmbeddingsEnabled() bool {
	return c.EmbedBaseURL != ""
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
