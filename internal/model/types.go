package model

import "time"

// Chunk is one retrievable piece of an uploaded document.
type Chunk struct {
	ID      string `json:"id"`
	DocName string `json:"doc"`
	Page    int    `json:"page"`
	Text    string `json:"text"`
}

// SearchResult pairs a chunk with its retrieval score.
type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Source is a citation attached to an answer: where the supporting
// text came from and a short excerpt of it.
type Source struct {
	DocName string `json:"doc"`
	Page    int    `json:"page"`
	Excerpt string `json:"excerpt"`
}

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Sources   []Source  `json:"sources,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// DocumentInfo summarizes one ingested file.
type DocumentInfo struct {
	Name   string `json:"name"`
	Pages  int    `json:"pages"`
	Chunks int    `json:"chunks"`
}

type AskRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionId,omitempty"`
	TopK      int    `json:"topK,omitempty"`
}

type AskResponse struct {
	Answer    string   `json:"answer"`
	Sources   []Source `json:"sources"`
	SessionID string   `json:"sessionId"`
}
