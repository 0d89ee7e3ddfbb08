package api

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sohamgugale/finrag/internal/chunk"
	"github.com/sohamgugale/finrag/internal/config"
	"github.com/sohamgugale/finrag/internal/model"
	"github.com/sohamgugale/finrag/internal/pdf"
	"github.com/sohamgugale/finrag/internal/util"
)

// Asker answers a question against the ingested corpus.
type Asker interface {
	Ask(ctx context.Context, query string, k int) (string, []model.Source, error)
}

// Store is the persistence surface the handlers need.
type Store interface {
	AddDocument(name string, pages int) error
	AddChunk(c model.Chunk, emb []float32) error
	AllChunks() ([]model.Chunk, error)
	Documents() ([]model.DocumentInfo, error)
	DeleteAll() error
	AppendMessage(sessionID string, m model.ChatMessage) error
	History(sessionID string) ([]model.ChatMessage, error)
	DeleteSession(sessionID string) error
}

// Index is the in-memory retrieval index the handlers keep in sync
// with the store.
type Index interface {
	Replace(chunks []model.Chunk)
	Len() int
}

// Embedder produces chunk embeddings at ingest time.
type Embedder interface {
	EmbeddingsEnabled() bool
	Embedding(ctx context.Context, text string) ([]float32, error)
}

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	rag     Asker
	store   Store
	index   Index
	embed   Embedder
	chunker *chunk.Chunker
	cfg     *config.Config
	log     *zap.SugaredLogger
}

func NewHandler(rag Asker, s Store, idx Index, embed Embedder, chunker *chunk.Chunker, cfg *config.Config, log *zap.SugaredLogger) *Handler {
	return &Handler{rag: rag, store: s, index: idx, embed: embed, chunker: chunker, cfg: cfg, log: log}
}

// Health is a simple liveness probe.
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.SendString("ok")
}

// UploadDocuments ingests one or more PDFs: save, extract per-page
// text, chunk, persist, refresh the index.
func (h *Handler) UploadDocuments(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "multipart form required"})
	}
	files := form.File["files"]
	if len(files) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "at least one PDF is required (form field: files)"})
	}

	if err := os.MkdirAll(h.cfg.UploadDir, 0o755); err != nil {
		h.log.Errorw("mkdir failed", "dir", h.cfg.UploadDir, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to prepare storage"})
	}

	var infos []model.DocumentInfo
	for _, file := range files {
		info, err := h.ingestFile(c, file)
		if err != nil {
			status := fiber.StatusInternalServerError
			if errors.Is(err, errNoText) {
				status = fiber.StatusBadRequest
			}
			h.log.Errorw("ingest failed", "file", file.Filename, "err", err)
			// earlier files (or a partial one) may already be persisted;
			// keep the index in step with the store before bailing out
			h.refreshIndex()
			return c.Status(status).JSON(fiber.Map{
				"error": fmt.Sprintf("failed to ingest %s: %v", file.Filename, err),
			})
		}
		infos = append(infos, info)
	}

	chunks, err := h.store.AllChunks()
	if err != nil {
		h.log.Errorw("corpus reload failed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to reload corpus"})
	}
	h.index.Replace(chunks)

	return c.JSON(fiber.Map{
		"status":       "ok",
		"documents":    infos,
		"chunks_total": len(chunks),
	})
}

// refreshIndex reloads the sparse index from the store.
func (h *Handler) refreshIndex() {
	chunks, err := h.store.AllChunks()
	if err != nil {
		h.log.Errorw("corpus reload failed", "err", err)
		return
	}
	h.index.Replace(chunks)
}

// errNoText marks uploads with no extractable text (e.g. scanned PDFs).
var errNoText = errors.New("no text extracted from PDF")

func (h *Handler) ingestFile(c *fiber.Ctx, file *multipart.FileHeader) (model.DocumentInfo, error) {
	saveName := util.Timestamped(file.Filename)
	savePath := filepath.Join(h.cfg.UploadDir, saveName)
	if err := c.SaveFile(file, savePath); err != nil {
		return model.DocumentInfo{}, fmt.Errorf("save file: %w", err)
	}

	pages, totalPages, err := pdf.ExtractPages(savePath)
	if err != nil {
		return model.DocumentInfo{}, fmt.Errorf("extract text: %w", err)
	}
	if len(pages) == 0 {
		return model.DocumentInfo{}, errNoText
	}

	docName := file.Filename
	if err := h.store.AddDocument(docName, totalPages); err != nil {
		return model.DocumentInfo{}, fmt.Errorf("record document: %w", err)
	}

	saved := 0
	for _, page := range pages {
		for i, text := range h.chunker.Split(page.Text) {
			ch := model.Chunk{
				ID:      fmt.Sprintf("%s_p%d_chunk_%d", docName, page.Number, i),
				DocName: docName,
				Page:    page.Number,
				Text:    text,
			}

			var emb []float32
			if h.embed.EmbeddingsEnabled() {
				emb, err = h.embed.Embedding(c.UserContext(), text)
				if err != nil {
					h.log.Warnw("chunk embedding failed, storing without vector", "chunk", ch.ID, "err", err)
					emb = nil
				}
			}

			if err := h.store.AddChunk(ch, emb); err != nil {
				return model.DocumentInfo{}, fmt.Errorf("insert chunk %s: %w", ch.ID, err)
			}
			saved++
		}
	}
	if saved == 0 {
		return model.DocumentInfo{}, fmt.Errorf("no chunks created")
	}

	return model.DocumentInfo{Name: docName, Pages: totalPages, Chunks: saved}, nil
}

// ListDocuments summarizes the ingested corpus.
func (h *Handler) ListDocuments(c *fiber.Ctx) error {
	docs, err := h.store.Documents()
	if err != nil {
		h.log.Errorw("list documents failed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list documents"})
	}
	return c.JSON(fiber.Map{
		"documents":    docs,
		"chunks_total": h.index.Len(),
	})
}

// ClearDocuments drops the corpus and all chat history.
func (h *Handler) ClearDocuments(c *fiber.Ctx) error {
	if err := h.store.DeleteAll(); err != nil {
		h.log.Errorw("clear failed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to clear documents"})
	}
	h.index.Replace(nil)
	return c.JSON(fiber.Map{"status": "ok"})
}

// Ask runs retrieval + generation for one question and records the
// exchange in the session's history.
func (h *Handler) Ask(c *fiber.Ctx) error {
	var req model.AskRequest
	if err := c.BodyParser(&req); err != nil || req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request, expected JSON: {\"query\":\"...\"}"})
	}
	if h.index.Len() == 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "no documents ingested, upload PDFs first"})
	}

	k := req.TopK
	if k <= 0 {
		k = h.cfg.TopK
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	answer, sources, err := h.rag.Ask(c.UserContext(), req.Query, k)
	if err != nil {
		h.log.Errorw("ask failed", "session", sessionID, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	now := time.Now().UTC()
	userMsg := model.ChatMessage{Role: "user", Content: req.Query, CreatedAt: now}
	assistantMsg := model.ChatMessage{Role: "assistant", Content: answer, Sources: sources, CreatedAt: now}
	// history is best-effort: a failed insert should not eat the answer
	if err := h.store.AppendMessage(sessionID, userMsg); err != nil {
		h.log.Warnw("failed to record user message", "session", sessionID, "err", err)
	}
	if err := h.store.AppendMessage(sessionID, assistantMsg); err != nil {
		h.log.Warnw("failed to record assistant message", "session", sessionID, "err", err)
	}

	return c.JSON(model.AskResponse{
		Answer:    answer,
		Sources:   sources,
		SessionID: sessionID,
	})
}

// SessionHistory returns one session's messages in order.
func (h *Handler) SessionHistory(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	messages, err := h.store.History(sessionID)
	if err != nil {
		h.log.Errorw("history failed", "session", sessionID, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load history"})
	}
	return c.JSON(fiber.Map{
		"sessionId": sessionID,
		"messages":  messages,
	})
}

// DeleteSession drops one session's history.
func (h *Handler) DeleteSession(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	if err := h.store.DeleteSession(sessionID); err != nil {
		h.log.Errorw("delete session failed", "session", sessionID, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to delete session"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
