package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sohamgugale/finrag/internal/chunk"
	"github.com/sohamgugale/finrag/internal/config"
	"github.com/sohamgugale/finrag/internal/model"
)

type stubAsker struct {
	answer  string
	sources []model.Source
	err     error
	gotK    int
}

func (s *stubAsker) Ask(_ context.Context, _ string, k int) (string, []model.Source, error) {
	s.gotK = k
	return s.answer, s.sources, s.err
}

type stubStore struct {
	docs     []model.DocumentInfo
	chunks   []model.Chunk
	messages map[string][]model.ChatMessage
	cleared  bool
}

func newStubStore() *stubStore {
	return &stubStore{messages: map[string][]model.ChatMessage{}}
}

func (s *stubStore) AddDocument(string, int) error            { return nil }
func (s *stubStore) AddChunk(model.Chunk, []float32) error    { return nil }
func (s *stubStore) AllChunks() ([]model.Chunk, error)        { return s.chunks, nil }
func (s *stubStore) Documents() ([]model.DocumentInfo, error) { return s.docs, nil }

func (s *stubStore) DeleteAll() error {
	s.cleared = true
	return nil
}

func (s *stubStore) AppendMessage(sessionID string, m model.ChatMessage) error {
	s.messages[sessionID] = append(s.messages[sessionID], m)
	return nil
}

func (s *stubStore) History(sessionID string) ([]model.ChatMessage, error) {
	return s.messages[sessionID], nil
}

func (s *stubStore) DeleteSession(sessionID string) error {
	delete(s.messages, sessionID)
	return nil
}

type stubIndex struct {
	n        int
	replaced bool
}

func (s *stubIndex) Replace(chunks []model.Chunk) {
	s.replaced = true
	s.n = len(chunks)
}

func (s *stubIndex) Len() int { return s.n }

type stubEmbedder struct{}

func (stubEmbedder) EmbeddingsEnabled() bool { return false }
func (stubEmbedder) Embedding(context.Context, string) ([]float32, error) {
	return nil, errors.New("not configured")
}

func newTestApp(asker *stubAsker, st *stubStore, idx *stubIndex) *fiber.App {
	cfg := &config.Config{TopK: 3, UploadDir: "data/pdfs"}
	h := NewHandler(asker, st, idx, stubEmbedder{}, chunk.New(3, 50, 500), cfg, zap.NewNop().Sugar())
	app := fiber.New()
	RegisterRoutes(app, h)
	return app
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, v))
}

func TestHealth(t *testing.T) {
	app := newTestApp(&stubAsker{}, newStubStore(), &stubIndex{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAskHappyPath(t *testing.T) {
	asker := &stubAsker{
		answer:  "Revenue was 5.2B [10k.pdf, p.1].",
		sources: []model.Source{{DocName: "10k.pdf", Page: 1, Excerpt: "Total revenue..."}},
	}
	st := newStubStore()
	app := newTestApp(asker, st, &stubIndex{n: 12})

	resp, err := app.Test(jsonRequest(http.MethodPost, "/ask", `{"query":"what was revenue?"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body model.AskResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, asker.answer, body.Answer)
	assert.NotEmpty(t, body.SessionID)
	require.Len(t, body.Sources, 1)
	assert.Equal(t, "10k.pdf", body.Sources[0].DocName)

	// default top-k applied
	assert.Equal(t, 3, asker.gotK)

	// both turns recorded under the generated session
	msgs := st.messages[body.SessionID]
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "what was revenue?", msgs[0].Content)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.NotEmpty(t, msgs[1].Sources)
	assert.False(t, msgs[0].CreatedAt.IsZero())
	assert.False(t, msgs[1].CreatedAt.IsZero())
}

func TestAskReusesSessionID(t *testing.T) {
	asker := &stubAsker{answer: "ok"}
	st := newStubStore()
	app := newTestApp(asker, st, &stubIndex{n: 1})

	resp, err := app.Test(jsonRequest(http.MethodPost, "/ask", `{"query":"q","sessionId":"sess-1","topK":5}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body model.AskResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "sess-1", body.SessionID)
	assert.Equal(t, 5, asker.gotK)
	assert.Len(t, st.messages["sess-1"], 2)
}

func TestAskEmptyCorpusConflict(t *testing.T) {
	app := newTestApp(&stubAsker{}, newStubStore(), &stubIndex{n: 0})

	resp, err := app.Test(jsonRequest(http.MethodPost, "/ask", `{"query":"q"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAskInvalidBody(t *testing.T) {
	app := newTestApp(&stubAsker{}, newStubStore(), &stubIndex{n: 1})

	for _, body := range []string{``, `{}`, `{"query":""}`, `not json`} {
		resp, err := app.Test(jsonRequest(http.MethodPost, "/ask", body))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "body %q", body)
	}
}

func TestAskServiceError(t *testing.T) {
	asker := &stubAsker{err: errors.New("llm unavailable")}
	app := newTestApp(asker, newStubStore(), &stubIndex{n: 1})

	resp, err := app.Test(jsonRequest(http.MethodPost, "/ask", `{"query":"q"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestListDocuments(t *testing.T) {
	st := newStubStore()
	st.docs = []model.DocumentInfo{{Name: "10k.pdf", Pages: 90, Chunks: 41}}
	app := newTestApp(&stubAsker{}, st, &stubIndex{n: 41})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/documents", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Documents   []model.DocumentInfo `json:"documents"`
		ChunksTotal int                  `json:"chunks_total"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Documents, 1)
	assert.Equal(t, "10k.pdf", body.Documents[0].Name)
	assert.Equal(t, 41, body.ChunksTotal)
}

func TestClearDocuments(t *testing.T) {
	st := newStubStore()
	idx := &stubIndex{n: 10}
	app := newTestApp(&stubAsker{}, st, idx)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/documents", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, st.cleared)
	assert.Zero(t, idx.Len())
}

func TestSessionHistoryAndDelete(t *testing.T) {
	st := newStubStore()
	st.messages["sess-1"] = []model.ChatMessage{
		{Role: "user", Content: "q"},
		{Role: "assistant", Content: "a"},
	}
	app := newTestApp(&stubAsker{}, st, &stubIndex{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/sessions/sess-1/history", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		SessionID string              `json:"sessionId"`
		Messages  []model.ChatMessage `json:"messages"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "sess-1", body.SessionID)
	assert.Len(t, body.Messages, 2)

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/sessions/sess-1", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, st.messages["sess-1"])
}

func TestUploadFailureStillRefreshesIndex(t *testing.T) {
	st := newStubStore()
	// the store already holds a chunk persisted earlier in the same request
	st.chunks = []model.Chunk{{ID: "kept", DocName: "good.pdf", Page: 1, Text: "persisted chunk"}}
	idx := &stubIndex{}
	cfg := &config.Config{TopK: 3, UploadDir: t.TempDir()}
	h := NewHandler(&stubAsker{}, st, idx, stubEmbedder{}, chunk.New(3, 50, 500), cfg, zap.NewNop().Sugar())
	app := fiber.New()
	RegisterRoutes(app, h)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("files", "broken.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("not a pdf"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	// persisted chunks must not stay invisible to /ask after a failed upload
	assert.True(t, idx.replaced)
	assert.Equal(t, 1, idx.Len())
}

func TestUploadDocumentsRequiresFiles(t *testing.T) {
	app := newTestApp(&stubAsker{}, newStubStore(), &stubIndex{})

	req := httptest.NewRequest(http.MethodPost, "/documents", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
