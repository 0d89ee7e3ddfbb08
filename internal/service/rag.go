package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sohamgugale/finrag/internal/config"
	"github.com/sohamgugale/finrag/internal/model"
	"github.com/sohamgugale/finrag/internal/util"
)

// rrfK is the standard reciprocal-rank fusion constant.
const rrfK = 60

// Retriever is the sparse (BM25) side of retrieval.
type Retriever interface {
	Search(query string, k int) []model.SearchResult
}

// VectorSearcher is the dense side of retrieval.
type VectorSearcher interface {
	SearchDense(q []float32, k int) ([]model.SearchResult, error)
}

// LLM is what the RAG service needs from the model layer.
type LLM interface {
	Answer(ctx context.Context, query, contextText string) (string, error)
	Embedding(ctx context.Context, text string) ([]float32, error)
	EmbeddingsEnabled() bool
}

// RAGService answers questions from the ingested corpus: retrieve the
// best chunks, assemble a cited context block, ask the model.
type RAGService struct {
	index   Retriever
	vectors VectorSearcher // nil unless dense retrieval is configured
	llm     LLM
	log     *zap.SugaredLogger

	snippetChars int
	contextChars int
	excerptChars int
}

func NewRAGService(index Retriever, vectors VectorSearcher, llm LLM, cfg *config.Config, log *zap.SugaredLogger) *RAGService {
	return &RAGService{
		index:        index,
		vectors:      vectors,
		llm:          llm,
		log:          log,
		snippetChars: cfg.SnippetChars,
		contextChars: cfg.ContextChars,
		excerptChars: cfg.ExcerptChars,
	}
}

// Ask retrieves the top-k chunks for query and answers from them.
// The returned sources carry short excerpts of the chunks the answer
// was grounded on.
func (s *RAGService) Ask(ctx context.Context, query string, k int) (string, []model.Source, error) {
	if k <= 0 {
		k = 3
	}
	results := s.retrieve(ctx, query, k)
	if len(results) == 0 {
		return "", nil, fmt.Errorf("no chunks indexed")
	}

	contextText := s.buildContext(results)

	answer, err := s.llm.Answer(ctx, query, contextText)
	if err != nil {
		return "", nil, fmt.Errorf("llm error: %w", err)
	}

	sources := make([]model.Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, model.Source{
			DocName: r.Chunk.DocName,
			Page:    r.Chunk.Page,
			Excerpt: util.TruncateRunes(r.Chunk.Text, s.excerptChars),
		})
	}
	return answer, sources, nil
}

// buildContext renders retrieved chunks as "[doc, p.N]: snippet" lines
// and caps the whole block.
func (s *RAGService) buildContext(results []model.SearchResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, fmt.Sprintf("[%s, p.%d]: %s",
			r.Chunk.DocName, r.Chunk.Page, util.TruncateRunes(r.Chunk.Text, s.snippetChars)))
	}
	contextText := strings.Join(parts, "\n\n")
	if utf8.RuneCountInString(contextText) > s.contextChars {
		contextText = util.TruncateRunes(contextText, s.contextChars) + "..."
	}
	return contextText
}

// retrieve runs BM25 and, when available, fuses in dense results.
// Dense failures degrade to sparse-only rather than failing the ask.
func (s *RAGService) retrieve(ctx context.Context, query string, k int) []model.SearchResult {
	sparse := s.index.Search(query, k)
	if s.vectors == nil || !s.llm.EmbeddingsEnabled() {
		return sparse
	}

	vec, err := s.llm.Embedding(ctx, query)
	if err != nil {
		s.log.Warnw("query embedding failed, falling back to sparse retrieval", "err", err)
		return sparse
	}
	dense, err := s.vectors.SearchDense(vec, k)
	if err != nil {
		s.log.Warnw("dense search failed, falling back to sparse retrieval", "err", err)
		return sparse
	}
	return fuseRanks(sparse, dense, k)
}

// fuseRanks merges two rankings with reciprocal-rank fusion.
func fuseRanks(sparse, dense []model.SearchResult, k int) []model.SearchResult {
	type fused struct {
		chunk model.Chunk
		score float64
		order int
	}
	byID := make(map[string]*fused)
	add := func(ranking []model.SearchResult) {
		for rank, r := range ranking {
			f, ok := byID[r.Chunk.ID]
			if !ok {
				f = &fused{chunk: r.Chunk, order: len(byID)}
				byID[r.Chunk.ID] = f
			}
			f.score += 1 / float64(rrfK+rank+1)
		}
	}
	add(sparse)
	add(dense)

	all := make([]*fused, 0, len(byID))
	for _, f := range byID {
		all = append(all, f)
	}
	// score desc, first-seen order breaks ties
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].order < all[j].order
	})

	if k > len(all) {
		k = len(all)
	}
	out := make([]model.SearchResult, 0, k)
	for _, f := range all[:k] {
		out = append(out, model.SearchResult{Chunk: f.chunk, Score: f.score})
	}
	return out
}
