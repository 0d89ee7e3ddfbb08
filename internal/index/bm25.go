package index

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/sohamgugale/finrag/internal/model"
)

// BM25 is an in-memory Okapi BM25 index over the chunk corpus.
// It is rebuilt wholesale whenever the corpus changes and is safe
// for concurrent searches.
type BM25 struct {
	mu sync.RWMutex

	k1      float64
	b       float64
	epsilon float64

	chunks    []model.Chunk
	termFreqs []map[string]int
	docLens   []float64
	avgLen    float64
	idf       map[string]float64
}

func New() *BM25 {
	return &BM25{k1: 1.5, b: 0.75, epsilon: 0.25}
}

// Replace rebuilds the index over the given corpus. A nil or empty
// corpus leaves the index empty.
func (x *BM25) Replace(chunks []model.Chunk) {
	termFreqs := make([]map[string]int, len(chunks))
	docLens := make([]float64, len(chunks))
	df := make(map[string]int)
	var totalLen float64

	for i, c := range chunks {
		tokens := tokenize(c.Text)
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		for term := range tf {
			df[term]++
		}
		termFreqs[i] = tf
		docLens[i] = float64(len(tokens))
		totalLen += docLens[i]
	}

	idf := make(map[string]float64, len(df))
	n := float64(len(chunks))
	var idfSum float64
	var negative []string
	for term, freq := range df {
		v := math.Log(n-float64(freq)+0.5) - math.Log(float64(freq)+0.5)
		idf[term] = v
		idfSum += v
		if v < 0 {
			negative = append(negative, term)
		}
	}
	// Terms in more than half the corpus get a negative IDF; floor them
	// at a fraction of the average so they still contribute.
	if len(idf) > 0 {
		eps := x.epsilon * idfSum / float64(len(idf))
		for _, term := range negative {
			idf[term] = eps
		}
	}

	var avgLen float64
	if len(chunks) > 0 {
		avgLen = totalLen / float64(len(chunks))
	}

	x.mu.Lock()
	x.chunks = chunks
	x.termFreqs = termFreqs
	x.docLens = docLens
	x.avgLen = avgLen
	x.idf = idf
	x.mu.Unlock()
}

// Search scores the query against every indexed chunk and returns the
// top k, highest score first. Chunks with zero overlap still rank (at
// score zero), matching a pure sort-and-cut over the whole corpus.
func (x *BM25) Search(query string, k int) []model.SearchResult {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.chunks) == 0 || k <= 0 {
		return nil
	}
	tokens := tokenize(query)
	scores := make([]float64, len(x.chunks))
	for i := range x.chunks {
		dl := x.docLens[i]
		for _, tok := range tokens {
			f := float64(x.termFreqs[i][tok])
			if f == 0 {
				continue
			}
			idf := x.idf[tok]
			scores[i] += idf * (f * (x.k1 + 1)) / (f + x.k1*(1-x.b+x.b*dl/x.avgLen))
		}
	}

	order := make([]int, len(x.chunks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	if k > len(order) {
		k = len(order)
	}
	results := make([]model.SearchResult, 0, k)
	for _, i := range order[:k] {
		results = append(results, model.SearchResult{Chunk: x.chunks[i], Score: scores[i]})
	}
	return results
}

// Len returns the number of indexed chunks.
func (x *BM25) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.chunks)
}

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}
