package chunk

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sohamgugale/finrag/internal/util"
)

// Chunker groups consecutive sentences into retrieval-sized chunks.
// Chunks shorter than minChars are dropped as noise; chunk text is
// capped at maxChars runes.
type Chunker struct {
	sentencesPerChunk int
	minChars          int
	maxChars          int
	splitter          *regexp.Regexp
}

func New(sentencesPerChunk, minChars, maxChars int) *Chunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 3
	}
	if minChars < 0 {
		minChars = 0
	}
	if maxChars <= 0 {
		maxChars = 500
	}
	return &Chunker{
		sentencesPerChunk: sentencesPerChunk,
		minChars:          minChars,
		maxChars:          maxChars,
		splitter:          regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
	}
}

// Split breaks text into chunks of up to sentencesPerChunk sentences.
func (c *Chunker) Split(text string) []string {
	sentences := c.sentences(text)
	var chunks []string
	for i := 0; i < len(sentences); i += c.sentencesPerChunk {
		end := i + c.sentencesPerChunk
		if end > len(sentences) {
			end = len(sentences)
		}
		joined := strings.TrimSpace(strings.Join(sentences[i:end], " "))
		if utf8.RuneCountInString(joined) < c.minChars {
			continue
		}
		chunks = append(chunks, util.TruncateRunes(joined, c.maxChars))
	}
	return chunks
}

// sentences splits text on terminal punctuation, keeping a trailing
// fragment that has no terminator of its own.
func (c *Chunker) sentences(text string) []string {
	matches := c.splitter.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}
	var out []string
	last := 0
	for _, m := range matches {
		s := strings.TrimSpace(text[m[0]:m[1]])
		if s != "" {
			out = append(out, s)
		}
		last = m[1]
	}
	if rest := strings.TrimSpace(text[last:]); rest != "" {
		out = append(out, rest)
	}
	return out
}
