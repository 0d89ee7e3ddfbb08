package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitGroupsSentences(t *testing.T) {
	c := New(3, 0, 500)
	text := "One fish. Two fish. Red fish. Blue fish. Old fish. New fish."

	chunks := c.Split(text)
	require.Len(t, chunks, 2)
	assert.Equal(t, "One fish. Two fish. Red fish.", chunks[0])
	assert.Equal(t, "Blue fish. Old fish. New fish.", chunks[1])
}

func TestSplitDropsShortChunks(t *testing.T) {
	c := New(3, 50, 500)
	chunks := c.Split("Tiny. Also tiny. Yes.")
	assert.Empty(t, chunks)
}

func TestSplitCapsChunkLength(t *testing.T) {
	c := New(3, 0, 100)
	long := strings.Repeat("word ", 60) + "end."

	chunks := c.Split(long)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch), 100)
	}
}

func TestSplitMinLengthCountsRunes(t *testing.T) {
	c := New(3, 50, 500)
	// 36 runes but over 60 bytes; the 50-char minimum counts runes
	chunks := c.Split("Доход вырос на двенадцать процентов.")
	assert.Empty(t, chunks)
}

func TestSplitKeepsTrailingFragment(t *testing.T) {
	c := New(2, 0, 500)
	chunks := c.Split("First sentence. Second sentence. Trailing fragment without a period")
	require.Len(t, chunks, 2)
	assert.Equal(t, "Trailing fragment without a period", chunks[1])
}

func TestSplitTextWithoutTerminators(t *testing.T) {
	c := New(3, 0, 500)
	chunks := c.Split("A single run of text with no punctuation at all")
	require.Len(t, chunks, 1)
	assert.Equal(t, "A single run of text with no punctuation at all", chunks[0])
}

func TestSplitEmptyInput(t *testing.T) {
	c := New(3, 0, 500)
	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split("   \n  "))
}

func TestNewAppliesDefaults(t *testing.T) {
	c := New(0, -1, 0)
	assert.Equal(t, 3, c.sentencesPerChunk)
	assert.Equal(t, 0, c.minChars)
	assert.Equal(t, 500, c.maxChars)
}
