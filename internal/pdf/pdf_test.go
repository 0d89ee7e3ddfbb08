package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	assert.Equal(t, "a b c", Sanitize("a\tb\r\nc"))
	assert.Equal(t, "one two", Sanitize("  one   two  "))
	assert.Equal(t, "", Sanitize(" \t \r\n "))
}

func TestExtractPagesMissingFile(t *testing.T) {
	_, _, err := ExtractPages("does-not-exist.pdf")
	assert.Error(t, err)
}
