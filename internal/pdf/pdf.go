package pdf

import (
	"fmt"
	"strings"

	"rsc.io/pdf"
)

// Page holds the sanitized text of one PDF page.
type Page struct {
	Number int
	Text   string
}

// ExtractPages pulls text out of the PDF at path, page by page.
// The second return value is the total page count of the file;
// pages with no extractable text are skipped in the result.
func ExtractPages(path string) ([]Page, int, error) {
	r, err := pdf.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open pdf: %w", err)
	}
	total := r.NumPage()
	var pages []Page
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		var sb strings.Builder
		for _, t := range p.Content().Text {
			// null bytes show up in some generators and break Postgres
			sb.WriteString(strings.ReplaceAll(t.S, "\x00", ""))
		}
		txt := Sanitize(sb.String())
		if txt == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: txt})
	}
	return pages, total, nil
}

// Sanitize collapses whitespace runs into single spaces.
func Sanitize(s string) string {
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.Join(strings.Fields(s), " ")
}
