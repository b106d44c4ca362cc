// Package pdftext extracts plain text from PDF bytes and judges whether the
// extraction is good enough to summarize without OCR.
package pdftext

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Document is extracted PDF text with page boundaries preserved.
type Document struct {
	Pages []string
}

// Text returns the full document text with pages joined by form feeds.
func (d *Document) Text() string {
	return strings.Join(d.Pages, "\n\f\n")
}

// PageCount returns the number of pages extracted.
func (d *Document) PageCount() int {
	return len(d.Pages)
}

// Extract parses PDF bytes and returns per-page plain text.
func Extract(data []byte) (doc *Document, err error) {
	defer func() {
		// The pdf library panics on some malformed cross-reference tables
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("pdf parse panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}

	doc = &Document{}
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			doc.Pages = append(doc.Pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the packet
			doc.Pages = append(doc.Pages, "")
			continue
		}
		doc.Pages = append(doc.Pages, text)
	}

	if doc.PageCount() == 0 {
		return nil, fmt.Errorf("pdf yielded no pages")
	}
	return doc, nil
}

// Link is a URI annotation and the 1-based page carrying it
type Link struct {
	URL  string
	Page int
}

// ExtractLinks walks each page's annotation array for URI actions. Agendas
// published as PDFs often carry their attachments only as hyperlinks.
func ExtractLinks(data []byte) (links []Link, err error) {
	defer func() {
		if r := recover(); r != nil {
			links = nil
			err = fmt.Errorf("pdf link parse panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}

	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		annots := page.V.Key("Annots")
		if annots.Kind() != pdf.Array {
			continue
		}
		for j := 0; j < annots.Len(); j++ {
			uri := annots.Index(j).Key("A").Key("URI")
			if uri.Kind() != pdf.String {
				continue
			}
			if u := strings.TrimSpace(uri.RawString()); u != "" {
				links = append(links, Link{URL: u, Page: i})
			}
		}
	}
	return links, nil
}

// EstimatePages approximates page count from character count for documents
// where only text is available. One page ≈ 2000 characters.
func EstimatePages(chars int) int {
	pages := chars / 2000
	if pages < 1 {
		return 1
	}
	return pages
}

// civic vocabulary that any genuine agenda text will contain some of
var civicWords = []string{
	"meeting", "council", "agenda", "city", "item", "public",
	"ordinance", "resolution", "minutes", "commission", "board",
	"approval", "staff", "report", "hearing",
}

// IsUsableText reports whether extracted text is good enough for Tier-1
// summarization. Poor extractions (scanned PDFs, shredded text layers) must
// be rejected so they surface as processing failures instead of producing
// garbage summaries.
func IsUsableText(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 50 {
		return false
	}

	letters := 0
	for _, r := range trimmed {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			letters++
		}
	}
	if float64(letters)/float64(len(trimmed)) < 0.3 {
		return false
	}

	// Fragmented extractions produce mostly single-word lines
	lines := strings.Split(trimmed, "\n")
	if len(lines) > 10 {
		singleWord := 0
		nonEmpty := 0
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			nonEmpty++
			if !strings.Contains(line, " ") {
				singleWord++
			}
		}
		if nonEmpty > 0 && float64(singleWord)/float64(nonEmpty) > 0.5 {
			return false
		}
	}

	// Sample the head of the document for long words and civic vocabulary
	sample := strings.ToLower(trimmed)
	if len(sample) > 4000 {
		sample = sample[:4000]
	}

	hasLongWord := false
	for _, word := range strings.Fields(sample) {
		if len(word) >= 6 {
			hasLongWord = true
			break
		}
	}
	if !hasLongWord {
		return false
	}

	for _, w := range civicWords {
		if strings.Contains(sample, w) {
			return true
		}
	}
	return false
}
