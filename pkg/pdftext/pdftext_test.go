package pdftext

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimatePages(t *testing.T) {
	assert.Equal(t, 1, EstimatePages(0))
	assert.Equal(t, 1, EstimatePages(1999))
	assert.Equal(t, 1, EstimatePages(2000))
	assert.Equal(t, 5, EstimatePages(10_000))
	assert.Equal(t, 100, EstimatePages(200_000))
}

func TestIsUsableTextAcceptsAgendaText(t *testing.T) {
	text := `City Council Regular Meeting Agenda
Call to order and roll call of the council members.
Item 1. Approval of the minutes from the previous regular meeting.
Item 2. Public hearing on the proposed ordinance amending the zoning code
to permit accessory dwelling units in residential districts.
Staff report and recommendation from the planning commission follow.`
	assert.True(t, IsUsableText(text))
}

func TestIsUsableTextRejectsShortText(t *testing.T) {
	assert.False(t, IsUsableText(""))
	assert.False(t, IsUsableText("agenda"))
}

func TestIsUsableTextRejectsLowLetterRatio(t *testing.T) {
	text := strings.Repeat("0 1 2 3 4 5 6 7 8 9 . , ; ", 20)
	assert.False(t, IsUsableText(text))
}

func TestIsUsableTextRejectsFragmentedLines(t *testing.T) {
	// Shredded text layers come out as one word per line
	words := []string{
		"city", "council", "meeting", "agenda", "item", "public",
		"ordinance", "zoning", "housing", "report", "staff", "hearing",
		"approval", "resolution", "commission",
	}
	text := strings.Join(words, "\n")
	assert.False(t, IsUsableText(text))
}

func TestIsUsableTextRequiresCivicVocabulary(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet consectetur adipiscing elit sed do ", 10)
	assert.False(t, IsUsableText(text))
}

func TestDocumentText(t *testing.T) {
	doc := &Document{Pages: []string{"page one", "page two"}}
	assert.Equal(t, 2, doc.PageCount())
	assert.Equal(t, "page one\n\f\npage two", doc.Text())
}

func TestExtractRejectsGarbage(t *testing.T) {
	_, err := Extract([]byte("not a pdf at all"))
	assert.Error(t, err)
}

func TestExtractLinksRejectsGarbage(t *testing.T) {
	links, err := ExtractLinks([]byte("%PDF-1.7 truncated"))
	assert.Error(t, err)
	assert.Nil(t, links)
}
