package parsing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engagic/engagic/domain/meetings"
)

func TestExtractParticipation(t *testing.T) {
	text := `CITY COUNCIL REGULAR MEETING

To participate remotely, join via Zoom at https://cityofexample.zoom.us/j/81234567890
Meeting ID: 812 3456 7890
Or call (650) 555-0123.
Questions: cityclerk@example.gov

This meeting is hybrid: attend in person and via Zoom.`

	p := ExtractParticipation(text)
	require.NotNil(t, p)
	assert.Equal(t, "cityclerk@example.gov", p.Email)
	assert.Equal(t, "+16505550123", p.Phone)
	assert.Equal(t, "https://cityofexample.zoom.us/j/81234567890", p.VirtualURL)
	assert.Equal(t, "81234567890", p.MeetingID)
	assert.True(t, p.Hybrid)
	assert.False(t, p.VirtualOnly)
}

func TestExtractParticipationPhoneFormats(t *testing.T) {
	for _, raw := range []string{
		"(650) 555-0123",
		"650-555-0123",
		"650.555.0123",
		"1-650-555-0123",
		"+1 650 555 0123",
	} {
		p := ExtractParticipation("Call " + raw + " to join.")
		require.NotNil(t, p, "input %q", raw)
		assert.Equal(t, "+16505550123", p.Phone, "input %q", raw)
	}
}

func TestExtractParticipationVirtualOnly(t *testing.T) {
	p := ExtractParticipation("This meeting will be held virtually only. No physical location will be provided.")
	require.NotNil(t, p)
	assert.True(t, p.VirtualOnly)
	assert.False(t, p.Hybrid)
}

func TestExtractParticipationNothingFound(t *testing.T) {
	assert.Nil(t, ExtractParticipation("CONSENT CALENDAR\n1. Approve contract with Acme."))
}

func buildPacketPages() []string {
	cover := `CITY COUNCIL AGENDA
October 7, 2025

BUSINESS ITEMS
1. Adopt an Ordinance Amending the Zoning Code - 45 minutes
2. Approve a Contract with Acme Paving for Street Resurfacing
3. Receive the Quarterly Financial Report
`
	body1 := `STAFF REPORT
Item 1
Adopt an Ordinance Amending the Zoning Code
The proposed ordinance updates setback requirements in the R-1 district.
Staff recommends adoption after the second reading.
`
	body2 := `STAFF REPORT
Item 2
Approve a Contract with Acme Paving for Street Resurfacing
The contract covers 4.2 lane-miles across three neighborhoods.
Funding is available in the capital improvement program.
`
	body3 := `STAFF REPORT
Item 3
Receive the Quarterly Financial Report
General fund revenues are tracking 3% above projections.
`
	return []string{cover, body1, body2, body3}
}

func TestChunkDocumentCoverStrategy(t *testing.T) {
	chunks := ChunkDocument(buildPacketPages())
	require.Len(t, chunks, 3)

	assert.Equal(t, 1, chunks[0].Sequence)
	assert.Equal(t, "Adopt an Ordinance Amending the Zoning Code", chunks[0].Title)
	assert.Contains(t, chunks[0].Text, "setback requirements")

	assert.Equal(t, 2, chunks[1].Sequence)
	assert.Contains(t, chunks[1].Text, "4.2 lane-miles")

	assert.Equal(t, 3, chunks[2].Sequence)
	assert.Contains(t, chunks[2].Text, "3% above projections")
}

func TestChunkDocumentStripsDurationSuffix(t *testing.T) {
	chunks := ChunkDocument(buildPacketPages())
	require.NotEmpty(t, chunks)
	assert.NotContains(t, chunks[0].Title, "45 minutes")
}

func TestChunkDocumentRejectsUnstructuredText(t *testing.T) {
	pages := []string{strings.Repeat("This is plain narrative prose with no agenda structure at all. ", 200)}
	assert.Nil(t, ChunkDocument(pages))
}

func TestChunkDocumentRejectsEmpty(t *testing.T) {
	assert.Nil(t, ChunkDocument(nil))
	assert.Nil(t, ChunkDocument([]string{"", "  "}))
}

func TestParseLetterItems(t *testing.T) {
	pages := []string{
		`REGULAR MEETING AGENDA

H1. Approve the Minutes of October 21
H2. Accept the Monthly Treasurer Report
`,
		`J1. Adopt a Resolution Approving the Transportation Master Plan
K3. Authorize a Contract for Library Roof Replacement
`,
	}
	links := []Hyperlink{
		{URL: "https://example.gov/files/h1-20251021-cc-minutes.pdf", Page: 1},
		{URL: "https://example.gov/files/j1-transportation-plan.pdf", Page: 2},
		{URL: "https://example.gov/files/j1-staff-report.pdf", Page: 2},
		{URL: "https://example.gov/files/unrelated.pdf", Page: 2},
	}

	items := ParseLetterItems(pages, links)
	require.Len(t, items, 4)

	assert.Equal(t, "H1", items[0].VendorItemID)
	require.Len(t, items[0].Attachments, 1)
	assert.Equal(t, "h1-20251021-cc-minutes.pdf", items[0].Attachments[0].Name)
	assert.Equal(t, meetings.AttachmentPDF, items[0].Attachments[0].Type)

	// H2 has no matching same-page link
	assert.Empty(t, items[1].Attachments)

	j1 := items[2]
	assert.Equal(t, "J1", j1.VendorItemID)
	assert.Len(t, j1.Attachments, 2)

	assert.Equal(t, "K3", items[3].VendorItemID)
	assert.Empty(t, items[3].Attachments)
}
