package adapters

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engagic/engagic/domain/cities"
	"github.com/engagic/engagic/domain/meetings"
)

func docFromString(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func testPrimeGov() *primeGov {
	city := &cities.City{Banana: "paloaltoCA", Name: "Palo Alto", State: "CA",
		Vendor: cities.VendorPrimeGov, Slug: "cityofpaloalto"}
	return newPrimeGov(city, slog.Default())
}

func TestPrimeGovLosAngelesLayout(t *testing.T) {
	html := `<html><body>
<div class="meeting-item" data-itemid="25-0042" data-mig="m1">
  <div class="item-title">Ordinance amending the rent stabilization ordinance</div>
  <table class="matter-details">
    <tr><td>Council File</td><td>25-0042</td></tr>
    <tr><td>Type</td><td>Ordinance</td></tr>
    <tr><td>Sponsor</td><td>Councilmember Rivera</td></tr>
  </table>
  <a href="/Public/Download?id=881">Staff Report.pdf</a>
</div>
<div class="meeting-item" data-itemid="25-0050">
  <div class="item-title">Roll Call</div>
</div>
</body></html>`

	items := testPrimeGov().parseLosAngelesLayout(docFromString(t, html))
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "25-0042", item.VendorItemID)
	assert.Equal(t, "Ordinance amending the rent stabilization ordinance", item.Title)
	assert.Equal(t, 1, item.Sequence)
	assert.Equal(t, "25-0042", item.MatterFile)
	assert.Equal(t, "Ordinance", item.MatterType)
	assert.Equal(t, []string{"Councilmember Rivera"}, item.Sponsors)
	require.Len(t, item.Attachments, 1)
	assert.Equal(t, "https://cityofpaloalto.primegov.com/Public/Download?id=881", item.Attachments[0].URL)
}

func TestPrimeGovPaloAltoLayout(t *testing.T) {
	html := `<html><body>
<div class="agenda-item"><h3>Approval of Contract with Acme Paving</h3>
  <a href="https://cityofpaloalto.primegov.com/files/report.pdf">Report</a></div>
<div class="agenda-item"><h3>Adjournment</h3></div>
</body></html>`

	items := testPrimeGov().parsePaloAltoLayout(docFromString(t, html))
	require.Len(t, items, 1)
	assert.Equal(t, "Approval of Contract with Acme Paving", items[0].Title)
	require.Len(t, items[0].Attachments, 1)
	assert.Equal(t, meetings.AttachmentPDF, items[0].Attachments[0].Type)
}

func TestPrimeGovBoulderLayout(t *testing.T) {
	html := `<html><body>
<table data-itemid="b-101"><tr><td>3A</td><td>Second reading of the flood mitigation ordinance</td></tr></table>
<table data-itemid="b-102"><tr><td>3B</td><td>Approval of Minutes</td></tr></table>
</body></html>`

	items := testPrimeGov().parseBoulderLayout(docFromString(t, html))
	require.Len(t, items, 1)
	assert.Equal(t, "b-101", items[0].VendorItemID)
	assert.Contains(t, items[0].Title, "flood mitigation")
}

func TestFindUpcomingSection(t *testing.T) {
	html := `<html><body>
<h2>Upcoming Events</h2>
<table><tr><td>City Council</td><td>October 7, 2025</td>
  <td><a href="AgendaViewer.php?view_id=2&clip_id=991">Agenda</a></td></tr></table>
<h2>Archived Events</h2>
<table><tr><td>Old Meeting</td></tr></table>
</body></html>`

	section := findUpcomingSection(docFromString(t, html))
	require.NotNil(t, section)
	assert.Contains(t, section.Text(), "City Council")
	assert.NotContains(t, section.Text(), "Old Meeting")
}

func TestFindUpcomingSectionAbsent(t *testing.T) {
	html := `<html><body><h2>Archive</h2><table><tr><td>Old</td></tr></table></body></html>`
	assert.Nil(t, findUpcomingSection(docFromString(t, html)))
}

func TestNovusAgendaBestDetailLink(t *testing.T) {
	html := `<table><tr>
<td><a href="SummaryViewer.aspx?M=1">Summary</a></td>
<td><a href="MeetingView.aspx?MeetingID=1">Online Agenda</a></td>
<td><a href="DisplayAgendaPDF.ashx?M=1&html=1">HTML Agenda</a></td>
</tr></table>`
	doc := docFromString(t, html)
	row := doc.Find("tr").First()

	best := bestDetailLink("https://x.novusagenda.com/agendapublic", row)
	assert.Contains(t, best, "DisplayAgendaPDF")
	assert.NotContains(t, best, "Summary")
}

func TestNovusAgendaNeverPicksSummary(t *testing.T) {
	html := `<table><tr><td><a href="SummaryViewer.aspx?M=1">Summary</a></td></tr></table>`
	doc := docFromString(t, html)
	assert.Equal(t, "", bestDetailLink("https://x.novusagenda.com/agendapublic", doc.Find("tr").First()))
}

func TestGranicusParseAgendaViewerHTML(t *testing.T) {
	html := `<html><body><table>
<tr><td>1.</td><td>Approval of the FY27 capital improvement plan</td>
  <td><a href="/MetaViewer.php?meta_id=551">Staff Report</a></td></tr>
<tr><td>2.</td><td>Roll Call</td></tr>
<tr><td></td><td>Not an item row</td></tr>
</table></body></html>`

	items := parseAgendaViewerHTML("https://sunnyvale.granicus.com", docFromString(t, html))
	require.Len(t, items, 1)
	assert.Equal(t, "1", items[0].ItemNumber)
	assert.Contains(t, items[0].Title, "capital improvement")
	require.Len(t, items[0].Attachments, 1)
	assert.Equal(t, "https://sunnyvale.granicus.com/MetaViewer.php?meta_id=551", items[0].Attachments[0].URL)
}

func TestCivicPlusParseAgendaCenter(t *testing.T) {
	city := &cities.City{Banana: "smalltownTX", Vendor: cities.VendorCivicPlus, Slug: "smalltowntx"}
	a := newCivicPlus(city, Window{}, slog.Default())

	html := `<html><body><table><tbody>
<tr class="catAgendaRow"><td>City Council Regular Meeting</td>
  <td><a href="/AgendaCenter/ViewFile/Agenda/_10072025-101">Agenda</a></td></tr>
</tbody></table></body></html>`

	out, err := a.parseAgendaCenter("https://www.smalltowntx.gov", docFromString(t, html))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "City Council Regular Meeting", out[0].Title)
	// Row position is not identity; the content hash downstream is.
	assert.Equal(t, "", out[0].VendorID)
}

func TestCivicPlusExternalVendorIsNotASyncFailure(t *testing.T) {
	city := &cities.City{Banana: "smalltownTX", Vendor: cities.VendorCivicPlus, Slug: "smalltowntx"}
	a := newCivicPlus(city, Window{}, slog.Default())

	html := `<html><body><a href="https://smalltown.legistar.com/Calendar.aspx">View Agendas</a></body></html>`
	out, err := a.parseAgendaCenter("https://www.smalltowntx.gov", docFromString(t, html))
	assert.Nil(t, out)
	require.Error(t, err)
	assert.ErrorIs(t, err, errExternalVendor)
}

func TestNovusDetailParse(t *testing.T) {
	base := "https://x.novusagenda.com/agendapublic"
	html := `<html><body><table>
<tr><td><a href="CoverSheet.aspx?ItemID=4401&MeetingID=210">Ordinance adopting the sidewalk vending program</a></td>
    <td><a href="AttachmentViewer.ashx?AttachmentID=77&ItemID=4401&x=.pdf">Staff Report.pdf</a></td></tr>
<tr><td><a href="CoverSheet.aspx?ItemID=4402&MeetingID=210">Roll Call</a></td></tr>
</table>
<a href="DisplayAgendaPDF.ashx?MeetingID=210">Download Agenda</a>
</body></html>`

	items, pdfURL := parseNovusDetail(base, docFromString(t, html))
	require.Len(t, items, 1)
	assert.Equal(t, "cs-4401", items[0].VendorItemID)
	assert.Contains(t, items[0].Title, "sidewalk vending")
	require.Len(t, items[0].Attachments, 1)
	assert.Contains(t, items[0].Attachments[0].URL, "AttachmentViewer.ashx")
	assert.Equal(t, base+"/DisplayAgendaPDF.ashx?MeetingID=210", pdfURL)
}

func TestNovusDetailFullAgendaOnly(t *testing.T) {
	base := "https://x.novusagenda.com/agendapublic"
	html := `<html><body><a href="DisplayAgendaPDF.ashx?MeetingID=210">Download Agenda</a></body></html>`

	items, pdfURL := parseNovusDetail(base, docFromString(t, html))
	assert.Empty(t, items)
	assert.Equal(t, base+"/DisplayAgendaPDF.ashx?MeetingID=210", pdfURL)
}

func TestIsDirectAgendaPDF(t *testing.T) {
	assert.True(t, isDirectAgendaPDF("https://x.novusagenda.com/agendapublic/DisplayAgendaPDF.ashx?MeetingID=210"))
	assert.True(t, isDirectAgendaPDF("https://x.novusagenda.com/files/packet.pdf"))
	// HTML viewer variants must never reach the PDF downloader.
	assert.False(t, isDirectAgendaPDF("https://x.novusagenda.com/agendapublic/DisplayAgendaPDF.ashx?MeetingID=210&html=true"))
	assert.False(t, isDirectAgendaPDF("https://x.novusagenda.com/agendapublic/MeetingView.aspx?MeetingID=210"))
}

func TestCivicPlusDetectExternalVendor(t *testing.T) {
	city := &cities.City{Banana: "smalltownTX", Vendor: cities.VendorCivicPlus, Slug: "smalltowntx"}
	a := newCivicPlus(city, Window{}, slog.Default())

	html := `<html><body><a href="https://smalltown.legistar.com/Calendar.aspx">View Agendas</a></body></html>`
	assert.Equal(t, "legistar.com", a.detectExternalVendor(docFromString(t, html)))

	html = `<html><body><a href="/AgendaCenter/ViewFile/Agenda/_10072025-101">Agenda</a></body></html>`
	assert.Equal(t, "", a.detectExternalVendor(docFromString(t, html)))
}
