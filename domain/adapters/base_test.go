package adapters

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engagic/engagic/domain/meetings"
)

func TestParseDate(t *testing.T) {
	cases := map[string]time.Time{
		"2025-10-07T18:30:00":        time.Date(2025, 10, 7, 18, 30, 0, 0, time.UTC),
		"2025-10-07":                 time.Date(2025, 10, 7, 0, 0, 0, 0, time.UTC),
		"10/07/2025 6:30 PM":         time.Date(2025, 10, 7, 18, 30, 0, 0, time.UTC),
		"10/7/2025":                  time.Date(2025, 10, 7, 0, 0, 0, 0, time.UTC),
		"October 7, 2025":            time.Date(2025, 10, 7, 0, 0, 0, 0, time.UTC),
		"Tuesday, October 7, 2025":   time.Date(2025, 10, 7, 0, 0, 0, 0, time.UTC),
		"  January 2, 2026 3:04 PM ": time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC),
	}
	for raw, want := range cases {
		got, err := ParseDate(raw)
		require.NoError(t, err, "input %q", raw)
		assert.True(t, want.Equal(got), "input %q: want %s got %s", raw, want, got)
	}

	_, err := ParseDate("not a date")
	assert.Error(t, err)
	_, err = ParseDate("")
	assert.Error(t, err)
}

func TestParseDateTwoDigitYear(t *testing.T) {
	cases := map[string]time.Time{
		"10/21/25":         time.Date(2025, 10, 21, 0, 0, 0, 0, time.UTC),
		"1/2/26":           time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		"10/21/25 6:30 PM": time.Date(2025, 10, 21, 18, 30, 0, 0, time.UTC),
	}
	for raw, want := range cases {
		got, err := ParseDate(raw)
		require.NoError(t, err, "input %q", raw)
		assert.True(t, want.Equal(got), "input %q: want %s got %s", raw, want, got)
	}

	// Four-digit years must never be read as two-digit forms.
	got, err := ParseDate("10/07/2025")
	require.NoError(t, err)
	assert.Equal(t, 2025, got.Year())
}

func TestURLIDParam(t *testing.T) {
	assert.Equal(t, "1127", urlIDParam("https://x.iqm2.com/Citizens/Detail_Meeting.aspx?ID=1127"))
	assert.Equal(t, "654", urlIDParam("https://x.legistar.com/MeetingDetail.aspx?ID=654&GUID=abc"))
	assert.Equal(t, "", urlIDParam("https://x.iqm2.com/Citizens/Calendar.aspx"))
	assert.Equal(t, "", urlIDParam("://bad"))
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, meetings.StatusCancelled, ParseStatus("City Council Meeting - CANCELLED"))
	assert.Equal(t, meetings.StatusCancelled, ParseStatus("Planning Commission (Canceled)"))
	assert.Equal(t, meetings.StatusPostponed, ParseStatus("Postponed: Budget Study Session"))
	assert.Equal(t, meetings.StatusRescheduled, ParseStatus("Rescheduled Council Meeting"))
	assert.Equal(t, meetings.StatusRevised, ParseStatus("REVISED Agenda - City Council"))
	assert.Equal(t, meetings.StatusDeferred, ParseStatus("Deferred to November"))
	assert.Equal(t, "", ParseStatus("Regular City Council Meeting"))
}

func TestAttachmentTypeForURL(t *testing.T) {
	assert.Equal(t, meetings.AttachmentPDF, AttachmentTypeForURL("https://x.gov/file.pdf"))
	assert.Equal(t, meetings.AttachmentPDF, AttachmentTypeForURL("https://x.gov/file.PDF"))
	assert.Equal(t, meetings.AttachmentPDF, AttachmentTypeForURL("https://x.gov/doc.pdf?v=2"))
	assert.Equal(t, meetings.AttachmentPDF, AttachmentTypeForURL("https://x.iqm2.com/MetaViewer.php?id=9"))
	assert.Equal(t, meetings.AttachmentPDF, AttachmentTypeForURL("https://x.civicclerk.com/FileStream.ashx?id=3"))
	assert.Equal(t, meetings.AttachmentPDF, AttachmentTypeForURL("https://x.gov/historyattachment?id=1"))
	assert.Equal(t, meetings.AttachmentDoc, AttachmentTypeForURL("https://x.gov/report.docx"))
	assert.Equal(t, meetings.AttachmentUnknown, AttachmentTypeForURL("https://x.gov/page.html"))
}

func TestAbsolutize(t *testing.T) {
	base := "https://seattle.legistar.com"
	assert.Equal(t, "https://seattle.legistar.com/MeetingDetail.aspx?ID=1",
		Absolutize(base, "/MeetingDetail.aspx?ID=1"))
	assert.Equal(t, "https://seattle.legistar.com/MeetingDetail.aspx?ID=1",
		Absolutize(base, "MeetingDetail.aspx?ID=1"))
	assert.Equal(t, "https://other.gov/x.pdf", Absolutize(base, "https://other.gov/x.pdf"))
	assert.Equal(t, "", Absolutize(base, "javascript:void(0)"))
	assert.Equal(t, "", Absolutize(base, "#top"))
	assert.Equal(t, "", Absolutize(base, ""))
}

func TestSelectLegistarAttachments(t *testing.T) {
	raw := []legistarAttachment{
		{Name: "Leg Ver1", Link: "https://x.legistar.com/View.ashx?ID=1"},
		{Name: "Leg Ver2", Link: "https://x.legistar.com/View.ashx?ID=2"},
		{Name: "Staff Report", Link: "https://x.legistar.com/View.ashx?ID=3"},
		{Name: "Pub Corr bundle", Link: "https://x.legistar.com/View.ashx?ID=4"},
	}

	got := selectLegistarAttachments(raw)
	require.Len(t, got, 2)

	legVerCount := 0
	for _, att := range got {
		if att.Name == "Leg Ver1" {
			t.Fatal("Ver1 kept despite Ver2 being available")
		}
		if att.Name == "Leg Ver2" {
			legVerCount++
		}
	}
	assert.Equal(t, 1, legVerCount)
}

func TestSelectLegistarAttachmentsVer1Only(t *testing.T) {
	raw := []legistarAttachment{
		{Name: "Leg Ver1", Link: "https://x.legistar.com/View.ashx?ID=1"},
	}
	got := selectLegistarAttachments(raw)
	require.Len(t, got, 1)
	assert.Equal(t, "Leg Ver1", got[0].Name)
}

func TestExtractMatterFile(t *testing.T) {
	// direct case number wins
	assert.Equal(t, "DRH25-00335", extractMatterFile("DRH25-00335 Rezone request for 123 Main"))
	// compound code second
	assert.Equal(t, "COF 2025 #141", extractMatterFile("Resolution COF 2025 #141 adopting fees"))
	// separator fallback
	assert.Equal(t, "ZOA 24-02", extractMatterFile("ZOA 24-02: Zoning Ordinance Amendment"))
	// nothing extractable
	assert.Equal(t, "", extractMatterFile("Approve the consent calendar"))
}

func TestLegislationIDStable(t *testing.T) {
	u := "https://seattle.legistar.com/LegislationDetail.aspx?ID=987654"
	assert.Equal(t, "leg-987654", legislationID(u))

	noID := "https://seattle.legistar.com/LegislationDetail.aspx?GUID=abc"
	assert.Equal(t, legislationID(noID), legislationID(noID))
}
