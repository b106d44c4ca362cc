package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/engagic/engagic/domain/cities"
	"github.com/engagic/engagic/domain/filters"
	"github.com/engagic/engagic/domain/meetings"
	"github.com/engagic/engagic/pkg/httpclient"
	"github.com/engagic/engagic/pkg/logger"
)

// iqm2 scrapes iqm2.com (Granicus legacy) meeting portals: a calendar list
// page, per-meeting agenda pages with lettered/numbered items, and
// Detail_LegiFile.aspx pages carrying matter type, sponsors, and file code.
type iqm2 struct {
	city    *cities.City
	baseURL string
	window  Window
	session *httpclient.Session
	log     *slog.Logger
}

func newIQM2(city *cities.City, window Window, log *slog.Logger) *iqm2 {
	log = log.With(logger.Scope("iqm2"), slog.String("banana", city.Banana))
	return &iqm2{
		city:    city,
		baseURL: fmt.Sprintf("https://%s.iqm2.com", city.Slug),
		window:  window,
		session: newVendorSession(log),
		log:     log,
	}
}

func (a *iqm2) Vendor() cities.Vendor { return cities.VendorIQM2 }
func (a *iqm2) Close() error          { return nil }

func (a *iqm2) FetchMeetings(ctx context.Context) ([]meetings.FetchedMeeting, error) {
	listURL := fmt.Sprintf("%s/Citizens/Calendar.aspx?From=%s&To=%s",
		a.baseURL,
		a.window.Start.Format("1/2/2006"),
		a.window.End.Format("1/2/2006"))
	resp, err := a.session.Get(ctx, listURL)
	if err != nil {
		return nil, fmt.Errorf("fetch calendar: %w", err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	var out []meetings.FetchedMeeting
	doc.Find(".MeetingRow, .RowTop, table tr").Each(func(_ int, row *goquery.Selection) {
		detailLink := row.Find("a[href*='Detail_Meeting.aspx']").First()
		if detailLink.Length() == 0 {
			return
		}
		agendaURL := Absolutize(a.baseURL, detailLink.AttrOr("href", ""))
		title := strings.Join(strings.Fields(detailLink.Text()), " ")
		if title == "" {
			title = strings.Join(strings.Fields(row.Find(".RowDetails, td").First().Text()), " ")
		}
		if title == "" || agendaURL == "" {
			return
		}

		var start time.Time
		row.Find("td, .RowLink, .MeetingDate").EachWithBreak(func(_ int, el *goquery.Selection) bool {
			if t, err := ParseDate(strings.Join(strings.Fields(el.Text()), " ")); err == nil {
				start = t
				return false
			}
			return true
		})

		// Detail_Meeting.aspx carries the vendor's own meeting id; rows
		// without one fall back to the stable content hash downstream.
		m := meetings.FetchedMeeting{
			VendorID:  urlIDParam(agendaURL),
			Title:     title,
			Start:     start,
			Status:    ParseStatus(title),
			AgendaURL: agendaURL,
		}
		items, err := a.fetchItems(ctx, agendaURL)
		if err != nil {
			a.log.Warn("agenda items fetch failed", logger.Error(err))
		}
		m.Items = items
		if len(m.Items) == 0 {
			m.AgendaURL = ""
			m.PacketURLs = []string{agendaURL}
		}

		if err := m.Validate(); err != nil {
			a.log.Warn("dropping meeting", logger.Error(err))
			return
		}
		out = append(out, m)
	})
	return out, nil
}

var iqm2ItemNumberRe = regexp.MustCompile(`^([A-Z]?\d{1,2}|\b[IVX]+)\.\s*`)

func (a *iqm2) fetchItems(ctx context.Context, agendaURL string) ([]meetings.FetchedItem, error) {
	resp, err := a.session.Get(ctx, agendaURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse agenda: %w", err)
	}

	var items []meetings.FetchedItem
	doc.Find("a[href*='Detail_LegiFile.aspx']").Each(func(_ int, link *goquery.Selection) {
		title := strings.Join(strings.Fields(link.Text()), " ")
		itemNumber := ""
		if m := iqm2ItemNumberRe.FindStringSubmatch(title); m != nil {
			itemNumber = m[1]
			title = strings.TrimSpace(strings.TrimPrefix(title, m[0]))
		}
		if title == "" || filters.ShouldSkipItem(title, "") {
			return
		}

		detailURL := Absolutize(a.baseURL, link.AttrOr("href", ""))
		item := meetings.FetchedItem{
			VendorItemID: legiFileID(detailURL),
			Title:        title,
			Sequence:     len(items) + 1,
			ItemNumber:   itemNumber,
		}
		if err := a.enrichFromLegiFile(ctx, detailURL, &item); err != nil {
			a.log.Debug("legifile detail failed", logger.Error(err))
		}
		items = append(items, item)
	})
	return items, nil
}

func legiFileID(detailURL string) string {
	if m := regexp.MustCompile(`[?&]ID=(\d+)`).FindStringSubmatch(detailURL); m != nil {
		return "lf-" + m[1]
	}
	return "lf-" + detailURL[strings.LastIndex(detailURL, "/")+1:]
}

// Matter-file extraction, most specific first: a direct case number like
// DRH25-00335, a compound code like "COF 2025 #141", then anything left of
// a separator.
var (
	iqm2DirectCaseRe   = regexp.MustCompile(`\b([A-Z]{2,4}\d{2}-\d{3,6})\b`)
	iqm2CompoundCodeRe = regexp.MustCompile(`\b([A-Z]{2,4}\s+\d{4}\s+#\d{1,5})\b`)
	iqm2SeparatorRe    = regexp.MustCompile(`^([A-Z0-9][A-Z0-9\s#\-\.]{2,20}?)\s*[:–—-]\s`)
)

func extractMatterFile(text string) string {
	if m := iqm2DirectCaseRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := iqm2CompoundCodeRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := iqm2SeparatorRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func (a *iqm2) enrichFromLegiFile(ctx context.Context, detailURL string, item *meetings.FetchedItem) error {
	resp, err := a.session.Get(ctx, detailURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("parse legifile: %w", err)
	}

	doc.Find("table tr, .LegiFileInfo div").Each(func(_ int, row *goquery.Selection) {
		label := strings.ToLower(strings.Join(strings.Fields(row.Find("td, .Label").First().Text()), " "))
		value := strings.Join(strings.Fields(row.Find("td, .Value").Last().Text()), " ")
		if value == "" {
			return
		}
		switch {
		case strings.Contains(label, "type"):
			item.MatterType = value
		case strings.Contains(label, "sponsor") || strings.Contains(label, "department"):
			item.Sponsors = append(item.Sponsors, value)
		case strings.Contains(label, "file") || strings.Contains(label, "number"):
			if item.MatterFile == "" {
				item.MatterFile = value
			}
		}
	})

	if item.MatterFile == "" {
		header := strings.Join(strings.Fields(doc.Find("h1, .LegiFileHeading").First().Text()), " ")
		item.MatterFile = extractMatterFile(header + " " + item.Title)
	}
	if item.MatterFile != "" {
		item.MatterID = item.MatterFile
	}

	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href := Absolutize(a.baseURL, link.AttrOr("href", ""))
		if href == "" {
			return
		}
		if attType := AttachmentTypeForURL(href); attType == meetings.AttachmentPDF {
			name := strings.Join(strings.Fields(link.Text()), " ")
			if name == "" || filters.ShouldSkipAttachment(name) {
				return
			}
			item.Attachments = append(item.Attachments, meetings.Attachment{
				Name: name, URL: href, Type: attType,
			})
		}
	})
	return nil
}
