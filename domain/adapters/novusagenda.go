package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/engagic/engagic/domain/cities"
	"github.com/engagic/engagic/domain/filters"
	"github.com/engagic/engagic/domain/meetings"
	"github.com/engagic/engagic/pkg/httpclient"
	"github.com/engagic/engagic/pkg/logger"
)

// novusAgenda scrapes novusagenda.com agenda portals. Each meeting row
// offers several links; ranked so the richest document wins: "HTML Agenda"
// first, then "Online Agenda", then any generic agenda link. "Summary"
// links are never used, they omit attachments.
type novusAgenda struct {
	city    *cities.City
	baseURL string
	session *httpclient.Session
	log     *slog.Logger
}

func newNovusAgenda(city *cities.City, log *slog.Logger) *novusAgenda {
	log = log.With(logger.Scope("novusagenda"), slog.String("banana", city.Banana))
	return &novusAgenda{
		city:    city,
		baseURL: fmt.Sprintf("https://%s.novusagenda.com/agendapublic", city.Slug),
		session: newVendorSession(log),
		log:     log,
	}
}

func (a *novusAgenda) Vendor() cities.Vendor { return cities.VendorNovusAgenda }
func (a *novusAgenda) Close() error          { return nil }

func (a *novusAgenda) FetchMeetings(ctx context.Context) ([]meetings.FetchedMeeting, error) {
	resp, err := a.session.Get(ctx, a.baseURL+"/meetingsresponsive.aspx")
	if err != nil {
		return nil, fmt.Errorf("fetch meeting list: %w", err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse meeting list: %w", err)
	}

	var out []meetings.FetchedMeeting
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}

		var title string
		var start time.Time
		cells.Each(func(_ int, td *goquery.Selection) {
			text := strings.Join(strings.Fields(td.Text()), " ")
			if text == "" {
				return
			}
			if start.IsZero() {
				if t, err := ParseDate(text); err == nil {
					start = t
					return
				}
			}
			if title == "" && len(text) > 3 {
				title = text
			}
		})
		if title == "" {
			return
		}

		detailURL := bestDetailLink(a.baseURL, row)
		if detailURL == "" {
			return
		}

		// No vendor id on list rows; the stable content hash is used
		// downstream instead.
		m := meetings.FetchedMeeting{
			Title:  title,
			Start:  start,
			Status: ParseStatus(title),
		}

		if isDirectAgendaPDF(detailURL) {
			m.PacketURLs = []string{detailURL}
		} else {
			items, pdfURL, err := a.fetchDetail(ctx, detailURL)
			if err != nil {
				a.log.Warn("detail page fetch failed", logger.Error(err))
			}
			switch {
			case len(items) > 0:
				m.AgendaURL = detailURL
				m.Items = items
			case pdfURL != "":
				m.PacketURLs = []string{pdfURL}
			default:
				// An HTML detail page is useless to the PDF pipeline.
				a.log.Warn("no items or agenda pdf on detail page",
					slog.String("url", detailURL))
				return
			}
		}

		if err := m.Validate(); err != nil {
			a.log.Warn("dropping meeting", logger.Error(err))
			return
		}
		out = append(out, m)
	})
	return out, nil
}

// isDirectAgendaPDF reports whether a detail link already serves the agenda
// PDF itself rather than an HTML viewer around it.
func isDirectAgendaPDF(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	if strings.Contains(lower, "html=") {
		return false
	}
	return AttachmentTypeForURL(rawURL) == meetings.AttachmentPDF
}

// fetchDetail loads a meeting's detail page and parses it
func (a *novusAgenda) fetchDetail(ctx context.Context, detailURL string) ([]meetings.FetchedItem, string, error) {
	resp, err := a.session.Get(ctx, detailURL)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("parse detail page: %w", err)
	}
	items, pdfURL := parseNovusDetail(a.baseURL, doc)
	return items, pdfURL, nil
}

// parseNovusDetail reads a MeetingView-style detail page. Agenda items hang
// off CoverSheet.aspx links (the item id rides the ItemID parameter);
// same-row PDF links become the item's attachments. The full-agenda PDF
// link, when present, is returned for the monolithic path.
func parseNovusDetail(baseURL string, doc *goquery.Document) ([]meetings.FetchedItem, string) {
	var items []meetings.FetchedItem
	doc.Find("a[href*='CoverSheet.aspx']").Each(func(_ int, link *goquery.Selection) {
		title := strings.Join(strings.Fields(link.Text()), " ")
		if title == "" || filters.ShouldSkipItem(title, "") {
			return
		}
		href := Absolutize(baseURL, link.AttrOr("href", ""))

		item := meetings.FetchedItem{
			VendorItemID: coverSheetItemID(href),
			Title:        title,
			Sequence:     len(items) + 1,
		}
		link.Closest("tr").Find("a[href]").Each(func(_ int, att *goquery.Selection) {
			attURL := Absolutize(baseURL, att.AttrOr("href", ""))
			if attURL == "" || attURL == href || AttachmentTypeForURL(attURL) != meetings.AttachmentPDF {
				return
			}
			name := strings.Join(strings.Fields(att.Text()), " ")
			if name == "" || filters.ShouldSkipAttachment(name) {
				return
			}
			item.Attachments = append(item.Attachments, meetings.Attachment{
				Name: name, URL: attURL, Type: meetings.AttachmentPDF,
			})
		})
		items = append(items, item)
	})

	pdfURL := ""
	doc.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href := Absolutize(baseURL, link.AttrOr("href", ""))
		if href == "" || !isDirectAgendaPDF(href) {
			return true
		}
		// Item attachments are direct PDFs too; only an agenda-marked link
		// is the whole packet.
		combined := strings.ToLower(link.Text() + " " + href)
		if !strings.Contains(combined, "agenda") {
			return true
		}
		pdfURL = href
		return false
	})
	return items, pdfURL
}

func coverSheetItemID(coverURL string) string {
	u, err := url.Parse(coverURL)
	if err != nil {
		return ""
	}
	if id := u.Query().Get("ItemID"); id != "" {
		return "cs-" + id
	}
	return ""
}

// bestDetailLink ranks a row's links: HTML agenda viewers beat "Online
// Agenda" links beat anything else that looks like an agenda. Summary
// links are excluded outright.
func bestDetailLink(baseURL string, row *goquery.Selection) string {
	best := ""
	bestRank := 0
	row.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href := Absolutize(baseURL, link.AttrOr("href", ""))
		if href == "" {
			return
		}
		text := strings.ToLower(strings.Join(strings.Fields(link.Text()), " "))
		title := strings.ToLower(link.AttrOr("title", ""))
		combined := text + " " + title + " " + strings.ToLower(href)

		if strings.Contains(combined, "summary") {
			return
		}

		rank := 0
		switch {
		case strings.Contains(combined, "html agenda") || strings.Contains(combined, "displayagendapdf") && strings.Contains(combined, "html"):
			rank = 3
		case strings.Contains(combined, "online agenda") || strings.Contains(combined, "meetingview.aspx"):
			rank = 2
		case strings.Contains(combined, "agenda"):
			rank = 1
		}
		if rank > bestRank {
			bestRank = rank
			best = href
		}
	})
	return best
}
