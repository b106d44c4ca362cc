package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/engagic/engagic/domain/cities"
	"github.com/engagic/engagic/domain/filters"
	"github.com/engagic/engagic/domain/meetings"
	"github.com/engagic/engagic/pkg/httpclient"
	"github.com/engagic/engagic/pkg/logger"
)

// primeGov serves cities on primegov.com (Los Angeles, Palo Alto, Boulder).
// The upcoming-meetings API lists documents per meeting; the "HTML Agenda"
// template is preferred because its page carries addressable items.
type primeGov struct {
	city    *cities.City
	baseURL string
	session *httpclient.Session
	log     *slog.Logger
}

func newPrimeGov(city *cities.City, log *slog.Logger) *primeGov {
	log = log.With(logger.Scope("primegov"), slog.String("banana", city.Banana))
	return &primeGov{
		city:    city,
		baseURL: fmt.Sprintf("https://%s.primegov.com", city.Slug),
		session: newVendorSession(log),
		log:     log,
	}
}

func (a *primeGov) Vendor() cities.Vendor { return cities.VendorPrimeGov }
func (a *primeGov) Close() error          { return nil }

type primeGovMeeting struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	DateTime  string `json:"dateTime"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Documents []struct {
		ID               int    `json:"id"`
		TemplateID       int    `json:"templateId"`
		TemplateName     string `json:"templateName"`
		CompileOutputType int   `json:"compileOutputType"`
	} `json:"documentList"`
}

func (a *primeGov) FetchMeetings(ctx context.Context) ([]meetings.FetchedMeeting, error) {
	listURL := a.baseURL + "/api/v2/PublicPortal/ListUpcomingMeetings"
	data, err := a.session.GetBytes(ctx, listURL, 0)
	if err != nil {
		return nil, fmt.Errorf("list upcoming meetings: %w", err)
	}

	var upstream []primeGovMeeting
	if err := json.Unmarshal(data, &upstream); err != nil {
		return nil, fmt.Errorf("parse meeting list: %w", err)
	}

	var out []meetings.FetchedMeeting
	for _, raw := range upstream {
		// Spanish simulcast duplicates of the English agenda.
		if strings.Contains(raw.Title, " - SAP") {
			continue
		}

		m := meetings.FetchedMeeting{
			VendorID: fmt.Sprintf("%d", raw.ID),
			Title:    strings.TrimSpace(raw.Title),
			Status:   ParseStatus(raw.Title),
		}
		if when := a.parseMeetingTime(raw); !when.IsZero() {
			m.Start = when
		}

		htmlTemplateID := 0
		for _, doc := range raw.Documents {
			if strings.Contains(doc.TemplateName, "HTML Agenda") {
				htmlTemplateID = doc.TemplateID
				break
			}
		}

		if htmlTemplateID != 0 {
			agendaURL := fmt.Sprintf("%s/Portal/Meeting?meetingTemplateId=%d", a.baseURL, htmlTemplateID)
			items, err := a.fetchAgendaItems(ctx, agendaURL)
			if err != nil {
				a.log.Warn("html agenda parse failed, keeping meeting without items",
					slog.String("url", agendaURL), logger.Error(err))
			}
			m.AgendaURL = agendaURL
			m.Items = items
		}
		if m.AgendaURL == "" {
			// No HTML agenda published; fall back to the compiled packet.
			for _, doc := range raw.Documents {
				if doc.TemplateID != 0 {
					m.PacketURLs = append(m.PacketURLs,
						fmt.Sprintf("%s/Portal/Meeting?meetingTemplateId=%d", a.baseURL, doc.TemplateID))
					break
				}
			}
		}

		if err := m.Validate(); err != nil {
			a.log.Warn("dropping meeting", logger.Error(err))
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (a *primeGov) parseMeetingTime(raw primeGovMeeting) time.Time {
	if raw.DateTime != "" {
		if t, err := ParseDate(raw.DateTime); err == nil {
			return t
		}
	}
	if raw.Date != "" {
		combined := strings.TrimSpace(raw.Date + " " + raw.Time)
		if t, err := ParseDate(combined); err == nil {
			return t
		}
		if t, err := ParseDate(raw.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}

// fetchAgendaItems parses the HTML agenda page. PrimeGov renders three
// distinct layouts depending on the city's template generation.
func (a *primeGov) fetchAgendaItems(ctx context.Context, agendaURL string) ([]meetings.FetchedItem, error) {
	resp, err := a.session.Get(ctx, agendaURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse agenda html: %w", err)
	}

	if items := a.parseLosAngelesLayout(doc); len(items) > 0 {
		return items, nil
	}
	if items := a.parsePaloAltoLayout(doc); len(items) > 0 {
		return items, nil
	}
	if items := a.parseBoulderLayout(doc); len(items) > 0 {
		return items, nil
	}
	return nil, fmt.Errorf("no recognizable item layout at %s", agendaURL)
}

// parseLosAngelesLayout handles meeting-item wrappers carrying data-mig /
// data-itemid attributes plus a matter metadata table.
func (a *primeGov) parseLosAngelesLayout(doc *goquery.Document) []meetings.FetchedItem {
	var items []meetings.FetchedItem
	doc.Find("div.meeting-item").Each(func(_ int, sel *goquery.Selection) {
		itemID := sel.AttrOr("data-itemid", sel.AttrOr("data-mig", ""))
		title := strings.TrimSpace(sel.Find(".item-title").First().Text())
		if title == "" {
			title = strings.Join(strings.Fields(sel.Find("td").First().Text()), " ")
		}
		if itemID == "" || title == "" || filters.ShouldSkipItem(title, "") {
			return
		}

		item := meetings.FetchedItem{
			VendorItemID: itemID,
			Title:        title,
			Sequence:     len(items) + 1,
		}
		sel.Find("table.matter-details tr").Each(func(_ int, row *goquery.Selection) {
			label := strings.ToLower(strings.TrimSpace(row.Find("td").First().Text()))
			value := strings.TrimSpace(row.Find("td").Last().Text())
			switch {
			case strings.Contains(label, "file"):
				item.MatterFile = value
			case strings.Contains(label, "type"):
				item.MatterType = value
			case strings.Contains(label, "sponsor") || strings.Contains(label, "mover"):
				item.Sponsors = append(item.Sponsors, value)
			}
		})
		a.collectAttachments(sel, &item)
		items = append(items, item)
	})
	return items
}

// parsePaloAltoLayout handles bare agenda-item divs
func (a *primeGov) parsePaloAltoLayout(doc *goquery.Document) []meetings.FetchedItem {
	var items []meetings.FetchedItem
	doc.Find("div.agenda-item").Each(func(i int, sel *goquery.Selection) {
		title := strings.Join(strings.Fields(sel.Find("h3, h4, .title").First().Text()), " ")
		if title == "" {
			title = strings.Join(strings.Fields(sel.Text()), " ")
			if len(title) > 200 {
				title = title[:200]
			}
		}
		if title == "" || filters.ShouldSkipItem(title, "") {
			return
		}
		item := meetings.FetchedItem{
			VendorItemID: fmt.Sprintf("pa-%d", i+1),
			Title:        title,
			Sequence:     len(items) + 1,
		}
		a.collectAttachments(sel, &item)
		items = append(items, item)
	})
	return items
}

// parseBoulderLayout handles tables keyed by data-itemid
func (a *primeGov) parseBoulderLayout(doc *goquery.Document) []meetings.FetchedItem {
	var items []meetings.FetchedItem
	doc.Find("table[data-itemid]").Each(func(_ int, sel *goquery.Selection) {
		itemID := sel.AttrOr("data-itemid", "")
		var cells []string
		sel.Find("td").Each(func(_ int, td *goquery.Selection) {
			if text := strings.Join(strings.Fields(td.Text()), " "); text != "" {
				cells = append(cells, text)
			}
		})
		title := strings.Join(cells, " ")
		if itemID == "" || title == "" || filters.ShouldSkipItem(title, "") {
			return
		}
		item := meetings.FetchedItem{
			VendorItemID: itemID,
			Title:        title,
			Sequence:     len(items) + 1,
		}
		a.collectAttachments(sel, &item)
		items = append(items, item)
	})
	return items
}

func (a *primeGov) collectAttachments(sel *goquery.Selection, item *meetings.FetchedItem) {
	sel.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href := Absolutize(a.baseURL, link.AttrOr("href", ""))
		if href == "" {
			return
		}
		attType := AttachmentTypeForURL(href)
		if attType == meetings.AttachmentUnknown && !strings.Contains(strings.ToLower(href), "download") {
			return
		}
		name := strings.Join(strings.Fields(link.Text()), " ")
		if name == "" {
			name = "Attachment"
		}
		if filters.ShouldSkipAttachment(name) {
			return
		}
		item.Attachments = append(item.Attachments, meetings.Attachment{
			Name: name,
			URL:  href,
			Type: attType,
		})
	})
}
