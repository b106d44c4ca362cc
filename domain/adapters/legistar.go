package adapters

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/engagic/engagic/domain/cities"
	"github.com/engagic/engagic/domain/filters"
	"github.com/engagic/engagic/domain/meetings"
	"github.com/engagic/engagic/internal/config"
	"github.com/engagic/engagic/pkg/httpclient"
	"github.com/engagic/engagic/pkg/logger"
)

// legistar serves cities on Granicus Legistar. Three access paths in
// order of preference: the JSON web API, the same API speaking XML (some
// deployments ignore Accept headers), and finally scraping Calendar.aspx
// when the API refuses with a 4xx.
type legistar struct {
	city     *cities.City
	apiBase  string
	webBase  string
	apiToken string // NYC requires one
	window   Window
	session  *httpclient.Session
	log      *slog.Logger
}

func newLegistar(city *cities.City, cfg *config.Config, window Window, log *slog.Logger) *legistar {
	log = log.With(logger.Scope("legistar"), slog.String("banana", city.Banana))
	token := ""
	if city.Slug == "nyc" {
		token = cfg.Sync.NYCLegistarToken
	}
	return &legistar{
		city:     city,
		apiBase:  fmt.Sprintf("https://webapi.legistar.com/v1/%s", city.Slug),
		webBase:  fmt.Sprintf("https://%s.legistar.com", city.Slug),
		apiToken: token,
		window:   window,
		session:  newVendorSession(log),
		log:      log,
	}
}

func (a *legistar) Vendor() cities.Vendor { return cities.VendorLegistar }
func (a *legistar) Close() error          { return nil }

func (a *legistar) FetchMeetings(ctx context.Context) ([]meetings.FetchedMeeting, error) {
	out, err := a.fetchViaAPI(ctx)
	if err == nil {
		return out, nil
	}
	if !httpclient.IsClientError(err) {
		return nil, err
	}
	a.log.Info("api refused, falling back to calendar scrape", logger.Error(err))
	return a.fetchViaHTML(ctx)
}

type legistarEvent struct {
	EventID   int    `json:"EventId" xml:"EventId"`
	EventBody string `json:"EventBodyName" xml:"EventBodyName"`
	EventDate string `json:"EventDate" xml:"EventDate"`
	EventTime string `json:"EventTime" xml:"EventTime"`
	AgendaURL string `json:"EventAgendaFile" xml:"EventAgendaFile"`
	InSiteURL string `json:"EventInSiteURL" xml:"EventInSiteURL"`
}

type legistarEventItem struct {
	EventItemID int    `json:"EventItemId" xml:"EventItemId"`
	Title       string `json:"EventItemTitle" xml:"EventItemTitle"`
	MatterID    int    `json:"EventItemMatterId" xml:"EventItemMatterId"`
	MatterFile  string `json:"EventItemMatterFile" xml:"EventItemMatterFile"`
	MatterType  string `json:"EventItemMatterType" xml:"EventItemMatterType"`
	AgendaNum   string `json:"EventItemAgendaNumber" xml:"EventItemAgendaNumber"`
	Sequence    int    `json:"EventItemAgendaSequence" xml:"EventItemAgendaSequence"`
}

type legistarAttachment struct {
	Name string `json:"MatterAttachmentName" xml:"MatterAttachmentName"`
	Link string `json:"MatterAttachmentHyperlink" xml:"MatterAttachmentHyperlink"`
}

func (a *legistar) fetchViaAPI(ctx context.Context) ([]meetings.FetchedMeeting, error) {
	eventsURL := fmt.Sprintf("%s/events?$filter=%s&$orderby=EventDate",
		a.apiBase,
		url.QueryEscape(fmt.Sprintf("EventDate ge datetime'%s' and EventDate lt datetime'%s'",
			a.window.Start.Format("2006-01-02"), a.window.End.Format("2006-01-02"))))

	var events []legistarEvent
	if err := a.getAPI(ctx, eventsURL, &events); err != nil {
		return nil, err
	}

	var out []meetings.FetchedMeeting
	for _, event := range events {
		m := meetings.FetchedMeeting{
			VendorID:  fmt.Sprintf("%d", event.EventID),
			Title:     strings.TrimSpace(event.EventBody),
			AgendaURL: event.InSiteURL,
		}
		if m.AgendaURL == "" {
			m.AgendaURL = event.AgendaURL
		}
		if t, err := ParseDate(event.EventDate); err == nil {
			m.Start = a.combineTime(t, event.EventTime)
		}

		items, err := a.fetchEventItems(ctx, event.EventID)
		if err != nil {
			a.log.Warn("event items fetch failed",
				slog.Int("event_id", event.EventID), logger.Error(err))
		}
		m.Items = items
		if len(m.Items) == 0 && event.AgendaURL != "" {
			m.AgendaURL = ""
			m.PacketURLs = []string{event.AgendaURL}
		}

		if err := m.Validate(); err != nil {
			a.log.Warn("dropping meeting", logger.Error(err))
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (a *legistar) fetchEventItems(ctx context.Context, eventID int) ([]meetings.FetchedItem, error) {
	var raw []legistarEventItem
	itemsURL := fmt.Sprintf("%s/events/%d/eventitems?AgendaNote=1&MinutesNote=1", a.apiBase, eventID)
	if err := a.getAPI(ctx, itemsURL, &raw); err != nil {
		return nil, err
	}

	var items []meetings.FetchedItem
	for _, ri := range raw {
		title := strings.TrimSpace(ri.Title)
		if title == "" || filters.ShouldSkipItem(title, ri.MatterType) || filters.ShouldSkipMatterType(ri.MatterType) {
			continue
		}
		item := meetings.FetchedItem{
			VendorItemID: fmt.Sprintf("%d", ri.EventItemID),
			Title:        title,
			Sequence:     len(items) + 1,
			MatterFile:   ri.MatterFile,
			MatterType:   ri.MatterType,
			ItemNumber:   ri.AgendaNum,
		}
		if ri.MatterID != 0 {
			item.MatterID = fmt.Sprintf("%d", ri.MatterID)

			var atts []legistarAttachment
			attsURL := fmt.Sprintf("%s/matters/%d/attachments", a.apiBase, ri.MatterID)
			if err := a.getAPI(ctx, attsURL, &atts); err != nil {
				a.log.Debug("matter attachments fetch failed",
					slog.Int("matter_id", ri.MatterID), logger.Error(err))
			}
			item.Attachments = selectLegistarAttachments(atts)
		}
		items = append(items, item)
	}
	return items, nil
}

// selectLegistarAttachments keeps at most one legislative-version file,
// preferring Ver2 over Ver1, plus all non-version attachments that pass
// the boilerplate filter.
func selectLegistarAttachments(raw []legistarAttachment) []meetings.Attachment {
	var out []meetings.Attachment
	var legVer *meetings.Attachment
	legVerRank := -1

	for _, att := range raw {
		name := strings.TrimSpace(att.Name)
		if name == "" || att.Link == "" || filters.ShouldSkipAttachment(name) {
			continue
		}
		a := meetings.Attachment{Name: name, URL: att.Link, Type: AttachmentTypeForURL(att.Link)}
		if strings.Contains(name, "Leg Ver") {
			rank := 0
			if strings.Contains(name, "Ver2") || strings.Contains(name, "Ver 2") {
				rank = 2
			} else if strings.Contains(name, "Ver1") || strings.Contains(name, "Ver 1") {
				rank = 1
			}
			if rank > legVerRank {
				legVerRank = rank
				copied := a
				legVer = &copied
			}
			continue
		}
		out = append(out, a)
	}
	if legVer != nil {
		out = append([]meetings.Attachment{*legVer}, out...)
	}
	return out
}

// getAPI fetches a Legistar API URL, accepting JSON but tolerating servers
// that answer in XML regardless.
func (a *legistar) getAPI(ctx context.Context, rawURL string, dest any) error {
	if a.apiToken != "" {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL += sep + "token=" + url.QueryEscape(a.apiToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.session.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpclient.StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read api response: %w", err)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "xml") || (len(body) > 0 && body[0] == '<') {
		return decodeLegistarXML(body, dest)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("parse api json: %w", err)
	}
	return nil
}

// decodeLegistarXML unwraps the ArrayOf... envelope the API uses in XML mode
func decodeLegistarXML(body []byte, dest any) error {
	switch d := dest.(type) {
	case *[]legistarEvent:
		var envelope struct {
			Events []legistarEvent `xml:"GranicusEvent"`
		}
		if err := xml.Unmarshal(body, &envelope); err != nil {
			return fmt.Errorf("parse api xml: %w", err)
		}
		*d = envelope.Events
	case *[]legistarEventItem:
		var envelope struct {
			Items []legistarEventItem `xml:"GranicusEventItem"`
		}
		if err := xml.Unmarshal(body, &envelope); err != nil {
			return fmt.Errorf("parse api xml: %w", err)
		}
		*d = envelope.Items
	case *[]legistarAttachment:
		var envelope struct {
			Attachments []legistarAttachment `xml:"GranicusMatterAttachment"`
		}
		if err := xml.Unmarshal(body, &envelope); err != nil {
			return fmt.Errorf("parse api xml: %w", err)
		}
		*d = envelope.Attachments
	default:
		return fmt.Errorf("unsupported xml target %T", dest)
	}
	return nil
}

func (a *legistar) combineTime(day time.Time, clock string) time.Time {
	if clock == "" {
		return day
	}
	if t, err := time.Parse("3:04 PM", strings.TrimSpace(clock)); err == nil {
		return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location())
	}
	return day
}

// fetchViaHTML scrapes Calendar.aspx: rgRow/rgAltRow rows list meetings,
// MeetingDetail.aspx lists items, LegislationDetail.aspx lists attachments.
func (a *legistar) fetchViaHTML(ctx context.Context) ([]meetings.FetchedMeeting, error) {
	calendarURL := a.webBase + "/Calendar.aspx"
	resp, err := a.session.Get(ctx, calendarURL)
	if err != nil {
		return nil, fmt.Errorf("fetch calendar: %w", err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse calendar html: %w", err)
	}

	var out []meetings.FetchedMeeting
	doc.Find("tr.rgRow, tr.rgAltRow").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		title := strings.Join(strings.Fields(cells.First().Text()), " ")
		if title == "" {
			return
		}

		m := meetings.FetchedMeeting{
			Title:  title,
			Status: ParseStatus(title),
		}
		row.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
			href := link.AttrOr("href", "")
			if strings.Contains(href, "MeetingDetail.aspx") {
				m.AgendaURL = Absolutize(a.webBase, href)
				// Same event id the API path reports; rows without one
				// fall back to the stable content hash downstream.
				m.VendorID = urlIDParam(m.AgendaURL)
				return false
			}
			return true
		})
		cells.Each(func(_ int, td *goquery.Selection) {
			if !m.Start.IsZero() {
				return
			}
			if t, err := ParseDate(strings.TrimSpace(td.Text())); err == nil {
				m.Start = t
			}
		})
		if m.AgendaURL == "" {
			return
		}

		items, err := a.scrapeMeetingDetail(ctx, m.AgendaURL)
		if err != nil {
			a.log.Warn("meeting detail scrape failed", logger.Error(err))
		}
		m.Items = items

		if err := m.Validate(); err != nil {
			a.log.Warn("dropping meeting", logger.Error(err))
			return
		}
		out = append(out, m)
	})
	return out, nil
}

func (a *legistar) scrapeMeetingDetail(ctx context.Context, detailURL string) ([]meetings.FetchedItem, error) {
	resp, err := a.session.Get(ctx, detailURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse meeting detail: %w", err)
	}

	var items []meetings.FetchedItem
	doc.Find("tr.rgRow, tr.rgAltRow").Each(func(_ int, row *goquery.Selection) {
		link := row.Find("a[href*='LegislationDetail.aspx']").First()
		if link.Length() == 0 {
			return
		}
		title := strings.Join(strings.Fields(row.Find("td").Last().Text()), " ")
		if title == "" {
			title = strings.Join(strings.Fields(link.Text()), " ")
		}
		if title == "" || filters.ShouldSkipItem(title, "") {
			return
		}

		legURL := Absolutize(a.webBase, link.AttrOr("href", ""))
		item := meetings.FetchedItem{
			VendorItemID: legislationID(legURL),
			Title:        title,
			Sequence:     len(items) + 1,
			MatterFile:   strings.Join(strings.Fields(link.Text()), " "),
		}
		atts, err := a.scrapeLegislationAttachments(ctx, legURL)
		if err != nil {
			a.log.Debug("legislation scrape failed", logger.Error(err))
		}
		item.Attachments = atts
		items = append(items, item)
	})
	return items, nil
}

func (a *legistar) scrapeLegislationAttachments(ctx context.Context, legURL string) ([]meetings.Attachment, error) {
	resp, err := a.session.Get(ctx, legURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse legislation detail: %w", err)
	}

	var raw []legistarAttachment
	doc.Find("a[href*='View.ashx'], a[href$='.pdf']").Each(func(_ int, link *goquery.Selection) {
		raw = append(raw, legistarAttachment{
			Name: strings.Join(strings.Fields(link.Text()), " "),
			Link: Absolutize(a.webBase, link.AttrOr("href", "")),
		})
	})
	return selectLegistarAttachments(raw), nil
}

func legislationID(legURL string) string {
	if u, err := url.Parse(legURL); err == nil {
		if id := u.Query().Get("ID"); id != "" {
			return "leg-" + id
		}
	}
	// Stable fallback so re-syncs produce the same item id.
	h := fnv.New32a()
	h.Write([]byte(legURL))
	return fmt.Sprintf("leg-h%08x", h.Sum32())
}
