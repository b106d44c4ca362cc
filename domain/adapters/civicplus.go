package adapters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/engagic/engagic/domain/cities"
	"github.com/engagic/engagic/domain/meetings"
	"github.com/engagic/engagic/pkg/httpclient"
	"github.com/engagic/engagic/pkg/logger"
)

// civicPlus serves cities on CivicPlus CMS sites. There is no API; the
// AgendaCenter page is scraped, and since cities customize their domains
// heavily, several URL shapes are probed. Some cities host their site on
// CivicPlus but publish agendas through another vendor; those pages carry
// detectable external links and the adapter reports them instead of
// scraping garbage.
type civicPlus struct {
	city    *cities.City
	window  Window
	session *httpclient.Session
	log     *slog.Logger
}

func newCivicPlus(city *cities.City, window Window, log *slog.Logger) *civicPlus {
	log = log.With(logger.Scope("civicplus"), slog.String("banana", city.Banana))
	return &civicPlus{
		city:    city,
		window:  window,
		session: newVendorSession(log),
		log:     log,
	}
}

func (a *civicPlus) Vendor() cities.Vendor { return cities.VendorCivicPlus }
func (a *civicPlus) Close() error          { return nil }

// candidateBases lists the URL shapes CivicPlus deployments actually use
func (a *civicPlus) candidateBases() []string {
	slug := a.city.Slug
	return []string{
		fmt.Sprintf("https://www.%s.gov", slug),
		fmt.Sprintf("https://%s.gov", slug),
		fmt.Sprintf("https://www.%s.org", slug),
		fmt.Sprintf("https://%s.civicplus.com", slug),
		fmt.Sprintf("https://www.%s.com", slug),
	}
}

// externalVendorMarkers identify agenda systems hosted elsewhere
var externalVendorMarkers = []string{
	"legistar.com",
	"primegov.com",
	"novusagenda.com",
	"granicus.com",
	"civicclerk.com",
	"iqm2.com",
}

// errExternalVendor marks an AgendaCenter that is a shell around another
// vendor's system. Not a sync failure: the city is warned about, never
// re-routed or retried.
var errExternalVendor = errors.New("agendas published via external vendor")

func (a *civicPlus) FetchMeetings(ctx context.Context) ([]meetings.FetchedMeeting, error) {
	var lastErr error
	for _, base := range a.candidateBases() {
		pageURL := base + "/AgendaCenter"
		out, err := a.scrapeAgendaCenter(ctx, base, pageURL)
		if errors.Is(err, errExternalVendor) {
			a.log.Warn("skipping city", slog.String("url", pageURL), logger.Error(err))
			return nil, nil
		}
		if err != nil {
			lastErr = err
			continue
		}
		return out, nil
	}
	return nil, fmt.Errorf("no reachable AgendaCenter for %s: %w", a.city.Banana, lastErr)
}

func (a *civicPlus) scrapeAgendaCenter(ctx context.Context, base, pageURL string) ([]meetings.FetchedMeeting, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.session.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &httpclient.StatusError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse agenda center: %w", err)
	}
	return a.parseAgendaCenter(base, doc)
}

func (a *civicPlus) parseAgendaCenter(base string, doc *goquery.Document) ([]meetings.FetchedMeeting, error) {
	if vendor := a.detectExternalVendor(doc); vendor != "" {
		return nil, fmt.Errorf("%w: %s", errExternalVendor, vendor)
	}

	var out []meetings.FetchedMeeting
	doc.Find("tr.catAgendaRow, .agenda-center-row, table tbody tr").Each(func(_ int, row *goquery.Selection) {
		agendaLink := row.Find("a[href*='/Agenda/'], a[href*='ViewFile']").First()
		if agendaLink.Length() == 0 {
			return
		}
		href := Absolutize(base, agendaLink.AttrOr("href", ""))
		if href == "" {
			return
		}

		title := strings.Join(strings.Fields(row.Find("td").First().Text()), " ")
		if title == "" {
			title = strings.Join(strings.Fields(agendaLink.AttrOr("aria-label", agendaLink.Text())), " ")
		}
		if title == "" {
			return
		}

		var start time.Time
		row.Find("td, time, .date").EachWithBreak(func(_ int, el *goquery.Selection) bool {
			if t, err := ParseDate(strings.Join(strings.Fields(el.Text()), " ")); err == nil {
				start = t
				return false
			}
			return true
		})
		if !start.IsZero() && (start.Before(a.window.Start) || start.After(a.window.End)) {
			return
		}

		// No vendor id on AgendaCenter rows; the stable content hash is
		// used downstream instead.
		m := meetings.FetchedMeeting{
			Title:      title,
			Start:      start,
			Status:     ParseStatus(title),
			PacketURLs: []string{href},
		}
		if err := m.Validate(); err != nil {
			a.log.Warn("dropping meeting", logger.Error(err))
			return
		}
		out = append(out, m)
	})
	return out, nil
}

func (a *civicPlus) detectExternalVendor(doc *goquery.Document) string {
	found := ""
	doc.Find("a[href], iframe[src]").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		target := el.AttrOr("href", el.AttrOr("src", ""))
		for _, marker := range externalVendorMarkers {
			if strings.Contains(target, marker) {
				found = marker
				return false
			}
		}
		return true
	})
	return found
}
