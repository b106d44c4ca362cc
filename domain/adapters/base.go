// Package adapters fetches meetings from municipal agenda vendors. Each
// vendor gets its own Adapter implementation; all of them yield the same
// FetchedMeeting contract and own their HTTP session for their lifetime.
package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/engagic/engagic/domain/cities"
	"github.com/engagic/engagic/domain/meetings"
	"github.com/engagic/engagic/internal/config"
	"github.com/engagic/engagic/pkg/httpclient"
)

// Adapter fetches meetings for one city from one vendor. Construction opens
// the HTTP session; Close must always be called.
type Adapter interface {
	Vendor() cities.Vendor
	FetchMeetings(ctx context.Context) ([]meetings.FetchedMeeting, error)
	Close() error
}

// Window bounds which meetings a sync fetches
type Window struct {
	Start time.Time
	End   time.Time
}

// DefaultWindow builds the sync window from configuration
func DefaultWindow(cfg *config.Config) Window {
	now := time.Now()
	return Window{
		Start: now.AddDate(0, 0, -cfg.Sync.WindowDaysBack),
		End:   now.AddDate(0, 0, cfg.Sync.WindowDaysForward),
	}
}

// New constructs the adapter for a city's vendor. Unknown vendors and
// misconfigured cities (Granicus without a view id) fail here, fast, and
// are never retried.
func New(city *cities.City, cfg *config.Config, window Window, log *slog.Logger) (Adapter, error) {
	switch city.Vendor {
	case cities.VendorPrimeGov:
		return newPrimeGov(city, log), nil
	case cities.VendorCivicClerk:
		return newCivicClerk(city, window, log), nil
	case cities.VendorLegistar:
		return newLegistar(city, cfg, window, log), nil
	case cities.VendorGranicus:
		return newGranicus(city, log)
	case cities.VendorNovusAgenda:
		return newNovusAgenda(city, log), nil
	case cities.VendorCivicPlus:
		return newCivicPlus(city, window, log), nil
	case cities.VendorIQM2:
		return newIQM2(city, window, log), nil
	default:
		return nil, fmt.Errorf("unknown vendor %q for city %s", city.Vendor, city.Banana)
	}
}

// dateFormats covers the formats vendors actually emit
var dateFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 3:04 PM",
	"01/02/2006 15:04",
	"01/02/2006",
	"1/2/2006 3:04 PM",
	"1/2/2006",
	"January 2, 2006 3:04 PM",
	"January 2, 2006",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006",
	"Monday, January 2, 2006",
	// Two-digit years (NovusAgenda); tried last so four-digit forms win.
	"01/02/06 3:04 PM",
	"1/2/06 3:04 PM",
	"01/02/06",
	"1/2/06",
}

// ParseDate tries each known vendor date format in order
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, format := range dateFormats {
		if t, err := time.Parse(format, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", raw)
}

var statusKeywords = []struct {
	re     *regexp.Regexp
	status string
}{
	{regexp.MustCompile(`(?i)\bcancell?ed\b`), meetings.StatusCancelled},
	{regexp.MustCompile(`(?i)\bpostponed\b`), meetings.StatusPostponed},
	{regexp.MustCompile(`(?i)\brescheduled\b`), meetings.StatusRescheduled},
	{regexp.MustCompile(`(?i)\brevised\b`), meetings.StatusRevised},
	{regexp.MustCompile(`(?i)\bdeferred\b`), meetings.StatusDeferred},
}

// ParseStatus extracts a meeting status keyword from a title, or ""
func ParseStatus(title string) string {
	for _, kw := range statusKeywords {
		if kw.re.MatchString(title) {
			return kw.status
		}
	}
	return ""
}

// pdfViewerPaths mark vendor links that serve PDFs without a .pdf suffix
var pdfViewerPaths = []string{
	"metaviewer.php",
	"filestream.ashx",
	"historyattachment",
	"displayagendapdf",
}

// AttachmentTypeForURL classifies an attachment link
func AttachmentTypeForURL(raw string) meetings.AttachmentType {
	lower := strings.ToLower(raw)
	if strings.HasSuffix(lower, ".pdf") || strings.Contains(lower, ".pdf?") {
		return meetings.AttachmentPDF
	}
	for _, marker := range pdfViewerPaths {
		if strings.Contains(lower, marker) {
			return meetings.AttachmentPDF
		}
	}
	if strings.HasSuffix(lower, ".doc") || strings.HasSuffix(lower, ".docx") {
		return meetings.AttachmentDoc
	}
	return meetings.AttachmentUnknown
}

// Absolutize resolves href against base, returning "" for junk links
func Absolutize(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(ref).String()
}

// urlIDParam extracts the numeric ID query parameter vendors put on detail
// pages (Detail_Meeting.aspx?ID=, MeetingDetail.aspx?ID=). Returns "" when
// absent, in which case callers must fall back to a content-derived id:
// positional ids shift whenever the listing does and duplicate meetings on
// re-sync.
func urlIDParam(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Query().Get("ID")
}

// newVendorSession builds the standard adapter HTTP session
func newVendorSession(log *slog.Logger) *httpclient.Session {
	return httpclient.NewSession(httpclient.WithLogger(log))
}
