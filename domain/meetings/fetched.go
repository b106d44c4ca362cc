package meetings

import (
	"fmt"
	"strings"
	"time"
)

// FetchedMeeting is what a vendor adapter yields for one meeting. The Items
// slice is the discriminator: when a vendor exposes structured items the
// adapter fills Items and AgendaURL; otherwise it sets PacketURLs and leaves
// Items empty. Downstream code never has to guess which shape it has.
type FetchedMeeting struct {
	VendorID      string
	Title         string
	Start         time.Time
	Status        string // "" when no status keyword applies
	AgendaURL     string
	PacketURLs    []string
	Items         []FetchedItem
	Participation *Participation
}

// FetchedItem is a structured agenda item from a vendor page or API
type FetchedItem struct {
	VendorItemID string
	Title        string
	Sequence     int
	Attachments  []Attachment
	MatterID     string
	MatterFile   string
	MatterType   string
	Sponsors     []string
	Section      string
	ItemNumber   string
}

// HasItems reports whether this meeting carries structured items
func (f *FetchedMeeting) HasItems() bool {
	return len(f.Items) > 0
}

// Validate rejects plainly corrupted records before they reach the store.
func (f *FetchedMeeting) Validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return fmt.Errorf("meeting has empty title")
	}
	if f.HasItems() && f.AgendaURL == "" {
		return fmt.Errorf("meeting %q has items but no agenda url", f.Title)
	}
	if f.AgendaURL == "" && len(f.PacketURLs) == 0 {
		return fmt.Errorf("meeting %q has neither agenda nor packet url", f.Title)
	}
	for _, u := range append([]string{f.AgendaURL}, f.PacketURLs...) {
		if u == "" {
			continue
		}
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("meeting %q has non-http url %q", f.Title, u)
		}
	}
	return nil
}
