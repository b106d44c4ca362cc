package parsing

import (
	"path"
	"regexp"
	"strings"

	"github.com/engagic/engagic/domain/meetings"
)

// Hyperlink is a link discovered in a PDF, with the 1-based page it sits on
type Hyperlink struct {
	URL  string
	Page int
}

// Letter-numbered section ids like "H1.", "J1.", "K3." at line start,
// followed by the item title.
var letterItemRe = regexp.MustCompile(`(?m)^\s*([A-Z]\d{1,2})\.\s+(\S.*)$`)

// ParseLetterItems handles agendas that number items by lettered section
// (Menlo Park style: H1, J1, K3). Attachments are hyperlinks on the same
// page whose filename starts with the lowercased item id, e.g.
// "j1-20251021-cc-minutes.pdf" belongs to J1. Items with no same-page
// link get zero attachments.
func ParseLetterItems(pages []string, links []Hyperlink) []meetings.FetchedItem {
	var items []meetings.FetchedItem
	seen := make(map[string]bool)

	for pageNum, pageText := range pages {
		for _, m := range letterItemRe.FindAllStringSubmatch(pageText, -1) {
			id, title := m[1], strings.TrimSpace(m[2])
			if seen[id] || len(title) < 4 {
				continue
			}
			seen[id] = true

			item := meetings.FetchedItem{
				VendorItemID: id,
				Title:        title,
				Sequence:     len(items) + 1,
				ItemNumber:   id,
			}
			prefix := strings.ToLower(id) + "-"
			for _, link := range links {
				if link.Page != pageNum+1 {
					continue
				}
				name := strings.ToLower(path.Base(link.URL))
				if strings.HasPrefix(name, prefix) {
					item.Attachments = append(item.Attachments, meetings.Attachment{
						Name: path.Base(link.URL),
						URL:  link.URL,
						Type: meetings.AttachmentPDF,
					})
				}
			}
			items = append(items, item)
		}
	}
	return items
}
