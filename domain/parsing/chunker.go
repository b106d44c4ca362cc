package parsing

import (
	"regexp"
	"strconv"
	"strings"
)

// Chunk is one recovered agenda item slice of a packet PDF
type Chunk struct {
	Sequence  int
	Title     string
	Text      string
	StartPage int // 0 when unknown
}

const (
	minChunks = 2
	maxChunks = 50
)

var (
	// Markers that signal the end of the cover agenda and the start of
	// body content (staff reports).
	bodyStartRe = regexp.MustCompile(`(?im)^\s*(?:REPORT\s+TO\s+THE\b.*|Item\s+\d+\s+Staff\s+Report|STAFF\s+REPORT)\s*$`)

	// Cover item forms: "4.\n Title" (multiline) and "4. Title" (inline).
	coverInlineRe    = regexp.MustCompile(`(?m)^\s*(\d{1,2})\.\s+(\S.*)$`)
	coverMultilineRe = regexp.MustCompile(`(?m)^\s*(\d{1,2})\.\s*\n\s*(\S.*)$`)
	durationSuffixRe = regexp.MustCompile(`\s*[–\-—]\s*\d+\s+minutes?\s*$`)

	footerItemRe = regexp.MustCompile(`(?im)^\s*Item\s+(\d{1,2})\s*$`)

	sectionHeadingRe = regexp.MustCompile(`(?im)^\s*(?:BUSINESS\s+ITEMS?|CONSENT\s+CALENDAR|ACTION\s+ITEMS?|STUDY\s+SESSION|NEW\s+BUSINESS|OLD\s+BUSINESS|UNFINISHED\s+BUSINESS|PUBLIC\s+HEARINGS?)\s*$`)
	contentMarkerRe  = regexp.MustCompile(`(?im)^\s*(?:ADJOURNMENT?|Item\s+\d+:\s*Staff\s+Report\s+Pg\.?)`)
)

// ChunkDocument splits packet text into per-item chunks. Two strategies run
// in order; the first yielding at least two chunks wins. Results with fewer
// than 2 or more than 50 chunks, or one chunk covering the whole document,
// are rejected so the caller falls back to monolithic processing.
func ChunkDocument(pages []string) []Chunk {
	text := strings.Join(pages, "\f")
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if chunks := chunkByCover(text, pages); sane(chunks, text) {
		return chunks
	}
	if chunks := chunkByPattern(text); sane(chunks, text) {
		return chunks
	}
	return nil
}

func sane(chunks []Chunk, full string) bool {
	if len(chunks) < minChunks || len(chunks) > maxChunks {
		return false
	}
	if len(chunks) == 1 && len(chunks[0].Text) >= len(full)-10 {
		return false
	}
	return true
}

// coverItem is a parsed cover-agenda line
type coverItem struct {
	number int
	title  string
}

// chunkByCover finds the cover/body boundary, reads item numbers + titles
// off the cover, then locates each item's slice of the body.
func chunkByCover(text string, pages []string) []Chunk {
	boundary := coverBoundary(text)
	if boundary <= 0 || boundary >= len(text) {
		return nil
	}
	cover, body := text[:boundary], text[boundary:]

	items := parseCoverItems(cover)
	if len(items) < minChunks {
		return nil
	}

	// Locate each item's start offset in the body.
	starts := make([]int, len(items))
	for i, it := range items {
		starts[i] = locateItem(body, it)
	}

	var chunks []Chunk
	for i, it := range items {
		if starts[i] < 0 {
			continue
		}
		end := len(body)
		for j := i + 1; j < len(items); j++ {
			if starts[j] > starts[i] {
				end = starts[j]
				break
			}
		}
		chunkText := strings.TrimSpace(body[starts[i]:end])
		if chunkText == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Sequence:  it.number,
			Title:     it.title,
			Text:      chunkText,
			StartPage: pageAt(pages, boundary+starts[i]),
		})
	}
	return chunks
}

// coverBoundary returns the offset where body content starts: the first
// staff-report marker, else a sharp drop in line density.
func coverBoundary(text string) int {
	if loc := bodyStartRe.FindStringIndex(text); loc != nil {
		return loc[0]
	}
	return densityDrop(text)
}

// densityDrop scans 2000-char windows; the agenda cover is line-dense,
// staff-report prose is not. A window at under half the peak density after
// a dense prefix marks the transition.
func densityDrop(text string) int {
	const window = 2000
	if len(text) < window*2 {
		return -1
	}
	var densities []int
	for off := 0; off+window <= len(text); off += window {
		densities = append(densities, strings.Count(text[off:off+window], "\n"))
	}
	peak := 0
	for _, d := range densities[:min(3, len(densities))] {
		if d > peak {
			peak = d
		}
	}
	if peak < 10 {
		return -1
	}
	for i := 1; i < len(densities); i++ {
		if densities[i]*2 < peak {
			return i * window
		}
	}
	return -1
}

func parseCoverItems(cover string) []coverItem {
	seen := make(map[int]bool)
	var items []coverItem

	collect := func(matches [][]string) {
		for _, m := range matches {
			num, err := strconv.Atoi(m[1])
			if err != nil || num == 0 || seen[num] {
				continue
			}
			title := strings.TrimSpace(durationSuffixRe.ReplaceAllString(m[2], ""))
			if len(title) < 4 {
				continue
			}
			seen[num] = true
			items = append(items, coverItem{number: num, title: title})
		}
	}
	collect(coverMultilineRe.FindAllStringSubmatch(cover, -1))
	collect(coverInlineRe.FindAllStringSubmatch(cover, -1))
	return items
}

// locateItem finds an item's start in the body text, trying progressively
// looser anchors: exact title with flexible whitespace, first 40 chars,
// footer "Item N", then a staff-report header with the item id nearby.
func locateItem(body string, it coverItem) int {
	if loc := flexibleTitleIndex(body, it.title); loc >= 0 {
		return loc
	}
	if len(it.title) > 40 {
		if loc := flexibleTitleIndex(body, it.title[:40]); loc >= 0 {
			return loc
		}
	}
	footer := regexp.MustCompile(`(?im)^\s*Item\s+` + strconv.Itoa(it.number) + `\s*$`)
	if loc := footer.FindStringIndex(body); loc != nil {
		return loc[0]
	}
	header := regexp.MustCompile(`(?is)STAFF\s+REPORT.{0,200}?\bItem\s+` + strconv.Itoa(it.number) + `\b`)
	if loc := header.FindStringIndex(body); loc != nil {
		return loc[0]
	}
	return -1
}

// flexibleTitleIndex matches a title treating any whitespace run as
// equivalent, since PDF extraction rewraps lines freely.
func flexibleTitleIndex(body, title string) int {
	words := strings.Fields(title)
	if len(words) == 0 {
		return -1
	}
	escaped := make([]string, len(words))
	for i, w := range words {
		escaped[i] = regexp.QuoteMeta(w)
	}
	re, err := regexp.Compile(`(?i)` + strings.Join(escaped, `\s+`))
	if err != nil {
		return -1
	}
	if loc := re.FindStringIndex(body); loc != nil {
		return loc[0]
	}
	return -1
}

// chunkByPattern reads item markers from the document head (the agenda
// portion), then slices the remainder wherever those markers recur.
func chunkByPattern(text string) []Chunk {
	headLen := len(text) / 5
	if headLen < 500 {
		return nil
	}
	head := text[:headLen]

	// Trim the head to the agenda proper: after the first section heading,
	// before the first content marker.
	if loc := sectionHeadingRe.FindStringIndex(head); loc != nil {
		head = head[loc[1]:]
	}
	if loc := contentMarkerRe.FindStringIndex(head); loc != nil {
		head = head[:loc[0]]
	}

	items := parseCoverItems(head)
	if len(items) < minChunks {
		return nil
	}

	rest := text[headLen:]
	var chunks []Chunk
	for i, it := range items {
		start := locateItem(rest, it)
		if start < 0 {
			continue
		}
		end := len(rest)
		for j := i + 1; j < len(items); j++ {
			if next := locateItem(rest, items[j]); next > start {
				end = next
				break
			}
		}
		chunkText := strings.TrimSpace(rest[start:end])
		if chunkText == "" {
			continue
		}
		chunks = append(chunks, Chunk{Sequence: it.number, Title: it.title, Text: chunkText})
	}
	return chunks
}

// pageAt converts a character offset in the form-feed-joined text back to
// a 1-based page number.
func pageAt(pages []string, offset int) int {
	pos := 0
	for i, p := range pages {
		pos += len(p)
		if offset <= pos {
			return i + 1
		}
		pos++ // the joining form feed
	}
	return len(pages)
}
