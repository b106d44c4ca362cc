// Package parsing turns raw agenda text into structure: participation
// contact info pulled by regex, and agenda-item chunks recovered from
// monolithic packet PDFs.
package parsing

import (
	"regexp"
	"strings"

	"github.com/engagic/engagic/domain/meetings"
)

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	// The leading guard and trailing \b keep this from matching ten-digit
	// runs embedded in longer numbers (Zoom meeting ids in URLs).
	phoneRe = regexp.MustCompile(`(?:^|[^\d])(?:\+?1[\s.\-]?)?\(?([2-9]\d{2})\)?[\s.\-]?(\d{3})[\s.\-]?(\d{4})\b`)

	virtualURLRe = regexp.MustCompile(`https?://[^\s<>"')]*(?:zoom\.us|webex\.com|teams\.microsoft\.com|gotomeeting\.com|youtube\.com|youtu\.be)[^\s<>"')]*`)
	meetingIDRe  = regexp.MustCompile(`(?i)(?:meeting|webinar)\s*id\s*:?\s*([\d\s\-]{9,14}\d)`)

	virtualOnlyRe = regexp.MustCompile(`(?i)\b(?:virtual(?:ly)?\s+only|teleconference\s+only|no\s+physical\s+location|remote(?:ly)?\s+only)\b`)
	hybridRe      = regexp.MustCompile(`(?i)\b(?:hybrid|in\s+person\s+(?:and|or)\s+(?:via\s+)?(?:zoom|teleconference|remote)|both\s+in[\s\-]person\s+and)\b`)
)

// ExtractParticipation pulls contact metadata out of agenda text. It runs
// before summarization so the data survives an LLM failure. Returns nil
// when nothing was found.
func ExtractParticipation(text string) *meetings.Participation {
	p := &meetings.Participation{}
	found := false

	if m := emailRe.FindString(text); m != "" {
		p.Email = m
		found = true
	}
	if m := phoneRe.FindStringSubmatch(text); m != nil {
		p.Phone = "+1" + m[1] + m[2] + m[3]
		found = true
	}
	if m := virtualURLRe.FindString(text); m != "" {
		p.VirtualURL = strings.TrimRight(m, ".,;")
		found = true
	}
	if m := meetingIDRe.FindStringSubmatch(text); m != nil {
		p.MeetingID = compactDigits(m[1])
		found = true
	}
	if virtualOnlyRe.MatchString(text) {
		p.VirtualOnly = true
		found = true
	} else if hybridRe.MatchString(text) {
		p.Hybrid = true
		found = true
	}

	if !found {
		return nil
	}
	return p
}

func compactDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
