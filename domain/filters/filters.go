// Package filters holds the two-tier item filter policy plus attachment and
// matter-type exclusions. Adapter-skip rules drop procedural items before
// storage; processor-skip rules keep the item but exclude it from
// summarization. Keeping the passes separate makes a missing filter
// observable at the layer it belongs.
package filters

import (
	"regexp"
	"strings"
)

// All regexes are matched case-insensitive against "title + ' ' + type".
// Compiled once at init; these run on every item of every meeting.

var adapterSkipPatterns = compileAll([]string{
	`\broll\s*call\b`,
	`\binvocation\b`,
	`\bpledge\s+of\s+allegiance\b`,
	`\b(approval|adoption|approve)\s+(of\s+)?(the\s+)?(draft\s+)?minutes\b`,
	`\bapprove\s+the\s+minutes\s+of\b`,
	`\bdraft\s+minutes\b`,
	`\badjourn(ment)?\b`,
	`\bpublic\s+comment(\s+period)?\b`,
	`\boral\s+communications?\b`,
	`\bwritten\s+communications?\b`,
	`\bcommunications?\s+period\b`,
	`\bfix(ing)?\s+(the\s+)?time\b.*\bnext\b`,
	`\bcall\s+to\s+order\b`,
	`^\s*agenda\s*$`,
	`^\s*schedule[d]?\s*$`,
	`\bmeeting\s+schedule\b`,
})

var processorSkipPatterns = compileAll([]string{
	`\bproclamation\b`,
	`\bcommendation\b`,
	`\brecognition\b`,
	`\bceremonial\b`,
	`\btribute\b`,
	`\bbirthday\b`,
	`\bretirement\b`,
	`\bappointment\b`,
	`\breappointment\b`,
	`\bliquor\s+licen[cs]e\b`,
	`\blicen[cs]e\s+issuance\b`,
	`\bsmall\s+claims\b`,
	`\bsign\s+permit\b`,
})

var attachmentSkipPatterns = compileAll([]string{
	`\bpub(lic|lbic)?\.?\s*corr(espondence)?\b`,
	`\bpulbic\s+corr\b`,
	`\bparcel\s+(table|list)\b`,
	`\bomnia\b`,
	`\bsourcewell\b`,
	`\bnaspo\b`,
	`\bhgacbuy\b`,
	`\bmaster\s+agreement\b`,
	`\bcooperative\s+purchas\w*\b`,
	`\bw-9\b`,
	`\bbid\s+tab(ulation)?s?\b`,
	`\b(insurance\s+)?certificate\s+of\s+insurance\b`,
	`\binsurance\s+cert\w*\b`,
	`\bceqa\s+det\w*\b`,
	`\breferral\s+form\b`,
	`\bmayor\s+memo\b`,
	`\bhearing\s+notice\b`,
	`\b[df]?eir\b`,
})

var matterTypeSkip = map[string]bool{
	"minutes": true,
	"irc":     true,
	"inf":     true,
	"comm":    true,
	"oral":    true,
}

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// ShouldSkipItem reports whether an item is pure procedure (roll call,
// minutes approval, adjournment) and should not be stored at all.
func ShouldSkipItem(title, itemType string) bool {
	return matchesAny(adapterSkipPatterns, title+" "+itemType)
}

// ShouldSkipProcessing reports whether an item should be stored but never
// sent to the summarizer (proclamations, appointments, ceremonial items).
func ShouldSkipProcessing(title, itemType string) bool {
	return matchesAny(processorSkipPatterns, title+" "+itemType)
}

// ShouldSkipAttachment reports whether an attachment is boilerplate that
// would pollute LLM input (public comment dumps, procurement paperwork,
// environmental-review tomes).
func ShouldSkipAttachment(name string) bool {
	return matchesAny(attachmentSkipPatterns, name)
}

// ShouldSkipMatterType reports whether a vendor matter type marks an item
// as procedural.
func ShouldSkipMatterType(matterType string) bool {
	return matterTypeSkip[strings.ToLower(strings.TrimSpace(matterType))]
}
