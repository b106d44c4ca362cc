package summarize

import (
	"encoding/json"
	"strings"
)

// itemResponse is the structured item-summary shape the model is asked for
type itemResponse struct {
	Thinking              string   `json:"thinking"`
	SummaryMarkdown       string   `json:"summary_markdown"`
	CitizenImpactMarkdown string   `json:"citizen_impact_markdown"`
	Confidence            string   `json:"confidence"`
	Topics                []string `json:"topics"`
}

const sentinelFallbackChars = 500

// parseItemResponse interprets model output for an item summary: structured
// JSON first, sentinel lines second, leading-text fallback last. Topics come
// back verbatim; normalization is the caller's job.
func parseItemResponse(text string) (summary string, topics []string) {
	if s, t, ok := parseItemJSON(text); ok {
		return s, t
	}
	if s, t, ok := parseSentinels(text); ok {
		return s, t
	}
	trimmed := strings.TrimSpace(text)
	if len(trimmed) > sentinelFallbackChars {
		trimmed = trimmed[:sentinelFallbackChars]
	}
	return trimmed, nil
}

func parseItemJSON(text string) (string, []string, bool) {
	raw := strings.TrimSpace(text)
	// Models occasionally fence the JSON despite response_mime_type.
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var resp itemResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return "", nil, false
	}
	if resp.SummaryMarkdown == "" {
		return "", nil, false
	}

	summary := resp.SummaryMarkdown
	if resp.CitizenImpactMarkdown != "" {
		summary += "\n\n**Why it matters:** " + resp.CitizenImpactMarkdown
	}
	return summary, resp.Topics, true
}

// parseSentinels handles the legacy plain-text format:
//
//	SUMMARY: ...
//	TOPICS: a, b, c
func parseSentinels(text string) (string, []string, bool) {
	var summaryLines []string
	var topics []string
	inSummary := false
	found := false

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "SUMMARY:"):
			found = true
			inSummary = true
			if rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "SUMMARY:")); rest != "" {
				summaryLines = append(summaryLines, rest)
			}
		case strings.HasPrefix(trimmed, "TOPICS:"):
			found = true
			inSummary = false
			for _, t := range strings.Split(strings.TrimPrefix(trimmed, "TOPICS:"), ",") {
				if t = strings.TrimSpace(t); t != "" {
					topics = append(topics, t)
				}
			}
		case inSummary:
			summaryLines = append(summaryLines, line)
		}
	}

	if !found {
		return "", nil, false
	}
	return strings.TrimSpace(strings.Join(summaryLines, "\n")), topics, true
}
