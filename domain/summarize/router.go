package summarize

import (
	"google.golang.org/genai"

	"github.com/engagic/engagic/pkg/pdftext"
)

// Model routing thresholds. Small handles the common agenda; large takes
// the packet tomes.
const (
	smallModelMaxChars = 200_000
	smallModelMaxPages = 50

	speedPathMaxPages = 10
	speedPathMaxChars = 30_000

	moderateMaxPages = 50
	moderateMaxChars = 150_000

	moderateThinkingBudget = 2048

	shortAgendaMaxPages = 30
)

// DocSize describes a document for routing decisions
type DocSize struct {
	Chars int
	Pages int
}

// Size derives routing dimensions from raw text, estimating pages when the
// extractor didn't report them.
func Size(text string, pages int) DocSize {
	if pages <= 0 {
		pages = pdftext.EstimatePages(len(text))
	}
	return DocSize{Chars: len(text), Pages: pages}
}

// pickModel routes small documents to the small model and everything else
// to the large one.
func (c *Client) pickModel(size DocSize) string {
	if size.Chars < smallModelMaxChars && size.Pages <= smallModelMaxPages {
		return c.smallModel
	}
	return c.largeModel
}

// thinkingConfig applies the thinking-budget tiers: disabled on the speed
// path, a fixed moderate budget on the small model for mid-size docs, and
// unbounded beyond that.
func (c *Client) thinkingConfig(model string, size DocSize) *genai.ThinkingConfig {
	switch {
	case size.Pages <= speedPathMaxPages && size.Chars <= speedPathMaxChars:
		return &genai.ThinkingConfig{ThinkingBudget: ptrInt32(0)}
	case size.Pages <= moderateMaxPages && size.Chars <= moderateMaxChars:
		if model == c.smallModel {
			return &genai.ThinkingConfig{ThinkingBudget: ptrInt32(moderateThinkingBudget)}
		}
		return nil // provider default
	default:
		return &genai.ThinkingConfig{ThinkingBudget: ptrInt32(-1)} // unbounded
	}
}

// meetingPromptKey picks the prompt variant by document length
func meetingPromptKey(size DocSize) string {
	if size.Pages <= shortAgendaMaxPages {
		return "short_agenda"
	}
	return "comprehensive"
}

func ptrInt32(v int32) *int32 {
	return &v
}

func ptrFloat32(v float32) *float32 {
	return &v
}
