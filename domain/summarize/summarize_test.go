package summarize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *Client {
	return &Client{smallModel: "gemini-2.5-flash-lite", largeModel: "gemini-2.5-flash"}
}

func TestPickModel(t *testing.T) {
	c := testClient()

	assert.Equal(t, c.smallModel, c.pickModel(DocSize{Chars: 10_000, Pages: 5}))
	assert.Equal(t, c.smallModel, c.pickModel(DocSize{Chars: 199_999, Pages: 50}))
	assert.Equal(t, c.largeModel, c.pickModel(DocSize{Chars: 200_000, Pages: 50}))
	assert.Equal(t, c.largeModel, c.pickModel(DocSize{Chars: 10_000, Pages: 51}))
	assert.Equal(t, c.largeModel, c.pickModel(DocSize{Chars: 500_000, Pages: 200}))
}

func TestBatchModelEscalatesOnce(t *testing.T) {
	c := testClient()

	small := []BatchRequest{
		{ItemID: "a", Text: "short item text"},
		{ItemID: "b", Text: strings.Repeat("x", 10_000)},
	}
	assert.Equal(t, c.smallModel, c.batchModel(small))

	// One oversized request routes the entire job to the large model,
	// including requests that precede it in the slice.
	mixed := append(small, BatchRequest{ItemID: "c", Text: strings.Repeat("x", 250_000)})
	assert.Equal(t, c.largeModel, c.batchModel(mixed))

	assert.Equal(t, c.smallModel, c.batchModel(nil))
}

func TestThinkingTiers(t *testing.T) {
	c := testClient()

	// speed path: disabled
	tc := c.thinkingConfig(c.smallModel, DocSize{Chars: 20_000, Pages: 8})
	require.NotNil(t, tc)
	assert.Equal(t, int32(0), *tc.ThinkingBudget)

	// moderate on the small model: fixed budget
	tc = c.thinkingConfig(c.smallModel, DocSize{Chars: 100_000, Pages: 40})
	require.NotNil(t, tc)
	assert.Equal(t, int32(2048), *tc.ThinkingBudget)

	// moderate on the large model: provider default
	assert.Nil(t, c.thinkingConfig(c.largeModel, DocSize{Chars: 100_000, Pages: 40}))

	// big documents: unbounded
	tc = c.thinkingConfig(c.largeModel, DocSize{Chars: 400_000, Pages: 120})
	require.NotNil(t, tc)
	assert.Equal(t, int32(-1), *tc.ThinkingBudget)
}

func TestMeetingPromptKey(t *testing.T) {
	assert.Equal(t, "short_agenda", meetingPromptKey(DocSize{Pages: 10}))
	assert.Equal(t, "short_agenda", meetingPromptKey(DocSize{Pages: 30}))
	assert.Equal(t, "comprehensive", meetingPromptKey(DocSize{Pages: 31}))
	assert.Equal(t, "comprehensive", meetingPromptKey(DocSize{Pages: 200}))
}

func TestLoadPrompts(t *testing.T) {
	p, err := loadPrompts()
	require.NoError(t, err)

	assert.Contains(t, p.meeting, "short_agenda")
	assert.Contains(t, p.meeting, "comprehensive")
	require.NotNil(t, p.itemSchema)
	assert.Contains(t, p.itemSchema.Required, "summary_markdown")
	assert.Contains(t, p.itemSchema.Required, "topics")
	assert.Contains(t, p.itemSchema.Properties, "citizen_impact_markdown")
}

func TestRenderTemplate(t *testing.T) {
	tmpl := promptTemplate{Template: "TITLE: {title}\nTEXT: {text}"}
	out := tmpl.render(map[string]string{"title": "Zoning Update", "text": "body"})
	assert.Equal(t, "TITLE: Zoning Update\nTEXT: body", out)
}

func TestParseItemResponseJSON(t *testing.T) {
	raw := `{"summary_markdown":"Council will vote on a rental registry.","citizen_impact_markdown":"Landlords must register units.","confidence":"high","topics":["housing","governance"]}`

	summary, topics := parseItemResponse(raw)
	assert.Contains(t, summary, "rental registry")
	assert.Contains(t, summary, "**Why it matters:**")
	assert.Equal(t, []string{"housing", "governance"}, topics)
}

func TestParseItemResponseFencedJSON(t *testing.T) {
	raw := "```json\n{\"summary_markdown\":\"Adopts the budget.\",\"topics\":[\"budget\"]}\n```"

	summary, topics := parseItemResponse(raw)
	assert.Equal(t, "Adopts the budget.", summary)
	assert.Equal(t, []string{"budget"}, topics)
}

func TestParseItemResponseSentinels(t *testing.T) {
	raw := `SUMMARY: The council will consider a paving contract.
Work covers three neighborhoods.
TOPICS: transportation, budget`

	summary, topics := parseItemResponse(raw)
	assert.Contains(t, summary, "paving contract")
	assert.Contains(t, summary, "three neighborhoods")
	assert.Equal(t, []string{"transportation", "budget"}, topics)
}

func TestParseItemResponseFallback(t *testing.T) {
	raw := strings.Repeat("Plain prose with no structure whatsoever. ", 30)

	summary, topics := parseItemResponse(raw)
	assert.LessOrEqual(t, len(summary), 500)
	assert.NotEmpty(t, summary)
	assert.Nil(t, topics)
}

func TestSizeEstimatesPages(t *testing.T) {
	s := Size(strings.Repeat("x", 10_000), 0)
	assert.Equal(t, 5, s.Pages)

	s = Size("short", 0)
	assert.Equal(t, 1, s.Pages)

	s = Size("short", 7)
	assert.Equal(t, 7, s.Pages)
}
